// Package backoff computes the delay a failed job waits before its next
// attempt. Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	Delay(attempt int) time.Duration
}

// Func adapts a plain function to a Strategy.
type Func func(attempt int) time.Duration

// Delay calls f(attempt).
func (f Func) Delay(attempt int) time.Duration { return f(attempt) }

// Constant always waits the same interval.
type Constant time.Duration

// Delay returns the fixed interval.
func (c Constant) Delay(int) time.Duration { return time.Duration(c) }

// Exponential doubles the delay on each attempt, capped at Max.
//
// With Jitter set, a uniformly random duration in [0, delay] is returned
// instead, so that jobs failing together do not retry together.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  bool
}

// NewExponential creates a deterministic exponential strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// NewExponentialWithJitter creates an exponential strategy with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay, Jitter: true}
}

// Delay returns Initial * 2^(attempt-1) capped at Max, optionally jittered.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	if e.Jitter {
		return time.Duration(rand.Float64() * base) //nolint:gosec // jitter does not need crypto rand
	}
	return time.Duration(base)
}

// Default returns the strategy used by the worker when none is configured:
// exponential with full jitter, 1s initial and 1m max.
func Default() Strategy {
	return NewExponentialWithJitter(time.Second, time.Minute)
}
