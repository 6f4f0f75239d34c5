package backoff_test

import (
	"testing"
	"time"

	"github.com/xraph/offload/backoff"
)

func TestConstant(t *testing.T) {
	c := backoff.Constant(5 * time.Second)
	for attempt := 1; attempt <= 5; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want 5s", attempt, got)
		}
	}
}

func TestFunc(t *testing.T) {
	f := backoff.Func(func(n int) time.Duration { return time.Duration(n) * time.Millisecond })
	if got := f.Delay(3); got != 3*time.Millisecond {
		t.Errorf("Delay(3) = %v, want 3ms", got)
	}
}

func TestExponential(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{30, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialWithJitter_WithinBounds(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, 10*time.Second)

	for attempt := 1; attempt <= 6; attempt++ {
		ceiling := time.Duration(1<<(attempt-1)) * time.Second
		if ceiling > 10*time.Second {
			ceiling = 10 * time.Second
		}
		for range 100 {
			got := e.Delay(attempt)
			if got < 0 || got > ceiling {
				t.Fatalf("Delay(%d) = %v, want within [0, %v]", attempt, got, ceiling)
			}
		}
	}
}

func TestExponentialWithJitter_Varies(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, time.Minute)
	seen := make(map[time.Duration]struct{})
	for range 100 {
		seen[e.Delay(3)] = struct{}{}
	}
	if len(seen) < 2 {
		t.Errorf("expected jittered delays to vary, got %d distinct values", len(seen))
	}
}

func TestDefault(t *testing.T) {
	d := backoff.Default().Delay(1)
	if d < 0 || d > time.Second {
		t.Errorf("Default().Delay(1) = %v, want within [0, 1s]", d)
	}
}
