package job

import "time"

// Options configures per-job behavior such as retries and queue.
type Options struct {
	// MaxRetries is the number of extra attempts after the first failure.
	// Zero means a failing job goes straight to FAILURE.
	MaxRetries int

	// Queue is the queue name this job is enqueued to.
	Queue string

	// Timeout is the maximum duration a job may run before its context
	// is cancelled. Zero means unlimited.
	Timeout time.Duration

	// RunAt schedules the job for future execution. Zero means immediate.
	RunAt time.Time
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries: 0,
		Queue:      "default",
		Timeout:    10 * time.Minute,
	}
}

// Option is a functional option for configuring a job.
type Option func(*Options)

// WithMaxRetries sets the number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.MaxRetries = n
	}
}

// WithQueue sets the queue name for the job.
func WithQueue(q string) Option {
	return func(o *Options) {
		o.Queue = q
	}
}

// WithTimeout sets the maximum execution duration for the job.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithRunAt schedules the job for execution at a specific time.
func WithRunAt(t time.Time) Option {
	return func(o *Options) {
		o.RunAt = t
	}
}
