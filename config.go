package offload

import "time"

// Config holds configuration for the Dispatcher.
type Config struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int

	// Queues is the list of queues this dispatcher will poll.
	Queues []string

	// PollInterval is how often an idle worker polls for new jobs.
	PollInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// HeartbeatInterval is how often running jobs send heartbeats.
	HeartbeatInterval time.Duration

	// StaleJobThreshold is how long a STARTED job may go without a
	// heartbeat before it is handed back to the queue.
	StaleJobThreshold time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       4,
		Queues:            []string{"default"},
		PollInterval:      500 * time.Millisecond,
		ShutdownTimeout:   30 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		StaleJobThreshold: time.Minute,
	}
}
