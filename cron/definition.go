package cron

// Definition is a typed cron definition. T is the payload type.
type Definition[T any] struct {
	// Name uniquely identifies the entry.
	Name string

	// Schedule is a cron expression or descriptor.
	Schedule string

	// JobName is the registered job enqueued on each occurrence.
	JobName string

	// Payload is sent with every enqueued job.
	Payload T

	// Queue overrides the job's default queue.
	Queue string
}
