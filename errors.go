package offload

import (
	"errors"
	"fmt"
)

var (
	// Store errors.
	ErrNoStore     = errors.New("offload: no store configured")
	ErrStoreClosed = errors.New("offload: store closed")

	// ErrQueueUnavailable is returned by Enqueue when the broker cannot
	// durably accept the job. The job is not queued.
	ErrQueueUnavailable = errors.New("offload: queue unavailable")

	// ErrJobFailure is the base error for a job that ended in FAILURE.
	ErrJobFailure = errors.New("offload: job failed")

	// ErrUnknownJobID means the store holds no record for the given id.
	ErrUnknownJobID = errors.New("offload: unknown job id")

	// ErrCacheBackend wraps every cache store failure other than a miss.
	ErrCacheBackend = errors.New("offload: cache backend error")

	// Not found errors.
	ErrJobNotFound  = fmt.Errorf("offload: job not found: %w", ErrUnknownJobID)
	ErrCronNotFound = errors.New("offload: cron entry not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("offload: job already exists")
	ErrDuplicateCron    = errors.New("offload: duplicate cron entry")

	// Registry errors.
	ErrJobNotRegistered = errors.New("offload: job not registered")

	// ErrInvalidHeartbeat rejects a stale threshold that a live worker's
	// heartbeats could not keep ahead of.
	ErrInvalidHeartbeat = errors.New("offload: heartbeat interval must be positive and below the stale job threshold")
)
