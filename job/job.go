package job

import (
	"time"

	"github.com/xraph/offload"
	"github.com/xraph/offload/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is queued and waiting for a worker.
	StatePending State = "PENDING"
	// StateStarted means a worker has claimed the job.
	StateStarted State = "STARTED"
	// StateRetry means the job failed and is queued for another attempt.
	StateRetry State = "RETRY"
	// StateSuccess means the job finished and its result is available.
	StateSuccess State = "SUCCESS"
	// StateFailure means the job failed and will not run again.
	StateFailure State = "FAILURE"
	// StateUnknown is only reported by the status view, for ids this
	// system could not have issued.
	StateUnknown State = "UNKNOWN"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Runnable reports whether the job is waiting in a queue.
func (s State) Runnable() bool {
	return s == StatePending || s == StateRetry
}

// Job represents a unit of work to be processed by a worker.
type Job struct {
	offload.Entity

	ID          id.JobID      `json:"id"`
	Name        string        `json:"name"`
	Queue       string        `json:"queue"`
	Payload     []byte        `json:"payload"`
	Result      []byte        `json:"result,omitempty"`
	State       State         `json:"state"`
	MaxRetries  int           `json:"max_retries"`
	RetryCount  int           `json:"retry_count"`
	LastError   string        `json:"last_error,omitempty"`
	WorkerID    id.WorkerID   `json:"worker_id,omitempty"`
	RunAt       time.Time     `json:"run_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	HeartbeatAt *time.Time    `json:"heartbeat_at,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// StaleAt reports whether the job is STARTED and its last heartbeat
// predates cutoff.
func (j *Job) StaleAt(cutoff time.Time) bool {
	return j.State == StateStarted && j.HeartbeatAt != nil && j.HeartbeatAt.Before(cutoff)
}
