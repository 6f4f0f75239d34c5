package job

import (
	"context"
	"time"

	"github.com/xraph/offload/id"
)

// ListOpts controls pagination and filtering for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
	// Queue filters by queue name. Empty means all queues.
	Queue string
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// Queue filters by queue name. Empty means all queues.
	Queue string
	// State filters by job state. Empty means all states.
	State State
}

// Store is the broker and result store contract for jobs.
type Store interface {
	// EnqueueJob durably persists a new job and makes it visible to
	// DequeueJobs once RunAt has passed.
	EnqueueJob(ctx context.Context, j *Job) error

	// DequeueJobs atomically claims up to limit runnable jobs from the
	// given queues, moves them to STARTED and returns them. Jobs are
	// ordered by RunAt ascending. A job is claimed by at most one caller.
	DequeueJobs(ctx context.Context, queues []string, limit int) ([]*Job, error)

	// GetJob retrieves a job by ID. Returns offload.ErrJobNotFound when
	// there is no record.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob persists changes to an existing job. Jobs saved in a
	// runnable state become eligible for DequeueJobs again.
	UpdateJob(ctx context.Context, j *Job) error

	// DeleteJob removes a job by ID.
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// ListJobsByState returns jobs matching the given state.
	ListJobsByState(ctx context.Context, state State, opts ListOpts) ([]*Job, error)

	// HeartbeatJob records that workerID is still executing the job.
	HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error

	// ReapStaleJobs returns STARTED jobs whose last heartbeat is older
	// than threshold.
	ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*Job, error)

	// RequeueStaleJob moves a job back to PENDING only if it is still
	// STARTED with a heartbeat older than cutoff, checked atomically
	// against the stored record. It reports whether the job was requeued.
	RequeueStaleJob(ctx context.Context, jobID id.JobID, cutoff time.Time) (bool, error)

	// CountJobs returns the number of jobs matching the given options.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)
}
