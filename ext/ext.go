package ext

import (
	"context"
	"time"

	"github.com/xraph/offload/id"
	"github.com/xraph/offload/job"
)

// Extension is anything registered with the engine. It opts into events
// by also implementing one or more of the hook interfaces below.
type Extension interface {
	Name() string
}

// JobEnqueued fires once the PENDING job is in the store.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobStarted fires after a worker claims the job and marks it STARTED.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobCompleted fires after the result is saved with state SUCCESS.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed fires when the job ends in FAILURE with no retries left.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobRetrying fires when a failed attempt is put back as RETRY to run
// again at nextRunAt.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error
}

// CronFired fires after a periodic entry enqueued jobID.
type CronFired interface {
	OnCronFired(ctx context.Context, entryName string, jobID id.JobID) error
}

// Shutdown fires once while the dispatcher stops, before the store closes.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
