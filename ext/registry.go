package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/offload/id"
	"github.com/xraph/offload/job"
)

type entry[H any] struct {
	name string
	hook H
}

type hooks[H any] []entry[H]

func (l *hooks[H]) add(e Extension) {
	if h, ok := e.(H); ok {
		*l = append(*l, entry[H]{name: e.Name(), hook: h})
	}
}

// Registry holds registered extensions and dispatches lifecycle events to
// them. Hook implementations are sorted out at registration time.
type Registry struct {
	logger     *slog.Logger
	extensions []Extension

	jobEnqueued  hooks[JobEnqueued]
	jobStarted   hooks[JobStarted]
	jobCompleted hooks[JobCompleted]
	jobFailed    hooks[JobFailed]
	jobRetrying  hooks[JobRetrying]
	cronFired    hooks[CronFired]
	shutdown     hooks[Shutdown]
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	r.jobEnqueued.add(e)
	r.jobStarted.add(e)
	r.jobCompleted.add(e)
	r.jobFailed.add(e)
	r.jobRetrying.add(e)
	r.cronFired.add(e)
	r.shutdown.add(e)
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

func emit[H any](r *Registry, l hooks[H], hook string, call func(H) error) {
	for _, e := range l {
		if err := call(e.hook); err != nil {
			r.logger.Warn("extension hook error",
				slog.String("hook", hook),
				slog.String("extension", e.name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// EmitJobEnqueued notifies all extensions that implement JobEnqueued.
func (r *Registry) EmitJobEnqueued(ctx context.Context, j *job.Job) {
	emit(r, r.jobEnqueued, "OnJobEnqueued", func(h JobEnqueued) error {
		return h.OnJobEnqueued(ctx, j)
	})
}

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	emit(r, r.jobStarted, "OnJobStarted", func(h JobStarted) error {
		return h.OnJobStarted(ctx, j)
	})
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	emit(r, r.jobCompleted, "OnJobCompleted", func(h JobCompleted) error {
		return h.OnJobCompleted(ctx, j, elapsed)
	})
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	emit(r, r.jobFailed, "OnJobFailed", func(h JobFailed) error {
		return h.OnJobFailed(ctx, j, jobErr)
	})
}

// EmitJobRetrying notifies all extensions that implement JobRetrying.
func (r *Registry) EmitJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) {
	emit(r, r.jobRetrying, "OnJobRetrying", func(h JobRetrying) error {
		return h.OnJobRetrying(ctx, j, attempt, nextRunAt)
	})
}

// EmitCronFired notifies all extensions that implement CronFired.
func (r *Registry) EmitCronFired(ctx context.Context, entryName string, jobID id.JobID) {
	emit(r, r.cronFired, "OnCronFired", func(h CronFired) error {
		return h.OnCronFired(ctx, entryName, jobID)
	})
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(r, r.shutdown, "OnShutdown", func(h Shutdown) error {
		return h.OnShutdown(ctx)
	})
}
