package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/offload"
	"github.com/xraph/offload/backoff"
	"github.com/xraph/offload/ext"
	"github.com/xraph/offload/id"
	"github.com/xraph/offload/job"
	"github.com/xraph/offload/middleware"
)

// Executor runs a single job and persists its outcome.
type Executor struct {
	registry   *job.Registry
	extensions *ext.Registry
	store      job.Store
	backoff    backoff.Strategy
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor. A nil backoff uses backoff.Default.
func NewExecutor(
	registry *job.Registry,
	extensions *ext.Registry,
	store job.Store,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	if bo == nil {
		bo = backoff.Default()
	}
	return &Executor{
		registry:   registry,
		extensions: extensions,
		store:      store,
		backoff:    bo,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs one attempt of j, which must already be STARTED.
//
// It returns the attempt error, if any. The job record has been updated by
// then, so the error is informational for the caller.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	handler, ok := e.registry.Get(j.Name)
	if !ok {
		err := fmt.Errorf("%w: %q", offload.ErrJobNotRegistered, j.Name)
		// Nothing on this worker can ever run it; retrying would loop.
		return e.fail(ctx, j, err, time.Now().UTC())
	}

	start := time.Now()
	out, err := e.mw(ctx, j, func(ctx context.Context) ([]byte, error) {
		return handler(ctx, j.Payload)
	})
	elapsed := time.Since(start)

	// The attempt context may be cancelled by now; the outcome must still
	// be recorded.
	saveCtx := context.WithoutCancel(ctx)
	now := time.Now().UTC()

	switch {
	case err == nil:
		return e.succeed(saveCtx, j, out, now, elapsed)
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		return e.requeue(saveCtx, j, err, now)
	case j.RetryCount < j.MaxRetries:
		return e.retry(saveCtx, j, err, now)
	default:
		return e.fail(saveCtx, j, err, now)
	}
}

func (e *Executor) succeed(ctx context.Context, j *job.Job, out []byte, now time.Time, elapsed time.Duration) error {
	j.State = job.StateSuccess
	j.Result = out
	j.LastError = ""
	j.CompletedAt = &now
	j.UpdatedAt = now

	if err := e.store.UpdateJob(ctx, j); err != nil {
		e.logger.Error("failed to record job success",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("error", err.Error()),
		)
		return err
	}
	e.extensions.EmitJobCompleted(ctx, j, elapsed)
	return nil
}

func (e *Executor) retry(ctx context.Context, j *job.Job, cause error, now time.Time) error {
	j.RetryCount++
	delay := e.backoff.Delay(j.RetryCount)
	j.State = job.StateRetry
	j.LastError = cause.Error()
	j.RunAt = now.Add(delay)
	j.UpdatedAt = now

	if err := e.store.UpdateJob(ctx, j); err != nil {
		e.logger.Error("failed to schedule job retry",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}
	e.extensions.EmitJobRetrying(ctx, j, j.RetryCount, j.RunAt)

	e.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Int("attempt", j.RetryCount),
		slog.Int("max_retries", j.MaxRetries),
		slog.Duration("delay", delay),
	)
	return fmt.Errorf("job %s retry %d/%d: %w", j.Name, j.RetryCount, j.MaxRetries, cause)
}

func (e *Executor) fail(ctx context.Context, j *job.Job, cause error, now time.Time) error {
	j.State = job.StateFailure
	j.LastError = cause.Error()
	j.CompletedAt = &now
	j.UpdatedAt = now

	if err := e.store.UpdateJob(ctx, j); err != nil {
		e.logger.Error("failed to record job failure",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}
	e.extensions.EmitJobFailed(ctx, j, cause)

	e.logger.Warn("job failed",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Int("retry_count", j.RetryCount),
		slog.String("error", cause.Error()),
	)
	return fmt.Errorf("%w: %s: %w", offload.ErrJobFailure, j.Name, cause)
}

// requeue hands a job interrupted by pool shutdown back to the queue
// without charging it an attempt.
func (e *Executor) requeue(ctx context.Context, j *job.Job, cause error, now time.Time) error {
	j.State = job.StatePending
	j.RunAt = now
	j.WorkerID = id.WorkerID{}
	j.StartedAt = nil
	j.HeartbeatAt = nil
	j.UpdatedAt = now

	if err := e.store.UpdateJob(ctx, j); err != nil {
		e.logger.Error("failed to requeue interrupted job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}
	e.logger.Info("interrupted job requeued",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
	)
	return cause
}
