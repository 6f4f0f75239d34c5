package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/offload"
	"github.com/xraph/offload/backoff"
	"github.com/xraph/offload/cron"
	"github.com/xraph/offload/ext"
	"github.com/xraph/offload/id"
	"github.com/xraph/offload/job"
	mw "github.com/xraph/offload/middleware"
	"github.com/xraph/offload/observability"
	"github.com/xraph/offload/queue"
	"github.com/xraph/offload/store"
	"github.com/xraph/offload/worker"
)

const instrumentationName = "github.com/xraph/offload"

// Engine wraps a Dispatcher with typed subsystem access.
// Use Build() to create one from a Dispatcher.
type Engine struct {
	d          *offload.Dispatcher
	extensions *ext.Registry
	registry   *job.Registry
	store      store.Store
	bo         backoff.Strategy
	pool       *worker.Pool
	mws        []mw.Middleware
	logger     *slog.Logger

	scheduler     *cron.Scheduler
	schedulerOpts []cron.SchedulerOption
	noScheduler   bool

	queueConfigs []queue.Config
	queueManager *queue.Manager

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's chain, innermost last.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithBackoff sets the retry backoff strategy.
// If not set, backoff.Default() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithQueueConfig registers queue-level rate limiting and concurrency
// configurations. Queues not listed have no limits.
func WithQueueConfig(configs ...queue.Config) Option {
	return func(eng *Engine) {
		eng.queueConfigs = append(eng.queueConfigs, configs...)
	}
}

// WithScheduler passes options to the cron scheduler.
func WithScheduler(opts ...cron.SchedulerOption) Option {
	return func(eng *Engine) {
		eng.schedulerOpts = append(eng.schedulerOpts, opts...)
	}
}

// WithoutScheduler keeps Start from running the cron scheduler. Use it on
// workers that should not fire periodic jobs.
func WithoutScheduler() Option {
	return func(eng *Engine) {
		eng.noScheduler = true
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware and the observability extension. If not set, the global
// provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Dispatcher.
// The Dispatcher's store must implement store.Store.
func Build(d *offload.Dispatcher, opts ...Option) (*Engine, error) {
	logger := d.Logger()
	if d.Store() == nil {
		return nil, offload.ErrNoStore
	}
	s, ok := d.Store().(store.Store)
	if !ok {
		return nil, fmt.Errorf("offload: store %T does not implement store.Store", d.Store())
	}

	eng := &Engine{
		d:          d,
		extensions: ext.NewRegistry(logger),
		registry:   job.NewRegistry(),
		store:      s,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.bo == nil {
		eng.bo = backoff.Default()
	}

	tracingMw := mw.Tracing()
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	}
	metricsMw := mw.Metrics()
	obsExt := observability.NewMetricsExtension()
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName + "/observability"))
	}
	eng.extensions.Register(obsExt)

	// recover → tracing → metrics → logging → timeout → user middleware.
	allMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(),
	}
	allMws = append(allMws, eng.mws...)

	config := d.Config()
	executor := worker.NewExecutor(eng.registry, eng.extensions, s, eng.bo, logger, allMws...)

	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(config.Concurrency),
		worker.WithPoolQueues(config.Queues),
		worker.WithPollInterval(config.PollInterval),
		worker.WithHeartbeatInterval(config.HeartbeatInterval),
		worker.WithStaleJobThreshold(config.StaleJobThreshold),
	}
	if len(eng.queueConfigs) > 0 {
		eng.queueManager = queue.NewManager(eng.queueConfigs...)
		poolOpts = append(poolOpts, worker.WithQueueManager(eng.queueManager))
	}
	eng.pool = worker.NewPool(s, executor, eng.extensions, logger, poolOpts...)

	d.SetPool(eng.pool)
	d.SetExtensions(eng.extensions)

	eng.scheduler = cron.NewScheduler(s, eng.EnqueueRaw, eng.extensions, eng.pool.WorkerID(), logger, eng.schedulerOpts...)
	return eng, nil
}

// Register registers a typed job definition with the engine.
func Register[T, R any](eng *Engine, def *job.Definition[T, R]) {
	job.RegisterDefinition(eng.registry, def)
}

// Enqueue marshals payload and submits a job. It returns once the job is
// durably queued, without waiting for it to run.
func Enqueue[T any](ctx context.Context, eng *Engine, name string, payload T, opts ...job.Option) (*job.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for job %q: %w", name, err)
	}
	return eng.EnqueueRaw(ctx, name, data, opts...)
}

// EnqueueRaw submits a job with a pre-serialized JSON payload. The job is
// PENDING on return. Options registered with the definition apply first,
// then opts.
func (eng *Engine) EnqueueRaw(ctx context.Context, name string, payload []byte, opts ...job.Option) (*job.Job, error) {
	jobOpts, ok := eng.registry.Options(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", offload.ErrJobNotRegistered, name)
	}
	for _, opt := range opts {
		opt(&jobOpts)
	}
	if jobOpts.Queue == "" {
		jobOpts.Queue = job.DefaultOptions().Queue
	}

	now := time.Now().UTC()
	j := &job.Job{
		Entity:     offload.NewEntity(),
		ID:         id.NewJobID(),
		Name:       name,
		Queue:      jobOpts.Queue,
		Payload:    payload,
		State:      job.StatePending,
		MaxRetries: jobOpts.MaxRetries,
		Timeout:    jobOpts.Timeout,
		RunAt:      now,
	}
	if !jobOpts.RunAt.IsZero() {
		j.RunAt = jobOpts.RunAt.UTC()
	}

	if err := eng.store.EnqueueJob(ctx, j); err != nil {
		return nil, fmt.Errorf("%w: enqueue %q: %w", offload.ErrQueueUnavailable, name, err)
	}

	eng.extensions.EmitJobEnqueued(ctx, j)
	eng.logger.Debug("job enqueued",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", name),
		slog.String("queue", j.Queue),
	)
	return j, nil
}

// Status reports the state of a job by its raw id. An id this system could
// not have issued reports UNKNOWN; a well-formed id with no record reports
// PENDING. Only a store failure returns an error.
//
// A store that expires finished records (see the redis store's
// WithResultTTL) drops SUCCESS and FAILURE results after the TTL, and the
// job then reads as PENDING again.
func (eng *Engine) Status(ctx context.Context, raw string) (*job.Status, error) {
	jobID, err := id.ParseJobID(raw)
	if err != nil {
		return job.UnknownStatus(raw), nil
	}

	j, err := eng.store.GetJob(ctx, jobID)
	if errors.Is(err, offload.ErrUnknownJobID) {
		return job.PendingStatus(raw), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: status %s: %w", offload.ErrQueueUnavailable, raw, err)
	}
	return job.StatusOf(j), nil
}

// Counts returns the number of jobs in each state.
func (eng *Engine) Counts(ctx context.Context) (map[job.State]int64, error) {
	states := []job.State{job.StatePending, job.StateStarted, job.StateRetry, job.StateSuccess, job.StateFailure}
	out := make(map[job.State]int64, len(states))
	for _, st := range states {
		n, err := eng.store.CountJobs(ctx, job.CountOpts{State: st})
		if err != nil {
			return nil, fmt.Errorf("count %s jobs: %w", st, err)
		}
		out[st] = n
	}
	return out, nil
}

// Start runs the cron scheduler (unless disabled) and the worker pool.
// Producer-only processes never call it.
func (eng *Engine) Start(ctx context.Context) error {
	if !eng.noScheduler {
		if err := eng.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start cron scheduler: %w", err)
		}
	}
	return eng.d.Start(ctx)
}

// Stop shuts down the scheduler and drains the pool. Jobs still running
// when ctx expires are cancelled and requeued. Without a ctx deadline the
// configured ShutdownTimeout applies. The store is closed last.
func (eng *Engine) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		if timeout := eng.d.Config().ShutdownTimeout; timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}
	if err := eng.scheduler.Stop(ctx); err != nil {
		eng.logger.Error("cron scheduler stop error", slog.String("error", err.Error()))
	}
	return eng.d.Stop(ctx)
}

// Ping checks the job store.
func (eng *Engine) Ping(ctx context.Context) error { return eng.store.Ping(ctx) }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Dispatcher returns the underlying Dispatcher.
func (eng *Engine) Dispatcher() *offload.Dispatcher { return eng.d }

// Store returns the engine's store.
func (eng *Engine) Store() store.Store { return eng.store }

// Scheduler returns the cron scheduler.
func (eng *Engine) Scheduler() *cron.Scheduler { return eng.scheduler }

// Pool returns the worker pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }

// QueueManager returns the queue manager, or nil if no queue configs
// were provided.
func (eng *Engine) QueueManager() *queue.Manager { return eng.queueManager }

// RegisterCron registers a typed cron definition with the engine.
// It validates the schedule expression, computes the initial NextRunAt,
// and persists the entry. Re-registering an existing name is a no-op.
func RegisterCron[T any](ctx context.Context, eng *Engine, def *cron.Definition[T]) error {
	sched, err := cron.ParseSchedule(def.Schedule)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", def.Schedule, err)
	}
	if !eng.registry.Has(def.JobName) {
		return fmt.Errorf("cron %q: %w: %q", def.Name, offload.ErrJobNotRegistered, def.JobName)
	}

	if _, err := eng.store.GetCronByName(ctx, def.Name); err == nil {
		return nil
	} else if !errors.Is(err, offload.ErrCronNotFound) {
		return fmt.Errorf("lookup cron %q: %w", def.Name, err)
	}

	payload, err := json.Marshal(def.Payload)
	if err != nil {
		return fmt.Errorf("marshal cron payload: %w", err)
	}

	next := sched.Next(time.Now().UTC())
	entry := &cron.Entry{
		Entity:    offload.NewEntity(),
		ID:        id.NewCronID(),
		Name:      def.Name,
		Schedule:  def.Schedule,
		JobName:   def.JobName,
		Queue:     def.Queue,
		Payload:   payload,
		NextRunAt: &next,
		Enabled:   true,
	}

	if err := eng.store.RegisterCron(ctx, entry); err != nil {
		// Lost a race with another process registering the same name.
		if errors.Is(err, offload.ErrDuplicateCron) {
			return nil
		}
		return fmt.Errorf("register cron %q: %w", def.Name, err)
	}

	eng.logger.Info("cron registered",
		slog.String("name", def.Name),
		slog.String("schedule", def.Schedule),
		slog.String("job_name", def.JobName),
		slog.Time("next_run_at", next),
	)
	return nil
}
