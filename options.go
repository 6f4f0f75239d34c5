package offload

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// Storer is the lifecycle surface of a store held by the Dispatcher.
// Concrete backends also satisfy store.Store, which the engine asserts
// for the job and cron subsystems.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Dispatcher owns the store and the worker pool lifecycle.
//
// Create one with New and hand it to engine.Build, which wires the job
// registry, middleware, pool and scheduler around it.
type Dispatcher struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	pool       poolRunner

	started bool
}

// New creates a new Dispatcher with the given options.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Logger returns the dispatcher's logger.
func (d *Dispatcher) Logger() *slog.Logger { return d.logger }

// Store returns the dispatcher's store.
func (d *Dispatcher) Store() Storer { return d.store }

// Config returns a copy of the dispatcher's configuration.
func (d *Dispatcher) Config() Config { return d.config }

// SetPool sets the worker pool. Called by engine.Build.
func (d *Dispatcher) SetPool(p poolRunner) { d.pool = p }

// SetExtensions sets the extension emitter. Called by engine.Build.
func (d *Dispatcher) SetExtensions(e extensionEmitter) { d.extensions = e }

// Start begins job processing.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.pool == nil {
		return ErrNoStore
	}
	if err := d.pool.Start(ctx); err != nil {
		return err
	}
	d.started = true
	return nil
}

// Stop shuts down the pool (if started), notifies extensions and closes
// the store.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.pool != nil && d.started {
		if err := d.pool.Stop(ctx); err != nil {
			d.logger.Error("pool stop error", slog.String("error", err.Error()))
		}
		d.started = false
	}
	if d.extensions != nil {
		d.extensions.EmitShutdown(ctx)
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// WithConcurrency sets the number of worker goroutines.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) error {
		d.config.Concurrency = n
		return nil
	}
}

// WithQueues sets the queues the dispatcher will poll.
func WithQueues(queues []string) Option {
	return func(d *Dispatcher) error {
		d.config.Queues = queues
		return nil
	}
}

// WithPollInterval sets how often idle workers poll the store.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) error {
		d.config.PollInterval = interval
		return nil
	}
}

// WithHeartbeat sets the heartbeat interval and the stale job threshold.
// Zero values disable the respective loop. A positive staleAfter needs an
// interval in (0, staleAfter), otherwise ErrInvalidHeartbeat is returned.
func WithHeartbeat(interval, staleAfter time.Duration) Option {
	return func(d *Dispatcher) error {
		if err := checkHeartbeat(interval, staleAfter); err != nil {
			return err
		}
		d.config.HeartbeatInterval = interval
		d.config.StaleJobThreshold = staleAfter
		return nil
	}
}

// WithShutdownTimeout sets the graceful shutdown budget.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) error {
		d.config.ShutdownTimeout = timeout
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) error {
		if err := checkHeartbeat(cfg.HeartbeatInterval, cfg.StaleJobThreshold); err != nil {
			return err
		}
		d.config = cfg
		return nil
	}
}

func checkHeartbeat(interval, staleAfter time.Duration) error {
	if interval < 0 || staleAfter < 0 {
		return ErrInvalidHeartbeat
	}
	if staleAfter > 0 && (interval == 0 || interval >= staleAfter) {
		return ErrInvalidHeartbeat
	}
	return nil
}

// WithLogger sets the structured logger for the dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) error {
		d.logger = l
		return nil
	}
}

// WithStore sets the persistence backend. It is typically a store.Store.
func WithStore(s Storer) Option {
	return func(d *Dispatcher) error {
		d.store = s
		return nil
	}
}
