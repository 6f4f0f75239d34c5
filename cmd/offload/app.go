package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/offload"
	"github.com/xraph/offload/cache"
	cachememory "github.com/xraph/offload/cache/memory"
	cacheredis "github.com/xraph/offload/cache/redis"
	"github.com/xraph/offload/config"
	"github.com/xraph/offload/engine"
	"github.com/xraph/offload/product"
	"github.com/xraph/offload/product/postgres"
	"github.com/xraph/offload/store/memory"
	"github.com/xraph/offload/store/redis"
	"github.com/xraph/offload/tasks"
)

// app is the wired process: engine, cache and product catalog.
type app struct {
	eng      *engine.Engine
	cache    *cache.Accessor
	products product.Store

	closers []func() error
}

// buildApp wires every component from cfg. Call close when done.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	var jobStore offload.Storer
	done := false
	defer func() {
		if !done {
			_ = a.close()
			if jobStore != nil {
				_ = jobStore.Close()
			}
		}
	}()

	var redisStore *redis.Store
	switch cfg.Store.Backend {
	case "memory":
		jobStore = memory.New()
	default:
		s, err := redis.Open(ctx, cfg.Redis.URL,
			redis.WithLogger(logger),
			redis.WithPrefix(cfg.Store.Prefix),
			redis.WithResultTTL(cfg.Store.ResultTTL),
		)
		if err != nil {
			return nil, err
		}
		redisStore, jobStore = s, s
	}

	d, err := offload.New(
		offload.WithStore(jobStore),
		offload.WithLogger(logger),
		offload.WithConcurrency(cfg.Worker.Concurrency),
		offload.WithQueues(cfg.Worker.Queues),
		offload.WithPollInterval(cfg.Worker.PollInterval),
		offload.WithShutdownTimeout(cfg.Worker.ShutdownTimeout),
		offload.WithHeartbeat(cfg.Worker.HeartbeatInterval, cfg.Worker.StaleJobThreshold),
	)
	if err != nil {
		return nil, err
	}
	engOpts := []engine.Option{}
	if limits := cfg.Worker.QueueConfigs(); len(limits) > 0 {
		engOpts = append(engOpts, engine.WithQueueConfig(limits...))
	}
	if !cfg.Worker.Beat {
		engOpts = append(engOpts, engine.WithoutScheduler())
	}
	eng, err := engine.Build(d, engOpts...)
	if err != nil {
		return nil, err
	}
	a.eng = eng
	tasks.Register(eng, cfg.Tasks.Delays(), nil)

	cacheStore, err := openCache(ctx, cfg, logger, redisStore)
	if err != nil {
		return nil, err
	}
	accOpts := []cache.Option{cache.WithLogger(logger), cache.WithCodec(codecFor(cfg.Cache.Codec))}
	if cfg.Cache.SingleFlight {
		accOpts = append(accOpts, cache.WithSingleFlight())
	}
	if cfg.Cache.BypassOnError {
		accOpts = append(accOpts, cache.WithBypassOnError())
	}
	a.cache = cache.New(cacheStore, accOpts...)
	if c, ok := cacheStore.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	products, closeProducts, err := openProducts(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.products = products
	a.closers = append(a.closers, closeProducts)

	done = true
	return a, nil
}

func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger, shared *redis.Store) (cache.Store, error) {
	if cfg.Cache.Backend == "memory" {
		return cachememory.New(), nil
	}
	opts := []cacheredis.Option{cacheredis.WithPrefix(cfg.Cache.Prefix), cacheredis.WithLogger(logger)}
	if shared != nil {
		return cacheredis.New(shared.Client(), opts...), nil
	}
	s, err := cacheredis.Open(ctx, cfg.Redis.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return s, nil
}

// openProducts opens the catalog: PostgreSQL when a database URL is set,
// memory otherwise.
func openProducts(ctx context.Context, cfg *config.Config, logger *slog.Logger) (product.Store, func() error, error) {
	if cfg.Database.URL == "" {
		return product.NewMemoryStore(), func() error { return nil }, nil
	}
	pg, err := postgres.New(ctx, cfg.Database.URL, postgres.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func codecFor(name string) cache.Codec {
	if name == "msgpack" {
		return cache.MsgpackCodec{}
	}
	return cache.JSONCodec{}
}

// registerSchedules persists the periodic jobs.
func (a *app) registerSchedules(ctx context.Context, s tasks.Schedule) error {
	for _, def := range tasks.Schedules(s) {
		if err := engine.RegisterCron(ctx, a.eng, def); err != nil {
			return fmt.Errorf("register %s: %w", def.Name, err)
		}
	}
	return nil
}

// close releases the cache and database. The job store is closed by
// engine.Stop.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
