package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xraph/offload"
)

// Option configures an Accessor.
type Option func(*Accessor)

// WithCodec sets the value codec. Defaults to JSONCodec.
func WithCodec(c Codec) Option {
	return func(a *Accessor) { a.codec = c }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Accessor) { a.logger = l }
}

// WithSingleFlight collapses concurrent misses on the same key into one
// compute call. Waiters share its result.
func WithSingleFlight() Option {
	return func(a *Accessor) { a.group = &singleflight.Group{} }
}

// WithBypassOnError makes GetOrCompute compute directly when the store
// fails, instead of returning the backend error.
func WithBypassOnError() Option {
	return func(a *Accessor) { a.bypass = true }
}

// Accessor reads and writes typed values through a Store.
type Accessor struct {
	store  Store
	codec  Codec
	logger *slog.Logger
	group  *singleflight.Group
	bypass bool
}

// New creates an Accessor over store.
func New(store Store, opts ...Option) *Accessor {
	a := &Accessor{
		store:  store,
		codec:  JSONCodec{},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Store returns the underlying store.
func (a *Accessor) Store() Store { return a.store }

func backendErr(op, key string, err error) error {
	if errors.Is(err, offload.ErrCacheBackend) {
		return err
	}
	return fmt.Errorf("%w: %s %q: %w", offload.ErrCacheBackend, op, key, err)
}

// Get decodes the value under key into v. It reports false on a miss.
func (a *Accessor) Get(ctx context.Context, key string, v any) (bool, error) {
	data, err := a.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, backendErr("get", key, err)
	}
	if err := a.codec.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("cache: decode %q: %w", key, err)
	}
	return true, nil
}

// Set encodes v and stores it under key for ttl.
func (a *Accessor) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := a.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	if err := a.store.Set(ctx, key, data, ttl); err != nil {
		return backendErr("set", key, err)
	}
	return nil
}

// Delete removes key.
func (a *Accessor) Delete(ctx context.Context, key string) error {
	if err := a.store.Delete(ctx, key); err != nil {
		return backendErr("delete", key, err)
	}
	return nil
}

// Clear removes every cached entry.
func (a *Accessor) Clear(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		return backendErr("clear", "*", err)
	}
	return nil
}

// Ping checks the store is reachable.
func (a *Accessor) Ping(ctx context.Context) error {
	if err := a.store.Ping(ctx); err != nil {
		return backendErr("ping", "", err)
	}
	return nil
}

// GetOrCompute returns the value cached under key, reporting hit=true. On
// a miss it runs compute, stores the result for ttl and returns it with
// hit=false. A hit does not refresh the ttl. A compute error is returned
// as is and nothing is stored.
//
// Undecodable cached bytes count as a miss and are overwritten.
func GetOrCompute[T any](ctx context.Context, a *Accessor, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, bool, error) {
	var zero T

	var cached T
	hit, err := a.Get(ctx, key, &cached)
	switch {
	case hit:
		return cached, true, nil
	case errors.Is(err, offload.ErrCacheBackend):
		if !a.bypass {
			return zero, false, err
		}
		a.logger.Warn("cache unavailable, computing directly",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		v, err := compute(ctx)
		return v, false, err
	case err != nil:
		a.logger.Warn("discarding undecodable cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	fill := func() (T, error) {
		v, err := compute(ctx)
		if err != nil {
			return zero, err
		}
		if err := a.Set(ctx, key, v, ttl); err != nil {
			if !a.bypass {
				return zero, err
			}
			a.logger.Warn("cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return v, nil
	}

	if a.group == nil {
		v, err := fill()
		return v, false, err
	}
	shared, err, _ := a.group.Do(key, func() (any, error) { return fill() })
	if err != nil {
		return zero, false, err
	}
	v, _ := shared.(T)
	return v, false, nil
}
