// Package redis implements cache.Store on Redis through go-redis.
//
// Every key lives under a prefix (default "offload:cache:"), so Clear can
// drop the whole cache with SCAN and DEL without touching job data kept in
// the same database.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/offload"
	"github.com/xraph/offload/cache"
)

var _ cache.Store = (*Store)(nil)

const (
	defaultPrefix = "offload:cache:"
	scanCount     = 200
)

// Option configures the Store.
type Option func(*Store)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store is a cache.Store over a Redis client.
type Store struct {
	client goredis.UniversalClient
	owned  bool
	prefix string
	logger *slog.Logger
}

// New wraps an existing client. Close leaves it open.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: defaultPrefix,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open connects to url (redis:// or rediss://). The returned Store owns
// the client.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	o, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %w", offload.ErrCacheBackend, err)
	}
	s := New(goredis.NewClient(o), opts...)
	s.owned = true
	if err := s.Ping(ctx); err != nil {
		_ = s.client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) key(k string) string { return s.prefix + k }

func wrap(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %w", offload.ErrCacheBackend, op, err)
}

// Get returns the value under key, or cache.ErrMiss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, wrap("get", err)
	}
	return data, nil
}

// Set writes value with a PX expiry, or none when ttl <= 0.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return wrap("set", err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return wrap("del", err)
	}
	return nil
}

// Clear deletes every key under the prefix.
func (s *Store) Clear(ctx context.Context) error {
	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanCount).Result()
		if err != nil {
			return wrap("scan", err)
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return wrap("del", err)
			}
			removed += n
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	s.logger.Info("cache cleared", slog.String("prefix", s.prefix), slog.Int64("keys", removed))
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrap("ping", err)
	}
	return nil
}

// Close closes the client if the Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
