package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/offload/cron"
	"github.com/xraph/offload/job"
)

var (
	_ job.Store  = (*Store)(nil)
	_ cron.Store = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithPrefix namespaces every key. Defaults to "offload:".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.keys = keys{prefix: prefix} }
}

// WithResultTTL expires a job record d after it reaches SUCCESS or
// FAILURE. Zero keeps finished jobs forever. Once a record expires the
// store no longer knows the id, so a status lookup reports PENDING, not
// the terminal state it had.
func WithResultTTL(d time.Duration) Option {
	return func(s *Store) { s.resultTTL = d }
}

// Store implements store.Store backed by Redis.
type Store struct {
	client    goredis.UniversalClient
	owned     bool
	keys      keys
	resultTTL time.Duration
	logger    *slog.Logger
}

// New wraps an existing client. The caller keeps ownership of it; Close
// does not close it.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		keys:   keys{prefix: defaultPrefix},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open connects to the Redis server at url (redis:// or rediss://) and
// verifies the connection. The returned Store owns the client.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	o, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("offload/redis: parse url: %w", err)
	}
	client := goredis.NewClient(o)
	s := New(client, opts...)
	s.owned = true
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.UniversalClient { return s.client }

// Migrate is a no-op for Redis.
func (s *Store) Migrate(context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("offload/redis: ping: %w", err)
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
