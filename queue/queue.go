package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-queue limits.
type Config struct {
	// Name is the queue identifier (must match the job.Queue field).
	Name string

	// MaxConcurrency caps jobs from this queue running at once in the
	// local pool. Zero means no queue-specific cap.
	MaxConcurrency int

	// RateLimit is the sustained jobs per second admitted from this
	// queue. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the token bucket size. Defaults to 1 when RateLimit is
	// set.
	RateBurst int
}

type state struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

func newState(cfg Config) *state {
	s := &state{config: cfg}
	if cfg.RateLimit > 0 {
		burst := max(cfg.RateBurst, 1)
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Manager enforces per-queue limits. It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	queues map[string]*state
}

// NewManager creates a Manager with the given queue configurations.
func NewManager(configs ...Config) *Manager {
	m := &Manager{queues: make(map[string]*state, len(configs))}
	for _, cfg := range configs {
		m.queues[cfg.Name] = newState(cfg)
	}
	return m
}

// Acquire reports whether one more job from queue may start now. On true
// the caller must call Release once the job finishes. A rate token is only
// spent when the concurrency cap admits the job.
func (m *Manager) Acquire(queue string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.queues[queue]
	if s == nil {
		return true
	}
	if s.config.MaxConcurrency > 0 && s.active >= s.config.MaxConcurrency {
		return false
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return false
	}
	s.active++
	return true
}

// Release returns the slot taken by a successful Acquire.
func (m *Manager) Release(queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.queues[queue]; s != nil && s.active > 0 {
		s.active--
	}
}

// SetQueueConfig replaces or adds a queue configuration, keeping the
// current active count.
func (m *Manager) SetQueueConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := newState(cfg)
	if old := m.queues[cfg.Name]; old != nil {
		s.active = old.active
	}
	m.queues[cfg.Name] = s
}

// ActiveCount returns the number of jobs currently holding a slot on queue.
func (m *Manager) ActiveCount(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.queues[queue]; s != nil {
		return s.active
	}
	return 0
}
