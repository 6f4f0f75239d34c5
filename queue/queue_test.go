package queue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_UnconfiguredQueueAlwaysAdmits(t *testing.T) {
	m := NewManager(Config{Name: "configured", MaxConcurrency: 1})
	for range 10 {
		if !m.Acquire("other") {
			t.Fatal("unconfigured queue should always admit")
		}
	}
	if got := m.ActiveCount("other"); got != 0 {
		t.Fatalf("unconfigured queue should not track active jobs, got %d", got)
	}
}

func TestManager_MaxConcurrency(t *testing.T) {
	m := NewManager(Config{Name: "reports", MaxConcurrency: 2})

	if !m.Acquire("reports") || !m.Acquire("reports") {
		t.Fatal("first two Acquires should succeed")
	}
	if m.Acquire("reports") {
		t.Fatal("third Acquire should fail at max concurrency 2")
	}
	if got := m.ActiveCount("reports"); got != 2 {
		t.Fatalf("ActiveCount = %d, want 2", got)
	}

	m.Release("reports")
	if !m.Acquire("reports") {
		t.Fatal("Acquire should succeed after Release")
	}
}

func TestManager_RateLimit(t *testing.T) {
	m := NewManager(Config{Name: "limited", RateLimit: 1, RateBurst: 1})

	if !m.Acquire("limited") {
		t.Fatal("first Acquire should succeed within burst")
	}
	m.Release("limited")
	if m.Acquire("limited") {
		t.Fatal("second Acquire should be rate limited")
	}

	time.Sleep(1100 * time.Millisecond)
	if !m.Acquire("limited") {
		t.Fatal("Acquire should succeed after token refill")
	}
}

func TestManager_RateBurst(t *testing.T) {
	m := NewManager(Config{Name: "bursty", RateLimit: 10, RateBurst: 3})
	for i := range 3 {
		if !m.Acquire("bursty") {
			t.Fatalf("Acquire %d should succeed within burst", i)
		}
		m.Release("bursty")
	}
}

func TestManager_ConcurrencyBlockKeepsToken(t *testing.T) {
	m := NewManager(Config{Name: "q", MaxConcurrency: 1, RateLimit: 0.001, RateBurst: 2})

	if !m.Acquire("q") {
		t.Fatal("first Acquire should succeed")
	}
	if m.Acquire("q") {
		t.Fatal("second Acquire should hit the concurrency cap")
	}
	m.Release("q")
	if !m.Acquire("q") {
		t.Fatal("token should not have been spent by the blocked Acquire")
	}
}

func TestManager_SetQueueConfig(t *testing.T) {
	m := NewManager(Config{Name: "dyn", MaxConcurrency: 1})

	m.Acquire("dyn")
	if m.Acquire("dyn") {
		t.Fatal("should be blocked at concurrency 1")
	}

	m.SetQueueConfig(Config{Name: "dyn", MaxConcurrency: 3})
	if got := m.ActiveCount("dyn"); got != 1 {
		t.Fatalf("active count lost on reconfigure: %d", got)
	}
	if !m.Acquire("dyn") {
		t.Fatal("should succeed after raising concurrency")
	}
}

func TestManager_ReleaseUnderflow(t *testing.T) {
	m := NewManager(Config{Name: "q", MaxConcurrency: 5})
	m.Release("q")
	if m.ActiveCount("q") != 0 {
		t.Fatal("active count should not go below 0")
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(Config{Name: "concurrent", MaxConcurrency: 50})

	var acquired atomic.Int64
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Acquire("concurrent") {
				acquired.Add(1)
				time.Sleep(time.Millisecond)
				m.Release("concurrent")
			}
		}()
	}
	wg.Wait()

	if acquired.Load() == 0 {
		t.Fatal("expected some Acquires to succeed")
	}
	if got := m.ActiveCount("concurrent"); got != 0 {
		t.Fatalf("expected 0 active, got %d", got)
	}
}
