package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/offload/cache"
	"github.com/xraph/offload/cache/memory"
)

func TestStore_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := memory.New(memory.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_ = s.Set(ctx, "short", []byte("1"), time.Second)
	_ = s.Set(ctx, "forever", []byte("2"), 0)

	now = now.Add(time.Second)
	if _, err := s.Get(ctx, "short"); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("expired key: err = %v, want ErrMiss", err)
	}
	if v, err := s.Get(ctx, "forever"); err != nil || string(v) != "2" {
		t.Errorf("no-ttl key = %q, %v", v, err)
	}
	if s.Len() != 1 {
		t.Errorf("expired entry not evicted on read: Len = %d", s.Len())
	}
}

func TestStore_LastWriterWins(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	_ = s.Set(ctx, "k", []byte("a"), time.Minute)
	_ = s.Set(ctx, "k", []byte("b"), time.Minute)
	if v, _ := s.Get(ctx, "k"); string(v) != "b" {
		t.Errorf("Get = %q, want b", v)
	}
}

func TestStore_ValuesAreCopies(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	in := []byte("abc")
	_ = s.Set(ctx, "k", in, 0)
	in[0] = 'x'

	out, _ := s.Get(ctx, "k")
	if string(out) != "abc" {
		t.Fatalf("stored value aliased caller slice: %q", out)
	}
	out[0] = 'y'
	again, _ := s.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("returned value aliased store: %q", again)
	}
}

func TestStore_DeleteAndClear(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	_ = s.Set(ctx, "a", []byte("1"), 0)
	_ = s.Set(ctx, "b", []byte("2"), 0)

	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
	_ = s.Delete(ctx, "a")
	if _, err := s.Get(ctx, "a"); !errors.Is(err, cache.ErrMiss) {
		t.Error("deleted key readable")
	}
	_ = s.Clear(ctx)
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d", s.Len())
	}
	if err := s.Ping(ctx); err != nil {
		t.Error(err)
	}
}
