package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/offload"
	"github.com/xraph/offload/cache"
	"github.com/xraph/offload/cache/redis"
)

func newStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.New(client, opts...), mr
}

func TestStore_SetGetTTL(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "heavy_computation_result", []byte("333283335000"), 300*time.Second); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("offload:cache:heavy_computation_result") {
		t.Fatalf("key not namespaced; keys = %v", mr.Keys())
	}
	if ttl := mr.TTL("offload:cache:heavy_computation_result"); ttl != 300*time.Second {
		t.Errorf("TTL = %v, want 300s", ttl)
	}

	v, err := s.Get(ctx, "heavy_computation_result")
	if err != nil || string(v) != "333283335000" {
		t.Fatalf("Get = %q, %v", v, err)
	}

	mr.FastForward(301 * time.Second)
	if _, err := s.Get(ctx, "heavy_computation_result"); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("expired key: err = %v, want ErrMiss", err)
	}
}

func TestStore_ClearKeepsForeignKeys(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "page:GET:/cache/full-view/", "template.cache.product_list"} {
		_ = s.Set(ctx, k, []byte("x"), time.Minute)
	}
	_ = mr.Set("offload:job:job_123", "job data")

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if keys := mr.Keys(); len(keys) != 1 || keys[0] != "offload:job:job_123" {
		t.Errorf("keys after Clear = %v, want only the job key", keys)
	}
}

func TestStore_Delete(t *testing.T) {
	s, _ := newStore(t, redis.WithPrefix("demo:"))
	ctx := context.Background()
	_ = s.Set(ctx, "k", []byte("v"), 0)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("deleted key: err = %v", err)
	}
}

func TestStore_BackendDown(t *testing.T) {
	s, mr := newStore(t)
	mr.Close()
	ctx := context.Background()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, offload.ErrCacheBackend) {
		t.Errorf("Get = %v, want ErrCacheBackend", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, offload.ErrCacheBackend) {
		t.Errorf("Ping = %v, want ErrCacheBackend", err)
	}

	acc := cache.New(s, cache.WithBypassOnError())
	v, hit, err := cache.GetOrCompute(ctx, acc, "k", time.Minute, func(context.Context) (int, error) { return 4, nil })
	if err != nil || hit || v != 4 {
		t.Errorf("bypass over a dead backend = %d, %v, %v", v, hit, err)
	}
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := redis.Open(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
