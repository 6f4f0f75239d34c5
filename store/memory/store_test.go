package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/offload"
	"github.com/xraph/offload/store"
	"github.com/xraph/offload/store/memory"
	"github.com/xraph/offload/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

func TestClosedStoreRejectsWork(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	_ = s.Close()

	if err := s.Ping(ctx); !errors.Is(err, offload.ErrStoreClosed) {
		t.Errorf("Ping after close = %v", err)
	}
	if err := s.EnqueueJob(ctx, storetest.NewJob("add_numbers", "default")); !errors.Is(err, offload.ErrStoreClosed) {
		t.Errorf("EnqueueJob after close = %v", err)
	}
}

func TestReturnedJobsAreCopies(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	j := storetest.NewJob("add_numbers", "default")
	_ = s.EnqueueJob(ctx, j)

	got, _ := s.GetJob(ctx, j.ID)
	got.Name = "mutated"

	again, _ := s.GetJob(ctx, j.ID)
	if again.Name != "add_numbers" {
		t.Fatal("caller mutation leaked into the store")
	}
}
