package postgres_test

import (
	"context"
	"math/rand/v2"
	"os"
	"testing"

	"github.com/xraph/offload/product"
	"github.com/xraph/offload/product/postgres"
)

// newStore connects to OFFLOAD_TEST_DATABASE_URL or skips.
func newStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("OFFLOAD_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("OFFLOAD_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := postgres.New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStore_SeedAndList(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	n, err := product.Seed(ctx, s, rand.New(rand.NewPCG(1, 1)))
	if err != nil {
		t.Fatal(err)
	}
	if c, _ := s.Count(ctx); c != int64(n) {
		t.Fatalf("Count() = %d, want %d", c, n)
	}

	high, err := s.List(ctx, product.ListOpts{MinPrice: 100})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range high {
		if p.Price < 100 {
			t.Errorf("%s price %v below filter", p.Name, p.Price)
		}
	}
	first, _ := s.List(ctx, product.ListOpts{Limit: 10})
	if len(first) != 10 || first[0].Name != product.Names[0] {
		t.Errorf("first page = %d rows", len(first))
	}
}
