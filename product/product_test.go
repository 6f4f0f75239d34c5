package product_test

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/xraph/offload/product"
)

func TestMemoryStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	s := product.NewMemoryStore()
	for _, price := range []float64{5, 100, 150, 99.99, 400} {
		if err := s.Create(ctx, &product.Product{Name: "p", Price: price}); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := s.List(ctx, product.ListOpts{})
	if len(all) != 5 {
		t.Fatalf("List() = %d rows", len(all))
	}
	for i, p := range all {
		if p.ID != int64(i+1) {
			t.Errorf("row %d has ID %d", i, p.ID)
		}
	}

	high, _ := s.List(ctx, product.ListOpts{MinPrice: 100})
	if len(high) != 3 {
		t.Errorf("MinPrice 100 = %d rows, want 3", len(high))
	}
	limited, _ := s.List(ctx, product.ListOpts{MinPrice: 100, Limit: 2})
	if len(limited) != 2 || limited[1].Price != 150 {
		t.Errorf("limited = %+v", limited)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := product.NewMemoryStore()
	p := &product.Product{Name: "Mouse", Price: 20}
	_ = s.Create(ctx, p)
	p.Name = "changed"

	rows, _ := s.List(ctx, product.ListOpts{})
	rows[0].Price = 0
	again, _ := s.List(ctx, product.ListOpts{})
	if again[0].Name != "Mouse" || again[0].Price != 20 {
		t.Errorf("stored row mutated: %+v", again[0])
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := product.NewMemoryStore()
	_ = s.Create(ctx, &product.Product{Name: "stale"})

	n, err := product.Seed(ctx, s, rand.New(rand.NewPCG(3, 4)))
	if err != nil {
		t.Fatal(err)
	}
	if n != len(product.Names) || n != 30 {
		t.Fatalf("Seed() = %d", n)
	}
	if c, _ := s.Count(ctx); c != 30 {
		t.Fatalf("Count() = %d", c)
	}

	rows, _ := s.List(ctx, product.ListOpts{})
	for i, p := range rows {
		if p.Name != product.Names[i] {
			t.Errorf("row %d name %q", i, p.Name)
		}
		if p.Price < 10 || p.Price > 999.99 {
			t.Errorf("%s price %v out of range", p.Name, p.Price)
		}
		if cents := p.Price * 100; math.Abs(cents-math.Round(cents)) > 1e-6 {
			t.Errorf("%s price %v not rounded to cents", p.Name, p.Price)
		}
		if p.Stock < 0 || p.Stock > 500 {
			t.Errorf("%s stock %d out of range", p.Name, p.Stock)
		}
		if p.Description == "" {
			t.Errorf("%s has no description", p.Name)
		}
	}
}
