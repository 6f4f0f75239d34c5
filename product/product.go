package product

import (
	"context"
	"time"
)

// Product is one catalog row.
type Product struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Price       float64   `json:"price" db:"price"`
	Stock       int       `json:"stock" db:"stock"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ListOpts filters List. Zero values mean no filter.
type ListOpts struct {
	// MinPrice keeps products priced at or above it.
	MinPrice float64
	// Limit caps the number of rows returned.
	Limit int
}

// Store persists products. Lists are ordered by ID.
type Store interface {
	List(ctx context.Context, opts ListOpts) ([]*Product, error)
	Count(ctx context.Context) (int64, error)
	// Create inserts p and fills its ID and timestamps.
	Create(ctx context.Context, p *Product) error
	DeleteAll(ctx context.Context) error
}
