// Package product holds the small product catalog the caching endpoints
// read from.
//
// Two backends satisfy Store: an in-memory one for tests and local runs,
// and product/postgres for a real database. Seed fills either with the
// demo catalog.
package product
