// Package offload moves heavy work off the request path and keeps expensive
// results close at hand. It pairs a Redis-backed background job queue with a
// cache-aside accessor and a full-response HTTP cache.
//
// Offload is a library first. Configure a store, register jobs as ordinary
// Go functions, and enqueue them from any process that shares the store.
//
// # Quick Start
//
//	rs, err := redis.Open(ctx, "redis://localhost:6379/0")
//	d, err := offload.New(
//	    offload.WithStore(rs),
//	    offload.WithConcurrency(4),
//	)
//	eng, err := engine.Build(d)
//	tasks.Register(eng, tasks.DefaultDelays(), nil)
//	j, err := tasks.SubmitDataset(ctx, eng, 100)
//	st, err := eng.Status(ctx, j.ID.String())
//
// # Architecture
//
// Each subsystem (job, cron) defines its own store interface and a single
// backend implements all of them. Caching is independent of the job engine:
// package cache holds the accessor and its stores, package httpcache wraps
// whole HTTP responses.
//
// Entity IDs are prefixed UUIDv7s ("job_0190c8..."), sortable by creation time. See package id.
package offload
