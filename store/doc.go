// Package store defines the composite persistence interface used by the
// engine. It plays both broker (queued jobs) and result store (finished
// jobs) for the dispatcher, and holds the cron entries.
//
// # Backends
//
//   - store/memory: in-process, for tests and single-process development
//   - store/redis: Redis hashes and sorted sets via go-redis
//
// # Usage
//
//	rs, err := redis.Open(ctx, "redis://localhost:6379/0", redis.WithResultTTL(24*time.Hour))
//	if err != nil {
//	    return err
//	}
//	d, err := offload.New(offload.WithStore(rs))
package store
