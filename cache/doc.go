// Package cache implements cache-aside reads over a pluggable byte store.
//
// An Accessor pairs a Store with a Codec. GetOrCompute returns the cached
// value for a key when present; otherwise it runs the compute function,
// stores the result with a TTL and returns it:
//
//	acc := cache.New(redisStore)
//	sum, hit, err := cache.GetOrCompute(ctx, acc, "heavy_computation_result", 5*time.Minute,
//	    func(ctx context.Context) (int, error) { return heavySum(ctx) })
//
// Concurrent misses on one key each recompute unless WithSingleFlight is
// set. Store failures other than a miss wrap offload.ErrCacheBackend and
// fail the call unless WithBypassOnError is set.
package cache
