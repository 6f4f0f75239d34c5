// Package queue gates how fast and how many jobs a worker pool takes from
// each named queue.
//
// Every job carries a Queue name (default "default"). A [Config] puts a
// concurrency cap or a token-bucket rate limit on one queue:
//
//	m := queue.NewManager(
//	    queue.Config{Name: "reports", MaxConcurrency: 2},
//	    queue.Config{Name: "bulk", RateLimit: 5, RateBurst: 10},
//	)
//	if m.Acquire("reports") {
//	    defer m.Release("reports")
//	    // run the job
//	}
//
// Queues without a Config are only bounded by the pool's own concurrency.
package queue
