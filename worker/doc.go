// Package worker runs queued jobs.
//
// An [Executor] runs one claimed job through the middleware chain and its
// registered handler, then records the outcome: SUCCESS with the encoded
// result, RETRY with a backoff delay, or FAILURE with the last error.
//
// A [Pool] owns the worker goroutines. Each one polls the store for a
// runnable job, hands it to the executor, and repeats. The pool also
// heartbeats the jobs it holds and resets jobs whose worker vanished.
package worker
