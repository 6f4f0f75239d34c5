// Package ext lets callers observe the job lifecycle.
//
// An extension implements [Extension] plus any of the hook interfaces it
// cares about:
//
//   - [JobEnqueued] after a job is durably queued
//   - [JobStarted] when a worker claims a job
//   - [JobCompleted] after a job reaches SUCCESS
//   - [JobRetrying] when a failed attempt is rescheduled
//   - [JobFailed] when a job reaches FAILURE
//   - [CronFired] after a periodic schedule enqueues its job
//   - [Shutdown] while the dispatcher stops
//
// The [Registry] fans each event out to the extensions implementing that
// hook, in registration order. Hook errors are logged and never reach the
// job pipeline.
package ext
