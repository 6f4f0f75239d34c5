// Package tasks defines the background jobs offload ships with: two heavy
// on-demand jobs, three periodic maintenance jobs and a small arithmetic
// job for smoke tests.
//
// The work itself is simulated. Each job sleeps for a configurable delay
// and returns randomized figures shaped like the real report.
//
//	tasks.Register(eng, tasks.DefaultDelays(), nil)
//	for _, def := range tasks.Schedules(tasks.DefaultSchedule()) {
//	    engine.RegisterCron(ctx, eng, def)
//	}
package tasks
