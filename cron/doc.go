// Package cron enqueues jobs on a recurring schedule.
//
// An [Entry] is the persisted form of a schedule: a cron expression, the
// job name to enqueue, and a static payload. Expressions are parsed by
// robfig/cron and accept both five-field specs ("0 8 * * *") and
// descriptors ("@every 3m").
//
// Register entries at startup through engine.RegisterCron:
//
//	engine.RegisterCron(ctx, eng, cron.Definition[struct{}]{
//	    Name:     "cleanup-old-data",
//	    Schedule: "@every 3m",
//	    JobName:  "cleanup_old_data",
//	})
//
// The [Scheduler] checks for due entries on every tick. Each due entry is
// fired under a per-entry lock held in the store, so several processes may
// run a scheduler against the same store and each occurrence still fires
// at most once.
package cron
