// Package engine wires all offload subsystems together and provides the
// application-level API for registering, enqueuing and polling work.
//
// The engine package exists to break an import cycle: the root offload
// package defines Entity and the sentinel errors (imported by job, cron,
// store and the rest) and therefore cannot import those packages back.
// Engine sits above all subsystem packages and below the application
// layer.
//
// # Building an Engine
//
//	d, err := offload.New(
//	    offload.WithStore(redisStore),
//	    offload.WithConcurrency(8),
//	)
//
//	eng, err := engine.Build(d,
//	    engine.WithExtension(myExtension),
//	    engine.WithBackoff(backoff.NewExponentialWithJitter(time.Second, time.Minute)),
//	    engine.WithQueueConfig(queue.Config{Name: "reports", MaxConcurrency: 2}),
//	)
//
// # Registering Work
//
//	engine.Register(eng, job.NewDefinition("add_numbers", addNumbers))
//
//	engine.RegisterCron(ctx, eng, &cron.Definition[struct{}]{
//	    Name:     "cleanup-old-data",
//	    Schedule: "@every 3m",
//	    JobName:  "cleanup_old_data",
//	})
//
// # Enqueuing and Polling
//
//	j, err := engine.Enqueue(ctx, eng, "add_numbers", AddInput{X: 1, Y: 2})
//	st, err := eng.Status(ctx, j.ID.String())
//
// A process that only enqueues and polls never calls Start. Workers call
// Start to run the pool and the cron scheduler, and Stop to drain them.
package engine
