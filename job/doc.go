// Package job defines the job entity, its state machine, typed definitions,
// the handler registry, the status view, and the store interface.
//
// # Job Entity
//
// A [Job] is one unit of background work. It carries a JSON payload, a JSON
// result once it succeeds, and moves through these states:
//
//	PENDING → STARTED → SUCCESS
//	PENDING → STARTED → FAILURE
//	PENDING → STARTED → RETRY → STARTED → ...
//
// SUCCESS and FAILURE are terminal. Only workers mutate a job after it has
// been enqueued.
//
// # Defining a Job
//
// Each job kind is a [Definition] pairing a name with a payload type and a
// result type:
//
//	var Add = job.NewDefinition("add_numbers",
//	    func(ctx context.Context, in AddInput) (int, error) {
//	        return in.X + in.Y, nil
//	    },
//	)
//
// # Registry
//
// [Registry] maps job names to type-erased [HandlerFunc] values. Register
// definitions at startup via [RegisterDefinition].
//
// # Status
//
// [Status] is the read-only projection returned to pollers. See [StatusOf].
package job
