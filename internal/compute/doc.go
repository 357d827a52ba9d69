// Package compute provides the execution backends that run a step's phases.
//
// A backend receives the tasks of one phase (one per solver, or one per
// coupler in a dependency level), runs them, and returns only once all of
// them have finished:
//
//	backend := compute.AutoSelectBackend()
//	err := backend.Dispatch(ctx, tasks)
//
// Inside a task, batched modules split their lanes with Lanes:
//
//	backend.Lanes(n, func(start, end int) {
//		for i := start; i < end; i++ {
//			out[i] = in[i] * k
//		}
//	})
//
// Two backends are registered: "serial" and "cpu". Both return the error of
// the lowest-indexed failing task, and both recover task panics into
// *PanicError values.
package compute
