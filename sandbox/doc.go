// Package sandbox evaluates scripts in an isolated, time-bounded interpreter.
//
// A script is Go source without a package clause: declarations and
// statements may be mixed, and a trailing expression becomes the result of
// the run. Every evaluation gets a fresh interpreter with an allow-listed
// subset of the standard library, the resolved artifacts and its own output
// buffers, so concurrent evaluations never share state.
//
// Evaluate never fails because of the script itself: compile errors, panics
// and timeouts are reported in the returned Outcome. An error is returned
// only when the environment cannot be prepared, for example when an
// artifact does not load.
//
// Usage:
//
//	ev, err := sandbox.NewEvaluator(logger, cfg)
//	outcome, err := ev.Evaluate(ctx, "x := 21\nx * 2", nil, 30*time.Second)
//	if err == nil && outcome.Kind == sandbox.Success {
//	    fmt.Println(*outcome.ReturnValue) // 42
//	}
//
// A run that times out is abandoned rather than killed: interpreted loops
// observe the cancellation, but a blocking call into compiled code keeps its
// goroutine until it returns.
package sandbox
