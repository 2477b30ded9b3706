// Package engine runs processors: it applies ingress latency, executes the
// processor's steps in order and shapes the response from the outcome.
//
// # Request processors
//
// Process looks up a RequestProcessor by name and runs it:
//
//	eng := engine.New(reg, engine.WithLogger(log), engine.WithObserver(collector))
//	res, err := eng.Process(ctx, "checkout")
//
// The outcome maps onto the result as follows:
//
//	Success        Result{Body: *processor.SuccessPayload}
//	SimulatedFail  Result{Body: *processor.ErrorPayload}
//	Fail           ErrProcessingFailed (failed precondition)
//
// A blank name or a StartupProcessor name is an invalid argument and an
// unknown name is not found. Cancellation of ctx aborts the steps and is
// returned as is.
//
// # Startup processors
//
// RunStartup runs every StartupProcessor once when the node starts.
// Synchronous ones run in name order before it returns; asynchronous ones run
// in the background until Wait observes them finish.
package engine
