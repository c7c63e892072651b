// Package pipeline runs tasks wired into a dependency graph.
//
// # Overview
//
// A Pipeline owns a graph of tasks. Each call to Register adds a task and, at
// most, one producer it depends on. Registering the same task again with a
// different producer adds a further dependency, so fan-in is built one edge at
// a time. Fan-out needs nothing special: several tasks may depend on the same
// producer.
//
// The graph is checked for cycles on every Register. A registration that would
// close a cycle, including a task depending on itself, fails with an error
// matching ErrCycleDetected and leaves the pipeline exactly as it was.
//
// # Execution
//
// Run executes the tasks one at a time in topological order. When several tasks
// are ready at once they run in the order they were first registered, so a
// given sequence of Register calls always yields the same execution order.
//
// Every task runs exactly once per Run, however many consumers it has:
//
//   - A task with no predecessors receives the run's Args.
//   - A task with one predecessor receives that result; Input.Value returns it.
//   - A task with several predecessors is invoked once with all of their
//     results, ordered by when each dependency was registered.
//
// Run returns the result of every task. If a task fails, Run stops
// immediately, no downstream task executes, and a *TaskError naming the task
// is returned instead of results. There are no retries.
//
// The graph is never changed by Run, so a Pipeline can be run repeatedly with
// different Args; each run gets a fresh Results map.
//
// # Example
//
//	p := pipeline.New(pipeline.WithLogger(logger))
//
//	first := p.MustRegister(pipeline.NewTask("first", func(ctx context.Context, in pipeline.Input) (any, error) {
//	    return 20, nil
//	}), nil)
//
//	second := p.MustRegister(pipeline.NewTask("second", func(ctx context.Context, in pipeline.Input) (any, error) {
//	    x, err := pipeline.ValueAs[int](in)
//	    return x * 2, err
//	}), first)
//
//	results, err := p.Run(ctx, nil)
//	// results[second] == 40
//
// # Concurrency
//
// A Pipeline must not be registered into or run from several goroutines at
// once. Task bodies are free to use goroutines internally.
package pipeline
