package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/nomis52/gotranscribe/dag"
	"github.com/nomis52/gotranscribe/logging"
	"github.com/nomis52/gotranscribe/metrics"
)

// Pipeline registers tasks into a dependency graph and runs them.
type Pipeline struct {
	logger  *slog.Logger
	logHook logging.LoggerHook
	metrics *runMetrics

	graph *dag.Graph[*Task]
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for pipeline and task logs.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger.With("component", "pipeline")
	}
}

// WithLogHook wraps each task's logger, for example to capture its records.
func WithLogHook(hook logging.LoggerHook) Option {
	return func(p *Pipeline) {
		p.logHook = hook
	}
}

// WithMetrics reports task and run outcomes to the given registry.
func WithMetrics(registry metrics.Registry) Option {
	return func(p *Pipeline) {
		p.metrics = &runMetrics{registry: registry}
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger: slog.Default().With("component", "pipeline"),
		graph:  dag.New[*Task](),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics != nil {
		if err := p.metrics.init(); err != nil {
			p.logger.Warn("metrics disabled", "error", err)
			p.metrics = nil
		}
	}
	return p
}

// Register adds task to the pipeline. If dependsOn is not nil, task will receive
// dependsOn's result when the pipeline runs; dependsOn is registered too if it
// was not already. Calling Register again for the same task with another
// dependency adds a further producer.
//
// If the dependency would create a cycle, Register returns an error matching
// ErrCycleDetected and the pipeline is left unchanged. The task is returned
// as-is so registration can wrap a task's definition.
func (p *Pipeline) Register(task *Task, dependsOn *Task) (*Task, error) {
	if task == nil || task.fn == nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTask, task)
	}
	if dependsOn != nil && dependsOn.fn == nil {
		return nil, fmt.Errorf("%w: dependency %v has no body", ErrInvalidTask, dependsOn)
	}

	if dependsOn == task {
		// Rejected before the node is inserted.
		return nil, p.graph.AddEdge(dependsOn, task)
	}

	p.graph.AddNode(task)
	if dependsOn != nil {
		if err := p.graph.AddEdge(dependsOn, task); err != nil {
			p.logger.Debug("dependency rejected", "task", task.name, "depends_on", dependsOn.name, "error", err)
			return nil, err
		}
	}

	p.logger.Debug("task registered", "task", task.name, "depends_on", dependsOn.String(), "total", p.graph.Len())
	return task, nil
}

// MustRegister is like Register but panics on error. It suits pipelines whose
// shape is fixed at compile time.
func (p *Pipeline) MustRegister(task *Task, dependsOn *Task) *Task {
	t, err := p.Register(task, dependsOn)
	if err != nil {
		panic(err)
	}
	return t
}

// Tasks returns the registered tasks in registration order.
func (p *Pipeline) Tasks() []*Task {
	return p.graph.Nodes()
}

// Order returns the order in which Run will execute the tasks.
func (p *Pipeline) Order() ([]*Task, error) {
	return p.graph.TopologicalOrder()
}

// Dependencies returns the producers of task in registration order.
func (p *Pipeline) Dependencies(task *Task) []*Task {
	return p.graph.Predecessors(task)
}

// Run executes every task exactly once, in dependency order, one at a time.
//
// Tasks without predecessors receive args. Every other task receives the
// results of its predecessors, in the order those dependencies were
// registered. The first task error stops the run: no later task executes and
// Run returns a *TaskError and no results.
//
// The pipeline is not modified, so Run may be called again with other args.
func (p *Pipeline) Run(ctx context.Context, args Args) (Results, error) {
	runID := uuid.NewString()
	runLogger := p.logger.With("run_id", runID)

	order, err := p.graph.TopologicalOrder()
	if err != nil {
		runLogger.Error("cannot order tasks", "error", err)
		p.metrics.runDone(err)
		return nil, fmt.Errorf("ordering tasks: %w", err)
	}

	runLogger.Info("starting run", "task_count", len(order))
	start := time.Now()

	completed := make(Results, len(order))
	for _, task := range order {
		in, err := p.inputFor(task, completed, args)
		if err != nil {
			runLogger.Error("cannot resolve task input", "task", task.name, "error", err)
			p.metrics.runDone(err)
			return nil, err
		}
		in.Logger = p.taskLogger(runID, task)

		taskStart := time.Now()
		in.Logger.Debug("task started", "inputs", len(in.Results))
		out, err := task.fn(ctx, in)
		elapsed := time.Since(taskStart)
		p.metrics.taskDone(task, err, elapsed)

		if err != nil {
			in.Logger.Error("task failed", "error", err, "duration", elapsed)
			taskErr := &TaskError{Task: task, Err: err}
			p.metrics.runDone(taskErr)
			return nil, taskErr
		}
		in.Logger.Debug("task completed", "duration", elapsed)
		completed[task] = out
	}

	runLogger.Info("run completed", "task_count", len(order), "duration", time.Since(start))
	p.metrics.runDone(nil)
	return completed, nil
}

// inputFor builds a task's input from the run args or its predecessors' results.
func (p *Pipeline) inputFor(task *Task, completed Results, args Args) (Input, error) {
	deps := p.graph.Predecessors(task)
	if len(deps) == 0 {
		return Input{Args: maps.Clone(args)}, nil
	}

	results := make([]any, 0, len(deps))
	for _, dep := range deps {
		v, ok := completed[dep]
		if !ok {
			return Input{}, &UnresolvedDependencyError{Task: task, Dependency: dep}
		}
		results = append(results, v)
	}
	return Input{Results: results}, nil
}

// taskLogger attaches the run and task attributes after the hook so that a
// capturing hook records them.
func (p *Pipeline) taskLogger(runID string, task *Task) *slog.Logger {
	logger := p.logger
	if p.logHook != nil {
		logger = p.logHook.LoggerForTask(logger, task.name)
	}
	return logger.With("run_id", runID, "task", task.name)
}
