package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// Args are the run-level values handed to tasks that have no predecessors.
type Args map[string]any

// TaskFunc is the body of a task. Its input and output types are defined by the
// caller; the pipeline passes them through without inspection.
type TaskFunc func(ctx context.Context, in Input) (any, error)

// Task is a unit of work. A *Task is its own identity: two tasks created by
// separate NewTask calls are always distinct, even if their names match.
type Task struct {
	name string
	fn   TaskFunc
}

// NewTask creates a task with a human readable name used in logs, errors and
// metrics.
func NewTask(name string, fn TaskFunc) *Task {
	return &Task{name: name, fn: fn}
}

// Name returns the task's name.
func (t *Task) Name() string {
	return t.name
}

// String implements fmt.Stringer.
func (t *Task) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.name
}

// Input is what a task receives when it runs.
type Input struct {
	// Args holds the run's initial arguments. It is only set for tasks with no
	// predecessors.
	Args Args

	// Results holds the outputs of the task's predecessors, ordered by when each
	// producer edge was registered.
	Results []any

	// Logger is scoped to this task and run.
	Logger *slog.Logger
}

// Value returns the single predecessor result, or nil when the task has zero or
// several predecessors.
func (in Input) Value() any {
	if len(in.Results) != 1 {
		return nil
	}
	return in.Results[0]
}

// ValueAs returns the single predecessor result as a T.
func ValueAs[T any](in Input) (T, error) {
	var zero T
	if len(in.Results) != 1 {
		return zero, fmt.Errorf("expected 1 predecessor result, got %d", len(in.Results))
	}
	v, ok := in.Results[0].(T)
	if !ok {
		return zero, fmt.Errorf("predecessor result is %T, not %T", in.Results[0], zero)
	}
	return v, nil
}

// ResultAs returns the i-th predecessor result as a T.
func ResultAs[T any](in Input, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(in.Results) {
		return zero, fmt.Errorf("predecessor result %d out of range (have %d)", i, len(in.Results))
	}
	v, ok := in.Results[i].(T)
	if !ok {
		return zero, fmt.Errorf("predecessor result %d is %T, not %T", i, in.Results[i], zero)
	}
	return v, nil
}

// ArgAs returns the named run argument as a T.
func ArgAs[T any](in Input, name string) (T, error) {
	var zero T
	raw, ok := in.Args[name]
	if !ok {
		return zero, fmt.Errorf("missing argument %q", name)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("argument %q is %T, not %T", name, raw, zero)
	}
	return v, nil
}
