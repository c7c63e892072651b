package pipeline

import (
	"errors"
	"fmt"

	"github.com/nomis52/gotranscribe/dag"
)

var (
	// ErrCycleDetected matches any registration or run that found a cycle.
	ErrCycleDetected = dag.ErrCycleDetected

	// ErrTaskFailed matches any *TaskError.
	ErrTaskFailed = errors.New("task failed")

	// ErrUnresolvedDependency matches any *UnresolvedDependencyError.
	ErrUnresolvedDependency = errors.New("unresolved dependency")

	// ErrInvalidTask is returned when registering a nil task or one without a body.
	ErrInvalidTask = errors.New("invalid task")
)

// CycleError describes the cycle a registration would have created.
type CycleError = dag.CycleError[*Task]

// TaskError reports the task whose body failed during a run.
type TaskError struct {
	Task *Task
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTaskFailed) succeed for any TaskError.
func (e *TaskError) Is(target error) bool {
	return target == ErrTaskFailed
}

// UnresolvedDependencyError reports a task whose predecessor had not produced a
// result when the task was about to run.
type UnresolvedDependencyError struct {
	Task       *Task
	Dependency *Task
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("task %s: result of dependency %s is not available", e.Task, e.Dependency)
}

func (e *UnresolvedDependencyError) Is(target error) bool {
	return target == ErrUnresolvedDependency
}

// ErrDuplicateDependency is returned when a task already depends on the given
// producer.
var ErrDuplicateDependency = dag.ErrDuplicateEdge
