package pipeline

import "fmt"

// Results maps each task of a completed run to the value it returned.
type Results map[*Task]any

// Named returns the result of a task with the given name. Names are not unique;
// if several tasks share one, any of their results may be returned.
func (r Results) Named(name string) (any, bool) {
	for task, v := range r {
		if task.name == name {
			return v, true
		}
	}
	return nil, false
}

// Get returns the result of task as a T.
func Get[T any](r Results, task *Task) (T, error) {
	var zero T
	raw, ok := r[task]
	if !ok {
		return zero, fmt.Errorf("no result for task %s", task)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("result of task %s is %T, not %T", task, raw, zero)
	}
	return v, nil
}
