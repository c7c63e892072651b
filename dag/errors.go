package dag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCycleDetected is matched by every error reporting a cycle, whether it was
	// caught while inserting an edge or while computing an order.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrDuplicateEdge is returned when an identical edge already exists.
	ErrDuplicateEdge = errors.New("edge already exists")
)

// CycleError describes a rejected edge, or a graph that could not be ordered.
type CycleError[K comparable] struct {
	// Edge is set when the error rejects the edge From -> To. It is unset when
	// the cycle was found by TopologicalOrder.
	Edge     bool
	From, To K

	// Path lists the nodes of the cycle, starting and ending at From.
	// For an ordering failure it lists the nodes that could not be emitted.
	Path []K
}

func (e *CycleError[K]) Error() string {
	parts := make([]string, len(e.Path))
	for i, k := range e.Path {
		parts[i] = fmt.Sprint(k)
	}

	if !e.Edge {
		return fmt.Sprintf("cycle detected: %d node(s) could not be ordered: %s",
			len(e.Path), strings.Join(parts, ", "))
	}
	return fmt.Sprintf("cycle detected: edge %v -> %v closes %s",
		e.From, e.To, strings.Join(parts, " -> "))
}

// Is makes errors.Is(err, ErrCycleDetected) succeed for any CycleError.
func (e *CycleError[K]) Is(target error) bool {
	return target == ErrCycleDetected
}
