// Package dag provides a directed acyclic graph that stays acyclic after every
// mutation and yields a deterministic topological order.
//
// Edges point from producer to consumer. Nodes are ordered by the time they were
// first seen, and that order is the tie-break whenever several nodes become ready
// at once, so identical registration sequences always produce identical orders.
//
//	g := dag.New[string]()
//	_ = g.AddEdge("extract", "split")
//	_ = g.AddEdge("split", "upload")
//	err := g.AddEdge("upload", "extract") // errors.Is(err, dag.ErrCycleDetected)
//	order, _ := g.TopologicalOrder()      // [extract split upload]
package dag

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"
)

// Graph is a directed acyclic graph keyed by K.
// It is not safe for concurrent mutation.
type Graph[K comparable] struct {
	// adj enforces acyclicity incrementally on every edge insertion.
	adj graph.Graph[K, K]

	nodes []K       // registration order
	index map[K]int // node -> position in nodes
	succ  map[K][]K // node -> successors, insertion order
	pred  map[K][]K // node -> predecessors, insertion order
}

// New creates an empty Graph.
func New[K comparable]() *Graph[K] {
	identity := func(k K) K { return k }
	return &Graph[K]{
		adj:   graph.New(identity, graph.Directed(), graph.PreventCycles()),
		index: make(map[K]int),
		succ:  make(map[K][]K),
		pred:  make(map[K][]K),
	}
}

// AddNode inserts k if it is not already present. It is idempotent.
func (g *Graph[K]) AddNode(k K) {
	if _, ok := g.index[k]; ok {
		return
	}
	// The vertex cannot already exist in adj since index mirrors it.
	_ = g.adj.AddVertex(k)
	g.index[k] = len(g.nodes)
	g.nodes = append(g.nodes, k)
}

// AddEdge records that to consumes the output of from, inserting either node
// if needed. An edge that would close a cycle, including a self-edge, returns a
// *CycleError and leaves the graph untouched: no edge is recorded and no node is
// auto-inserted. A repeated edge returns ErrDuplicateEdge.
func (g *Graph[K]) AddEdge(from, to K) error {
	if from == to {
		return &CycleError[K]{Edge: true, From: from, To: to, Path: []K{from, to}}
	}

	_, hasFrom := g.index[from]
	_, hasTo := g.index[to]

	// An edge touching a new node cannot close a cycle, so only edges between
	// existing nodes need the reachability check.
	if hasFrom && hasTo {
		if err := g.adj.AddEdge(from, to); err != nil {
			return g.edgeError(from, to, err)
		}
	} else {
		g.AddNode(from)
		g.AddNode(to)
		if err := g.adj.AddEdge(from, to); err != nil {
			return fmt.Errorf("adding edge %v -> %v: %w", from, to, err)
		}
	}

	g.succ[from] = append(g.succ[from], to)
	g.pred[to] = append(g.pred[to], from)
	return nil
}

// edgeError translates an insertion failure from the underlying graph.
func (g *Graph[K]) edgeError(from, to K, err error) error {
	switch {
	case errors.Is(err, graph.ErrEdgeAlreadyExists):
		return fmt.Errorf("%w: %v -> %v", ErrDuplicateEdge, from, to)
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		path := []K{from}
		back, pathErr := graph.ShortestPath(g.adj, to, from)
		if pathErr != nil {
			path = append(path, to, from)
		} else {
			path = append(path, back...)
		}
		return &CycleError[K]{Edge: true, From: from, To: to, Path: path}
	default:
		return fmt.Errorf("adding edge %v -> %v: %w", from, to, err)
	}
}

// TopologicalOrder returns every node exactly once, each after all of its
// predecessors, using Kahn's algorithm with a FIFO ready queue seeded in
// registration order. If the graph holds a cycle it returns a *CycleError
// listing the nodes that could not be ordered.
func (g *Graph[K]) TopologicalOrder() ([]K, error) {
	inDegree := make(map[K]int, len(g.nodes))
	for _, n := range g.nodes {
		for _, s := range g.succ[n] {
			inDegree[s]++
		}
	}

	queue := make([]K, 0, len(g.nodes))
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]K, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, s := range g.succ[current] {
			inDegree[s]--
			if inDegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var stuck []K
		for _, n := range g.nodes {
			if inDegree[n] > 0 {
				stuck = append(stuck, n)
			}
		}
		return nil, &CycleError[K]{Path: stuck}
	}
	return order, nil
}

// Nodes returns all nodes in registration order.
func (g *Graph[K]) Nodes() []K {
	return append([]K(nil), g.nodes...)
}

// Len returns the number of nodes.
func (g *Graph[K]) Len() int {
	return len(g.nodes)
}

// HasNode reports whether k is in the graph.
func (g *Graph[K]) HasNode(k K) bool {
	_, ok := g.index[k]
	return ok
}

// HasEdge reports whether the edge from -> to exists.
func (g *Graph[K]) HasEdge(from, to K) bool {
	for _, s := range g.succ[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Successors returns the consumers of k in the order their edges were added.
func (g *Graph[K]) Successors(k K) []K {
	return append([]K(nil), g.succ[k]...)
}

// Predecessors returns the producers of k in the order their edges were added.
func (g *Graph[K]) Predecessors(k K) []K {
	return append([]K(nil), g.pred[k]...)
}
