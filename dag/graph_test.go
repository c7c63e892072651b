package dag

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapshot captures the observable structure of a graph.
type snapshot struct {
	nodes []string
	succ  map[string][]string
	pred  map[string][]string
}

func takeSnapshot(g *Graph[string]) snapshot {
	s := snapshot{
		nodes: g.Nodes(),
		succ:  make(map[string][]string),
		pred:  make(map[string][]string),
	}
	for _, n := range s.nodes {
		s.succ[n] = g.Successors(n)
		s.pred[n] = g.Predecessors(n)
	}
	return s
}

// assertValidOrder checks that every node appears once and after its predecessors.
func assertValidOrder(t *testing.T, g *Graph[string], order []string) {
	t.Helper()
	require.Len(t, order, g.Len())

	position := make(map[string]int, len(order))
	for i, n := range order {
		_, seen := position[n]
		require.False(t, seen, "node %s emitted twice", n)
		position[n] = i
	}
	for _, n := range g.Nodes() {
		for _, s := range g.Successors(n) {
			assert.Less(t, position[n], position[s], "%s must come before %s", n, s)
		}
	}
}

func TestGraph_AddNode(t *testing.T) {
	g := New[string]()
	g.AddNode("a")
	g.AddNode("b")
	g.AddNode("a")

	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"a", "b"}, g.Nodes())
	assert.True(t, g.HasNode("a"))
	assert.False(t, g.HasNode("c"))
	assert.Empty(t, g.Successors("a"))
}

func TestGraph_AddEdge(t *testing.T) {
	t.Run("AutoInsertsNodes", func(t *testing.T) {
		g := New[string]()
		require.NoError(t, g.AddEdge("a", "b"))

		assert.Equal(t, []string{"a", "b"}, g.Nodes())
		assert.True(t, g.HasEdge("a", "b"))
		assert.False(t, g.HasEdge("b", "a"))
		assert.Equal(t, []string{"b"}, g.Successors("a"))
		assert.Equal(t, []string{"a"}, g.Predecessors("b"))
	})

	t.Run("PreservesInsertionOrder", func(t *testing.T) {
		g := New[string]()
		require.NoError(t, g.AddEdge("a", "c"))
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("x", "b"))

		assert.Equal(t, []string{"c", "b"}, g.Successors("a"))
		assert.Equal(t, []string{"a", "x"}, g.Predecessors("b"))
	})

	t.Run("DuplicateEdge", func(t *testing.T) {
		g := New[string]()
		require.NoError(t, g.AddEdge("a", "b"))
		before := takeSnapshot(g)

		err := g.AddEdge("a", "b")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateEdge)
		assert.Equal(t, before, takeSnapshot(g))
	})
}

func TestGraph_AddEdge_RejectsCycles(t *testing.T) {
	t.Run("SelfEdgeOnNewNode", func(t *testing.T) {
		g := New[string]()

		err := g.AddEdge("x", "x")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCycleDetected)
		assert.Equal(t, 0, g.Len(), "rejected self-edge must not insert the node")
	})

	t.Run("SelfEdgeOnZeroKey", func(t *testing.T) {
		g := New[string]()

		err := g.AddEdge("", "")
		var cycleErr *CycleError[string]
		require.True(t, errors.As(err, &cycleErr))
		assert.True(t, cycleErr.Edge)
		assert.Equal(t, `cycle detected: edge  ->  closes  -> `, err.Error())
		assert.NotContains(t, err.Error(), "could not be ordered")
	})

	t.Run("SelfEdgeOnExistingNode", func(t *testing.T) {
		g := New[string]()
		require.NoError(t, g.AddEdge("a", "b"))
		before := takeSnapshot(g)

		err := g.AddEdge("b", "b")
		assert.ErrorIs(t, err, ErrCycleDetected)
		assert.Equal(t, before, takeSnapshot(g))
	})

	t.Run("TwoNodeCycle", func(t *testing.T) {
		g := New[string]()
		require.NoError(t, g.AddEdge("a", "b"))
		before := takeSnapshot(g)

		err := g.AddEdge("b", "a")
		assert.ErrorIs(t, err, ErrCycleDetected)
		assert.Equal(t, before, takeSnapshot(g))
	})

	t.Run("LongCycleDescribesPath", func(t *testing.T) {
		g := New[string]()
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("c", "d"))
		before := takeSnapshot(g)

		err := g.AddEdge("d", "a")
		require.Error(t, err)

		var cycleErr *CycleError[string]
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, "d", cycleErr.From)
		assert.Equal(t, "a", cycleErr.To)
		require.NotEmpty(t, cycleErr.Path)
		assert.Equal(t, "d", cycleErr.Path[0])
		assert.Equal(t, "d", cycleErr.Path[len(cycleErr.Path)-1])
		assert.True(t, cycleErr.Edge)
		assert.Contains(t, err.Error(), "d -> a")

		assert.Equal(t, before, takeSnapshot(g))

		// The graph is still usable after a rejected insertion.
		require.NoError(t, g.AddEdge("a", "d"))
		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	})
}

func TestGraph_TopologicalOrder(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		order, err := New[string]().TopologicalOrder()
		require.NoError(t, err)
		assert.Empty(t, order)
	})

	t.Run("IsolatedNodesKeepRegistrationOrder", func(t *testing.T) {
		g := New[string]()
		g.AddNode("c")
		g.AddNode("a")
		g.AddNode("b")

		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b"}, order)
	})

	t.Run("FIFOTieBreak", func(t *testing.T) {
		// first -> second -> {third, fourth}
		g := New[string]()
		g.AddNode("first")
		g.AddNode("second")
		require.NoError(t, g.AddEdge("first", "second"))
		g.AddNode("third")
		require.NoError(t, g.AddEdge("second", "third"))
		g.AddNode("fourth")
		require.NoError(t, g.AddEdge("second", "fourth"))

		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second", "third", "fourth"}, order)
	})

	t.Run("Diamond", func(t *testing.T) {
		g := New[string]()
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("a", "c"))
		require.NoError(t, g.AddEdge("b", "d"))
		require.NoError(t, g.AddEdge("c", "d"))

		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	})

	t.Run("Deterministic", func(t *testing.T) {
		build := func() *Graph[string] {
			g := New[string]()
			for _, e := range [][2]string{{"r1", "x"}, {"r2", "x"}, {"r2", "y"}, {"x", "z"}, {"y", "z"}} {
				require.NoError(t, g.AddEdge(e[0], e[1]))
			}
			return g
		}

		first, err := build().TopologicalOrder()
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := build().TopologicalOrder()
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})

	t.Run("DetectsCycleInCorruptedGraph", func(t *testing.T) {
		g := New[string]()
		require.NoError(t, g.AddEdge("a", "b"))
		g.AddNode("c")

		// Bypass validation to simulate a corrupted adjacency structure.
		g.succ["b"] = append(g.succ["b"], "a")

		order, err := g.TopologicalOrder()
		assert.Nil(t, order)
		require.ErrorIs(t, err, ErrCycleDetected)

		var cycleErr *CycleError[string]
		require.True(t, errors.As(err, &cycleErr))
		assert.False(t, cycleErr.Edge)
		assert.ElementsMatch(t, []string{"a", "b"}, cycleErr.Path)
		assert.Contains(t, err.Error(), "could not be ordered")
	})
}

// TestGraph_RandomEdges inserts random edges and checks the graph stays ordered.
func TestGraph_RandomEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	g := New[string]()

	var rejected int
	for i := 0; i < 300; i++ {
		from := fmt.Sprintf("n%d", rng.Intn(25))
		to := fmt.Sprintf("n%d", rng.Intn(25))

		before := takeSnapshot(g)
		if err := g.AddEdge(from, to); err != nil {
			rejected++
			assert.Equal(t, before, takeSnapshot(g), "rejected edge %s -> %s mutated the graph", from, to)
			continue
		}
	}

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assertValidOrder(t, g, order)
	assert.Positive(t, rejected)
}
