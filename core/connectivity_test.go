package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

func TestEnsureConnectedBridgesInIndexOrder(t *testing.T) {
	// Components {0,1}, {2,3}, {4}.
	tp := NewTopology(5)
	mustAddEdge(t, tp, 0, 1, 3, 5)
	mustAddEdge(t, tp, 2, 3, 2, 4)

	out, bridges := EnsureConnected(tp, DefaultBridgePolicy())

	require.Equal(t, []Bridge{{From: 2, To: 0}, {From: 4, To: 0}}, bridges)
	require.True(t, IsConnected(out))
	assertStructure(t, out)

	w, ok := out.Weight(2, 0)
	require.True(t, ok)
	require.Equal(t, 10, w)

	// Existing edges are preserved, and the input is untouched.
	require.True(t, out.HasEdge(0, 1))
	require.True(t, out.HasEdge(2, 3))
	require.Equal(t, 2, tp.EdgeCount())
	require.Len(t, Components(tp), 3)
}

func TestEnsureConnectedLeavesConnectedGraphAlone(t *testing.T) {
	tp := NewTopology(3)
	mustAddEdge(t, tp, 0, 1, 1, 1)
	mustAddEdge(t, tp, 1, 2, 1, 1)

	out, bridges := EnsureConnected(tp, DefaultBridgePolicy())
	require.Empty(t, bridges)
	require.Equal(t, tp.Edges(), out.Edges())
}

func TestEnsureConnectedIsDeterministic(t *testing.T) {
	tp := NewTopology(8)
	mustAddEdge(t, tp, 5, 6, 1, 1)
	mustAddEdge(t, tp, 1, 7, 1, 1)

	_, first := EnsureConnected(tp, DefaultBridgePolicy())
	_, second := EnsureConnected(tp, DefaultBridgePolicy())
	require.Equal(t, first, second)
	// 1 reaches 7; 2,3,4 and 5 (with 6) each need a bridge to node 0.
	require.Equal(t, []Bridge{{1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}}, first)
}

func TestEnsureConnectedEmpty(t *testing.T) {
	out, bridges := EnsureConnected(NewTopology(0), DefaultBridgePolicy())
	require.Equal(t, 0, out.NodeCount())
	require.Nil(t, bridges)
}

func TestEnsureConnectedMatchesGonumComponents(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		rng := newTestRand(seed)
		tp := NewTopology(30)
		for i := 0; i < 30; i++ {
			for j := i + 1; j < 30; j++ {
				if rng.Float64() < 0.04 {
					mustAddEdge(t, tp, i, j, 1, rng.IntN(21))
				}
			}
		}

		require.Equal(t, len(gonumComponents(tp)), len(Components(tp)), "seed %d", seed)

		out, _ := EnsureConnected(tp, DefaultBridgePolicy())
		require.Len(t, gonumComponents(out), 1, "seed %d", seed)
		for _, e := range tp.Edges() {
			require.True(t, out.HasEdge(e.A, e.B), "seed %d lost edge %+v", seed, e)
		}
		assertStructure(t, out)
	}
}

func TestDiscoverOrder(t *testing.T) {
	tp := NewTopology(5)
	mustAddEdge(t, tp, 0, 2, 1, 1)
	mustAddEdge(t, tp, 0, 1, 1, 1)
	mustAddEdge(t, tp, 2, 3, 1, 20)

	order, err := Discover(tp, 0)
	require.NoError(t, err)
	require.Equal(t, []int{0, 2, 1, 3}, order)

	_, err = Discover(tp, 5)
	require.True(t, errors.Is(err, ErrInvalidNode))
}

func gonumComponents(tp *Topology) [][]int {
	g := simple.NewUndirectedGraph()
	for i := 0; i < tp.NodeCount(); i++ {
		g.AddNode(simple.Node(i))
	}
	for _, e := range tp.Edges() {
		g.SetEdge(simple.Edge{F: simple.Node(e.A), T: simple.Node(e.B)})
	}
	var out [][]int
	for _, comp := range topo.ConnectedComponents(g) {
		ids := make([]int, 0, len(comp))
		for _, n := range comp {
			ids = append(ids, int(n.ID()))
		}
		out = append(out, ids)
	}
	return out
}
