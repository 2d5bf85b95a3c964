package core

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidNode          = errors.New("invalid node")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrSelfLoop             = errors.New("self loop")
	ErrEdgeExists           = errors.New("edge already exists")
	ErrAsymmetricEdge       = errors.New("asymmetric edge")
	ErrNegativeWeight       = errors.New("negative edge weight")
)

// Topology is the weighted undirected graph of the mesh at one instant,
// together with the current and previous position of every node.
//
// A Topology is a value owned by whoever built it. The generator, the
// connectivity enforcer and the mobility engine never patch a Topology that
// somebody else may be reading: they build and return a new one.
type Topology struct {
	adj      [][]Edge
	pos      []Position
	prev     []Position
	moved    bool
	numEdges int
}

// NewTopology returns an edgeless topology with n nodes at the origin.
func NewTopology(n int) *Topology {
	if n < 0 {
		n = 0
	}
	return &Topology{
		adj:  make([][]Edge, n),
		pos:  make([]Position, n),
		prev: make([]Position, n),
	}
}

// NewTopologyAt returns an edgeless topology with one node per position.
// Previous positions start equal to the current ones.
func NewTopologyAt(positions []Position) *Topology {
	t := NewTopology(len(positions))
	copy(t.pos, positions)
	copy(t.prev, positions)
	return t
}

// NodeCount returns the number of nodes.
func (t *Topology) NodeCount() int {
	if t == nil {
		return 0
	}
	return len(t.adj)
}

// EdgeCount returns the number of undirected links.
func (t *Topology) EdgeCount() int {
	if t == nil {
		return 0
	}
	return t.numEdges
}

// Moved reports whether the topology was produced by a mobility step.
func (t *Topology) Moved() bool {
	return t != nil && t.moved
}

func (t *Topology) checkNode(v int) error {
	if v < 0 || v >= t.NodeCount() {
		return invalidNode(v, t.NodeCount())
	}
	return nil
}

func invalidNode(v, n int) error {
	return fmt.Errorf("%w: %d (node count %d)", ErrInvalidNode, v, n)
}

// AddEdge inserts the symmetric pair (u,v) and (v,u). It refuses self loops,
// out-of-range endpoints, negative costs and a second link between the same
// pair.
//
// AddEdge mutates t; it is meant for code that is still building a topology
// it owns.
func (t *Topology) AddEdge(u, v, physicalDistance, qosWeight int) error {
	if err := t.checkNode(u); err != nil {
		return err
	}
	if err := t.checkNode(v); err != nil {
		return err
	}
	if u == v {
		return fmt.Errorf("%w: node %d", ErrSelfLoop, u)
	}
	if physicalDistance < 0 || qosWeight < 0 {
		return fmt.Errorf("%w: (%d,%d) distance %d qos %d", ErrNegativeWeight, u, v, physicalDistance, qosWeight)
	}
	if t.HasEdge(u, v) {
		return fmt.Errorf("%w: (%d,%d)", ErrEdgeExists, u, v)
	}
	t.adj[u] = append(t.adj[u], Edge{To: v, PhysicalDistance: physicalDistance, QoSWeight: qosWeight})
	t.adj[v] = append(t.adj[v], Edge{To: u, PhysicalDistance: physicalDistance, QoSWeight: qosWeight})
	t.numEdges++
	return nil
}

// HasEdge reports whether u and v are directly linked. Out-of-range nodes
// are never linked.
func (t *Topology) HasEdge(u, v int) bool {
	_, ok := t.edge(u, v)
	return ok
}

// Weight returns the QoS weight of the (u,v) link.
func (t *Topology) Weight(u, v int) (int, bool) {
	e, ok := t.edge(u, v)
	return e.QoSWeight, ok
}

func (t *Topology) edge(u, v int) (Edge, bool) {
	if t.checkNode(u) != nil || t.checkNode(v) != nil {
		return Edge{}, false
	}
	// Scan the shorter list.
	a, b := u, v
	if len(t.adj[b]) < len(t.adj[a]) {
		a, b = b, a
	}
	for _, e := range t.adj[a] {
		if e.To == b {
			return e, true
		}
	}
	return Edge{}, false
}

// Neighbors returns a copy of v's adjacency list in insertion order.
func (t *Topology) Neighbors(v int) ([]Edge, error) {
	if err := t.checkNode(v); err != nil {
		return nil, err
	}
	out := make([]Edge, len(t.adj[v]))
	copy(out, t.adj[v])
	return out, nil
}

// Degree returns the number of links at v.
func (t *Topology) Degree(v int) (int, error) {
	if err := t.checkNode(v); err != nil {
		return 0, err
	}
	return len(t.adj[v]), nil
}

// Position returns v's current position.
func (t *Topology) Position(v int) (Position, error) {
	if err := t.checkNode(v); err != nil {
		return Position{}, err
	}
	return t.pos[v], nil
}

// PreviousPosition returns v's position before the last mobility step.
func (t *Topology) PreviousPosition(v int) (Position, error) {
	if err := t.checkNode(v); err != nil {
		return Position{}, err
	}
	return t.prev[v], nil
}

// Positions returns a copy of all current positions indexed by node.
func (t *Topology) Positions() []Position {
	out := make([]Position, t.NodeCount())
	if t != nil {
		copy(out, t.pos)
	}
	return out
}

// Nodes lists every node with its current and previous position, by id.
func (t *Topology) Nodes() []NodeRecord {
	out := make([]NodeRecord, 0, t.NodeCount())
	for i := 0; i < t.NodeCount(); i++ {
		out = append(out, NodeRecord{
			ID:       i,
			Position: t.pos[i],
			Previous: t.prev[i],
			Moved:    t.moved,
		})
	}
	return out
}

// Edges lists every undirected link exactly once with A < B, ordered by
// (A, B).
func (t *Topology) Edges() []EdgeRecord {
	out := make([]EdgeRecord, 0, t.EdgeCount())
	for u := 0; u < t.NodeCount(); u++ {
		for _, e := range t.adj[u] {
			if u < e.To {
				out = append(out, EdgeRecord{
					A:                u,
					B:                e.To,
					QoSWeight:        e.QoSWeight,
					PhysicalDistance: e.PhysicalDistance,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// AdjacencyMatrix returns the QoS weight matrix with 0 for absent links.
// A present link with weight 0 is indistinguishable from no link here; use
// Edges when that matters.
func (t *Topology) AdjacencyMatrix() [][]int {
	n := t.NodeCount()
	m := make([][]int, n)
	for i := range m {
		m[i] = make([]int, n)
		for _, e := range t.adj[i] {
			m[i][e.To] = e.QoSWeight
		}
	}
	return m
}

// Clone returns a deep copy.
func (t *Topology) Clone() *Topology {
	if t == nil {
		return NewTopology(0)
	}
	c := &Topology{
		adj:      make([][]Edge, len(t.adj)),
		pos:      make([]Position, len(t.pos)),
		prev:     make([]Position, len(t.prev)),
		moved:    t.moved,
		numEdges: t.numEdges,
	}
	for i, list := range t.adj {
		c.adj[i] = append([]Edge(nil), list...)
	}
	copy(c.pos, t.pos)
	copy(c.prev, t.prev)
	return c
}

// Validate checks the structural invariants: no self loops, at most one link
// per unordered pair, and every link mirrored with the same weights.
func (t *Topology) Validate() error {
	for u := 0; u < t.NodeCount(); u++ {
		seen := make(map[int]struct{}, len(t.adj[u]))
		for _, e := range t.adj[u] {
			if e.To == u {
				return fmt.Errorf("%w: node %d", ErrSelfLoop, u)
			}
			if e.To < 0 || e.To >= t.NodeCount() {
				return fmt.Errorf("%w: node %d lists neighbour %d", ErrInvalidNode, u, e.To)
			}
			if _, dup := seen[e.To]; dup {
				return fmt.Errorf("%w: (%d,%d)", ErrEdgeExists, u, e.To)
			}
			seen[e.To] = struct{}{}

			back, ok := t.findIn(e.To, u)
			if !ok || back.QoSWeight != e.QoSWeight || back.PhysicalDistance != e.PhysicalDistance {
				return fmt.Errorf("%w: (%d,%d)", ErrAsymmetricEdge, u, e.To)
			}
		}
	}
	return nil
}

func (t *Topology) findIn(from, to int) (Edge, bool) {
	for _, e := range t.adj[from] {
		if e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}
