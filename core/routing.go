package core

import (
	"container/heap"
	"math"
)

const (
	// Unreachable is the distance reported for nodes with no usable path.
	Unreachable = math.MaxInt
	// NoPredecessor marks the source and unreachable nodes.
	NoPredecessor = -1
)

// Routes is the single-source shortest-path result over links whose QoS
// weight is strictly below Threshold.
type Routes struct {
	Source    int `json:"source"`
	Threshold int `json:"threshold"`
	// Distance[v] is the least additive QoS cost from Source to v, or
	// Unreachable.
	Distance []int `json:"distance"`
	// Predecessor[v] is the node before v on the chosen path, or
	// NoPredecessor.
	Predecessor []int `json:"predecessor"`
}

// Path is a reconstructed route from the source to one destination.
type Path struct {
	Source      int   `json:"source"`
	Destination int   `json:"destination"`
	Nodes       []int `json:"nodes,omitempty"`
	Cost        int   `json:"cost"`
	Reachable   bool  `json:"reachable"`
}

// TableEntry is one row of a node's routing table.
type TableEntry struct {
	Destination int `json:"destination"`
	NextHop     int `json:"nextHop"`
	Cost        int `json:"cost"`
}

type queueItem struct {
	node  int
	dist  int
	index int
}

// routeQueue is a min-heap ordered by (dist, node). Ordering on the node id
// as well makes extraction, and therefore tie breaking between equal-cost
// paths, deterministic: among equally distant candidates the lowest node is
// settled first.
type routeQueue []*queueItem

func (q routeQueue) Len() int { return len(q) }

func (q routeQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node < q[j].node
}

func (q routeQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *routeQueue) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *routeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

// ComputeRoutes runs Dijkstra from source. Links with QoS weight >= threshold
// are congested and never relaxed, so a node reachable only through them is
// reported unreachable. A predecessor is only replaced by a strictly shorter
// path.
//
// An empty topology yields empty results rather than an error.
func ComputeRoutes(t *Topology, source, threshold int) (*Routes, error) {
	n := t.NodeCount()
	if n == 0 {
		return &Routes{Source: source, Threshold: threshold, Distance: []int{}, Predecessor: []int{}}, nil
	}
	if err := t.checkNode(source); err != nil {
		return nil, err
	}

	r := &Routes{
		Source:      source,
		Threshold:   threshold,
		Distance:    make([]int, n),
		Predecessor: make([]int, n),
	}
	for i := range r.Distance {
		r.Distance[i] = Unreachable
		r.Predecessor[i] = NoPredecessor
	}
	r.Distance[source] = 0

	settled := make([]bool, n)
	q := &routeQueue{}
	heap.Push(q, &queueItem{node: source, dist: 0})

	for q.Len() > 0 {
		item := heap.Pop(q).(*queueItem)
		u := item.node
		if settled[u] || item.dist > r.Distance[u] {
			continue
		}
		settled[u] = true

		for _, e := range t.adj[u] {
			if e.QoSWeight >= threshold || settled[e.To] {
				continue
			}
			alt := r.Distance[u] + e.QoSWeight
			if alt < r.Distance[e.To] {
				r.Distance[e.To] = alt
				r.Predecessor[e.To] = u
				heap.Push(q, &queueItem{node: e.To, dist: alt})
			}
		}
	}
	return r, nil
}

// Reachable reports whether dest has a usable path from the source.
func (r *Routes) Reachable(dest int) bool {
	if dest < 0 || dest >= len(r.Distance) {
		return false
	}
	return r.Distance[dest] != Unreachable
}

func (r *Routes) checkNode(v int) error {
	if v < 0 || v >= len(r.Distance) {
		return invalidNode(v, len(r.Distance))
	}
	return nil
}

// PathTo follows predecessors back from dest. An unreachable destination is
// not an error: it yields a Path with Reachable false and no nodes.
func (r *Routes) PathTo(dest int) (Path, error) {
	if err := r.checkNode(dest); err != nil {
		return Path{}, err
	}
	p := Path{Source: r.Source, Destination: dest}
	if !r.Reachable(dest) {
		return p, nil
	}

	for v := dest; v != NoPredecessor; v = r.Predecessor[v] {
		p.Nodes = append(p.Nodes, v)
		if v == r.Source {
			break
		}
	}
	for i, j := 0, len(p.Nodes)-1; i < j; i, j = i+1, j-1 {
		p.Nodes[i], p.Nodes[j] = p.Nodes[j], p.Nodes[i]
	}
	p.Cost = r.Distance[dest]
	p.Reachable = true
	return p, nil
}

// NextHop returns the first node after the source on the path to dest. ok is
// false for the source itself and for unreachable destinations.
func (r *Routes) NextHop(dest int) (hop int, ok bool, err error) {
	if err := r.checkNode(dest); err != nil {
		return 0, false, err
	}
	if dest == r.Source || !r.Reachable(dest) {
		return 0, false, nil
	}
	hop = dest
	for r.Predecessor[hop] != r.Source {
		hop = r.Predecessor[hop]
		if hop == NoPredecessor {
			return 0, false, nil
		}
	}
	return hop, true, nil
}

// Table lists (destination, next hop, cost) for every reachable destination
// other than the source, by ascending destination.
func (r *Routes) Table() []TableEntry {
	out := make([]TableEntry, 0, len(r.Distance))
	for dest := range r.Distance {
		hop, ok, _ := r.NextHop(dest)
		if !ok {
			continue
		}
		out = append(out, TableEntry{Destination: dest, NextHop: hop, Cost: r.Distance[dest]})
	}
	return out
}

// Report returns the path to every destination other than the source,
// including explicit no-route entries, by ascending destination.
func (r *Routes) Report() []Path {
	out := make([]Path, 0, len(r.Distance))
	for dest := range r.Distance {
		if dest == r.Source {
			continue
		}
		p, _ := r.PathTo(dest)
		out = append(out, p)
	}
	return out
}

// RoutingTable computes routes from source and returns its table.
func RoutingTable(t *Topology, source, threshold int) ([]TableEntry, error) {
	r, err := ComputeRoutes(t, source, threshold)
	if err != nil {
		return nil, err
	}
	return r.Table(), nil
}

// AllRoutingTables returns the routing table of every node, indexed by node.
func AllRoutingTables(t *Topology, threshold int) ([][]TableEntry, error) {
	out := make([][]TableEntry, t.NodeCount())
	for s := range out {
		table, err := RoutingTable(t, s, threshold)
		if err != nil {
			return nil, err
		}
		out[s] = table
	}
	return out, nil
}
