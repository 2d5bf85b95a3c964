package core

import "sort"

// BridgePolicy sets the edge fields used for links inserted purely to merge
// disconnected components.
type BridgePolicy struct {
	PhysicalDistance int `yaml:"physicalDistance" json:"physicalDistance"`
	QoSWeight        int `yaml:"qosWeight" json:"qosWeight"`
}

// DefaultBridgePolicy matches the placeholder cost bridges have always used.
func DefaultBridgePolicy() BridgePolicy {
	return BridgePolicy{PhysicalDistance: 1, QoSWeight: 10}
}

// Bridge records one link added by EnsureConnected. From is the node that
// was unreached, To the lowest-indexed node already reached at that point.
type Bridge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// EnsureConnected returns a copy of t joined into a single connected
// component, plus the bridges it had to add.
//
// The walk is a breadth-first traversal from node 0. Each node still
// unreached, taken in increasing index order, is bridged to the
// lowest-indexed reached node, and the traversal continues from it to absorb
// its component. Existing links are never removed, and for a given input the
// bridges are always the same.
func EnsureConnected(t *Topology, policy BridgePolicy) (*Topology, []Bridge) {
	out := t.Clone()
	n := out.NodeCount()
	if n == 0 {
		return out, nil
	}

	visited := make([]bool, n)
	out.bfs(0, visited, nil)

	var bridges []Bridge
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		for j := 0; j < n; j++ {
			if !visited[j] {
				continue
			}
			// i is unreached and j reached, so they are distinct and unlinked.
			_ = out.AddEdge(i, j, policy.PhysicalDistance, policy.QoSWeight)
			bridges = append(bridges, Bridge{From: i, To: j})
			break
		}
		out.bfs(i, visited, nil)
	}
	return out, bridges
}

// bfs marks every node reachable from start in visited and appends the
// visiting order to order when it is non-nil.
func (t *Topology) bfs(start int, visited []bool, order *[]int) {
	queue := []int{start}
	visited[start] = true
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if order != nil {
			*order = append(*order, u)
		}
		for _, e := range t.adj[u] {
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
}

// IsConnected reports whether every node is reachable from every other.
// Topologies with zero or one node are connected.
func IsConnected(t *Topology) bool {
	return len(Components(t)) <= 1
}

// Components returns the connected components, each sorted ascending, in
// order of their lowest node.
func Components(t *Topology) [][]int {
	n := t.NodeCount()
	visited := make([]bool, n)
	var out [][]int
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		var comp []int
		t.bfs(i, visited, &comp)
		sort.Ints(comp)
		out = append(out, comp)
	}
	return out
}

// Discover runs a breadth-first discovery from source and returns the nodes
// in the order they were learned about. Congestion is ignored: discovery is
// about who is reachable over any link.
func Discover(t *Topology, source int) ([]int, error) {
	if t.NodeCount() == 0 {
		return nil, nil
	}
	if err := t.checkNode(source); err != nil {
		return nil, err
	}
	visited := make([]bool, t.NodeCount())
	order := make([]int, 0, t.NodeCount())
	t.bfs(source, visited, &order)
	return order, nil
}
