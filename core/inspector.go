package core

import "sort"

// NeighborEntry is one direct neighbour of an inspected node.
type NeighborEntry struct {
	Neighbor         int  `json:"neighbor"`
	QoSWeight        int  `json:"qosWeight"`
	PhysicalDistance int  `json:"physicalDistance"`
	Congested        bool `json:"congested"`
}

// NeighborReport lists a node's direct neighbours by ascending id.
type NeighborReport struct {
	Node      int             `json:"node"`
	Neighbors []NeighborEntry `json:"neighbors"`
	// Isolated is set when the node has no links at all.
	Isolated bool `json:"isolated"`
}

// CongestedCount returns how many of the neighbours sit behind a congested
// link.
func (r NeighborReport) CongestedCount() int {
	n := 0
	for _, e := range r.Neighbors {
		if e.Congested {
			n++
		}
	}
	return n
}

// NeighborsOf reports v's direct neighbours. A link is congested when its
// QoS weight is strictly greater than congestedAbove. An empty topology
// yields an empty report.
func NeighborsOf(t *Topology, v, congestedAbove int) (NeighborReport, error) {
	if t.NodeCount() == 0 {
		return NeighborReport{Node: v, Neighbors: []NeighborEntry{}}, nil
	}
	if err := t.checkNode(v); err != nil {
		return NeighborReport{}, err
	}

	report := NeighborReport{Node: v, Neighbors: make([]NeighborEntry, 0, len(t.adj[v]))}
	for _, e := range t.adj[v] {
		report.Neighbors = append(report.Neighbors, NeighborEntry{
			Neighbor:         e.To,
			QoSWeight:        e.QoSWeight,
			PhysicalDistance: e.PhysicalDistance,
			Congested:        e.QoSWeight > congestedAbove,
		})
	}
	sort.Slice(report.Neighbors, func(i, j int) bool {
		return report.Neighbors[i].Neighbor < report.Neighbors[j].Neighbor
	})
	report.Isolated = len(report.Neighbors) == 0
	return report, nil
}

// CongestedLinks counts links whose QoS weight is strictly greater than
// congestedAbove.
func CongestedLinks(t *Topology, congestedAbove int) int {
	n := 0
	for _, e := range t.Edges() {
		if e.QoSWeight > congestedAbove {
			n++
		}
	}
	return n
}
