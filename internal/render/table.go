package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/signalsfoundry/mesh-simulator/core"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
}

func newLeftTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// WriteMatrix prints the QoS weight matrix of t with 0 for absent links.
func WriteMatrix(w io.Writer, t *core.Topology) error {
	if _, err := fmt.Fprintln(w, "Adjacency matrix (QoS weights):"); err != nil {
		return err
	}
	tw := newTabWriter(w)
	n := t.NodeCount()
	header := make([]string, 0, n+1)
	header = append(header, "")
	for j := 0; j < n; j++ {
		header = append(header, strconv.Itoa(j))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for i, row := range t.AdjacencyMatrix() {
		cells := make([]string, 0, n+1)
		cells = append(cells, strconv.Itoa(i))
		for _, v := range row {
			cells = append(cells, strconv.Itoa(v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}

// WriteNeighbors prints one node's direct neighbours and flags congested
// links.
func WriteNeighbors(w io.Writer, r core.NeighborReport) error {
	if r.Isolated {
		_, err := fmt.Fprintf(w, "Node %d is isolated.\n", r.Node)
		return err
	}
	if _, err := fmt.Fprintf(w, "Neighbours of node %d:\n", r.Node); err != nil {
		return err
	}
	tw := newLeftTabWriter(w)
	fmt.Fprintln(tw, "neighbour\tqos\tdistance\tstatus\t")
	for _, e := range r.Neighbors {
		status := "ok"
		if e.Congested {
			status = "congested"
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t\n", e.Neighbor, e.QoSWeight, e.PhysicalDistance, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d of %d links congested.\n", r.CongestedCount(), len(r.Neighbors))
	return err
}

// FormatPath renders a path as "0->1->2 (cost 7)" or a no-route marker.
func FormatPath(p core.Path) string {
	if !p.Reachable {
		return "no route"
	}
	hops := make([]string, len(p.Nodes))
	for i, v := range p.Nodes {
		hops[i] = strconv.Itoa(v)
	}
	return fmt.Sprintf("%s (cost %d)", strings.Join(hops, "->"), p.Cost)
}

// WriteRoutes prints the route report of one source, one line per
// destination.
func WriteRoutes(w io.Writer, source int, report []core.Path) error {
	if _, err := fmt.Fprintf(w, "Routes from node %d:\n", source); err != nil {
		return err
	}
	for _, p := range report {
		if _, err := fmt.Fprintf(w, "  %d -> %d: %s\n", p.Source, p.Destination, FormatPath(p)); err != nil {
			return err
		}
	}
	return nil
}

// WriteRoutingTable prints (destination, next hop, cost) rows for source.
func WriteRoutingTable(w io.Writer, source int, table []core.TableEntry) error {
	if _, err := fmt.Fprintf(w, "Routing table of node %d:\n", source); err != nil {
		return err
	}
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "destination\tnext hop\tcost\t")
	for _, e := range table {
		fmt.Fprintf(tw, "%d\t%d\t%d\t\n", e.Destination, e.NextHop, e.Cost)
	}
	return tw.Flush()
}

// WriteDiscovery prints the order in which nodes were discovered from
// source.
func WriteDiscovery(w io.Writer, source int, order []int) error {
	ids := make([]string, len(order))
	for i, v := range order {
		ids[i] = strconv.Itoa(v)
	}
	_, err := fmt.Fprintf(w, "Discovery from node %d: %s\n", source, strings.Join(ids, " "))
	return err
}

// WriteMobility prints the per-node displacement of a mobility step and
// its summary.
func WriteMobility(w io.Writer, step int, r core.MobilityReport) error {
	if _, err := fmt.Fprintf(w, "Mobility step %d:\n", step); err != nil {
		return err
	}
	tw := newLeftTabWriter(w)
	for _, m := range r.Moves {
		fmt.Fprintf(tw, "  node %d\t(%.1f, %.1f)\t->\t(%.1f, %.1f)\t\n", m.Node, m.From.X, m.From.Y, m.To.X, m.To.Y)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d links, %d components before reconnection, %d bridges, mean displacement %.2f (sd %.2f)\n",
		r.Edges, r.Components, len(r.Bridges), r.MeanDisplacement, r.StdDisplacement)
	return err
}
