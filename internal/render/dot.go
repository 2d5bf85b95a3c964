// Package render turns topologies into Graphviz DOT descriptions and plain
// console tables. Rendering DOT to an image is left to Graphviz.
package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/signalsfoundry/mesh-simulator/core"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// GraphName is the DOT graph identifier used for every export.
const GraphName = "G"

// Canvas is the bounding box, in points, that node positions are pinned to.
const Canvas = "0,0,500,500"

var (
	graphAttrs = attrs{
		{Key: "bb", Value: Canvas},
		{Key: "inputscale", Value: "72"},
		{Key: "splines", Value: "line"},
		{Key: "pad", Value: "0.2"},
		{Key: "outputorder", Value: "edgesfirst"},
		{Key: "bgcolor", Value: "white"},
	}
	nodeAttrs = attrs{
		{Key: "shape", Value: "circle"},
		{Key: "style", Value: "filled,setlinewidth(1.5)"},
		{Key: "fillcolor", Value: "#E0F7FA"},
		{Key: "color", Value: "#006064"},
		{Key: "fontname", Value: "Helvetica-Bold"},
		{Key: "fontsize", Value: "10"},
		{Key: "fixedsize", Value: "true"},
		{Key: "width", Value: "0.4"},
	}
	edgeAttrs = attrs{
		{Key: "fontname", Value: "Helvetica"},
		{Key: "fontsize", Value: "8"},
		{Key: "fontcolor", Value: "#555555"},
		{Key: "color", Value: "#455A64"},
	}
)

type attrs []encoding.Attribute

func (a attrs) Attributes() []encoding.Attribute { return a }

// meshNode is a topology node, or the ghost marking where it stood before
// the last mobility step.
type meshNode struct {
	id    int64
	name  string
	attrs attrs
}

func (n meshNode) ID() int64 { return n.id }
func (n meshNode) DOTID() string { return n.name }
func (n meshNode) Attributes() []encoding.Attribute { return n.attrs }

type meshEdge struct {
	from, to graph.Node
	attrs    attrs
}

func (e meshEdge) From() graph.Node { return e.from }
func (e meshEdge) To() graph.Node { return e.to }
func (e meshEdge) ReversedEdge() graph.Edge { return meshEdge{from: e.to, to: e.from, attrs: e.attrs} }
func (e meshEdge) Attributes() []encoding.Attribute { return e.attrs }

// meshGraph carries the graph-wide DOT defaults on top of a gonum graph.
type meshGraph struct {
	*simple.UndirectedGraph
}

func (g meshGraph) DOTID() string { return GraphName }

func (g meshGraph) DOTAttributers() (graphAttr, nodeAttr, edgeAttr encoding.Attributer) {
	return graphAttrs, nodeAttrs, edgeAttrs
}

func pin(p core.Position) string {
	return formatCoord(p.X) + "," + formatCoord(p.Y) + "!"
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// buildGraph converts t into a gonum graph. Node i keeps id i; when the
// topology has moved, its ghost gets id n+i and a dotted trail edge.
func buildGraph(t *core.Topology) meshGraph {
	g := meshGraph{simple.NewUndirectedGraph()}
	records := t.Nodes()
	nodes := make([]meshNode, len(records))
	for _, rec := range records {
		nodes[rec.ID] = meshNode{
			id:    int64(rec.ID),
			name:  strconv.Itoa(rec.ID),
			attrs: attrs{{Key: "pos", Value: pin(rec.Position)}},
		}
		g.AddNode(nodes[rec.ID])
	}

	for _, e := range t.Edges() {
		g.SetEdge(meshEdge{
			from: nodes[e.A],
			to:   nodes[e.B],
			attrs: attrs{
				{Key: "label", Value: strconv.Itoa(e.QoSWeight)},
				{Key: "penwidth", Value: "0.8"},
			},
		})
	}

	if !t.Moved() {
		return g
	}
	n := int64(len(records))
	for _, rec := range records {
		ghost := meshNode{
			id:   n + int64(rec.ID),
			name: GhostID(rec.ID),
			attrs: attrs{
				{Key: "pos", Value: pin(rec.Previous)},
				{Key: "label", Value: ""},
				{Key: "shape", Value: "circle"},
				{Key: "width", Value: "0.08"},
				{Key: "style", Value: "filled"},
				{Key: "fillcolor", Value: "#BDBDBD"},
				{Key: "color", Value: "#9E9E9E"},
			},
		}
		g.SetEdge(meshEdge{
			from: ghost,
			to:   nodes[rec.ID],
			attrs: attrs{
				{Key: "style", Value: "dotted"},
				{Key: "color", Value: "#EF5350"},
				{Key: "penwidth", Value: "0.8"},
				{Key: "arrowhead", Value: "none"},
			},
		})
	}
	return g
}

// GhostID is the DOT identifier of the trail marker for node v.
func GhostID(v int) string {
	return strconv.Itoa(v) + "_ghost"
}

// MarshalDOT returns the DOT description of t: every node pinned at its
// position, every link labelled with its QoS weight and, after a mobility
// step, a ghost at each node's previous position.
func MarshalDOT(t *core.Topology) ([]byte, error) {
	b, err := dot.Marshal(buildGraph(t), GraphName, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal dot: %w", err)
	}
	return append(b, '\n'), nil
}

// WriteDOT writes the DOT description of t to w.
func WriteDOT(w io.Writer, t *core.Topology) error {
	b, err := MarshalDOT(t)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// FileName returns the DOT file name used for a step.
func FileName(step int) string {
	return fmt.Sprintf("graph_%d.dot", step)
}

// WriteFile writes t to dir/graph_<step>.dot, creating dir when needed, and
// returns the path written.
func WriteFile(dir string, step int, t *core.Topology) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	b, err := MarshalDOT(t)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(step))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
