package core

import (
	"sort"

	"github.com/dhconnelly/rtreego"
)

const (
	// pointExtent is the side length given to a node's bounding box; rtreego
	// rejects zero-length rectangles.
	pointExtent = 1e-9
	// queryPad widens the search box, since rtreego does not count touching
	// rectangles as intersecting and a node exactly r away must be found.
	queryPad = 1.0
)

type nodeEntry struct {
	id   int
	bbox rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (e *nodeEntry) Bounds() rtreego.Rect {
	return e.bbox
}

// proximityIndex answers "which nodes lie within r of p" over a fixed set of
// positions.
type proximityIndex struct {
	tree      *rtreego.Rtree
	positions []Position
}

func newProximityIndex(positions []Position) *proximityIndex {
	tree := rtreego.NewTree(2, 25, 50)
	for i, p := range positions {
		bbox, err := rtreego.NewRect(rtreego.Point{p.X, p.Y}, []float64{pointExtent, pointExtent})
		if err != nil {
			continue
		}
		tree.Insert(&nodeEntry{id: i, bbox: bbox})
	}
	return &proximityIndex{tree: tree, positions: positions}
}

// within returns, in ascending order, every node other than self whose
// Euclidean distance to positions[self] is at most r.
func (idx *proximityIndex) within(self int, r float64) []int {
	if r <= 0 {
		return nil
	}
	p := idx.positions[self]
	reach := r + queryPad
	query, err := rtreego.NewRect(rtreego.Point{p.X - reach, p.Y - reach}, []float64{2 * reach, 2 * reach})
	if err != nil {
		return nil
	}

	hits := idx.tree.SearchIntersect(query)
	out := make([]int, 0, len(hits))
	for _, h := range hits {
		id := h.(*nodeEntry).id
		if id == self {
			continue
		}
		// The box query over-approximates the disc.
		if p.DistanceTo(idx.positions[id]) <= r {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}
