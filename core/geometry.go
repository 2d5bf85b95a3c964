package core

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Position is a node location on the simulation plane, in map units.
type Position struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Point converts the position into an orb point.
func (p Position) Point() orb.Point {
	return orb.Point{p.X, p.Y}
}

// PositionFromPoint converts an orb point back into a Position.
func PositionFromPoint(pt orb.Point) Position {
	return Position{X: pt.X(), Y: pt.Y()}
}

// DistanceTo returns the straight-line distance between two positions.
func (p Position) DistanceTo(other Position) float64 {
	return planar.Distance(p.Point(), other.Point())
}

// Add returns p translated by (dx, dy).
func (p Position) Add(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Bounds is the axis-aligned map rectangle every node must stay inside.
type Bounds struct {
	b orb.Bound
}

// NewBounds builds a square map rectangle spanning [min, max] on both axes.
func NewBounds(min, max float64) Bounds {
	return Bounds{b: orb.Bound{Min: orb.Point{min, min}, Max: orb.Point{max, max}}}
}

// Min returns the lower-left corner.
func (b Bounds) Min() Position { return PositionFromPoint(b.b.Min) }

// Max returns the upper-right corner.
func (b Bounds) Max() Position { return PositionFromPoint(b.b.Max) }

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() Position { return PositionFromPoint(b.b.Center()) }

// Contains reports whether p lies inside the rectangle, edges included.
func (b Bounds) Contains(p Position) bool {
	return b.b.Contains(p.Point())
}

// Clamp pulls each coordinate of p into the rectangle independently.
func (b Bounds) Clamp(p Position) Position {
	return Position{
		X: clamp(p.X, b.b.Min.X(), b.b.Max.X()),
		Y: clamp(p.Y, b.b.Min.Y(), b.b.Max.Y()),
	}
}

// finite reports whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// PhysicalDistance converts a Euclidean separation into the integer link
// distance carried on edges: 1 + floor(d/10).
func PhysicalDistance(d float64) int {
	if d < 0 || math.IsNaN(d) {
		d = 0
	}
	return 1 + int(math.Floor(d/10.0))
}
