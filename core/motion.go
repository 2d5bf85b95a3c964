package core

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// MotionPolicy selects how positions are perturbed on each step.
type MotionPolicy string

const (
	// MotionSimple is an independent random walk per coordinate.
	MotionSimple MotionPolicy = "simple"
	// MotionForce adds short-range repulsion between nodes and a pull
	// toward the map centre on top of the random walk.
	MotionForce MotionPolicy = "force"
)

// WeightPolicy selects the QoS weight given to links rebuilt after motion.
type WeightPolicy string

const (
	// WeightRandom redraws every link weight from the generation profile.
	WeightRandom WeightPolicy = "random"
	// WeightCarry keeps the weight of pairs that were already linked and
	// draws a fresh one for new pairs.
	WeightCarry WeightPolicy = "carry"
	// WeightDistance uses the physical distance as the QoS weight, clamped
	// to the profile's range.
	WeightDistance WeightPolicy = "distance"
)

// coincidentEpsilon is the separation below which two nodes are treated as
// coincident and exert no repulsion on each other, since no direction is
// defined between them.
const coincidentEpsilon = 0.1

// MobilityConfig holds every knob of a mobility step.
type MobilityConfig struct {
	Policy       MotionPolicy `yaml:"policy" json:"policy"`
	WeightPolicy WeightPolicy `yaml:"weightPolicy" json:"weightPolicy"`
	// Reconnect re-runs EnsureConnected after the proximity rebuild.
	Reconnect bool `yaml:"reconnect" json:"reconnect"`

	MaxDisplacement   float64  `yaml:"maxDisplacement" json:"maxDisplacement"`
	MinSeparation     float64  `yaml:"minSeparation" json:"minSeparation"`
	RepulsionStrength float64  `yaml:"repulsionStrength" json:"repulsionStrength"`
	MapCenter         Position `yaml:"mapCenter" json:"mapCenter"`
	ReturnFactor      float64  `yaml:"returnFactor" json:"returnFactor"`
	ConnectivityRange float64  `yaml:"connectivityRange" json:"connectivityRange"`
	MapMin            float64  `yaml:"mapMin" json:"mapMin"`
	MapMax            float64  `yaml:"mapMax" json:"mapMax"`
}

// DefaultMobilityConfig returns the force-based profile on a 500x500 map.
func DefaultMobilityConfig() MobilityConfig {
	return MobilityConfig{
		Policy:            MotionForce,
		WeightPolicy:      WeightRandom,
		Reconnect:         true,
		MaxDisplacement:   40,
		MinSeparation:     90,
		RepulsionStrength: 40,
		MapCenter:         Position{X: 250, Y: 250},
		ReturnFactor:      0.05,
		ConnectivityRange: 140,
		MapMin:            10,
		MapMax:            490,
	}
}

// ParseMotionPolicy maps a config string onto a policy.
func ParseMotionPolicy(s string) (MotionPolicy, error) {
	switch MotionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case MotionSimple:
		return MotionSimple, nil
	case "", MotionForce:
		return MotionForce, nil
	default:
		return "", fmt.Errorf("%w: unknown motion policy %q", ErrInvalidConfiguration, s)
	}
}

// ParseWeightPolicy maps a config string onto a policy.
func ParseWeightPolicy(s string) (WeightPolicy, error) {
	switch WeightPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", WeightRandom:
		return WeightRandom, nil
	case WeightCarry:
		return WeightCarry, nil
	case WeightDistance:
		return WeightDistance, nil
	default:
		return "", fmt.Errorf("%w: unknown weight policy %q", ErrInvalidConfiguration, s)
	}
}

// Validate checks every mobility parameter at once.
func (c MobilityConfig) Validate() error {
	if _, err := ParseMotionPolicy(string(c.Policy)); err != nil {
		return err
	}
	if _, err := ParseWeightPolicy(string(c.WeightPolicy)); err != nil {
		return err
	}
	switch {
	case !(c.MaxDisplacement >= 0) || math.IsInf(c.MaxDisplacement, 0):
		return fmt.Errorf("%w: maxDisplacement %v must be finite and not negative", ErrInvalidConfiguration, c.MaxDisplacement)
	case !finite(c.MapMin) || !finite(c.MapMax):
		return fmt.Errorf("%w: map bounds [%v,%v] must be finite", ErrInvalidConfiguration, c.MapMin, c.MapMax)
	case !(c.MapMin < c.MapMax):
		return fmt.Errorf("%w: mapMin %v must be below mapMax %v", ErrInvalidConfiguration, c.MapMin, c.MapMax)
	case !(c.ConnectivityRange > 0) || math.IsInf(c.ConnectivityRange, 0):
		return fmt.Errorf("%w: connectivityRange %v must be finite and positive", ErrInvalidConfiguration, c.ConnectivityRange)
	case !(c.MinSeparation >= 0) || math.IsInf(c.MinSeparation, 0):
		return fmt.Errorf("%w: minSeparation %v must be finite and not negative", ErrInvalidConfiguration, c.MinSeparation)
	case !(c.RepulsionStrength >= 0) || math.IsInf(c.RepulsionStrength, 0):
		return fmt.Errorf("%w: repulsionStrength %v must be finite and not negative", ErrInvalidConfiguration, c.RepulsionStrength)
	case !(c.ReturnFactor >= 0 && c.ReturnFactor <= 1):
		return fmt.Errorf("%w: returnFactor %v must be in [0,1]", ErrInvalidConfiguration, c.ReturnFactor)
	case !finite(c.MapCenter.X) || !finite(c.MapCenter.Y):
		return fmt.Errorf("%w: mapCenter %+v must be finite", ErrInvalidConfiguration, c.MapCenter)
	}
	if !NewBounds(c.MapMin, c.MapMax).Contains(c.MapCenter) {
		return fmt.Errorf("%w: mapCenter %+v outside map [%v,%v]", ErrInvalidConfiguration, c.MapCenter, c.MapMin, c.MapMax)
	}
	return nil
}

// Move is one node's displacement during a step.
type Move struct {
	Node int      `json:"node"`
	From Position `json:"from"`
	To   Position `json:"to"`
}

// Distance returns how far the node travelled.
func (m Move) Distance() float64 { return m.From.DistanceTo(m.To) }

// MobilityReport summarises one mobility step.
type MobilityReport struct {
	Moves []Move `json:"moves"`
	Edges int    `json:"edges"`
	// Components is counted on the proximity graph, before any reconnection.
	Components       int      `json:"components"`
	Bridges          []Bridge `json:"bridges,omitempty"`
	MeanDisplacement float64  `json:"meanDisplacement"`
	StdDisplacement  float64  `json:"stdDisplacement"`
}

// MobilityEngine advances node positions and rebuilds links from proximity.
type MobilityEngine struct {
	cfg       MobilityConfig
	bounds    Bounds
	profile   WeightProfile
	maxWeight int
	bridge    BridgePolicy
}

// NewMobilityEngine validates cfg and takes the weight profile and bridge
// policy from gen so rebuilt links look like generated ones.
func NewMobilityEngine(cfg MobilityConfig, gen GeneratorConfig) (*MobilityEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	cfg.Policy, _ = ParseMotionPolicy(string(cfg.Policy))
	cfg.WeightPolicy, _ = ParseWeightPolicy(string(cfg.WeightPolicy))
	return &MobilityEngine{
		cfg:       cfg,
		bounds:    NewBounds(cfg.MapMin, cfg.MapMax),
		profile:   gen.Profile,
		maxWeight: gen.MaxWeight,
		bridge:    gen.Bridge,
	}, nil
}

// Config returns the normalised configuration the engine runs with.
func (m *MobilityEngine) Config() MobilityConfig { return m.cfg }

// Bounds returns the map rectangle positions are clamped to.
func (m *MobilityEngine) Bounds() Bounds { return m.bounds }

// Step moves every node of t and returns a new topology whose links are
// rebuilt from scratch out of the new positions. t itself is not modified.
//
// The proximity rebuild alone does not guarantee connectivity; the
// Reconnect setting decides whether bridges are added afterwards.
func (m *MobilityEngine) Step(t *Topology, rng *rand.Rand) (*Topology, MobilityReport, error) {
	if rng == nil {
		return nil, MobilityReport{}, fmt.Errorf("%w: nil random source", ErrInvalidConfiguration)
	}
	if t.NodeCount() == 0 {
		return NewTopology(0), MobilityReport{}, nil
	}

	old := t.Positions()
	next := m.displace(old, rng)

	moved := NewTopologyAt(next)
	copy(moved.prev, old)
	moved.moved = true

	m.rebuild(moved, t, rng)

	report := MobilityReport{
		Moves:      make([]Move, len(old)),
		Edges:      moved.EdgeCount(),
		Components: len(Components(moved)),
	}
	dists := make([]float64, len(old))
	for i := range old {
		report.Moves[i] = Move{Node: i, From: old[i], To: next[i]}
		dists[i] = report.Moves[i].Distance()
	}
	report.MeanDisplacement, report.StdDisplacement = stat.MeanStdDev(dists, nil)
	if len(dists) < 2 {
		report.StdDisplacement = 0
	}

	if m.cfg.Reconnect && report.Components > 1 {
		moved, report.Bridges = EnsureConnected(moved, m.bridge)
	}
	return moved, report, nil
}

// displace computes every new position from the old snapshot, so the order
// in which nodes are processed does not matter.
func (m *MobilityEngine) displace(old []Position, rng *rand.Rand) []Position {
	next := make([]Position, len(old))
	half := m.cfg.MaxDisplacement / 2
	for i, p := range old {
		dx := (rng.Float64()*2 - 1) * half
		dy := (rng.Float64()*2 - 1) * half

		if m.cfg.Policy == MotionForce {
			rx, ry := m.repulsion(old, i)
			dx += rx + (m.cfg.MapCenter.X-p.X)*m.cfg.ReturnFactor
			dy += ry + (m.cfg.MapCenter.Y-p.Y)*m.cfg.ReturnFactor
		}

		next[i] = m.bounds.Clamp(p.Add(dx, dy))
	}
	return next
}

// repulsion sums the push node i receives from every node closer than the
// minimum separation. Each push points along the unit vector away from the
// other node; its magnitude falls off as 1/distance and never exceeds the
// repulsion strength.
func (m *MobilityEngine) repulsion(pos []Position, i int) (float64, float64) {
	var rx, ry float64
	strength := m.cfg.RepulsionStrength
	ref := m.cfg.MinSeparation / 2
	for j, q := range pos {
		if j == i {
			continue
		}
		dx := pos[i].X - q.X
		dy := pos[i].Y - q.Y
		dist := math.Hypot(dx, dy)
		if dist >= m.cfg.MinSeparation || dist <= coincidentEpsilon {
			continue
		}
		mag := math.Min(strength, strength*ref/dist)
		rx += dx / dist * mag
		ry += dy / dist * mag
	}
	return rx, ry
}

// rebuild links every pair of moved within the connectivity range. prev is
// the topology before the move, consulted by the carry weight policy.
func (m *MobilityEngine) rebuild(moved, prev *Topology, rng *rand.Rand) {
	idx := newProximityIndex(moved.pos)
	for i := range moved.pos {
		for _, j := range idx.within(i, m.cfg.ConnectivityRange) {
			if j <= i {
				continue
			}
			d := PhysicalDistance(moved.pos[i].DistanceTo(moved.pos[j]))
			_ = moved.AddEdge(i, j, d, m.weightFor(prev, i, j, d, rng))
		}
	}
}

func (m *MobilityEngine) weightFor(prev *Topology, i, j, physical int, rng *rand.Rand) int {
	switch m.cfg.WeightPolicy {
	case WeightCarry:
		if w, ok := prev.Weight(i, j); ok {
			return w
		}
	case WeightDistance:
		lo, hi := m.profile.weightRange(m.maxWeight)
		return int(clamp(float64(physical), float64(lo), float64(hi)))
	}
	return RandomWeight(m.profile, m.maxWeight, rng)
}
