package core

import (
	"fmt"
	"math/rand/v2"
)

// PlacementConfig bounds the square in which nodes are initially dropped.
type PlacementConfig struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// DefaultPlacementConfig places nodes in the middle of the default map.
func DefaultPlacementConfig() PlacementConfig {
	return PlacementConfig{Min: 100, Max: 400}
}

// Validate rejects a non-finite or inverted placement square.
func (c PlacementConfig) Validate() error {
	if !finite(c.Min) || !finite(c.Max) {
		return fmt.Errorf("%w: placement [%v,%v] must be finite", ErrInvalidConfiguration, c.Min, c.Max)
	}
	if !(c.Min <= c.Max) {
		return fmt.Errorf("%w: placement min %v must not exceed max %v", ErrInvalidConfiguration, c.Min, c.Max)
	}
	return nil
}

// Within reports whether the placement square lies inside b.
func (c PlacementConfig) Within(b Bounds) bool {
	return b.Contains(Position{X: c.Min, Y: c.Min}) && b.Contains(Position{X: c.Max, Y: c.Max})
}

// GeneratorConfig drives random topology generation.
type GeneratorConfig struct {
	// Density is the probability that any given pair is linked, in (0,1].
	Density float64 `yaml:"density" json:"density"`
	// MaxWeight is the QoS weight ceiling Wmax.
	MaxWeight int             `yaml:"maxWeight" json:"maxWeight"`
	Profile   WeightProfile   `yaml:"profile" json:"profile"`
	Placement PlacementConfig `yaml:"placement" json:"placement"`
	Bridge    BridgePolicy    `yaml:"bridge" json:"bridge"`
}

// DefaultGeneratorConfig returns a sparse QoS-weighted profile.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Density:   0.2,
		MaxWeight: 20,
		Profile:   ProfileQoS,
		Placement: DefaultPlacementConfig(),
		Bridge:    DefaultBridgePolicy(),
	}
}

// Validate checks every generation parameter at once.
func (c GeneratorConfig) Validate() error {
	if !(c.Density > 0 && c.Density <= 1) {
		return fmt.Errorf("%w: density %v must be in (0,1]", ErrInvalidConfiguration, c.Density)
	}
	if c.MaxWeight < 0 {
		return fmt.Errorf("%w: maxWeight %d must not be negative", ErrInvalidConfiguration, c.MaxWeight)
	}
	if _, err := ParseWeightProfile(string(c.Profile)); err != nil {
		return err
	}
	if c.Profile == ProfileWeighted && c.MaxWeight < 1 {
		return fmt.Errorf("%w: weighted profile needs maxWeight >= 1, got %d", ErrInvalidConfiguration, c.MaxWeight)
	}
	if c.Bridge.PhysicalDistance < 0 || c.Bridge.QoSWeight < 0 {
		return fmt.Errorf("%w: bridge costs must not be negative", ErrInvalidConfiguration)
	}
	return c.Placement.Validate()
}

// GenerationReport summarises one Generate call.
type GenerationReport struct {
	Nodes       int      `json:"nodes"`
	RandomEdges int      `json:"randomEdges"`
	Components  int      `json:"components"` // before bridging
	Bridges     []Bridge `json:"bridges,omitempty"`
}

// Place drops n nodes uniformly at random inside the placement square and
// returns them as an edgeless topology.
func Place(n int, cfg PlacementConfig, rng *rand.Rand) (*Topology, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: node count %d must be positive", ErrInvalidConfiguration, n)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	positions := make([]Position, n)
	span := cfg.Max - cfg.Min
	for i := range positions {
		positions[i] = Position{
			X: cfg.Min + rng.Float64()*span,
			Y: cfg.Min + rng.Float64()*span,
		}
	}
	return NewTopologyAt(positions), nil
}

// Generate places n nodes, links each unordered pair (i,j), i<j, with
// probability cfg.Density, and finally bridges the result into a single
// component. Configuration is validated before anything is built, so a
// rejected configuration never yields a partial graph.
func Generate(n int, cfg GeneratorConfig, rng *rand.Rand) (*Topology, GenerationReport, error) {
	if n <= 0 {
		return nil, GenerationReport{}, fmt.Errorf("%w: node count %d must be positive", ErrInvalidConfiguration, n)
	}
	if err := cfg.Validate(); err != nil {
		return nil, GenerationReport{}, err
	}
	t, err := Place(n, cfg.Placement, rng)
	if err != nil {
		return nil, GenerationReport{}, err
	}

	report := GenerationReport{Nodes: n}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() >= cfg.Density {
				continue
			}
			w := RandomWeight(cfg.Profile, cfg.MaxWeight, rng)
			d := PhysicalDistance(t.pos[i].DistanceTo(t.pos[j]))
			// Each pair is visited once, so AddEdge cannot see a duplicate.
			_ = t.AddEdge(i, j, d, w)
			report.RandomEdges++
		}
	}

	report.Components = len(Components(t))
	connected, bridges := EnsureConnected(t, cfg.Bridge)
	report.Bridges = bridges
	return connected, report, nil
}

// RandomWeight draws a QoS weight from the profile's range.
func RandomWeight(profile WeightProfile, maxWeight int, rng *rand.Rand) int {
	lo, hi := profile.weightRange(maxWeight)
	if hi < lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}
