package core

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateConnectedAndSymmetric(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	for seed := uint64(1); seed <= 25; seed++ {
		tp, report, err := Generate(20, cfg, newTestRand(seed))
		require.NoError(t, err)
		require.Equal(t, 20, tp.NodeCount())
		require.True(t, IsConnected(tp), "seed %d", seed)
		assertStructure(t, tp)

		require.Equal(t, report.RandomEdges+len(report.Bridges), tp.EdgeCount())
		if report.Components == 1 {
			require.Empty(t, report.Bridges)
		} else {
			require.Len(t, report.Bridges, report.Components-1)
		}

		for _, e := range tp.Edges() {
			require.GreaterOrEqual(t, e.QoSWeight, 0)
			require.LessOrEqual(t, e.QoSWeight, cfg.MaxWeight)
			require.GreaterOrEqual(t, e.PhysicalDistance, 1)
		}
		for _, n := range tp.Nodes() {
			require.GreaterOrEqual(t, n.Position.X, cfg.Placement.Min)
			require.LessOrEqual(t, n.Position.Y, cfg.Placement.Max)
		}
	}
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	a, _, err := Generate(15, cfg, newTestRand(42))
	require.NoError(t, err)
	b, _, err := Generate(15, cfg, newTestRand(42))
	require.NoError(t, err)

	require.Equal(t, a.Edges(), b.Edges())
	require.Equal(t, a.Positions(), b.Positions())
}

func TestGenerateFullDensityIsComplete(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.Density = 1
	tp, report, err := Generate(6, cfg, newTestRand(7))
	require.NoError(t, err)
	require.Equal(t, 15, tp.EdgeCount())
	require.Empty(t, report.Bridges)
}

func TestGenerateProfiles(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.Density = 1

	cfg.Profile = ProfileUnweighted
	tp, _, err := Generate(8, cfg, newTestRand(3))
	require.NoError(t, err)
	for _, e := range tp.Edges() {
		require.Equal(t, 1, e.QoSWeight)
	}

	cfg.Profile = ProfileWeighted
	cfg.MaxWeight = 4
	tp, _, err = Generate(12, cfg, newTestRand(3))
	require.NoError(t, err)
	for _, e := range tp.Edges() {
		require.GreaterOrEqual(t, e.QoSWeight, 1)
		require.LessOrEqual(t, e.QoSWeight, 4)
	}
}

func TestGenerateRejectsInvalidConfiguration(t *testing.T) {
	base := DefaultGeneratorConfig()

	cases := map[string]func(*GeneratorConfig){
		"zero density":     func(c *GeneratorConfig) { c.Density = 0 },
		"negative density": func(c *GeneratorConfig) { c.Density = -0.5 },
		"density above 1":  func(c *GeneratorConfig) { c.Density = 1.5 },
		"negative weight":  func(c *GeneratorConfig) { c.MaxWeight = -1 },
		"unknown profile":  func(c *GeneratorConfig) { c.Profile = "fancy" },
		"weighted zero":    func(c *GeneratorConfig) { c.Profile = ProfileWeighted; c.MaxWeight = 0 },
		"inverted placing": func(c *GeneratorConfig) { c.Placement = PlacementConfig{Min: 10, Max: 5} },
		"infinite placing": func(c *GeneratorConfig) { c.Placement = PlacementConfig{Min: 0, Max: math.Inf(1)} },
		"NaN placing":      func(c *GeneratorConfig) { c.Placement = PlacementConfig{Min: math.NaN(), Max: 5} },
		"negative bridge":  func(c *GeneratorConfig) { c.Bridge.QoSWeight = -3 },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		tp, _, err := Generate(5, cfg, newTestRand(1))
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("%s: err = %v, want ErrInvalidConfiguration", name, err)
		}
		if tp != nil {
			t.Fatalf("%s: rejected configuration still produced a topology", name)
		}
	}

	for _, n := range []int{0, -3} {
		if _, _, err := Generate(n, base, newTestRand(1)); !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("Generate(%d) err = %v, want ErrInvalidConfiguration", n, err)
		}
	}
	if _, _, err := Generate(3, base, nil); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("nil rng err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestGenerateSingleNode(t *testing.T) {
	tp, report, err := Generate(1, DefaultGeneratorConfig(), newTestRand(9))
	require.NoError(t, err)
	require.Equal(t, 1, tp.NodeCount())
	require.Zero(t, tp.EdgeCount())
	require.Equal(t, 1, report.Components)
	require.True(t, IsConnected(tp))
}
