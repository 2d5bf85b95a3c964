package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/mesh-simulator/core"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 15, cfg.Routing.CongestionThreshold)
	require.Equal(t, 14, cfg.Inspection.CongestedAbove)
	require.True(t, cfg.Mobility.Reconnect)
	require.Equal(t, core.DefaultGeneratorConfig(), cfg.GeneratorConfig())
}

func TestParseKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
nodes: 25
seed: 99
generation:
  density: 0.35
  profile: weighted
mobility:
  policy: simple
  mapCenter:
    x: 200
run:
  interval: 250ms
  accelerated: false
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, 25, cfg.Nodes)
	require.Equal(t, uint64(99), cfg.Seed)
	require.Equal(t, 0.35, cfg.Generation.Density)
	require.Equal(t, core.ProfileWeighted, cfg.Generation.Profile)
	require.Equal(t, 20, cfg.Generation.MaxWeight)
	require.Equal(t, core.MotionSimple, cfg.Mobility.Policy)
	require.Equal(t, core.Position{X: 200, Y: 250}, cfg.Mobility.MapCenter)
	require.True(t, cfg.Mobility.Reconnect, "reconnect should stay on when omitted")
	require.Equal(t, 250*time.Millisecond, cfg.Run.Interval.Duration())
	require.False(t, cfg.Run.Accelerated)
	require.Equal(t, 10, cfg.Run.Steps)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestParseRejectsMalformedInput(t *testing.T) {
	for name, doc := range map[string]string{
		"not yaml":     "nodes: [1, 2",
		"bad duration": "run:\n  interval: soon\n",
		"wrong type":   "nodes: many\n",
	} {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Nodes = 0
	cfg.Generation.Density = 1.5
	cfg.Mobility.ConnectivityRange = 0
	cfg.Routing.CongestionThreshold = -1
	cfg.Observability.Tracing.Exporter = "zipkin"

	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, core.ErrInvalidConfiguration))
	for _, field := range []string{"nodes", "generation", "mobility", "routing.congestionThreshold", "observability.tracing"} {
		require.Contains(t, err.Error(), field)
	}
}

func TestValidatePlacementInsideMap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Placement = core.PlacementConfig{Min: 0, Max: 600}
	err := cfg.Validate()
	if !errors.Is(err, core.ErrInvalidConfiguration) {
		t.Fatalf("Validate() error = %v, want ErrInvalidConfiguration", err)
	}
	if !strings.HasPrefix(err.Error(), "placement") {
		t.Fatalf("Validate() error = %v, want placement problem", err)
	}

	cfg.Placement = core.PlacementConfig{Min: cfg.Mobility.MapMin, Max: cfg.Mobility.MapMax}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("placement equal to the map should be valid: %v", err)
	}
}

func TestValidateRejectsNonFiniteMobility(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mobility.RepulsionStrength = math.NaN()
	if err := cfg.Validate(); !errors.Is(err, core.ErrInvalidConfiguration) {
		t.Fatalf("Validate() error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestValidateSourceRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source = cfg.Nodes
	err := cfg.Validate()
	require.True(t, errors.Is(err, core.ErrInvalidConfiguration))
	require.True(t, strings.HasPrefix(err.Error(), "source"))
}

func TestValidateRealTimeNeedsInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Run.Accelerated = false
	cfg.Run.Interval = 0
	require.Error(t, cfg.Validate())

	cfg.Run.Accelerated = true
	require.NoError(t, cfg.Validate())
}

func TestSaveAndLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meshsim.yaml")

	cfg := DefaultConfig()
	cfg.Nodes = 42
	cfg.Run.Interval = Duration(2 * time.Second)
	cfg.Mobility.WeightPolicy = core.WeightCarry
	require.NoError(t, cfg.Save(path))

	loaded, gotPath, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, path, gotPath)
	require.Equal(t, cfg, loaded)
}

func TestLoadUsesEnvironment(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, path, err := Load()
	require.NoError(t, err)
	require.Empty(t, path)
	require.Equal(t, DefaultConfig(), cfg)

	file := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(file, []byte("nodes: 7\n"), 0o644))
	t.Setenv(EnvConfigPath, file)
	cfg, path, err = Load()
	require.NoError(t, err)
	require.Equal(t, file, path)
	require.Equal(t, 7, cfg.Nodes)

	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "missing.yaml"))
	_, _, err = Load()
	require.Error(t, err)
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	cfg, _, err := LoadFromPath(filepath.Join("..", "..", "configs", "mesh.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, DefaultConfig(), cfg)
}
