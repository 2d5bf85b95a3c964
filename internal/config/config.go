// Package config loads the simulator configuration.
//
// The file is YAML. Any key left out keeps its default, so an empty file
// (or no file at all) runs the stock scenario. The path comes from the
// -config flag or $MESHSIM_CONFIG.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/signalsfoundry/mesh-simulator/core"
	"github.com/signalsfoundry/mesh-simulator/internal/observability"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config path.
const EnvConfigPath = "MESHSIM_CONFIG"

// Config is the full simulator configuration.
type Config struct {
	Nodes  int `yaml:"nodes"`
	Source int `yaml:"source"`
	// Seed drives every random draw. Zero picks one at startup.
	Seed uint64 `yaml:"seed"`

	Generation    GenerationConfig     `yaml:"generation"`
	Placement     core.PlacementConfig `yaml:"placement"`
	Mobility      core.MobilityConfig  `yaml:"mobility"`
	Routing       RoutingConfig        `yaml:"routing"`
	Inspection    InspectionConfig     `yaml:"inspection"`
	Run           RunConfig            `yaml:"run"`
	Observability ObservabilityConfig  `yaml:"observability"`
}

// GenerationConfig is the YAML shape of core.GeneratorConfig.
type GenerationConfig struct {
	Density        float64            `yaml:"density"`
	MaxWeight      int                `yaml:"maxWeight"`
	Profile        core.WeightProfile `yaml:"profile"`
	BridgeDistance int                `yaml:"bridgeDistance"`
	BridgeWeight   int                `yaml:"bridgeWeight"`
}

// RoutingConfig holds the congestion threshold T: links with QoS weight >= T
// are never used for routing.
type RoutingConfig struct {
	CongestionThreshold int `yaml:"congestionThreshold"`
}

// InspectionConfig holds the neighbour report threshold: links with QoS
// weight above CongestedAbove are flagged.
type InspectionConfig struct {
	CongestedAbove int `yaml:"congestedAbove"`
}

// RunConfig drives the step loop.
type RunConfig struct {
	Steps       int      `yaml:"steps"`
	Interval    Duration `yaml:"interval"`
	Accelerated bool     `yaml:"accelerated"`
	OutputDir   string   `yaml:"outputDir"`
}

// ObservabilityConfig configures the metrics endpoint and tracing.
type ObservabilityConfig struct {
	// MetricsAddr is the listen address of /metrics; empty disables it.
	MetricsAddr string                      `yaml:"metricsAddr"`
	Tracing     observability.TracingConfig `yaml:"tracing"`
}

// Duration is a time.Duration that reads "500ms" style strings from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// DefaultConfig returns the stock scenario: ten nodes on a 500x500 map,
// force mobility, threshold 15.
func DefaultConfig() *Config {
	gen := core.DefaultGeneratorConfig()
	return &Config{
		Nodes:  10,
		Source: 0,
		Generation: GenerationConfig{
			Density:        gen.Density,
			MaxWeight:      gen.MaxWeight,
			Profile:        gen.Profile,
			BridgeDistance: gen.Bridge.PhysicalDistance,
			BridgeWeight:   gen.Bridge.QoSWeight,
		},
		Placement:  core.DefaultPlacementConfig(),
		Mobility:   core.DefaultMobilityConfig(),
		Routing:    RoutingConfig{CongestionThreshold: 15},
		Inspection: InspectionConfig{CongestedAbove: 14},
		Run: RunConfig{
			Steps:       10,
			Interval:    Duration(time.Second),
			Accelerated: true,
			OutputDir:   "output",
		},
		Observability: ObservabilityConfig{
			Tracing: observability.DefaultTracingConfig(),
		},
	}
}

// Load reads the file named by $MESHSIM_CONFIG, or returns defaults when the
// variable is unset.
func Load() (*Config, string, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path. Keys absent from the file
// keep their defaults.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Parse decodes YAML on top of DefaultConfig.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyDefaults fills in enum strings left empty.
func (c *Config) applyDefaults() {
	if c.Generation.Profile == "" {
		c.Generation.Profile = core.ProfileQoS
	}
	if c.Mobility.Policy == "" {
		c.Mobility.Policy = core.MotionForce
	}
	if c.Mobility.WeightPolicy == "" {
		c.Mobility.WeightPolicy = core.WeightRandom
	}
	if c.Run.OutputDir == "" {
		c.Run.OutputDir = "output"
	}
	if c.Observability.Tracing.Exporter == "" {
		c.Observability.Tracing.Exporter = "stdout"
	}
}

// GeneratorConfig assembles the core generator parameters.
func (c *Config) GeneratorConfig() core.GeneratorConfig {
	return core.GeneratorConfig{
		Density:   c.Generation.Density,
		MaxWeight: c.Generation.MaxWeight,
		Profile:   c.Generation.Profile,
		Placement: c.Placement,
		Bridge: core.BridgePolicy{
			PhysicalDistance: c.Generation.BridgeDistance,
			QoSWeight:        c.Generation.BridgeWeight,
		},
	}
}

// Validate checks the whole configuration and reports every problem at
// once. Each problem wraps core.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	var errs []error
	add := func(field string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}
	invalid := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %w: %s", field, core.ErrInvalidConfiguration, fmt.Sprintf(format, args...)))
	}

	if c.Nodes < 1 {
		invalid("nodes", "need at least one node, got %d", c.Nodes)
	} else if c.Source < 0 || c.Source >= c.Nodes {
		invalid("source", "%d outside [0,%d)", c.Source, c.Nodes)
	}
	genErr, mobErr := c.GeneratorConfig().Validate(), c.Mobility.Validate()
	add("generation", genErr)
	add("mobility", mobErr)
	if genErr == nil && mobErr == nil && !c.Placement.Within(core.NewBounds(c.Mobility.MapMin, c.Mobility.MapMax)) {
		invalid("placement", "[%v,%v] outside map [%v,%v]", c.Placement.Min, c.Placement.Max, c.Mobility.MapMin, c.Mobility.MapMax)
	}
	if c.Routing.CongestionThreshold < 0 {
		invalid("routing.congestionThreshold", "must not be negative, got %d", c.Routing.CongestionThreshold)
	}
	if c.Run.Steps < 0 {
		invalid("run.steps", "must not be negative, got %d", c.Run.Steps)
	}
	if c.Run.Interval < 0 {
		invalid("run.interval", "must not be negative, got %s", c.Run.Interval.Duration())
	}
	if !c.Run.Accelerated && c.Run.Interval == 0 && c.Run.Steps > 0 {
		invalid("run.interval", "real-time runs need a positive interval")
	}
	if err := c.Observability.Tracing.Validate(); err != nil {
		invalid("observability.tracing", "%v", err)
	}
	return errors.Join(errs...)
}
