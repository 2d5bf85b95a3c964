package state

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/signalsfoundry/mesh-simulator/core"
	"github.com/signalsfoundry/mesh-simulator/internal/logging"
	"github.com/signalsfoundry/mesh-simulator/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Re-export core sentinel errors so callers can depend on state.* alone.
var (
	// ErrInvalidNode indicates a node index outside [0, N).
	ErrInvalidNode = core.ErrInvalidNode
	// ErrInvalidConfiguration indicates rejected generation or mobility
	// parameters.
	ErrInvalidConfiguration = core.ErrInvalidConfiguration
)

// Settings are the validated parameters a NetworkState runs with.
type Settings struct {
	Nodes     int
	Generator core.GeneratorConfig
	Mobility  core.MobilityConfig

	// CongestionThreshold is T: links with QoS weight >= T are not routed
	// over.
	CongestionThreshold int
	// CongestedAbove flags links in neighbour reports whose weight exceeds
	// it.
	CongestedAbove int
}

// DefaultSettings returns ten nodes with the default generator and mobility
// profiles and threshold 15.
func DefaultSettings() Settings {
	return Settings{
		Nodes:               10,
		Generator:           core.DefaultGeneratorConfig(),
		Mobility:            core.DefaultMobilityConfig(),
		CongestionThreshold: 15,
		CongestedAbove:      14,
	}
}

// Validate checks every setting at once.
func (s Settings) Validate() error {
	if s.Nodes < 1 {
		return fmt.Errorf("%w: need at least one node, got %d", ErrInvalidConfiguration, s.Nodes)
	}
	if s.CongestionThreshold < 0 {
		return fmt.Errorf("%w: congestion threshold %d must not be negative", ErrInvalidConfiguration, s.CongestionThreshold)
	}
	if err := s.Generator.Validate(); err != nil {
		return err
	}
	return s.Mobility.Validate()
}

// MetricsRecorder receives topology counts and timings.
type MetricsRecorder interface {
	SetTopologyCounts(nodes, links, congested, components int)
	AddBridges(phase string, n int)
	ObserveStep(d time.Duration)
	ObserveRouteComputation(d time.Duration, unreachable int)
}

// NetworkState owns the current topology and the random source that evolves
// it. Every exported method is one critical section: a step and a route
// computation never interleave.
type NetworkState struct {
	// mu guards topo, step and rng. Mutations take the write lock; queries
	// only read topo and take the read lock.
	mu sync.RWMutex

	topo *core.Topology
	step int

	rng  *rand.Rand
	seed uint64

	settings Settings
	mobility *core.MobilityEngine

	// log is an optional structured logger for state-level events.
	log logging.Logger

	tracer trace.Tracer

	// metrics is an optional recorder for Prometheus-friendly gauges.
	metrics MetricsRecorder

	telemetry *TelemetryState
}

// Snapshot is a consistent export of the topology at one step.
type Snapshot struct {
	Step  int               `json:"step"`
	Nodes []core.NodeRecord `json:"nodes"`
	Edges []core.EdgeRecord `json:"edges"`
}

// Option customises NetworkState construction.
type Option func(*NetworkState)

// WithSeed fixes the random seed so runs are reproducible.
func WithSeed(seed uint64) Option {
	return func(s *NetworkState) {
		s.seed = seed
		s.rng = newRand(seed)
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *NetworkState) {
		s.metrics = m
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *NetworkState) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithTelemetry shares an existing telemetry store.
func WithTelemetry(t *TelemetryState) Option {
	return func(s *NetworkState) {
		if t != nil {
			s.telemetry = t
		}
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewNetworkState validates settings and prepares an empty topology. Call
// Generate to populate it.
func NewNetworkState(settings Settings, log logging.Logger, opts ...Option) (*NetworkState, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	engine, err := core.NewMobilityEngine(settings.Mobility, settings.Generator)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Noop()
	}

	seed := uint64(time.Now().UnixNano())
	s := &NetworkState{
		topo:      core.NewTopology(0),
		rng:       newRand(seed),
		seed:      seed,
		settings:  settings,
		mobility:  engine,
		log:       log,
		tracer:    observability.Tracer(),
		telemetry: NewTelemetryState(0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.updateMetricsLocked(0)
	return s, nil
}

// Seed returns the seed the random source was created with.
func (s *NetworkState) Seed() uint64 { return s.seed }

// Settings returns the parameters the state runs with.
func (s *NetworkState) Settings() Settings { return s.settings }

// Telemetry exposes the per-step record store.
func (s *NetworkState) Telemetry() *TelemetryState { return s.telemetry }

// CurrentStep returns how many mobility steps have been applied since the
// last Generate.
func (s *NetworkState) CurrentStep() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.step
}

// Generate replaces the topology with a freshly generated connected one and
// resets the step counter.
func (s *NetworkState) Generate(ctx context.Context) (core.GenerationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "state.Generate", trace.WithAttributes(
		attribute.Int("mesh.nodes", s.settings.Nodes),
		attribute.Float64("mesh.density", s.settings.Generator.Density),
	))
	defer span.End()

	topo, report, err := core.Generate(s.settings.Nodes, s.settings.Generator, s.rng)
	if err != nil {
		recordSpanError(span, err)
		s.log.Error(ctx, "topology generation failed", logging.Err(err))
		return core.GenerationReport{}, err
	}

	s.topo = topo
	s.step = 0
	s.telemetry.Clear()

	span.SetAttributes(
		attribute.Int("mesh.links", topo.EdgeCount()),
		attribute.Int("mesh.bridges", len(report.Bridges)),
	)
	s.log.Info(ctx, "topology generated",
		logging.Int("nodes", report.Nodes),
		logging.Int("random_edges", report.RandomEdges),
		logging.Int("components", report.Components),
		logging.Int("bridges", len(report.Bridges)),
	)
	if s.metrics != nil {
		s.metrics.AddBridges(observability.PhaseGenerate, len(report.Bridges))
	}
	s.updateMetricsLocked(report.Components)
	return report, nil
}

// Step applies one mobility step. A cancelled context stops before the
// topology is touched, so steps are never half-applied.
func (s *NetworkState) Step(ctx context.Context) (core.MobilityReport, error) {
	if err := ctx.Err(); err != nil {
		return core.MobilityReport{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.step + 1
	ctx = logging.ContextWithStep(ctx, step)
	ctx, span := s.tracer.Start(ctx, "state.Step", trace.WithAttributes(
		attribute.Int("mesh.step", step),
		attribute.String("mesh.policy", string(s.mobility.Config().Policy)),
	))
	defer span.End()

	start := time.Now()
	next, report, err := s.mobility.Step(s.topo, s.rng)
	if err != nil {
		recordSpanError(span, err)
		s.log.Error(ctx, "mobility step failed", logging.Err(err))
		return core.MobilityReport{}, err
	}
	elapsed := time.Since(start)

	s.topo = next
	s.step = step

	s.telemetry.RecordStep(StepRecord{
		Step:             step,
		Edges:            next.EdgeCount(),
		Components:       report.Components,
		Bridges:          len(report.Bridges),
		MeanDisplacement: report.MeanDisplacement,
		StdDisplacement:  report.StdDisplacement,
		Duration:         elapsed,
	})
	span.SetAttributes(
		attribute.Int("mesh.links", next.EdgeCount()),
		attribute.Int("mesh.components", report.Components),
		attribute.Int("mesh.bridges", len(report.Bridges)),
	)

	fields := []logging.Field{
		logging.Int("links", next.EdgeCount()),
		logging.Int("components", report.Components),
		logging.Int("bridges", len(report.Bridges)),
		logging.Float("mean_displacement", report.MeanDisplacement),
	}
	if report.Components > 1 && len(report.Bridges) == 0 && next.NodeCount() > 0 {
		s.log.Warn(ctx, "topology partitioned after mobility step", fields...)
	} else {
		s.log.Debug(ctx, "mobility step applied", fields...)
	}

	if s.metrics != nil {
		s.metrics.ObserveStep(elapsed)
		s.metrics.AddBridges(observability.PhaseMobility, len(report.Bridges))
	}
	s.updateMetricsLocked(report.Components)
	return report, nil
}

// ComputeRoutes runs the congestion-aware shortest path search from source
// over the current topology.
func (s *NetworkState) ComputeRoutes(ctx context.Context, source int) (*core.Routes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.computeRoutesLocked(ctx, source)
}

// RoutingTable returns source's (destination, next hop, cost) table.
func (s *NetworkState) RoutingTable(ctx context.Context, source int) ([]core.TableEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.computeRoutesLocked(ctx, source)
	if err != nil {
		return nil, err
	}
	return r.Table(), nil
}

// RouteReport returns the path from source to every other node, including
// explicit no-route entries.
func (s *NetworkState) RouteReport(ctx context.Context, source int) ([]core.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.computeRoutesLocked(ctx, source)
	if err != nil {
		return nil, err
	}
	return r.Report(), nil
}

// computeRoutesLocked runs Dijkstra and records its cost. Caller must hold
// s.mu.
func (s *NetworkState) computeRoutesLocked(ctx context.Context, source int) (*core.Routes, error) {
	threshold := s.settings.CongestionThreshold
	ctx, span := s.tracer.Start(ctx, "state.ComputeRoutes", trace.WithAttributes(
		attribute.Int("mesh.source", source),
		attribute.Int("mesh.threshold", threshold),
		attribute.Int("mesh.step", s.step),
	))
	defer span.End()

	start := time.Now()
	r, err := core.ComputeRoutes(s.topo, source, threshold)
	if err != nil {
		recordSpanError(span, err)
		s.log.Warn(ctx, "route computation rejected", logging.Node(source), logging.Err(err))
		return nil, err
	}
	elapsed := time.Since(start)

	reachable, unreachable := 0, 0
	for v := range r.Distance {
		if v == source {
			continue
		}
		if r.Reachable(v) {
			reachable++
		} else {
			unreachable++
		}
	}

	s.telemetry.RecordRoutes(RouteRecord{
		Source:      source,
		Threshold:   threshold,
		Step:        s.step,
		Reachable:   reachable,
		Unreachable: unreachable,
		Duration:    elapsed,
	})
	span.SetAttributes(
		attribute.Int("mesh.reachable", reachable),
		attribute.Int("mesh.unreachable", unreachable),
	)
	if s.metrics != nil {
		s.metrics.ObserveRouteComputation(elapsed, unreachable)
	}
	s.log.Debug(ctx, "routes computed",
		logging.Node(source),
		logging.Int("threshold", threshold),
		logging.Int("reachable", reachable),
		logging.Int("unreachable", unreachable),
	)
	return r, nil
}

// NeighborsOf reports node's direct neighbours with congestion flags.
func (s *NetworkState) NeighborsOf(ctx context.Context, node int) (core.NeighborReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, err := core.NeighborsOf(s.topo, node, s.settings.CongestedAbove)
	if err != nil {
		s.log.Warn(ctx, "neighbour inspection rejected", logging.Node(node), logging.Err(err))
		return core.NeighborReport{}, err
	}
	if report.Isolated && s.topo.NodeCount() > 0 {
		s.log.Warn(ctx, "node is isolated", logging.Node(node), logging.Step(s.step))
	}
	return report, nil
}

// Discover returns the breadth-first discovery order from source.
func (s *NetworkState) Discover(ctx context.Context, source int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, err := core.Discover(s.topo, source)
	if err != nil {
		s.log.Warn(ctx, "discovery rejected", logging.Node(source), logging.Err(err))
		return nil, err
	}
	return order, nil
}

// Snapshot returns a coherent export of nodes and edges at the current step.
func (s *NetworkState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Step:  s.step,
		Nodes: s.topo.Nodes(),
		Edges: s.topo.Edges(),
	}
}

// Topology returns an independent copy of the current topology.
func (s *NetworkState) Topology() *core.Topology {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topo.Clone()
}

// updateMetricsLocked pushes current counts to the recorder. Caller must
// hold s.mu.
func (s *NetworkState) updateMetricsLocked(components int) {
	if s.metrics == nil {
		return
	}
	s.metrics.SetTopologyCounts(
		s.topo.NodeCount(),
		s.topo.EdgeCount(),
		core.CongestedLinks(s.topo, s.settings.CongestedAbove),
		components,
	)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
