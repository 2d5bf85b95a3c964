package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Bridge phases used as the "phase" label of mesh_bridge_links_total.
const (
	PhaseGenerate = "generate"
	PhaseMobility = "mobility"
)

// SimCollector bundles Prometheus metrics describing the simulated mesh and
// the cost of maintaining it.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Nodes                   prometheus.Gauge
	Links                   prometheus.Gauge
	CongestedLinks          prometheus.Gauge
	Components              prometheus.Gauge
	UnreachableDestinations prometheus.Gauge

	StepsTotal       prometheus.Counter
	BridgeLinksTotal *prometheus.CounterVec

	StepDuration             prometheus.Histogram
	RouteComputationDuration prometheus.Histogram
}

// NewSimCollector registers the simulator metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Registering twice against the same registry returns the existing
// collectors.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &SimCollector{gatherer: gatherer}
	var err error

	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&c.Nodes, "mesh_nodes", "Number of nodes in the current topology."},
		{&c.Links, "mesh_links", "Number of undirected links in the current topology."},
		{&c.CongestedLinks, "mesh_congested_links", "Links whose QoS weight is above the inspection threshold."},
		{&c.Components, "mesh_components", "Connected components before reconnection on the last rebuild."},
		{&c.UnreachableDestinations, "mesh_unreachable_destinations", "Destinations without a usable route on the last route computation."},
	}
	for _, g := range gauges {
		*g.dst, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help}), g.name)
		if err != nil {
			return nil, err
		}
	}

	c.StepsTotal, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mesh_steps_total",
		Help: "Mobility steps applied since start.",
	}), "mesh_steps_total")
	if err != nil {
		return nil, err
	}

	c.BridgeLinksTotal, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mesh_bridge_links_total",
		Help: "Links added by the connectivity enforcer, labeled by phase.",
	}, []string{"phase"}), "mesh_bridge_links_total")
	if err != nil {
		return nil, err
	}

	c.StepDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mesh_step_duration_seconds",
		Help:    "Wall time of one mobility step including the link rebuild.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "mesh_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	c.RouteComputationDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mesh_route_computation_duration_seconds",
		Help:    "Duration of single-source route computations.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}), "mesh_route_computation_duration_seconds")
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetTopologyCounts updates the topology gauges. It satisfies the recorder
// interface used by NetworkState.
func (c *SimCollector) SetTopologyCounts(nodes, links, congested, components int) {
	if c == nil {
		return
	}
	c.Nodes.Set(float64(nodes))
	c.Links.Set(float64(links))
	c.CongestedLinks.Set(float64(congested))
	c.Components.Set(float64(components))
}

// AddBridges counts links inserted by the connectivity enforcer.
func (c *SimCollector) AddBridges(phase string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.BridgeLinksTotal.WithLabelValues(phase).Add(float64(n))
}

// ObserveStep records one completed mobility step.
func (c *SimCollector) ObserveStep(d time.Duration) {
	if c == nil {
		return
	}
	c.StepsTotal.Inc()
	c.StepDuration.Observe(d.Seconds())
}

// ObserveRouteComputation records one route computation and how many
// destinations it left without a route.
func (c *SimCollector) ObserveRouteComputation(d time.Duration, unreachable int) {
	if c == nil {
		return
	}
	c.RouteComputationDuration.Observe(d.Seconds())
	c.UnreachableDestinations.Set(float64(unreachable))
}

// register adds col to reg, returning the already registered collector when
// an identical one exists.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		var zero T
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return zero, err
	}
	return col, nil
}
