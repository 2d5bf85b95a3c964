package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalsfoundry/mesh-simulator/core"
	"github.com/signalsfoundry/mesh-simulator/internal/observability"
)

type metricsSnapshot struct {
	nodes      int
	links      int
	congested  int
	components int
}

type stubMetricsRecorder struct {
	mu          sync.Mutex
	records     []metricsSnapshot
	bridges     map[string]int
	steps       int
	routeCalls  int
	unreachable int
}

func (r *stubMetricsRecorder) SetTopologyCounts(nodes, links, congested, components int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, metricsSnapshot{
		nodes:      nodes,
		links:      links,
		congested:  congested,
		components: components,
	})
}

func (r *stubMetricsRecorder) AddBridges(phase string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bridges == nil {
		r.bridges = make(map[string]int)
	}
	r.bridges[phase] += n
}

func (r *stubMetricsRecorder) ObserveStep(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps++
}

func (r *stubMetricsRecorder) ObserveRouteComputation(_ time.Duration, unreachable int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routeCalls++
	r.unreachable = unreachable
}

func (r *stubMetricsRecorder) last() metricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return metricsSnapshot{}
	}
	return r.records[len(r.records)-1]
}

func TestNetworkStateMetricsRecorder(t *testing.T) {
	recorder := &stubMetricsRecorder{}
	s := newGeneratedState(t, 12, 31, WithMetricsRecorder(recorder))

	topo := s.Topology()
	assertCounts(t, recorder.last(), metricsSnapshot{
		nodes:     12,
		links:     topo.EdgeCount(),
		congested: core.CongestedLinks(topo, s.Settings().CongestedAbove),
	}, false)

	mustStep(t, s, 3)
	topo = s.Topology()
	assertCounts(t, recorder.last(), metricsSnapshot{
		nodes:     12,
		links:     topo.EdgeCount(),
		congested: core.CongestedLinks(topo, s.Settings().CongestedAbove),
	}, false)
	if recorder.steps != 3 {
		t.Fatalf("ObserveStep calls = %d, want 3", recorder.steps)
	}

	bridged := 0
	for _, rec := range s.Telemetry().Steps() {
		bridged += rec.Bridges
	}
	if got := recorder.bridges[observability.PhaseMobility]; got != bridged {
		t.Fatalf("mobility bridges = %d, want %d", got, bridged)
	}

	if _, err := s.ComputeRoutes(context.Background(), 0); err != nil {
		t.Fatalf("ComputeRoutes: %v", err)
	}
	if recorder.routeCalls != 1 {
		t.Fatalf("ObserveRouteComputation calls = %d, want 1", recorder.routeCalls)
	}
	rec, _ := s.Telemetry().Routes(0)
	if recorder.unreachable != rec.Unreachable {
		t.Fatalf("unreachable = %d, want %d", recorder.unreachable, rec.Unreachable)
	}
}

func TestNetworkStateRecordsInitialEmptyCounts(t *testing.T) {
	recorder := &stubMetricsRecorder{}
	if _, err := NewNetworkState(DefaultSettings(), nil, WithMetricsRecorder(recorder)); err != nil {
		t.Fatalf("NewNetworkState: %v", err)
	}
	assertCounts(t, recorder.last(), metricsSnapshot{}, true)
}

func TestNetworkStateDrivesPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	s := newGeneratedState(t, 9, 5, WithMetricsRecorder(collector))
	mustStep(t, s, 2)
	if _, err := s.RoutingTable(context.Background(), 1); err != nil {
		t.Fatalf("RoutingTable: %v", err)
	}

	if got := testutil.ToFloat64(collector.Nodes); got != 9 {
		t.Fatalf("mesh_nodes = %v, want 9", got)
	}
	if got := testutil.ToFloat64(collector.Links); got != float64(s.Topology().EdgeCount()) {
		t.Fatalf("mesh_links = %v, want %d", got, s.Topology().EdgeCount())
	}
	if got := testutil.ToFloat64(collector.StepsTotal); got != 2 {
		t.Fatalf("mesh_steps_total = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(collector.RouteComputationDuration); got != 1 {
		t.Fatalf("route histogram series = %d, want 1", got)
	}
}

func assertCounts(t *testing.T, got, want metricsSnapshot, checkComponents bool) {
	t.Helper()
	if !checkComponents {
		want.components = got.components
	}
	if got != want {
		t.Fatalf("metrics snapshot = %+v, want %+v", got, want)
	}
}
