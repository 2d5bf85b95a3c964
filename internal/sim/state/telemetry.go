package state

import (
	"sort"
	"sync"
	"time"
)

// DefaultTelemetryHistory bounds how many step records are retained.
const DefaultTelemetryHistory = 1024

// StepRecord summarises one applied mobility step.
type StepRecord struct {
	// Step is 1 for the first mobility step after generation.
	Step int

	// Edges is the link count after the step, bridges included.
	Edges int

	// Components is counted on the proximity graph before reconnection.
	Components int

	// Bridges is how many links the reconnection pass added.
	Bridges int

	MeanDisplacement float64
	StdDisplacement  float64

	// Duration is the wall time spent computing the step.
	Duration time.Duration
}

// RouteRecord captures the outcome of the last route computation from one
// source.
type RouteRecord struct {
	Source      int
	Threshold   int
	Step        int
	Reachable   int
	Unreachable int
	Duration    time.Duration
}

// TelemetryState is a concurrency-safe store of per-step and per-source
// records.
type TelemetryState struct {
	mu     sync.RWMutex
	limit  int
	steps  []StepRecord
	routes map[int]RouteRecord // key: source node
}

// NewTelemetryState creates a store keeping at most limit step records;
// limit <= 0 selects DefaultTelemetryHistory.
func NewTelemetryState(limit int) *TelemetryState {
	if limit <= 0 {
		limit = DefaultTelemetryHistory
	}
	return &TelemetryState{
		limit:  limit,
		routes: make(map[int]RouteRecord),
	}
}

// RecordStep appends a step record, dropping the oldest once the limit is
// reached.
func (t *TelemetryState) RecordStep(r StepRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.steps) == t.limit {
		copy(t.steps, t.steps[1:])
		t.steps = t.steps[:len(t.steps)-1]
	}
	t.steps = append(t.steps, r)
}

// Steps returns a copy of the retained step records, oldest first.
func (t *TelemetryState) Steps() []StepRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]StepRecord, len(t.steps))
	copy(out, t.steps)
	return out
}

// LastStep returns the most recent step record.
func (t *TelemetryState) LastStep() (StepRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.steps) == 0 {
		return StepRecord{}, false
	}
	return t.steps[len(t.steps)-1], true
}

// RecordRoutes stores the latest route record for r.Source.
func (t *TelemetryState) RecordRoutes(r RouteRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[r.Source] = r
}

// Routes returns the latest route record for source.
func (t *TelemetryState) Routes(source int) (RouteRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.routes[source]
	return r, ok
}

// ListRoutes returns every stored route record by ascending source.
func (t *TelemetryState) ListRoutes() []RouteRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]RouteRecord, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Clear drops every record. Regenerating the topology invalidates them.
func (t *TelemetryState) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = nil
	t.routes = make(map[int]RouteRecord)
}
