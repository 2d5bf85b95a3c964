package state

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalsfoundry/mesh-simulator/core"
)

// TestStepLoopAndQueriesConcurrency runs the mobility loop alongside
// concurrent route and neighbour queries. Every observed topology must be
// structurally valid and every route must agree with the snapshot it was
// computed on.
func TestStepLoopAndQueriesConcurrency(t *testing.T) {
	s := newGeneratedState(t, 30, 77)
	n := s.Settings().Nodes

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var steps atomic.Int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := s.Step(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				t.Errorf("Step: %v", err)
				return
			}
			steps.Add(1)
		}
	}()

	errs := make(chan error, 64)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 40; i++ {
				if ctx.Err() != nil {
					return
				}
				source := (w*7 + i) % n
				routes, err := s.ComputeRoutes(ctx, source)
				if err != nil {
					errs <- err
					return
				}
				if routes.Distance[source] != 0 {
					t.Errorf("distance to source %d = %d", source, routes.Distance[source])
					return
				}
				if _, err := s.NeighborsOf(ctx, source); err != nil {
					errs <- err
					return
				}
				topo := s.Topology()
				if err := topo.Validate(); err != nil {
					errs <- err
					return
				}
				snap := s.Snapshot()
				if len(snap.Nodes) != n {
					t.Errorf("snapshot has %d nodes, want %d", len(snap.Nodes), n)
					return
				}
			}
		}(w)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent query failed: %v", err)
	}
	if steps.Load() == 0 {
		t.Fatalf("step loop made no progress")
	}
	if got := s.CurrentStep(); int64(got) != steps.Load() {
		t.Fatalf("CurrentStep() = %d, want %d", got, steps.Load())
	}
	if !core.IsConnected(s.Topology()) {
		t.Fatalf("topology should stay connected with reconnection enabled")
	}
}
