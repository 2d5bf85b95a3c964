package state

import (
	"context"
	"testing"

	"github.com/signalsfoundry/mesh-simulator/internal/logging"
)

// newGeneratedState builds a seeded state with n nodes and generates its
// first topology.
func newGeneratedState(t *testing.T, n int, seed uint64, opts ...Option) *NetworkState {
	t.Helper()
	settings := DefaultSettings()
	settings.Nodes = n
	opts = append([]Option{WithSeed(seed)}, opts...)
	s, err := NewNetworkState(settings, logging.Noop(), opts...)
	if err != nil {
		t.Fatalf("NewNetworkState() error = %v", err)
	}
	if _, err := s.Generate(context.Background()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return s
}

func mustStep(t *testing.T, s *NetworkState, steps int) {
	t.Helper()
	for i := 0; i < steps; i++ {
		if _, err := s.Step(context.Background()); err != nil {
			t.Fatalf("Step() #%d error = %v", i+1, err)
		}
	}
}
