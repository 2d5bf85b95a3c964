package timectrl

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SimClock is an interface for accessing simulation time, so components can
// depend on a clock abstraction rather than a concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// Step returns the number of completed ticks.
	Step() int
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the listeners return while still
	// stepping simulation time by Tick.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ModeFor maps the accelerated flag of a run configuration to a Mode.
func ModeFor(accelerated bool) Mode {
	if accelerated {
		return Accelerated
	}
	return RealTime
}

// Listener is invoked once per tick with the step number (starting at 1)
// and the simulation time reached. A non-nil error stops the controller.
type Listener func(ctx context.Context, step int, simTime time.Time) error

// TimeController drives simulation time and notifies registered listeners.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	step        int

	listeners []Listener
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Step returns the number of completed ticks. Implements SimClock.
func (tc *TimeController) Step() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.step
}

// SetTime moves the simulation clock without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// AddListener registers a callback invoked on every tick, in registration
// order.
func (tc *TimeController) AddListener(fn Listener) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Run advances the clock steps times, or until ctx is done when steps is
// not positive, and blocks until it stops. It returns the first listener
// error, or ctx.Err() when cancelled.
func (tc *TimeController) Run(ctx context.Context, steps int) error {
	if tc.Tick <= 0 {
		return fmt.Errorf("timectrl: tick must be positive, got %v", tc.Tick)
	}

	tc.mu.Lock()
	simTime := tc.StartTime
	tc.currentTime = simTime
	tc.step = 0
	listeners := append([]Listener(nil), tc.listeners...)
	tc.mu.Unlock()

	var tick <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()
		tick = ticker.C
	}

	for step := 1; steps <= 0 || step <= steps; step++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		simTime = simTime.Add(tc.Tick)
		tc.mu.Lock()
		tc.currentTime = simTime
		tc.step = step
		tc.mu.Unlock()

		for _, fn := range listeners {
			if err := fn(ctx, step, simTime); err != nil {
				return err
			}
		}
	}
	return nil
}

// Start runs the controller in a separate goroutine. The returned channel
// receives the result of Run and is then closed.
func (tc *TimeController) Start(ctx context.Context, steps int) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- tc.Run(ctx, steps)
	}()
	return done
}
