package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

var start = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func TestTimeControllerSetTime(t *testing.T) {
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	tc := NewTimeController(start, 5*time.Millisecond, RealTime)

	if err := <-tc.Start(context.Background(), 3); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if got := tc.Step(); got != 3 {
		t.Fatalf("Step() = %d, want 3", got)
	}
}

func TestAcceleratedRunNotifiesListenersInOrder(t *testing.T) {
	tc := NewTimeController(start, time.Hour, Accelerated)

	var calls []string
	var steps []int
	var times []time.Time
	tc.AddListener(func(_ context.Context, step int, simTime time.Time) error {
		calls = append(calls, "first")
		steps = append(steps, step)
		times = append(times, simTime)
		return nil
	})
	tc.AddListener(func(context.Context, int, time.Time) error {
		calls = append(calls, "second")
		return nil
	})

	began := time.Now()
	if err := tc.Run(context.Background(), 4); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(began); elapsed > time.Minute {
		t.Fatalf("accelerated run waited on the wall clock: %v", elapsed)
	}

	if len(steps) != 4 || steps[0] != 1 || steps[3] != 4 {
		t.Fatalf("steps = %v, want [1 2 3 4]", steps)
	}
	if !times[3].Equal(start.Add(4 * time.Hour)) {
		t.Fatalf("last sim time = %v, want %v", times[3], start.Add(4*time.Hour))
	}
	if len(calls) != 8 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestListenerErrorStopsRun(t *testing.T) {
	tc := NewTimeController(start, time.Second, Accelerated)
	boom := errors.New("boom")
	tc.AddListener(func(_ context.Context, step int, _ time.Time) error {
		if step == 2 {
			return boom
		}
		return nil
	})

	if err := tc.Run(context.Background(), 10); !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if got := tc.Step(); got != 2 {
		t.Fatalf("Step() = %d, want 2", got)
	}
}

func TestCancellationStopsUnboundedRun(t *testing.T) {
	tc := NewTimeController(start, time.Millisecond, Accelerated)
	ctx, cancel := context.WithCancel(context.Background())
	tc.AddListener(func(_ context.Context, step int, _ time.Time) error {
		if step == 5 {
			cancel()
		}
		return nil
	})

	if err := tc.Run(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if got := tc.Step(); got != 5 {
		t.Fatalf("Step() = %d, want 5", got)
	}
}

func TestRealTimeRunHonoursCancellation(t *testing.T) {
	tc := NewTimeController(start, time.Hour, RealTime)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tc.Run(ctx, 3); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want context.DeadlineExceeded", err)
	}
	if got := tc.Step(); got != 0 {
		t.Fatalf("Step() = %d, want 0", got)
	}
}

func TestRunRejectsNonPositiveTick(t *testing.T) {
	tc := NewTimeController(start, 0, Accelerated)
	if err := tc.Run(context.Background(), 1); err == nil {
		t.Fatalf("Run() with zero tick should fail")
	}
}

func TestModeFor(t *testing.T) {
	if ModeFor(true) != Accelerated || ModeFor(false) != RealTime {
		t.Fatalf("ModeFor mapping is wrong")
	}
	if Accelerated.String() != "accelerated" || RealTime.String() != "realtime" {
		t.Fatalf("unexpected mode names %q %q", Accelerated, RealTime)
	}
}
