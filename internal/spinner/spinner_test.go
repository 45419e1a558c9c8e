// internal/spinner/spinner_test.go
package spinner

import (
	"context"
	"testing"
	"time"
)

func TestNew_RejectsNonPositivePeriod(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatalf("expected error for zero period")
	}
	if _, err := New(-time.Millisecond); err == nil {
		t.Fatalf("expected error for negative period")
	}
}

func TestSpin_HoldsPeriod(t *testing.T) {
	s, err := New(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("New err=%v", err)
	}

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := s.Spin(context.Background()); err != nil {
			t.Fatalf("Spin err=%v", err)
		}
	}
	elapsed := time.Since(start)
	if elapsed < 45*time.Millisecond {
		t.Fatalf("5 spins at 10ms took only %s", elapsed)
	}
	if elapsed > time.Second {
		t.Fatalf("5 spins at 10ms took %s", elapsed)
	}
}

func TestSpin_OverrunRebasesOnNow(t *testing.T) {
	s, _ := New(10 * time.Millisecond)

	t0 := time.Now()
	clock := t0
	s.now = func() time.Time { return clock }

	if err := s.Spin(context.Background()); err != nil {
		t.Fatalf("Spin err=%v", err)
	}

	// Iteration overran by several periods.
	clock = t0.Add(50 * time.Millisecond)
	begin := time.Now()
	if err := s.Spin(context.Background()); err != nil {
		t.Fatalf("Spin err=%v", err)
	}
	if time.Since(begin) > 5*time.Millisecond {
		t.Fatalf("late spin must return immediately")
	}
	if !s.next.Equal(clock) {
		t.Fatalf("deadline not re-based: next=%v now=%v", s.next, clock)
	}
}

func TestSpin_ContextCancel(t *testing.T) {
	s, _ := New(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Spin(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Spin did not return on cancel")
	}
}
