package timectrl

import (
	"context"
	"testing"
)

func TestTickControllerSetStartTick(t *testing.T) {
	tc := NewTickController(60, RealTime)

	tc.SetStartTick(42)

	if got := tc.CurrentTick(); got != 42 {
		t.Fatalf("CurrentTick() = %d, want 42", got)
	}
}

func TestTickControllerRunAdvancesTicks(t *testing.T) {
	tc := NewTickController(60, Accelerated)

	done := tc.Run(context.Background(), 15)
	<-done

	if got := tc.CurrentTick(); got != 15 {
		t.Fatalf("CurrentTick() = %d, want 15", got)
	}
}

func TestTickControllerListenersSeeEveryTick(t *testing.T) {
	tc := NewTickController(60, Accelerated)

	var seen []int64
	tc.AddListener(func(tick int64) { seen = append(seen, tick) })

	done := tc.Run(context.Background(), 5)
	<-done

	if len(seen) != 5 {
		t.Fatalf("listener fired %d times, want 5", len(seen))
	}
	for n, tick := range seen {
		if tick != int64(n+1) {
			t.Fatalf("tick sequence broken at %d: got %d", n, tick)
		}
	}
}

func TestTickControllerResumesFromCheckpoint(t *testing.T) {
	tc := NewTickController(60, Accelerated)
	tc.SetStartTick(100)

	var first int64
	tc.AddListener(func(tick int64) {
		if first == 0 {
			first = tick
		}
	})

	done := tc.Run(context.Background(), 3)
	<-done

	if first != 101 {
		t.Fatalf("first tick after resume = %d, want 101", first)
	}
	if got := tc.CurrentTick(); got != 103 {
		t.Fatalf("CurrentTick() = %d, want 103", got)
	}
}
