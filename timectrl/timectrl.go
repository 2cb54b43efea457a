// Package timectrl drives the simulation's fixed-step tick loop.
package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is an interface for reading simulation time. Components depend on
// this abstraction rather than the concrete controller, for testability.
type Clock interface {
	// CurrentTick returns the current simulation tick.
	CurrentTick() int64
}

// Mode describes how the TickController advances simulation time.
type Mode int

const (
	// RealTime advances at TickRate ticks per wall-clock second.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run, one tick per step.
	Accelerated
)

// TickController drives simulation ticks and notifies registered listeners in
// registration order. Listeners run on the controller's goroutine, so the
// whole simulation steps deterministically: tick N is fully processed before
// tick N+1 begins.
type TickController struct {
	mu sync.RWMutex

	// TickRate is ticks per wall-clock second in RealTime mode.
	TickRate int
	Mode     Mode

	current int64

	listeners []func(int64)
}

// NewTickController constructs a controller starting at tick zero.
func NewTickController(tickRate int, mode Mode) *TickController {
	if tickRate <= 0 {
		tickRate = 60
	}
	return &TickController{
		TickRate: tickRate,
		Mode:     mode,
	}
}

// CurrentTick returns the current simulation tick. Implements Clock.
func (tc *TickController) CurrentTick() int64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.current
}

// SetStartTick positions the controller before Run, e.g. when resuming from a
// persisted checkpoint.
func (tc *TickController) SetStartTick(tick int64) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.current = tick
}

// AddListener registers a callback invoked on every tick. Listeners must be
// registered before Run starts.
func (tc *TickController) AddListener(fn func(int64)) {
	tc.listeners = append(tc.listeners, fn)
}

// Run advances the simulation until maxTicks ticks have elapsed (zero means
// run until the context is cancelled). It returns a channel that is closed
// when the loop finishes.
func (tc *TickController) Run(ctx context.Context, maxTicks int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var ticker *time.Ticker
		if tc.Mode == RealTime {
			ticker = time.NewTicker(time.Second / time.Duration(tc.TickRate))
			defer ticker.Stop()
		}

		elapsed := int64(0)
		for {
			if maxTicks > 0 && elapsed >= maxTicks {
				return
			}
			if tc.Mode == RealTime {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			} else if ctx.Err() != nil {
				return
			}

			tc.mu.Lock()
			tc.current++
			tick := tc.current
			tc.mu.Unlock()
			elapsed++

			for _, fn := range tc.listeners {
				fn(tick)
			}
		}
	}()
	return done
}
