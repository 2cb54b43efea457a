package core

import (
	"context"

	"github.com/signalsfoundry/defense-coordinator/internal/defense/controller"
	"github.com/signalsfoundry/defense-coordinator/internal/logging"
	"github.com/signalsfoundry/defense-coordinator/internal/threat"
	"github.com/signalsfoundry/defense-coordinator/kb"
)

// Engine steps the whole simulation through one fixed tick at a time: sensor
// sweeps feed the threat aggregator, the coordinator runs its cycle on
// cadence, and in-flight interceptors advance. Everything happens on the
// caller's goroutine, so a given tick is fully processed before the next.
type Engine struct {
	World       *kb.World
	Threats     *threat.Aggregator
	Coordinator *controller.Coordinator

	sensors       []threat.Source
	log           logging.Logger
	tickListeners []func(int64)
}

// NewEngine wires the simulation components together.
func NewEngine(world *kb.World, threats *threat.Aggregator, coordinator *controller.Coordinator, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Noop()
	}
	return &Engine{
		World:       world,
		Threats:     threats,
		Coordinator: coordinator,
		log:         log,
	}
}

// AddSensor registers a sensor whose detections are swept into the aggregator
// every tick. Auxiliary coordinators are attached to the aggregator directly,
// not here; their designations are unioned at read time.
func (e *Engine) AddSensor(src threat.Source) {
	e.sensors = append(e.sensors, src)
}

// RegisterTickListener adds a callback invoked at the end of every tick,
// after interceptors have moved. Used for checkpointing and test probes.
func (e *Engine) RegisterTickListener(fn func(int64)) {
	e.tickListeners = append(e.tickListeners, fn)
}

// Tick advances the simulation by one step.
func (e *Engine) Tick(ctx context.Context, tick int64) {
	for _, src := range e.sensors {
		for _, target := range src.DetectedThreats() {
			e.Threats.Report(target, src.ID(), tick)
		}
	}

	e.Coordinator.MaybeRunCycle(ctx, tick)
	e.Coordinator.TickInterceptors(tick)

	for _, fn := range e.tickListeners {
		fn(tick)
	}
}

// Run steps the engine for the given number of ticks, starting after `from`.
// Mostly a convenience for tests and batch runs; live runs drive Tick from a
// TickController instead.
func (e *Engine) Run(ctx context.Context, from, ticks int64) {
	for tick := from + 1; tick <= from+ticks; tick++ {
		e.Tick(ctx, tick)
	}
}
