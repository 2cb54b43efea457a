package core

import (
	"context"
	"testing"

	"github.com/signalsfoundry/defense-coordinator/internal/defense/controller"
	"github.com/signalsfoundry/defense-coordinator/internal/logging"
	"github.com/signalsfoundry/defense-coordinator/internal/threat"
	"github.com/signalsfoundry/defense-coordinator/kb"
	"github.com/signalsfoundry/defense-coordinator/model"
)

type engineRig struct {
	world  *kb.World
	agg    *threat.Aggregator
	coord  *controller.Coordinator
	engine *Engine
	pool   *controller.Pool
}

func newEngineRig(t *testing.T, cfg controller.Config) *engineRig {
	t.Helper()
	world := kb.NewWorld()
	if err := world.AddSite(&model.Site{ID: "base", Powered: true, HostsCoordinator: true}); err != nil {
		t.Fatalf("AddSite: %v", err)
	}
	agg := threat.NewAggregator(world, cfg.StaleTTL)
	oracle := NewConnectivityOracle(world, "base")
	coord := controller.NewCoordinator("base", world, agg, threat.NewScorer(), oracle, cfg, logging.Noop())

	pool := controller.NewPool("pool-1", "base", model.Vec2{}, 5, 0)
	if err := coord.RegisterPool(pool); err != nil {
		t.Fatalf("RegisterPool: %v", err)
	}

	return &engineRig{
		world:  world,
		agg:    agg,
		coord:  coord,
		engine: NewEngine(world, agg, coord, logging.Noop()),
		pool:   pool,
	}
}

func TestEngineSensorSweepFeedsAggregator(t *testing.T) {
	cfg := controller.DefaultConfig()
	r := newEngineRig(t, cfg)

	if err := r.world.AddHostile(&model.Hostile{
		ID: "raider-1", Category: model.CategoryLowTechFaction,
		Position: model.Vec2{X: 20}, Health: 50, MaxHealth: 50,
	}); err != nil {
		t.Fatalf("AddHostile: %v", err)
	}
	r.engine.AddSensor(&threat.FixedSensor{
		SensorID: "tower-1", Position: model.Vec2{}, RangeCells: 30, World: r.world,
	})

	r.engine.Tick(context.Background(), 1)

	rec := r.agg.Record("raider-1")
	if rec == nil {
		t.Fatalf("sensor sweep did not reach the aggregator")
	}
	if rec.Sensor != "tower-1" || rec.LastSeenTick != 1 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestEngineOutOfRangeHostileInvisible(t *testing.T) {
	cfg := controller.DefaultConfig()
	r := newEngineRig(t, cfg)

	if err := r.world.AddHostile(&model.Hostile{
		ID: "lurker", Category: model.CategoryLowTechFaction,
		Position: model.Vec2{X: 200}, Health: 50, MaxHealth: 50,
	}); err != nil {
		t.Fatalf("AddHostile: %v", err)
	}
	r.engine.AddSensor(&threat.FixedSensor{
		SensorID: "tower-1", Position: model.Vec2{}, RangeCells: 30, World: r.world,
	})

	// A full cycle passes; the unseen hostile draws no response.
	r.engine.Run(context.Background(), 0, cfg.CycleInterval)

	if got := r.coord.InFlightCount(); got != 0 {
		t.Fatalf("undetected hostile triggered %d launches", got)
	}
}

func TestEngineEndToEndEngagement(t *testing.T) {
	cfg := controller.DefaultConfig()
	cfg.CycleInterval = 10
	r := newEngineRig(t, cfg)

	// One dart's worth of threat within easy reach.
	if err := r.world.AddHostile(&model.Hostile{
		ID: "boar", Category: model.CategoryWildlife,
		Position: model.Vec2{X: 15}, Health: 20, MaxHealth: 20,
		BodySize: 1.5, Aggressive: true,
	}); err != nil {
		t.Fatalf("AddHostile: %v", err)
	}
	r.engine.AddSensor(&threat.FixedSensor{
		SensorID: "tower-1", Position: model.Vec2{}, RangeCells: 30, World: r.world,
	})

	// Cycle fires at tick 10, flight out and back takes a handful of ticks.
	r.engine.Run(context.Background(), 0, 40)

	if h := r.world.Hostile("boar"); h == nil || !h.Dead {
		t.Fatalf("hostile should be dead after engagement")
	}
	if got := r.coord.InFlightCount(); got != 0 {
		t.Fatalf("interceptor still in flight after %d ticks", 40)
	}
	if got := r.pool.ReadyCount(); got != 5 {
		t.Fatalf("pool ready = %d, want 5 after dock", got)
	}
}

func TestEngineTickListenersFireEveryTick(t *testing.T) {
	cfg := controller.DefaultConfig()
	r := newEngineRig(t, cfg)

	var ticks []int64
	r.engine.RegisterTickListener(func(tick int64) { ticks = append(ticks, tick) })

	r.engine.Run(context.Background(), 100, 3)

	if len(ticks) != 3 || ticks[0] != 101 || ticks[2] != 103 {
		t.Fatalf("listener ticks = %v", ticks)
	}
}

func TestEngineUnpoweredHostHoldsFire(t *testing.T) {
	cfg := controller.DefaultConfig()
	cfg.CycleInterval = 10
	r := newEngineRig(t, cfg)

	if err := r.world.AddHostile(&model.Hostile{
		ID: "raider-1", Category: model.CategoryHighTechFaction,
		Position: model.Vec2{X: 20}, Health: 100, MaxHealth: 100,
	}); err != nil {
		t.Fatalf("AddHostile: %v", err)
	}
	r.engine.AddSensor(&threat.FixedSensor{
		SensorID: "tower-1", Position: model.Vec2{}, RangeCells: 30, World: r.world,
	})

	if err := r.world.SetSitePowered("base", false); err != nil {
		t.Fatalf("SetSitePowered: %v", err)
	}
	r.engine.Run(context.Background(), 0, 2*cfg.CycleInterval)
	if got := r.coord.InFlightCount(); got != 0 {
		t.Fatalf("unpowered site launched %d interceptors", got)
	}

	// Power restored: the very next cycle engages.
	if err := r.world.SetSitePowered("base", true); err != nil {
		t.Fatalf("SetSitePowered: %v", err)
	}
	r.engine.Run(context.Background(), 2*cfg.CycleInterval, cfg.CycleInterval)
	if got := r.coord.InFlightCount(); got == 0 {
		t.Fatalf("expected launches after power restoration")
	}
}
