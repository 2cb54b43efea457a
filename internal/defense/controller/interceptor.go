package controller

import (
	"github.com/google/uuid"

	"github.com/signalsfoundry/defense-coordinator/model"
)

// InterceptorState is a step in the interceptor lifecycle.
type InterceptorState int

const (
	// StateIdle means the interceptor sits in its pool, ready to launch.
	StateIdle InterceptorState = iota
	// StateLaunched is transient; the unit becomes Engaging the same tick.
	StateLaunched
	// StateEngaging means the unit is homing on an assigned target.
	StateEngaging
	// StateReassigning means the unit lost its target and waits for a new one.
	StateReassigning
	// StateReturning means the unit flies back to its home pool.
	StateReturning
	// StateDocking is the terminal approach; GiveBack fires on completion.
	StateDocking
	// StateCrashed means the home pool vanished mid-flight; the unit is lost.
	StateCrashed
)

func (s InterceptorState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateLaunched:
		return "LAUNCHED"
	case StateEngaging:
		return "ENGAGING"
	case StateReassigning:
		return "REASSIGNING"
	case StateReturning:
		return "RETURNING"
	case StateDocking:
		return "DOCKING"
	case StateCrashed:
		return "CRASHED"
	default:
		return "UNKNOWN"
	}
}

// Interceptor is a mobile unit with its own lifecycle. While in flight it is
// owned by the coordinator's flight roster, not by its pool; cross-references
// are IDs only.
type Interceptor struct {
	ID model.InterceptorID

	// SortieID correlates one launch across log lines. A fresh one is
	// assigned per launch.
	SortieID string

	Position model.Vec2
	Speed    float64

	state    InterceptorState
	target   model.TargetID
	homePool model.PoolID

	// queuedSince is the tick the unit entered StateReassigning.
	queuedSince int64
}

func newInterceptor(id model.InterceptorID, pool *Pool, speed float64) *Interceptor {
	return &Interceptor{
		ID:       id,
		SortieID: uuid.NewString(),
		Position: pool.Position,
		Speed:    speed,
		state:    StateLaunched,
		homePool: pool.ID,
	}
}

// State returns the unit's current lifecycle state.
func (i *Interceptor) State() InterceptorState { return i.state }

// Target returns the currently assigned target, if any.
func (i *Interceptor) Target() model.TargetID { return i.target }

// HomePool returns the pool the unit launched from.
func (i *Interceptor) HomePool() model.PoolID { return i.homePool }

// Tick advances the unit by one simulation step. The unit self-detects
// target invalidity, pool proximity, and orphaning; it calls back into the
// coordinator rather than being polled, which keeps per-cycle coordinator
// work independent of the interceptor count.
func (i *Interceptor) Tick(c *Coordinator, tick int64) {
	if i.state == StateIdle || i.state == StateCrashed {
		return
	}

	// Orphan check: a unit whose home pool is gone finishes nothing and is
	// removed rather than looping forever.
	if c.pool(i.homePool) == nil {
		c.onCrashed(i)
		return
	}

	switch i.state {
	case StateLaunched:
		i.state = StateEngaging
		i.tickEngaging(c, tick)
	case StateEngaging:
		i.tickEngaging(c, tick)
	case StateReassigning:
		if tick-i.queuedSince > c.cfg.ReassignPatience {
			// Patience exhausted with no coordinator help (e.g. the site
			// lost connectivity); head home without further involvement.
			i.beginReturn()
		}
	case StateReturning:
		pool := c.pool(i.homePool)
		i.Position = i.Position.StepToward(pool.Position, i.Speed)
		if i.Position.DistanceTo(pool.Position) <= c.cfg.DockRadius {
			i.state = StateDocking
		}
	case StateDocking:
		c.onDocked(i)
	}
}

func (i *Interceptor) tickEngaging(c *Coordinator, tick int64) {
	h := c.world.Hostile(i.target)
	if !h.Valid() {
		// Target vanished independently of us; ask for new work instead of
		// carrying a dead reference into the next cycle.
		c.RequestReassignment(i, tick)
		return
	}
	i.Position = i.Position.StepToward(h.Position, i.Speed)
	if i.Position.DistanceTo(h.Position) <= c.cfg.ImpactRadius {
		c.OnImpact(i, i.target, tick)
	}
}

// beginReturn moves the unit into the Returning state. Re-issuing a return
// order to a unit already heading home is a no-op, making recall idempotent.
func (i *Interceptor) beginReturn() {
	switch i.state {
	case StateReturning, StateDocking, StateCrashed, StateIdle:
		return
	}
	i.state = StateReturning
	i.target = ""
}
