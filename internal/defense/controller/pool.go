package controller

import (
	"errors"

	"github.com/signalsfoundry/defense-coordinator/model"
)

// ErrPoolFull indicates a GiveBack that would exceed pool capacity, which can
// only happen when the allocate/give-back pairing invariant was violated.
var ErrPoolFull = errors.New("pool already at capacity")

// Pool holds ready interceptor capacity at a site. All mutation happens on
// the single simulation goroutine, so no locking.
type Pool struct {
	ID       model.PoolID
	SiteID   model.SiteID
	Position model.Vec2

	// Priority orders pools for restocking by delivery collaborators.
	Priority int

	capacity    int
	ready       int
	operational bool
}

// NewPool constructs a fully stocked, operational pool.
func NewPool(id model.PoolID, site model.SiteID, pos model.Vec2, capacity, priority int) *Pool {
	if capacity < 0 {
		capacity = 0
	}
	return &Pool{
		ID:          id,
		SiteID:      site,
		Position:    pos,
		Priority:    priority,
		capacity:    capacity,
		ready:       capacity,
		operational: true,
	}
}

// Allocate takes one ready interceptor out of the pool. It reports false when
// the pool is empty or non-operational; absence of capacity is an expected
// steady state, never an error.
func (p *Pool) Allocate() bool {
	if p == nil || !p.operational || p.ready == 0 {
		return false
	}
	p.ready--
	return true
}

// GiveBack returns a docked interceptor to the pool. Callers invoke it exactly
// once per successful Allocate.
func (p *Pool) GiveBack() error {
	if p.ready >= p.capacity {
		return ErrPoolFull
	}
	p.ready++
	return nil
}

// ReadyCount returns how many interceptors are ready to launch.
func (p *Pool) ReadyCount() int { return p.ready }

// Capacity returns the pool's maximum interceptor count.
func (p *Pool) Capacity() int { return p.capacity }

// EmptySlots returns how many interceptors the pool can still take back.
// Delivery collaborators use this together with Priority to plan restocks.
func (p *Pool) EmptySlots() int { return p.capacity - p.ready }

// Operational reports whether the pool can launch.
func (p *Pool) Operational() bool { return p != nil && p.operational }

// SetOperational flips the pool's operational state. A non-operational pool
// refuses allocations but still accepts give-backs from interceptors already
// in flight.
func (p *Pool) SetOperational(v bool) { p.operational = v }
