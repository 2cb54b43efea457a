package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/defense-coordinator/model"
)

// Sentinel errors for world mutations.
var (
	ErrHostileExists   = errors.New("hostile already exists")
	ErrHostileNotFound = errors.New("hostile not found")
	ErrSiteExists      = errors.New("site already exists")
	ErrSiteNotFound    = errors.New("site not found")
	ErrRelayExists     = errors.New("relay already exists")
	ErrRelayNotFound   = errors.New("relay not found")
)

// EventType indicates what kind of change happened in the world.
type EventType int

const (
	EventHostileKilled EventType = iota
	EventHostileRemoved
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type   EventType
	Target model.TargetID
}

// World is an in-memory, thread-safe arena for hostiles, sites and relays.
// Entities are keyed by ID; cross-references between entities are IDs, never
// pointers, so removal can not leave dangling references.
type World struct {
	mu sync.RWMutex

	hostiles map[model.TargetID]*model.Hostile
	sites    map[model.SiteID]*model.Site
	relays   map[model.RelayID]*model.Relay

	// hostileOrder preserves insertion order so iteration is deterministic.
	hostileOrder []model.TargetID

	subs []func(Event)
}

// NewWorld constructs an empty world.
func NewWorld() *World {
	return &World{
		hostiles: make(map[model.TargetID]*model.Hostile),
		sites:    make(map[model.SiteID]*model.Site),
		relays:   make(map[model.RelayID]*model.Relay),
	}
}

// AddHostile adds a new hostile. It returns an error if the ID already exists.
func (w *World) AddHostile(h *model.Hostile) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.hostiles[h.ID]; exists {
		return fmt.Errorf("%w: %q", ErrHostileExists, h.ID)
	}
	// store pointer so damage and movement update in-place
	w.hostiles[h.ID] = h
	w.hostileOrder = append(w.hostileOrder, h.ID)
	return nil
}

// Hostile returns the hostile with the given ID, or nil if not found.
func (w *World) Hostile(id model.TargetID) *model.Hostile {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.hostiles[id]
}

// TargetValid reports whether the target resolves to a live hostile.
func (w *World) TargetValid(id model.TargetID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.hostiles[id].Valid()
}

// ListHostiles returns all hostiles in insertion order.
func (w *World) ListHostiles() []*model.Hostile {
	w.mu.RLock()
	defer w.mu.RUnlock()

	res := make([]*model.Hostile, 0, len(w.hostileOrder))
	for _, id := range w.hostileOrder {
		if h, ok := w.hostiles[id]; ok {
			res = append(res, h)
		}
	}
	return res
}

// DamageHostile applies damage to a hostile and reports whether it died as a
// result. A kill event is emitted to subscribers exactly once.
func (w *World) DamageHostile(id model.TargetID, damage float64) (died bool, err error) {
	w.mu.Lock()
	h, ok := w.hostiles[id]
	if !ok {
		w.mu.Unlock()
		return false, fmt.Errorf("%w: %q", ErrHostileNotFound, id)
	}
	if h.Dead {
		w.mu.Unlock()
		return false, nil
	}
	h.Health -= damage
	if h.Health <= 0 {
		h.Health = 0
		h.Dead = true
		died = true
	}
	subs := append([]func(Event){}, w.subs...)
	w.mu.Unlock()

	if died {
		// Notify subscribers outside the lock to avoid deadlocks.
		for _, sub := range subs {
			sub(Event{Type: EventHostileKilled, Target: id})
		}
	}
	return died, nil
}

// RemoveHostile deletes a hostile from the arena entirely (left the map,
// despawned, etc). Removing an unknown ID is a no-op.
func (w *World) RemoveHostile(id model.TargetID) {
	w.mu.Lock()
	_, ok := w.hostiles[id]
	if ok {
		delete(w.hostiles, id)
		for i, hid := range w.hostileOrder {
			if hid == id {
				w.hostileOrder = append(w.hostileOrder[:i], w.hostileOrder[i+1:]...)
				break
			}
		}
	}
	subs := append([]func(Event){}, w.subs...)
	w.mu.Unlock()

	if ok {
		for _, sub := range subs {
			sub(Event{Type: EventHostileRemoved, Target: id})
		}
	}
}

// AddSite adds a new site. It returns an error if the ID already exists.
func (w *World) AddSite(s *model.Site) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.sites[s.ID]; exists {
		return fmt.Errorf("%w: %q", ErrSiteExists, s.ID)
	}
	w.sites[s.ID] = s
	return nil
}

// Site returns the site with the given ID, or nil if not found.
func (w *World) Site(id model.SiteID) *model.Site {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sites[id]
}

// ListSites returns a snapshot slice of all sites.
func (w *World) ListSites() []*model.Site {
	w.mu.RLock()
	defer w.mu.RUnlock()

	res := make([]*model.Site, 0, len(w.sites))
	for _, s := range w.sites {
		res = append(res, s)
	}
	return res
}

// SetSitePowered flips a site's power state.
func (w *World) SetSitePowered(id model.SiteID, powered bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.sites[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSiteNotFound, id)
	}
	s.Powered = powered
	return nil
}

// AddRelay adds a new relay. It returns an error if the ID already exists or
// if the referenced site does not exist.
func (w *World) AddRelay(r *model.Relay) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.relays[r.ID]; exists {
		return fmt.Errorf("%w: %q", ErrRelayExists, r.ID)
	}
	if r.SiteID != "" {
		if _, ok := w.sites[r.SiteID]; !ok {
			return fmt.Errorf("%w: %q for relay %q", ErrSiteNotFound, r.SiteID, r.ID)
		}
	}
	w.relays[r.ID] = r
	return nil
}

// Relay returns the relay with the given ID, or nil if not found.
func (w *World) Relay(id model.RelayID) *model.Relay {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.relays[id]
}

// RelaysAtSite returns all relays installed at the given site.
func (w *World) RelaysAtSite(id model.SiteID) []*model.Relay {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var res []*model.Relay
	for _, r := range w.relays {
		if r.SiteID == id {
			res = append(res, r)
		}
	}
	return res
}

// SetRelayPowered flips a relay's power state.
func (w *World) SetRelayPowered(id model.RelayID, powered bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	r, ok := w.relays[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrRelayNotFound, id)
	}
	r.Powered = powered
	return nil
}

// Subscribe registers a callback for world events. It returns an unsubscribe
// function.
func (w *World) Subscribe(fn func(Event)) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
	idx := len(w.subs) - 1

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if idx < 0 || idx >= len(w.subs) {
			return
		}
		w.subs = append(w.subs[:idx], w.subs[idx+1:]...)
		idx = -1
	}
}
