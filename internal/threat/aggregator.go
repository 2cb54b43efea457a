package threat

import (
	"sync"

	"github.com/signalsfoundry/defense-coordinator/kb"
	"github.com/signalsfoundry/defense-coordinator/model"
)

// StaleTTL is how long a sighting stays actionable without being refreshed,
// in ticks.
const StaleTTL = 180

// Source is any collaborator producing threat sightings. The aggregator is
// agnostic to whether the source is a fixed tower or a roaming unit.
type Source interface {
	ID() model.SensorID
	DetectedThreats() []model.TargetID
}

// Record is an aggregated, staleness-tracked sighting of a hostile target.
type Record struct {
	Target       model.TargetID
	LastSeenTick int64
	Sensor       model.SensorID
}

// auxSource is an auxiliary (mobile/remote) sensor gated on connectivity.
type auxSource struct {
	src       Source
	connected func() bool
}

// Aggregator merges and deduplicates sensor reports into staleness-tracked
// threat records. Records for dead or removed targets are pruned; auxiliary
// sensor networks extend coverage while their relay link is up.
type Aggregator struct {
	mu sync.RWMutex

	world *kb.World
	ttl   int64

	records map[model.TargetID]*Record
	// order preserves first-report order so ActiveThreats is deterministic.
	order []model.TargetID

	aux []auxSource
}

// NewAggregator constructs an aggregator resolving target validity against
// the given world. A non-positive ttl falls back to StaleTTL.
func NewAggregator(world *kb.World, ttl int64) *Aggregator {
	if ttl <= 0 {
		ttl = StaleTTL
	}
	return &Aggregator{
		world:   world,
		ttl:     ttl,
		records: make(map[model.TargetID]*Record),
	}
}

// Report upserts a threat record, refreshing its last-seen tick and
// reporting sensor.
func (a *Aggregator) Report(target model.TargetID, sensor model.SensorID, tick int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if rec, ok := a.records[target]; ok {
		rec.LastSeenTick = tick
		rec.Sensor = sensor
		return
	}
	a.records[target] = &Record{Target: target, LastSeenTick: tick, Sensor: sensor}
	a.order = append(a.order, target)
}

// PruneStale removes records exceeding the TTL or whose target is no longer
// valid. It returns how many records were dropped.
func (a *Aggregator) PruneStale(currentTick int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	kept := a.order[:0]
	for _, id := range a.order {
		rec := a.records[id]
		stale := currentTick-rec.LastSeenTick > a.ttl
		if stale || !a.world.TargetValid(id) {
			delete(a.records, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	a.order = kept
	return removed
}

// ActiveThreats returns the deduplicated set of valid targets, in first-report
// order, unioned with targets designated by connected auxiliary sources.
func (a *Aggregator) ActiveThreats() []model.TargetID {
	a.mu.RLock()
	defer a.mu.RUnlock()

	seen := make(map[model.TargetID]bool, len(a.order))
	res := make([]model.TargetID, 0, len(a.order))
	for _, id := range a.order {
		if !a.world.TargetValid(id) {
			continue
		}
		seen[id] = true
		res = append(res, id)
	}

	for _, aux := range a.aux {
		if aux.connected != nil && !aux.connected() {
			continue
		}
		for _, id := range aux.src.DetectedThreats() {
			if seen[id] || !a.world.TargetValid(id) {
				continue
			}
			seen[id] = true
			res = append(res, id)
		}
	}
	return res
}

// Record returns the current record for a target, or nil if none exists.
func (a *Aggregator) Record(target model.TargetID) *Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if rec, ok := a.records[target]; ok {
		cp := *rec
		return &cp
	}
	return nil
}

// Len returns the number of tracked records, valid or not.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// AttachAuxiliary registers an auxiliary sensor network whose designations
// are unioned into ActiveThreats while connected() holds. A nil connected
// gate means always connected.
func (a *Aggregator) AttachAuxiliary(src Source, connected func() bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.aux = append(a.aux, auxSource{src: src, connected: connected})
}
