package controller

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/defense-coordinator/internal/logging"
	"github.com/signalsfoundry/defense-coordinator/internal/threat"
	"github.com/signalsfoundry/defense-coordinator/kb"
	"github.com/signalsfoundry/defense-coordinator/model"
)

// Connectivity gates coordination on the site's link to the coordinating
// authority. Implemented by core.ConnectivityOracle.
type Connectivity interface {
	IsConnected(model.SiteID) bool
	StatusMessage(model.SiteID) string
}

// MetricsRecorder receives coordinator metrics updates. Implemented by
// observability.CoordinatorCollector; nil disables metrics.
type MetricsRecorder interface {
	SetCoordinatorCounts(threats, pools, readyCapacity, inFlight, queued int)
	ObserveCycleDuration(seconds float64)
	IncLaunches(n int)
	IncImpacts()
	IncReassignments()
	IncRecalls()
	IncSkippedCycles()
}

// Config holds the coordinator's scheduling knobs. All tick-denominated
// values are simulation ticks, not wall time.
type Config struct {
	// CycleInterval is the scan/score/assign cadence. 60 ticks is about one
	// simulated second.
	CycleInterval int64
	// StaleTTL is how long an unrefreshed sighting stays actionable.
	StaleTTL int64
	// MaxLaunchesPerCycle and MinLaunchBatch bound the per-cycle launch
	// budget: B = min(MaxLaunchesPerCycle, max(MinLaunchBatch, threats)).
	MaxLaunchesPerCycle int
	MinLaunchBatch      int
	// ReassignPatience is how long a queued interceptor waits for new work
	// before self-serving a return order.
	ReassignPatience int64
	// EscalationMargin is the extra capacity committed to a designated
	// priority target beyond its computed need.
	EscalationMargin int
	// EscalationBypassesBudget lets priority-target escalation ignore the
	// per-cycle launch budget.
	EscalationBypassesBudget bool

	InterceptorSpeed float64
	ImpactRadius     float64
	DockRadius       float64
}

// DefaultConfig returns the documented scheduling defaults.
func DefaultConfig() Config {
	return Config{
		CycleInterval:            60,
		StaleTTL:                 threat.StaleTTL,
		MaxLaunchesPerCycle:      12,
		MinLaunchBatch:           3,
		ReassignPatience:         300,
		EscalationMargin:         1,
		EscalationBypassesBudget: true,
		InterceptorSpeed:         2.5,
		ImpactRadius:             1.0,
		DockRadius:               1.0,
	}
}

// QueuedReassignment is the persisted form of a reassignment queue entry.
type QueuedReassignment struct {
	Interceptor model.InterceptorID
	QueuedTick  int64
}

var tracer = otel.Tracer("defense-coordinator/controller")

// Coordinator is the per-site scheduler. It owns the threat set, assignment
// ledger, reassignment queue, and the registered pools, and drives the
// periodic scan/score/assign/recall cycle.
//
// All mutation happens on the single simulation goroutine; read accessors
// are pure and intended for the same goroutine or for post-run inspection.
type Coordinator struct {
	site    model.SiteID
	world   *kb.World
	threats *threat.Aggregator
	scorer  *threat.Scorer
	oracle  Connectivity
	cfg     Config
	log     logging.Logger
	metrics MetricsRecorder

	// pools are registered capacity stores; poolOrder preserves registration
	// order so distance ties resolve deterministically.
	pools     map[model.PoolID]*Pool
	poolOrder []model.PoolID

	// ledger maps target -> number of interceptors currently assigned.
	// A key is absent once its value reaches zero.
	ledger map[model.TargetID]int

	// reassignQueue holds interceptors waiting for new work, FIFO.
	reassignQueue []*Interceptor

	// inFlight is the roster of launched interceptors; flightOrder keeps
	// tick processing deterministic.
	inFlight    map[model.InterceptorID]*Interceptor
	flightOrder []model.InterceptorID

	priorityTarget model.TargetID

	nextSeq int
}

// CoordinatorOption customises coordinator construction.
type CoordinatorOption func(*Coordinator)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// NewCoordinator creates the scheduler for one defended site.
func NewCoordinator(site model.SiteID, world *kb.World, threats *threat.Aggregator,
	scorer *threat.Scorer, oracle Connectivity, cfg Config, log logging.Logger,
	opts ...CoordinatorOption) *Coordinator {

	if log == nil {
		log = logging.Noop()
	}
	if scorer == nil {
		scorer = threat.NewScorer()
	}
	c := &Coordinator{
		site:     site,
		world:    world,
		threats:  threats,
		scorer:   scorer,
		oracle:   oracle,
		cfg:      cfg,
		log:      log,
		pools:    make(map[model.PoolID]*Pool),
		ledger:   make(map[model.TargetID]int),
		inFlight: make(map[model.InterceptorID]*Interceptor),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterPool adds a pool to the coordinator's registry.
func (c *Coordinator) RegisterPool(p *Pool) error {
	if _, exists := c.pools[p.ID]; exists {
		return fmt.Errorf("pool %q already registered", p.ID)
	}
	c.pools[p.ID] = p
	c.poolOrder = append(c.poolOrder, p.ID)
	return nil
}

// RemovePool destroys a pool. Interceptors that launched from it detect the
// loss on their next tick and crash rather than looping forever.
func (c *Coordinator) RemovePool(id model.PoolID) {
	p, ok := c.pools[id]
	if !ok {
		return
	}
	p.SetOperational(false)
	delete(c.pools, id)
	for i, pid := range c.poolOrder {
		if pid == id {
			c.poolOrder = append(c.poolOrder[:i], c.poolOrder[i+1:]...)
			break
		}
	}
}

// Shutdown marks every owned pool non-operational. In-flight interceptors
// keep executing their current order and crash once orphaned.
func (c *Coordinator) Shutdown() {
	for _, id := range c.poolOrder {
		c.pools[id].SetOperational(false)
	}
}

func (c *Coordinator) pool(id model.PoolID) *Pool {
	return c.pools[id]
}

// MaybeRunCycle runs a scheduling cycle when the tick lands on the cycle
// cadence.
func (c *Coordinator) MaybeRunCycle(ctx context.Context, tick int64) {
	interval := c.cfg.CycleInterval
	if interval <= 0 {
		interval = 1
	}
	if tick%interval == 0 {
		c.RunCycle(ctx, tick)
	}
}

// RunCycle executes one scan/score/assign/recall pass. While the site is
// disconnected the entire cycle is skipped: no pruning, no assignment, no
// partial state. Interceptors already in flight continue their orders.
func (c *Coordinator) RunCycle(ctx context.Context, tick int64) {
	if c.oracle != nil && !c.oracle.IsConnected(c.site) {
		if c.metrics != nil {
			c.metrics.IncSkippedCycles()
		}
		c.log.Debug(ctx, "cycle skipped, site disconnected",
			logging.String("site", string(c.site)),
			logging.String("status", c.oracle.StatusMessage(c.site)),
		)
		return
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "coordinator.cycle")
	span.SetAttributes(attribute.Int64("tick", tick))
	defer span.End()

	// 1. Drop stale sightings and ledger residue for invalid targets.
	pruned := c.threats.PruneStale(tick)
	c.pruneLedger()

	// 2. Give queued interceptors a chance at new work.
	c.processReassignQueue(tick)

	// 3. Nothing left to fight: recall everything and stop.
	targets := c.activeHostiles()
	if len(targets) == 0 {
		c.RecallAll(ctx)
		c.recordGauges()
		if c.metrics != nil {
			c.metrics.ObserveCycleDuration(time.Since(start).Seconds())
		}
		return
	}

	// 4. Closest threats first; ties keep first-report order so identical
	// snapshots always schedule identically.
	c.sortByPoolDistance(targets)

	// 5. Per-cycle launch budget: guarantees every threat gets a chance at
	// assignment instead of the nearest one draining all capacity.
	budget := c.launchBudget(len(targets))

	// 6. Round-robin passes over the sorted threats until the budget is
	// spent or a full pass assigns nothing.
	launched := c.assignPasses(ctx, targets, &budget, tick)

	// 7. Priority-target escalation, layered over the normal cycle.
	launched += c.escalatePriorityTarget(ctx, &budget, tick)

	span.SetAttributes(
		attribute.Int("threats", len(targets)),
		attribute.Int("launched", launched),
		attribute.Int("pruned", pruned),
	)
	c.recordGauges()
	if c.metrics != nil {
		c.metrics.ObserveCycleDuration(time.Since(start).Seconds())
	}
	if launched > 0 || pruned > 0 {
		c.log.Info(ctx, "cycle complete",
			logging.Int("tick", int(tick)),
			logging.Int("threats", len(targets)),
			logging.Int("launched", launched),
			logging.Int("pruned", pruned),
			logging.Int("queued", len(c.reassignQueue)),
		)
	}
}

// pruneLedger removes ledger entries whose target is dead or missing, along
// with any zero-valued residue.
func (c *Coordinator) pruneLedger() {
	for id, count := range c.ledger {
		if count <= 0 || !c.world.TargetValid(id) {
			delete(c.ledger, id)
		}
	}
}

// activeHostiles resolves the aggregator's target set to live hostiles.
func (c *Coordinator) activeHostiles() []*model.Hostile {
	ids := c.threats.ActiveThreats()
	res := make([]*model.Hostile, 0, len(ids))
	for _, id := range ids {
		if h := c.world.Hostile(id); h.Valid() {
			res = append(res, h)
		}
	}
	return res
}

// sortByPoolDistance orders targets ascending by distance to the nearest
// operational pool. The sort is stable over the aggregator's first-report
// order (determinism requirement).
func (c *Coordinator) sortByPoolDistance(targets []*model.Hostile) {
	dist := make(map[model.TargetID]float64, len(targets))
	for _, h := range targets {
		dist[h.ID] = c.nearestPoolDistance(h.Position)
	}
	sort.SliceStable(targets, func(i, j int) bool {
		return dist[targets[i].ID] < dist[targets[j].ID]
	})
}

func (c *Coordinator) nearestPoolDistance(pos model.Vec2) float64 {
	best := -1.0
	for _, id := range c.poolOrder {
		p := c.pools[id]
		if !p.Operational() {
			continue
		}
		d := pos.DistanceTo(p.Position)
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		// No operational pool; sort such targets last.
		return float64(1 << 40)
	}
	return best
}

// nearestReadyPool returns the closest operational pool with ready capacity,
// resolving ties by registration order.
func (c *Coordinator) nearestReadyPool(pos model.Vec2) *Pool {
	var best *Pool
	bestDist := 0.0
	for _, id := range c.poolOrder {
		p := c.pools[id]
		if !p.Operational() || p.ReadyCount() == 0 {
			continue
		}
		d := pos.DistanceTo(p.Position)
		if best == nil || d < bestDist {
			best = p
			bestDist = d
		}
	}
	return best
}

func (c *Coordinator) launchBudget(threatCount int) int {
	b := threatCount
	if b < c.cfg.MinLaunchBatch {
		b = c.cfg.MinLaunchBatch
	}
	if b > c.cfg.MaxLaunchesPerCycle {
		b = c.cfg.MaxLaunchesPerCycle
	}
	return b
}

// assignPasses repeatedly sweeps the sorted threat list, launching one
// interceptor per unmet threat per pass, until the budget is exhausted or a
// full pass assigns nothing (no capacity anywhere). Unmet demand is not an
// error; it persists and is retried next cycle.
func (c *Coordinator) assignPasses(ctx context.Context, targets []*model.Hostile, budget *int, tick int64) int {
	launched := 0
	for *budget > 0 {
		assignedThisPass := 0
		for _, h := range targets {
			if *budget == 0 {
				break
			}
			if c.scorer.DartsNeeded(h) <= c.ledger[h.ID] {
				continue
			}
			pool := c.nearestReadyPool(h.Position)
			if pool == nil {
				continue
			}
			c.launch(ctx, pool, h.ID, tick)
			*budget--
			assignedThisPass++
			launched++
		}
		if assignedThisPass == 0 {
			break
		}
	}
	return launched
}

// launch allocates from the pool and puts a new interceptor in flight.
// The caller has already verified ready capacity.
func (c *Coordinator) launch(ctx context.Context, pool *Pool, target model.TargetID, tick int64) *Interceptor {
	if !pool.Allocate() {
		return nil
	}
	c.nextSeq++
	i := newInterceptor(model.InterceptorID(fmt.Sprintf("ic-%03d", c.nextSeq)), pool, c.cfg.InterceptorSpeed)
	i.target = target
	i.state = StateEngaging
	c.inFlight[i.ID] = i
	c.flightOrder = append(c.flightOrder, i.ID)
	c.ledger[target]++
	if c.metrics != nil {
		c.metrics.IncLaunches(1)
	}
	c.log.Debug(ctx, "interceptor launched",
		logging.String("interceptor", string(i.ID)),
		logging.String("sortie", i.SortieID),
		logging.String("pool", string(pool.ID)),
		logging.String("target", string(target)),
		logging.Int("tick", int(tick)),
	)
	return i
}

// escalatePriorityTarget force-assigns capacity to the externally designated
// priority target until needed+margin is met or capacity runs out. Depending
// on configuration it bypasses the per-cycle budget.
func (c *Coordinator) escalatePriorityTarget(ctx context.Context, budget *int, tick int64) int {
	if c.priorityTarget == "" {
		return 0
	}
	h := c.world.Hostile(c.priorityTarget)
	if !h.Valid() {
		c.priorityTarget = ""
		return 0
	}

	want := c.scorer.DartsNeeded(h) + c.cfg.EscalationMargin
	launched := 0
	for c.ledger[h.ID] < want {
		if !c.cfg.EscalationBypassesBudget {
			if *budget == 0 {
				break
			}
			*budget--
		}
		pool := c.nearestReadyPool(h.Position)
		if pool == nil {
			break
		}
		c.launch(ctx, pool, h.ID, tick)
		launched++
	}
	if launched > 0 {
		c.log.Info(ctx, "priority target escalation",
			logging.String("target", string(h.ID)),
			logging.Int("launched", launched),
			logging.Int("assigned", c.ledger[h.ID]),
		)
	}
	return launched
}

// processReassignQueue retries queued interceptors in FIFO order. Each entry
// is reassigned to the nearest unmet threat if one exists, sent home when no
// threats remain at all, and left queued for the next cycle otherwise. A unit
// that lingers past its patience window sends itself home (see Tick).
//
// Chosen policy: while any threat survives, a unit with no unmet demand
// stays queued rather than returning immediately, so it can cover a shield
// soak or a late arrival without a fresh launch. The patience window bounds
// how long it loiters.
func (c *Coordinator) processReassignQueue(tick int64) {
	kept := c.reassignQueue[:0]
	for _, i := range c.reassignQueue {
		if i.state != StateReassigning {
			// Patience-returned, crashed, or recalled; just dequeue.
			continue
		}
		if c.assignNearestUnmet(i, tick) {
			continue
		}
		if len(c.activeHostiles()) == 0 {
			i.beginReturn()
			continue
		}
		kept = append(kept, i)
	}
	c.reassignQueue = kept
}

// assignNearestUnmet points the interceptor at the closest threat whose dart
// requirement exceeds its assigned count. Ties resolve by first-report order.
func (c *Coordinator) assignNearestUnmet(i *Interceptor, tick int64) bool {
	var best *model.Hostile
	bestDist := 0.0
	for _, h := range c.activeHostiles() {
		if c.scorer.DartsNeeded(h) <= c.ledger[h.ID] {
			continue
		}
		d := i.Position.DistanceTo(h.Position)
		if best == nil || d < bestDist {
			best = h
			bestDist = d
		}
	}
	if best == nil {
		return false
	}
	i.target = best.ID
	i.state = StateEngaging
	c.ledger[best.ID]++
	if c.metrics != nil {
		c.metrics.IncReassignments()
	}
	return true
}

// OnImpact is the interceptor's self-report of dart delivery. It decrements
// the assignment ledger and immediately re-enters the reassignment path.
func (c *Coordinator) OnImpact(i *Interceptor, target model.TargetID, tick int64) {
	died, err := c.world.DamageHostile(target, c.scorer.Lethality)
	if err != nil {
		// Target vanished between detection and impact; nothing to damage.
		died = false
	}
	c.decrementLedger(target)
	if c.metrics != nil {
		c.metrics.IncImpacts()
	}
	c.log.Debug(context.Background(), "interceptor impact",
		logging.String("interceptor", string(i.ID)),
		logging.String("sortie", i.SortieID),
		logging.String("target", string(target)),
		logging.Any("killed", died),
	)
	i.target = ""
	i.state = StateReassigning
	c.RequestReassignment(i, tick)
}

// RequestReassignment is invoked by an interceptor that detected its target
// is gone (or just delivered its dart). Fast path: direct nearest-unmet
// lookup this tick; otherwise the unit is queued and retried next cycle, or
// sent home when no threats exist at all.
func (c *Coordinator) RequestReassignment(i *Interceptor, tick int64) {
	i.target = ""
	i.state = StateReassigning
	if c.assignNearestUnmet(i, tick) {
		return
	}
	if len(c.activeHostiles()) == 0 {
		i.beginReturn()
		return
	}
	i.queuedSince = tick
	for _, queued := range c.reassignQueue {
		if queued == i {
			return
		}
	}
	c.reassignQueue = append(c.reassignQueue, i)
}

// RecallAll broadcasts a return order to every launched, engaging, or
// reassigning interceptor and clears the ledger and queue. Calling it twice
// in one cycle has the same effect as once.
func (c *Coordinator) RecallAll(ctx context.Context) {
	recalled := 0
	for _, id := range c.flightOrder {
		i := c.inFlight[id]
		switch i.state {
		case StateLaunched, StateEngaging, StateReassigning:
			i.beginReturn()
			recalled++
		}
	}
	c.ledger = make(map[model.TargetID]int)
	c.reassignQueue = c.reassignQueue[:0]
	if recalled > 0 {
		if c.metrics != nil {
			c.metrics.IncRecalls()
		}
		c.log.Info(ctx, "recall broadcast",
			logging.String("site", string(c.site)),
			logging.Int("recalled", recalled),
		)
	}
}

// TickInterceptors advances every in-flight interceptor one step, in launch
// order.
func (c *Coordinator) TickInterceptors(tick int64) {
	order := append([]model.InterceptorID(nil), c.flightOrder...)
	for _, id := range order {
		if i, ok := c.inFlight[id]; ok {
			i.Tick(c, tick)
		}
	}
	c.recordGauges()
}

// onDocked hands the unit back to its pool and retires it from the roster.
func (c *Coordinator) onDocked(i *Interceptor) {
	pool := c.pool(i.homePool)
	if pool == nil {
		c.onCrashed(i)
		return
	}
	if err := pool.GiveBack(); err != nil {
		c.log.Warn(context.Background(), "give-back rejected",
			logging.String("interceptor", string(i.ID)),
			logging.String("pool", string(pool.ID)),
			logging.String("error", err.Error()),
		)
	}
	i.state = StateIdle
	c.removeFromFlight(i.ID)
}

// onCrashed retires an orphaned unit, releasing any ledger hold it had.
func (c *Coordinator) onCrashed(i *Interceptor) {
	if i.target != "" {
		c.decrementLedger(i.target)
	}
	i.state = StateCrashed
	i.target = ""
	c.removeFromFlight(i.ID)
}

func (c *Coordinator) removeFromFlight(id model.InterceptorID) {
	delete(c.inFlight, id)
	for n, fid := range c.flightOrder {
		if fid == id {
			c.flightOrder = append(c.flightOrder[:n], c.flightOrder[n+1:]...)
			break
		}
	}
}

func (c *Coordinator) decrementLedger(target model.TargetID) {
	if count, ok := c.ledger[target]; ok {
		count--
		if count <= 0 {
			delete(c.ledger, target)
		} else {
			c.ledger[target] = count
		}
	}
}

// DesignatePriorityTarget marks a target for escalated assignment. The
// designation survives until cleared or the target dies.
func (c *Coordinator) DesignatePriorityTarget(id model.TargetID) {
	c.priorityTarget = id
}

// ClearPriorityTarget removes the current designation.
func (c *Coordinator) ClearPriorityTarget() {
	c.priorityTarget = ""
}

// ---- Operator read accessors ----

// PoolCount returns the number of registered pools.
func (c *Coordinator) PoolCount() int { return len(c.poolOrder) }

// ReadyCapacity sums ready interceptors across operational pools.
func (c *Coordinator) ReadyCapacity() int {
	total := 0
	for _, id := range c.poolOrder {
		if p := c.pools[id]; p.Operational() {
			total += p.ReadyCount()
		}
	}
	return total
}

// ActiveThreatCount returns the current valid threat count.
func (c *Coordinator) ActiveThreatCount() int { return len(c.activeHostiles()) }

// InFlightCount returns how many interceptors are currently in flight.
func (c *Coordinator) InFlightCount() int { return len(c.inFlight) }

// QueuedReassignments returns the reassignment queue depth.
func (c *Coordinator) QueuedReassignments() int { return len(c.reassignQueue) }

// AssignedCount returns the ledger value for a target (zero when absent).
func (c *Coordinator) AssignedCount(target model.TargetID) int { return c.ledger[target] }

// Interceptor returns an in-flight unit by ID, or nil.
func (c *Coordinator) Interceptor(id model.InterceptorID) *Interceptor {
	return c.inFlight[id]
}

func (c *Coordinator) recordGauges() {
	if c.metrics == nil {
		return
	}
	c.metrics.SetCoordinatorCounts(
		c.ActiveThreatCount(),
		c.PoolCount(),
		c.ReadyCapacity(),
		c.InFlightCount(),
		c.QueuedReassignments(),
	)
}

// ---- Persistence ----

// SnapshotLedger copies the assignment ledger for persistence.
func (c *Coordinator) SnapshotLedger() map[model.TargetID]int {
	out := make(map[model.TargetID]int, len(c.ledger))
	for k, v := range c.ledger {
		out[k] = v
	}
	return out
}

// SnapshotQueue copies the reassignment queue for persistence.
func (c *Coordinator) SnapshotQueue() []QueuedReassignment {
	out := make([]QueuedReassignment, 0, len(c.reassignQueue))
	for _, i := range c.reassignQueue {
		out = append(out, QueuedReassignment{Interceptor: i.ID, QueuedTick: i.queuedSince})
	}
	return out
}

// AdoptInterceptor re-registers an in-flight unit after a reload, before
// RestoreState revalidates persisted queue entries against the roster.
func (c *Coordinator) AdoptInterceptor(i *Interceptor) {
	if _, exists := c.inFlight[i.ID]; exists {
		return
	}
	c.inFlight[i.ID] = i
	c.flightOrder = append(c.flightOrder, i.ID)
}

// RestoreState reloads a persisted ledger and reassignment queue,
// immediately revalidating both: ledger entries for dead or missing targets
// are pruned (as are zero counts), and queue entries whose interceptor is
// not on the roster are dropped. Ledger counts are also clamped to the
// number of adopted in-flight units still engaging that target, so a count
// with no unit behind it cannot linger and suppress fresh launches. Threat
// records are deliberately not restored; they rebuild from live sensor
// reports.
func (c *Coordinator) RestoreState(ledger map[model.TargetID]int, queue []QueuedReassignment) {
	backing := make(map[model.TargetID]int, len(c.inFlight))
	for _, i := range c.inFlight {
		if i.target != "" {
			backing[i.target]++
		}
	}

	c.ledger = make(map[model.TargetID]int, len(ledger))
	for target, count := range ledger {
		if count <= 0 || !c.world.TargetValid(target) {
			continue
		}
		if b := backing[target]; b < count {
			count = b
		}
		if count == 0 {
			continue
		}
		c.ledger[target] = count
	}

	c.reassignQueue = c.reassignQueue[:0]
	for _, entry := range queue {
		i, ok := c.inFlight[entry.Interceptor]
		if !ok {
			continue
		}
		i.state = StateReassigning
		i.queuedSince = entry.QueuedTick
		c.reassignQueue = append(c.reassignQueue, i)
	}
}
