package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CoordinatorCollector exposes defense coordinator Prometheus metrics. It
// satisfies the controller's MetricsRecorder interface so the coordinator can
// drive gauge values directly from its cycle.
type CoordinatorCollector struct {
	gatherer prometheus.Gatherer

	ActiveThreats    prometheus.Gauge
	RegisteredPools  prometheus.Gauge
	ReadyCapacity    prometheus.Gauge
	InFlight         prometheus.Gauge
	ReassignQueueLen prometheus.Gauge

	CycleDuration prometheus.Histogram

	LaunchesTotal      prometheus.Counter
	ImpactsTotal       prometheus.Counter
	ReassignmentsTotal prometheus.Counter
	RecallsTotal       prometheus.Counter
	SkippedCyclesTotal prometheus.Counter
}

// NewCoordinatorCollector registers coordinator metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCoordinatorCollector(reg prometheus.Registerer) (*CoordinatorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &CoordinatorCollector{gatherer: gatherer}
	var err error

	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&c.ActiveThreats, "coordinator_active_threats", "Current number of valid, non-stale threats."},
		{&c.RegisteredPools, "coordinator_registered_pools", "Current number of registered interceptor pools."},
		{&c.ReadyCapacity, "coordinator_ready_capacity", "Ready interceptors summed across operational pools."},
		{&c.InFlight, "coordinator_in_flight", "Interceptors currently in flight."},
		{&c.ReassignQueueLen, "coordinator_reassign_queue_length", "Interceptors queued for reassignment."},
	}
	for _, g := range gauges {
		*g.dst, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: g.name,
			Help: g.help,
		}), g.name)
		if err != nil {
			return nil, err
		}
	}

	c.CycleDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "coordinator_cycle_duration_seconds",
		Help:    "Duration of coordinator scheduling cycles.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "coordinator_cycle_duration_seconds")
	if err != nil {
		return nil, err
	}

	counters := []struct {
		dst  *prometheus.Counter
		name string
		help string
	}{
		{&c.LaunchesTotal, "coordinator_launches_total", "Cumulative interceptor launches."},
		{&c.ImpactsTotal, "coordinator_impacts_total", "Cumulative dart impacts delivered."},
		{&c.ReassignmentsTotal, "coordinator_reassignments_total", "Cumulative in-flight reassignments."},
		{&c.RecallsTotal, "coordinator_recalls_total", "Cumulative recall broadcasts."},
		{&c.SkippedCyclesTotal, "coordinator_skipped_cycles_total", "Cycles skipped because the site was disconnected."},
	}
	for _, cn := range counters {
		*cn.dst, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: cn.name,
			Help: cn.help,
		}), cn.name)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *CoordinatorCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *CoordinatorCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetCoordinatorCounts updates the coordinator gauges in one call.
func (c *CoordinatorCollector) SetCoordinatorCounts(threats, pools, readyCapacity, inFlight, queued int) {
	if c == nil {
		return
	}
	if c.ActiveThreats != nil {
		c.ActiveThreats.Set(float64(threats))
	}
	if c.RegisteredPools != nil {
		c.RegisteredPools.Set(float64(pools))
	}
	if c.ReadyCapacity != nil {
		c.ReadyCapacity.Set(float64(readyCapacity))
	}
	if c.InFlight != nil {
		c.InFlight.Set(float64(inFlight))
	}
	if c.ReassignQueueLen != nil {
		c.ReassignQueueLen.Set(float64(queued))
	}
}

// ObserveCycleDuration records one scheduling cycle's duration in seconds.
func (c *CoordinatorCollector) ObserveCycleDuration(seconds float64) {
	if c == nil || c.CycleDuration == nil {
		return
	}
	c.CycleDuration.Observe(seconds)
}

// IncLaunches adds n to the launch counter.
func (c *CoordinatorCollector) IncLaunches(n int) {
	if c == nil || c.LaunchesTotal == nil || n <= 0 {
		return
	}
	c.LaunchesTotal.Add(float64(n))
}

// IncImpacts increments the impact counter.
func (c *CoordinatorCollector) IncImpacts() {
	if c == nil || c.ImpactsTotal == nil {
		return
	}
	c.ImpactsTotal.Inc()
}

// IncReassignments increments the reassignment counter.
func (c *CoordinatorCollector) IncReassignments() {
	if c == nil || c.ReassignmentsTotal == nil {
		return
	}
	c.ReassignmentsTotal.Inc()
}

// IncRecalls increments the recall counter.
func (c *CoordinatorCollector) IncRecalls() {
	if c == nil || c.RecallsTotal == nil {
		return
	}
	c.RecallsTotal.Inc()
}

// IncSkippedCycles increments the skipped-cycle counter.
func (c *CoordinatorCollector) IncSkippedCycles() {
	if c == nil || c.SkippedCyclesTotal == nil {
		return
	}
	c.SkippedCyclesTotal.Inc()
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
