// Package config loads simulator runtime configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/signalsfoundry/defense-coordinator/internal/defense/controller"
)

// Config is the environment-driven runtime configuration. Scenario content
// (sites, pools, hostiles) comes from the scenario file, not from here.
type Config struct {
	LogLevel  string `env:"DEFSIM_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"DEFSIM_LOG_FORMAT" envDefault:"text"`

	// MetricsAddr is the listen address for the Prometheus /metrics endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `env:"DEFSIM_METRICS_ADDR" envDefault:":9090"`

	// DBPath is the SQLite file for coordinator state persistence. Empty
	// disables persistence.
	DBPath string `env:"DEFSIM_DB_PATH"`

	// TickRate is simulation ticks per wall-clock second in real-time mode.
	TickRate int `env:"DEFSIM_TICK_RATE" envDefault:"60"`

	CycleInterval            int64 `env:"DEFSIM_CYCLE_INTERVAL" envDefault:"60"`
	StaleTTL                 int64 `env:"DEFSIM_STALE_TTL" envDefault:"180"`
	MaxLaunchesPerCycle      int   `env:"DEFSIM_MAX_LAUNCHES_PER_CYCLE" envDefault:"12"`
	MinLaunchBatch           int   `env:"DEFSIM_MIN_LAUNCH_BATCH" envDefault:"3"`
	ReassignPatience         int64 `env:"DEFSIM_REASSIGN_PATIENCE" envDefault:"300"`
	EscalationMargin         int   `env:"DEFSIM_ESCALATION_MARGIN" envDefault:"1"`
	EscalationBypassesBudget bool  `env:"DEFSIM_ESCALATION_BYPASSES_BUDGET" envDefault:"true"`

	InterceptorSpeed float64 `env:"DEFSIM_INTERCEPTOR_SPEED" envDefault:"2.5"`
	ImpactRadius     float64 `env:"DEFSIM_IMPACT_RADIUS" envDefault:"1.0"`
	DockRadius       float64 `env:"DEFSIM_DOCK_RADIUS" envDefault:"1.0"`
}

// Load parses configuration from environment variables and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the scheduler cannot operate with.
func (c Config) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("tick rate must be positive, got %d", c.TickRate)
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("cycle interval must be positive, got %d", c.CycleInterval)
	}
	if c.StaleTTL <= 0 {
		return fmt.Errorf("stale TTL must be positive, got %d", c.StaleTTL)
	}
	if c.MinLaunchBatch <= 0 || c.MaxLaunchesPerCycle < c.MinLaunchBatch {
		return fmt.Errorf("launch budget bounds invalid: min=%d max=%d",
			c.MinLaunchBatch, c.MaxLaunchesPerCycle)
	}
	if c.InterceptorSpeed <= 0 {
		return fmt.Errorf("interceptor speed must be positive, got %v", c.InterceptorSpeed)
	}
	return nil
}

// ControllerConfig maps the runtime configuration onto the coordinator's
// scheduling knobs.
func (c Config) ControllerConfig() controller.Config {
	return controller.Config{
		CycleInterval:            c.CycleInterval,
		StaleTTL:                 c.StaleTTL,
		MaxLaunchesPerCycle:      c.MaxLaunchesPerCycle,
		MinLaunchBatch:           c.MinLaunchBatch,
		ReassignPatience:         c.ReassignPatience,
		EscalationMargin:         c.EscalationMargin,
		EscalationBypassesBudget: c.EscalationBypassesBudget,
		InterceptorSpeed:         c.InterceptorSpeed,
		ImpactRadius:             c.ImpactRadius,
		DockRadius:               c.DockRadius,
	}
}
