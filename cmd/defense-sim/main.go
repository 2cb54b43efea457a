package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/defense-coordinator/core"
	"github.com/signalsfoundry/defense-coordinator/internal/config"
	"github.com/signalsfoundry/defense-coordinator/internal/defense/controller"
	"github.com/signalsfoundry/defense-coordinator/internal/logging"
	"github.com/signalsfoundry/defense-coordinator/internal/observability"
	"github.com/signalsfoundry/defense-coordinator/internal/storage/sqlite"
	"github.com/signalsfoundry/defense-coordinator/internal/threat"
	"github.com/signalsfoundry/defense-coordinator/kb"
	"github.com/signalsfoundry/defense-coordinator/timectrl"
)

var (
	scenarioPath string
	maxTicks     int64
	accelerated  bool
)

var rootCmd = &cobra.Command{
	Use:   "defense-sim",
	Short: "Settlement defense coordinator simulation",
	Long: `defense-sim runs a deterministic, fixed-step simulation of a settlement
defense coordinator: sensor towers report hostiles, a per-site coordinator
scores them and allocates a finite interceptor pool, and the relay network
gates which sites may act.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulation(cmd.Context())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse a scenario file and report what it contains",
	RunE: func(cmd *cobra.Command, args []string) error {
		world := kb.NewWorld()
		sc, err := loadScenarioFile(world, scenarioPath)
		if err != nil {
			return err
		}
		fmt.Printf("Scenario OK: host=%s sites=%d relays=%d pools=%d sensors=%d hostiles=%d\n",
			sc.HostSite, len(sc.SiteIDs), len(sc.RelayIDs), len(sc.Pools), len(sc.Sensors), len(sc.HostileIDs))
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{runCmd, validateCmd} {
		cmd.Flags().StringVar(&scenarioPath, "scenario", "configs/scenario.yaml", "scenario file to load")
	}
	runCmd.Flags().Int64Var(&maxTicks, "ticks", 0, "stop after this many ticks (0 = run until interrupted)")
	runCmd.Flags().BoolVar(&accelerated, "accelerated", false, "run as fast as possible instead of real-time")

	rootCmd.AddCommand(runCmd, validateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadScenarioFile(world *kb.World, path string) (*core.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario %q: %w", path, err)
	}
	defer f.Close()
	return core.LoadScenario(world, f)
}

func runSimulation(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx, log = logging.WithRunLogger(ctx, log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewCoordinatorCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	world := kb.NewWorld()
	scenario, err := loadScenarioFile(world, scenarioPath)
	if err != nil {
		return err
	}
	log.Info(ctx, "scenario loaded",
		logging.String("host_site", string(scenario.HostSite)),
		logging.Int("sites", len(scenario.SiteIDs)),
		logging.Int("pools", len(scenario.Pools)),
		logging.Int("sensors", len(scenario.Sensors)),
		logging.Int("hostiles", len(scenario.HostileIDs)),
	)

	aggregator := threat.NewAggregator(world, cfg.StaleTTL)
	oracle := core.NewConnectivityOracle(world, scenario.HostSite)
	coordinator := controller.NewCoordinator(scenario.HostSite, world, aggregator,
		threat.NewScorer(), oracle, cfg.ControllerConfig(), log,
		controller.WithMetrics(collector))

	for _, spec := range scenario.Pools {
		pool := controller.NewPool(spec.ID, spec.Site, spec.Position, spec.Capacity, spec.Priority)
		if err := coordinator.RegisterPool(pool); err != nil {
			return fmt.Errorf("register pool %s: %w", spec.ID, err)
		}
	}

	engine := core.NewEngine(world, aggregator, coordinator, log)
	for _, spec := range scenario.Sensors {
		engine.AddSensor(&threat.FixedSensor{
			SensorID:   spec.ID,
			Position:   spec.Position,
			RangeCells: spec.Range,
			World:      world,
		})
	}
	for _, spec := range scenario.Auxiliaries {
		site := spec.Site
		aggregator.AttachAuxiliary(&threat.MobileSensor{
			SensorID:   spec.ID,
			World:      world,
			Designated: spec.Targets,
		}, func() bool { return oracle.IsConnected(site) })
	}

	mode := timectrl.RealTime
	if accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTickController(cfg.TickRate, mode)

	var store *sqlite.Store
	if cfg.DBPath != "" {
		store, err = sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open state store: %w", err)
		}
		defer store.Close()

		startTick, ledger, queue, err := store.LoadState(ctx)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		coordinator.RestoreState(ledger, queue)
		tc.SetStartTick(startTick)
		log.Info(ctx, "state restored",
			logging.Int("tick", int(startTick)),
			logging.Int("ledger_entries", len(ledger)),
			logging.Int("queued", len(queue)),
		)
	}

	tc.AddListener(func(tick int64) {
		engine.Tick(ctx, tick)
	})
	if store != nil {
		// Checkpoint on cycle boundaries, after the cycle has run.
		engine.RegisterTickListener(func(tick int64) {
			if tick%cfg.CycleInterval != 0 {
				return
			}
			if err := store.SaveState(ctx, tick, coordinator.SnapshotLedger(), coordinator.SnapshotQueue()); err != nil {
				log.Warn(ctx, "checkpoint failed",
					logging.Int("tick", int(tick)),
					logging.String("error", err.Error()),
				)
			}
		})
	}

	log.Info(ctx, "simulation starting",
		logging.Int("tick_rate", cfg.TickRate),
		logging.Any("accelerated", accelerated),
		logging.Int("max_ticks", int(maxTicks)),
	)

	done := tc.Run(ctx, maxTicks)
	select {
	case <-done:
	case <-ctx.Done():
		<-done
	}

	if store != nil {
		finalTick := tc.CurrentTick()
		if err := store.SaveState(context.Background(), finalTick,
			coordinator.SnapshotLedger(), coordinator.SnapshotQueue()); err != nil {
			log.Warn(ctx, "final checkpoint failed", logging.String("error", err.Error()))
		}
	}

	log.Info(ctx, "simulation complete",
		logging.Int("tick", int(tc.CurrentTick())),
		logging.Int("in_flight", coordinator.InFlightCount()),
		logging.Int("ready_capacity", coordinator.ReadyCapacity()),
		logging.Int("active_threats", coordinator.ActiveThreatCount()),
	)
	return nil
}
