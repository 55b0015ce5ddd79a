package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"github.com/fieldrobotics/mission-orchestrator/core"
	"github.com/fieldrobotics/mission-orchestrator/internal/archive"
	"github.com/fieldrobotics/mission-orchestrator/internal/config"
	"github.com/fieldrobotics/mission-orchestrator/internal/logging"
	"github.com/fieldrobotics/mission-orchestrator/internal/msg"
	"github.com/fieldrobotics/mission-orchestrator/internal/observability"
	"github.com/fieldrobotics/mission-orchestrator/internal/ops"
	"github.com/fieldrobotics/mission-orchestrator/internal/sim"
	"github.com/fieldrobotics/mission-orchestrator/internal/telemetry"
	"github.com/fieldrobotics/mission-orchestrator/internal/viz"
	"github.com/fieldrobotics/mission-orchestrator/internal/www"
	"github.com/fieldrobotics/mission-orchestrator/model"
	"github.com/fieldrobotics/mission-orchestrator/timectrl"
)

func main() {
	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "operator.yaml", "path to the YAML configuration")
	useMQTT := flag.Bool("mqtt", false, "connect to the MQTT broker for telemetry and snapshots")
	simMode := flag.Bool("sim", true, "drive the mission with simulated field agents")
	simSeed := flag.Int64("sim-seed", 42, "seed for the simulated point field")
	simPOIs := flag.Int("sim-pois", 6, "number of hidden points in the simulated field")
	simRadius := flag.Float64("sim-radius", 4.0, "simulated detector sensing radius in metres")

	missionName := flag.String("mission-name", "survey", "name of the initial mission")
	baseX := flag.Float64("base-x", 0, "ground agent base X")
	baseY := flag.Float64("base-y", 0, "ground agent base Y")
	regionX := flag.Float64("region-x", 0, "survey region origin X")
	regionY := flag.Float64("region-y", 0, "survey region origin Y")
	regionW := flag.Float64("region-w", 40, "survey region width in metres")
	regionH := flag.Float64("region-h", 40, "survey region height in metres")
	submit := flag.Bool("submit", true, "submit the initial mission at startup")
	exitWhenDone := flag.Bool("exit-when-done", false, "exit once all submitted missions are terminal")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewOpsCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}

	store, err := archive.Open(cfg.DatabasePath)
	if err != nil {
		log.Error(ctx, "failed to open mission archive", logging.Err(err))
		os.Exit(1)
	}
	defer store.Close()

	state := telemetry.NewState()
	var visual viz.Publisher = viz.Noop{}

	var client *msg.Client
	if *useMQTT {
		client = msg.NewClient(&cfg.Messaging)
		if err := client.Connect(); err != nil {
			log.Error(ctx, "failed to connect to broker", logging.Err(err))
			os.Exit(1)
		}
		defer client.Close()

		decoder := telemetry.Decoder{
			BatteryMin: cfg.Battery.MinVoltage,
			BatteryMax: cfg.Battery.MaxVoltage,
		}
		listener := telemetry.NewListener(client, cfg.Messaging.TelemetryTopic, state, decoder, log, collector)
		if err := listener.Start(ctx); err != nil {
			log.Error(ctx, "failed to start telemetry listener", logging.Err(err))
			os.Exit(1)
		}
		visual = viz.NewMQTTPublisher(client, cfg.Messaging.SnapshotTopic, log)
	}

	region := model.Region{
		Origin: model.Position{X: *regionX, Y: *regionY},
		Width:  *regionW,
		Height: *regionH,
	}

	var agents ops.AgentSet
	if *simMode {
		world := sim.NewWorld(*simSeed, region, *simPOIs)
		drone := sim.NewDrone(state, 2.0, *simRadius)
		agents = ops.AgentSet{
			Camera:   drone,
			Detector: sim.Detector{World: world, Radius: *simRadius},
			Surveyor: drone,
			Sensor:   sim.Probe{Base: 20},
		}
		log.Info(ctx, "simulated agents online",
			logging.Int("hidden_points", *simPOIs), logging.Float("radius", *simRadius))
	} else {
		log.Error(ctx, "no hardware agent integration configured; run with -sim")
		os.Exit(1)
	}

	planner, fallback := buildPlanners(cfg, collector)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := timectrl.NewTimeController(time.Now(), cfg.TickInterval, timectrl.RealTime)
	clockDone := clock.Start(runCtx)

	controller := ops.NewController(
		ops.ControllerConfig{
			MaxConcurrent:   cfg.MaxConcurrentMissions,
			MergeEpsilon:    cfg.DetectionMergeEpsilon,
			TelemetryMaxAge: cfg.TelemetryMaxAge,
			RobotSpeed:      cfg.RobotSpeed,
			FailurePolicy:   ops.ParseFailurePolicy(cfg.MissionFailurePolicy),
		},
		ops.ControllerDeps{
			Clock:      clock,
			Telemetry:  state,
			Agents:     agents,
			Planner:    planner,
			Fallback:   fallback,
			Visualizer: visual,
			Archive:    store,
			Metrics:    collector,
			Tracer:     otel.Tracer("mission-operator"),
			Log:        log,
		})

	web := www.NewServer(
		fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		controller, collector.Handler(), log)
	go func() {
		if err := web.Start(runCtx); err != nil {
			log.Error(runCtx, "http server exited", logging.Err(err))
		}
	}()

	if *submit {
		spec := model.MissionSpec{
			Name:   *missionName,
			Base:   model.Position{X: *baseX, Y: *baseY},
			Survey: region,
		}
		id, err := controller.Submit(spec)
		if err != nil {
			log.Error(runCtx, "failed to submit mission", logging.Err(err))
			os.Exit(1)
		}
		log.Info(runCtx, "initial mission submitted",
			logging.String("mission_id", id), logging.String("name", spec.Name))
	}

	waitLoop(runCtx, controller, *exitWhenDone && *submit)

	log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := controller.Shutdown(shutdownCtx); err != nil {
		log.Warn(ctx, "controller shutdown incomplete", logging.Err(err))
	}
	_ = web.Shutdown(shutdownCtx)
	stop()
	<-clockDone
}

// buildPlanners maps the configured strategy onto planner instances,
// each wrapped with latency instrumentation. The optimized strategy
// carries a nearest-neighbor fallback; nearest runs alone.
func buildPlanners(cfg *config.Config, collector *observability.OpsCollector) (core.Planner, core.Planner) {
	nearest := observability.InstrumentedPlanner{
		Inner:     core.NearestNeighborPlanner{},
		Strategy:  "nearest",
		Collector: collector,
	}
	if cfg.PlannerStrategy == "nearest" {
		return nearest, nil
	}
	optimized := observability.InstrumentedPlanner{
		Inner: core.OptimizingPlanner{
			Solver:  core.HeldKarpSolver{},
			Timeout: cfg.PlannerTimeout,
		},
		Strategy:  "optimized",
		Collector: collector,
	}
	return optimized, nearest
}

// waitLoop blocks until interrupted, or until every mission is terminal
// when exitWhenDone is set.
func waitLoop(ctx context.Context, controller *ops.Controller, exitWhenDone bool) {
	if !exitWhenDone {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if status := controller.OverallStatus(); status.Terminal() {
				return
			}
		}
	}
}
