// SWS Bridge - HTTP relay for a telescope mount controller
//
// This is the main entry point for the bridge. It exposes the controller's
// ":...#" command protocol over HTTP so that browser-based planetarium and
// hand-controller pages can drive the mount, while a cooperative scheduler
// keeps the axis encoder sampling running between controller round-trips.
//
// Optional extras:
//   - Axis position and relay telemetry over MQTT and InfluxDB
//   - Controller commands over MQTT
//   - An interactive console over WebSocket
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/sws-bridge/internal/api"
	"github.com/nerrad567/sws-bridge/internal/controller"
	"github.com/nerrad567/sws-bridge/internal/encoder"
	"github.com/nerrad567/sws-bridge/internal/infrastructure/config"
	"github.com/nerrad567/sws-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/sws-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/sws-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/sws-bridge/internal/relay"
	"github.com/nerrad567/sws-bridge/internal/scheduler"
	"github.com/nerrad567/sws-bridge/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnv names the environment variable overriding the config path.
const configEnv = "SWS_CONFIG"

func main() {
	// Cancelled on Ctrl+C or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Components are started in dependency order and closed in reverse through
// deferred calls once ctx is cancelled.
func run(ctx context.Context) error {
	// Bootstrap logger until the configured one is available.
	log := logging.Default()
	log.Info("starting SWS bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"site_id", cfg.Site.ID,
		"site_name", cfg.Site.Name,
		"controller", cfg.Controller.Connection,
	)

	// Controller link
	link, err := controller.Open(ctx, controller.Config{
		Connection: cfg.Controller.Connection,
		Timeout:    cfg.Controller.Timeout,
	})
	if err != nil {
		return fmt.Errorf("opening controller link: %w", err)
	}
	defer func() {
		log.Info("closing controller link")
		if closeErr := link.Close(); closeErr != nil {
			log.Error("error closing controller link", "error", closeErr)
		}
	}()
	link.SetLogger(log)
	log.Info("controller link open", "target", link.Target())

	bounded := controller.NewBounded(link, cfg.Controller.BufferSize)
	bounded.SetLogger(log)

	// Scheduler and encoders
	sched := scheduler.New(scheduler.Config{
		Tick:          cfg.Scheduler.Tick,
		LatencyBudget: cfg.Scheduler.LatencyBudget,
	})
	sched.SetLogger(log)

	axes, polls := buildAxes(cfg.Axes, log)
	telemetry.PollAxes(sched, polls, log)
	log.Info("axes configured", "count", axes.Len())

	// Relay
	rel := relay.New(bounded, sched.Yield, relay.Config{
		Version:           version,
		CatalogMaxRecords: cfg.Relay.CatalogMaxRecords,
	})
	rel.SetLogger(log)

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, cfg.Site.ID)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("closing MQTT connection")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		)

		mqttClient.SetOnConnect(func() {
			if n := mqttClient.Stats().Reconnects; n > 0 {
				log.Info("MQTT reconnected", "reconnects", n)
			}
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Telemetry
	stopTelemetry, err := startTelemetry(ctx, cfg, telemetryDeps{
		sched:   sched,
		axes:    axes,
		relay:   rel,
		link:    link,
		bounded: bounded,
		mqtt:    mqttClient,
		influx:  influxClient,
		log:     log,
	})
	if err != nil {
		return err
	}
	defer stopTelemetry()

	// HTTP API
	apiDeps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log,
		Scheduler: sched,
		Relay:     rel,
		Axes:      axes,
		Link:      link,
		Bounds:    bounded,
		Version:   version,
	}
	if mqttClient != nil {
		apiDeps.MQTT = mqttClient
	}
	if influxClient != nil {
		apiDeps.Influx = influxClient
	}
	apiServer, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	// The scheduler loop is the only path that runs timers.
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()

	if err := healthCheck(ctx, link, mqttClient, influxClient); err != nil {
		log.Warn("startup health check failed", "error", err)
	} else {
		log.Info("all health checks passed")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	<-schedDone

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Controller link

	log.Info("SWS bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SWS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildAxes creates one encoder per configured axis, reading pins through sysfs.
func buildAxes(cfgs []config.AxisConfig, log *logging.Logger) (*encoder.Axes, []telemetry.AxisPoll) {
	encoders := make([]*encoder.Encoder, 0, len(cfgs))
	polls := make([]telemetry.AxisPoll, 0, len(cfgs))
	for _, a := range cfgs {
		enc := encoder.New(encoder.Config{
			Name:   a.Name,
			CWPin:  a.CWPin,
			CCWPin: a.CCWPin,
		}, encoder.SysfsPins{})
		enc.SetLogger(log)
		encoders = append(encoders, enc)
		polls = append(polls, telemetry.AxisPoll{Encoder: enc, Interval: a.PollInterval})
	}
	return encoder.NewAxes(encoders...), polls
}

// telemetryDeps groups what startTelemetry wires together.
type telemetryDeps struct {
	sched   *scheduler.Scheduler
	axes    *encoder.Axes
	relay   *relay.Relay
	link    *controller.Link
	bounded *controller.Bounded
	mqtt    *mqtt.Client
	influx  *influxdb.Client
	log     *logging.Logger
}

// startTelemetry starts the position publisher and, when enabled, the MQTT
// command bridge. Nothing is started when neither backend is configured.
// The returned func stops the command bridge.
func startTelemetry(ctx context.Context, cfg *config.Config, d telemetryDeps) (func(), error) {
	stop := func() {}
	if d.mqtt != nil && cfg.MQTT.CommandTopic {
		cmds := telemetry.NewCommands(d.mqtt, d.sched, d.relay, byte(cfg.MQTT.QoS), d.log)
		if err := cmds.Start(ctx); err != nil {
			return stop, fmt.Errorf("starting MQTT command bridge: %w", err)
		}
		stop = func() {
			d.log.Info("stopping MQTT command bridge")
			if err := cmds.Stop(); err != nil {
				d.log.Warn("error stopping MQTT command bridge", "error", err)
			}
		}
	}

	if !cfg.Telemetry.Enabled || (d.mqtt == nil && d.influx == nil) {
		d.log.Info("telemetry disabled")
		return stop, nil
	}

	deps := telemetry.Deps{
		Axes:   d.axes,
		Logger: d.log,
		Stats: func() influxdb.RelayStats {
			return relayStats(d.relay.Stats(), d.link.Stats(), d.bounded.Truncations(), d.sched.Stats())
		},
	}
	if d.mqtt != nil {
		deps.MQTT = d.mqtt
	}
	if d.influx != nil {
		deps.Influx = d.influx
	}

	pub, err := telemetry.NewPublisher(telemetry.Config{
		Site:     cfg.Site.ID,
		Interval: cfg.Telemetry.Interval,
		QoS:      byte(cfg.MQTT.QoS),
	}, deps)
	if err != nil {
		return stop, fmt.Errorf("creating telemetry publisher: %w", err)
	}
	pub.Schedule(d.sched)
	go pub.Run(ctx)

	d.log.Info("telemetry started", "interval", cfg.Telemetry.Interval.String())
	return stop, nil
}

// relayStats folds the component counters into one telemetry sample.
func relayStats(r relay.Stats, l controller.Stats, truncations int64, s scheduler.Stats) influxdb.RelayStats {
	return influxdb.RelayStats{
		Commands:       r.Commands,
		Batches:        r.Batches,
		CatalogRecords: r.CatalogRecords,
		Truncations:    truncations,
		LinkErrors:     l.Errors,
		LateRuns:       s.LateRuns,
	}
}

// healthCheck verifies the controller link and any enabled backends.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - link: Controller link to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, link *controller.Link, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if !link.IsConnected() {
		return fmt.Errorf("controller: %s not connected", link.Target())
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
