package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/sws-bridge/internal/encoder"
	"github.com/nerrad567/sws-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/sws-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/sws-bridge/internal/scheduler"
)

// defaultInterval is the sampling period when none is configured.
const defaultInterval = time.Second

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MessagePublisher is the MQTT surface the publisher needs.
type MessagePublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Topics() mqtt.Topics
}

// PointWriter is the InfluxDB surface the publisher needs.
type PointWriter interface {
	WriteAxisPosition(site, axis string, position int32, ts time.Time)
	WriteRelayStats(site string, stats influxdb.RelayStats, ts time.Time)
}

// Config holds publisher settings.
type Config struct {
	Site     string
	Interval time.Duration
	QoS      byte
}

// Deps holds the publisher's collaborators. Everything but Axes is optional.
type Deps struct {
	Axes   *encoder.Axes
	MQTT   MessagePublisher
	Influx PointWriter
	// Stats samples the relay counters; nil skips relay_stats.
	Stats  func() influxdb.RelayStats
	Logger Logger
}

// PositionMessage is the retained MQTT payload for one axis.
type PositionMessage struct {
	Axis      string `json:"axis"`
	Position  int32  `json:"position"`
	Timestamp string `json:"timestamp"`
}

// Sample is one snapshot taken by the sampling timer.
type Sample struct {
	Time      time.Time
	Positions []PositionMessage
	Relay     *influxdb.RelayStats
}

// Publisher samples axis positions on the scheduler and publishes them.
type Publisher struct {
	cfg    Config
	axes   *encoder.Axes
	mqtt   MessagePublisher
	influx PointWriter
	stats  func() influxdb.RelayStats
	logger Logger

	samples chan Sample

	// last holds the most recent position published per axis. Owned by Run.
	last map[string]int32

	sampled   atomic.Uint64
	dropped   atomic.Uint64
	published atomic.Uint64

	now func() time.Time

	startOnce sync.Once
}

// Stats holds publisher statistics.
type Stats struct {
	Sampled   uint64
	Dropped   uint64
	Published uint64
}

// NewPublisher creates a publisher. Call Schedule and Run to start it.
func NewPublisher(cfg Config, deps Deps) (*Publisher, error) {
	if deps.Axes == nil {
		return nil, fmt.Errorf("axes are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Publisher{
		cfg:     cfg,
		axes:    deps.Axes,
		mqtt:    deps.MQTT,
		influx:  deps.Influx,
		stats:   deps.Stats,
		logger:  deps.Logger,
		samples: make(chan Sample, 1),
		last:    make(map[string]int32),
		now:     time.Now,
	}, nil
}

// Schedule registers the sampling timer. It is safe to call once.
func (p *Publisher) Schedule(s *scheduler.Scheduler) {
	p.startOnce.Do(func() {
		s.Every("telemetry", p.cfg.Interval, p.Sample)
	})
}

// Sample snapshots every axis position. It runs with the execution token
// held and never blocks.
func (p *Publisher) Sample() {
	now := p.now()
	ts := now.UTC().Format(time.RFC3339Nano)

	s := Sample{Time: now}
	for _, e := range p.axes.All() {
		s.Positions = append(s.Positions, PositionMessage{
			Axis:      e.Name(),
			Position:  e.Read(),
			Timestamp: ts,
		})
	}
	if p.stats != nil {
		rs := p.stats()
		s.Relay = &rs
	}
	p.sampled.Add(1)

	select {
	case p.samples <- s:
	default:
		p.dropped.Add(1)
	}
}

// Run publishes samples until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-p.samples:
			p.publish(s)
		}
	}
}

// publish sends one sample to every configured sink.
func (p *Publisher) publish(s Sample) {
	for _, pos := range s.Positions {
		if p.influx != nil {
			p.influx.WriteAxisPosition(p.cfg.Site, pos.Axis, pos.Position, s.Time)
		}
		if p.mqtt == nil {
			continue
		}
		if prev, ok := p.last[pos.Axis]; ok && prev == pos.Position {
			continue
		}
		if err := p.publishJSON(p.mqtt.Topics().AxisPosition(pos.Axis), pos, true); err != nil {
			p.debug("axis position publish failed", "axis", pos.Axis, "error", err)
			continue
		}
		p.last[pos.Axis] = pos.Position
	}

	if s.Relay != nil {
		if p.influx != nil {
			p.influx.WriteRelayStats(p.cfg.Site, *s.Relay, s.Time)
		}
		if p.mqtt != nil {
			if err := p.publishJSON(p.mqtt.Topics().RelayStats(), relayStatsMessage(*s.Relay, s.Time), false); err != nil {
				p.debug("relay stats publish failed", "error", err)
			}
		}
	}
	p.published.Add(1)
}

func (p *Publisher) publishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", topic, err)
	}
	return p.mqtt.Publish(topic, payload, p.cfg.QoS, retained)
}

func (p *Publisher) debug(msg string, keysAndValues ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, keysAndValues...)
	}
}

// relayStatsMessage is the MQTT payload for relay counters.
func relayStatsMessage(s influxdb.RelayStats, ts time.Time) map[string]any {
	return map[string]any{
		"commands":        s.Commands,
		"batches":         s.Batches,
		"catalog_records": s.CatalogRecords,
		"truncations":     s.Truncations,
		"link_errors":     s.LinkErrors,
		"late_runs":       s.LateRuns,
		"timestamp":       ts.UTC().Format(time.RFC3339),
	}
}

// Stats returns a snapshot of publisher statistics.
func (p *Publisher) Stats() Stats {
	return Stats{
		Sampled:   p.sampled.Load(),
		Dropped:   p.dropped.Load(),
		Published: p.published.Load(),
	}
}
