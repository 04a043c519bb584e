package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	Scheduler     SchedulerMetrics   `json:"scheduler"`
	Controller    *ControllerMetrics `json:"controller,omitempty"`
	Relay         RelayMetrics       `json:"relay"`
	WebSocket     WSMetrics          `json:"websocket"`
	MQTT          *MQTTMetrics       `json:"mqtt,omitempty"`
	InfluxDB      *InfluxDBMetrics   `json:"influxdb,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// SchedulerMetrics contains execution token statistics.
// MaxLatencyMS is the longest a due timer waited for the token.
type SchedulerMetrics struct {
	Timers       int     `json:"timers"`
	Dispatches   uint64  `json:"dispatches"`
	Yields       uint64  `json:"yields"`
	LateRuns     uint64  `json:"late_runs"`
	MaxLatencyMS float64 `json:"max_latency_ms"`
}

// ControllerMetrics contains controller link statistics.
type ControllerMetrics struct {
	Target       string `json:"target"`
	Connected    bool   `json:"connected"`
	Commands     int64  `json:"commands"`
	Errors       int64  `json:"errors"`
	Timeouts     int64  `json:"timeouts"`
	Reconnects   int64  `json:"reconnects"`
	Truncations  int64  `json:"truncations"`
	BufferSize   int    `json:"buffer_size"`
	LastActivity string `json:"last_activity,omitempty"`
}

// RelayMetrics contains relay statistics.
type RelayMetrics struct {
	Commands       int64 `json:"commands"`
	Batches        int64 `json:"batches"`
	BatchSlots     int64 `json:"batch_slots"`
	Catalogs       int64 `json:"catalogs"`
	CatalogRecords int64 `json:"catalog_records"`
	Unterminated   int64 `json:"unterminated"`
}

// WSMetrics contains console hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected     bool  `json:"connected"`
	Reconnects    int64 `json:"reconnects"`
	Received      int64 `json:"received"`
	HandlerErrors int64 `json:"handler_errors"`
	Subscriptions int   `json:"subscriptions"`
}

// InfluxDBMetrics contains InfluxDB writer statistics.
type InfluxDBMetrics struct {
	Connected   bool  `json:"connected"`
	WriteErrors int64 `json:"write_errors"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	sched := s.sched.Stats()
	rel := s.relay.Stats()

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Scheduler: SchedulerMetrics{
			Timers:       sched.Timers,
			Dispatches:   sched.Dispatches,
			Yields:       sched.Yields,
			LateRuns:     sched.LateRuns,
			MaxLatencyMS: float64(sched.MaxLatency) / float64(time.Millisecond),
		},
		Relay: RelayMetrics{
			Commands:       rel.Commands,
			Batches:        rel.Batches,
			BatchSlots:     rel.BatchSlots,
			Catalogs:       rel.Catalogs,
			CatalogRecords: rel.CatalogRecords,
			Unterminated:   rel.Unterminated,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
	}

	if s.link != nil {
		ls := s.link.Stats()
		metrics.Controller = &ControllerMetrics{
			Target:     s.link.Target(),
			Connected:  ls.Connected,
			Commands:   ls.Commands,
			Errors:     ls.Errors,
			Timeouts:   ls.Timeouts,
			Reconnects: ls.Reconnects,
		}
		if !ls.LastActivity.IsZero() && ls.LastActivity.UnixNano() > 0 {
			metrics.Controller.LastActivity = ls.LastActivity.UTC().Format(time.RFC3339)
		}
		if s.bounds != nil {
			metrics.Controller.Truncations = s.bounds.Truncations()
			metrics.Controller.BufferSize = s.bounds.Capacity()
		}
	}

	if s.mqtt != nil {
		st := s.mqtt.Stats()
		metrics.MQTT = &MQTTMetrics{
			Connected:     st.Connected,
			Reconnects:    st.Reconnects,
			Received:      st.Received,
			HandlerErrors: st.HandlerErrors,
			Subscriptions: st.Subscriptions,
		}
	}

	if s.influx != nil {
		metrics.InfluxDB = &InfluxDBMetrics{
			Connected:   s.influx.IsConnected(),
			WriteErrors: s.influx.WriteErrors(),
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
