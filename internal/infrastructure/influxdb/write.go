package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementAxisPosition = "axis_position"
	MeasurementRelayStats   = "relay_stats"
)

// RelayStats is one sample of the relay and link counters.
type RelayStats struct {
	Commands       int64
	Batches        int64
	CatalogRecords int64
	Truncations    int64
	LinkErrors     int64
	LateRuns       uint64
}

// WriteAxisPosition records an axis encoder position.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteAxisPosition("observatory", "axis1", 12000, time.Now())
func (c *Client) WriteAxisPosition(site, axis string, position int32, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newAxisPositionPoint(site, axis, position, ts))
}

// WriteRelayStats records a sample of the relay counters.
func (c *Client) WriteRelayStats(site string, stats RelayStats, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newRelayStatsPoint(site, stats, ts))
}

func newAxisPositionPoint(site, axis string, position int32, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementAxisPosition,
		map[string]string{
			"site": site,
			"axis": axis,
		},
		map[string]interface{}{
			"position": int64(position),
		},
		ts,
	)
}

func newRelayStatsPoint(site string, stats RelayStats, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementRelayStats,
		map[string]string{
			"site": site,
		},
		map[string]interface{}{
			"commands":        stats.Commands,
			"batches":         stats.Batches,
			"catalog_records": stats.CatalogRecords,
			"truncations":     stats.Truncations,
			"link_errors":     stats.LinkErrors,
			"late_runs":       int64(stats.LateRuns), //nolint:gosec // counter stays far below MaxInt64
		},
		ts,
	)
}
