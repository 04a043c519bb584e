// Package influxdb records bridge telemetry in InfluxDB 2.x.
//
// Two measurements are written, both tagged with the site:
//
//	axis_position  tag axis, field position (encoder counts)
//	relay_stats    relay, link and scheduler counters
//
// Writes go through the non-blocking batched write API of
// influxdb-client-go v2 at millisecond precision. Failed batches do not
// surface at the call site: they are counted (WriteErrors) and passed to the
// SetOnError callback.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAxisPosition(cfg.Site.ID, "ra", 12000, time.Now())
package influxdb
