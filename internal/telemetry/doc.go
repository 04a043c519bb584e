// Package telemetry runs the periodic axis tasks and the MQTT side channel.
//
//	PollAxes    one scheduler timer per axis encoder, sampling its pins
//	Publisher   a scheduler timer snapshots axis positions and relay
//	            counters; a separate goroutine publishes them to MQTT
//	            (retained, on change) and InfluxDB (every sample)
//	Commands    relays commands received on the MQTT command topic and
//	            publishes each response
//
// Snapshots are taken while holding the execution token and handed over
// through a one-slot channel, so broker latency never delays an axis task.
// A snapshot that finds the slot full is dropped and counted.
package telemetry
