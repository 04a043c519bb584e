// Package api implements the HTTP surface of the bridge.
//
// This package provides:
//   - The web relay endpoints used by the browser UI (/ajax/cmd, /ajax/cmds,
//     /ajax/library), answering in text/plain
//   - Axis position endpoints for reading and homing the encoders
//   - A WebSocket command console that relays each text frame as one command
//   - Health and metrics endpoints
//   - The embedded hand controller UI under /ui/
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Execution token
//
// Every handler that talks to the controller or touches an encoder runs its
// work through the scheduler (Exec), passing the scheduler's Yield to the
// relay. A request therefore never holds the token for longer than one
// controller round-trip, and axis timers keep their deadlines while a batch
// or catalog stream is in progress.
//
// # Graceful Degradation
//
// MQTT and InfluxDB are optional. Relay endpoints only need the controller;
// a broken controller link reads as empty responses, not HTTP errors.
package api
