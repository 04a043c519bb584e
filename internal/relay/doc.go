// Package relay forwards web requests to the mount controller.
//
// Three relays share one discipline: each controller round-trip is followed
// by exactly one yield of the cooperative execution token, so a request never
// holds the token for longer than a single round-trip.
//
//	RunCommand  one command, response returned verbatim
//	RunBatch    up to MaxBatchSlots commands, one "cmd_<i>|<response>" line each
//	Library     streams a catalog with :Lo<n># then :LR# until the end sentinel
//
// The relay never interprets commands or responses. Empty slots are skipped
// without touching the controller.
package relay
