// Package scheduler provides the single cooperative execution token shared by
// relay work and the real-time axis tasks.
//
// Everything that talks to the mount controller or samples the encoders runs
// while holding the token: periodic timers through the dispatch loop, relay
// requests through Exec. Nothing preempts a holder, so a long relay must call
// Yield after every controller round-trip. Yield hands the token to the
// longest-waiting task (channel receivers are served in FIFO order) and blocks
// until it comes back.
//
// Timers follow the sorted wake-time list used by MCU firmware schedulers: a
// handler returns Done or Reschedule, and rescheduled timers are reinserted at
// their next wake time. The time a due timer spent waiting for the token is
// recorded, which makes relay-induced latency observable through Stats.
package scheduler
