// Package encoder tracks mount axis positions from CW/CCW quadrature encoders.
//
// Each Encoder owns a signed position counter driven by the two-bit state of
// its CW and CCW lines. Samples come either from Poll, which reads the lines
// through a PinReader, or from Update when the caller already holds the pin
// levels (an edge callback, a test).
//
// Decoding follows the standard quadrature table: only single-bit changes
// count. A double-bit jump means an edge was missed; the counter holds and the
// event is recorded in MissedEdges.
//
// Thread Safety: Read and Write may be called from any goroutine while the
// poll path runs. The counter is an atomic, so a Write is never torn by a
// concurrent update and a Read never observes intermediate state.
package encoder
