// Package controller is the command transport to the mount controller.
//
// Commands are opaque strings of the form ':' + mnemonic [+ argument] + '#'.
// The controller is the authority on their meaning and reports problems
// in-band, so the transport never returns an error for a well-formed but
// rejected command: Command always yields a response string, possibly empty.
//
// Layers:
//
//	Bounded  capacity invariant: commands and responses are clipped to the
//	         controller buffer (40 bytes, terminator included) and every clip
//	         is counted and logged
//	Link     wire framing over a serial port, a TCP socket or the in-process
//	         simulator; one exchange at a time, fresh reply buffer per exchange
//
// The link holds no session state. Anything stateful, such as the catalog
// cursor, lives in the controller and is addressed by command order.
package controller
