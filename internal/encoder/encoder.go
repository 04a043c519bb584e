package encoder

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// PinReader reads the level of a digital input line.
type PinReader interface {
	Get(pin int) (bool, error)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// Config describes one axis encoder.
type Config struct {
	Name   string
	CWPin  int
	CCWPin int
}

// transitions maps (previous<<2 | current) onto a counter delta.
// State bits are cw<<1 | ccw; the forward sequence is 00 -> 10 -> 11 -> 01 -> 00.
// Entries for double-bit jumps are zero and flagged in invalid.
var transitions = [16]int32{
	// prev 00
	0b0000: 0, 0b0001: -1, 0b0010: +1, 0b0011: 0,
	// prev 01
	0b0100: +1, 0b0101: 0, 0b0110: 0, 0b0111: -1,
	// prev 10
	0b1000: -1, 0b1001: 0, 0b1010: 0, 0b1011: +1,
	// prev 11
	0b1100: 0, 0b1101: +1, 0b1110: -1, 0b1111: 0,
}

// invalid marks the double-bit transitions: 00<->11 and 01<->10.
var invalid = [16]bool{
	0b0011: true, 0b1100: true,
	0b0110: true, 0b1001: true,
}

// Encoder is a CW/CCW quadrature position counter for one axis.
type Encoder struct {
	cfg  Config
	pins PinReader

	position atomic.Int32
	missed   atomic.Uint64

	// state is the last sampled two-bit pin state. Only the sampling path
	// touches it; stateMu serialises Poll and Update callers.
	state   uint8
	primed  bool
	stateMu sync.Mutex

	logger Logger
}

// New creates an encoder reading its lines through pins.
// pins may be nil when samples are fed through Update only.
func New(cfg Config, pins PinReader) *Encoder {
	return &Encoder{cfg: cfg, pins: pins}
}

// SetLogger sets a logger for missed-edge reporting.
func (e *Encoder) SetLogger(logger Logger) {
	e.stateMu.Lock()
	e.logger = logger
	e.stateMu.Unlock()
}

// Name returns the axis name.
func (e *Encoder) Name() string {
	return e.cfg.Name
}

// Read returns the current position without modifying it.
func (e *Encoder) Read() int32 {
	return e.position.Load()
}

// Write sets the position baseline, e.g. after homing.
func (e *Encoder) Write(v int32) {
	e.position.Store(v)
}

// MissedEdges returns how many double-bit transitions were ignored.
func (e *Encoder) MissedEdges() uint64 {
	return e.missed.Load()
}

// Poll samples both lines and applies the transition.
func (e *Encoder) Poll() error {
	if e.pins == nil {
		return fmt.Errorf("encoder %s: no pin reader", e.cfg.Name)
	}
	cw, err := e.pins.Get(e.cfg.CWPin)
	if err != nil {
		return fmt.Errorf("encoder %s: reading cw pin %d: %w", e.cfg.Name, e.cfg.CWPin, err)
	}
	ccw, err := e.pins.Get(e.cfg.CCWPin)
	if err != nil {
		return fmt.Errorf("encoder %s: reading ccw pin %d: %w", e.cfg.Name, e.cfg.CCWPin, err)
	}
	e.Update(cw, ccw)
	return nil
}

// Update applies one sample of the CW and CCW line levels and returns the
// resulting position.
//
// The first sample only establishes the reference state.
func (e *Encoder) Update(cw, ccw bool) int32 {
	var current uint8
	if cw {
		current |= 0b10
	}
	if ccw {
		current |= 0b01
	}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if !e.primed {
		e.state = current
		e.primed = true
		return e.position.Load()
	}

	idx := e.state<<2 | current
	e.state = current

	if invalid[idx] {
		e.missed.Add(1)
		if e.logger != nil {
			e.logger.Debug("encoder missed edge", "axis", e.cfg.Name, "transition", fmt.Sprintf("%04b", idx))
		}
		return e.position.Load()
	}

	if delta := transitions[idx]; delta != 0 {
		return e.position.Add(delta)
	}
	return e.position.Load()
}
