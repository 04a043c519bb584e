package controller

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// Bounded enforces the controller buffer capacity on another Controller.
//
// Anything longer than capacity-1 bytes is clipped to that length before it
// reaches the link (commands) or the caller (responses). Clipping is counted
// and logged at warn so truncated data is never mistaken for a full reply.
type Bounded struct {
	next     Controller
	capacity int

	truncations *xsync.Counter

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBounded wraps next with a capacity in bytes, terminator included.
// capacity below 2 falls back to DefaultBufferSize.
func NewBounded(next Controller, capacity int) *Bounded {
	if capacity < 2 {
		capacity = DefaultBufferSize
	}
	return &Bounded{
		next:        next,
		capacity:    capacity,
		truncations: xsync.NewCounter(),
	}
}

// SetLogger sets a logger for truncation warnings.
func (b *Bounded) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

// Capacity returns the buffer size in bytes, terminator included.
func (b *Bounded) Capacity() int {
	return b.capacity
}

// Truncations returns how many commands and responses were clipped.
func (b *Bounded) Truncations() int64 {
	return b.truncations.Value()
}

// Command clips cmd, forwards it and clips the response.
func (b *Bounded) Command(ctx context.Context, cmd string) string {
	return b.clip("response", b.next.Command(ctx, b.clip("command", cmd)))
}

// CommandBool clips cmd and forwards it.
func (b *Bounded) CommandBool(ctx context.Context, cmd string) bool {
	return b.next.CommandBool(ctx, b.clip("command", cmd))
}

func (b *Bounded) clip(what, s string) string {
	limit := b.capacity - 1
	if len(s) <= limit {
		return s
	}
	b.truncations.Inc()

	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn("controller "+what+" truncated",
			"length", len(s),
			"capacity", b.capacity,
			"kept", s[:limit],
		)
	}
	return s[:limit]
}
