package controller

import (
	"context"
	"errors"
)

// DefaultBufferSize is the controller command/response buffer in bytes,
// terminator included.
const DefaultBufferSize = 40

// Controller sends one command and returns one response.
type Controller interface {
	// Command returns the controller's reply with the trailing '#' removed.
	// The reply may be empty; transport failures also surface as an empty
	// or partial reply.
	Command(ctx context.Context, cmd string) string

	// CommandBool sends a command that answers with a single '0' or '1'.
	// It is true only for the reply "1".
	CommandBool(ctx context.Context, cmd string) bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Domain errors for the controller package.
var (
	// ErrUnsupportedScheme is returned for connection URLs other than
	// serial://, tcp:// and sim://.
	ErrUnsupportedScheme = errors.New("controller: unsupported connection scheme")

	// ErrConnectionFailed is returned when the link cannot be opened.
	ErrConnectionFailed = errors.New("controller: connection failed")

	// ErrNotConnected is returned by an exchange when no link is open and
	// reopening failed.
	ErrNotConnected = errors.New("controller: not connected")

	// ErrTimeout is returned when a reply does not complete in time.
	ErrTimeout = errors.New("controller: reply timed out")

	// ErrReplyOverflow is returned when a reply exceeds the framing limit
	// without a terminator, which means the stream lost sync.
	ErrReplyOverflow = errors.New("controller: reply exceeds framing limit")
)
