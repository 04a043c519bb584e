package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tarm/serial"
)

// Default timeouts and limits for controller communication.
const (
	// defaultTimeout bounds one command round-trip.
	defaultTimeout = time.Second

	// defaultConnectTimeout bounds opening the link.
	defaultConnectTimeout = 5 * time.Second

	// defaultBaud is the controller's default serial speed.
	defaultBaud = 9600

	// defaultTCPPort is the controller's command channel port.
	defaultTCPPort = "9999"

	// serialPollTimeout is the serial read timeout; the reply loop checks
	// its own deadline between polls.
	serialPollTimeout = 50 * time.Millisecond

	// drainWindow is how long stale input is read and discarded before a
	// command is written.
	drainWindow = 2 * time.Millisecond

	// maxFrameBytes is the framing limit for a string reply. A longer reply
	// without a terminator means the stream lost sync.
	maxFrameBytes = 256
)

// Config holds controller link configuration.
type Config struct {
	// Connection is the controller URL.
	// Supported formats:
	//   - "serial:///dev/ttyUSB0?baud=9600"
	//   - "tcp://192.168.0.1:9999"
	//   - "sim://"
	Connection string

	// Timeout bounds a single command round-trip.
	// Default: 1 second.
	Timeout time.Duration

	// ConnectTimeout bounds opening the link.
	// Default: 5 seconds.
	ConnectTimeout time.Duration
}

// Stats holds operational statistics.
type Stats struct {
	Commands     int64
	Errors       int64
	Timeouts     int64
	Reconnects   int64
	LastActivity time.Time
	Connected    bool
}

type opener func(ctx context.Context) (io.ReadWriteCloser, error)

// Link is the wire transport to the controller.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Exchanges are serialised; a command and its reply are never
//     interleaved with another exchange.
//
// Failure handling:
//   - A reply timeout is counted and the partial reply returned.
//   - Any other I/O failure closes the link; the next exchange reopens it.
type Link struct {
	cfg       Config
	open      opener
	target    string
	eofIsIdle bool

	mu   sync.Mutex
	conn io.ReadWriteCloser

	// dirty is set when the previous exchange may have left reply bytes
	// unread (timeout, single-character read). Guarded by mu.
	dirty bool

	commands   *xsync.Counter
	errorsTot  *xsync.Counter
	timeouts   *xsync.Counter
	reconnects *xsync.Counter

	lastActivity atomic.Int64
	connected    atomic.Bool

	logger   Logger
	loggerMu sync.RWMutex
}

// Ensure Link implements Controller.
var _ Controller = (*Link)(nil)

// Open parses the connection URL and opens the link.
func Open(ctx context.Context, cfg Config) (*Link, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}

	l := &Link{
		cfg:        cfg,
		commands:   xsync.NewCounter(),
		errorsTot:  xsync.NewCounter(),
		timeouts:   xsync.NewCounter(),
		reconnects: xsync.NewCounter(),
	}

	if err := l.configure(); err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, err := l.open(connectCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, l.target, err)
	}
	l.conn = conn
	l.connected.Store(true)
	l.lastActivity.Store(time.Now().UnixNano())

	return l, nil
}

// configure selects the opener for the connection URL.
func (l *Link) configure() error {
	u, err := url.Parse(l.cfg.Connection)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %w", ErrUnsupportedScheme, err)
	}

	switch u.Scheme {
	case "serial":
		device := u.Path
		if device == "" {
			return fmt.Errorf("%w: serial URL needs a device path", ErrUnsupportedScheme)
		}
		baud := defaultBaud
		if v := u.Query().Get("baud"); v != "" {
			b, err := strconv.Atoi(v)
			if err != nil || b <= 0 {
				return fmt.Errorf("%w: invalid baud %q", ErrUnsupportedScheme, v)
			}
			baud = b
		}
		l.target = device
		l.eofIsIdle = true
		l.open = func(context.Context) (io.ReadWriteCloser, error) {
			return serial.OpenPort(&serial.Config{
				Name:        device,
				Baud:        baud,
				ReadTimeout: serialPollTimeout,
			})
		}
	case "tcp":
		host := u.Host
		if host == "" {
			host = "localhost:" + defaultTCPPort
		} else if _, _, err := net.SplitHostPort(host); err != nil {
			host = net.JoinHostPort(host, defaultTCPPort)
		}
		l.target = host
		l.open = func(ctx context.Context) (io.ReadWriteCloser, error) {
			var dialer net.Dialer
			return dialer.DialContext(ctx, "tcp", host)
		}
	case "sim":
		sim := NewSimulator()
		l.target = "simulator"
		l.open = func(context.Context) (io.ReadWriteCloser, error) {
			return sim.Connect(), nil
		}
	default:
		return fmt.Errorf("%w: %q (use serial, tcp or sim)", ErrUnsupportedScheme, u.Scheme)
	}
	return nil
}

// SetLogger sets a logger for link errors.
func (l *Link) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

func (l *Link) getLogger() Logger {
	l.loggerMu.RLock()
	defer l.loggerMu.RUnlock()
	return l.logger
}

// Target returns the device path or address the link talks to.
func (l *Link) Target() string {
	return l.target
}

// Command sends cmd and returns the reply without its terminator.
func (l *Link) Command(ctx context.Context, cmd string) string {
	reply, err := l.exchange(ctx, cmd, replyKindOf(cmd))
	if err != nil {
		if logger := l.getLogger(); logger != nil {
			logger.Warn("controller command failed", "command", cmd, "partial", reply, "error", err)
		}
	}
	return reply
}

// CommandBool sends cmd and reads a single-character reply.
func (l *Link) CommandBool(ctx context.Context, cmd string) bool {
	reply, err := l.exchange(ctx, cmd, replyBool)
	if err != nil {
		if logger := l.getLogger(); logger != nil {
			logger.Warn("controller command failed", "command", cmd, "error", err)
		}
		return false
	}
	return reply == "1"
}

// exchange performs one command round-trip.
func (l *Link) exchange(ctx context.Context, cmd string, kind replyKind) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("exchange: %w", err)
	}

	if l.conn == nil {
		conn, err := l.open(ctx)
		if err != nil {
			l.errorsTot.Inc()
			return "", fmt.Errorf("%w: %w", ErrNotConnected, err)
		}
		l.conn = conn
		l.connected.Store(true)
		l.reconnects.Inc()
		if logger := l.getLogger(); logger != nil {
			logger.Info("controller link reopened", "target", l.target)
		}
	}

	l.commands.Inc()

	deadline := time.Now().Add(l.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if l.dirty {
		l.discardPending()
		l.dirty = false
	}

	if err := l.write(cmd, deadline); err != nil {
		l.fail(err)
		return "", fmt.Errorf("write: %w", err)
	}

	reply, err := l.readReply(kind, deadline)
	if kind == replyBool {
		l.dirty = true
	}
	switch {
	case err == nil:
		l.lastActivity.Store(time.Now().UnixNano())
		return reply, nil
	case errors.Is(err, ErrTimeout):
		l.dirty = true
		l.timeouts.Inc()
		l.errorsTot.Inc()
		return reply, err
	default:
		l.fail(err)
		return reply, fmt.Errorf("read: %w", err)
	}
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

type flusher interface {
	Flush() error
}

// discardPending drops input left over from an earlier timed-out reply so it
// cannot be read as the answer to the next command.
func (l *Link) discardPending() {
	if f, ok := l.conn.(flusher); ok {
		_ = f.Flush()
		return
	}
	rd, ok := l.conn.(readDeadliner)
	if !ok {
		return
	}
	if err := rd.SetReadDeadline(time.Now().Add(drainWindow)); err != nil {
		return
	}
	buf := make([]byte, 64)
	for {
		if _, err := l.conn.Read(buf); err != nil {
			return
		}
	}
}

func (l *Link) write(cmd string, deadline time.Time) error {
	if wd, ok := l.conn.(writeDeadliner); ok {
		if err := wd.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	_, err := io.WriteString(l.conn, cmd)
	return err
}

// readReply reads one reply of the given shape into a fresh buffer.
func (l *Link) readReply(kind replyKind, deadline time.Time) (string, error) {
	if kind == replyNone {
		return "", nil
	}

	if rd, ok := l.conn.(readDeadliner); ok {
		if err := rd.SetReadDeadline(deadline); err != nil {
			return "", fmt.Errorf("set read deadline: %w", err)
		}
	}

	reply := make([]byte, 0, DefaultBufferSize)
	one := make([]byte, 1)
	for {
		if time.Now().After(deadline) {
			return string(reply), ErrTimeout
		}

		n, err := l.conn.Read(one)
		if n == 1 {
			if kind == replyBool {
				return string(one), nil
			}
			if one[0] == terminator {
				return string(reply), nil
			}
			if len(reply) >= maxFrameBytes {
				return string(reply), ErrReplyOverflow
			}
			reply = append(reply, one[0])
			continue
		}

		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return string(reply), ErrTimeout
			}
			if l.eofIsIdle && errors.Is(err, io.EOF) {
				continue
			}
			return string(reply), err
		}
	}
}

// fail closes the link after an I/O error. Caller holds mu.
func (l *Link) fail(err error) {
	l.errorsTot.Inc()
	if logger := l.getLogger(); logger != nil {
		logger.Error("controller link failed, closing", "target", l.target, "error", err)
	}
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	l.connected.Store(false)
}

// IsConnected returns the current link state.
func (l *Link) IsConnected() bool {
	return l.connected.Load()
}

// Stats returns a snapshot of link statistics.
func (l *Link) Stats() Stats {
	return Stats{
		Commands:     l.commands.Value(),
		Errors:       l.errorsTot.Value(),
		Timeouts:     l.timeouts.Value(),
		Reconnects:   l.reconnects.Value(),
		LastActivity: time.Unix(0, l.lastActivity.Load()),
		Connected:    l.connected.Load(),
	}
}

// Close closes the link.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.connected.Store(false)
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("closing %s: %w", l.target, err)
	}
	return nil
}
