package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nerrad567/sws-bridge/internal/controller"
)

// MaxBatchSlots is the number of command slots in a batch request.
const MaxBatchSlots = 100

// DefaultCatalogMaxRecords caps one catalog stream when no limit is configured.
const DefaultCatalogMaxRecords = 2048

const (
	catalogSelect = ":Lo%d#"
	catalogRead   = ":LR#"
	// catalogEnd starts the controller's end-of-catalog record.
	catalogEnd = ','
)

// ErrCatalogUnterminated is returned when a catalog stream exceeds the record
// ceiling without producing the end sentinel.
var ErrCatalogUnterminated = errors.New("catalog stream did not terminate")

// Batch holds the command slots of a batch request, indexed by slot number.
type Batch [MaxBatchSlots]string

// BatchFromValues reads slots cmd_0 through cmd_99 from query values.
// Keys outside that range are ignored.
func BatchFromValues(v url.Values) Batch {
	var b Batch
	for i := range b {
		b[i] = v.Get("cmd_" + strconv.Itoa(i))
	}
	return b
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Config holds relay settings.
type Config struct {
	// Version is reported on the last line of every batch document.
	Version string

	// CatalogMaxRecords caps the records read from one catalog stream.
	// Default: 2048.
	CatalogMaxRecords int
}

// Stats holds operational statistics.
type Stats struct {
	Commands       int64
	Batches        int64
	BatchSlots     int64
	Catalogs       int64
	CatalogRecords int64
	Unterminated   int64
	Yields         int64
}

// Relay forwards commands to a controller, yielding after each round-trip.
//
// The yield function is called with the execution token held; callers run
// relay methods inside the scheduler (Exec) and pass its Yield.
type Relay struct {
	ctrl  controller.Controller
	yield func()
	cfg   Config

	commands       *xsync.Counter
	batches        *xsync.Counter
	batchSlots     *xsync.Counter
	catalogs       *xsync.Counter
	catalogRecords *xsync.Counter
	unterminated   *xsync.Counter
	yields         *xsync.Counter

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a relay over ctrl. A nil yield is treated as a no-op.
func New(ctrl controller.Controller, yield func(), cfg Config) *Relay {
	if yield == nil {
		yield = func() {}
	}
	if cfg.CatalogMaxRecords <= 0 {
		cfg.CatalogMaxRecords = DefaultCatalogMaxRecords
	}
	return &Relay{
		ctrl:           ctrl,
		yield:          yield,
		cfg:            cfg,
		commands:       xsync.NewCounter(),
		batches:        xsync.NewCounter(),
		batchSlots:     xsync.NewCounter(),
		catalogs:       xsync.NewCounter(),
		catalogRecords: xsync.NewCounter(),
		unterminated:   xsync.NewCounter(),
		yields:         xsync.NewCounter(),
	}
}

// SetLogger sets a logger for relay diagnostics.
func (r *Relay) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

func (r *Relay) getLogger() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

// Version returns the version reported by batch documents.
func (r *Relay) Version() string {
	return r.cfg.Version
}

// command performs one round-trip and yields.
func (r *Relay) command(ctx context.Context, cmd string) string {
	resp := r.ctrl.Command(ctx, cmd)
	r.commands.Inc()
	r.pause()
	return resp
}

func (r *Relay) pause() {
	r.yields.Inc()
	r.yield()
}

// RunCommand sends one command and returns the controller's response
// verbatim. An empty command returns "" without contacting the controller.
func (r *Relay) RunCommand(ctx context.Context, cmd string) string {
	if cmd == "" {
		return ""
	}
	return r.command(ctx, cmd)
}

// RunBatch sends every non-empty slot in ascending order and returns one line
// per slot sent, followed by the version line.
//
// A slot's response is recorded whatever it contains; nothing aborts the
// batch except cancellation of ctx, after which the remaining slots are
// skipped.
func (r *Relay) RunBatch(ctx context.Context, batch Batch) string {
	r.batches.Inc()

	var sb strings.Builder
	for i, cmd := range batch {
		if cmd == "" {
			continue
		}
		if ctx.Err() != nil {
			if logger := r.getLogger(); logger != nil {
				logger.Debug("batch cancelled", "slot", i, "error", ctx.Err())
			}
			break
		}
		resp := r.command(ctx, cmd)
		r.batchSlots.Inc()

		sb.WriteString("cmd_")
		sb.WriteString(strconv.Itoa(i))
		sb.WriteByte('|')
		sb.WriteString(resp)
		sb.WriteByte('\n')
	}

	sb.WriteString("sws_version|")
	sb.WriteString(r.cfg.Version)
	sb.WriteByte('\n')
	return sb.String()
}

// Library streams the records of a catalog, one per line.
//
// category is 1-based; the controller's catalogs are 0-based, so catalog
// category-1 is selected. If the controller rejects the selection the result
// is empty. Records are read until one starts with ',' or is empty; that
// sentinel is not part of the result.
func (r *Relay) Library(ctx context.Context, category int) (string, error) {
	r.catalogs.Inc()

	selected := r.ctrl.CommandBool(ctx, fmt.Sprintf(catalogSelect, category-1))
	r.commands.Inc()
	r.pause()
	if !selected {
		return "", nil
	}

	var sb strings.Builder
	for records := 0; ; records++ {
		if err := ctx.Err(); err != nil {
			return sb.String(), fmt.Errorf("catalog %d: %w", category, err)
		}
		if records >= r.cfg.CatalogMaxRecords {
			r.unterminated.Inc()
			if logger := r.getLogger(); logger != nil {
				logger.Error("catalog stream did not terminate",
					"category", category,
					"records", records,
				)
			}
			return sb.String(), fmt.Errorf("%w: category %d after %d records",
				ErrCatalogUnterminated, category, records)
		}

		resp := r.command(ctx, catalogRead)
		if resp == "" || resp[0] == catalogEnd {
			return sb.String(), nil
		}
		r.catalogRecords.Inc()
		sb.WriteString(resp)
		sb.WriteByte('\n')
	}
}

// Stats returns a snapshot of relay statistics.
func (r *Relay) Stats() Stats {
	return Stats{
		Commands:       r.commands.Value(),
		Batches:        r.batches.Value(),
		BatchSlots:     r.batchSlots.Value(),
		Catalogs:       r.catalogs.Value(),
		CatalogRecords: r.catalogRecords.Value(),
		Unterminated:   r.unterminated.Value(),
		Yields:         r.yields.Value(),
	}
}
