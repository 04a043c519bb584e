package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/nerrad567/sws-bridge/internal/relay"
)

// writeText writes a text/plain response.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	io.WriteString(w, body)
}

// withToken runs fn holding the execution token. It reports false when the
// request was cancelled before the token became free; a response has then
// already been written.
func (s *Server) withToken(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context)) bool {
	ctx := r.Context()
	if err := s.sched.Exec(ctx, func() { fn(ctx) }); err != nil {
		s.logger.Debug("request abandoned waiting for scheduler",
			"path", r.URL.Path,
			"error", err,
		)
		writeUnavailable(w, "scheduler busy")
		return false
	}
	return true
}

// handleCommand relays the "cmd" parameter and returns the controller's
// response verbatim. A missing or empty parameter gives an empty body.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	cmd := r.URL.Query().Get("cmd")

	var resp string
	if cmd != "" {
		if !s.withToken(w, r, func(ctx context.Context) {
			resp = s.relay.RunCommand(ctx, cmd)
		}) {
			return
		}
	}
	writeText(w, http.StatusOK, resp)
}

// handleBatch relays slots cmd_0 through cmd_99.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	batch := relay.BatchFromValues(r.URL.Query())

	var doc string
	if !s.withToken(w, r, func(ctx context.Context) {
		doc = s.relay.RunBatch(ctx, batch)
	}) {
		return
	}
	writeText(w, http.StatusOK, doc)
}

// handleLibrary streams catalog "cat". A value that is not an integer reads
// as category 0.
func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	category, err := strconv.Atoi(r.URL.Query().Get("cat"))
	if err != nil {
		category = 0
	}

	var (
		doc      string
		relayErr error
	)
	if !s.withToken(w, r, func(ctx context.Context) {
		doc, relayErr = s.relay.Library(ctx, category)
	}) {
		return
	}

	switch {
	case relayErr == nil:
		writeText(w, http.StatusOK, doc)
	case errors.Is(relayErr, relay.ErrCatalogUnterminated):
		writeRelayError(w, http.StatusBadGateway, relayErr)
	default:
		s.logger.Debug("catalog stream abandoned", "category", category, "error", relayErr)
		writeRelayError(w, http.StatusServiceUnavailable, relayErr)
	}
}
