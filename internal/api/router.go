package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sws-bridge/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Browser hand controller
	r.Handle("/ui/*", http.StripPrefix("/ui", panel.Handler(s.cfg.UIDir)))
	r.Handle("/ui", http.RedirectHandler("/ui/", http.StatusMovedPermanently))
	r.Handle("/", http.RedirectHandler("/ui/", http.StatusFound))

	// Web relay, as served to the browser UI
	r.Route("/ajax", func(r chi.Router) {
		r.Get("/cmd", s.handleCommand)
		r.Get("/cmds", s.handleBatch)
		r.Get("/library", s.handleLibrary)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/axes", func(r chi.Router) {
			r.Get("/", s.handleListAxes)
			r.Get("/{axis}/position", s.handleGetPosition)
			r.Put("/{axis}/position", s.handleSetPosition)
		})

		if s.wsCfg.Enabled {
			r.Get("/console", s.handleConsole)
		}
	})

	return r
}

// handleHealth returns the server health status.
// The status is "degraded" while the controller link is down.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	resp := map[string]any{
		"version": s.version,
	}

	if s.link != nil {
		stats := s.link.Stats()
		resp["controller"] = map[string]any{
			"target":    s.link.Target(),
			"connected": stats.Connected,
		}
		if !stats.Connected {
			status = "degraded"
		}
	}
	if s.mqtt != nil {
		resp["mqtt"] = map[string]any{
			"connected": s.mqtt.IsConnected(),
		}
	}

	resp["status"] = status
	writeJSON(w, http.StatusOK, resp)
}
