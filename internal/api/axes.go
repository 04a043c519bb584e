package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AxisResponse is the JSON view of one axis encoder.
type AxisResponse struct {
	Axis        string `json:"axis"`
	Position    int32  `json:"position"`
	MissedEdges uint64 `json:"missed_edges"`
}

// SetPositionRequest is the body of PUT /axes/{axis}/position.
type SetPositionRequest struct {
	Position *int32 `json:"position"`
}

// handleListAxes returns every axis in configuration order.
func (s *Server) handleListAxes(w http.ResponseWriter, _ *http.Request) {
	encs := s.axes.All()
	out := make([]AxisResponse, 0, len(encs))
	for _, e := range encs {
		out = append(out, AxisResponse{
			Axis:        e.Name(),
			Position:    e.Read(),
			MissedEdges: e.MissedEdges(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"axes":  out,
		"count": len(out),
	})
}

// handleGetPosition returns one axis position.
func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "axis")
	e, err := s.axes.Get(name)
	if err != nil {
		writeNotFound(w, "axis not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, AxisResponse{
		Axis:        e.Name(),
		Position:    e.Read(),
		MissedEdges: e.MissedEdges(),
	})
}

// handleSetPosition sets the axis position baseline (homing).
func (s *Server) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "axis")
	e, err := s.axes.Get(name)
	if err != nil {
		writeNotFound(w, "axis not found: "+name)
		return
	}

	var req SetPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Position == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "position is required")
		return
	}

	if !s.withToken(w, r, func(context.Context) {
		e.Write(*req.Position)
	}) {
		return
	}

	s.logger.Info("axis position set", "axis", name, "position", *req.Position)
	writeJSON(w, http.StatusOK, AxisResponse{
		Axis:        e.Name(),
		Position:    e.Read(),
		MissedEdges: e.MissedEdges(),
	})
}
