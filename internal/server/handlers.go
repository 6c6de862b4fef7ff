package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sixdegrees/bacond/internal/engine"
)

// DistanceResponse is the success payload of the distance endpoint.
type DistanceResponse struct {
	BaconDistance int `json:"bacon_distance"`
}

// ErrorResponse is the failure payload: a short message plus an optional
// longer description.
type ErrorResponse struct {
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}

// handleBaconDistance handles GET /api/bacon_distance?actor_name=X.
func (s *Server) handleBaconDistance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ErrorResponse{Message: "method not allowed"})
		return
	}

	actor := r.URL.Query().Get("actor_name")
	if actor == "" {
		writeError(w, http.StatusBadRequest, ErrorResponse{
			Message: "missing actor_name query parameter",
		})
		return
	}

	distance, err := s.engine.Distance(r.Context(), actor)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, DistanceResponse{BaconDistance: distance})
	case errors.Is(err, engine.ErrUnknownActor):
		writeError(w, http.StatusNotFound, ErrorResponse{
			Message:     "Actor Not Found!",
			Description: err.Error(),
		})
	case errors.Is(err, engine.ErrNoPath):
		writeError(w, http.StatusNotFound, ErrorResponse{
			Message:     "No Path Found!",
			Description: err.Error(),
		})
	case errors.Is(err, engine.ErrNoDataset):
		writeError(w, http.StatusServiceUnavailable, ErrorResponse{
			Message: "dataset not loaded yet",
		})
	default:
		s.log.Error("distance query failed", "actor", actor, "error", err)
		writeError(w, http.StatusInternalServerError, ErrorResponse{
			Message: "internal error",
		})
	}
}

// handleHealthz reports process liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// handleReadyz reports whether a dataset is loaded and queries can be served.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() || !s.engine.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	writeJSON(w, status, resp)
}
