package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/merit/internal/domain/types"
)

// queryLimit parses ?limit=, falling back to def when absent.
func (s *Server) queryLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, ErrInvalidLimit
	}
	if n > s.maxLimit {
		n = s.maxLimit
	}
	return n, nil
}

// handleGetStreak handles GET /v1/users/{userID}/streak.
func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.GetUserStreak(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeServiceError(w, r, "api.get_streak", err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewStreak(st))
}

// handleGetPoints handles GET /v1/users/{userID}/points.
func (s *Server) handleGetPoints(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.GetUserSeasonPoints(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeServiceError(w, r, "api.get_points", err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewPoints(m))
}

// handleGetEvents handles GET /v1/users/{userID}/events?limit=N.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_events"
	limit, err := s.queryLimit(r, 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	events, err := s.deps.GetUserMeritEvents(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewEvents(events))
}
