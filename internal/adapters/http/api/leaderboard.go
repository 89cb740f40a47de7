package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/merit/internal/app"
	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/types"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Rank(ctx context.Context, seasonID string, q service.RankQuery) (types.Leaderboard, error)
}

// handleGetLeaderboard handles GET /v1/leaderboard/{seasonID}?role=&league=&limit=.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	var q service.RankQuery

	limit, err := s.queryLimit(r, s.maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	q.Limit = limit

	if raw := r.URL.Query().Get("role"); raw != "" {
		role, err := model.ParseRole(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		q.Role = &role
	}
	if raw := r.URL.Query().Get("league"); raw != "" {
		l, err := model.ParseLeague(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		q.League = &l
	}

	board, err := s.deps.Rank(r.Context(), chi.URLParam(r, "seasonID"), q)
	if err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
