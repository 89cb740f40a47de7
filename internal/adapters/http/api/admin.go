package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/merit/internal/config"
	"github.com/okian/merit/internal/domain/types"
)

// handleCreateSeason handles POST /v1/admin/seasons.
func (s *Server) handleCreateSeason(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_season"
	var req types.SeasonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	season, err := req.Season()
	if err != nil {
		s.writeServiceError(w, r, op, errors.Join(ErrBadRequest, err))
		return
	}
	created, err := s.deps.CreateSeason(r.Context(), season)
	if err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.NewSeason(created))
}

// handleListSeasons handles GET /v1/admin/seasons.
func (s *Server) handleListSeasons(w http.ResponseWriter, r *http.Request) {
	seasons, err := s.deps.Seasons(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "api.list_seasons", err)
		return
	}
	out := make([]types.Season, len(seasons))
	for i, se := range seasons {
		out[i] = types.NewSeason(se)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleActivateSeason handles POST /v1/admin/seasons/{seasonID}/activate.
func (s *Server) handleActivateSeason(w http.ResponseWriter, r *http.Request) {
	season, err := s.deps.ActivateSeason(r.Context(), chi.URLParam(r, "seasonID"))
	if err != nil {
		s.writeServiceError(w, r, "api.activate_season", err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewSeason(season))
}

// handleCloseSeason handles POST /v1/admin/seasons/{seasonID}/close.
func (s *Server) handleCloseSeason(w http.ResponseWriter, r *http.Request) {
	season, err := s.deps.CloseSeason(r.Context(), chi.URLParam(r, "seasonID"))
	if err != nil {
		s.writeServiceError(w, r, "api.close_season", err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewSeason(season))
}

// handleRollover handles POST /v1/admin/seasons/{seasonID}/rollover.
func (s *Server) handleRollover(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Rollover(r.Context(), chi.URLParam(r, "seasonID"))
	if err != nil {
		s.writeServiceError(w, r, "api.rollover", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleAssignLeagues handles POST /v1/admin/leagues/assign?from=&to=.
func (s *Server) handleAssignLeagues(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("from and to are required"))
		return
	}
	report, err := s.deps.AssignLeagues(r.Context(), from, to)
	if err != nil {
		s.writeServiceError(w, r, "api.assign_leagues", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleSetEligibility handles PUT /v1/admin/users/{userID}/eligibility.
func (s *Server) handleSetEligibility(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_eligibility"
	var req types.EligibilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	if err := s.deps.SetEligibility(r.Context(), chi.URLParam(r, "userID"), req.Eligible, req.Reason); err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReloadRules handles PUT /v1/admin/rules with a TOML body.
func (s *Server) handleReloadRules(w http.ResponseWriter, r *http.Request) {
	const op = "api.reload_rules"
	rules, err := config.DecodeRules(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeServiceError(w, r, op, errors.Join(ErrBadRequest, err))
		return
	}
	version, err := s.deps.ReloadRules(r.Context(), rules)
	if err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"rules_version": version})
}
