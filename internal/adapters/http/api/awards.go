package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/merit/internal/app"
	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/types"
)

// handlePostAward handles POST /v1/awards. Skips are 200 responses.
func (s *Server) handlePostAward(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_award"
	var req types.AwardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	res, err := s.deps.Award(r.Context(), req.Input())
	if err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewAwardResponse(res))
}

// handlePostAwardAsync handles POST /v1/awards/async.
func (s *Server) handlePostAwardAsync(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_award_async"
	var req types.AwardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	res, queued, err := s.deps.Enqueue(r.Context(), req.Input())
	if err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	if !queued {
		writeJSON(w, http.StatusOK, types.NewAwardResponse(res))
		return
	}
	writeJSON(w, http.StatusAccepted, types.AwardResponse{Status: types.StatusQueued})
}

// handleCompleteMission handles POST /v1/missions/complete.
func (s *Server) handleCompleteMission(w http.ResponseWriter, r *http.Request) {
	const op = "api.complete_mission"
	var req types.MissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	res, err := s.deps.CompleteMission(r.Context(), service.Mission{
		UserID:        req.UserID,
		Role:          model.Role(req.Role),
		Code:          req.Code,
		Period:        req.Period,
		BasePoints:    req.BasePoints,
		GrantsShelter: req.GrantsShelter,
	})
	if err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewAwardResponse(res))
}

// handleGrantShelter handles POST /v1/users/{userID}/shelters.
func (s *Server) handleGrantShelter(w http.ResponseWriter, r *http.Request) {
	const op = "api.grant_shelter"
	req := types.ShelterRequest{Count: 1}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeServiceError(w, r, op, err)
			return
		}
	}
	if req.Count < 1 {
		s.writeServiceError(w, r, op, fmt.Errorf("%w: count must be positive", ErrBadRequest))
		return
	}
	st, err := s.deps.GrantShelter(r.Context(), chi.URLParam(r, "userID"), req.Count)
	if err != nil {
		s.writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewStreak(st))
}
