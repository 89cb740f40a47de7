// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	service "github.com/okian/merit/internal/app"
	"github.com/okian/merit/internal/config"
	"github.com/okian/merit/internal/domain/errs"
	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/types"
	"github.com/okian/merit/pkg/logger"
)

const (
	defaultMaxLimit   = 100
	maxBodyBytes      = 1 << 20
	requestTimeout    = 30 * time.Second
	retryAfterSeconds = "1"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	AwardDependencies
	UserDependencies
	LeaderboardDependencies
	AdminDependencies
	StatsProvider
}

// Server wires HTTP routes for the merit API.
type Server struct {
	deps     Dependencies
	maxLimit int
	logger   logger.Logger
	extra    []func(chi.Router)
}

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps page sizes of list endpoints.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRoutes mounts additional routes, e.g. API docs.
func WithRoutes(fn func(chi.Router)) Option {
	return func(s *Server) {
		if fn != nil {
			s.extra = append(s.extra, fn)
		}
	}
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{deps: deps, maxLimit: defaultMaxLimit, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/awards", s.handlePostAward)
		r.Post("/awards/async", s.handlePostAwardAsync)
		r.Post("/missions/complete", s.handleCompleteMission)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/shelters", s.handleGrantShelter)
			r.Get("/streak", s.handleGetStreak)
			r.Get("/points", s.handleGetPoints)
			r.Get("/events", s.handleGetEvents)
		})

		r.Get("/leaderboard/{seasonID}", s.handleGetLeaderboard)
		r.Get("/stats", s.handleStats)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/seasons", s.handleCreateSeason)
			r.Get("/seasons", s.handleListSeasons)
			r.Post("/seasons/{seasonID}/activate", s.handleActivateSeason)
			r.Post("/seasons/{seasonID}/close", s.handleCloseSeason)
			r.Post("/seasons/{seasonID}/rollover", s.handleRollover)
			r.Post("/leagues/assign", s.handleAssignLeagues)
			r.Put("/users/{userID}/eligibility", s.handleSetEligibility)
			r.Put("/rules", s.handleReloadRules)
		})
	})

	for _, fn := range s.extra {
		fn(r)
	}
	return r
}

// AwardDependencies covers the write side.
type AwardDependencies interface {
	Award(ctx context.Context, in model.AwardInput) (model.AwardResult, error)
	Enqueue(ctx context.Context, in model.AwardInput) (model.AwardResult, bool, error)
	CompleteMission(ctx context.Context, m service.Mission) (model.AwardResult, error)
	GrantShelter(ctx context.Context, userID string, n int) (model.UserStreak, error)
}

// UserDependencies covers per-user reads.
type UserDependencies interface {
	GetUserStreak(ctx context.Context, userID string) (model.UserStreak, error)
	GetUserSeasonPoints(ctx context.Context, userID string) (model.LeagueMembership, error)
	GetUserMeritEvents(ctx context.Context, userID string, limit int) ([]model.MeritEvent, error)
}

// AdminDependencies covers season, league, eligibility and rules management.
type AdminDependencies interface {
	CreateSeason(ctx context.Context, s model.Season) (model.Season, error)
	Seasons(ctx context.Context) ([]model.Season, error)
	ActivateSeason(ctx context.Context, id string) (model.Season, error)
	CloseSeason(ctx context.Context, id string) (model.Season, error)
	Rollover(ctx context.Context, nextID string) (types.AssignmentReport, error)
	AssignLeagues(ctx context.Context, fromID, toID string) (types.AssignmentReport, error)
	SetEligibility(ctx context.Context, userID string, eligible bool, reason string) error
	ReloadRules(ctx context.Context, r config.Rules) (int64, error)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.Error{Error: code, Message: msg})
}

// writeServiceError translates the error taxonomy into HTTP.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, errs.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errs.IsConfiguration(err):
		writeError(w, http.StatusServiceUnavailable, "configuration_error", err)
	case errs.IsTransient(err):
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeError(w, http.StatusServiceUnavailable, "transient", err)
	case errs.IsInvariant(err):
		writeError(w, http.StatusInternalServerError, "invariant_violation", err)
	case errors.Is(err, errs.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		s.logger.Error(r.Context(), "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
