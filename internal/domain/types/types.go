// Package types contains the JSON shapes exchanged over the API and CLI.
package types

import (
	"time"

	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/ranking"
)

// Award statuses.
const (
	StatusApplied = "applied"
	StatusSkipped = "skipped"
	StatusQueued  = "queued"
)

// AwardRequest is the body of POST /v1/awards.
type AwardRequest struct {
	UserID     string            `json:"user_id"`
	Role       string            `json:"role"`
	EventType  string            `json:"event_type"`
	BasePoints *int64            `json:"base_points,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	SourceKey  string            `json:"source_key"`
}

// Input converts the request into a domain input.
func (r AwardRequest) Input() model.AwardInput {
	return model.AwardInput{
		UserID:     r.UserID,
		Role:       model.Role(r.Role),
		EventType:  model.EventType(r.EventType),
		BasePoints: r.BasePoints,
		Metadata:   r.Metadata,
		SourceKey:  r.SourceKey,
	}
}

// AwardResponse reports an award outcome.
type AwardResponse struct {
	Status        string  `json:"status"`
	Reason        string  `json:"reason,omitempty"`
	EventID       string  `json:"event_id,omitempty"`
	AwardedPoints int64   `json:"awarded_points,omitempty"`
	Multiplier    float64 `json:"multiplier,omitempty"`
	StreakDays    int     `json:"streak_days,omitempty"`
	SeasonID      string  `json:"season_id,omitempty"`
}

// NewAwardResponse maps a domain result.
func NewAwardResponse(r model.AwardResult) AwardResponse {
	if !r.Applied {
		return AwardResponse{Status: StatusSkipped, Reason: string(r.Skipped)}
	}
	return AwardResponse{
		Status:        StatusApplied,
		EventID:       r.EventID,
		AwardedPoints: r.AwardedPoints,
		Multiplier:    r.Multiplier,
		StreakDays:    r.StreakDays,
		SeasonID:      r.SeasonID,
	}
}

// MissionRequest is the body of POST /v1/missions/complete.
type MissionRequest struct {
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	Code          string `json:"code"`
	Period        string `json:"period"`
	BasePoints    *int64 `json:"base_points,omitempty"`
	GrantsShelter bool   `json:"grants_shelter"`
}

// ShelterRequest is the body of POST /v1/users/{userID}/shelters.
type ShelterRequest struct {
	Count int `json:"count"`
}

// Streak is a user's streak row.
type Streak struct {
	UserID            string `json:"user_id"`
	CurrentStreakDays int    `json:"current_streak_days"`
	BestStreakDays    int    `json:"best_streak_days"`
	SheltersAvailable int    `json:"shelters_available"`
	LastScoredDate    string `json:"last_scored_date,omitempty"`
}

// NewStreak maps a domain streak.
func NewStreak(s model.UserStreak) Streak {
	return Streak{
		UserID:            s.UserID,
		CurrentStreakDays: s.CurrentStreakDays,
		BestStreakDays:    s.BestStreakDays,
		SheltersAvailable: s.SheltersAvailable,
		LastScoredDate:    s.LastScoredDate.String(),
	}
}

// Points is a user's standing in one season.
type Points struct {
	UserID   string `json:"user_id"`
	SeasonID string `json:"season_id"`
	Points   int64  `json:"points"`
	League   string `json:"league"`
	Role     string `json:"role,omitempty"`
}

// NewPoints maps a membership.
func NewPoints(m model.LeagueMembership) Points {
	return Points{UserID: m.UserID, SeasonID: m.SeasonID, Points: m.Points, League: m.League.String(), Role: string(m.Role)}
}

// Event is a ledger row.
type Event struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Role          string            `json:"role"`
	EventType     string            `json:"event_type"`
	BasePoints    int64             `json:"base_points"`
	Multiplier    float64           `json:"multiplier"`
	AwardedPoints int64             `json:"awarded_points"`
	SeasonID      string            `json:"season_id"`
	SourceKey     string            `json:"source_key"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewEvents maps ledger rows.
func NewEvents(es []model.MeritEvent) []Event {
	out := make([]Event, len(es))
	for i, e := range es {
		out[i] = Event{
			ID:            e.ID,
			UserID:        e.UserID,
			Role:          string(e.Role),
			EventType:     string(e.EventType),
			BasePoints:    e.BasePoints,
			Multiplier:    e.Multiplier,
			AwardedPoints: e.AwardedPoints,
			SeasonID:      e.SeasonID,
			SourceKey:     e.SourceKey,
			Metadata:      e.Metadata,
			CreatedAt:     e.CreatedAt,
		}
	}
	return out
}

// UserRanking is one leaderboard row with its disclosed bias.
type UserRanking struct {
	Rank          int     `json:"rank"`
	UserID        string  `json:"user_id"`
	Role          string  `json:"role"`
	League        string  `json:"league"`
	Points        int64   `json:"points"`
	BasePosition  int     `json:"base_position"`
	BiasPositions int     `json:"bias_positions"`
	BiasPct       float64 `json:"bias_pct"`
}

// NewRankings maps ranked entries.
func NewRankings(rs []ranking.Ranked) []UserRanking {
	out := make([]UserRanking, len(rs))
	for i, r := range rs {
		out[i] = UserRanking{
			Rank:          r.FinalRank,
			UserID:        r.UserID,
			Role:          string(r.Role),
			League:        r.League.String(),
			Points:        r.Points,
			BasePosition:  r.BasePosition,
			BiasPositions: r.BiasPositions,
			BiasPct:       r.BiasPct,
		}
	}
	return out
}

// Leaderboard is the response of GET /v1/leaderboard/{seasonID}.
type Leaderboard struct {
	SeasonID string        `json:"season_id"`
	Role     string        `json:"role,omitempty"`
	League   string        `json:"league,omitempty"`
	Total    int           `json:"total"`
	Entries  []UserRanking `json:"entries"`
}

// Season is a season row.
type Season struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	StartDate       string    `json:"start_date"`
	EndDate         string    `json:"end_date"`
	ResetPoints     bool      `json:"reset_points"`
	MaintainLeagues bool      `json:"maintain_leagues"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewSeason maps a season.
func NewSeason(s model.Season) Season {
	return Season{
		ID:              s.ID,
		Status:          string(s.Status),
		StartDate:       s.StartDate.String(),
		EndDate:         s.EndDate.String(),
		ResetPoints:     s.ResetPoints,
		MaintainLeagues: s.MaintainLeagues,
		CreatedAt:       s.CreatedAt,
	}
}

// SeasonRequest is the body of POST /v1/admin/seasons.
type SeasonRequest struct {
	ID              string `json:"id"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	ResetPoints     bool   `json:"reset_points"`
	MaintainLeagues bool   `json:"maintain_leagues"`
}

// Season converts the request, parsing dates.
func (r SeasonRequest) Season() (model.Season, error) {
	start, err := model.ParseDate(r.StartDate)
	if err != nil {
		return model.Season{}, err
	}
	end, err := model.ParseDate(r.EndDate)
	if err != nil {
		return model.Season{}, err
	}
	return model.Season{
		ID:              r.ID,
		Status:          model.SeasonUpcoming,
		StartDate:       start,
		EndDate:         end,
		ResetPoints:     r.ResetPoints,
		MaintainLeagues: r.MaintainLeagues,
	}, nil
}

// AssignmentReport summarizes a league assignment run.
type AssignmentReport struct {
	FromSeasonID string `json:"from_season_id"`
	ToSeasonID   string `json:"to_season_id"`
	Members      int    `json:"members"`
	Promoted     int    `json:"promoted"`
	Demoted      int    `json:"demoted"`
	Unchanged    int    `json:"unchanged"`
}

// EligibilityRequest is the body of PUT /v1/admin/users/{userID}/eligibility.
type EligibilityRequest struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// Stats is the response of GET /v1/stats.
type Stats struct {
	QueueLength   int    `json:"queue_length"`
	QueueCapacity int    `json:"queue_capacity"`
	Workers       int    `json:"workers"`
	DedupeSize    int64  `json:"dedupe_size"`
	ActiveSeason  string `json:"active_season,omitempty"`
	RulesVersion  int64  `json:"rules_version"`
}

// Error is the JSON error envelope.
type Error struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
