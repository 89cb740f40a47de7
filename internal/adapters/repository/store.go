// Package repository defines the merit store interfaces and their SQLite
// implementation.
package repository

import (
	"context"
	"time"

	"github.com/okian/merit/internal/domain/model"
)

// Store provides read access and transactional writes to the merit state.
// Reads outside a transaction see committed data only.
type Store interface {
	// InTx runs fn inside one write transaction. fn returning an error, or
	// a failed commit, rolls everything back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// EventExists reports whether sourceKey is already in the ledger.
	EventExists(ctx context.Context, sourceKey string) (bool, error)
	// UserEvents returns the newest events of a user first.
	UserEvents(ctx context.Context, userID string, limit int) ([]model.MeritEvent, error)

	// Streak returns the streak row, or a zero row for unknown users.
	Streak(ctx context.Context, userID string) (model.UserStreak, error)

	// Season returns a season or ErrNotFound.
	Season(ctx context.Context, id string) (model.Season, error)
	// Seasons lists seasons by start date.
	Seasons(ctx context.Context) ([]model.Season, error)
	// ActiveSeasons lists seasons whose status is active.
	ActiveSeasons(ctx context.Context) ([]model.Season, error)

	// Membership returns a user's row for a season or ErrNotFound.
	Membership(ctx context.Context, userID, seasonID string) (model.LeagueMembership, error)
	// Memberships returns every row of a season, optionally filtered.
	Memberships(ctx context.Context, seasonID string, f MembershipFilter) ([]model.LeagueMembership, error)
	// LeagueChanges returns the assignment audit rows of a source season.
	LeagueChanges(ctx context.Context, fromSeasonID string) ([]model.LeagueChange, error)

	// Eligible implements ranking.Eligibility: users without a row are eligible.
	Eligible(ctx context.Context, userIDs []string) (map[string]bool, error)
	// SetEligibility records an admin decision.
	SetEligibility(ctx context.Context, userID string, eligible bool, reason string) error

	Close() error
}

// MembershipFilter narrows Memberships.
type MembershipFilter struct {
	Role   *model.Role
	League *model.League
}

// Tx is the write side, valid only inside InTx.
type Tx interface {
	EventExists(ctx context.Context, sourceKey string) (bool, error)
	// InsertEvent appends to the ledger. It returns false without error when
	// the source key already exists.
	InsertEvent(ctx context.Context, e model.MeritEvent) (bool, error)
	// CountEvents counts a user's events of one type at or after since.
	CountEvents(ctx context.Context, userID string, event model.EventType, since time.Time) (int, error)

	Streak(ctx context.Context, userID string) (model.UserStreak, error)
	PutStreak(ctx context.Context, s model.UserStreak) error
	// StaleStreaks returns live streaks last scored before the given date.
	StaleStreaks(ctx context.Context, before model.Date) ([]model.UserStreak, error)

	// AddPoints increments season points, creating a bronze row when absent.
	AddPoints(ctx context.Context, userID, seasonID string, role model.Role, delta int64, at time.Time) (model.LeagueMembership, error)
	// PutMembership upserts a row, used by league assignment.
	PutMembership(ctx context.Context, m model.LeagueMembership) error
	Memberships(ctx context.Context, seasonID string) ([]model.LeagueMembership, error)
	PutLeagueChange(ctx context.Context, c model.LeagueChange, at time.Time) error

	CreateSeason(ctx context.Context, s model.Season) error
	Season(ctx context.Context, id string) (model.Season, error)
	ActiveSeasons(ctx context.Context) ([]model.Season, error)
	SetSeasonStatus(ctx context.Context, id string, status model.SeasonStatus) error
}
