package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/merit/internal/adapters/repository"
	"github.com/okian/merit/internal/domain/errs"
	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/ranking"
	"github.com/okian/merit/internal/domain/types"
	"github.com/okian/merit/pkg/metrics"
)

// RankQuery selects a leaderboard slice.
type RankQuery struct {
	Role   *model.Role
	League *model.League
	Limit  int // <= 0 means the configured maximum
}

// Rank builds the leaderboard of a season. Ineligible users are removed
// before any bias is applied; every row discloses its bias.
func (s *Service) Rank(ctx context.Context, seasonID string, q RankQuery) (types.Leaderboard, error) {
	if _, err := s.store.Season(ctx, seasonID); err != nil {
		return types.Leaderboard{}, err
	}
	if q.Limit <= 0 || q.Limit > s.maxLimit {
		q.Limit = s.maxLimit
	}
	ms, err := s.store.Memberships(ctx, seasonID, repository.MembershipFilter{Role: q.Role, League: q.League})
	if err != nil {
		return types.Leaderboard{}, err
	}

	entries := make([]ranking.Entry, len(ms))
	ids := make([]string, len(ms))
	for i, m := range ms {
		if !m.League.Valid() {
			err := errs.Invariant("league_membership", "user %s league %d", m.UserID, int(m.League))
			s.report(ctx, "rank", err)
			return types.Leaderboard{}, err
		}
		entries[i] = ranking.Entry{
			UserID:   m.UserID,
			Role:     m.Role,
			League:   m.League,
			Points:   m.Points,
			JoinedAt: m.CreatedAt,
		}
		ids[i] = m.UserID
	}
	eligible, err := s.eligibility.Eligible(ctx, ids)
	if err != nil {
		return types.Leaderboard{}, err
	}

	ranked := ranking.Rank(entries, eligible, s.rankCfg)
	metrics.RecordLeaderboardBuild()

	out := types.Leaderboard{SeasonID: seasonID, Total: len(ranked)}
	if q.Role != nil {
		out.Role = string(*q.Role)
	}
	if q.League != nil {
		out.League = q.League.String()
	}
	if len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}
	out.Entries = types.NewRankings(ranked)
	return out, nil
}

// SetEligibility records whether a user may appear on leaderboards.
func (s *Service) SetEligibility(ctx context.Context, userID string, eligible bool, reason string) error {
	if strings.TrimSpace(userID) == "" {
		return errs.Invalid(errors.New("missing user id"))
	}
	return s.store.SetEligibility(ctx, userID, eligible, reason)
}

// GetUserSeasonPoints returns the user's row in the active season. Users
// without points yet get a zero bronze row.
func (s *Service) GetUserSeasonPoints(ctx context.Context, userID string) (model.LeagueMembership, error) {
	season, err := s.ActiveSeason(ctx)
	if err != nil {
		return model.LeagueMembership{}, err
	}
	m, err := s.store.Membership(ctx, userID, season.ID)
	if errors.Is(err, errs.ErrNotFound) {
		return model.LeagueMembership{UserID: userID, SeasonID: season.ID, League: model.Bronze}, nil
	}
	return m, err
}

// GetUserMeritEvents returns the newest events of a user first.
func (s *Service) GetUserMeritEvents(ctx context.Context, userID string, limit int) ([]model.MeritEvent, error) {
	if limit <= 0 || limit > s.maxLimit {
		return nil, errs.Invalid(fmt.Errorf("limit must be within [1, %d]", s.maxLimit))
	}
	return s.store.UserEvents(ctx, userID, limit)
}
