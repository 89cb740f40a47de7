package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/merit/internal/adapters/repository"
	"github.com/okian/merit/internal/domain/caps"
	"github.com/okian/merit/internal/domain/errs"
	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/scoring"
	"github.com/okian/merit/internal/domain/streak"
	"github.com/okian/merit/pkg/logger"
	"github.com/okian/merit/pkg/metrics"
)

func validate(in model.AwardInput) error {
	if err := in.Validate(); err != nil {
		return errs.Invalid(err)
	}
	return nil
}

// Award applies one merit event. The result is either applied or a named
// skip; errors are configuration, transient or invariant failures. Calling
// Award again with the same source key is always safe.
func (s *Service) Award(ctx context.Context, in model.AwardInput) (model.AwardResult, error) {
	return s.award(ctx, in, 0)
}

// award runs the award transaction. shelters > 0 grants that many shelters
// in the same transaction when the award is applied.
func (s *Service) award(ctx context.Context, in model.AwardInput, shelters int) (model.AwardResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordAwardLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := validate(in); err != nil {
		metrics.RecordAwardError(errs.Class(err))
		return model.AwardResult{}, err
	}
	if s.dedupe.Seen(ctx, in.SourceKey) {
		metrics.RecordDedupeCacheHit()
		return s.skipped(ctx, in, model.SkipDuplicate), nil
	}

	snap := s.rules.Load()
	res := snap.rules.Points.Resolve(in.Role, in.EventType, in.BasePoints)
	if !in.EventType.Known() || !res.Awardable() {
		return s.noPoints(ctx, in)
	}

	now, today := s.today()
	var (
		result model.AwardResult
		moved  streak.Transition
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		exists, err := tx.EventExists(ctx, in.SourceKey)
		if err != nil {
			return err
		}
		if exists {
			result = model.Skip(model.SkipDuplicate)
			return nil
		}

		season, err := activeSeason(ctx, tx)
		if err != nil {
			return err
		}

		decision, err := snap.enforcer.Check(ctx, tx, caps.Subject{
			UserID: in.UserID, Role: in.Role, Event: in.EventType,
		}, now)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			result = model.Skip(model.SkipCap)
			return nil
		}

		st, err := tx.Streak(ctx, in.UserID)
		if err != nil {
			return err
		}
		multiplier := snap.rules.Tiers.Multiplier(streak.Effective(st, today))
		ev := model.MeritEvent{
			ID:            uuid.NewString(),
			UserID:        in.UserID,
			Role:          in.Role,
			EventType:     in.EventType,
			BasePoints:    res.Points,
			Multiplier:    multiplier,
			AwardedPoints: scoring.Apply(res.Points, multiplier),
			SeasonID:      season.ID,
			SourceKey:     in.SourceKey,
			Metadata:      in.Metadata,
			CreatedAt:     now,
		}
		inserted, err := tx.InsertEvent(ctx, ev)
		if err != nil {
			return err
		}
		if !inserted {
			result = model.Skip(model.SkipDuplicate)
			return nil
		}

		m, err := tx.AddPoints(ctx, in.UserID, season.ID, in.Role, ev.AwardedPoints, now)
		if err != nil {
			return err
		}
		if !m.League.Valid() {
			return errs.Invariant("league_membership", "user %s league %d", m.UserID, int(m.League))
		}

		out, err := streak.Advance(st, today)
		if err != nil {
			return err
		}
		next := out.Streak
		if shelters > 0 {
			if next, err = streak.GrantShelters(next, shelters); err != nil {
				return err
			}
		}
		if err := tx.PutStreak(ctx, next); err != nil {
			return err
		}

		moved = out.Transition
		result = model.AwardResult{
			Applied:       true,
			EventID:       ev.ID,
			AwardedPoints: ev.AwardedPoints,
			Multiplier:    multiplier,
			StreakDays:    next.CurrentStreakDays,
			SeasonID:      season.ID,
		}
		return nil
	})
	if err != nil {
		metrics.RecordAwardError(errs.Class(err))
		s.report(ctx, "award", err,
			logger.String("source_key", in.SourceKey),
			logger.String("user", in.UserID),
		)
		return model.AwardResult{}, err
	}

	if !result.Applied {
		if result.Skipped == model.SkipDuplicate {
			s.dedupe.Record(ctx, in.SourceKey)
		}
		return s.skipped(ctx, in, result.Skipped), nil
	}

	s.dedupe.Record(ctx, in.SourceKey)
	metrics.RecordAward("applied", "")
	metrics.RecordPointsAwarded(string(in.Role), result.AwardedPoints)
	metrics.RecordStreakTransition(string(moved))
	if shelters > 0 {
		metrics.RecordSheltersGranted(shelters)
	}
	s.logger.Debug(ctx, "award applied",
		logger.String("source_key", in.SourceKey),
		logger.String("user", in.UserID),
		logger.Int64("points", result.AwardedPoints),
		logger.Float64("multiplier", result.Multiplier),
		logger.Int("streak", result.StreakDays),
	)
	return result, nil
}

// noPoints answers an award that resolves to nothing. Unknown event types
// land here even with an override. A key already in the ledger stays a
// duplicate.
func (s *Service) noPoints(ctx context.Context, in model.AwardInput) (model.AwardResult, error) {
	exists, err := s.store.EventExists(ctx, in.SourceKey)
	if err != nil {
		metrics.RecordAwardError(errs.Class(err))
		s.report(ctx, "award", err, logger.String("source_key", in.SourceKey))
		return model.AwardResult{}, err
	}
	if exists {
		s.dedupe.Record(ctx, in.SourceKey)
		return s.skipped(ctx, in, model.SkipDuplicate), nil
	}
	return s.skipped(ctx, in, model.SkipNoPoints), nil
}

func (s *Service) skipped(ctx context.Context, in model.AwardInput, reason model.SkipReason) model.AwardResult {
	metrics.RecordAward("skipped", string(reason))
	s.logger.Debug(ctx, "award skipped",
		logger.String("source_key", in.SourceKey),
		logger.String("user", in.UserID),
		logger.String("reason", string(reason)),
	)
	return model.Skip(reason)
}

// Mission describes a completed daily or weekly assignment.
type Mission struct {
	UserID        string
	Role          model.Role
	Code          string
	Period        string // e.g. "2026-10-18" or "2026-W42"
	BasePoints    *int64
	GrantsShelter bool
}

// MissionKey is the source key of a mission completion.
func MissionKey(code, userID, period string) string {
	return fmt.Sprintf("mission:%s|user:%s|%s", code, userID, period)
}

// CompleteMission awards mission_completed once per (code, user, period).
// A shelter is granted only when the award is applied.
func (s *Service) CompleteMission(ctx context.Context, m Mission) (model.AwardResult, error) {
	if strings.TrimSpace(m.Code) == "" || strings.TrimSpace(m.Period) == "" {
		return model.AwardResult{}, fmt.Errorf("%w: code and period are required", ErrInvalidMission)
	}
	shelters := 0
	if m.GrantsShelter {
		shelters = 1
	}
	return s.award(ctx, model.AwardInput{
		UserID:     m.UserID,
		Role:       m.Role,
		EventType:  model.EventMissionCompleted,
		BasePoints: m.BasePoints,
		Metadata:   map[string]string{"mission": m.Code, "period": m.Period},
		SourceKey:  MissionKey(m.Code, m.UserID, m.Period),
	}, shelters)
}
