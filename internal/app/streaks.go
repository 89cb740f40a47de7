package service

import (
	"context"

	"github.com/okian/merit/internal/adapters/repository"
	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/streak"
	"github.com/okian/merit/pkg/logger"
	"github.com/okian/merit/pkg/metrics"
)

// GetUserStreak returns the stored streak row. Unknown users get a zero row.
func (s *Service) GetUserStreak(ctx context.Context, userID string) (model.UserStreak, error) {
	return s.store.Streak(ctx, userID)
}

// GrantShelter adds n shelters to a user's streak row.
func (s *Service) GrantShelter(ctx context.Context, userID string, n int) (model.UserStreak, error) {
	var out model.UserStreak
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		st, err := tx.Streak(ctx, userID)
		if err != nil {
			return err
		}
		if out, err = streak.GrantShelters(st, n); err != nil {
			return err
		}
		return tx.PutStreak(ctx, out)
	})
	if err != nil {
		s.report(ctx, "grant shelter", err, logger.String("user", userID))
		return model.UserStreak{}, err
	}
	metrics.RecordSheltersGranted(n)
	s.logger.Info(ctx, "shelters granted", logger.String("user", userID), logger.Int("count", n))
	return out, nil
}

// RollStreaks clears the current streak of every user who missed a full
// day without a shelter to cover it. Best streaks are kept. It returns the
// number of rows reset and is safe to run any number of times a day.
func (s *Service) RollStreaks(ctx context.Context) (int, error) {
	_, today := s.today()
	reset := 0
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		reset = 0
		stale, err := tx.StaleStreaks(ctx, today.AddDays(-1))
		if err != nil {
			return err
		}
		for _, st := range stale {
			next, changed := streak.Rollover(st, today)
			if !changed {
				continue
			}
			if err := tx.PutStreak(ctx, next); err != nil {
				return err
			}
			reset++
		}
		return nil
	})
	if err != nil {
		s.report(ctx, "roll streaks", err)
		return 0, err
	}
	metrics.RecordStreakRolloverResets(reset)
	s.logger.Info(ctx, "streak rollover done", logger.String("today", today.String()), logger.Int("reset", reset))
	return reset, nil
}
