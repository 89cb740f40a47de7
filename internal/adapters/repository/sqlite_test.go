package repository_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/merit/internal/adapters/repository"
	"github.com/okian/merit/internal/domain/errs"
	"github.com/okian/merit/internal/domain/model"
)

func openStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	s, err := repository.Open(context.Background(), filepath.Join(t.TempDir(), "merit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSeason(t *testing.T, s repository.Store, id string, status model.SeasonStatus) {
	t.Helper()
	err := s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateSeason(ctx, model.Season{
			ID:        id,
			Status:    status,
			StartDate: model.Date{Year: 2026, Month: time.October, Day: 12},
			EndDate:   model.Date{Year: 2026, Month: time.October, Day: 18},
		})
	})
	require.NoError(t, err)
}

func event(key string, at time.Time) model.MeritEvent {
	return model.MeritEvent{
		ID:            "id-" + key,
		UserID:        "u1",
		Role:          model.RoleOperator,
		EventType:     model.EventQuoteSubmitted,
		BasePoints:    10,
		Multiplier:    1.0,
		AwardedPoints: 10,
		SeasonID:      "s1",
		SourceKey:     key,
		Metadata:      map[string]string{"quote": key},
		CreatedAt:     at,
	}
}

func TestInsertEventIsIdempotent(t *testing.T) {
	s := openStore(t)
	seedSeason(t, s, "s1", model.SeasonActive)
	ctx := context.Background()
	now := time.Now()

	var first, second bool
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		first, err = tx.InsertEvent(ctx, event("quote:1|rule:quote_submitted", now))
		return err
	}))
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		e := event("quote:1|rule:quote_submitted", now)
		e.ID = "another-id"
		var err error
		second, err = tx.InsertEvent(ctx, e)
		return err
	}))

	assert.True(t, first)
	assert.False(t, second)

	exists, err := s.EventExists(ctx, "quote:1|rule:quote_submitted")
	require.NoError(t, err)
	assert.True(t, exists)

	events, err := s.UserEvents(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "id-quote:1|rule:quote_submitted", events[0].ID)
	assert.Equal(t, "quote:1|rule:quote_submitted", events[0].Metadata["quote"])
}

func TestRollbackOnError(t *testing.T) {
	s := openStore(t)
	seedSeason(t, s, "s1", model.SeasonActive)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.InsertEvent(ctx, event("k1", time.Now())); err != nil {
			return err
		}
		if _, err := tx.AddPoints(ctx, "u1", "s1", model.RoleOperator, 10, time.Now()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	exists, err := s.EventExists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Membership(ctx, "u1", "s1")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCountEventsWindow(t *testing.T) {
	s := openStore(t)
	seedSeason(t, s, "s1", model.SeasonActive)
	ctx := context.Background()
	now := time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for i, at := range []time.Time{now.Add(-48 * time.Hour), now.Add(-time.Hour), now} {
			if _, err := tx.InsertEvent(ctx, event(fmt.Sprintf("k%d", i), at)); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		n, err := tx.CountEvents(ctx, "u1", model.EventQuoteSubmitted, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = tx.CountEvents(ctx, "u1", model.EventDealClosed, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		return nil
	}))
}

func TestAddPointsCreatesBronzeMembership(t *testing.T) {
	s := openStore(t)
	seedSeason(t, s, "s1", model.SeasonActive)
	ctx := context.Background()

	var m model.LeagueMembership
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.AddPoints(ctx, "u1", "s1", model.RoleBroker, 15, time.Now()); err != nil {
			return err
		}
		var err error
		m, err = tx.AddPoints(ctx, "u1", "s1", model.RoleBroker, 8, time.Now())
		return err
	}))

	assert.Equal(t, int64(23), m.Points)
	assert.Equal(t, model.Bronze, m.League)
	assert.Equal(t, model.RoleBroker, m.Role)

	got, err := s.Membership(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestStreakRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	zero, err := s.Streak(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, model.UserStreak{UserID: "nobody"}, zero)

	want := model.UserStreak{
		UserID:            "u1",
		CurrentStreakDays: 3,
		BestStreakDays:    5,
		SheltersAvailable: 1,
		LastScoredDate:    model.Date{Year: 2026, Month: time.October, Day: 10},
	}
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.PutStreak(ctx, want)
	}))
	got, err := s.Streak(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		stale, err := tx.StaleStreaks(ctx, model.Date{Year: 2026, Month: time.October, Day: 11})
		require.NoError(t, err)
		assert.Empty(t, stale)

		stale, err = tx.StaleStreaks(ctx, model.Date{Year: 2026, Month: time.October, Day: 12})
		require.NoError(t, err)
		assert.Len(t, stale, 1)
		return nil
	}))
}

func TestStreakCheckConstraint(t *testing.T) {
	s := openStore(t)
	err := s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.PutStreak(ctx, model.UserStreak{UserID: "u1", CurrentStreakDays: 4, BestStreakDays: 2})
	})
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestSingleActiveSeason(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	seedSeason(t, s, "s1", model.SeasonActive)
	seedSeason(t, s, "s2", model.SeasonUpcoming)

	err := s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.SetSeasonStatus(ctx, "s2", model.SeasonActive)
	})
	assert.ErrorIs(t, err, repository.ErrAlreadyActive)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.SetSeasonStatus(ctx, "s1", model.SeasonClosed); err != nil {
			return err
		}
		return tx.SetSeasonStatus(ctx, "s2", model.SeasonActive)
	}))

	active, err := s.ActiveSeasons(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s2", active[0].ID)

	err = s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateSeason(ctx, model.Season{ID: "s1", Status: model.SeasonUpcoming})
	})
	assert.ErrorIs(t, err, repository.ErrSeasonExists)

	_, err = s.Season(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMembershipsAndChanges(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	seedSeason(t, s, "s1", model.SeasonActive)
	seedSeason(t, s, "s2", model.SeasonUpcoming)
	t0 := time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for i, role := range []model.Role{model.RoleBroker, model.RoleBroker, model.RolePilot} {
			m := model.LeagueMembership{
				UserID: fmt.Sprintf("u%d", i), SeasonID: "s1", League: model.Silver,
				Points: int64(10 * (i + 1)), Role: role, CreatedAt: t0,
			}
			if err := tx.PutMembership(ctx, m); err != nil {
				return err
			}
		}
		return tx.PutLeagueChange(ctx, model.LeagueChange{
			UserID: "u1", Role: model.RoleBroker, FromSeasonID: "s1", ToSeasonID: "s2",
			From: model.Silver, To: model.Gold, Points: 20, Position: 1, CohortSize: 2,
		}, t0)
	}))

	broker := model.RoleBroker
	ms, err := s.Memberships(ctx, "s1", repository.MembershipFilter{Role: &broker})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "u1", ms[0].UserID)

	silver := model.Silver
	ms, err = s.Memberships(ctx, "s1", repository.MembershipFilter{League: &silver})
	require.NoError(t, err)
	assert.Len(t, ms, 3)

	changes, err := s.LeagueChanges(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, model.Gold, changes[0].To)
}

func TestEligibility(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetEligibility(ctx, "bad", false, "fraud review"))
	got, err := s.Eligible(ctx, []string{"bad", "good"})
	require.NoError(t, err)
	assert.False(t, got["bad"])
	assert.True(t, got["good"])

	require.NoError(t, s.SetEligibility(ctx, "bad", true, ""))
	got, err = s.Eligible(ctx, []string{"bad"})
	require.NoError(t, err)
	assert.True(t, got["bad"])
}

func TestInvalidLimit(t *testing.T) {
	s := openStore(t)
	_, err := s.UserEvents(context.Background(), "u1", 0)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestConcurrentInsertsSameKey(t *testing.T) {
	s := openStore(t)
	seedSeason(t, s, "s1", model.SeasonActive)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
				e := event("race", time.Now())
				e.ID = fmt.Sprintf("id-%d", i)
				ok, err := tx.InsertEvent(ctx, e)
				if ok {
					mu.Lock()
					inserted++
					mu.Unlock()
				}
				return err
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, inserted)
}
