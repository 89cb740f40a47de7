package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/merit/internal/adapters/repository"
	"github.com/okian/merit/internal/domain/errs"
	"github.com/okian/merit/internal/domain/league"
	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/types"
	"github.com/okian/merit/pkg/logger"
	"github.com/okian/merit/pkg/metrics"
)

type seasonReader interface {
	ActiveSeasons(ctx context.Context) ([]model.Season, error)
}

func activeSeason(ctx context.Context, r seasonReader) (model.Season, error) {
	active, err := r.ActiveSeasons(ctx)
	if err != nil {
		return model.Season{}, err
	}
	switch len(active) {
	case 0:
		return model.Season{}, errs.ErrNoActiveSeason
	case 1:
		return active[0], nil
	}
	ids := make([]string, len(active))
	for i, a := range active {
		ids[i] = a.ID
	}
	return model.Season{}, fmt.Errorf("%w: %s", errs.ErrMultipleActiveSeasons, strings.Join(ids, ", "))
}

// ActiveSeason returns the single active season. Zero or several active
// seasons are configuration errors.
func (s *Service) ActiveSeason(ctx context.Context) (model.Season, error) {
	return activeSeason(ctx, s.store)
}

// Seasons lists every season.
func (s *Service) Seasons(ctx context.Context) ([]model.Season, error) {
	return s.store.Seasons(ctx)
}

// Season returns one season.
func (s *Service) Season(ctx context.Context, id string) (model.Season, error) {
	return s.store.Season(ctx, id)
}

// CreateSeason registers an upcoming season.
func (s *Service) CreateSeason(ctx context.Context, season model.Season) (model.Season, error) {
	switch {
	case strings.TrimSpace(season.ID) == "":
		return model.Season{}, fmt.Errorf("%w: id is required", ErrInvalidSeason)
	case season.StartDate.IsZero() || season.EndDate.IsZero():
		return model.Season{}, fmt.Errorf("%w: start and end dates are required", ErrInvalidSeason)
	case season.EndDate.Before(season.StartDate):
		return model.Season{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidSeason, season.EndDate, season.StartDate)
	}
	season.Status = model.SeasonUpcoming
	season.CreatedAt = s.now()
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateSeason(ctx, season)
	})
	if err != nil {
		s.report(ctx, "create season", err, logger.String("season", season.ID))
		return model.Season{}, err
	}
	s.logger.Info(ctx, "season created", logger.String("season", season.ID))
	return season, nil
}

// ActivateSeason moves an upcoming season to active. It fails while another
// season is active.
func (s *Service) ActivateSeason(ctx context.Context, id string) (model.Season, error) {
	return s.transition(ctx, id, model.SeasonActive)
}

// CloseSeason moves an active season to closed.
func (s *Service) CloseSeason(ctx context.Context, id string) (model.Season, error) {
	return s.transition(ctx, id, model.SeasonClosed)
}

func (s *Service) transition(ctx context.Context, id string, to model.SeasonStatus) (model.Season, error) {
	var out model.Season
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = setStatus(ctx, tx, id, to)
		return err
	})
	if err != nil {
		s.report(ctx, "season transition", err, logger.String("season", id), logger.String("to", string(to)))
		return model.Season{}, err
	}
	metrics.RecordSeasonTransition(string(to))
	s.logger.Info(ctx, "season transitioned", logger.String("season", id), logger.String("status", string(to)))
	return out, nil
}

func setStatus(ctx context.Context, tx repository.Tx, id string, to model.SeasonStatus) (model.Season, error) {
	season, err := tx.Season(ctx, id)
	if err != nil {
		return model.Season{}, err
	}
	if !season.Status.CanTransition(to) {
		return model.Season{}, fmt.Errorf("%w: %s is %s, cannot become %s", ErrSeasonTransition, id, season.Status, to)
	}
	if err := tx.SetSeasonStatus(ctx, id, to); err != nil {
		return model.Season{}, err
	}
	season.Status = to
	return season, nil
}

// Rollover closes the active season, assigns leagues from it into next and
// activates next, all in one transaction. The source season is read under
// the write lock so no award can land in it between its final read and its
// close; awards arriving meanwhile wait up to the store's busy timeout. Once next is active, calling
// Rollover again reports the earlier assignment without changing anything.
func (s *Service) Rollover(ctx context.Context, nextID string) (types.AssignmentReport, error) {
	var report types.AssignmentReport
	started := time.Now()
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		next, err := tx.Season(ctx, nextID)
		if err != nil {
			return err
		}
		if next.Status == model.SeasonActive {
			report, err = s.previousAssignment(ctx, next)
			return err
		}

		from, err := activeSeason(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := setStatus(ctx, tx, from.ID, model.SeasonClosed); err != nil {
			return err
		}
		from.Status = model.SeasonClosed
		if report, err = s.assign(ctx, tx, from, next); err != nil {
			return err
		}
		_, err = setStatus(ctx, tx, next.ID, model.SeasonActive)
		return err
	})
	if err != nil {
		s.report(ctx, "rollover", err, logger.String("next", nextID))
		return types.AssignmentReport{}, err
	}
	metrics.RecordSeasonTransition(string(model.SeasonClosed))
	metrics.RecordSeasonTransition(string(model.SeasonActive))
	metrics.RecordLeagueRunDuration(float64(time.Since(started).Milliseconds()))
	s.logger.Info(ctx, "season rolled over",
		logger.String("from", report.FromSeasonID),
		logger.String("to", report.ToSeasonID),
		logger.Int("members", report.Members),
		logger.Int("promoted", report.Promoted),
		logger.Int("demoted", report.Demoted),
	)
	return report, nil
}

// previousAssignment rebuilds the report of the run that activated next.
func (s *Service) previousAssignment(ctx context.Context, next model.Season) (types.AssignmentReport, error) {
	seasons, err := s.store.Seasons(ctx)
	if err != nil {
		return types.AssignmentReport{}, err
	}
	closed := make([]model.Season, 0, len(seasons))
	for _, se := range seasons {
		if se.Status == model.SeasonClosed && se.ID != next.ID {
			closed = append(closed, se)
		}
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].EndDate.Before(closed[j].EndDate) })
	for i := len(closed) - 1; i >= 0; i-- {
		changes, err := s.store.LeagueChanges(ctx, closed[i].ID)
		if err != nil {
			return types.AssignmentReport{}, err
		}
		if len(changes) > 0 && changes[0].ToSeasonID == next.ID {
			return newReport(closed[i].ID, next.ID, changes), nil
		}
	}
	return types.AssignmentReport{ToSeasonID: next.ID}, nil
}

// AssignLeagues runs league assignment from one season into another without
// changing season status. Ranks are computed from a committed snapshot of
// the source season; only the writes hold the store's write lock.
// Re-running it converges on the same rows.
func (s *Service) AssignLeagues(ctx context.Context, fromID, toID string) (types.AssignmentReport, error) {
	if fromID == toID {
		return types.AssignmentReport{}, fmt.Errorf("%w: from and to must differ", ErrInvalidSeason)
	}
	started := time.Now()
	report, err := s.assignFromSnapshot(ctx, fromID, toID)
	if err != nil {
		s.report(ctx, "assign leagues", err, logger.String("from", fromID), logger.String("to", toID))
		return types.AssignmentReport{}, err
	}
	metrics.RecordLeagueRunDuration(float64(time.Since(started).Milliseconds()))
	s.logger.Info(ctx, "leagues assigned",
		logger.String("from", fromID),
		logger.String("to", toID),
		logger.Int("members", report.Members),
		logger.Int("promoted", report.Promoted),
		logger.Int("demoted", report.Demoted),
	)
	return report, nil
}

func (s *Service) assignFromSnapshot(ctx context.Context, fromID, toID string) (types.AssignmentReport, error) {
	from, err := s.store.Season(ctx, fromID)
	if err != nil {
		return types.AssignmentReport{}, err
	}
	if _, err := s.store.Season(ctx, toID); err != nil {
		return types.AssignmentReport{}, err
	}
	members, err := s.store.Memberships(ctx, from.ID, repository.MembershipFilter{})
	if err != nil {
		return types.AssignmentReport{}, err
	}
	changes, err := s.plan(members, toID)
	if err != nil {
		return types.AssignmentReport{}, err
	}
	var report types.AssignmentReport
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		to, err := tx.Season(ctx, toID)
		if err != nil {
			return err
		}
		report, err = s.apply(ctx, tx, from, to, changes)
		return err
	})
	return report, err
}

// assign reads the source season inside tx, then plans and applies.
func (s *Service) assign(ctx context.Context, tx repository.Tx, from, to model.Season) (types.AssignmentReport, error) {
	members, err := tx.Memberships(ctx, from.ID)
	if err != nil {
		return types.AssignmentReport{}, err
	}
	changes, err := s.plan(members, to.ID)
	if err != nil {
		return types.AssignmentReport{}, err
	}
	return s.apply(ctx, tx, from, to, changes)
}

func (s *Service) plan(members []model.LeagueMembership, toID string) ([]model.LeagueChange, error) {
	changes, err := league.Assign(members, toID, s.leagueCfg)
	if err != nil {
		return nil, errs.Invariant("league_membership", "%v", err)
	}
	return changes, nil
}

// apply writes the next season's memberships and the audit rows. The
// closing season's flags decide whether tiers persist and whether points
// carry over. Rows that already exist in the next season keep their points.
func (s *Service) apply(ctx context.Context, tx repository.Tx, from, to model.Season, changes []model.LeagueChange) (types.AssignmentReport, error) {
	existing, err := tx.Memberships(ctx, to.ID)
	if err != nil {
		return types.AssignmentReport{}, err
	}
	have := make(map[string]model.LeagueMembership, len(existing))
	for _, m := range existing {
		have[m.UserID] = m
	}

	now := s.now()
	for _, c := range changes {
		if err := tx.PutLeagueChange(ctx, c, now); err != nil {
			return types.AssignmentReport{}, err
		}
		next := model.LeagueMembership{
			UserID:    c.UserID,
			SeasonID:  to.ID,
			League:    model.Bronze,
			Role:      c.Role,
			CreatedAt: now,
		}
		if from.MaintainLeagues {
			next.League = c.To
		}
		if !from.ResetPoints {
			next.Points = c.Points
		}
		if cur, ok := have[c.UserID]; ok {
			next.Points = cur.Points
			next.CreatedAt = cur.CreatedAt
		}
		if err := tx.PutMembership(ctx, next); err != nil {
			return types.AssignmentReport{}, err
		}
		switch {
		case c.To > c.From:
			metrics.RecordLeagueMove(string(c.Role), "promoted")
		case c.To < c.From:
			metrics.RecordLeagueMove(string(c.Role), "demoted")
		}
	}
	return newReport(from.ID, to.ID, changes), nil
}

func newReport(fromID, toID string, changes []model.LeagueChange) types.AssignmentReport {
	sum := league.Summarize(changes)
	return types.AssignmentReport{
		FromSeasonID: fromID,
		ToSeasonID:   toID,
		Members:      len(changes),
		Promoted:     sum.Promoted,
		Demoted:      sum.Demoted,
		Unchanged:    sum.Unchanged,
	}
}
