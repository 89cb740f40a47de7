// Package league computes promotions and demotions at a season boundary.
//
// Assignment is a pure function of a membership snapshot: it never touches
// the input rows, so callers can persist the result for the next season and
// re-run it safely.
package league

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/merit/internal/domain/model"
)

// Defaults.
const (
	DefaultMinSize   = 10
	DefaultTopPct    = 0.20
	DefaultBottomPct = 0.20
)

// Config controls cohort movement.
type Config struct {
	MinSize   int
	TopPct    float64
	BottomPct float64
}

// DefaultConfig returns min size 10 with 20% up and 20% down.
func DefaultConfig() Config {
	return Config{MinSize: DefaultMinSize, TopPct: DefaultTopPct, BottomPct: DefaultBottomPct}
}

// Validate rejects fractions outside [0,1] or overlapping bands.
func (c Config) Validate() error {
	switch {
	case c.MinSize < 1:
		return fmt.Errorf("%w: min size %d", ErrInvalidConfig, c.MinSize)
	case c.TopPct < 0 || c.TopPct > 1:
		return fmt.Errorf("%w: top pct %.2f", ErrInvalidConfig, c.TopPct)
	case c.BottomPct < 0 || c.BottomPct > 1:
		return fmt.Errorf("%w: bottom pct %.2f", ErrInvalidConfig, c.BottomPct)
	case c.TopPct+c.BottomPct > 1:
		return fmt.Errorf("%w: bands overlap", ErrInvalidConfig)
	}
	return nil
}

// band returns floor(n * pct) with a small epsilon so that 20 * 0.2 is 4.
func band(n int, pct float64) int {
	return int(math.Floor(float64(n)*pct + 1e-9))
}

// Assign groups members by role, orders each cohort by points desc (earlier
// membership and then user id break ties) and returns one change per member.
// Cohorts smaller than MinSize keep their tiers. Each member moves at most
// one tier.
func Assign(members []model.LeagueMembership, toSeasonID string, cfg Config) ([]model.LeagueChange, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cohorts := make(map[model.Role][]model.LeagueMembership)
	for _, m := range members {
		if !m.League.Valid() {
			return nil, fmt.Errorf("%w: user %s league %d", ErrLeagueOutOfRange, m.UserID, int(m.League))
		}
		cohorts[m.Role] = append(cohorts[m.Role], m)
	}

	roles := make([]model.Role, 0, len(cohorts))
	for r := range cohorts {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	out := make([]model.LeagueChange, 0, len(members))
	for _, role := range roles {
		cohort := cohorts[role]
		Order(cohort)

		n := len(cohort)
		up, down := 0, 0
		if n >= cfg.MinSize {
			up, down = band(n, cfg.TopPct), band(n, cfg.BottomPct)
		}
		for i, m := range cohort {
			to := m.League
			switch {
			case i < up:
				to = m.League.Promote()
			case i >= n-down:
				to = m.League.Demote()
			}
			out = append(out, model.LeagueChange{
				UserID:       m.UserID,
				Role:         role,
				FromSeasonID: m.SeasonID,
				ToSeasonID:   toSeasonID,
				From:         m.League,
				To:           to,
				Points:       m.Points,
				Position:     i + 1,
				CohortSize:   n,
			})
		}
	}
	return out, nil
}

// Order sorts memberships in place by points desc, created asc, user id asc.
func Order(ms []model.LeagueMembership) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.UserID < b.UserID
	})
}

// Summary counts movement in a set of changes.
type Summary struct {
	Promoted  int
	Demoted   int
	Unchanged int
}

// Summarize tallies changes.
func Summarize(changes []model.LeagueChange) Summary {
	var s Summary
	for _, c := range changes {
		switch {
		case c.To > c.From:
			s.Promoted++
		case c.To < c.From:
			s.Demoted++
		default:
			s.Unchanged++
		}
	}
	return s
}
