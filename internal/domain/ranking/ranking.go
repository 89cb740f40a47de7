// Package ranking orders a season leaderboard.
//
// The base order is points desc, then earlier membership, then user id.
// Ineligible users are removed before anything else. A small positional
// bias then lets higher-tier users move up by at most
// floor(cap * tier/maxTier * n) places. Every entry carries the numbers
// needed to recompute its adjustment.
package ranking

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/okian/merit/internal/domain/model"
)

// DefaultBiasCap is the maximum share of the cohort a user may be lifted.
const DefaultBiasCap = 0.05

// Entry is one leaderboard candidate.
type Entry struct {
	UserID   string
	Role     model.Role
	League   model.League
	Points   int64
	JoinedAt time.Time
}

// Ranked is an entry after ordering.
type Ranked struct {
	Entry
	BasePosition  int     // 1-based position before bias
	BiasPct       float64 // fraction of n granted by tier
	BiasPositions int     // places the user may move up
	FinalRank     int     // 1-based position after bias
}

// Eligibility reports which users may appear on a leaderboard.
type Eligibility interface {
	Eligible(ctx context.Context, userIDs []string) (map[string]bool, error)
}

// AllEligible admits everyone.
type AllEligible struct{}

// Eligible implements Eligibility.
func (AllEligible) Eligible(_ context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// Config controls bias.
type Config struct {
	BiasCap float64
}

// DefaultConfig uses a 5% cap.
func DefaultConfig() Config { return Config{BiasCap: DefaultBiasCap} }

// BiasPct returns the tier-proportional share of the cap: zero for bronze,
// the full cap for diamond.
func (c Config) BiasPct(l model.League) float64 {
	cp := math.Min(math.Max(c.BiasCap, 0), DefaultBiasCap)
	if !l.Valid() {
		return 0
	}
	return cp * float64(l-model.LowestLeague) / float64(model.HighestLeague-model.LowestLeague)
}

// Rank filters by eligible and returns the biased order. A user missing
// from eligible is treated as ineligible.
func Rank(entries []Entry, eligible map[string]bool, cfg Config) []Ranked {
	pool := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if eligible[e.UserID] {
			pool = append(pool, e)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool { return baseLess(pool[i], pool[j]) })

	n := len(pool)
	out := make([]Ranked, n)
	for i, e := range pool {
		pct := cfg.BiasPct(e.League)
		out[i] = Ranked{
			Entry:         e,
			BasePosition:  i + 1,
			BiasPct:       pct,
			BiasPositions: int(math.Floor(pct*float64(n) + 1e-9)),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki := out[i].BasePosition - out[i].BiasPositions
		kj := out[j].BasePosition - out[j].BiasPositions
		if ki != kj {
			return ki < kj
		}
		return out[i].BasePosition < out[j].BasePosition
	})
	for i := range out {
		out[i].FinalRank = i + 1
	}
	return out
}

func baseLess(a, b Entry) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.Before(b.JoinedAt)
	}
	return a.UserID < b.UserID
}

// MaxTopShift bounds how many users can enter the top k because of bias.
func MaxTopShift(n int, cfg Config) int {
	return int(math.Floor(cfg.BiasPct(model.HighestLeague)*float64(n) + 1e-9))
}
