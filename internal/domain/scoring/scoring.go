// Package scoring resolves base points for an event and turns a streak into
// a multiplier. Everything here is pure and safe for concurrent use once
// constructed.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/merit/internal/domain/model"
)

// Source tells where a resolved base point value came from.
type Source int

// Resolution sources, in precedence order.
const (
	SourceNone Source = iota
	SourceOverride
	SourceRole
	SourceShared
)

func (s Source) String() string {
	switch s {
	case SourceOverride:
		return "override"
	case SourceRole:
		return "role"
	case SourceShared:
		return "shared"
	}
	return "none"
}

// Entry is one row of a point table. Role == model.RoleShared places the
// entry in the role-agnostic fallback table.
type Entry struct {
	Role   model.Role
	Event  model.EventType
	Points int64
}

type key struct {
	role  model.Role
	event model.EventType
}

// Table maps (role, event) to base points with a shared fallback.
// A Table is immutable after NewTable.
type Table struct {
	byRole map[key]int64
	shared map[model.EventType]int64
}

// NewTable builds a table, rejecting unknown roles and negative points.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{
		byRole: make(map[key]int64, len(entries)),
		shared: make(map[model.EventType]int64),
	}
	for _, e := range entries {
		if !e.Role.Valid() {
			return nil, fmt.Errorf("point table: unknown role %q", e.Role)
		}
		if e.Points < 0 {
			return nil, fmt.Errorf("point table: negative points for %s/%s", e.Role, e.Event)
		}
		if e.Role == model.RoleShared {
			t.shared[e.Event] = e.Points
			continue
		}
		t.byRole[key{e.Role, e.Event}] = e.Points
	}
	return t, nil
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Points int64
	Source Source
}

// Awardable reports whether the resolution should produce an award.
// An explicit override is honoured even when it is zero.
func (r Resolution) Awardable() bool {
	return r.Source == SourceOverride || r.Points > 0
}

// Resolve returns base points for (role, event). It is total: every input
// ends in a defined value, SourceNone with zero points when nothing matched.
func (t *Table) Resolve(role model.Role, event model.EventType, override *int64) Resolution {
	if override != nil {
		return Resolution{Points: *override, Source: SourceOverride}
	}
	if t != nil {
		if p, ok := t.byRole[key{role, event}]; ok && p > 0 {
			return Resolution{Points: p, Source: SourceRole}
		}
		if p, ok := t.shared[event]; ok && p > 0 {
			return Resolution{Points: p, Source: SourceShared}
		}
	}
	return Resolution{Source: SourceNone}
}

// Entries returns the table rows in a stable order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.byRole)+len(t.shared))
	for k, p := range t.byRole {
		out = append(out, Entry{Role: k.role, Event: k.event, Points: p})
	}
	for ev, p := range t.shared {
		out = append(out, Entry{Role: model.RoleShared, Event: ev, Points: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].Event < out[j].Event
	})
	return out
}

// Tier is one multiplier threshold.
type Tier struct {
	MinDays int
	Factor  float64
}

// Tiers is a validated, descending list of thresholds.
type Tiers struct {
	tiers []Tier
}

// DefaultTiers: >=14 -> 2.0, >=7 -> 1.5, >=3 -> 1.2, else 1.0.
func DefaultTiers() Tiers {
	t, _ := NewTiers([]Tier{{MinDays: 3, Factor: 1.2}, {MinDays: 7, Factor: 1.5}, {MinDays: 14, Factor: 2.0}})
	return t
}

// NewTiers validates that factors are >= 1 and non-decreasing in MinDays.
func NewTiers(in []Tier) (Tiers, error) {
	tiers := append([]Tier(nil), in...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinDays < tiers[j].MinDays })
	prev := 1.0
	for i, t := range tiers {
		if t.MinDays < 1 {
			return Tiers{}, fmt.Errorf("multiplier tier %d: min days must be positive", i)
		}
		if i > 0 && tiers[i-1].MinDays == t.MinDays {
			return Tiers{}, fmt.Errorf("multiplier tier %d: duplicate threshold %d", i, t.MinDays)
		}
		if t.Factor < prev {
			return Tiers{}, fmt.Errorf("multiplier tier %d: factor %.2f decreases", i, t.Factor)
		}
		prev = t.Factor
	}
	// Highest threshold first so Multiplier can stop at the first match.
	for i, j := 0, len(tiers)-1; i < j; i, j = i+1, j-1 {
		tiers[i], tiers[j] = tiers[j], tiers[i]
	}
	return Tiers{tiers: tiers}, nil
}

// Multiplier maps a streak length to its factor.
func (t Tiers) Multiplier(streakDays int) float64 {
	for _, tier := range t.tiers {
		if streakDays >= tier.MinDays {
			return tier.Factor
		}
	}
	return 1.0
}

// List returns thresholds in ascending order.
func (t Tiers) List() []Tier {
	out := make([]Tier, len(t.tiers))
	for i, tier := range t.tiers {
		out[len(t.tiers)-1-i] = tier
	}
	return out
}

// RoundHalfUp rounds to the nearest integer with .5 going up.
func RoundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}

// Apply returns round_half_up(base * multiplier).
func Apply(base int64, multiplier float64) int64 {
	return RoundHalfUp(float64(base) * multiplier)
}
