package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/okian/merit/internal/domain/caps"
	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/scoring"
)

// Rules is the on-disk rules catalog.
type Rules struct {
	Points      []PointRule      `toml:"points"`
	Caps        []CapRule        `toml:"caps"`
	Multipliers []MultiplierRule `toml:"multipliers"`
}

// PointRule assigns base points to (role, event). Role "shared" is the
// role-agnostic fallback.
type PointRule struct {
	Role   string `toml:"role"`
	Event  string `toml:"event"`
	Points int64  `toml:"points"`
}

// CapRule limits how many events of a type a user may be awarded.
// Window is "day" (calendar day in the configured timezone) or "rolling"
// (the trailing Days*24h).
type CapRule struct {
	Role   string `toml:"role"`
	Event  string `toml:"event"`
	Limit  int    `toml:"limit"`
	Window string `toml:"window"`
	Days   int    `toml:"days,omitempty"`
}

// MultiplierRule maps a minimum streak length to a factor.
type MultiplierRule struct {
	MinDays int     `toml:"min_days"`
	Factor  float64 `toml:"factor"`
}

// RuleSet is the compiled, immutable form of Rules.
type RuleSet struct {
	Points *scoring.Table
	Caps   *caps.Policy
	Tiers  scoring.Tiers
}

// DefaultRules returns the built-in catalog.
func DefaultRules() Rules {
	p := func(role model.Role, ev model.EventType, pts int64) PointRule {
		return PointRule{Role: string(role), Event: string(ev), Points: pts}
	}
	return Rules{
		Points: []PointRule{
			p(model.RoleShared, model.EventProfileCompleted, 20),
			p(model.RoleShared, model.EventDocumentVerified, 15),
			p(model.RoleShared, model.EventReviewReceived, 10),
			p(model.RoleShared, model.EventMissionCompleted, 10),
			p(model.RoleShared, model.EventBriefingCompleted, 5),
			p(model.RoleShared, model.EventFastResponse, 5),

			p(model.RoleBroker, model.EventRFQPosted, 5),
			p(model.RoleBroker, model.EventRFQQualityPosted, 10),
			p(model.RoleBroker, model.EventQuoteAccepted, 10),
			p(model.RoleBroker, model.EventDealClosed, 30),
			p(model.RoleBroker, model.EventDealClosedOnTime, 40),

			p(model.RoleOperator, model.EventQuoteSubmitted, 5),
			p(model.RoleOperator, model.EventQuoteSubmittedFast, 15),
			p(model.RoleOperator, model.EventQuoteAccepted, 20),
			p(model.RoleOperator, model.EventDealClosed, 30),
			p(model.RoleOperator, model.EventDealClosedOnTime, 40),
			p(model.RoleOperator, model.EventFastResponse, 8),

			p(model.RolePilot, model.EventDealClosedOnTime, 20),
			p(model.RolePilot, model.EventDocumentVerified, 20),
			p(model.RolePilot, model.EventBriefingCompleted, 10),

			p(model.RoleCrew, model.EventDealClosedOnTime, 15),
			p(model.RoleCrew, model.EventBriefingCompleted, 10),
		},
		Caps: []CapRule{
			{Role: string(model.RoleShared), Event: string(model.EventRFQPosted), Limit: 10, Window: string(caps.WindowDay)},
			{Role: string(model.RoleOperator), Event: string(model.EventQuoteSubmitted), Limit: 20, Window: string(caps.WindowDay)},
			{Role: string(model.RoleOperator), Event: string(model.EventQuoteSubmittedFast), Limit: 10, Window: string(caps.WindowDay)},
			{Role: string(model.RoleShared), Event: string(model.EventFastResponse), Limit: 10, Window: string(caps.WindowDay)},
			{Role: string(model.RoleShared), Event: string(model.EventReviewReceived), Limit: 5, Window: string(caps.WindowRolling), Days: 7},
		},
		Multipliers: []MultiplierRule{
			{MinDays: 3, Factor: 1.2},
			{MinDays: 7, Factor: 1.5},
			{MinDays: 14, Factor: 2.0},
		},
	}
}

// DecodeRules parses a TOML catalog. Sections that are absent fall back to
// the defaults; an explicitly empty section stays empty.
func DecodeRules(r io.Reader) (Rules, error) {
	var raw Rules
	md, err := toml.NewDecoder(r).Decode(&raw)
	if err != nil {
		return Rules{}, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Rules{}, fmt.Errorf("%w: unknown keys %v", ErrInvalidRules, undecoded)
	}
	def := DefaultRules()
	if !md.IsDefined("points") {
		raw.Points = def.Points
	}
	if !md.IsDefined("caps") {
		raw.Caps = def.Caps
	}
	if !md.IsDefined("multipliers") {
		raw.Multipliers = def.Multipliers
	}
	return raw, nil
}

// LoadRules reads path, or returns DefaultRules when path is empty.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("%w: read %s: %v", ErrInvalidRules, path, err)
	}
	return DecodeRules(bytes.NewReader(b))
}

// EncodeRules writes r as TOML.
func EncodeRules(w io.Writer, r Rules) error {
	return toml.NewEncoder(w).Encode(r)
}

// Compile validates the catalog and builds the immutable rule set.
func (r Rules) Compile() (*RuleSet, error) {
	entries := make([]scoring.Entry, 0, len(r.Points))
	for _, p := range r.Points {
		role, err := model.ParseRole(p.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
		}
		ev := model.EventType(p.Event)
		if !ev.Known() {
			return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidRules, p.Event)
		}
		entries = append(entries, scoring.Entry{Role: role, Event: ev, Points: p.Points})
	}
	table, err := scoring.NewTable(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	capList := make([]caps.Cap, 0, len(r.Caps))
	for _, c := range r.Caps {
		role, err := model.ParseRole(c.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
		}
		capList = append(capList, caps.Cap{
			Role:   role,
			Event:  model.EventType(c.Event),
			Limit:  c.Limit,
			Window: caps.Window{Kind: caps.WindowKind(c.Window), Days: c.Days},
		})
	}
	policy, err := caps.NewPolicy(capList)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	tierList := make([]scoring.Tier, 0, len(r.Multipliers))
	for _, m := range r.Multipliers {
		tierList = append(tierList, scoring.Tier{MinDays: m.MinDays, Factor: m.Factor})
	}
	tiers, err := scoring.NewTiers(tierList)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	return &RuleSet{Points: table, Caps: policy, Tiers: tiers}, nil
}
