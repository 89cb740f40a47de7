// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the marketplace role a user earns merit under.
type Role string

// Closed set of roles. RoleShared is the role-agnostic fallback.
const (
	RoleBroker   Role = "broker"
	RoleOperator Role = "operator"
	RolePilot    Role = "pilot"
	RoleCrew     Role = "crew"
	RoleShared   Role = "shared"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleBroker, RoleOperator, RolePilot, RoleCrew, RoleShared}

// Valid reports whether r is part of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleBroker, RoleOperator, RolePilot, RoleCrew, RoleShared:
		return true
	}
	return false
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// League is an ordered performance tier.
type League int

// Leagues in ascending order.
const (
	Bronze League = iota
	Silver
	Gold
	Platinum
	Diamond
)

// LowestLeague and HighestLeague bound the enum.
const (
	LowestLeague  = Bronze
	HighestLeague = Diamond
)

var leagueNames = [...]string{"bronze", "silver", "gold", "platinum", "diamond"}

// Valid reports whether l is inside the defined enum.
func (l League) Valid() bool {
	return l >= LowestLeague && l <= HighestLeague
}

func (l League) String() string {
	if !l.Valid() {
		return fmt.Sprintf("league(%d)", int(l))
	}
	return leagueNames[l]
}

// Promote returns the next tier, capped at HighestLeague.
func (l League) Promote() League {
	if l >= HighestLeague {
		return HighestLeague
	}
	return l + 1
}

// Demote returns the previous tier, floored at LowestLeague.
func (l League) Demote() League {
	if l <= LowestLeague {
		return LowestLeague
	}
	return l - 1
}

// ParseLeague parses a league name case-insensitively.
func ParseLeague(s string) (League, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range leagueNames {
		if n == name {
			return League(i), nil
		}
	}
	return 0, fmt.Errorf("unknown league %q", s)
}

// MarshalText encodes the league by name.
func (l League) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid league %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText decodes a league name.
func (l *League) UnmarshalText(b []byte) error {
	v, err := ParseLeague(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// EventType tags a merit-earning business occurrence.
type EventType string

// Event catalog.
const (
	EventQuoteSubmitted     EventType = "quote_submitted"
	EventQuoteSubmittedFast EventType = "quote_submitted_fast"
	EventQuoteAccepted      EventType = "quote_accepted"
	EventDealClosed         EventType = "deal_closed"
	EventDealClosedOnTime   EventType = "deal_closed_on_time"
	EventRFQPosted          EventType = "rfq_posted"
	EventRFQQualityPosted   EventType = "rfq_quality_posted"
	EventFastResponse       EventType = "fast_response"
	EventReviewReceived     EventType = "review_received"
	EventProfileCompleted   EventType = "profile_completed"
	EventDocumentVerified   EventType = "document_verified"
	EventMissionCompleted   EventType = "mission_completed"
	EventBriefingCompleted  EventType = "briefing_completed"
)

// EventTypes lists the closed catalog.
var EventTypes = []EventType{
	EventQuoteSubmitted, EventQuoteSubmittedFast, EventQuoteAccepted,
	EventDealClosed, EventDealClosedOnTime, EventRFQPosted, EventRFQQualityPosted,
	EventFastResponse, EventReviewReceived, EventProfileCompleted,
	EventDocumentVerified, EventMissionCompleted, EventBriefingCompleted,
}

// Known reports whether t belongs to the event catalog.
func (t EventType) Known() bool {
	for _, e := range EventTypes {
		if e == t {
			return true
		}
	}
	return false
}

// MeritEvent is an immutable ledger row.
type MeritEvent struct {
	ID            string
	UserID        string
	Role          Role
	EventType     EventType
	BasePoints    int64
	Multiplier    float64
	AwardedPoints int64
	SeasonID      string
	SourceKey     string
	Metadata      map[string]string
	CreatedAt     time.Time
}

// UserStreak is the per-user continuity record.
type UserStreak struct {
	UserID            string
	CurrentStreakDays int
	BestStreakDays    int
	SheltersAvailable int
	LastScoredDate    Date
}

// Validate checks the streak invariants.
func (s UserStreak) Validate() error {
	switch {
	case s.CurrentStreakDays < 0:
		return fmt.Errorf("current streak %d is negative", s.CurrentStreakDays)
	case s.BestStreakDays < s.CurrentStreakDays:
		return fmt.Errorf("best streak %d below current %d", s.BestStreakDays, s.CurrentStreakDays)
	case s.SheltersAvailable < 0:
		return fmt.Errorf("shelters %d is negative", s.SheltersAvailable)
	}
	return nil
}

// SeasonStatus is the season lifecycle state.
type SeasonStatus string

// Season statuses. Transitions only move forward.
const (
	SeasonUpcoming SeasonStatus = "upcoming"
	SeasonActive   SeasonStatus = "active"
	SeasonClosed   SeasonStatus = "closed"
)

// CanTransition reports whether from -> to is a legal forward step.
func (s SeasonStatus) CanTransition(to SeasonStatus) bool {
	return (s == SeasonUpcoming && to == SeasonActive) || (s == SeasonActive && to == SeasonClosed)
}

// Season is a bounded scoring period.
type Season struct {
	ID              string
	Status          SeasonStatus
	StartDate       Date
	EndDate         Date
	ResetPoints     bool
	MaintainLeagues bool
	CreatedAt       time.Time
}

// LeagueMembership is a user's season-scoped league row.
type LeagueMembership struct {
	UserID    string
	SeasonID  string
	League    League
	Points    int64
	Role      Role
	CreatedAt time.Time
}

// LeagueChange records one assignment decision at a season boundary.
type LeagueChange struct {
	UserID       string
	Role         Role
	FromSeasonID string
	ToSeasonID   string
	From         League
	To           League
	Points       int64
	Position     int // 1-based position within the role cohort
	CohortSize   int
}

// Moved reports whether the assignment changed the tier.
func (c LeagueChange) Moved() bool { return c.From != c.To }

// SkipReason names why an award was not applied.
type SkipReason string

// Skip reasons. These are outcomes, not failures.
const (
	SkipDuplicate SkipReason = "duplicate"
	SkipCap       SkipReason = "cap"
	SkipNoPoints  SkipReason = "no_points"
)

// AwardInput is the five-tuple plus idempotency key accepted by Award.
type AwardInput struct {
	UserID     string
	Role       Role
	EventType  EventType
	BasePoints *int64 // optional override
	Metadata   map[string]string
	SourceKey  string
}

// Validate checks caller-supplied fields.
func (in AwardInput) Validate() error {
	switch {
	case strings.TrimSpace(in.UserID) == "":
		return fmt.Errorf("missing user id")
	case !in.Role.Valid():
		return fmt.Errorf("invalid role %q", in.Role)
	case strings.TrimSpace(string(in.EventType)) == "":
		return fmt.Errorf("missing event type")
	case strings.TrimSpace(in.SourceKey) == "":
		return fmt.Errorf("missing source key")
	case in.BasePoints != nil && *in.BasePoints < 0:
		return fmt.Errorf("negative base points override")
	}
	return nil
}

// AwardResult is the outcome of Award: applied or skipped.
type AwardResult struct {
	Applied       bool
	Skipped       SkipReason
	EventID       string
	AwardedPoints int64
	Multiplier    float64
	StreakDays    int
	SeasonID      string
}

// Skip builds a skipped result.
func Skip(reason SkipReason) AwardResult {
	return AwardResult{Skipped: reason}
}
