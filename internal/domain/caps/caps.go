// Package caps enforces anti-farming limits on how often a user may earn
// points for the same event type.
package caps

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/merit/internal/domain/model"
)

// WindowKind selects how a cap window is measured.
type WindowKind string

// Window kinds. A cap declares exactly one.
const (
	// WindowDay counts events since local midnight of the current calendar
	// day in the configured timezone.
	WindowDay WindowKind = "day"
	// WindowRolling counts events in the trailing Days*24h.
	WindowRolling WindowKind = "rolling"
)

// Window describes the counting interval of a cap.
type Window struct {
	Kind WindowKind
	Days int
}

// Since returns the inclusive lower bound of the window at now.
func (w Window) Since(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	switch w.Kind {
	case WindowRolling:
		return now.Add(-time.Duration(w.Days) * 24 * time.Hour)
	default:
		return model.DateOf(now, loc).Time(loc)
	}
}

func (w Window) String() string {
	if w.Kind == WindowRolling {
		return fmt.Sprintf("rolling:%dd", w.Days)
	}
	return string(WindowDay)
}

// Cap limits (role, event) to Limit events per Window. Role == shared
// applies to every role that has no cap of its own.
type Cap struct {
	Role   model.Role
	Event  model.EventType
	Limit  int
	Window Window
}

type key struct {
	role  model.Role
	event model.EventType
}

// Policy is an immutable set of caps.
type Policy struct {
	caps map[key]Cap
}

// NewPolicy validates and indexes caps.
func NewPolicy(in []Cap) (*Policy, error) {
	p := &Policy{caps: make(map[key]Cap, len(in))}
	for _, c := range in {
		if !c.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidCap, c.Role)
		}
		if c.Event == "" {
			return nil, fmt.Errorf("%w: missing event type", ErrInvalidCap)
		}
		if c.Limit < 1 {
			return nil, fmt.Errorf("%w: %s/%s limit must be positive", ErrInvalidCap, c.Role, c.Event)
		}
		switch c.Window.Kind {
		case WindowDay:
			c.Window.Days = 1
		case WindowRolling:
			if c.Window.Days < 1 {
				return nil, fmt.Errorf("%w: %s/%s rolling window needs days", ErrInvalidCap, c.Role, c.Event)
			}
		default:
			return nil, fmt.Errorf("%w: %s/%s window %q", ErrInvalidCap, c.Role, c.Event, c.Window.Kind)
		}
		k := key{c.Role, c.Event}
		if _, dup := p.caps[k]; dup {
			return nil, fmt.Errorf("%w: duplicate cap for %s/%s", ErrInvalidCap, c.Role, c.Event)
		}
		p.caps[k] = c
	}
	return p, nil
}

// Lookup returns the cap for (role, event), falling back to the shared row.
func (p *Policy) Lookup(role model.Role, event model.EventType) (Cap, bool) {
	if p == nil {
		return Cap{}, false
	}
	if c, ok := p.caps[key{role, event}]; ok {
		return c, true
	}
	c, ok := p.caps[key{model.RoleShared, event}]
	return c, ok
}

// List returns all caps.
func (p *Policy) List() []Cap {
	if p == nil {
		return nil
	}
	out := make([]Cap, 0, len(p.caps))
	for _, c := range p.caps {
		out = append(out, c)
	}
	return out
}

// Counter counts a user's ledger events of one type created at or after since.
type Counter interface {
	CountEvents(ctx context.Context, userID string, event model.EventType, since time.Time) (int, error)
}

// Decision is the result of a cap check.
type Decision struct {
	Allowed bool
	Capped  bool // a cap applies to this (role, event)
	Count   int
	Limit   int
	Since   time.Time
}

// Enforcer checks awards against a policy.
type Enforcer struct {
	policy *Policy
	loc    *time.Location
}

// NewEnforcer returns an enforcer evaluating day windows in loc.
func NewEnforcer(policy *Policy, loc *time.Location) *Enforcer {
	if loc == nil {
		loc = time.UTC
	}
	return &Enforcer{policy: policy, loc: loc}
}

// Check counts matching events through c and allows the award iff
// count < limit. Uncapped pairs are always allowed without a count.
func (e *Enforcer) Check(ctx context.Context, c Counter, in Subject, now time.Time) (Decision, error) {
	cp, ok := e.policy.Lookup(in.Role, in.Event)
	if !ok {
		return Decision{Allowed: true}, nil
	}
	since := cp.Window.Since(now, e.loc)
	n, err := c.CountEvents(ctx, in.UserID, in.Event, since)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed: n < cp.Limit,
		Capped:  true,
		Count:   n,
		Limit:   cp.Limit,
		Since:   since,
	}, nil
}

// Subject identifies whose award is being checked.
type Subject struct {
	UserID string
	Role   model.Role
	Event  model.EventType
}
