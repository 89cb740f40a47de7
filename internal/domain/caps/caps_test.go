package caps_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/merit/internal/domain/caps"
	"github.com/okian/merit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeCounter counts timestamps at or after since.
type fakeCounter struct {
	events []time.Time
	err    error
	calls  int
}

func (f *fakeCounter) CountEvents(_ context.Context, _ string, _ model.EventType, since time.Time) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for _, at := range f.events {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

func TestWindowSince(t *testing.T) {
	Convey("Given a clock in New York", t, func() {
		loc, err := time.LoadLocation("America/New_York")
		So(err, ShouldBeNil)
		now := time.Date(2026, time.March, 10, 1, 30, 0, 0, loc)

		Convey("A day window starts at local midnight", func() {
			since := caps.Window{Kind: caps.WindowDay}.Since(now, loc)
			So(since.Equal(time.Date(2026, time.March, 10, 0, 0, 0, 0, loc)), ShouldBeTrue)
		})

		Convey("A rolling window trails by whole days", func() {
			since := caps.Window{Kind: caps.WindowRolling, Days: 7}.Since(now, loc)
			So(now.Sub(since), ShouldEqual, 7*24*time.Hour)
		})
	})
}

func TestPolicy(t *testing.T) {
	Convey("Given a policy with a role cap and a shared cap", t, func() {
		p, err := caps.NewPolicy([]caps.Cap{
			{Role: model.RoleBroker, Event: model.EventRFQPosted, Limit: 5, Window: caps.Window{Kind: caps.WindowDay}},
			{Role: model.RoleShared, Event: model.EventRFQPosted, Limit: 2, Window: caps.Window{Kind: caps.WindowRolling, Days: 7}},
		})
		So(err, ShouldBeNil)

		Convey("The role row wins", func() {
			c, ok := p.Lookup(model.RoleBroker, model.EventRFQPosted)
			So(ok, ShouldBeTrue)
			So(c.Limit, ShouldEqual, 5)
		})

		Convey("Other roles fall back to shared", func() {
			c, ok := p.Lookup(model.RoleCrew, model.EventRFQPosted)
			So(ok, ShouldBeTrue)
			So(c.Limit, ShouldEqual, 2)
			So(c.Window.String(), ShouldEqual, "rolling:7d")
		})

		Convey("Uncapped events have no cap", func() {
			_, ok := p.Lookup(model.RoleCrew, model.EventDealClosed)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given malformed caps", t, func() {
		bad := [][]caps.Cap{
			{{Role: "admin", Event: model.EventRFQPosted, Limit: 1, Window: caps.Window{Kind: caps.WindowDay}}},
			{{Role: model.RoleCrew, Event: model.EventRFQPosted, Limit: 0, Window: caps.Window{Kind: caps.WindowDay}}},
			{{Role: model.RoleCrew, Event: model.EventRFQPosted, Limit: 1, Window: caps.Window{Kind: caps.WindowRolling}}},
			{{Role: model.RoleCrew, Event: model.EventRFQPosted, Limit: 1, Window: caps.Window{Kind: "weekly"}}},
			{
				{Role: model.RoleCrew, Event: model.EventRFQPosted, Limit: 1, Window: caps.Window{Kind: caps.WindowDay}},
				{Role: model.RoleCrew, Event: model.EventRFQPosted, Limit: 2, Window: caps.Window{Kind: caps.WindowDay}},
			},
		}
		for _, in := range bad {
			_, err := caps.NewPolicy(in)
			So(errors.Is(err, caps.ErrInvalidCap), ShouldBeTrue)
		}
	})
}

func TestEnforcer(t *testing.T) {
	Convey("Given a cap of 3 per day", t, func() {
		p, err := caps.NewPolicy([]caps.Cap{
			{Role: model.RoleOperator, Event: model.EventQuoteSubmitted, Limit: 3, Window: caps.Window{Kind: caps.WindowDay}},
		})
		So(err, ShouldBeNil)
		enf := caps.NewEnforcer(p, time.UTC)
		now := time.Date(2026, time.October, 5, 15, 0, 0, 0, time.UTC)
		subject := caps.Subject{UserID: "u1", Role: model.RoleOperator, Event: model.EventQuoteSubmitted}
		counter := &fakeCounter{}

		Convey("The first three are allowed and the fourth is not", func() {
			for i := 0; i < 3; i++ {
				d, err := enf.Check(context.Background(), counter, subject, now)
				So(err, ShouldBeNil)
				So(d.Allowed, ShouldBeTrue)
				counter.events = append(counter.events, now)
			}
			d, err := enf.Check(context.Background(), counter, subject, now)
			So(err, ShouldBeNil)
			So(d.Allowed, ShouldBeFalse)
			So(d.Count, ShouldEqual, 3)
			So(d.Limit, ShouldEqual, 3)
		})

		Convey("Yesterday's events do not count", func() {
			counter.events = []time.Time{now.AddDate(0, 0, -1), now.AddDate(0, 0, -1), now.AddDate(0, 0, -1)}
			d, err := enf.Check(context.Background(), counter, subject, now)
			So(err, ShouldBeNil)
			So(d.Allowed, ShouldBeTrue)
		})

		Convey("Uncapped pairs skip the count entirely", func() {
			d, err := enf.Check(context.Background(), counter, caps.Subject{UserID: "u1", Role: model.RoleOperator, Event: model.EventDealClosed}, now)
			So(err, ShouldBeNil)
			So(d.Allowed, ShouldBeTrue)
			So(d.Capped, ShouldBeFalse)
			So(counter.calls, ShouldEqual, 0)
		})

		Convey("Counter errors propagate", func() {
			counter.err = errors.New("boom")
			_, err := enf.Check(context.Background(), counter, subject, now)
			So(err, ShouldNotBeNil)
		})
	})
}
