package scoring_test

import (
	"testing"

	"github.com/okian/merit/internal/domain/model"
	scoring "github.com/okian/merit/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func ptr(v int64) *int64 { return &v }

func TestTableResolve(t *testing.T) {
	Convey("Given a point table with role and shared rows", t, func() {
		table, err := scoring.NewTable([]scoring.Entry{
			{Role: model.RoleOperator, Event: model.EventQuoteSubmittedFast, Points: 15},
			{Role: model.RoleBroker, Event: model.EventQuoteAccepted, Points: 25},
			{Role: model.RoleShared, Event: model.EventQuoteAccepted, Points: 10},
			{Role: model.RoleShared, Event: model.EventProfileCompleted, Points: 5},
			{Role: model.RolePilot, Event: model.EventProfileCompleted, Points: 0},
		})
		So(err, ShouldBeNil)

		Convey("When the role row exists it wins over shared", func() {
			r := table.Resolve(model.RoleBroker, model.EventQuoteAccepted, nil)
			So(r.Points, ShouldEqual, 25)
			So(r.Source, ShouldEqual, scoring.SourceRole)
		})

		Convey("When only a shared row exists it is used", func() {
			r := table.Resolve(model.RolePilot, model.EventQuoteAccepted, nil)
			So(r.Points, ShouldEqual, 10)
			So(r.Source, ShouldEqual, scoring.SourceShared)
		})

		Convey("When the role row is zero the shared row applies", func() {
			r := table.Resolve(model.RolePilot, model.EventProfileCompleted, nil)
			So(r.Points, ShouldEqual, 5)
			So(r.Source, ShouldEqual, scoring.SourceShared)
		})

		Convey("When nothing matches the result is zero and not awardable", func() {
			r := table.Resolve(model.RoleCrew, model.EventType("unknown_thing"), nil)
			So(r.Points, ShouldEqual, 0)
			So(r.Source, ShouldEqual, scoring.SourceNone)
			So(r.Awardable(), ShouldBeFalse)
		})

		Convey("When an override is given it always wins", func() {
			r := table.Resolve(model.RoleBroker, model.EventQuoteAccepted, ptr(40))
			So(r.Points, ShouldEqual, 40)
			So(r.Source, ShouldEqual, scoring.SourceOverride)

			zero := table.Resolve(model.RoleBroker, model.EventQuoteAccepted, ptr(0))
			So(zero.Awardable(), ShouldBeTrue)
		})

		Convey("When listing entries they come back sorted", func() {
			entries := table.Entries()
			So(len(entries), ShouldEqual, 5)
			So(entries[0].Role, ShouldEqual, model.RoleBroker)
		})
	})

	Convey("Given invalid table rows", t, func() {
		_, err := scoring.NewTable([]scoring.Entry{{Role: "admin", Event: model.EventQuoteAccepted, Points: 1}})
		So(err, ShouldNotBeNil)

		_, err = scoring.NewTable([]scoring.Entry{{Role: model.RoleCrew, Event: model.EventQuoteAccepted, Points: -1}})
		So(err, ShouldNotBeNil)
	})

	Convey("Given a nil table", t, func() {
		var table *scoring.Table
		So(table.Resolve(model.RoleCrew, model.EventQuoteAccepted, nil).Source, ShouldEqual, scoring.SourceNone)
	})
}

func TestMultiplier(t *testing.T) {
	Convey("Given the default tiers", t, func() {
		tiers := scoring.DefaultTiers()

		Convey("Then the boundaries are exact", func() {
			So(tiers.Multiplier(0), ShouldEqual, 1.0)
			So(tiers.Multiplier(2), ShouldEqual, 1.0)
			So(tiers.Multiplier(3), ShouldEqual, 1.2)
			So(tiers.Multiplier(6), ShouldEqual, 1.2)
			So(tiers.Multiplier(7), ShouldEqual, 1.5)
			So(tiers.Multiplier(13), ShouldEqual, 1.5)
			So(tiers.Multiplier(14), ShouldEqual, 2.0)
			So(tiers.Multiplier(365), ShouldEqual, 2.0)
		})

		Convey("Then the function is non-decreasing", func() {
			prev := 0.0
			for d := 0; d <= 60; d++ {
				m := tiers.Multiplier(d)
				So(m, ShouldBeGreaterThanOrEqualTo, prev)
				prev = m
			}
		})

		Convey("Then listing returns ascending thresholds", func() {
			list := tiers.List()
			So(list[0].MinDays, ShouldEqual, 3)
			So(list[2].MinDays, ShouldEqual, 14)
		})
	})

	Convey("Given invalid tiers", t, func() {
		_, err := scoring.NewTiers([]scoring.Tier{{MinDays: 3, Factor: 1.5}, {MinDays: 7, Factor: 1.2}})
		So(err, ShouldNotBeNil)

		_, err = scoring.NewTiers([]scoring.Tier{{MinDays: 0, Factor: 1.5}})
		So(err, ShouldNotBeNil)

		_, err = scoring.NewTiers([]scoring.Tier{{MinDays: 3, Factor: 1.2}, {MinDays: 3, Factor: 1.4}})
		So(err, ShouldNotBeNil)
	})
}

func TestRounding(t *testing.T) {
	Convey("Given half-up rounding", t, func() {
		So(scoring.Apply(15, 1.5), ShouldEqual, 23) // 22.5
		So(scoring.Apply(5, 1.5), ShouldEqual, 8)   // 7.5
		So(scoring.Apply(10, 1.2), ShouldEqual, 12)
		So(scoring.Apply(7, 1.2), ShouldEqual, 8) // 8.4
		So(scoring.Apply(3, 1.5), ShouldEqual, 5) // 4.5
		So(scoring.Apply(0, 2.0), ShouldEqual, 0)
		So(scoring.RoundHalfUp(2.5), ShouldEqual, 3)
		So(scoring.RoundHalfUp(2.49), ShouldEqual, 2)
	})
}
