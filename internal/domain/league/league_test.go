package league_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/merit/internal/domain/league"
	"github.com/okian/merit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func cohort(role model.Role, n int, tier model.League) []model.LeagueMembership {
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.LeagueMembership, n)
	for i := range out {
		out[i] = model.LeagueMembership{
			UserID:    fmt.Sprintf("%s-%02d", role, i),
			SeasonID:  "s1",
			League:    tier,
			Points:    int64(1000 - i*10),
			Role:      role,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestAssign(t *testing.T) {
	cfg := league.DefaultConfig()

	Convey("Given a cohort of 9", t, func() {
		changes, err := league.Assign(cohort(model.RoleBroker, 9, model.Silver), "s2", cfg)
		So(err, ShouldBeNil)

		Convey("Then nobody moves", func() {
			So(len(changes), ShouldEqual, 9)
			for _, c := range changes {
				So(c.Moved(), ShouldBeFalse)
				So(c.ToSeasonID, ShouldEqual, "s2")
			}
		})
	})

	Convey("Given a cohort of 20 in silver", t, func() {
		in := cohort(model.RoleOperator, 20, model.Silver)
		snapshot := append([]model.LeagueMembership(nil), in...)
		changes, err := league.Assign(in, "s2", cfg)
		So(err, ShouldBeNil)

		Convey("Then the top 4 go up and the bottom 4 go down", func() {
			s := league.Summarize(changes)
			So(s.Promoted, ShouldEqual, 4)
			So(s.Demoted, ShouldEqual, 4)
			So(s.Unchanged, ShouldEqual, 12)
			for _, c := range changes {
				switch {
				case c.Position <= 4:
					So(c.To, ShouldEqual, model.Gold)
				case c.Position > 16:
					So(c.To, ShouldEqual, model.Bronze)
				default:
					So(c.To, ShouldEqual, model.Silver)
				}
			}
		})

		Convey("Then no one moves more than one tier", func() {
			for _, c := range changes {
				d := int(c.To) - int(c.From)
				So(d, ShouldBeBetweenOrEqual, -1, 1)
			}
		})

		Convey("Then the input rows are untouched", func() {
			So(in, ShouldResemble, snapshot)
		})
	})

	Convey("Given tiers at the edges of the enum", t, func() {
		in := append(cohort(model.RolePilot, 10, model.Diamond), cohort(model.RoleCrew, 10, model.Bronze)...)
		changes, err := league.Assign(in, "s2", cfg)
		So(err, ShouldBeNil)

		Convey("Then diamond is capped and bronze is floored", func() {
			for _, c := range changes {
				So(c.To.Valid(), ShouldBeTrue)
				if c.Role == model.RolePilot {
					So(c.To, ShouldBeIn, model.Diamond, model.Platinum)
				} else {
					So(c.To, ShouldBeIn, model.Bronze, model.Silver)
				}
			}
		})
	})

	Convey("Given a tie on points", t, func() {
		in := cohort(model.RoleBroker, 10, model.Gold)
		in[0].Points, in[1].Points, in[2].Points = 5000, 5000, 5000
		in[1].CreatedAt = in[0].CreatedAt.Add(-time.Hour)
		changes, err := league.Assign(in, "s2", cfg)
		So(err, ShouldBeNil)

		Convey("Then the earlier membership ranks first", func() {
			var first model.LeagueChange
			for _, c := range changes {
				if c.Position == 1 {
					first = c
				}
			}
			So(first.UserID, ShouldEqual, in[1].UserID)
		})
	})

	Convey("Given a stored league outside the enum", t, func() {
		in := cohort(model.RoleBroker, 10, model.Gold)
		in[3].League = model.League(9)
		_, err := league.Assign(in, "s2", cfg)
		So(errors.Is(err, league.ErrLeagueOutOfRange), ShouldBeTrue)
	})

	Convey("Given overlapping bands", t, func() {
		_, err := league.Assign(nil, "s2", league.Config{MinSize: 10, TopPct: 0.6, BottomPct: 0.6})
		So(errors.Is(err, league.ErrInvalidConfig), ShouldBeTrue)
	})
}
