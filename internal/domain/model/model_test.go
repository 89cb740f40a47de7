package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/merit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLeague(t *testing.T) {
	Convey("Given the league enum", t, func() {
		Convey("Then tiers are ordered bronze to diamond", func() {
			So(model.Bronze < model.Silver, ShouldBeTrue)
			So(model.Platinum < model.Diamond, ShouldBeTrue)
			So(model.Diamond.String(), ShouldEqual, "diamond")
		})

		Convey("Then promotion and demotion move one tier and clamp", func() {
			So(model.Gold.Promote(), ShouldEqual, model.Platinum)
			So(model.Diamond.Promote(), ShouldEqual, model.Diamond)
			So(model.Silver.Demote(), ShouldEqual, model.Bronze)
			So(model.Bronze.Demote(), ShouldEqual, model.Bronze)
		})

		Convey("Then values outside the enum are invalid", func() {
			So(model.League(5).Valid(), ShouldBeFalse)
			So(model.League(-1).Valid(), ShouldBeFalse)
			_, err := model.League(7).MarshalText()
			So(err, ShouldNotBeNil)
		})

		Convey("Then leagues round-trip through JSON by name", func() {
			b, err := json.Marshal(map[string]model.League{"l": model.Platinum})
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"l":"platinum"}`)

			var out map[string]model.League
			So(json.Unmarshal(b, &out), ShouldBeNil)
			So(out["l"], ShouldEqual, model.Platinum)
		})

		Convey("Then parsing rejects unknown names", func() {
			_, err := model.ParseLeague("mithril")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRoleAndEventType(t *testing.T) {
	Convey("Given the closed role set", t, func() {
		r, err := model.ParseRole(" Pilot ")
		So(err, ShouldBeNil)
		So(r, ShouldEqual, model.RolePilot)

		_, err = model.ParseRole("admin")
		So(err, ShouldNotBeNil)
	})

	Convey("Given the event catalog", t, func() {
		So(model.EventQuoteSubmittedFast.Known(), ShouldBeTrue)
		So(model.EventType("spam_clicks").Known(), ShouldBeFalse)
	})
}

func TestUserStreakValidate(t *testing.T) {
	Convey("Given streak rows", t, func() {
		So(model.UserStreak{CurrentStreakDays: 3, BestStreakDays: 5}.Validate(), ShouldBeNil)
		So(model.UserStreak{CurrentStreakDays: -1}.Validate(), ShouldNotBeNil)
		So(model.UserStreak{CurrentStreakDays: 6, BestStreakDays: 5}.Validate(), ShouldNotBeNil)
		So(model.UserStreak{SheltersAvailable: -2}.Validate(), ShouldNotBeNil)
	})
}

func TestSeasonStatus(t *testing.T) {
	Convey("Given season transitions", t, func() {
		So(model.SeasonUpcoming.CanTransition(model.SeasonActive), ShouldBeTrue)
		So(model.SeasonActive.CanTransition(model.SeasonClosed), ShouldBeTrue)
		So(model.SeasonClosed.CanTransition(model.SeasonActive), ShouldBeFalse)
		So(model.SeasonActive.CanTransition(model.SeasonUpcoming), ShouldBeFalse)
		So(model.SeasonUpcoming.CanTransition(model.SeasonClosed), ShouldBeFalse)
	})
}

func TestAwardInputValidate(t *testing.T) {
	Convey("Given award inputs", t, func() {
		valid := model.AwardInput{UserID: "u1", Role: model.RoleBroker, EventType: model.EventQuoteAccepted, SourceKey: "deal:1|rule:quote_accepted"}
		So(valid.Validate(), ShouldBeNil)

		noKey := valid
		noKey.SourceKey = " "
		So(noKey.Validate(), ShouldNotBeNil)

		badRole := valid
		badRole.Role = "admin"
		So(badRole.Validate(), ShouldNotBeNil)

		neg := int64(-5)
		negative := valid
		negative.BasePoints = &neg
		So(negative.Validate(), ShouldNotBeNil)
	})
}

func TestDate(t *testing.T) {
	Convey("Given calendar dates", t, func() {
		loc, err := time.LoadLocation("America/New_York")
		So(err, ShouldBeNil)

		Convey("Then DateOf honours the location", func() {
			ts := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
			So(model.DateOf(ts, loc).String(), ShouldEqual, "2026-03-01")
			So(model.DateOf(ts, time.UTC).String(), ShouldEqual, "2026-03-02")
		})

		Convey("Then day arithmetic crosses month boundaries", func() {
			d := model.Date{Year: 2026, Month: time.February, Day: 28}
			So(d.AddDays(1).String(), ShouldEqual, "2026-03-01")
			So(d.AddDays(1).DaysSince(d), ShouldEqual, 1)
			So(d.Before(d.AddDays(3)), ShouldBeTrue)
		})

		Convey("Then parsing accepts empty and ISO dates", func() {
			z, err := model.ParseDate("")
			So(err, ShouldBeNil)
			So(z.IsZero(), ShouldBeTrue)

			d, err := model.ParseDate("2026-10-18")
			So(err, ShouldBeNil)
			So(d, ShouldResemble, model.Date{Year: 2026, Month: time.October, Day: 18})
		})
	})
}
