package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/ranking"
	types "github.com/okian/merit/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAwardResponse(t *testing.T) {
	Convey("Given an applied result", t, func() {
		r := types.NewAwardResponse(model.AwardResult{
			Applied: true, EventID: "e1", AwardedPoints: 23, Multiplier: 1.5, StreakDays: 8, SeasonID: "s1",
		})
		So(r.Status, ShouldEqual, types.StatusApplied)
		So(r.AwardedPoints, ShouldEqual, 23)
	})

	Convey("Given a skipped result", t, func() {
		r := types.NewAwardResponse(model.Skip(model.SkipCap))
		b, err := json.Marshal(r)
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, `{"status":"skipped","reason":"cap"}`)
	})
}

func TestAwardRequest(t *testing.T) {
	Convey("Given a JSON award body with an override", t, func() {
		var req types.AwardRequest
		err := json.Unmarshal([]byte(`{"user_id":"u1","role":"operator","event_type":"quote_submitted_fast","base_points":15,"source_key":"quote:9|rule:quote_submitted_fast"}`), &req)
		So(err, ShouldBeNil)

		in := req.Input()
		So(in.Validate(), ShouldBeNil)
		So(*in.BasePoints, ShouldEqual, 15)
		So(in.Role, ShouldEqual, model.RoleOperator)
	})
}

func TestRankings(t *testing.T) {
	Convey("Given ranked entries", t, func() {
		out := types.NewRankings([]ranking.Ranked{{
			Entry:         ranking.Entry{UserID: "u1", Role: model.RoleBroker, League: model.Diamond, Points: 40},
			BasePosition:  13,
			BiasPositions: 5,
			BiasPct:       0.05,
			FinalRank:     9,
		}})
		So(out[0].Rank, ShouldEqual, 9)
		So(out[0].League, ShouldEqual, "diamond")
		So(out[0].BasePosition-out[0].Rank, ShouldBeLessThanOrEqualTo, out[0].BiasPositions)
	})
}

func TestSeasonRequest(t *testing.T) {
	Convey("Given a season body", t, func() {
		s, err := types.SeasonRequest{ID: "2026-w42", StartDate: "2026-10-12", EndDate: "2026-10-18"}.Season()
		So(err, ShouldBeNil)
		So(s.Status, ShouldEqual, model.SeasonUpcoming)
		So(s.StartDate, ShouldResemble, model.Date{Year: 2026, Month: time.October, Day: 12})

		_, err = types.SeasonRequest{ID: "x", StartDate: "12/10/2026"}.Season()
		So(err, ShouldNotBeNil)
	})
}
