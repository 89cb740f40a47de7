package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/merit/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.MinLeagueSize, convey.ShouldEqual, 10)
			convey.So(cfg.TopPct, convey.ShouldEqual, 0.20)
			convey.So(cfg.BottomPct, convey.ShouldEqual, 0.20)
			convey.So(cfg.BiasCap, convey.ShouldEqual, 0.05)
			convey.So(cfg.StoreTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with bad values", t, func() {
		cases := []func(c *config.Config){
			func(c *config.Config) { c.Addr = "" },
			func(c *config.Config) { c.DBPath = "" },
			func(c *config.Config) { c.StoreTimeoutMS = 0 },
			func(c *config.Config) { c.WorkerCount = 0 },
			func(c *config.Config) { c.TopPct, c.BottomPct = 0.7, 0.4 },
			func(c *config.Config) { c.BiasCap = 0.2 },
			func(c *config.Config) { c.Timezone = "Mars/Olympus" },
		}
		for _, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		}
	})

	convey.Convey("Given a named timezone", t, func() {
		cfg := config.New()
		cfg.Timezone = "America/New_York"
		loc, err := cfg.Location()
		convey.So(err, convey.ShouldBeNil)
		convey.So(loc.String(), convey.ShouldEqual, "America/New_York")
	})
}
