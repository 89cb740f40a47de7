package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/merit/internal/config"
	"github.com/okian/merit/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.WithOutput(io.Discard))
	os.Exit(m.Run())
}

type fakeService struct {
	rolls   atomic.Int32
	version int64
	rules   config.Rules
}

func (f *fakeService) RollStreaks(context.Context) (int, error) {
	f.rolls.Add(1)
	return 0, nil
}

func (f *fakeService) ReloadRules(_ context.Context, r config.Rules) (int64, error) {
	if _, err := r.Compile(); err != nil {
		return 0, err
	}
	f.rules = r
	f.version++
	return f.version, nil
}

func TestConfigFromEnv(t *testing.T) {
	convey.Convey("Given MERIT_ environment variables", t, func() {
		t.Setenv("MERIT_ADDR", ":8080")
		t.Setenv("MERIT_QUEUE_SIZE", "1000")
		t.Setenv("MERIT_WORKER_COUNT", "4")

		convey.Convey("Then configuration picks them up", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
		})
	})
}

func TestReloadRules(t *testing.T) {
	convey.Convey("Given a service and a rules file", t, func() {
		svc := &fakeService{}
		path := filepath.Join(t.TempDir(), "rules.toml")
		log := logger.Nop()

		convey.Convey("When the file is valid", func() {
			body := "[[multipliers]]\nmin_days = 5\nfactor = 1.3\n"
			convey.So(os.WriteFile(path, []byte(body), 0o600), convey.ShouldBeNil)

			convey.Convey("Then the new catalog is installed", func() {
				convey.So(reloadRules(context.Background(), svc, path, log), convey.ShouldBeNil)
				convey.So(svc.version, convey.ShouldEqual, 1)
				convey.So(svc.rules.Multipliers, convey.ShouldHaveLength, 1)
				convey.So(svc.rules.Points, convey.ShouldResemble, config.DefaultRules().Points)
			})
		})

		convey.Convey("When the file is broken", func() {
			convey.So(os.WriteFile(path, []byte("[[points]\n"), 0o600), convey.ShouldBeNil)

			convey.Convey("Then the running rules are kept", func() {
				err := reloadRules(context.Background(), svc, path, log)
				convey.So(errors.Is(err, config.ErrInvalidRules), convey.ShouldBeTrue)
				convey.So(svc.version, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the file is missing", func() {
			err := reloadRules(context.Background(), svc, filepath.Join(t.TempDir(), "nope.toml"), log)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestStreakRolloverLoop(t *testing.T) {
	convey.Convey("Given the streak rollover job", t, func() {
		svc := &fakeService{}

		convey.Convey("When it runs with a short interval", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
			defer cancel()
			streakRolloverLoop(ctx, svc, 10*time.Millisecond, logger.Nop())

			convey.Convey("Then it rolls at start and on every tick", func() {
				convey.So(svc.rolls.Load(), convey.ShouldBeGreaterThan, 1)
			})
		})

		convey.Convey("When the interval is zero", func() {
			streakRolloverLoop(context.Background(), svc, 0, logger.Nop())
			convey.So(svc.rolls.Load(), convey.ShouldEqual, 0)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})
}
