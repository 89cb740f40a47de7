package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/okian/merit/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Timezone, convey.ShouldEqual, "UTC")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("MERIT_ADDR", ":8080")
			_ = os.Setenv("MERIT_QUEUE_SIZE", "500")
			_ = os.Setenv("MERIT_WORKER_COUNT", "16")
			_ = os.Setenv("MERIT_TOP_PCT", "0.3")
			_ = os.Setenv("MERIT_TIMEZONE", "Europe/Berlin")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.TopPct, convey.ShouldEqual, 0.3)
				convey.So(cfg.Timezone, convey.ShouldEqual, "Europe/Berlin")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
queue_size: 3000
worker_count: 24
db_path: /var/lib/merit/merit.db
rules_path: /etc/merit/rules.toml
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MERIT_CONFIG", tmpFile)
			_ = os.Setenv("MERIT_WORKER_COUNT", "32")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 3000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
				convey.So(cfg.DBPath, convey.ShouldEqual, "/var/lib/merit/merit.db")
				convey.So(cfg.RulesPath, convey.ShouldEqual, "/etc/merit/rules.toml")
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 100_000)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MERIT_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("MERIT_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("MERIT_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the bias cap exceeds five percent", func() {
			_ = os.Setenv("MERIT_BIAS_CAP", "0.25")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it is rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, k := range []string{
		"MERIT_CONFIG", "MERIT_ADDR", "MERIT_QUEUE_SIZE", "MERIT_WORKER_COUNT",
		"MERIT_TOP_PCT", "MERIT_TIMEZONE", "MERIT_BIAS_CAP",
	} {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "merit-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}
