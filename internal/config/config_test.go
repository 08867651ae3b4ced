package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"hilalcal/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.DefaultConfig()

		convey.Convey("Then it targets the London calendar", func() {
			convey.So(cfg.Timezone, convey.ShouldEqual, "Europe/London")
			convey.So(cfg.WeekStart, convey.ShouldEqual, "monday")
			convey.So(cfg.TagLimit, convey.ShouldEqual, 16)
			convey.So(cfg.MaxEventRows, convey.ShouldEqual, 3)
			convey.So(cfg.Store.Driver, convey.ShouldEqual, config.DriverSQLite)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("And helpers resolve the typed values", func() {
			convey.So(cfg.Location().String(), convey.ShouldEqual, "Europe/London")
			convey.So(cfg.Weekday(), convey.ShouldEqual, time.Monday)
			convey.So(cfg.SnapshotURL(), convey.ShouldEqual, "http://127.0.0.1:8080/calendar")
		})
	})
}

func TestNormalize(t *testing.T) {
	convey.Convey("Given a partially filled config", t, func() {
		cfg := &config.Config{
			WeekStart: "friday",
			Feeds:     []config.FeedConfig{{URL: "https://example.org/a.ics"}},
		}
		cfg.Normalize()

		convey.Convey("Then missing values take defaults", func() {
			convey.So(cfg.Listen, convey.ShouldEqual, "127.0.0.1:8080")
			convey.So(cfg.WeekStart, convey.ShouldEqual, "monday")
			convey.So(cfg.RefreshCron, convey.ShouldEqual, "*/15 * * * *")
			convey.So(cfg.Store.DSN, convey.ShouldEqual, "hilalcal.db")
			convey.So(cfg.Feeds[0].ID, convey.ShouldEqual, "feed-1")
			convey.So(cfg.Snapshot.Width, convey.ShouldEqual, 1280)
		})
	})
}

func TestValidate(t *testing.T) {
	convey.Convey("Given invalid configs", t, func() {
		convey.Convey("When the driver is unknown", func() {
			cfg := config.DefaultConfig()
			cfg.Store.Driver = "mongo"
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "mongo")
		})

		convey.Convey("When the ics driver has no feeds", func() {
			cfg := config.DefaultConfig()
			cfg.Store.Driver = config.DriverICS
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When postgres has no dsn", func() {
			cfg := config.DefaultConfig()
			cfg.Store = config.StoreConfig{Driver: config.DriverPostgres}
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the cron spec and timezone are bad", func() {
			cfg := config.DefaultConfig()
			cfg.RefreshCron = "every minute"
			cfg.Timezone = "Mars/Olympus"
			err := cfg.Validate()
			convey.So(err.Error(), convey.ShouldContainSubstring, "every minute")
			convey.So(err.Error(), convey.ShouldContainSubstring, "Mars/Olympus")
		})

		convey.Convey("When the timezone is unknown the location falls back to local", func() {
			cfg := config.DefaultConfig()
			cfg.Timezone = "Mars/Olympus"
			convey.So(cfg.Location(), convey.ShouldEqual, time.Local)
		})
	})
}

func TestLoad(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When the file does not exist", func() {
			path := filepath.Join(t.TempDir(), "nested", "config.yaml")
			cfg, err := config.Load(path)

			convey.Convey("Then defaults are returned and written with 0600", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Timezone, convey.ShouldEqual, "Europe/London")
				info, statErr := os.Stat(path)
				convey.So(statErr, convey.ShouldBeNil)
				convey.So(info.Mode().Perm(), convey.ShouldEqual, os.FileMode(0o600))
			})
		})

		convey.Convey("When loading a YAML file", func() {
			path := writeConfig(t, `
listen: ":9090"
week_start: sunday
tag_limit: 8
store:
  driver: ics
feeds:
  - url: https://example.org/events.ics
    name: Community
`)
			cfg, err := config.Load(path)

			convey.Convey("Then file values override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Listen, convey.ShouldEqual, ":9090")
				convey.So(cfg.Weekday(), convey.ShouldEqual, time.Sunday)
				convey.So(cfg.TagLimit, convey.ShouldEqual, 8)
				convey.So(cfg.Store.Driver, convey.ShouldEqual, config.DriverICS)
				convey.So(cfg.Feeds, convey.ShouldHaveLength, 1)
				convey.So(cfg.Feeds[0].ID, convey.ShouldEqual, "feed-1")
				convey.So(cfg.MaxEventRows, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When environment variables are set", func() {
			path := writeConfig(t, "listen: \":9090\"\n")
			_ = os.Setenv("HILALCAL_LISTEN", ":7070")
			_ = os.Setenv("HILALCAL_LOG_LEVEL", "debug")
			_ = os.Setenv("HILALCAL_STORE__DSN", "/tmp/events.db")
			defer func() {
				_ = os.Unsetenv("HILALCAL_LISTEN")
				_ = os.Unsetenv("HILALCAL_LOG_LEVEL")
				_ = os.Unsetenv("HILALCAL_STORE__DSN")
			}()

			cfg, err := config.Load(path)

			convey.Convey("Then they take precedence over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Listen, convey.ShouldEqual, ":7070")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.Store.DSN, convey.ShouldEqual, "/tmp/events.db")
			})
		})

		convey.Convey("When the file is invalid", func() {
			path := writeConfig(t, "store:\n  driver: mongo\n")
			_, err := config.Load(path)

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the path is empty", func() {
			_, err := config.Load("")
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestSaveRoundTrip(t *testing.T) {
	convey.Convey("Given a saved config", t, func() {
		path := filepath.Join(t.TempDir(), "config.yaml")
		cfg := config.DefaultConfig()
		cfg.Timezone = "Europe/Paris"
		cfg.Feeds = []config.FeedConfig{{ID: "main", URL: "https://example.org/x.ics"}}
		convey.So(cfg.Save(path), convey.ShouldBeNil)

		convey.Convey("Then loading it returns the same values", func() {
			got, err := config.Load(path)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got.Timezone, convey.ShouldEqual, "Europe/Paris")
			convey.So(got.Feeds, convey.ShouldResemble, cfg.Feeds)
		})
	})
}
