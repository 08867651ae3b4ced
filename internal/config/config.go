package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	appLog "hilalcal/internal/log"
)

// NOTE: Load layers the YAML file and HILALCAL_* environment variables over
// DefaultConfig. A missing file is created from defaults with 0600
// permissions on first run.

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverICS      = "ics"
)

// FeedConfig describes a single ICS feed used by the ics store driver.
type FeedConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url" koanf:"url"`
	// ID is an internal identifier used for logging and cache file names.
	ID string `yaml:"id" json:"id" koanf:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name" koanf:"name"`
}

// StoreConfig selects the published event source.
type StoreConfig struct {
	// Driver is one of "sqlite", "postgres" or "ics".
	Driver string `yaml:"driver" json:"driver" koanf:"driver"`
	// DSN is the SQLite file path or the Postgres connection string.
	DSN string `yaml:"dsn" json:"dsn" koanf:"dsn"`
}

// SnapshotConfig controls the headless browser capture of /calendar.
type SnapshotConfig struct {
	// URL overrides the page to capture. Empty means http://<listen>/calendar.
	URL    string `yaml:"url" json:"url" koanf:"url"`
	Output string `yaml:"output" json:"output" koanf:"output"`
	Width  int    `yaml:"width" json:"width" koanf:"width"`
	Height int    `yaml:"height" json:"height" koanf:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the calendar page and API.
	Listen string `yaml:"listen" json:"listen" koanf:"listen"`

	// Timezone is the IANA display timezone (e.g. "Europe/London").
	Timezone string `yaml:"timezone" json:"timezone" koanf:"timezone"`

	// WeekStart is the first column of the calendar views:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start" koanf:"week_start"`

	// RefreshCron is a standard cron schedule (e.g. "*/15 * * * *") for
	// reloading the published event set.
	RefreshCron string `yaml:"refresh" json:"refresh" koanf:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" koanf:"log_level"`

	// TagLimit is the number of tag chips shown before "Show more".
	TagLimit int `yaml:"tag_limit" json:"tag_limit" koanf:"tag_limit"`

	// MaxEventRows caps the rows of a month cell, the "more" link included.
	MaxEventRows int `yaml:"max_event_rows" json:"max_event_rows" koanf:"max_event_rows"`

	Store StoreConfig `yaml:"store" json:"store" koanf:"store"`

	// Feeds are the ICS subscriptions read by the ics driver.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds" koanf:"feeds"`

	// CacheDir holds conditional-GET caches of the feeds.
	CacheDir string `yaml:"cache_dir" json:"cache_dir" koanf:"cache_dir"`

	// HorizonDays and BackfillDays bound recurrence expansion around now.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days" koanf:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days" koanf:"backfill_days"`

	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot" koanf:"snapshot"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "Europe/London",
		WeekStart:    "monday",
		RefreshCron:  "*/15 * * * *",
		LogLevel:     "info",
		TagLimit:     16,
		MaxEventRows: 3,
		Store: StoreConfig{
			Driver: DriverSQLite,
			DSN:    "hilalcal.db",
		},
		Feeds:        []FeedConfig{},
		CacheDir:     "cache",
		HorizonDays:  90,
		BackfillDays: 30,
		Snapshot: SnapshotConfig{
			Output: "calendar.png",
			Width:  1280,
			Height: 960,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = def.WeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.TagLimit <= 0 {
		c.TagLimit = def.TagLimit
	}
	if c.MaxEventRows <= 0 {
		c.MaxEventRows = def.MaxEventRows
	}
	if c.Store.Driver == "" {
		c.Store.Driver = def.Store.Driver
	}
	if c.Store.Driver == DriverSQLite && c.Store.DSN == "" {
		c.Store.DSN = def.Store.DSN
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	for i := range c.Feeds {
		if c.Feeds[i].ID == "" {
			c.Feeds[i].ID = fmt.Sprintf("feed-%d", i+1)
		}
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.Snapshot.Output == "" {
		c.Snapshot.Output = def.Snapshot.Output
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = def.Snapshot.Width
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = def.Snapshot.Height
	}
}

// Validate reports settings Normalize cannot repair. Errors wrap
// ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for postgres"))
		}
	case DriverICS:
		if len(c.Feeds) == 0 {
			errs = append(errs, errors.New("feeds must not be empty for the ics driver"))
		}
		for _, f := range c.Feeds {
			if f.URL == "" {
				errs = append(errs, fmt.Errorf("feed %q has no url", f.ID))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %v", c.RefreshCron, err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %v", c.Timezone, err))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Location resolves Timezone, falling back to time.Local when it is empty
// or unknown.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// Weekday returns WeekStart as a time.Weekday.
func (c *Config) Weekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// SnapshotURL returns the page captured by -snapshot.
func (c *Config) SnapshotURL() string {
	if c.Snapshot.URL != "" {
		return c.Snapshot.URL
	}
	return "http://" + c.Listen + "/calendar"
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return fmt.Errorf("%w: config path is empty", ErrInvalidConfig)
	}
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".hilalcal-config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to chmod temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
