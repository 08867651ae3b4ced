// Package store loads the published event set from SQLite, Postgres or ICS
// feeds and keeps a refreshed in-memory snapshot of it.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"hilalcal/internal/config"
	"hilalcal/internal/ics"
	"hilalcal/internal/model"
)

var (
	// ErrUnknownDriver is returned by Open for an unsupported store.driver.
	ErrUnknownDriver = errors.New("store: unknown driver")
	// ErrNotFound is returned when an event id does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrReadOnly is returned when writing to a source that cannot store
	// events.
	ErrReadOnly = errors.New("store: source is read-only")
)

// Source supplies the published events, ordered by start ascending with
// events lacking a start first.
type Source interface {
	Published(ctx context.Context) ([]model.Event, error)
}

// Writer stores events. Only the database drivers implement it.
type Writer interface {
	Upsert(ctx context.Context, ev model.Event) error
}

// Store is a Source with a lifecycle.
type Store interface {
	Source
	Close() error
}

// Open builds the store selected by cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		s, err := NewSQLite(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		s, err := NewPostgres(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverICS:
		feeds := make([]ics.Feed, 0, len(cfg.Feeds))
		for _, f := range cfg.Feeds {
			feeds = append(feeds, ics.Feed{ID: f.ID, URL: f.URL})
		}
		return NewICSSource(ICSOptions{
			Feeds:    feeds,
			Fetcher:  ics.NewFetcher(cfg.CacheDir, &http.Client{Timeout: 15 * time.Second}),
			Location: cfg.Location(),
			Horizon:  time.Duration(cfg.HorizonDays) * 24 * time.Hour,
			Backfill: time.Duration(cfg.BackfillDays) * 24 * time.Hour,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Store.Driver)
	}
}

// sortByStart orders events by start, missing start first, keeping input
// order on ties.
func sortByStart(events []model.Event) {
	slices.SortStableFunc(events, func(a, b model.Event) int {
		switch {
		case !a.HasStart() && !b.HasStart():
			return 0
		case !a.HasStart():
			return -1
		case !b.HasStart():
			return 1
		default:
			return a.Start.Compare(b.Start)
		}
	})
}
