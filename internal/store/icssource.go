package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hilalcal/internal/ics"
	appLog "hilalcal/internal/log"
	"hilalcal/internal/model"
)

// FeedFetcher is the part of ics.Fetcher the ICS source needs.
type FeedFetcher interface {
	FetchAll(ctx context.Context, feeds []ics.Feed) ([]ics.FetchResult, []error)
}

// ICSOptions configure an ICSSource.
type ICSOptions struct {
	Feeds    []ics.Feed
	Fetcher  FeedFetcher
	Location *time.Location
	// Horizon and Backfill bound recurrence expansion around now.
	Horizon  time.Duration
	Backfill time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// ICSSource reads published events from ICS feeds.
type ICSSource struct {
	opts ICSOptions
}

// NewICSSource returns a source over opts.Feeds.
func NewICSSource(opts ICSOptions) *ICSSource {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Horizon <= 0 {
		opts.Horizon = 90 * 24 * time.Hour
	}
	return &ICSSource{opts: opts}
}

// Published fetches, parses and expands every feed. Feeds that fail are
// logged and skipped; an error is returned only when none succeeded.
func (s *ICSSource) Published(ctx context.Context) ([]model.Event, error) {
	results, fetchErrs := s.opts.Fetcher.FetchAll(ctx, s.opts.Feeds)
	if len(results) == 0 && len(fetchErrs) > 0 {
		return nil, fmt.Errorf("all feeds failed: %w", errors.Join(fetchErrs...))
	}

	var parsed []ics.ParsedEvent
	for _, res := range results {
		evs, err := ics.ParseFeed(res.Feed, res.Body)
		if err != nil {
			appLog.Error("ics source: parse failed", err, "feed", res.Feed.ID)
			continue
		}
		parsed = append(parsed, evs...)
	}

	now := s.opts.Now().In(s.opts.Location)
	expanded, err := ics.Expand(parsed, ics.ExpandConfig{
		DisplayLocation: s.opts.Location,
		RangeStart:      now.Add(-s.opts.Backfill),
		RangeEnd:        now.Add(s.opts.Horizon),
	})
	if err != nil {
		return nil, fmt.Errorf("expand feeds: %w", err)
	}

	out := make([]model.Event, 0, len(expanded.Events))
	for _, ev := range expanded.Events {
		if ev.IsPublished() {
			out = append(out, ev)
		}
	}
	sortByStart(out)
	return out, nil
}

// Close is a no-op.
func (s *ICSSource) Close() error { return nil }
