package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hilalcal/internal/config"
	"hilalcal/internal/ics"
	"hilalcal/internal/model"
)

// NewTestDB creates an in-memory SQLite store for testing.
func NewTestDB(t *testing.T) *SQLite {
	t.Helper()

	db, err := NewSQLite(":memory:")
	require.NoError(t, err, "failed to create test database")

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func at(day, hour int) time.Time {
	return time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC)
}

func eventIDs(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	var count int
	err := db.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='events'").Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, db.RunMigrations(), "migrations must be idempotent")
}

func TestSQLitePublishedOrdering(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	for _, ev := range []model.Event{
		{ID: "late", Title: "Late", Start: at(1, 20), Status: model.StatusPublished},
		{ID: "tie-b", Title: "Tie B", Start: at(1, 12), Status: model.StatusPublished},
		{ID: "tie-a", Title: "Tie A", Start: at(1, 12), Status: model.StatusPublished},
		{ID: "undated", Title: "TBC", Status: model.StatusPublished},
		{ID: "draft", Title: "Draft", Start: at(1, 9), Status: model.StatusPending},
		{ID: "cancelled", Title: "Cancelled", Start: at(1, 10), Status: model.StatusCancelled},
	} {
		require.NoError(t, db.Upsert(ctx, ev))
	}

	events, err := db.Published(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"undated", "tie-b", "tie-a", "late"}, eventIDs(events))
	require.False(t, events[0].HasStart())
}

func TestSQLiteRoundTrip(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	in := model.Event{
		ID:        "eid",
		Title:     "Eid Prayer",
		Start:     at(31, 7),
		End:       at(31, 8),
		City:      "London",
		VenueName: "Regent's Park Mosque",
		Organiser: "LCM",
		Tags:      []string{"Eid", "Prayer"},
		Notes:     "Bring a mat",
		PosterURL: "https://example.org/eid.png",
		Caption:   "Takbir from 7am",
		Status:    model.StatusPublished,
	}
	require.NoError(t, db.Upsert(ctx, in))

	got, err := db.Get(ctx, "eid")
	require.NoError(t, err)
	require.Equal(t, in, got)

	in.Title = "Eid al-Fitr Prayer"
	require.NoError(t, db.Upsert(ctx, in))
	got, err = db.Get(ctx, "eid")
	require.NoError(t, err)
	require.Equal(t, "Eid al-Fitr Prayer", got.Title)

	require.NoError(t, db.Delete(ctx, "eid"))
	_, err = db.Get(ctx, "eid")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, db.Delete(ctx, "eid"), ErrNotFound)
}

func TestSQLiteUpsertDefaults(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	require.Error(t, db.Upsert(ctx, model.Event{}))

	require.NoError(t, db.Upsert(ctx, model.Event{ID: "bare"}))
	got, err := db.Get(ctx, "bare")
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, got.Status)
	require.Empty(t, got.Tags)
}

func TestSeed(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	n, err := Seed(ctx, db, at(15, 12), london)
	require.NoError(t, err)
	require.Equal(t, len(DemoEvents(at(15, 12), london)), n)

	events, err := db.Published(ctx)
	require.NoError(t, err)
	require.Len(t, events, n-1)
	for i := 1; i < len(events); i++ {
		require.False(t, events[i].Start.Before(events[i-1].Start))
	}
}

func TestDemoEventsCrowdFirstSaturday(t *testing.T) {
	events := DemoEvents(at(15, 12), time.UTC)
	sat := 0
	for _, ev := range events {
		if ev.Start.Year() == 2025 && ev.Start.Month() == time.March && ev.Start.Day() == 1 {
			sat++
		}
	}
	require.Equal(t, 4, sat)
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Driver = "mongo"
	_, err := Open(context.Background(), cfg)
	require.ErrorIs(t, err, ErrUnknownDriver)
}

func TestOpenSQLite(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.DSN = ":memory:"
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(Writer)
	require.True(t, ok)
}

type fakeFetcher struct {
	results []ics.FetchResult
	errs    []error
}

func (f fakeFetcher) FetchAll(context.Context, []ics.Feed) ([]ics.FetchResult, []error) {
	return f.results, f.errs
}

const feedBody = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:b\r\nDTSTAMP:20250301T000000Z\r\nDTSTART:20250305T190000Z\r\nSUMMARY:Later\r\nEND:VEVENT\r\n" +
	"BEGIN:VEVENT\r\nUID:a\r\nDTSTAMP:20250301T000000Z\r\nDTSTART:20250304T190000Z\r\nSUMMARY:Sooner\r\nEND:VEVENT\r\n" +
	"BEGIN:VEVENT\r\nUID:c\r\nDTSTAMP:20250301T000000Z\r\nDTSTART:20250304T200000Z\r\nSUMMARY:Maybe\r\nSTATUS:TENTATIVE\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestICSSource(t *testing.T) {
	feed := ics.Feed{ID: "main", URL: "https://example.org/feed.ics"}
	src := NewICSSource(ICSOptions{
		Feeds:    []ics.Feed{feed},
		Fetcher:  fakeFetcher{results: []ics.FetchResult{{Feed: feed, Body: []byte(feedBody)}}},
		Location: time.UTC,
		Backfill: 7 * 24 * time.Hour,
		Now:      func() time.Time { return at(1, 0) },
	})

	events, err := src.Published(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"main:a", "main:b"}, eventIDs(events))
	require.NoError(t, src.Close())
}

func TestICSSourceAllFeedsFailed(t *testing.T) {
	src := NewICSSource(ICSOptions{
		Feeds:   []ics.Feed{{ID: "x"}},
		Fetcher: fakeFetcher{errs: []error{errors.New("boom")}},
	})
	_, err := src.Published(context.Background())
	require.Error(t, err)
}

type stubSource struct {
	events []model.Event
	err    error
	calls  int
}

func (s *stubSource) Published(context.Context) ([]model.Event, error) {
	s.calls++
	return s.events, s.err
}

func TestRefresher(t *testing.T) {
	src := &stubSource{events: []model.Event{{ID: "1", Start: at(1, 9), Status: model.StatusPublished}}}
	r := NewRefresher(src, time.Second)
	require.Empty(t, r.Snapshot().Events())
	require.True(t, r.Snapshot().LoadedAt().IsZero())

	require.NoError(t, r.Refresh(context.Background()))
	require.Equal(t, []string{"1"}, eventIDs(r.Snapshot().Events()))
	require.False(t, r.Snapshot().LoadedAt().IsZero())

	src.err = errors.New("database is down")
	require.Error(t, r.Refresh(context.Background()))
	require.NotNil(t, r.Snapshot().Events())
	require.Empty(t, r.Snapshot().Events())
}

func TestRefresherSchedule(t *testing.T) {
	r := NewRefresher(&stubSource{}, time.Second)
	require.Error(t, r.Start("not a schedule"))

	require.NoError(t, r.Start("@every 1h"))
	require.Error(t, r.Start("@every 1h"))
	r.Stop()
	r.Stop()
}

func TestSortByStart(t *testing.T) {
	events := []model.Event{
		{ID: "b", Start: at(2, 9)},
		{ID: "none"},
		{ID: "a", Start: at(1, 9)},
		{ID: "a2", Start: at(1, 9)},
	}
	sortByStart(events)
	require.Equal(t, []string{"none", "a", "a2", "b"}, eventIDs(events))
}
