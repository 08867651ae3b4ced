package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"hilalcal/internal/model"
)

// sqliteTime is the stored form of instants; fixed width and UTC so that
// text order is time order.
const sqliteTime = "2006-01-02T15:04:05Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    start_at TEXT,
    end_at TEXT,
    city TEXT NOT NULL DEFAULT '',
    venue_name TEXT NOT NULL DEFAULT '',
    organiser TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    notes TEXT NOT NULL DEFAULT '',
    poster_url TEXT NOT NULL DEFAULT '',
    caption TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('published', 'pending', 'cancelled')),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_events_status_start ON events(status, start_at);
`

// SQLite is the embedded event store.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens dsn (a file path or ":memory:") and applies the schema.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// RunMigrations creates the schema if it is missing.
func (s *SQLite) RunMigrations() error {
	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// Published returns published events ordered by start, missing start
// first, insertion order on ties.
func (s *SQLite) Published(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, start_at, end_at, city, venue_name, organiser, tags, notes, poster_url, caption, status
		FROM events
		WHERE status = ?
		ORDER BY start_at IS NOT NULL, start_at, rowid`, model.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanSQLiteEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// Get returns one event regardless of status.
func (s *SQLite) Get(ctx context.Context, id string) (model.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, start_at, end_at, city, venue_name, organiser, tags, notes, poster_url, caption, status
		FROM events WHERE id = ?`, id)
	ev, err := scanSQLiteEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	return ev, err
}

// Upsert inserts ev or replaces the stored event with the same id.
func (s *SQLite) Upsert(ctx context.Context, ev model.Event) error {
	if ev.ID == "" {
		return errors.New("failed to upsert event: empty id")
	}
	tags := ev.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	status := ev.Status
	if status == "" {
		status = model.StatusPending
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, title, start_at, end_at, city, venue_name, organiser, tags, notes, poster_url, caption, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			city = excluded.city,
			venue_name = excluded.venue_name,
			organiser = excluded.organiser,
			tags = excluded.tags,
			notes = excluded.notes,
			poster_url = excluded.poster_url,
			caption = excluded.caption,
			status = excluded.status`,
		ev.ID, ev.Title, nullTime(ev.Start), nullTime(ev.End), ev.City, ev.VenueName, ev.Organiser,
		string(tagsJSON), ev.Notes, ev.PosterURL, ev.Caption, status)
	if err != nil {
		return fmt.Errorf("failed to upsert event %s: %w", ev.ID, err)
	}
	return nil
}

// Delete removes an event.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteEvent(row rowScanner) (model.Event, error) {
	var (
		ev         model.Event
		start, end sql.NullString
		tagsJSON   string
	)
	err := row.Scan(&ev.ID, &ev.Title, &start, &end, &ev.City, &ev.VenueName, &ev.Organiser,
		&tagsJSON, &ev.Notes, &ev.PosterURL, &ev.Caption, &ev.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ev, err
		}
		return ev, fmt.Errorf("failed to scan event: %w", err)
	}
	if ev.Start, err = parseNullTime(start); err != nil {
		return ev, fmt.Errorf("event %s start: %w", ev.ID, err)
	}
	if ev.End, err = parseNullTime(end); err != nil {
		return ev, fmt.Errorf("event %s end: %w", ev.ID, err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &ev.Tags); err != nil {
		return ev, fmt.Errorf("event %s tags: %w", ev.ID, err)
	}
	return ev, nil
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(sqliteTime), Valid: true}
}

func parseNullTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(sqliteTime, s.String)
}
