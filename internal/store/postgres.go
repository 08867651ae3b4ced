package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hilalcal/internal/model"
)

// Postgres is the shared event store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and ensures the events table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := NewPgStore(pool)
	if err := s.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure events table: %w", err)
	}
	return s, nil
}

// NewPgStore wraps an existing pool.
func NewPgStore(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureTable creates the events table if it doesn't exist.
func (s *Postgres) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			seq        BIGSERIAL,
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			start_at   TIMESTAMPTZ,
			end_at     TIMESTAMPTZ,
			city       TEXT NOT NULL DEFAULT '',
			venue_name TEXT NOT NULL DEFAULT '',
			organiser  TEXT NOT NULL DEFAULT '',
			tags       TEXT[] NOT NULL DEFAULT '{}',
			notes      TEXT NOT NULL DEFAULT '',
			poster_url TEXT NOT NULL DEFAULT '',
			caption    TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_events_status_start ON events(status, start_at)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_events_tags ON events USING GIN(tags)`)
	return err
}

// Close releases the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

// Published returns published events ordered by start, missing start
// first, insertion order on ties.
func (s *Postgres) Published(ctx context.Context) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, start_at, end_at, city, venue_name, organiser, tags, notes, poster_url, caption, status
		FROM events
		WHERE status = $1
		ORDER BY start_at ASC NULLS FIRST, seq ASC`, model.StatusPublished)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanPgEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return events, nil
}

// Get returns one event regardless of status.
func (s *Postgres) Get(ctx context.Context, id string) (model.Event, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, start_at, end_at, city, venue_name, organiser, tags, notes, poster_url, caption, status
		FROM events WHERE id = $1`, id)
	ev, err := scanPgEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	return ev, err
}

// Upsert inserts ev or replaces the stored event with the same id.
func (s *Postgres) Upsert(ctx context.Context, ev model.Event) error {
	if ev.ID == "" {
		return errors.New("upsert event: empty id")
	}
	tags := ev.Tags
	if tags == nil {
		tags = []string{}
	}
	status := ev.Status
	if status == "" {
		status = model.StatusPending
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, title, start_at, end_at, city, venue_name, organiser, tags, notes, poster_url, caption, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			city = EXCLUDED.city,
			venue_name = EXCLUDED.venue_name,
			organiser = EXCLUDED.organiser,
			tags = EXCLUDED.tags,
			notes = EXCLUDED.notes,
			poster_url = EXCLUDED.poster_url,
			caption = EXCLUDED.caption,
			status = EXCLUDED.status`,
		ev.ID, ev.Title, pgTime(ev.Start), pgTime(ev.End), ev.City, ev.VenueName, ev.Organiser,
		tags, ev.Notes, ev.PosterURL, ev.Caption, status)
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", ev.ID, err)
	}
	return nil
}

func scanPgEvent(row pgx.Row) (model.Event, error) {
	var (
		ev         model.Event
		start, end *time.Time
	)
	err := row.Scan(&ev.ID, &ev.Title, &start, &end, &ev.City, &ev.VenueName, &ev.Organiser,
		&ev.Tags, &ev.Notes, &ev.PosterURL, &ev.Caption, &ev.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ev, err
		}
		return ev, fmt.Errorf("scan event: %w", err)
	}
	if start != nil {
		ev.Start = *start
	}
	if end != nil {
		ev.End = *end
	}
	return ev, nil
}

// pgTime maps the zero time to NULL.
func pgTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
