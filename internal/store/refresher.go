package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "hilalcal/internal/log"
	"hilalcal/internal/metrics"
	"hilalcal/internal/model"
)

// Snapshot is the last loaded event set. The slice handed out by Events is
// never modified; a refresh swaps in a new one.
type Snapshot struct {
	mu       sync.RWMutex
	events   []model.Event
	loadedAt time.Time
}

// Events returns the current event set. Callers must not modify it.
func (s *Snapshot) Events() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events
}

// LoadedAt is the time of the last load, zero before the first.
func (s *Snapshot) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func (s *Snapshot) set(events []model.Event, at time.Time) {
	s.mu.Lock()
	s.events = events
	s.loadedAt = at
	s.mu.Unlock()
}

// Refresher reloads a Source into a Snapshot on a cron schedule.
type Refresher struct {
	src     Source
	snap    *Snapshot
	timeout time.Duration
	now     func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewRefresher returns a refresher with an empty snapshot.
func NewRefresher(src Source, timeout time.Duration) *Refresher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Refresher{src: src, snap: &Snapshot{events: []model.Event{}}, timeout: timeout, now: time.Now}
}

// Snapshot returns the snapshot kept current by r.
func (r *Refresher) Snapshot() *Snapshot { return r.snap }

// Refresh loads the source once. A failed load is logged and leaves an
// empty event set; the error is returned for callers that want it.
func (r *Refresher) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := r.now()
	events, err := r.src.Published(ctx)
	if err != nil {
		appLog.Error("event refresh failed; serving empty set", err)
		metrics.RecordRefresh(false, 0, 0)
		metrics.UpdateEventsLoaded(0)
		r.snap.set([]model.Event{}, r.now())
		return fmt.Errorf("refresh: %w", err)
	}
	if events == nil {
		events = []model.Event{}
	}
	done := r.now()
	r.snap.set(events, done)
	metrics.RecordRefresh(true, done.Sub(started).Seconds(), done.Unix())
	metrics.UpdateEventsLoaded(len(events))
	appLog.Info("events refreshed", "count", len(events), "took", done.Sub(started).String())
	return nil
}

// Start schedules Refresh on spec (standard 5-field cron). It does not run
// an initial refresh.
func (r *Refresher) Start(spec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("refresher already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		_ = r.Refresh(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	c.Start()
	r.cron = c
	appLog.Info("refresh scheduled", "cron", spec)
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}
