// Package web serves the calendar page, its JSON API and the ICS export.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hilalcal/internal/calendar"
	"hilalcal/internal/config"
	"hilalcal/internal/filter"
	"hilalcal/internal/grid"
	appLog "hilalcal/internal/log"
	"hilalcal/internal/metrics"
	"hilalcal/internal/model"
	"hilalcal/internal/store"
)

const (
	catalogueTTL      = 30 * time.Second
	defaultSessionTTL = 30 * time.Minute
)

var errBadDate = errors.New("date must be YYYY-MM-DD")

// Server provides the calendar HTTP surface over a refreshed event snapshot.
type Server struct {
	cfg  *config.Config
	snap *store.Snapshot
	mux  *http.ServeMux
	loc  *time.Location
	now  func() time.Time

	// Catalogue of the loaded set, rebuilt when the snapshot reloads or the
	// TTL passes.
	catMu sync.RWMutex
	cat   *catalogue

	sessions *sessionStore
}

// Option customises a Server.
type Option func(*Server)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithSessionTTL sets how long an idle session is kept.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) { s.sessions.ttl = d }
}

// NewServer constructs a Server reading events from snap.
func NewServer(cfg *config.Config, snap *store.Snapshot, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		snap:     snap,
		mux:      http.NewServeMux(),
		loc:      cfg.Location(),
		now:      time.Now,
		sessions: newSessionStore(defaultSessionTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler with request metrics.
func (s *Server) Handler() http.Handler {
	return metricsMiddleware(s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleEventDetail)
	s.mux.HandleFunc("GET /api/filters", s.handleFilters)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/day", s.handleDay)
	s.mux.HandleFunc("GET /api/today", s.handleToday)

	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/{action}", s.handleSessionAction)

	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /calendar", s.handleCalendarPage)
	s.mux.Handle("GET /{$}", http.RedirectHandler("/calendar", http.StatusFound))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// catalogue is the loaded set with its derived city and tag lists.
type catalogue struct {
	events    []model.Event
	cities    []string
	tags      []string
	loadedAt  time.Time
	updatedAt time.Time
}

func (s *Server) catalogue() *catalogue {
	now := s.now()
	loadedAt := s.snap.LoadedAt()

	s.catMu.RLock()
	c := s.cat
	s.catMu.RUnlock()
	if c != nil && c.loadedAt.Equal(loadedAt) && now.Sub(c.updatedAt) < catalogueTTL {
		return c
	}

	events := s.snap.Events()
	c = &catalogue{
		events:    events,
		cities:    filter.Cities(events),
		tags:      filter.Tags(events),
		loadedAt:  loadedAt,
		updatedAt: now,
	}
	s.catMu.Lock()
	s.cat = c
	s.catMu.Unlock()
	return c
}

func (s *Server) pageOptions() calendar.Options {
	return calendar.Options{
		TagLimit: s.cfg.TagLimit,
		Grid: grid.Options{
			Location:     s.loc,
			WeekStart:    s.cfg.Weekday(),
			MaxEventRows: s.cfg.MaxEventRows,
			Now:          s.now(),
		},
	}
}

// requestPage builds a throwaway page with the filter and view carried in
// the query string.
func (s *Server) requestPage(q url.Values) *calendar.Page {
	p := calendar.NewPage(s.catalogue().events, s.pageOptions())
	fs := filterFromQuery(q)
	p.SetCity(fs.City)
	p.SetTags(fs.Tags)
	if v, ok := grid.ParseView(q.Get("view")); ok {
		p.SetView(v)
	}
	if q.Get("show_all") == "1" || q.Get("show_all") == "true" {
		p.Bar().ToggleShowAll()
	}
	return p
}

func filterFromQuery(q url.Values) model.FilterState {
	return model.FilterState{City: q.Get("city"), Tags: q["tag"]}.Normalize()
}

// parseDate reads a YYYY-MM-DD value in loc. Empty input yields def.
func parseDate(v string, loc *time.Location, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, loc)
	if err != nil {
		return time.Time{}, errBadDate
	}
	return t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
