package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"hilalcal/internal/calendar"
	"hilalcal/internal/grid"
	appLog "hilalcal/internal/log"
	"hilalcal/internal/metrics"
)

var (
	errBadAction = errors.New("unknown action")
	errBadInput  = errors.New("invalid request body")
)

// session is one visitor's calendar page. mu serialises every action on it.
type session struct {
	mu       sync.Mutex
	page     *calendar.Page
	loadedAt time.Time
	lastSeen time.Time
}

type sessionStore struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[uuid.UUID]*session
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{ttl: ttl, m: make(map[uuid.UUID]*session)}
}

func (st *sessionStore) create(p *calendar.Page, loadedAt, now time.Time) uuid.UUID {
	id := uuid.New()
	st.mu.Lock()
	st.sweepLocked(now)
	st.m[id] = &session{page: p, loadedAt: loadedAt, lastSeen: now}
	n := len(st.m)
	st.mu.Unlock()
	metrics.UpdateSessionsActive(n)
	return id
}

func (st *sessionStore) get(id uuid.UUID, now time.Time) (*session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.m[id]
	if !ok {
		return nil, false
	}
	if st.ttl > 0 && now.Sub(sess.lastSeen) > st.ttl {
		delete(st.m, id)
		metrics.UpdateSessionsActive(len(st.m))
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

func (st *sessionStore) count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.m)
}

func (st *sessionStore) sweepLocked(now time.Time) {
	if st.ttl <= 0 {
		return
	}
	for id, sess := range st.m {
		if now.Sub(sess.lastSeen) > st.ttl {
			delete(st.m, id)
		}
	}
}

// actionRequest is the body of POST /api/sessions/{id}/{action}. Each action
// reads only the fields it needs.
type actionRequest struct {
	City string   `json:"city"`
	Tags []string `json:"tags"`
	Tag  string   `json:"tag"`
	ID   string   `json:"id"`
	Date string   `json:"date"`
	View string   `json:"view"`
}

type sessionResponse struct {
	ID    string         `json:"id"`
	State calendar.State `json:"state"`
}

// handleCreateSession starts a server-side page. The optional body may carry
// an initial city, tags and view.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAction(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cat := s.catalogue()
	p := calendar.NewPage(cat.events, s.pageOptions())
	if req.City != "" {
		p.SetCity(req.City)
	}
	if len(req.Tags) > 0 {
		p.SetTags(req.Tags)
	}
	if v, ok := grid.ParseView(req.View); ok {
		p.SetView(v)
	}

	id := s.sessions.create(p, cat.loadedAt, s.now())
	appLog.Debug("session created", "id", id.String())
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id.String(), State: p.State(s.loc)})
}

// handleGetSession returns the current state of a session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, id, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.syncSession(sess)
	writeJSON(w, http.StatusOK, sessionResponse{ID: id.String(), State: sess.page.State(s.loc)})
}

// handleSessionAction applies one interaction to a session.
//
// POST /api/sessions/{id}/{action}
func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	sess, id, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	action := r.PathValue("action")
	req, err := decodeAction(r)
	if err != nil {
		metrics.RecordSessionAction(action, "bad_request")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.syncSession(sess)

	err = s.apply(sess.page, action, req)
	switch {
	case err == nil:
		metrics.RecordSessionAction(action, "ok")
		writeJSON(w, http.StatusOK, sessionResponse{ID: id.String(), State: sess.page.State(s.loc)})
	case errors.Is(err, errBadAction):
		metrics.RecordSessionAction("unknown", "not_found")
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, calendar.ErrUnknownEvent):
		metrics.RecordSessionAction(action, "not_found")
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, calendar.ErrInvalidTransition):
		metrics.RecordSessionAction(action, "conflict")
		writeError(w, http.StatusConflict, err.Error())
	default:
		metrics.RecordSessionAction(action, "bad_request")
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) apply(p *calendar.Page, action string, req actionRequest) error {
	switch action {
	case "city":
		p.Bar().SelectCity(req.City)
	case "tags":
		p.SetTags(req.Tags)
	case "toggle":
		if req.Tag == "" {
			return errBadInput
		}
		p.ToggleTag(req.Tag)
	case "reset":
		p.Bar().Reset()
	case "show-all":
		p.Bar().ToggleShowAll()
	case "view":
		v, ok := grid.ParseView(req.View)
		if !ok {
			return errBadInput
		}
		p.SetView(v)
	case "activate":
		if _, open := p.DayList(); open {
			return p.SelectFromDayList(req.ID)
		}
		return p.ClickEvent(req.ID)
	case "overflow":
		if req.Date == "" {
			return errBadDate
		}
		date, err := parseDate(req.Date, s.loc, time.Time{})
		if err != nil {
			return err
		}
		return p.ClickMore(date)
	case "close-detail":
		p.CloseDetail()
	case "close-day":
		p.CloseDayList()
	default:
		return errBadAction
	}
	return nil
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session, uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, uuid.Nil, false
	}
	sess, ok := s.sessions.get(id, s.now())
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, uuid.Nil, false
	}
	return sess, id, true
}

// syncSession swaps in a reloaded event set. Callers hold sess.mu.
func (s *Server) syncSession(sess *session) {
	cat := s.catalogue()
	if cat.loadedAt.Equal(sess.loadedAt) {
		return
	}
	sess.page.ReplaceEvents(cat.events)
	sess.loadedAt = cat.loadedAt
}

func decodeAction(r *http.Request) (actionRequest, error) {
	var req actionRequest
	if r.Body == nil {
		return req, nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		return req, errBadInput
	}
	return req, nil
}
