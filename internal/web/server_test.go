package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hilalcal/internal/calendar"
	"hilalcal/internal/config"
	"hilalcal/internal/grid"
	"hilalcal/internal/model"
	"hilalcal/internal/store"
)

func at(day, hour int) time.Time {
	return time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC)
}

type staticSource struct{ events []model.Event }

func (s staticSource) Published(context.Context) ([]model.Event, error) { return s.events, nil }

// fakeClock is a settable clock shared by the server and the test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func publishedEvents() []model.Event {
	return []model.Event{
		{ID: "4", Title: "Tafsir Circle", Start: at(1, 7), City: "Leeds", Tags: []string{"Lecture"}, Status: model.StatusPublished},
		{ID: "3", Title: "Nikah Workshop", Start: at(1, 12), City: "London", Tags: []string{"Nikah", "Workshop"}, Status: model.StatusPublished},
		{ID: "2", Title: "Iftar", Start: at(1, 18), City: "Leeds", Tags: []string{"Iftar"}, Status: model.StatusPublished},
		{ID: "5", Start: at(4, 19), City: "London", Tags: []string{"Lecture", "Eid"}, Status: model.StatusPublished},
		{ID: "1", Title: "Eid Prayer", Start: at(31, 8), City: "London", VenueName: "Regent's Park Mosque", Tags: []string{"Eid", "Prayer"}, Status: model.StatusPublished},
	}
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *fakeClock) {
	t.Helper()
	r := store.NewRefresher(staticSource{events: publishedEvents()}, time.Second)
	require.NoError(t, r.Refresh(context.Background()))

	clock := &fakeClock{t: at(1, 12)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewServer(config.DefaultConfig(), r.Snapshot(), opts...), clock
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func eventIDs(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestHealthAndRoot(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/calendar", rec.Header().Get("Location"))
}

func TestEventsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[eventsResponse](t, rec)
	require.Equal(t, []string{"4", "3", "2", "5", "1"}, eventIDs(all.Events))
	require.Equal(t, []string{"Leeds", "London"}, all.Cities)
	require.Equal(t, "Showing: all cities · all tags", all.Summary)

	london := decode[eventsResponse](t, do(t, h, http.MethodGet, "/api/events?city=London", ""))
	require.Equal(t, []string{"3", "5", "1"}, eventIDs(london.Events))
	require.Equal(t, 5, london.Total)

	both := decode[eventsResponse](t, do(t, h, http.MethodGet, "/api/events?tag=Lecture&tag=Eid&tag=Lecture", ""))
	require.Equal(t, []string{"5"}, eventIDs(both.Events))
	require.Equal(t, []string{"Lecture", "Eid"}, both.Filter.Tags)
	require.Equal(t, "Showing: all cities · tags: Lecture, Eid", both.Summary)

	none := decode[eventsResponse](t, do(t, h, http.MethodGet, "/api/events?city=York", ""))
	require.NotNil(t, none.Events)
	require.Empty(t, none.Events)
}

func TestFiltersEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.TagLimit = 2
	h := s.Handler()

	resp := decode[filtersResponse](t, do(t, h, http.MethodGet, "/api/filters?tag=Workshop", ""))
	require.Len(t, resp.Chips, 3)
	require.Equal(t, "Eid", resp.Chips[0].Tag)
	require.Equal(t, "Workshop", resp.Chips[2].Tag)
	require.True(t, resp.Chips[2].Active)
	require.Equal(t, "Show more (4)", resp.MoreLabel)

	resp = decode[filtersResponse](t, do(t, h, http.MethodGet, "/api/filters?show_all=1", ""))
	require.Len(t, resp.Chips, 6)
	require.True(t, resp.ShowAll)
	require.Equal(t, "Show fewer", resp.MoreLabel)
}

func TestCalendarEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	month := decode[calendarResponse](t, do(t, h, http.MethodGet, "/api/calendar", ""))
	require.Equal(t, grid.Month, month.Layout.View)
	require.Equal(t, "March 2025", month.Layout.Title)
	require.NotNil(t, month.Layout.Month)
	require.Equal(t, "Today: 1 March 2025 · 1 Ramadan 1446 AH", month.Today)
	require.Contains(t, month.Classes, "rounded-full")

	week := decode[calendarResponse](t, do(t, h, http.MethodGet, "/api/calendar?view=week&date=2025-03-04", ""))
	require.Equal(t, grid.Week, week.Layout.View)
	require.Len(t, week.Layout.Days, 7)
	require.Nil(t, week.Layout.Month)
	require.Contains(t, week.Classes, "rounded-md")

	rec := do(t, h, http.MethodGet, "/api/calendar?date=March", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDayEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	day := decode[calendar.DayListView](t, do(t, h, http.MethodGet, "/api/day?date=2025-03-01", ""))
	require.Equal(t, "Saturday, 01 Mar 2025", day.Label)
	require.Len(t, day.Items, 3)
	require.Equal(t, "4", day.Items[0].ID)
	require.Equal(t, "07:00", day.Items[0].Time)
	require.Equal(t, "2", day.Items[2].ID)

	leeds := decode[calendar.DayListView](t, do(t, h, http.MethodGet, "/api/day?date=2025-03-01&city=Leeds", ""))
	require.Len(t, leeds.Items, 2)

	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/day", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/day?date=01/03/2025", "").Code)
}

func TestEventDetailEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	d := decode[calendar.Detail](t, do(t, h, http.MethodGet, "/api/events/1", ""))
	require.Equal(t, "Eid Prayer", d.Title)
	require.Equal(t, "Monday 31 Mar 2025, 9am", d.When)
	require.Equal(t, "1 Shawwal 1446 AH", d.Hijri)
	require.Empty(t, d.Organiser)

	untitled := decode[calendar.Detail](t, do(t, h, http.MethodGet, "/api/events/5", ""))
	require.Equal(t, model.UntitledEvent, untitled.Title)

	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/events/nope", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/events/1?city=Leeds", "").Code)
}

func TestTodayEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	resp := decode[todayResponse](t, do(t, s.Handler(), http.MethodGet, "/api/today", ""))
	require.Equal(t, "Today: 1 March 2025 · 1 Ramadan 1446 AH", resp.Label)
	require.Equal(t, "2025-03-01", resp.Date)
	require.Equal(t, model.LunarDate{Day: 1, MonthIndex: 8, Year: 1446}, resp.Hijri)
	require.Equal(t, "Europe/London", resp.Timezone)
}

func TestSessionFlow(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.MaxEventRows = 2
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[sessionResponse](t, rec)
	require.Equal(t, calendar.Idle, created.State.Mode)
	base := "/api/sessions/" + created.ID

	act := func(action, body string) *httptest.ResponseRecorder {
		return do(t, h, http.MethodPost, base+"/"+action, body)
	}

	st := decode[sessionResponse](t, act("overflow", `{"date":"2025-03-01"}`)).State
	require.Equal(t, calendar.DayListOpen, st.Mode)
	require.Len(t, st.DayList.Items, 3)

	st = decode[sessionResponse](t, act("activate", `{"id":"3"}`)).State
	require.Equal(t, calendar.DetailOpen, st.Mode)
	require.Equal(t, "Nikah Workshop", st.Detail.Title)
	require.NotNil(t, st.DayList)

	require.Equal(t, http.StatusConflict, act("activate", `{"id":"2"}`).Code)
	require.Equal(t, http.StatusConflict, act("overflow", `{"date":"2025-03-04"}`).Code)

	st = decode[sessionResponse](t, act("city", `{"city":"London"}`)).State
	require.Equal(t, calendar.DetailOpen, st.Mode)
	require.Equal(t, "London", st.Filter.City)
	require.Equal(t, "Showing: London · all tags", st.Summary)

	st = decode[sessionResponse](t, act("close-detail", "")).State
	require.Equal(t, calendar.DayListOpen, st.Mode)

	require.Equal(t, http.StatusNotFound, act("activate", `{"id":"5"}`).Code)

	st = decode[sessionResponse](t, act("close-day", "")).State
	require.Equal(t, calendar.Idle, st.Mode)

	st = decode[sessionResponse](t, act("toggle", `{"tag":"Eid"}`)).State
	require.Equal(t, []string{"Eid"}, st.Filter.Tags)
	st = decode[sessionResponse](t, act("show-all", "")).State
	require.True(t, st.ShowAll)
	st = decode[sessionResponse](t, act("reset", "")).State
	require.Equal(t, model.AllCities, st.Filter.City)
	require.Empty(t, st.Filter.Tags)
	require.True(t, st.ShowAll)

	st = decode[sessionResponse](t, act("view", `{"view":"list"}`)).State
	require.Equal(t, grid.List, st.View)

	got := decode[sessionResponse](t, do(t, h, http.MethodGet, base, ""))
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, grid.List, got.State.View)

	require.Equal(t, http.StatusBadRequest, act("toggle", `{}`).Code)
	require.Equal(t, http.StatusBadRequest, act("city", `{not json`).Code)
	require.Equal(t, http.StatusBadRequest, act("overflow", `{"date":"tomorrow"}`).Code)
	require.Equal(t, http.StatusNotFound, act("dance", "").Code)
}

func TestSessionOverflowNeedsHiddenEvents(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	created := decode[sessionResponse](t, do(t, h, http.MethodPost, "/api/sessions", ""))
	base := "/api/sessions/" + created.ID

	// Three events fit a three-row cell; a single event trivially does.
	require.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, base+"/overflow", `{"date":"2025-03-01"}`).Code)
	require.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, base+"/overflow", `{"date":"2025-03-04"}`).Code)
	st := decode[sessionResponse](t, do(t, h, http.MethodGet, base, "")).State
	require.Equal(t, calendar.Idle, st.Mode)
	require.Nil(t, st.DayList)

	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, base+"/activate", `{"id":"nope"}`).Code)
	st = decode[sessionResponse](t, do(t, h, http.MethodPost, base+"/activate", `{"id":"5"}`)).State
	require.Equal(t, calendar.DetailOpen, st.Mode)
	require.Equal(t, model.UntitledEvent, st.Detail.Title)

	s.cfg.MaxEventRows = 2
	created = decode[sessionResponse](t, do(t, h, http.MethodPost, "/api/sessions", ""))
	rec := do(t, h, http.MethodPost, "/api/sessions/"+created.ID+"/overflow", `{"date":"2025-03-01"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	st = decode[sessionResponse](t, rec).State
	require.Equal(t, calendar.DayListOpen, st.Mode)
	require.Equal(t, "2025-03-01", st.DayList.Date)
	require.Len(t, st.DayList.Items, 3)
}

func TestSessionCreateWithInitialFilter(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodPost, "/api/sessions", `{"city":"Leeds","tags":["Iftar"],"view":"week"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	st := decode[sessionResponse](t, rec).State
	require.Equal(t, "Leeds", st.Filter.City)
	require.Equal(t, []string{"Iftar"}, st.Filter.Tags)
	require.Equal(t, grid.Week, st.View)
}

func TestSessionLookup(t *testing.T) {
	s, clock := newTestServer(t, WithSessionTTL(time.Minute))
	h := s.Handler()

	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/sessions/not-a-uuid", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/sessions/6f1c1f8e-7d0e-4a53-9c5e-3c1a4b1f0d11", "").Code)

	created := decode[sessionResponse](t, do(t, h, http.MethodPost, "/api/sessions", ""))
	require.Equal(t, 1, s.sessions.count())

	clock.Advance(30 * time.Second)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/sessions/"+created.ID, "").Code)

	clock.Advance(2 * time.Minute)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/sessions/"+created.ID, "").Code)
	require.Equal(t, 0, s.sessions.count())
}

func TestICSExport(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/calendar.ics?city=Leeds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")

	body := rec.Body.String()
	require.Contains(t, body, "BEGIN:VCALENDAR")
	require.Contains(t, body, "SUMMARY:Iftar")
	require.NotContains(t, body, "Nikah")
}

func TestCalendarPage(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/calendar?city=London", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	require.Contains(t, body, `data-ready="true"`)
	require.Contains(t, body, "March 2025")
	require.Contains(t, body, "Today: 1 March 2025 · 1 Ramadan 1446 AH")
	require.Contains(t, body, `<span class="lunar">Ram.</span>`)
	require.Contains(t, body, "Nikah Workshop")
	require.NotContains(t, body, "Tafsir Circle")
	require.Contains(t, body, "<th>Mon</th>")

	require.Equal(t, http.StatusBadRequest, do(t, s.Handler(), http.MethodGet, "/calendar?date=x", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	do(t, h, http.MethodGet, "/api/today", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "hilalcal_http_requests_total")
	require.Contains(t, rec.Body.String(), `route="GET /api/today"`)
}
