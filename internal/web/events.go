package web

import (
	"errors"
	"net/http"
	"time"

	"hilalcal/internal/calendar"
	"hilalcal/internal/filterbar"
	"hilalcal/internal/grid"
	"hilalcal/internal/hijri"
	appLog "hilalcal/internal/log"
	"hilalcal/internal/model"
)

type eventsResponse struct {
	Events   []model.Event     `json:"events"`
	Count    int               `json:"count"`
	Total    int               `json:"total"`
	Cities   []string          `json:"cities"`
	Tags     []string          `json:"tags"`
	Filter   model.FilterState `json:"filter"`
	Summary  string            `json:"summary"`
	LoadedAt time.Time         `json:"loaded_at"`
}

// handleEvents returns the filtered event set.
//
// GET /api/events?city=London&tag=Eid&tag=Lecture
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	cat := s.catalogue()
	p := s.requestPage(r.URL.Query())
	events := p.Filtered()
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:   events,
		Count:    len(events),
		Total:    len(cat.events),
		Cities:   cat.cities,
		Tags:     cat.tags,
		Filter:   p.Filter(),
		Summary:  calendar.Summary(p.Filter()),
		LoadedAt: cat.loadedAt,
	})
}

type filtersResponse struct {
	Cities    []string          `json:"cities"`
	Chips     []filterbar.Chip  `json:"chips"`
	MoreLabel string            `json:"more_label,omitempty"`
	ShowAll   bool              `json:"show_all"`
	Filter    model.FilterState `json:"filter"`
	Summary   string            `json:"summary"`
}

// handleFilters describes the filter bar: city options and tag chips.
//
// GET /api/filters?show_all=1&tag=Eid
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	p := s.requestPage(r.URL.Query())
	writeJSON(w, http.StatusOK, filtersResponse{
		Cities:    p.Cities(),
		Chips:     p.VisibleTags(),
		MoreLabel: p.Bar().MoreLabel(p.Tags()),
		ShowAll:   p.Bar().ShowAll,
		Filter:    p.Filter(),
		Summary:   calendar.Summary(p.Filter()),
	})
}

type calendarResponse struct {
	Layout  grid.Layout `json:"layout"`
	Classes []string    `json:"classes"`
	Summary string      `json:"summary"`
	Today   string      `json:"today"`
}

// handleCalendar renders the grid for a view around a date.
//
// GET /api/calendar?view=week&date=2025-03-01
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now().In(s.loc)
	ref, err := parseDate(q.Get("date"), s.loc, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := s.requestPage(q)
	writeJSON(w, http.StatusOK, calendarResponse{
		Layout:  p.Render(ref),
		Classes: grid.ClassNames(p.View()),
		Summary: calendar.Summary(p.Filter()),
		Today:   calendar.TodayLabel(now, s.loc),
	})
}

// handleDay returns the filtered events of one day, ordered by start.
//
// GET /api/day?date=2025-03-01
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("date") == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := parseDate(q.Get("date"), s.loc, time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := s.requestPage(q)
	if err := p.OverflowForDate(date); err != nil {
		appLog.Error("day list failed", err, "date", q.Get("date"))
		writeError(w, http.StatusInternalServerError, "failed to group day")
		return
	}
	g, _ := p.DayList()
	writeJSON(w, http.StatusOK, calendar.NewDayListView(g, s.loc))
}

// handleEventDetail returns the detail view of a visible event.
//
// GET /api/events/{id}
func (s *Server) handleEventDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p := s.requestPage(r.URL.Query())
	if err := p.ActivateByID(id); err != nil {
		if errors.Is(err, calendar.ErrUnknownEvent) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ev, _ := p.Selected()
	writeJSON(w, http.StatusOK, calendar.NewDetail(ev, s.loc))
}

type todayResponse struct {
	Label      string          `json:"label"`
	Date       string          `json:"date"`
	Hijri      model.LunarDate `json:"hijri"`
	HijriLabel string          `json:"hijri_label"`
	Timezone   string          `json:"timezone"`
}

// handleToday returns the header date in both calendars.
func (s *Server) handleToday(w http.ResponseWriter, _ *http.Request) {
	now := s.now().In(s.loc)
	ld := hijri.ToLunarDate(now)
	writeJSON(w, http.StatusOK, todayResponse{
		Label:      calendar.TodayLabel(now, s.loc),
		Date:       now.Format(time.DateOnly),
		Hijri:      ld,
		HijriLabel: hijri.Format(ld) + " AH",
		Timezone:   s.loc.String(),
	})
}
