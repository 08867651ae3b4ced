package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"hilalcal/internal/calendar"
	"hilalcal/internal/filterbar"
	"hilalcal/internal/grid"
	"hilalcal/internal/ics"
	appLog "hilalcal/internal/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.New("").Funcs(template.FuncMap{
	"join": strings.Join,
}).ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	Title    string
	Today    string
	Summary  string
	Weekdays []string
	Weeks    [][]pageCell
	Classes  []string
	Cities   []string
	City     string
	Chips    []filterbar.Chip
	More     string
}

type pageCell struct {
	Date       string
	Day        int
	InMonth    bool
	Today      bool
	Annotation string
	Events     []pageEvent
	More       int
}

type pageEvent struct {
	ID    string
	Title string
	Time  string
}

func newPageWeeks(m *grid.MonthGrid, loc *time.Location) [][]pageCell {
	if m == nil {
		return nil
	}
	weeks := make([][]pageCell, 0, len(m.Weeks))
	for _, row := range m.Weeks {
		cells := make([]pageCell, 0, len(row))
		for _, c := range row {
			pc := pageCell{
				Date:       c.Date.Format(time.DateOnly),
				Day:        c.Date.Day(),
				InMonth:    c.InMonth,
				Today:      c.Today,
				Annotation: c.Decoration.Annotation,
				More:       c.More,
			}
			for _, ev := range c.Visible {
				pe := pageEvent{ID: ev.ID, Title: ev.DisplayTitle()}
				if ev.HasStart() {
					pe.Time = grid.TimeLabel(ev.Start.In(loc))
				}
				pc.Events = append(pc.Events, pe)
			}
			cells = append(cells, pc)
		}
		weeks = append(weeks, cells)
	}
	return weeks
}

func weekdayHeaders(start time.Weekday) []string {
	out := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		out = append(out, time.Weekday((int(start) + i) % 7).String()[:3])
	}
	return out
}

// handleCalendarPage renders the month grid as a static HTML page. The root
// element carries data-ready="true" once rendered so the snapshot capture
// can wait for it.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now().In(s.loc)
	ref, err := parseDate(q.Get("date"), s.loc, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := s.requestPage(q)
	p.SetView(grid.Month)
	layout := p.Render(ref)

	data := &pageData{
		Title:    layout.Title,
		Today:    calendar.TodayLabel(now, s.loc),
		Summary:  calendar.Summary(p.Filter()),
		Weekdays: weekdayHeaders(s.cfg.Weekday()),
		Weeks:    newPageWeeks(layout.Month, s.loc),
		Classes:  grid.ClassNames(grid.Month),
		Cities:   p.Cities(),
		City:     p.Filter().City,
		Chips:    p.VisibleTags(),
		More:     p.Bar().MoreLabel(p.Tags()),
	}

	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "calendar.html", data); err != nil {
		appLog.Error("calendar page render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render calendar")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleICS exports the filtered events as an ICS feed.
//
// GET /calendar.ics?city=Leeds
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	p := s.requestPage(r.URL.Query())
	var buf bytes.Buffer
	if err := ics.Encode(&buf, "Community Calendar", p.Filtered(), s.now()); err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
