package calendar

import (
	"strings"
	"time"

	"hilalcal/internal/daygroup"
	"hilalcal/internal/filterbar"
	"hilalcal/internal/grid"
	"hilalcal/internal/hijri"
	"hilalcal/internal/model"
)

// Detail is the event detail view. Absent optional fields are omitted.
type Detail struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	When      string  `json:"when,omitempty"`
	Hijri     string  `json:"hijri,omitempty"`
	PosterURL string  `json:"poster_url,omitempty"`
	Caption   string  `json:"caption,omitempty"`
	VenueName string  `json:"venue_name,omitempty"`
	City      string  `json:"city,omitempty"`
	Organiser string  `json:"organiser,omitempty"`
	Tags      []Label `json:"tags,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

// Label pairs a raw tag with its display form.
type Label struct {
	Tag   string `json:"tag"`
	Label string `json:"label"`
}

// NewDetail builds the detail view of ev in loc.
func NewDetail(ev model.Event, loc *time.Location) Detail {
	if loc == nil {
		loc = time.Local
	}
	d := Detail{
		ID:        ev.ID,
		Title:     ev.DisplayTitle(),
		PosterURL: ev.PosterURL,
		Caption:   ev.Caption,
		VenueName: ev.VenueName,
		City:      ev.City,
		Organiser: ev.Organiser,
		Notes:     ev.Notes,
	}
	if ev.HasStart() {
		start := ev.Start.In(loc)
		d.When = start.Format("Monday 02 Jan 2006") + ", " + grid.TimeLabel(start)
		d.Hijri = hijri.Format(hijri.ToLunarDate(start)) + " AH"
	}
	for _, t := range ev.Tags {
		d.Tags = append(d.Tags, Label{Tag: t, Label: filterbar.FormatTagLabel(t)})
	}
	return d
}

// DayListItem is one row of the day list.
type DayListItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Time  string `json:"time,omitempty"`
}

// DayListView is the "events on this day" panel.
type DayListView struct {
	Date  string        `json:"date"`
	Label string        `json:"label"`
	Items []DayListItem `json:"items"`
}

// NewDayListView formats a day group in loc.
func NewDayListView(g daygroup.Group, loc *time.Location) DayListView {
	if loc == nil {
		loc = time.Local
	}
	date := g.Date.In(loc)
	v := DayListView{
		Date:  date.Format(time.DateOnly),
		Label: date.Format("Monday, 02 Jan 2006"),
		Items: make([]DayListItem, 0, len(g.Events)),
	}
	for _, ev := range g.Events {
		item := DayListItem{ID: ev.ID, Title: ev.DisplayTitle()}
		if ev.HasStart() {
			item.Time = ev.Start.In(loc).Format("15:04")
		}
		v.Items = append(v.Items, item)
	}
	return v
}

// Summary describes the active filter, e.g.
// "Showing: London · tags: Eid, Lecture".
func Summary(fs model.FilterState) string {
	var b strings.Builder
	b.WriteString("Showing: ")
	if fs.City == model.AllCities || fs.City == "" {
		b.WriteString("all cities")
	} else {
		b.WriteString(fs.City)
	}
	if len(fs.Tags) == 0 {
		b.WriteString(" · all tags")
		return b.String()
	}
	labels := make([]string, 0, len(fs.Tags))
	for _, t := range fs.Tags {
		labels = append(labels, filterbar.FormatTagLabel(t))
	}
	b.WriteString(" · tags: ")
	b.WriteString(strings.Join(labels, ", "))
	return b.String()
}

// TodayLabel renders the header date in both calendars, e.g.
// "Today: 1 March 2025 · 1 Ramadan 1446 AH".
func TodayLabel(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	return "Today: " + now.Format("2 January 2006") + " · " + hijri.Format(hijri.ToLunarDate(now)) + " AH"
}

// State is a serialisable snapshot of a page.
type State struct {
	Mode    Mode              `json:"mode"`
	View    grid.View         `json:"view"`
	Filter  model.FilterState `json:"filter"`
	Summary string            `json:"summary"`
	ShowAll bool              `json:"show_all_tags"`
	Detail  *Detail           `json:"detail,omitempty"`
	DayList *DayListView      `json:"day_list,omitempty"`
}

// State captures the page for display in loc.
func (p *Page) State(loc *time.Location) State {
	st := State{
		Mode:    p.Mode(),
		View:    p.view,
		Filter:  p.Filter(),
		Summary: Summary(p.filter),
		ShowAll: p.bar.ShowAll,
	}
	if ev, ok := p.Selected(); ok {
		d := NewDetail(ev, loc)
		st.Detail = &d
	}
	if g, ok := p.DayList(); ok {
		v := NewDayListView(g, loc)
		st.DayList = &v
	}
	return st
}
