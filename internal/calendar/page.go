// Package calendar owns the public calendar page: the filter selection, the
// interaction state (detail view and day list), and the wiring between the
// filter bar, the filter engine, the grid renderer and the day grouper.
//
// A Page has a single owner and is not safe for concurrent use.
package calendar

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"hilalcal/internal/daygroup"
	"hilalcal/internal/filter"
	"hilalcal/internal/filterbar"
	"hilalcal/internal/grid"
	appLog "hilalcal/internal/log"
	"hilalcal/internal/model"
)

var (
	// ErrUnknownEvent is returned when an event id is not available to the
	// requested action.
	ErrUnknownEvent = errors.New("calendar: unknown event")
	// ErrInvalidTransition is returned when an action is not allowed in the
	// current interaction mode.
	ErrInvalidTransition = errors.New("calendar: invalid transition")
	// ErrNoOverflow is returned for a "more" click on a month cell whose
	// events all fit.
	ErrNoOverflow = fmt.Errorf("%w: day has no hidden events", ErrInvalidTransition)
)

// Mode is the interaction mode derived from the open views.
type Mode string

const (
	Idle        Mode = "idle"
	DayListOpen Mode = "day_list"
	DetailOpen  Mode = "detail"
)

// Options configure a Page.
type Options struct {
	TagLimit int
	Grid     grid.Options
	View     grid.View
}

// Page is the top-level calendar view.
//
// The detail view and the day list are tracked independently: the detail
// view opens on top of the day list without closing it, and closing either
// leaves the other as it was.
type Page struct {
	events []model.Event
	cities []string
	tags   []string

	filter model.FilterState
	bar    *filterbar.Bar

	view    grid.View
	gridOpt grid.Options

	selected *model.Event
	dayList  *daygroup.Group
}

// NewPage builds a Page over the published event set. events is expected in
// start order and is not re-sorted.
func NewPage(events []model.Event, opts Options) *Page {
	p := &Page{
		filter:  model.DefaultFilter(),
		view:    opts.View,
		gridOpt: opts.Grid,
	}
	if p.view == "" {
		p.view = grid.DefaultView
	}
	p.bar = filterbar.New(opts.TagLimit, filterbar.Handlers{
		OnCityChange: p.SetCity,
		OnTagsChange: p.SetTags,
		OnReset:      p.ResetFilters,
	})
	p.ReplaceEvents(events)
	return p
}

// ReplaceEvents swaps in a freshly loaded event set and recomputes the
// catalogues. Filter and interaction state are kept.
func (p *Page) ReplaceEvents(events []model.Event) {
	p.events = slices.Clone(events)
	p.cities = filter.Cities(p.events)
	p.tags = filter.Tags(p.events)
}

// Events returns the full, unfiltered event set.
func (p *Page) Events() []model.Event { return p.events }

// Cities returns the city catalogue.
func (p *Page) Cities() []string { return p.cities }

// Tags returns the tag catalogue.
func (p *Page) Tags() []string { return p.tags }

// Filter returns the current selection.
func (p *Page) Filter() model.FilterState {
	return model.FilterState{City: p.filter.City, Tags: slices.Clone(p.filter.Tags)}
}

// Bar returns the filter bar wired to this page.
func (p *Page) Bar() *filterbar.Bar { return p.bar }

// SetCity selects a city, or AllCities.
func (p *Page) SetCity(city string) {
	if city == "" {
		city = model.AllCities
	}
	p.filter.City = city
}

// SetTags replaces the tag selection. Duplicates are dropped.
func (p *Page) SetTags(tags []string) {
	p.filter = model.FilterState{City: p.filter.City, Tags: tags}.Normalize()
}

// ToggleTag flips one tag through the filter bar.
func (p *Page) ToggleTag(tag string) {
	p.bar.ToggleTag(p.filter.Tags, tag)
}

// ResetFilters clears city and tags.
func (p *Page) ResetFilters() {
	p.filter = filterbar.Reset()
}

// Filtered returns the events passing the current filter, recomputed from
// the full set on every call.
func (p *Page) Filtered() []model.Event {
	return filter.Apply(p.events, p.filter)
}

// VisibleTags returns the tag chips the filter bar shows.
func (p *Page) VisibleTags() []filterbar.Chip {
	return p.bar.Chips(p.tags, p.filter.Tags)
}

// View returns the active grid view.
func (p *Page) View() grid.View { return p.view }

// SetView switches the grid view. Interaction state is unaffected.
func (p *Page) SetView(v grid.View) { p.view = v }

// Renderer returns a grid renderer for the current view whose callbacks
// drive this page.
func (p *Page) Renderer() *grid.Renderer {
	return &grid.Renderer{
		View:    p.view,
		Options: p.gridOpt,
		OnEventActivated: func(ev model.Event) {
			if err := p.EventActivated(ev); err != nil {
				appLog.Debug("event activation ignored", "id", ev.ID, "mode", string(p.Mode()))
			}
		},
		OnOverflowRequested: func(date time.Time, events []model.Event) {
			if err := p.OverflowRequested(date, events); err != nil {
				appLog.Debug("overflow request ignored", "date", date.Format(time.DateOnly), "mode", string(p.Mode()))
			}
		},
	}
}

// Render lays out the filtered events around ref in the current view.
func (p *Page) Render(ref time.Time) grid.Layout {
	return p.Renderer().Render(ref, p.Filtered())
}

// Mode reports the interaction mode. An open detail view takes precedence
// over the day list beneath it.
func (p *Page) Mode() Mode {
	switch {
	case p.selected != nil:
		return DetailOpen
	case p.dayList != nil:
		return DayListOpen
	default:
		return Idle
	}
}

// EventActivated opens the detail view for ev.
func (p *Page) EventActivated(ev model.Event) error {
	if p.selected != nil {
		return ErrInvalidTransition
	}
	p.selected = &ev
	return nil
}

// ActivateByID opens the detail view for the event with id among the
// currently filtered events.
func (p *Page) ActivateByID(id string) error {
	for _, ev := range p.Filtered() {
		if ev.ID == id {
			return p.EventActivated(ev)
		}
	}
	return ErrUnknownEvent
}

// ClickEvent activates a rendered event through the grid renderer.
func (p *Page) ClickEvent(id string) error {
	if p.selected != nil {
		return ErrInvalidTransition
	}
	for _, ev := range p.Filtered() {
		if ev.ID == id {
			p.Renderer().Activate(ev)
			return nil
		}
	}
	return ErrUnknownEvent
}

// ClickMore follows the "more" link of the month cell for date. Only a cell
// that hides events has the link.
func (p *Page) ClickMore(date time.Time) error {
	if p.Mode() != Idle {
		return ErrInvalidTransition
	}
	loc := p.location()
	y, m, d := date.In(loc).Date()
	month := grid.BuildMonth(date.In(loc), p.Filtered(), p.gridOptions())
	for _, week := range month.Weeks {
		for _, cell := range week {
			cy, cm, cd := cell.Date.In(loc).Date()
			if cy != y || cm != m || cd != d {
				continue
			}
			if !cell.Overflowing() {
				return ErrNoOverflow
			}
			if p.Renderer().MoreClick(cell) != grid.MoreNone {
				return ErrInvalidTransition
			}
			return nil
		}
	}
	return ErrNoOverflow
}

// OverflowRequested opens the day list for date with events ordered by
// start. Only valid while nothing else is open.
func (p *Page) OverflowRequested(date time.Time, events []model.Event) error {
	if p.Mode() != Idle {
		return ErrInvalidTransition
	}
	g := daygroup.New(date, events)
	p.dayList = &g
	return nil
}

// OverflowForDate opens the day list for the filtered events on date.
func (p *Page) OverflowForDate(date time.Time) error {
	return p.OverflowRequested(date, daygroup.OnDate(p.Filtered(), date, p.location()))
}

// SelectFromDayList opens the detail view for an event of the open day list.
// The day list stays open beneath it.
func (p *Page) SelectFromDayList(id string) error {
	if p.dayList == nil || p.selected != nil {
		return ErrInvalidTransition
	}
	for _, ev := range p.dayList.Events {
		if ev.ID == id {
			return p.EventActivated(ev)
		}
	}
	return ErrUnknownEvent
}

// CloseDetail closes the detail view, returning to the day list if it is
// still open.
func (p *Page) CloseDetail() {
	p.selected = nil
}

// CloseDayList discards the day list. An open detail view stays open.
func (p *Page) CloseDayList() {
	p.dayList = nil
}

// Selected returns the event shown in the detail view.
func (p *Page) Selected() (model.Event, bool) {
	if p.selected == nil {
		return model.Event{}, false
	}
	return *p.selected, true
}

// DayList returns the open day list.
func (p *Page) DayList() (daygroup.Group, bool) {
	if p.dayList == nil {
		return daygroup.Group{}, false
	}
	return *p.dayList, true
}

func (p *Page) gridOptions() grid.Options {
	o := p.gridOpt
	o.Location = p.location()
	return o
}

func (p *Page) location() *time.Location {
	if p.gridOpt.Location != nil {
		return p.gridOpt.Location
	}
	return grid.DefaultOptions().Location
}
