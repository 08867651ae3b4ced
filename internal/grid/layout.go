package grid

import (
	"fmt"
	"time"

	"hilalcal/internal/daygroup"
	"hilalcal/internal/model"
)

const (
	// DefaultMaxEventRows is the month cell row cap, the "more" link included.
	DefaultMaxEventRows = 3

	daysPerWeek   = 7
	weeksPerMonth = 6
)

// Options control layout. Zero fields are replaced by DefaultOptions values
// in normalize.
type Options struct {
	// Location is the display timezone used to place events on days.
	Location *time.Location
	// WeekStart is the first column of every row.
	WeekStart time.Weekday
	// MaxEventRows caps the rows rendered per month cell.
	MaxEventRows int
	// SlotMin / SlotMax bound the visible hours of the week timeline as an
	// offset from midnight.
	SlotMin time.Duration
	SlotMax time.Duration
	// Now marks the "today" cell. The zero value marks nothing.
	Now time.Time
}

// DefaultOptions matches the public calendar: London time, Monday first,
// three rows per cell, 08:00–23:00 timeline.
func DefaultOptions() Options {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		loc = time.UTC
	}
	return Options{
		Location:     loc,
		WeekStart:    time.Monday,
		MaxEventRows: DefaultMaxEventRows,
		SlotMin:      8 * time.Hour,
		SlotMax:      23 * time.Hour,
	}
}

func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.Location == nil {
		o.Location = def.Location
	}
	if o.WeekStart < time.Sunday || o.WeekStart > time.Saturday {
		o.WeekStart = def.WeekStart
	}
	if o.MaxEventRows <= 0 {
		o.MaxEventRows = def.MaxEventRows
	}
	if o.SlotMax <= o.SlotMin || o.SlotMax <= 0 {
		o.SlotMin, o.SlotMax = def.SlotMin, def.SlotMax
	}
	return o
}

// Cell is one day of the month grid.
type Cell struct {
	Date       time.Time     `json:"date"`
	InMonth    bool          `json:"in_month"`
	Today      bool          `json:"today,omitempty"`
	Decoration Decoration    `json:"decoration"`
	Events     []model.Event `json:"events"`
	// Visible are the events that fit in the cell; More counts the rest.
	Visible []model.Event `json:"visible"`
	More    int           `json:"more,omitempty"`
}

// Overflowing reports whether the cell shows a "more" link.
func (c Cell) Overflowing() bool { return c.More > 0 }

// MonthGrid is the month view: six full weeks covering the month.
type MonthGrid struct {
	Title string   `json:"title"`
	Weeks [][]Cell `json:"weeks"`
}

// Day is one column of the week timeline or one group of the list view.
type Day struct {
	Date   time.Time     `json:"date"`
	Header string        `json:"header"`
	Today  bool          `json:"today,omitempty"`
	Events []PlacedEvent `json:"events"`
}

// PlacedEvent is an event positioned in a week or list day.
type PlacedEvent struct {
	Event      model.Event `json:"event"`
	Decoration Decoration  `json:"decoration"`
	// TimeLabel is the formatted start, e.g. "6:30pm".
	TimeLabel string `json:"time_label"`
	// InSlotWindow is false when a timed event starts outside the
	// timeline's visible hours.
	InSlotWindow bool `json:"in_slot_window"`
}

// WeekGrid is shared by the week timeline and the list view.
type WeekGrid struct {
	Title string `json:"title"`
	Days  []Day  `json:"days"`
}

// Layout is the rendered calendar for one view. Exactly one of Month or
// Days is populated.
type Layout struct {
	View  View       `json:"view"`
	Title string     `json:"title"`
	Month *MonthGrid `json:"month,omitempty"`
	Days  []Day      `json:"days,omitempty"`
}

// BuildMonth lays out the month containing ref.
func BuildMonth(ref time.Time, events []model.Event, opts Options) MonthGrid {
	opts = opts.normalize()
	ref = ref.In(opts.Location)
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, opts.Location)
	start := startOfWeek(first, opts.WeekStart)

	grid := MonthGrid{
		Title: first.Format("January 2006"),
		Weeks: make([][]Cell, 0, weeksPerMonth),
	}
	day := start
	for w := 0; w < weeksPerMonth; w++ {
		row := make([]Cell, 0, daysPerWeek)
		for d := 0; d < daysPerWeek; d++ {
			row = append(row, buildCell(day, first.Month(), events, opts))
			day = day.AddDate(0, 0, 1)
		}
		grid.Weeks = append(grid.Weeks, row)
	}
	return grid
}

func buildCell(day time.Time, month time.Month, events []model.Event, opts Options) Cell {
	onDay := daygroup.Sort(daygroup.OnDate(events, day, opts.Location))
	cell := Cell{
		Date:       day,
		InMonth:    day.Month() == month,
		Today:      sameDay(day, opts.Now, opts.Location),
		Decoration: Decorate(Month, day),
		Events:     onDay,
		Visible:    onDay,
	}
	if len(onDay) > opts.MaxEventRows {
		// The "more" link takes the last row.
		shown := opts.MaxEventRows - 1
		cell.Visible = onDay[:shown]
		cell.More = len(onDay) - shown
	}
	return cell
}

// BuildWeek lays out the timeline for the week containing ref.
func BuildWeek(ref time.Time, events []model.Event, opts Options) WeekGrid {
	opts = opts.normalize()
	start := startOfWeek(ref.In(opts.Location), opts.WeekStart)
	out := WeekGrid{Title: weekTitle(start), Days: make([]Day, 0, daysPerWeek)}
	for i := 0; i < daysPerWeek; i++ {
		date := start.AddDate(0, 0, i)
		out.Days = append(out.Days, buildDay(Week, date, events, opts))
	}
	return out
}

// BuildList lays out the flat list for the week containing ref. Days with
// no events are left out.
func BuildList(ref time.Time, events []model.Event, opts Options) WeekGrid {
	opts = opts.normalize()
	start := startOfWeek(ref.In(opts.Location), opts.WeekStart)
	out := WeekGrid{Title: weekTitle(start), Days: make([]Day, 0)}
	for i := 0; i < daysPerWeek; i++ {
		date := start.AddDate(0, 0, i)
		day := buildDay(List, date, events, opts)
		if len(day.Events) == 0 {
			continue
		}
		out.Days = append(out.Days, day)
	}
	return out
}

func buildDay(v View, date time.Time, events []model.Event, opts Options) Day {
	onDay := daygroup.Sort(daygroup.OnDate(events, date, opts.Location))
	day := Day{
		Date:   date,
		Header: date.Format("Mon 02/01"),
		Today:  sameDay(date, opts.Now, opts.Location),
		Events: make([]PlacedEvent, 0, len(onDay)),
	}
	deco := Decorate(v, date)
	for _, ev := range onDay {
		start := ev.Start.In(opts.Location)
		// Wall-clock time of day, not time elapsed since midnight.
		sinceMidnight := time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute
		day.Events = append(day.Events, PlacedEvent{
			Event:        ev,
			Decoration:   deco,
			TimeLabel:    TimeLabel(start),
			InSlotWindow: sinceMidnight >= opts.SlotMin && sinceMidnight < opts.SlotMax,
		})
	}
	return day
}

// TimeLabel formats a start time as "6pm" or "6:30pm".
func TimeLabel(t time.Time) string {
	if t.Minute() == 0 {
		return t.Format("3pm")
	}
	return t.Format("3:04pm")
}

// weekTitle renders the week range, e.g. "24 Feb – 2 Mar 2025".
func weekTitle(start time.Time) string {
	end := start.AddDate(0, 0, daysPerWeek-1)
	switch {
	case start.Year() != end.Year():
		return fmt.Sprintf("%s – %s", start.Format("2 Jan 2006"), end.Format("2 Jan 2006"))
	case start.Month() != end.Month():
		return fmt.Sprintf("%s – %s", start.Format("2 Jan"), end.Format("2 Jan 2006"))
	default:
		return fmt.Sprintf("%d – %s", start.Day(), end.Format("2 Jan 2006"))
	}
}

// startOfWeek returns midnight of the first day of the week containing t.
func startOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(weekStart) + daysPerWeek) % daysPerWeek
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -offset)
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
