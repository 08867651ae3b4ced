// Package daygroup orders the events that share one calendar cell for the
// "more events" day list.
package daygroup

import (
	"slices"
	"time"

	"hilalcal/internal/model"
)

// Group is the ordered list of events for a single date.
type Group struct {
	Date   time.Time     `json:"date"`
	Events []model.Event `json:"events"`
}

// Sort returns a copy of events ordered by start ascending. Events without a
// start sort first; equal keys keep their input order.
func Sort(events []model.Event) []model.Event {
	out := slices.Clone(events)
	if out == nil {
		out = []model.Event{}
	}
	slices.SortStableFunc(out, compareStart)
	return out
}

// New builds a Group for date from the events rendered on that cell.
func New(date time.Time, events []model.Event) Group {
	return Group{Date: date, Events: Sort(events)}
}

func compareStart(a, b model.Event) int {
	switch {
	case !a.HasStart() && !b.HasStart():
		return 0
	case !a.HasStart():
		return -1
	case !b.HasStart():
		return 1
	}
	return a.Start.Compare(b.Start)
}

// OnDate returns the events occupying the calendar day of date in loc,
// preserving input order. An event occupies the day it starts on and, when it
// has an end, every later day it overlaps. Events without a start are never
// placed.
func OnDate(events []model.Event, date time.Time, loc *time.Location) []model.Event {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := date.In(loc).Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	out := make([]model.Event, 0)
	for _, ev := range events {
		if occupies(ev, dayStart, dayEnd) {
			out = append(out, ev)
		}
	}
	return out
}

func occupies(ev model.Event, dayStart, dayEnd time.Time) bool {
	if !ev.HasStart() {
		return false
	}
	if !ev.Start.Before(dayEnd) {
		return false
	}
	if !ev.Start.Before(dayStart) {
		return true
	}
	// Started on an earlier day: only spans into this one if it ends after
	// this day's midnight.
	return !ev.End.IsZero() && ev.End.After(dayStart)
}
