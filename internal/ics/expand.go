package ics

import (
	"errors"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	appLog "hilalcal/internal/log"
	"hilalcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ErrInvalidRange is returned when RangeEnd precedes RangeStart.
var ErrInvalidRange = errors.New("ics: range end before range start")

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is applied to every occurrence. Nil means time.Local.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the occurrences, inclusive.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero uses 5000.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the events ordered by start, plus the UIDs whose
// expansion hit the cap.
type ExpandResult struct {
	Events          []model.Event
	TruncatedEvents []string
}

// Expand turns parsed VEVENTs into calendar events within the configured
// range. It applies RRULE, EXDATE and RECURRENCE-ID overrides. Events with
// no DTSTART are kept as-is; they have nowhere to go on the grid but still
// appear in lists.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, ErrInvalidRange
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group by feed and UID; the same UID may appear in two feeds.
	type key struct{ feed, uid string }
	var order []key
	base := make(map[key][]ParsedEvent)
	overrides := make(map[key][]ParsedEvent)
	for _, ev := range events {
		k := key{ev.Feed.ID, ev.UID}
		if ev.IsOverride && ev.Recurrence != nil {
			overrides[k] = append(overrides[k], ev)
			continue
		}
		if _, ok := base[k]; !ok {
			order = append(order, k)
		}
		base[k] = append(base[k], ev)
	}

	out := make([]model.Event, 0, len(events))
	for _, k := range order {
		truncated := false
		for _, ev := range base[k] {
			occ, hitCap := expandEvent(ev, overrides[k], cfg)
			truncated = truncated || hitCap
			out = append(out, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, k.uid)
			appLog.Warn("ics expansion truncated", "feed", k.feed, "uid", k.uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	slices.SortStableFunc(out, func(a, b model.Event) int { return a.Start.Compare(b.Start) })
	result.Events = out
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	if ev.Start.IsZero() {
		return []model.Event{ev.ToEvent(eventID(ev, time.Time{}, false), time.Time{}, time.Time{})}, false
	}
	if ev.RawRRule == "" {
		return expandSingle(ev, overrides, cfg), false
	}
	return expandRecurring(ev, overrides, cfg)
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Event {
	end := ev.End
	if end.IsZero() {
		end = ev.Start
	}
	if !overlaps(ev.Start, end, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	start, stop, src := ev.Start, ev.End, ev
	if o, ok := findOverride(overrides, ev.Start); ok {
		start, stop, src = o.Start, o.End, o
	}
	return []model.Event{makeEvent(src, eventID(ev, ev.Start, false), start, stop, cfg.DisplayLocation)}
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	times := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)
	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	var dur time.Duration
	if !ev.End.IsZero() {
		dur = ev.End.Sub(ev.Start)
	}
	out := make([]model.Event, 0, len(times))
	for _, occStart := range times {
		var occEnd time.Time
		switch {
		case ev.AllDay:
			occStart = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occEnd = occStart.AddDate(0, 0, 1)
		case dur > 0:
			occEnd = occStart.Add(dur)
		}

		start, stop, src := occStart, occEnd, ev
		if o, ok := findOverride(overrides, occStart); ok {
			start, stop, src = o.Start, o.End, o
		}
		out = append(out, makeEvent(src, eventID(ev, occStart, true), start, stop, cfg.DisplayLocation))
	}
	return out, hitCap
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeEvent(ev ParsedEvent, id string, start, end time.Time, loc *time.Location) model.Event {
	if !end.IsZero() {
		end = end.In(loc)
	}
	return ev.ToEvent(id, start.In(loc), end)
}

// eventID is feed:uid for single events and feed:uid:instant for
// occurrences of a recurring one.
func eventID(ev ParsedEvent, start time.Time, recurring bool) string {
	id := ev.Feed.ID + ":" + ev.UID
	if recurring {
		id += ":" + start.UTC().Format("20060102T150405Z")
	}
	return id
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
