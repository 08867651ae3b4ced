// Package filter applies the city + tag selection to an event set and
// derives the catalogues the filter controls are built from.
package filter

import (
	"sort"

	"hilalcal/internal/model"
)

// Apply returns the events that pass fs, in input order. An event passes
// when the city matches (or fs.City is AllCities) and it carries every
// selected tag. fs is taken as given; an empty city is mapped to AllCities
// only by FilterState.Normalize. The input slice is never modified.
func Apply(events []model.Event, fs model.FilterState) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if Match(ev, fs) {
			out = append(out, ev)
		}
	}
	return out
}

// Match reports whether a single event passes fs.
func Match(ev model.Event, fs model.FilterState) bool {
	return cityMatch(ev, fs.City) && tagsMatch(ev, fs.Tags)
}

func cityMatch(ev model.Event, city string) bool {
	if city == model.AllCities {
		return true
	}
	// An absent city never matches a specific one.
	return ev.City != "" && ev.City == city
}

// tagsMatch is conjunctive: all selected tags must be present.
func tagsMatch(ev model.Event, selected []string) bool {
	for _, t := range selected {
		if !ev.HasTag(t) {
			return false
		}
	}
	return true
}

// Tags returns the sorted set of distinct tags across events.
func Tags(events []model.Event) []string {
	seen := make(map[string]struct{})
	for _, ev := range events {
		for _, t := range ev.Tags {
			seen[t] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Cities returns the sorted set of distinct, non-empty cities across events.
func Cities(events []model.Event) []string {
	seen := make(map[string]struct{})
	for _, ev := range events {
		if ev.City != "" {
			seen[ev.City] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
