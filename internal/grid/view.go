// Package grid lays out events as a month grid, a week timeline or a flat
// week list, annotates month cells with the Hijri date, and routes event and
// "more" interactions to the page.
package grid

import (
	"strings"
	"time"

	"hilalcal/internal/hijri"
)

// View is one of the three calendar layouts.
type View string

const (
	Month View = "dayGridMonth"
	Week  View = "timeGridWeek"
	List  View = "listWeek"
)

// DefaultView is the layout shown on first load.
const DefaultView = Month

// ParseView accepts either the short names (month, week, list) or the full
// view identifiers. Unknown or empty input yields DefaultView and false.
func ParseView(s string) (View, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "month", strings.ToLower(string(Month)):
		return Month, true
	case "week", strings.ToLower(string(Week)):
		return Week, true
	case "list", strings.ToLower(string(List)):
		return List, true
	default:
		return DefaultView, false
	}
}

// Shape is the event chip outline used by a view.
type Shape string

const (
	Pill  Shape = "pill"
	Block Shape = "block"
)

// Decoration is what a view adds to a day cell and its events.
type Decoration struct {
	// Annotation is the Hijri overlay; empty outside the month view.
	Annotation string `json:"annotation,omitempty"`
	Shape      Shape  `json:"shape"`
}

// Shape returns the chip outline for v: blocks on the timeline, pills
// everywhere else.
func (v View) Shape() Shape {
	if v == Week {
		return Block
	}
	return Pill
}

// Decorate returns the per-view decoration for the cell on date. Only the
// month grid carries the Hijri annotation.
func Decorate(v View, date time.Time) Decoration {
	switch v {
	case Month:
		return Decoration{Annotation: hijri.CellLabel(hijri.ToLunarDate(date)), Shape: v.Shape()}
	default:
		return Decoration{Shape: v.Shape()}
	}
}

var baseClasses = []string{
	"!border-none",
	"!px-2",
	"!py-1",
	"text-xs",
	"font-medium",
	"bg-indigo-100",
	"text-indigo-900",
	"dark:bg-indigo-900/40",
	"dark:text-indigo-100",
}

// ClassNames returns the CSS classes for an event chip in view v.
func ClassNames(v View) []string {
	out := make([]string, 0, len(baseClasses)+1)
	out = append(out, baseClasses...)
	if v.Shape() == Block {
		return append(out, "rounded-md")
	}
	return append(out, "rounded-full")
}
