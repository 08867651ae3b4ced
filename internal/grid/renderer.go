package grid

import (
	"time"

	"hilalcal/internal/model"
)

// MoreAction tells the caller what to do after a "more" link is clicked.
type MoreAction string

const (
	// MorePopover asks for the renderer's own day popover.
	MorePopover MoreAction = "popover"
	// MoreNone means the click was handed to OnOverflowRequested and no
	// built-in popover should open.
	MoreNone MoreAction = "none"
)

// Renderer renders one view over an event set and routes interactions
// upward.
type Renderer struct {
	View    View
	Options Options

	// OnEventActivated receives the full event when a single event is
	// activated.
	OnEventActivated func(ev model.Event)
	// OnOverflowRequested receives a cell's date and all of its events when
	// its "more" link is activated. Setting it suppresses the built-in
	// popover.
	OnOverflowRequested func(date time.Time, events []model.Event)
}

// Render lays out events around ref in the renderer's view.
func (r *Renderer) Render(ref time.Time, events []model.Event) Layout {
	v := r.View
	if v == "" {
		v = DefaultView
	}
	switch v {
	case Week:
		wg := BuildWeek(ref, events, r.Options)
		return Layout{View: v, Title: wg.Title, Days: wg.Days}
	case List:
		wg := BuildList(ref, events, r.Options)
		return Layout{View: v, Title: wg.Title, Days: wg.Days}
	default:
		mg := BuildMonth(ref, events, r.Options)
		return Layout{View: Month, Title: mg.Title, Month: &mg}
	}
}

// Activate forwards a single-event activation.
func (r *Renderer) Activate(ev model.Event) {
	if r.OnEventActivated != nil {
		r.OnEventActivated(ev)
	}
}

// MoreClick handles a "more" link on cell. With an overflow handler set the
// handler gets the cell's full event list and MoreNone is returned;
// otherwise the renderer keeps its default popover.
func (r *Renderer) MoreClick(cell Cell) MoreAction {
	if r.OnOverflowRequested == nil {
		return MorePopover
	}
	r.OnOverflowRequested(cell.Date, cell.Events)
	return MoreNone
}
