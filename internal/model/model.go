package model

import "time"

// AllCities is the FilterState.City sentinel that disables the city filter.
const AllCities = "ALL"

// Event statuses. Only published events are ever rendered.
const (
	StatusPublished = "published"
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
)

// UntitledEvent is shown in place of an absent title.
const UntitledEvent = "Untitled event"

// Event is a single published community event as supplied by the event
// source. The calendar treats events as read-only.
type Event struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`

	// Start is required for placement on the grid; the zero value means
	// absent and is left out of JSON. End is optional.
	Start time.Time `json:"start,omitzero"`
	End   time.Time `json:"end,omitzero"`

	City      string   `json:"city,omitempty"`
	VenueName string   `json:"venue_name,omitempty"`
	Organiser string   `json:"organiser,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	PosterURL string   `json:"poster_url,omitempty"`
	Caption   string   `json:"caption,omitempty"`
	Status    string   `json:"status,omitempty"`
}

// DisplayTitle returns the title or the untitled fallback.
func (e Event) DisplayTitle() string {
	if e.Title == "" {
		return UntitledEvent
	}
	return e.Title
}

// IsPublished reports whether the event may be shown.
func (e Event) IsPublished() bool { return e.Status == StatusPublished }

// HasStart reports whether the event carries a start instant.
func (e Event) HasStart() bool { return !e.Start.IsZero() }

// HasTag reports whether tag is one of the event's tags (exact match).
func (e Event) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// LunarDate is a Hijri calendar date. MonthIndex is zero based
// (0 = Muharram, 11 = Dhu al-Hijjah).
type LunarDate struct {
	Day        int `json:"day"`
	MonthIndex int `json:"month_index"`
	Year       int `json:"year"`
}

// FilterState is the city + tag selection applied to the event set.
type FilterState struct {
	City string   `json:"city"`
	Tags []string `json:"tags"`
}

// DefaultFilter returns the "show everything" filter.
func DefaultFilter() FilterState {
	return FilterState{City: AllCities, Tags: []string{}}
}

// Normalize fills an empty city with AllCities and drops empty and duplicate
// tags, keeping the first occurrence of each.
func (f FilterState) Normalize() FilterState {
	out := FilterState{City: f.City, Tags: make([]string, 0, len(f.Tags))}
	if out.City == "" {
		out.City = AllCities
	}
	seen := make(map[string]struct{}, len(f.Tags))
	for _, t := range f.Tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out.Tags = append(out.Tags, t)
	}
	return out
}

// IsDefault reports whether the filter lets every event through.
func (f FilterState) IsDefault() bool {
	return (f.City == AllCities || f.City == "") && len(f.Tags) == 0
}

// HasTag reports whether tag is currently selected.
func (f FilterState) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
