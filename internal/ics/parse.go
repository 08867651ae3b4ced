package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "hilalcal/internal/log"
	"hilalcal/internal/model"
)

// ErrEmptyFeed is returned for an empty payload.
var ErrEmptyFeed = errors.New("ics: empty feed body")

// Non-standard properties carried by community feeds.
const (
	propCity    ical.ComponentProperty = "X-CITY"
	propCaption ical.ComponentProperty = "X-CAPTION"
	propImage   ical.ComponentProperty = "IMAGE"
	propRecurID ical.ComponentProperty = "RECURRENCE-ID"
)

// ParsedEvent is one VEVENT before recurrence expansion.
type ParsedEvent struct {
	Feed Feed

	UID string
	Seq int

	Summary     string
	Description string
	VenueName   string
	City        string
	Organiser   string
	Categories  []string
	PosterURL   string
	Caption     string
	Status      string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time
	IsOverride bool
}

// ParseFeed parses an ICS payload. VEVENTs that cannot be read are logged
// and skipped.
func ParseFeed(feed Feed, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, ErrEmptyFeed
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feed.ID, err)
	}

	events := make([]ParsedEvent, 0)
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(feed, ve)
		if err != nil {
			appLog.Warn("ics vevent skipped", "feed", feed.ID, "error", err.Error())
			continue
		}
		events = append(events, ev)
	}
	appLog.Debug("ics parse completed", "feed", feed.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(feed Feed, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Feed: feed}

	out.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if out.UID == "" {
		return out, errors.New("missing UID")
	}
	if n, err := strconv.Atoi(propValue(ve, ical.ComponentPropertySequence)); err == nil {
		out.Seq = n
	}

	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Caption = propValue(ve, propCaption)
	out.Status = mapStatus(propValue(ve, ical.ComponentPropertyStatus))
	out.VenueName, out.City = splitLocation(propValue(ve, ical.ComponentPropertyLocation), propValue(ve, propCity))
	out.Organiser = organiser(ve.GetProperty(ical.ComponentPropertyOrganizer))
	out.Categories = categories(ve.GetProperties(ical.ComponentPropertyCategories))
	out.PosterURL = posterURL(ve)

	// A missing or unreadable DTSTART leaves Start zero; the event is kept
	// and sorts first in its day list.
	out.Start, _ = ve.GetStartAt()
	out.End, _ = ve.GetEndAt()

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if v := param(p, "VALUE"); strings.EqualFold(v, "DATE") || !strings.Contains(p.Value, "T") {
			out.AllDay = true
		}
	}

	out.RawRRule = propValue(ve, ical.ComponentPropertyRrule)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, location(param(p, "TZID"))); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}
	if p := ve.GetProperty(propRecurID); p != nil {
		if t, err := parseICSTime(p.Value, location(param(p, "TZID"))); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}
	return out, nil
}

// ToEvent converts a parsed VEVENT instance into the calendar model. id
// must be unique per occurrence.
func (p ParsedEvent) ToEvent(id string, start, end time.Time) model.Event {
	return model.Event{
		ID:        id,
		Title:     strings.TrimSpace(p.Summary),
		Start:     start,
		End:       end,
		City:      p.City,
		VenueName: p.VenueName,
		Organiser: p.Organiser,
		Tags:      p.Categories,
		Notes:     p.Description,
		PosterURL: p.PosterURL,
		Caption:   p.Caption,
		Status:    p.Status,
	}
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func param(p *ical.IANAProperty, name string) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if vs := p.ICalParameters[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// mapStatus maps VEVENT STATUS to the publication status. Events without
// STATUS are published.
func mapStatus(s string) string {
	switch strings.ToUpper(s) {
	case "", "CONFIRMED":
		return model.StatusPublished
	case "TENTATIVE":
		return model.StatusPending
	case "CANCELLED":
		return model.StatusCancelled
	default:
		return strings.ToLower(s)
	}
}

// splitLocation returns the venue and city. X-CITY wins; otherwise the last
// comma-separated part of a multi-part LOCATION is taken as the city.
func splitLocation(loc, city string) (venue, outCity string) {
	parts := strings.Split(loc, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	venue = parts[0]
	if city != "" {
		return venue, city
	}
	if len(parts) > 1 {
		return venue, parts[len(parts)-1]
	}
	return venue, ""
}

func organiser(p *ical.IANAProperty) string {
	if p == nil {
		return ""
	}
	if cn := param(p, "CN"); cn != "" {
		return cn
	}
	v := strings.TrimSpace(p.Value)
	if len(v) >= len("mailto:") && strings.EqualFold(v[:len("mailto:")], "mailto:") {
		v = v[len("mailto:"):]
	}
	return v
}

// categories flattens every CATEGORIES property, keeping first-seen order
// and verbatim case.
func categories(props []*ical.IANAProperty) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, p := range props {
		for _, c := range strings.Split(p.Value, ",") {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// posterURL picks the first http(s) IMAGE or ATTACH value.
func posterURL(ve *ical.VEvent) string {
	props := append(ve.GetProperties(propImage), ve.GetProperties(ical.ComponentPropertyAttach)...)
	for _, p := range props {
		v := strings.TrimSpace(p.Value)
		if strings.HasPrefix(v, "https://") || strings.HasPrefix(v, "http://") {
			return v
		}
	}
	return ""
}

func location(tzid string) *time.Location {
	if tzid == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseICSTime parses DATE and DATE-TIME values. Floating times are read in
// loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
