package ics

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"hilalcal/internal/model"
)

// ProductID identifies exported calendars.
const ProductID = "-//hilalcal//community calendar//EN"

// Encode writes events as an ICS calendar. Events without a start are
// skipped; stamp is used as DTSTAMP. Each tag becomes its own CATEGORIES
// property and the city goes to X-CITY, which ParseFeed reads back.
func Encode(w io.Writer, name string, events []model.Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if name != "" {
		cal.SetName(name)
	}

	for _, ev := range events {
		if !ev.HasStart() {
			continue
		}
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(stamp.UTC())
		ve.SetStartAt(ev.Start.UTC())
		if !ev.End.IsZero() {
			ve.SetEndAt(ev.End.UTC())
		}
		ve.SetSummary(ev.DisplayTitle())
		if ev.VenueName != "" {
			ve.SetLocation(ev.VenueName)
		}
		if ev.City != "" {
			ve.SetProperty(propCity, ev.City)
		}
		if ev.Notes != "" {
			ve.SetDescription(ev.Notes)
		}
		if ev.Organiser != "" {
			ve.SetProperty(ical.ComponentPropertyOrganizer, "mailto:noreply@invalid", ical.WithCN(ev.Organiser))
		}
		for _, tag := range ev.Tags {
			ve.AddProperty(ical.ComponentPropertyCategories, tag)
		}
		if ev.PosterURL != "" {
			ve.SetProperty(propImage, ev.PosterURL)
		}
		if ev.Caption != "" {
			ve.SetProperty(propCaption, ev.Caption)
		}
		ve.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}
