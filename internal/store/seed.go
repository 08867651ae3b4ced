package store

import (
	"context"
	"fmt"
	"time"

	"hilalcal/internal/model"
)

// DemoEvents returns a small community programme around the month of now,
// placed in loc. Two events share a Saturday so the month view overflows.
func DemoEvents(now time.Time, loc *time.Location) []model.Event {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	// First Saturday of the month.
	sat := first.AddDate(0, 0, (int(time.Saturday)-int(first.Weekday())+7)%7)
	at := func(day time.Time, offsetDays, hour, minute int) time.Time {
		d := day.AddDate(0, 0, offsetDays)
		return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
	}

	return []model.Event{
		{
			ID: "demo-1", Title: "Family Fun Day", Start: at(sat, 0, 10, 0), End: at(sat, 0, 15, 0),
			City: "London", VenueName: "East London Mosque", Organiser: "ELM Youth",
			Tags: []string{"Family", "Youth"}, Status: model.StatusPublished,
			Notes: "Bouncy castle, food stalls and a nasheed corner.",
		},
		{
			ID: "demo-2", Title: "Nikah Workshop", Start: at(sat, 0, 11, 0), End: at(sat, 0, 13, 0),
			City: "Leeds", VenueName: "Makkah Masjid", Organiser: "Leeds Muslim Forum",
			Tags: []string{"Nikah", "Workshop"}, Status: model.StatusPublished,
		},
		{
			ID: "demo-3", Title: "Tafsir Circle", Start: at(sat, 0, 18, 30),
			City: "London", VenueName: "Al-Manaar", Tags: []string{"Lecture", "Quran"},
			Status: model.StatusPublished,
		},
		{
			ID: "demo-4", Title: "Charity Iftar", Start: at(sat, 0, 19, 45),
			City: "Birmingham", VenueName: "Green Lane Masjid", Organiser: "Islamic Relief",
			Tags: []string{"Charity", "Iftar"}, Status: model.StatusPublished,
			PosterURL: "https://example.org/posters/iftar.png", Caption: "All welcome",
		},
		{
			ID: "demo-5", Title: "Dawah Stall", Start: at(sat, 1, 12, 0), End: at(sat, 1, 16, 0),
			City: "Manchester", Tags: []string{"Dawah"}, Status: model.StatusPublished,
		},
		{
			ID: "demo-6", Title: "Sisters' Halaqa", Start: at(sat, 4, 19, 0),
			City: "London", VenueName: "Muslim Welfare House", Tags: []string{"Lecture", "Sisters"},
			Status: model.StatusPublished,
		},
		{
			ID: "demo-7", Title: "Eid Prayer", Start: at(sat, 14, 7, 30), End: at(sat, 14, 9, 0),
			City: "London", VenueName: "Regent's Park Mosque", Tags: []string{"Eid", "Prayer"},
			Status: model.StatusPublished,
		},
		{
			ID: "demo-8", Title: "Committee Meeting", Start: at(sat, 3, 20, 0),
			City: "Leeds", Tags: []string{"Internal"}, Status: model.StatusPending,
		},
	}
}

// Seed upserts the demo events into w.
func Seed(ctx context.Context, w Writer, now time.Time, loc *time.Location) (int, error) {
	events := DemoEvents(now, loc)
	for _, ev := range events {
		if err := w.Upsert(ctx, ev); err != nil {
			return 0, fmt.Errorf("seed: %w", err)
		}
	}
	return len(events), nil
}
