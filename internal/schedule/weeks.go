package schedule

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"plancal/internal/model"
	"plancal/internal/wallclock"
)

// Week is one Monday-to-Sunday civil week of a window.
type Week struct {
	// Start is 00:00 civil time on Monday.
	Start time.Time `json:"start"`
	// LastDay is 00:00 civil time on Sunday.
	LastDay time.Time `json:"lastDay"`
	// Items indexes into the aggregate's item list.
	Items []int `json:"items"`
}

// Weeks buckets items (sorted by start) into the civil weeks covering w.
// Every week of the window is returned, including empty ones.
func Weeks(items []model.ScheduleItem, w model.PeriodWindow, conv *wallclock.Converter) ([]Week, error) {
	if w.End.Before(w.Start) {
		return nil, nil
	}
	first := conv.CivilOf(conv.PreviousMonday(w.Start))
	last := conv.CivilOf(conv.PreviousMonday(w.End))

	// Expand Mondays over the civil calendar, where every day is 24h, then
	// map each back to an instant.
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   first.UTCFrame(),
		Until:     last.UTCFrame(),
		Byweekday: []rrule.Weekday{rrule.MO},
	})
	if err != nil {
		return nil, fmt.Errorf("weekly rule: %w", err)
	}
	mondays := rule.All()

	weeks := make([]Week, 0, len(mondays))
	for _, m := range mondays {
		c := wallclock.CivilFromUTCFrame(m)
		sunday := wallclock.CivilFromUTCFrame(m.AddDate(0, 0, 6))
		weeks = append(weeks, Week{
			Start:   conv.InstantOf(c),
			LastDay: conv.InstantOf(sunday),
			Items:   []int{},
		})
	}

	wi := 0
	for i, it := range items {
		for wi+1 < len(weeks) && !it.Start.Before(weeks[wi+1].Start) {
			wi++
		}
		if wi < len(weeks) && !it.Start.Before(weeks[wi].Start) {
			weeks[wi].Items = append(weeks[wi].Items, i)
		}
	}
	return weeks, nil
}
