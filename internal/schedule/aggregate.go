// Package schedule merges per-resource feeds into one ordered timetable.
package schedule

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"plancal/internal/feed"
	"plancal/internal/model"
	"plancal/internal/wallclock"
)

// Language-course placeholders: upstream lists one slot per language group
// on every student's plan until the student is assigned.
const (
	LanguageCourseType     = "lektorat"
	LanguageChoiceRoom     = "Wybierz swoją grupę językową"
	LanguageCentreLecturer = "Językowe Centrum"
)

// Input is everything Aggregate needs. Feeds must be in the caller's
// requested order; headers follow it.
type Input struct {
	Feeds  []*feed.Schedule
	Period model.PeriodID
	Now    time.Time
	Conv   *wallclock.Converter
}

// Windows derives the four selectable windows from a feed's advertised
// periods. The upcoming window starts at the civil start of now's day.
func Windows(f *feed.Schedule, now time.Time, conv *wallclock.Converter) ([]model.PeriodWindow, error) {
	windows := make([]model.PeriodWindow, 0, len(model.Periods))
	for _, id := range model.Periods {
		idx := id.Selector() - 1
		if idx < 0 || idx >= len(f.Periods) {
			return nil, &model.SchemaValidationError{
				Field:  "okres",
				Reason: fmt.Sprintf("%d periods advertised, %s needs index %d", len(f.Periods), id, idx),
			}
		}
		p := f.Periods[idx]
		start := p.Start
		if id == model.PeriodUpcoming {
			start = conv.StartOfDay(now)
		}
		windows = append(windows, model.PeriodWindow{ID: id, Start: start, End: p.End})
	}
	return windows, nil
}

// Aggregate flattens, filters, orders and de-duplicates the items of all
// feeds into one AggregateSchedule for the requested period.
func Aggregate(in Input) (*model.AggregateSchedule, error) {
	if len(in.Feeds) == 0 {
		return nil, fmt.Errorf("%w: no feeds", model.ErrInvalidRequest)
	}
	rt := in.Feeds[0].Type
	for _, f := range in.Feeds[1:] {
		if f.Type != rt {
			return nil, &model.InvariantViolationError{Reason: fmt.Sprintf("mixed resource types %s and %s", rt, f.Type)}
		}
	}

	windows, err := Windows(in.Feeds[0], in.Now, in.Conv)
	if err != nil {
		return nil, err
	}
	var window model.PeriodWindow
	found := false
	for _, w := range windows {
		if w.ID == in.Period {
			window, found = w, true
			break
		}
	}
	if !found {
		return nil, &model.InvalidPeriodError{Period: in.Period}
	}

	var items []model.ScheduleItem
	for _, f := range in.Feeds {
		for _, it := range f.Items {
			if IsLanguagePlaceholder(it) || !window.Contains(it.Start, it.End) {
				continue
			}
			items = append(items, cloneItem(it))
		}
	}

	SortItems(items)
	items = MergeAdjacent(items)
	if items == nil {
		items = []model.ScheduleItem{}
	}

	headers := make([]model.ScheduleHeader, 0, len(in.Feeds))
	for _, f := range in.Feeds {
		headers = append(headers, f.Header)
	}

	agg := &model.AggregateSchedule{
		Headers: headers,
		Type:    rt,
		Period:  in.Period,
		Periods: windows,
		Items:   items,
	}
	if err := agg.Validate(); err != nil {
		return nil, err
	}
	return agg, nil
}

// IsLanguagePlaceholder reports whether it is a language-course slot the
// student has not been assigned to yet.
func IsLanguagePlaceholder(it model.ScheduleItem) bool {
	if it.Type != LanguageCourseType {
		return false
	}
	if it.Room != nil && it.Room.Name == LanguageChoiceRoom {
		return true
	}
	return it.Room == nil && len(it.Lecturers) == 1 && it.Lecturers[0].Name == LanguageCentreLecturer
}

// SortItems orders items by start, then subject (byte-wise). Remaining ties
// are broken on every field sameSession compares, so all copies of one
// session end up next to each other. The sort is stable, which leaves feed
// order among true duplicates.
func SortItems(items []model.ScheduleItem) {
	slices.SortStableFunc(items, compareItems)
}

func compareItems(a, b model.ScheduleItem) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	return cmp.Or(
		strings.Compare(a.Subject, b.Subject),
		strings.Compare(a.Type, b.Type),
		a.End.Compare(b.End),
		strings.Compare(roomName(a.Room), roomName(b.Room)),
		strings.Compare(roomURL(a.Room), roomURL(b.Room)),
		strings.Compare(a.Note, b.Note),
		slices.CompareFunc(a.Lecturers, b.Lecturers, compareLecturers),
	)
}

func compareLecturers(a, b model.Lecturer) int {
	return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ExternalID, b.ExternalID))
}

// MergeAdjacent folds each item into its predecessor when both describe the
// same session, unioning their groups. Input must be ordered by SortItems.
func MergeAdjacent(items []model.ScheduleItem) []model.ScheduleItem {
	var out []model.ScheduleItem
	for _, it := range items {
		if n := len(out); n > 0 && sameSession(out[n-1], it) {
			out[n-1].Groups = unionSorted(out[n-1].Groups, it.Groups)
			continue
		}
		out = append(out, it)
	}
	return out
}

func sameSession(a, b model.ScheduleItem) bool {
	if a.Type != b.Type || a.Subject != b.Subject || !a.Start.Equal(b.Start) || !a.End.Equal(b.End) {
		return false
	}
	if roomName(a.Room) != roomName(b.Room) || roomURL(a.Room) != roomURL(b.Room) {
		return false
	}
	if a.Note != b.Note {
		return false
	}
	return slices.Equal(a.Lecturers, b.Lecturers)
}

func roomName(r *model.Room) string {
	if r == nil {
		return ""
	}
	return r.Name
}

func roomURL(r *model.Room) string {
	if r == nil {
		return ""
	}
	return r.URL
}

func unionSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}

// cloneItem copies the slices of it so merging never writes into a feed.
func cloneItem(it model.ScheduleItem) model.ScheduleItem {
	it.Lecturers = slices.Clone(it.Lecturers)
	it.Groups = slices.Clone(it.Groups)
	if it.Room != nil {
		r := *it.Room
		it.Room = &r
	}
	return it
}
