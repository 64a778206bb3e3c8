package schedule

import (
	"time"

	"plancal/internal/model"
)

// StatusPolicy picks the boundary semantics of item status flags. The zero
// value means upcoming while now < start, in progress while
// start <= now <= end, finished after end.
type StatusPolicy struct {
	// UpcomingInclusive keeps an item upcoming at the exact instant it starts.
	UpcomingInclusive bool
	// EndExclusive finishes an item at the exact instant it ends.
	EndExclusive bool
}

// ItemStatus is the state of one item relative to a reference instant.
// Exactly one of Upcoming, InProgress and Finished is set.
type ItemStatus struct {
	Upcoming      bool `json:"isUpcoming"`
	FirstUpcoming bool `json:"isFirstUpcoming"`
	InProgress    bool `json:"isInProgress"`
	Finished      bool `json:"isFinished"`
}

// Of classifies a single item.
func (p StatusPolicy) Of(it model.ScheduleItem, now time.Time) ItemStatus {
	var s ItemStatus
	switch {
	case now.Before(it.Start), p.UpcomingInclusive && now.Equal(it.Start):
		s.Upcoming = true
	case now.Before(it.End), !p.EndExclusive && now.Equal(it.End):
		s.InProgress = true
	default:
		s.Finished = true
	}
	return s
}

// Classify classifies items, which must be sorted by start, and marks the
// first upcoming one.
func (p StatusPolicy) Classify(items []model.ScheduleItem, now time.Time) []ItemStatus {
	out := make([]ItemStatus, len(items))
	first := true
	for i, it := range items {
		out[i] = p.Of(it, now)
		if out[i].Upcoming && first {
			out[i].FirstUpcoming = true
			first = false
		}
	}
	return out
}
