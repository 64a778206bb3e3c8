package model

import (
	"fmt"
	"strings"
	"time"
)

// MaxSelectable is the most resources one aggregate may combine.
const MaxSelectable = 3

// ResourceType is the kind of timetable owner.
type ResourceType string

const (
	ResourceGroup    ResourceType = "group"
	ResourceLecturer ResourceType = "lecturer"
	ResourceRoom     ResourceType = "room"
)

var ResourceTypes = []ResourceType{ResourceGroup, ResourceLecturer, ResourceRoom}

// ParseResourceType accepts the API spelling of a resource type.
func ParseResourceType(s string) (ResourceType, error) {
	for _, t := range ResourceTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown resource type %q", ErrInvalidRequest, s)
}

// UpstreamCode is the single-letter code the upstream service uses.
func (t ResourceType) UpstreamCode() string {
	switch t {
	case ResourceGroup:
		return "G"
	case ResourceLecturer:
		return "N"
	case ResourceRoom:
		return "S"
	default:
		return ""
	}
}

// ResourceTypeFromCode maps an upstream code back to a ResourceType.
func ResourceTypeFromCode(code string) (ResourceType, bool) {
	switch code {
	case "G":
		return ResourceGroup, true
	case "N":
		return ResourceLecturer, true
	case "S":
		return ResourceRoom, true
	default:
		return "", false
	}
}

// PeriodID names one of the four selectable date windows.
type PeriodID string

const (
	PeriodUpcoming        PeriodID = "upcoming"
	PeriodCurrentSemester PeriodID = "currentSemester"
	PeriodCurrentYear     PeriodID = "currentYear"
	PeriodPreviousYear    PeriodID = "previousYear"
)

// Periods lists every PeriodID in display order.
var Periods = []PeriodID{PeriodUpcoming, PeriodCurrentSemester, PeriodCurrentYear, PeriodPreviousYear}

// ParsePeriodID returns the PeriodID spelled s.
func ParsePeriodID(s string) (PeriodID, bool) {
	for _, p := range Periods {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Selector is the upstream "okres" parameter for p. The feed's period list
// index for p is Selector()-1. It returns 0 for an unknown id.
func (p PeriodID) Selector() int {
	switch p {
	case PeriodUpcoming, PeriodCurrentSemester:
		return 2
	case PeriodCurrentYear:
		return 3
	case PeriodPreviousYear:
		return 4
	default:
		return 0
	}
}

type Room struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type Lecturer struct {
	Name       string `json:"name"`
	ExternalID string `json:"moodleId,omitempty"`
}

// ScheduleHeader identifies one resource whose timetable was requested.
type ScheduleHeader struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ExternalID string `json:"moodleId,omitempty"`
}

// Grouping is a named bucket of resources on the upstream index page.
type Grouping struct {
	Name string       `json:"name"`
	Type ResourceType `json:"type"`
}

// PeriodWindow is a date range an aggregate may be filtered to.
type PeriodWindow struct {
	ID    PeriodID  `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether [start, end] lies fully inside the window.
func (w PeriodWindow) Contains(start, end time.Time) bool {
	return !start.Before(w.Start) && !end.After(w.End)
}

// ScheduleItem is one class session.
type ScheduleItem struct {
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	Subject   string     `json:"subject"`
	Type      string     `json:"type"`
	Room      *Room      `json:"room,omitempty"`
	Lecturers []Lecturer `json:"lecturers"`
	Groups    []string   `json:"groups"`
	Note      string     `json:"extra,omitempty"`
}

// AggregateSchedule is the merged, filtered and ordered timetable of up to
// MaxSelectable resources of one type.
type AggregateSchedule struct {
	Headers []ScheduleHeader `json:"headers"`
	Type    ResourceType     `json:"type"`
	Period  PeriodID         `json:"period"`
	Periods []PeriodWindow   `json:"periods"`
	Items   []ScheduleItem   `json:"items"`
}

// Window returns the window named by a.Period.
func (a *AggregateSchedule) Window() (PeriodWindow, bool) {
	for _, w := range a.Periods {
		if w.ID == a.Period {
			return w, true
		}
	}
	return PeriodWindow{}, false
}

// Validate checks the invariants every AggregateSchedule must hold.
func (a *AggregateSchedule) Validate() error {
	if n := len(a.Headers); n < 1 || n > MaxSelectable {
		return &InvariantViolationError{Reason: fmt.Sprintf("%d headers, want 1..%d", n, MaxSelectable)}
	}
	w, ok := a.Window()
	if !ok {
		return &InvariantViolationError{Reason: fmt.Sprintf("period %q not among windows", a.Period)}
	}
	for i, it := range a.Items {
		if it.End.Before(it.Start) {
			return &InvariantViolationError{Reason: fmt.Sprintf("item %d ends before it starts", i)}
		}
		if !w.Contains(it.Start, it.End) {
			return &InvariantViolationError{Reason: fmt.Sprintf("item %d outside %s window", i, w.ID)}
		}
	}
	return nil
}

// Names joins header names for display, e.g. in a calendar title.
func (a *AggregateSchedule) Names() string {
	names := make([]string, 0, len(a.Headers))
	for _, h := range a.Headers {
		names = append(names, h.Name)
	}
	return strings.Join(names, ", ")
}
