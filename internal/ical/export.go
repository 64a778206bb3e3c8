// Package ical renders an aggregate schedule as an iCalendar feed.
package ical

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"plancal/internal/model"
)

const (
	ProductID = "-//plancal//Schedule Export//PL"
	// CourseURLPrefix links a lecturer's external id to their course page.
	CourseURLPrefix = "https://e-uczelnia.uek.krakow.pl/course/view.php?id="
	// placeholderEmail fills ORGANIZER, which requires an address.
	placeholderEmail = "mailto:unknown@invalid.invalid"
	uidDomain        = "@plancal"
)

// Options tunes calendar-level properties.
type Options struct {
	// Now stamps every event (DTSTAMP). Zero means time.Now().
	Now time.Time
	// SourceURL, when set, is published as the calendar URL.
	SourceURL string
	// TTL is the suggested refresh interval for subscribers.
	TTL time.Duration
}

// Export serializes agg as an iCalendar document, one VEVENT per item.
func Export(agg *model.AggregateSchedule, opts Options) string {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetXWRCalName(CalendarName(agg))
	if opts.TTL > 0 {
		cal.SetXPublishedTTL(isoDuration(opts.TTL))
	}
	if opts.SourceURL != "" {
		cal.SetUrl(opts.SourceURL)
	}

	for _, it := range agg.Items {
		ev := cal.AddEvent(EventUID(it))
		ev.SetDtStampTime(now)
		ev.SetStartAt(it.Start)
		ev.SetEndAt(it.End)
		ev.SetSummary(fmt.Sprintf("[%s] %s", it.Type, it.Subject))
		ev.SetProperty(ics.ComponentPropertyStatus, Status(it))
		ev.SetProperty(ics.ComponentPropertyCategories, it.Type)
		if loc := location(it.Room); loc != "" {
			ev.SetLocation(loc)
		}
		if it.Room != nil && it.Room.URL != "" {
			ev.SetProperty(ics.ComponentPropertyUrl, it.Room.URL)
		}
		if len(it.Lecturers) > 0 {
			ev.SetOrganizer(placeholderEmail, ics.WithCN(lecturerNames(it.Lecturers)))
		}
		if desc := Description(it); desc != "" {
			ev.SetDescription(desc)
		}
	}

	return cal.Serialize()
}

// CalendarName is the display name subscribers see.
func CalendarName(agg *model.AggregateSchedule) string {
	return "UEK - " + agg.Names()
}

// Status is CANCELLED for moved sessions and CONFIRMED otherwise.
func Status(it model.ScheduleItem) string {
	if it.Type == model.CancelledType {
		return string(ics.ObjectStatusCancelled)
	}
	return string(ics.ObjectStatusConfirmed)
}

// EventUID is stable for the same session across exports.
func EventUID(it model.ScheduleItem) string {
	key := strings.Join([]string{
		it.Start.UTC().Format(time.RFC3339),
		it.End.UTC().Format(time.RFC3339),
		it.Type,
		it.Subject,
		location(it.Room),
	}, "\x1f")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String() + uidDomain
}

// Description lists the note, the online room link, lecturers and groups,
// one per line, skipping empty parts.
func Description(it model.ScheduleItem) string {
	var lines []string
	if it.Note != "" {
		lines = append(lines, it.Note)
	}
	if it.Room != nil && it.Room.URL != "" {
		lines = append(lines, it.Room.URL)
	}
	if len(it.Lecturers) > 0 {
		parts := make([]string, 0, len(it.Lecturers))
		for _, l := range it.Lecturers {
			if l.ExternalID != "" {
				parts = append(parts, fmt.Sprintf("%s (%s)", l.Name, CourseURL(l.ExternalID)))
			} else {
				parts = append(parts, l.Name)
			}
		}
		lines = append(lines, strings.Join(parts, ", "))
	}
	if len(it.Groups) > 0 {
		lines = append(lines, strings.Join(it.Groups, ", "))
	}
	return strings.Join(lines, "\n")
}

// CourseURL links to the course page for an external id.
func CourseURL(id string) string {
	return CourseURLPrefix + url.QueryEscape(id)
}

func location(r *model.Room) string {
	switch {
	case r == nil:
		return ""
	case r.URL != "":
		return "Online"
	default:
		return r.Name
	}
}

func lecturerNames(ls []model.Lecturer) string {
	names := make([]string, 0, len(ls))
	for _, l := range ls {
		names = append(names, l.Name)
	}
	return strings.Join(names, ", ")
}

// isoDuration renders d as an RFC 5545 duration, e.g. PT1H30M.
func isoDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	var b strings.Builder
	b.WriteString("PT")
	if h > 0 {
		fmt.Fprintf(&b, "%dH", h)
	}
	if m > 0 || h == 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	return b.String()
}
