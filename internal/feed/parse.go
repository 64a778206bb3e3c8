// Package feed validates upstream timetable documents and projects them
// into domain values.
package feed

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"plancal/internal/model"
	"plancal/internal/wallclock"
)

// RawItem is one item as read from a single feed, before aggregation.
type RawItem = model.ScheduleItem

// Period is a date range advertised by a feed. Both bounds are 00:00 civil
// time on the advertised dates.
type Period struct {
	Start    time.Time
	End      time.Time
	Selected bool
}

// Schedule is one parsed per-resource feed.
type Schedule struct {
	Header  model.ScheduleHeader
	Type    model.ResourceType
	Periods []Period
	Items   []RawItem
}

var notePolicy = bluemonday.StrictPolicy()

func schemaErr(field, format string, args ...any) error {
	return &model.SchemaValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ParseSchedule validates one schedule document and converts every item to
// instants with conv.
func ParseSchedule(body []byte, conv *wallclock.Converter) (*Schedule, error) {
	var doc xmlSchedule
	if err := decode(body, &doc); err != nil {
		return nil, schemaErr("plan-zajec", "%v", err)
	}

	rt, ok := model.ResourceTypeFromCode(doc.Type)
	if !ok {
		return nil, schemaErr("plan-zajec@typ", "unknown code %q", doc.Type)
	}
	if doc.ID == "" {
		return nil, schemaErr("plan-zajec@id", "empty")
	}
	if doc.Name == "" {
		return nil, schemaErr("plan-zajec@nazwa", "empty")
	}
	header := model.ScheduleHeader{ID: doc.ID, Name: doc.Name}
	if doc.TargetID != nil {
		if len(*doc.TargetID) < 2 {
			return nil, schemaErr("plan-zajec@idcel", "too short: %q", *doc.TargetID)
		}
		header.ExternalID = stripMarker(*doc.TargetID)
	}

	if len(doc.Periods) == 0 {
		return nil, schemaErr("okres", "no periods")
	}
	periods := make([]Period, 0, len(doc.Periods))
	for i, p := range doc.Periods {
		from, err := wallclock.ParseCivilDate(p.From)
		if err != nil {
			return nil, schemaErr(fmt.Sprintf("okres[%d]@od", i), "%v", err)
		}
		to, err := wallclock.ParseCivilDate(p.To)
		if err != nil {
			return nil, schemaErr(fmt.Sprintf("okres[%d]@do", i), "%v", err)
		}
		periods = append(periods, Period{
			Start:    conv.InstantOf(from),
			End:      conv.InstantOf(to),
			Selected: p.Selected == "tak",
		})
	}

	items := make([]RawItem, 0, len(doc.Items))
	for i, x := range doc.Items {
		item, err := parseItem(x, rt, header, conv)
		if err != nil {
			var se *model.SchemaValidationError
			if errors.As(err, &se) {
				se.Field = fmt.Sprintf("zajecia[%d].%s", i, se.Field)
			}
			return nil, err
		}
		items = append(items, item)
	}

	return &Schedule{Header: header, Type: rt, Periods: periods, Items: items}, nil
}

func parseItem(x xmlItem, rt model.ResourceType, header model.ScheduleHeader, conv *wallclock.Converter) (RawItem, error) {
	if x.Date == nil {
		return RawItem{}, schemaErr("termin", "missing")
	}
	date, err := wallclock.ParseCivilDate(strings.TrimSpace(x.Date.Text))
	if err != nil {
		return RawItem{}, schemaErr("termin", "%v", err)
	}
	start, err := atTime(date, x.From, "od-godz")
	if err != nil {
		return RawItem{}, err
	}
	end, err := atTime(date, x.To, "do-godz")
	if err != nil {
		return RawItem{}, err
	}
	if x.Subject == nil {
		return RawItem{}, schemaErr("przedmiot", "missing")
	}
	if x.Type == nil || strings.TrimSpace(x.Type.Text) == "" {
		return RawItem{}, schemaErr("typ", "missing or empty")
	}

	item := RawItem{
		Start:   conv.InstantOf(start),
		End:     conv.InstantOf(end),
		Subject: strings.TrimSpace(x.Subject.Text),
		Type:    strings.TrimSpace(x.Type.Text),
	}
	if item.End.Before(item.Start) {
		return RawItem{}, schemaErr("do-godz", "ends at %s before start %s", end, start)
	}

	if item.Room, err = resolveRoom(x.Room, rt, header); err != nil {
		return RawItem{}, err
	}
	item.Lecturers = resolveLecturers(x.Lecturers, rt, header)
	item.Groups = resolveGroups(x.Groups, rt, header)
	if x.Note != nil {
		item.Note = sanitizeNote(x.Note.Text)
	}
	return item, nil
}

func atTime(date wallclock.CivilDateTime, t *xmlText, field string) (wallclock.CivilDateTime, error) {
	if t == nil {
		return date, schemaErr(field, "missing")
	}
	h, m, err := wallclock.ParseCivilTime(t.Text)
	if err != nil {
		return date, schemaErr(field, "%v", err)
	}
	date.Hour, date.Minute = h, m
	return date, nil
}

func resolveRoom(x *xmlRoom, rt model.ResourceType, header model.ScheduleHeader) (*model.Room, error) {
	if rt == model.ResourceRoom {
		return &model.Room{Name: header.Name}, nil
	}
	if x == nil {
		return nil, nil
	}
	anchor := x.Anchor
	text := strings.TrimSpace(x.Text)
	if anchor == nil && strings.HasPrefix(text, "<a") {
		a, err := decodeAnchor(text)
		if err != nil {
			return nil, schemaErr("sala", "bad link: %v", err)
		}
		anchor = a
	}
	if anchor != nil {
		if anchor.XMLName.Local != "" && anchor.XMLName.Local != "a" {
			return nil, schemaErr("sala", "unexpected <%s>", anchor.XMLName.Local)
		}
		u, err := url.Parse(strings.TrimSpace(anchor.Href))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, schemaErr("sala", "bad link href %q", anchor.Href)
		}
		return &model.Room{Name: strings.TrimSpace(anchor.Text), URL: u.String()}, nil
	}
	if text == "" {
		return nil, nil
	}
	return &model.Room{Name: text}, nil
}

func resolveLecturers(xs []xmlLecturer, rt model.ResourceType, header model.ScheduleHeader) []model.Lecturer {
	if rt == model.ResourceLecturer {
		return []model.Lecturer{{Name: header.Name, ExternalID: header.ExternalID}}
	}
	out := make([]model.Lecturer, 0, len(xs))
	for _, x := range xs {
		name := strings.TrimSpace(x.Text)
		if name == "" {
			continue
		}
		l := model.Lecturer{Name: name}
		if x.Moodle != nil {
			l.ExternalID = stripMarker(*x.Moodle)
		}
		out = append(out, l)
	}
	return out
}

func resolveGroups(x *xmlText, rt model.ResourceType, header model.ScheduleHeader) []string {
	if rt == model.ResourceGroup {
		return []string{header.Name}
	}
	if x == nil {
		return []string{}
	}
	groups := []string{}
	for _, g := range strings.Split(x.Text, ", ") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	slices.Sort(groups)
	return groups
}

func sanitizeNote(s string) string {
	return strings.TrimSpace(html.UnescapeString(notePolicy.Sanitize(s)))
}

// stripMarker drops the one-character type marker upstream prefixes to
// external ids ("n12345" -> "12345").
func stripMarker(s string) string {
	if s == "" {
		return ""
	}
	_, size := utf8.DecodeRuneInString(s)
	return s[size:]
}

// ParseGroupings validates the grouping index document.
func ParseGroupings(body []byte) ([]model.Grouping, error) {
	var doc xmlGroupingIndex
	if err := decode(body, &doc); err != nil {
		return nil, schemaErr("plan-zajec", "%v", err)
	}
	out := make([]model.Grouping, 0, len(doc.Groupings))
	for i, g := range doc.Groupings {
		rt, ok := model.ResourceTypeFromCode(g.Type)
		if !ok {
			return nil, schemaErr(fmt.Sprintf("grupowanie[%d]@typ", i), "unknown code %q", g.Type)
		}
		if g.Group == "" {
			return nil, schemaErr(fmt.Sprintf("grupowanie[%d]@grupa", i), "empty")
		}
		out = append(out, model.Grouping{Name: g.Group, Type: rt})
	}
	return out, nil
}

// ParseHeaders validates a resource list document. Upstream sometimes ends
// names with a trailing comma; it is cut.
func ParseHeaders(body []byte) ([]model.ScheduleHeader, error) {
	var doc xmlHeaderIndex
	if err := decode(body, &doc); err != nil {
		return nil, schemaErr("plan-zajec", "%v", err)
	}
	out := make([]model.ScheduleHeader, 0, len(doc.Resources))
	for i, r := range doc.Resources {
		if r.ID == "" {
			return nil, schemaErr(fmt.Sprintf("zasob[%d]@id", i), "empty")
		}
		if r.Name == "" {
			return nil, schemaErr(fmt.Sprintf("zasob[%d]@nazwa", i), "empty")
		}
		out = append(out, model.ScheduleHeader{ID: r.ID, Name: strings.TrimSuffix(r.Name, ",")})
	}
	return out, nil
}
