// Package upstream fetches timetable documents from the university's
// planning service, with a pluggable response cache.
package upstream

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"plancal/internal/model"
)

// Kind is the sort of upstream document a Request asks for.
type Kind int

const (
	KindGroupings Kind = iota
	KindHeaders
	KindSchedule
)

func (k Kind) String() string {
	switch k {
	case KindGroupings:
		return "groupings"
	case KindHeaders:
		return "headers"
	case KindSchedule:
		return "schedule"
	default:
		return "unknown"
	}
}

// Request describes one upstream document. Build it with GroupingsRequest,
// HeadersRequest or ScheduleRequest.
type Request struct {
	Kind       Kind
	Type       model.ResourceType
	ResourceID string
	Grouping   string
	Period     model.PeriodID
	XML        bool
}

// GroupingsRequest asks for the index of all groupings.
func GroupingsRequest() Request {
	return Request{Kind: KindGroupings, XML: true}
}

// HeadersRequest asks for the resources of one type inside a grouping.
// Lecturers are not grouped upstream, so grouping may be empty.
func HeadersRequest(t model.ResourceType, grouping string) Request {
	return Request{Kind: KindHeaders, Type: t, Grouping: grouping, XML: true}
}

// ScheduleRequest asks for one resource's timetable for period.
func ScheduleRequest(t model.ResourceType, id string, period model.PeriodID) Request {
	return Request{Kind: KindSchedule, Type: t, ResourceID: id, Period: period, XML: true}
}

// URL builds the request URL on top of base. The result is deterministic
// for equal requests.
func (r Request) URL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := url.Values{}
	switch r.Kind {
	case KindGroupings:
	case KindHeaders:
		q.Set("typ", r.Type.UpstreamCode())
		if r.Grouping != "" {
			q.Set("grupa", r.Grouping)
		}
	case KindSchedule:
		if r.ResourceID == "" {
			return "", fmt.Errorf("%w: empty resource id", model.ErrInvalidRequest)
		}
		sel := r.Period.Selector()
		if sel == 0 {
			return "", &model.InvalidPeriodError{Period: r.Period}
		}
		q.Set("typ", r.Type.UpstreamCode())
		q.Set("id", r.ResourceID)
		q.Set("okres", strconv.Itoa(sel))
	default:
		return "", fmt.Errorf("unknown request kind %d", r.Kind)
	}
	if r.XML {
		q.Set("xml", "")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CacheKey derives the cache key for a request URL. A non-empty day marker
// is appended so that cached schedules roll over at civil midnight.
func CacheKey(rawURL, dayMarker string) string {
	if dayMarker == "" {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "cachekey=" + url.QueryEscape(dayMarker)
}
