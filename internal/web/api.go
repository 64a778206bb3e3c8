package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"plancal/internal/ical"
	"plancal/internal/model"
	"plancal/internal/schedule"
)

// idSeparator joins resource ids in a path segment, e.g. /ical/group/1_2.
const idSeparator = "_"

// scheduleResponse is the JSON shape of /api/schedule.
type scheduleResponse struct {
	Headers []model.ScheduleHeader `json:"headers"`
	Type    model.ResourceType     `json:"type"`
	Period  model.PeriodID         `json:"period"`
	Periods []model.PeriodWindow   `json:"periods"`
	Items   []itemDTO              `json:"items"`
	Weeks   []schedule.Week        `json:"weeks"`
	Now     time.Time              `json:"now"`
}

// itemDTO adds status flags and civil-time strings to an item.
type itemDTO struct {
	model.ScheduleItem
	schedule.ItemStatus
	Kind      model.ItemKind `json:"kind"`
	Day       string         `json:"day"`
	StartTime string         `json:"startTime"`
	EndTime   string         `json:"endTime"`
}

func pathType(r *http.Request) (model.ResourceType, error) {
	return model.ParseResourceType(chi.URLParam(r, "type"))
}

func pathIDs(r *http.Request) []string {
	raw := chi.URLParam(r, "ids")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, idSeparator)
}

// GET /api/groupings/{type}
func (s *Server) handleGroupings(w http.ResponseWriter, r *http.Request) {
	t, err := pathType(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	names, err := s.opts.Service.Groupings(r.Context(), t)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// GET /api/headers/{type}?grouping=...&exclude=1_2
//
// Lecturers are not grouped upstream, so grouping is optional for them.
func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	t, err := pathType(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	q := r.URL.Query()
	grouping := q.Get("grouping")
	if grouping == "" && t != model.ResourceLecturer {
		writeError(w, http.StatusBadRequest, "missing grouping")
		return
	}
	var exclude []string
	if ex := q.Get("exclude"); ex != "" {
		exclude = strings.Split(ex, idSeparator)
	}
	headers, err := s.opts.Service.Headers(r.Context(), t, grouping, exclude)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, headers)
}

// GET /api/schedule/{type}/{ids}[/{period}]
//
// The period defaults to upcoming.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	t, err := pathType(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	period := model.PeriodUpcoming
	if p := chi.URLParam(r, "period"); p != "" {
		period = model.PeriodID(p)
	}
	now := s.opts.Now()

	agg, err := s.opts.Service.Aggregate(r.Context(), schedule.Request{
		Type:   t,
		IDs:    pathIDs(r),
		Period: period,
		Now:    now,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	resp, err := s.buildScheduleResponse(agg, now)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) buildScheduleResponse(agg *model.AggregateSchedule, now time.Time) (scheduleResponse, error) {
	conv := s.opts.Converter
	statuses := s.opts.Status.Classify(agg.Items, now)

	items := make([]itemDTO, 0, len(agg.Items))
	for i, it := range agg.Items {
		start, end := conv.CivilOf(it.Start), conv.CivilOf(it.End)
		items = append(items, itemDTO{
			ScheduleItem: it,
			ItemStatus:   statuses[i],
			Kind:         model.ResolveKind(it.Type),
			Day:          start.DateString(),
			StartTime:    fmt.Sprintf("%02d:%02d", start.Hour, start.Minute),
			EndTime:      fmt.Sprintf("%02d:%02d", end.Hour, end.Minute),
		})
	}

	window, ok := agg.Window()
	if !ok {
		return scheduleResponse{}, &model.InvariantViolationError{Reason: "aggregate has no window for its period"}
	}
	weeks, err := schedule.Weeks(agg.Items, window, conv)
	if err != nil {
		return scheduleResponse{}, err
	}
	if weeks == nil {
		weeks = []schedule.Week{}
	}

	return scheduleResponse{
		Headers: agg.Headers,
		Type:    agg.Type,
		Period:  agg.Period,
		Periods: agg.Periods,
		Items:   items,
		Weeks:   weeks,
		Now:     now,
	}, nil
}

// GET /ical/{type}/{ids}
//
// Calendars always cover the whole current semester.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	t, err := pathType(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	ids := pathIDs(r)
	now := s.opts.Now()

	agg, err := s.opts.Service.Aggregate(r.Context(), schedule.Request{
		Type:   t,
		IDs:    ids,
		Period: model.PeriodCurrentSemester,
		Now:    now,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	body := ical.Export(agg, ical.Options{Now: now, TTL: s.opts.CalendarTTL})
	filename := fmt.Sprintf("calendar-%s-%s-%s.ics", t, strings.Join(ids, idSeparator),
		now.UTC().Format("2006-01-02T15:04:05.000Z07:00"))

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
