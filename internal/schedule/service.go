package schedule

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"plancal/internal/feed"
	appLog "plancal/internal/log"
	"plancal/internal/metrics"
	"plancal/internal/model"
	"plancal/internal/upstream"
	"plancal/internal/wallclock"
)

// Fetcher is the part of upstream.Fetcher the service needs.
type Fetcher interface {
	Fetch(ctx context.Context, req upstream.Request, dayMarker string) ([]byte, error)
}

// Request asks for the aggregate of up to model.MaxSelectable resources.
type Request struct {
	Type   model.ResourceType
	IDs    []string
	Period model.PeriodID
	Now    time.Time
}

// Service runs fetch, parse and aggregate for API callers.
type Service struct {
	fetcher Fetcher
	conv    *wallclock.Converter
	metrics metrics.Recorder
}

func NewService(f Fetcher, conv *wallclock.Converter, rec metrics.Recorder) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{fetcher: f, conv: conv, metrics: rec}
}

// Converter returns the wall-clock converter the service works in.
func (s *Service) Converter() *wallclock.Converter { return s.conv }

func validateIDs(ids []string) error {
	if n := len(ids); n < 1 || n > model.MaxSelectable {
		return fmt.Errorf("%w: %d ids, want 1..%d", model.ErrInvalidRequest, n, model.MaxSelectable)
	}
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: empty id", model.ErrInvalidRequest)
		}
		for _, ch := range id {
			if ch < '0' || ch > '9' {
				return fmt.Errorf("%w: id %q is not numeric", model.ErrInvalidRequest, id)
			}
		}
	}
	return nil
}

// Aggregate fetches every requested feed concurrently and merges them. The
// first failure cancels the remaining fetches; no partial result is
// returned.
func (s *Service) Aggregate(ctx context.Context, req Request) (agg *model.AggregateSchedule, err error) {
	defer func() {
		n := 0
		if agg != nil {
			n = len(agg.Items)
		}
		s.metrics.RecordAggregate(n, err)
	}()

	if err := validateIDs(req.IDs); err != nil {
		return nil, err
	}
	if req.Type.UpstreamCode() == "" {
		return nil, fmt.Errorf("%w: unknown resource type %q", model.ErrInvalidRequest, req.Type)
	}
	if req.Period.Selector() == 0 {
		return nil, &model.InvalidPeriodError{Period: req.Period}
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	marker := s.conv.DayMarker(now)

	bodies := make([][]byte, len(req.IDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range req.IDs {
		g.Go(func() error {
			body, err := s.fetcher.Fetch(gctx, upstream.ScheduleRequest(req.Type, id, req.Period), marker)
			if err != nil {
				return fmt.Errorf("fetch %s %s: %w", req.Type, id, err)
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	feeds := make([]*feed.Schedule, len(bodies))
	for i, body := range bodies {
		f, err := feed.ParseSchedule(body, s.conv)
		if err != nil {
			s.schemaFailure(upstream.KindSchedule, err, "id", req.IDs[i])
			return nil, fmt.Errorf("parse %s %s: %w", req.Type, req.IDs[i], err)
		}
		if f.Type != req.Type {
			err := &model.SchemaValidationError{Field: "plan-zajec@typ", Reason: fmt.Sprintf("got %s, requested %s", f.Type, req.Type)}
			s.schemaFailure(upstream.KindSchedule, err, "id", req.IDs[i])
			return nil, err
		}
		feeds[i] = f
	}

	agg, err = Aggregate(Input{Feeds: feeds, Period: req.Period, Now: now, Conv: s.conv})
	if err != nil {
		var inv *model.InvariantViolationError
		if errors.As(err, &inv) {
			appLog.Error("aggregate invariant violated", err, "type", req.Type, "ids", req.IDs)
		}
		return nil, err
	}
	return agg, nil
}

func (s *Service) schemaFailure(kind upstream.Kind, err error, kv ...any) {
	var se *model.SchemaValidationError
	if errors.As(err, &se) {
		s.metrics.RecordSchemaFailure(kind.String())
		appLog.Error("upstream document failed validation", err, append([]any{"kind", kind.String()}, kv...)...)
	}
}

// Groupings returns the sorted names of all groupings of type t.
func (s *Service) Groupings(ctx context.Context, t model.ResourceType) ([]string, error) {
	body, err := s.fetcher.Fetch(ctx, upstream.GroupingsRequest(), "")
	if err != nil {
		return nil, err
	}
	all, err := feed.ParseGroupings(body)
	if err != nil {
		s.schemaFailure(upstream.KindGroupings, err)
		return nil, err
	}
	names := []string{}
	for _, g := range all {
		if g.Type == t {
			names = append(names, g.Name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Headers lists the resources of type t in grouping, sorted by name, leaving
// out any id in exclude.
func (s *Service) Headers(ctx context.Context, t model.ResourceType, grouping string, exclude []string) ([]model.ScheduleHeader, error) {
	if t.UpstreamCode() == "" {
		return nil, fmt.Errorf("%w: unknown resource type %q", model.ErrInvalidRequest, t)
	}
	body, err := s.fetcher.Fetch(ctx, upstream.HeadersRequest(t, grouping), "")
	if err != nil {
		return nil, err
	}
	all, err := feed.ParseHeaders(body)
	if err != nil {
		s.schemaFailure(upstream.KindHeaders, err)
		return nil, err
	}
	out := make([]model.ScheduleHeader, 0, len(all))
	for _, h := range all {
		if !slices.Contains(exclude, h.ID) {
			out = append(out, h)
		}
	}
	slices.SortStableFunc(out, func(a, b model.ScheduleHeader) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}
