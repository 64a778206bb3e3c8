// Package refresh keeps the upstream cache warm on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"plancal/internal/config"
	appLog "plancal/internal/log"
	"plancal/internal/model"
	"plancal/internal/schedule"
	"plancal/internal/upstream"
)

// Off disables the refresh job when used as the cron spec.
const Off = "off"

// Service is the part of schedule.Service the warmer drives.
type Service interface {
	Groupings(ctx context.Context, t model.ResourceType) ([]string, error)
	Aggregate(ctx context.Context, req schedule.Request) (*model.AggregateSchedule, error)
}

// Target is one schedule kept warm.
type Target struct {
	Type   model.ResourceType
	IDs    []string
	Period model.PeriodID
}

// TargetsFromConfig converts configured warm entries. The period defaults
// to upcoming.
func TargetsFromConfig(ws []config.WarmTarget) ([]Target, error) {
	out := make([]Target, 0, len(ws))
	for i, w := range ws {
		t, err := model.ParseResourceType(w.Type)
		if err != nil {
			return nil, fmt.Errorf("warm[%d]: %w", i, err)
		}
		p := model.PeriodUpcoming
		if w.Period != "" {
			var ok bool
			if p, ok = model.ParsePeriodID(w.Period); !ok {
				return nil, fmt.Errorf("warm[%d]: %w", i, &model.InvalidPeriodError{Period: model.PeriodID(w.Period)})
			}
		}
		out = append(out, Target{Type: t, IDs: w.IDs, Period: p})
	}
	return out, nil
}

// Warmer re-fetches the grouping index and every target so the first
// request of a day finds fresh entries in the cache.
type Warmer struct {
	svc     Service
	targets []Target
	pruner  upstream.Pruner
	now     func() time.Time

	// mu serializes runs; a tick that arrives mid-run is skipped.
	mu sync.Mutex
}

// NewWarmer builds a Warmer. pruner may be nil.
func NewWarmer(svc Service, targets []Target, pruner upstream.Pruner) *Warmer {
	return &Warmer{svc: svc, targets: targets, pruner: pruner, now: time.Now}
}

// RunOnce performs one warm-up pass. It keeps going past individual
// failures and returns them joined.
func (w *Warmer) RunOnce(ctx context.Context) error {
	if !w.mu.TryLock() {
		appLog.Warn("refresh still running; skipping tick")
		return nil
	}
	defer w.mu.Unlock()

	start := w.now()
	var errs []error

	for _, t := range model.ResourceTypes {
		if _, err := w.svc.Groupings(ctx, t); err != nil {
			errs = append(errs, fmt.Errorf("groupings %s: %w", t, err))
		}
	}

	for _, t := range w.targets {
		agg, err := w.svc.Aggregate(ctx, schedule.Request{Type: t.Type, IDs: t.IDs, Period: t.Period, Now: start})
		if err != nil {
			errs = append(errs, fmt.Errorf("warm %s %s: %w", t.Type, strings.Join(t.IDs, ","), err))
			continue
		}
		appLog.Debug("warmed schedule", "type", t.Type, "ids", t.IDs, "items", len(agg.Items))
	}

	if w.pruner != nil {
		n, err := w.pruner.Prune(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("prune cache: %w", err))
		} else if n > 0 {
			appLog.Info("pruned expired cache entries", "count", n)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		appLog.Error("refresh finished with errors", err, "failures", len(errs))
	} else {
		appLog.Info("refresh finished", "targets", len(w.targets), "duration_ms", w.now().Sub(start).Milliseconds())
	}
	return err
}

// Start schedules RunOnce on spec in loc until ctx is done. The returned
// function stops the scheduler and waits for a running pass. Spec "off"
// disables scheduling.
func (w *Warmer) Start(ctx context.Context, spec string, loc *time.Location) (stop func(), err error) {
	if strings.EqualFold(strings.TrimSpace(spec), Off) {
		appLog.Info("refresh job disabled")
		return func() {}, nil
	}
	if loc == nil {
		loc = time.Local
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() { _ = w.RunOnce(ctx) }); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("refresh job scheduled", "cron", spec, "targets", len(w.targets))

	var once sync.Once
	stop = func() {
		once.Do(func() { <-c.Stop().Done() })
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return stop, nil
}
