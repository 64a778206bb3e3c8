package model

import (
	"errors"
	"testing"
	"time"
)

func TestPeriodSelector(t *testing.T) {
	want := map[PeriodID]int{
		PeriodUpcoming:        2,
		PeriodCurrentSemester: 2,
		PeriodCurrentYear:     3,
		PeriodPreviousYear:    4,
		PeriodID("bogus"):     0,
	}
	for p, sel := range want {
		if got := p.Selector(); got != sel {
			t.Errorf("%s.Selector() = %d, want %d", p, got, sel)
		}
	}
}

func TestResourceTypeCodes(t *testing.T) {
	for _, rt := range ResourceTypes {
		back, ok := ResourceTypeFromCode(rt.UpstreamCode())
		if !ok || back != rt {
			t.Errorf("code round trip for %s gave %s %v", rt, back, ok)
		}
	}
	if _, err := ParseResourceType("professor"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestWindowContains(t *testing.T) {
	base := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	w := PeriodWindow{ID: PeriodCurrentSemester, Start: base, End: base.Add(48 * time.Hour)}
	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside", base.Add(time.Hour), base.Add(2 * time.Hour), true},
		{"touching both edges", base, base.Add(48 * time.Hour), true},
		{"starts before", base.Add(-time.Minute), base.Add(time.Hour), false},
		{"ends after", base.Add(47 * time.Hour), base.Add(49 * time.Hour), false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.start, tt.end); got != tt.want {
			t.Errorf("%s: Contains = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAggregateValidate(t *testing.T) {
	base := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	window := PeriodWindow{ID: PeriodCurrentYear, Start: base, End: base.Add(24 * time.Hour)}
	valid := func() *AggregateSchedule {
		return &AggregateSchedule{
			Headers: []ScheduleHeader{{ID: "1", Name: "A"}},
			Type:    ResourceGroup,
			Period:  PeriodCurrentYear,
			Periods: []PeriodWindow{window},
			Items:   []ScheduleItem{{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)}},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid aggregate: %v", err)
	}

	mutations := map[string]func(a *AggregateSchedule){
		"no headers":     func(a *AggregateSchedule) { a.Headers = nil },
		"too many":       func(a *AggregateSchedule) { a.Headers = make([]ScheduleHeader, MaxSelectable+1) },
		"missing period": func(a *AggregateSchedule) { a.Period = PeriodPreviousYear },
		"reversed":       func(a *AggregateSchedule) { a.Items[0].End = a.Items[0].Start.Add(-time.Minute) },
		"outside":        func(a *AggregateSchedule) { a.Items[0].End = base.Add(25 * time.Hour) },
	}
	for name, mutate := range mutations {
		a := valid()
		mutate(a)
		var inv *InvariantViolationError
		if err := a.Validate(); !errors.As(err, &inv) {
			t.Errorf("%s: expected InvariantViolationError, got %v", name, err)
		}
	}
}

func TestResolveKind(t *testing.T) {
	tests := map[string]ItemKind{
		"wykład":                KindLecture,
		"Wykład do wyboru":      KindLecture,
		"ćwiczenia":             KindExercise,
		"ćwiczenia e-learning":  KindExercise,
		"laboratorium":          KindExercise,
		"lektorat":              KindLanguage,
		"seminarium":            KindSeminar,
		"egzamin":               KindExam,
		"Przeniesienie zajęć":   KindCancelled,
		"zajęcia dodatkowe":     KindUnknown,
	}
	for label, want := range tests {
		if got := ResolveKind(label); got != want {
			t.Errorf("ResolveKind(%q) = %s, want %s", label, got, want)
		}
	}
}

func TestUpstreamFetchErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&UpstreamFetchError{URL: "http://x", Err: cause})
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to reach the cause")
	}
	if got := (&UpstreamFetchError{URL: "http://x", Status: 503}).Error(); got != "upstream fetch http://x: status 503" {
		t.Fatalf("Error() = %q", got)
	}
}
