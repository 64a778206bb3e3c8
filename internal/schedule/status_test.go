package schedule

import (
	"testing"
	"time"

	"plancal/internal/model"
)

func TestStatusPolicyBoundaries(t *testing.T) {
	start := time.Date(2024, 10, 7, 8, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	item := model.ScheduleItem{Start: start, End: end}

	tests := []struct {
		name   string
		policy StatusPolicy
		now    time.Time
		want   ItemStatus
	}{
		{"before", StatusPolicy{}, start.Add(-time.Second), ItemStatus{Upcoming: true}},
		{"at start", StatusPolicy{}, start, ItemStatus{InProgress: true}},
		{"at start inclusive", StatusPolicy{UpcomingInclusive: true}, start, ItemStatus{Upcoming: true}},
		{"middle", StatusPolicy{}, start.Add(time.Hour), ItemStatus{InProgress: true}},
		{"at end", StatusPolicy{}, end, ItemStatus{InProgress: true}},
		{"at end exclusive", StatusPolicy{EndExclusive: true}, end, ItemStatus{Finished: true}},
		{"after", StatusPolicy{}, end.Add(time.Second), ItemStatus{Finished: true}},
	}
	for _, tt := range tests {
		if got := tt.policy.Of(item, tt.now); got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestClassifyMarksFirstUpcoming(t *testing.T) {
	base := time.Date(2024, 10, 7, 8, 0, 0, 0, time.UTC)
	items := []model.ScheduleItem{
		{Start: base, End: base.Add(time.Hour)},
		{Start: base.Add(2 * time.Hour), End: base.Add(3 * time.Hour)},
		{Start: base.Add(4 * time.Hour), End: base.Add(5 * time.Hour)},
	}
	got := StatusPolicy{}.Classify(items, base.Add(30*time.Minute))
	if !got[0].InProgress || got[0].FirstUpcoming {
		t.Errorf("item 0 = %+v", got[0])
	}
	if !got[1].Upcoming || !got[1].FirstUpcoming {
		t.Errorf("item 1 = %+v", got[1])
	}
	if !got[2].Upcoming || got[2].FirstUpcoming {
		t.Errorf("item 2 = %+v", got[2])
	}
}
