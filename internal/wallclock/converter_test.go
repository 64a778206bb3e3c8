package wallclock

import (
	"testing"
	"time"
)

func warsaw(t *testing.T) *Converter {
	t.Helper()
	o, err := NewLocationOracle(DefaultZone)
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return NewConverter(o)
}

func civil(y, mo, d, h, mi int) CivilDateTime {
	return CivilDateTime{Year: y, Month: mo, Day: d, Hour: h, Minute: mi}
}

func TestInstantOfRoundTrip(t *testing.T) {
	conv := warsaw(t)
	tests := []struct {
		name string
		in   CivilDateTime
		want time.Time
	}{
		{"winter", civil(2024, 1, 15, 9, 45), time.Date(2024, 1, 15, 8, 45, 0, 0, time.UTC)},
		{"summer", civil(2024, 7, 1, 0, 0), time.Date(2024, 6, 30, 22, 0, 0, 0, time.UTC)},
		{"day before spring forward", civil(2024, 3, 30, 23, 59), time.Date(2024, 3, 30, 22, 59, 0, 0, time.UTC)},
		{"after spring forward", civil(2024, 3, 31, 3, 0), time.Date(2024, 3, 31, 1, 0, 0, 0, time.UTC)},
		{"before fall back", civil(2024, 10, 27, 1, 30), time.Date(2024, 10, 26, 23, 30, 0, 0, time.UTC)},
		{"after fall back", civil(2024, 10, 27, 3, 0), time.Date(2024, 10, 27, 2, 0, 0, 0, time.UTC)},
		{"new year", civil(2025, 1, 1, 0, 0), time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := conv.InstantOf(tt.in)
			if !got.Equal(tt.want) {
				t.Fatalf("InstantOf(%s) = %s, want %s", tt.in, got.UTC(), tt.want)
			}
			if back := conv.CivilOf(got); back != tt.in {
				t.Fatalf("CivilOf round trip = %s, want %s", back, tt.in)
			}
		})
	}
}

func TestInstantOfEveryQuarterAcrossTransitions(t *testing.T) {
	conv := warsaw(t)
	for _, start := range []time.Time{
		time.Date(2024, 3, 30, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 26, 12, 0, 0, 0, time.UTC),
	} {
		for i := 0; i < 4*48; i++ {
			inst := start.Add(time.Duration(i) * CorrectionStep)
			c := conv.CivilOf(inst)
			if got := conv.CivilOf(conv.InstantOf(c)); got != c {
				t.Fatalf("CivilOf(InstantOf(%s)) = %s", c, got)
			}
		}
	}
}

func TestInstantOfGap(t *testing.T) {
	conv := warsaw(t)
	// 02:30 does not exist on 2024-03-31 in Warsaw.
	got := conv.InstantOf(civil(2024, 3, 31, 2, 30))
	want := time.Date(2024, 3, 31, 1, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("gap InstantOf = %s, want %s", got.UTC(), want)
	}
	if c := conv.CivilOf(got); c != civil(2024, 3, 31, 3, 0) {
		t.Fatalf("gap civil = %s", c)
	}
}

func TestFixedOffsetOracle(t *testing.T) {
	conv := NewConverter(FixedOffsetOracle{Offset: 5*time.Hour + 45*time.Minute})
	c := civil(2023, 12, 31, 23, 50)
	got := conv.InstantOf(c)
	want := time.Date(2023, 12, 31, 18, 5, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("InstantOf = %s, want %s", got.UTC(), want)
	}
}

func TestStartOfDay(t *testing.T) {
	conv := warsaw(t)
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC), time.Date(2024, 3, 30, 23, 0, 0, 0, time.UTC)},
		{time.Date(2024, 10, 27, 22, 0, 0, 0, time.UTC), time.Date(2024, 10, 26, 22, 0, 0, 0, time.UTC)},
		{time.Date(2024, 7, 1, 21, 59, 0, 0, time.UTC), time.Date(2024, 6, 30, 22, 0, 0, 0, time.UTC)},
		{time.Date(2024, 7, 1, 22, 0, 30, 0, time.UTC), time.Date(2024, 7, 1, 22, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := conv.StartOfDay(tt.in); !got.Equal(tt.want) {
			t.Errorf("StartOfDay(%s) = %s, want %s", tt.in, got.UTC(), tt.want)
		}
	}
}

func TestPreviousMondayNextSunday(t *testing.T) {
	conv := warsaw(t)
	// Wednesday 2024-10-23 15:00 local.
	wed := time.Date(2024, 10, 23, 13, 0, 0, 0, time.UTC)

	mon := conv.PreviousMonday(wed)
	if c := conv.CivilOf(mon); c != civil(2024, 10, 21, 0, 0) {
		t.Fatalf("PreviousMonday = %s", c)
	}
	if again := conv.PreviousMonday(mon); !again.Equal(mon) {
		t.Fatalf("PreviousMonday not idempotent: %s vs %s", again, mon)
	}

	// The following Sunday is the fall-back day.
	sun := conv.NextSunday(wed)
	if c := conv.CivilOf(sun); c != civil(2024, 10, 27, 0, 0) {
		t.Fatalf("NextSunday = %s", c)
	}
	if !sun.Equal(time.Date(2024, 10, 26, 22, 0, 0, 0, time.UTC)) {
		t.Fatalf("NextSunday instant = %s", sun.UTC())
	}
}

func TestEachCivilDay(t *testing.T) {
	conv := NewConverter(FixedOffsetOracle{})
	tests := []struct {
		name       string
		start, end time.Time
		want       []CivilDateTime
	}{
		{
			name:  "leap year",
			start: time.Date(2024, 2, 27, 10, 0, 0, 0, time.UTC),
			end:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			want:  []CivilDateTime{civil(2024, 2, 27, 0, 0), civil(2024, 2, 28, 0, 0), civil(2024, 2, 29, 0, 0), civil(2024, 3, 1, 0, 0)},
		},
		{
			name:  "common year",
			start: time.Date(2023, 2, 27, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2023, 3, 1, 23, 0, 0, 0, time.UTC),
			want:  []CivilDateTime{civil(2023, 2, 27, 0, 0), civil(2023, 2, 28, 0, 0), civil(2023, 3, 1, 0, 0)},
		},
		{
			name:  "century not leap",
			start: time.Date(2100, 2, 28, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2100, 3, 1, 0, 0, 0, 0, time.UTC),
			want:  []CivilDateTime{civil(2100, 2, 28, 0, 0), civil(2100, 3, 1, 0, 0)},
		},
		{
			name:  "year end",
			start: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			want:  []CivilDateTime{civil(2024, 12, 31, 0, 0), civil(2025, 1, 1, 0, 0)},
		},
		{
			name:  "empty",
			start: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := conv.EachCivilDay(tt.start, tt.end)
			var got []CivilDateTime
			for d, ok := it.Next(); ok; d, ok = it.Next() {
				got = append(got, d)
			}
			assertDays(t, got, tt.want)

			// Restartable through All.
			var again []CivilDateTime
			for d := range it.All() {
				again = append(again, d)
			}
			assertDays(t, again, tt.want)

			it.Reset()
			if len(tt.want) > 0 {
				if d, ok := it.Next(); !ok || d != tt.want[0] {
					t.Fatalf("after Reset got %v %v", d, ok)
				}
			}
		})
	}
}

func TestEachCivilDayIsLazy(t *testing.T) {
	conv := NewConverter(FixedOffsetOracle{})
	it := conv.EachCivilDay(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
	n := 0
	for range it.All() {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Fatalf("n = %d", n)
	}
}

func assertDays(t *testing.T, got, want []CivilDateTime) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d days %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("day %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDayMarker(t *testing.T) {
	conv := warsaw(t)
	// 23:30 UTC on Jan 4 is already Jan 5 in Warsaw.
	got := conv.DayMarker(time.Date(2025, 1, 4, 23, 30, 0, 0, time.UTC))
	if got != "2025.1.5" {
		t.Fatalf("DayMarker = %q", got)
	}
}

func TestCompare(t *testing.T) {
	a := civil(2024, 1, 31, 23, 59)
	b := civil(2024, 2, 1, 0, 0)
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Fatal("lexicographic compare broken")
	}
	// A later day with an earlier hour still sorts later.
	if civil(2024, 1, 2, 0, 0).Compare(civil(2024, 1, 1, 23, 0)) != 1 {
		t.Fatal("day must dominate hour")
	}
}

func TestParseCivil(t *testing.T) {
	if _, err := ParseCivilDate("2024-02-30"); err == nil {
		t.Fatal("expected out of range")
	}
	if _, err := ParseCivilDate("2024-2-3"); err == nil {
		t.Fatal("expected format error")
	}
	d, err := ParseCivilDate("2024-02-29")
	if err != nil || d != civil(2024, 2, 29, 0, 0) {
		t.Fatalf("ParseCivilDate = %v, %v", d, err)
	}
	h, m, err := ParseCivilTime("09:45 (online)")
	if err != nil || h != 9 || m != 45 {
		t.Fatalf("ParseCivilTime = %d %d %v", h, m, err)
	}
	for _, bad := range []string{"9:45", "24:00", "12:60", "ab:cd"} {
		if _, _, err := ParseCivilTime(bad); err == nil {
			t.Errorf("ParseCivilTime(%q) expected error", bad)
		}
	}
}

func TestUTCFrameRoundTrip(t *testing.T) {
	c := CivilDateTime{Year: 2024, Month: 2, Day: 29, Hour: 23, Minute: 59}
	u := c.UTCFrame()
	if u.Location() != time.UTC || u.Hour() != 23 || u.Day() != 29 {
		t.Fatalf("UTCFrame = %s", u)
	}
	if got := CivilFromUTCFrame(u); got != c {
		t.Errorf("round trip = %s, want %s", got, c)
	}
	// A week later in the frame is always exactly 7 civil days, whatever the zone does.
	if got := CivilFromUTCFrame(u.AddDate(0, 0, 7)); got != (CivilDateTime{Year: 2024, Month: 3, Day: 7, Hour: 23, Minute: 59}) {
		t.Errorf("frame +7d = %s", got)
	}
}
