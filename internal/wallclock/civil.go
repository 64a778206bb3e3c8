// Package wallclock converts between absolute instants and the wall-clock
// fields of one fixed civil timezone.
//
// Only a forward oracle (instant -> civil fields) is required. The inverse is
// computed by a bounded search, so no timezone transition tables are needed
// beyond whatever backs the oracle.
package wallclock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CivilDateTime is a wall-clock reading (year, month, day, hour, minute) in
// the target zone. It carries no offset; the offset is always re-derived from
// the oracle.
type CivilDateTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
}

// Date returns c with the time-of-day fields zeroed.
func (c CivilDateTime) Date() CivilDateTime {
	return CivilDateTime{Year: c.Year, Month: c.Month, Day: c.Day}
}

// Compare orders civil values lexicographically by
// (year, month, day, hour, minute). It returns -1, 0 or +1.
func (c CivilDateTime) Compare(o CivilDateTime) int {
	a := [5]int{c.Year, c.Month, c.Day, c.Hour, c.Minute}
	b := [5]int{o.Year, o.Month, o.Day, o.Hour, o.Minute}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// Before reports whether c is strictly earlier than o.
func (c CivilDateTime) Before(o CivilDateTime) bool { return c.Compare(o) < 0 }

// After reports whether c is strictly later than o.
func (c CivilDateTime) After(o CivilDateTime) bool { return c.Compare(o) > 0 }

// SameDay reports whether c and o fall on the same calendar day.
func (c CivilDateTime) SameDay(o CivilDateTime) bool {
	return c.Year == o.Year && c.Month == o.Month && c.Day == o.Day
}

// Valid reports whether all fields hold Gregorian values.
func (c CivilDateTime) Valid() bool {
	if c.Month < 1 || c.Month > 12 {
		return false
	}
	if c.Day < 1 || c.Day > DaysIn(c.Year, c.Month) {
		return false
	}
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

// NextDay returns the following calendar day at 00:00.
func (c CivilDateTime) NextDay() CivilDateTime {
	next := c.Date()
	next.Day++
	if next.Day > DaysIn(next.Year, next.Month) {
		next.Day = 1
		next.Month++
		if next.Month > 12 {
			next.Month = 1
			next.Year++
		}
	}
	return next
}

// Weekday returns the day of the week of c's calendar date. It depends only
// on the Gregorian calendar, not on any timezone.
func (c CivilDateTime) Weekday() time.Weekday {
	return c.UTCFrame().Weekday()
}

// String formats c as "2006-01-02 15:04".
func (c CivilDateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d", c.Year, c.Month, c.Day, c.Hour, c.Minute)
}

// DateString formats c's date as "2006-01-02".
func (c CivilDateTime) DateString() string {
	return fmt.Sprintf("%04d-%02d-%02d", c.Year, c.Month, c.Day)
}

// UTCFrame interprets the civil fields as if they were already UTC.
func (c CivilDateTime) UTCFrame() time.Time {
	return time.Date(c.Year, time.Month(c.Month), c.Day, c.Hour, c.Minute, 0, 0, time.UTC)
}

// CivilFromUTCFrame is the inverse of UTCFrame.
func CivilFromUTCFrame(t time.Time) CivilDateTime {
	t = t.UTC()
	return CivilDateTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
	}
}

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in the given month (1-12) of year.
func DaysIn(year, month int) int {
	switch month {
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

var (
	errBadDate = errors.New("expected YYYY-MM-DD")
	errBadTime = errors.New("expected HH:MM")
)

// ParseCivilDate parses a strict "YYYY-MM-DD" date.
func ParseCivilDate(s string) (CivilDateTime, error) {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return CivilDateTime{}, fmt.Errorf("date %q: %w", s, errBadDate)
	}
	y, err1 := strconv.Atoi(s[0:4])
	m, err2 := strconv.Atoi(s[5:7])
	d, err3 := strconv.Atoi(s[8:10])
	if err1 != nil || err2 != nil || err3 != nil {
		return CivilDateTime{}, fmt.Errorf("date %q: %w", s, errBadDate)
	}
	c := CivilDateTime{Year: y, Month: m, Day: d}
	if !c.Valid() {
		return CivilDateTime{}, fmt.Errorf("date %q: out of range", s)
	}
	return c, nil
}

// ParseCivilTime parses an "HH:MM" time-of-day prefix. Anything after the
// first five characters is ignored; upstream feeds sometimes append text to
// the end time.
func ParseCivilTime(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	if len(s) < 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("time %q: %w", s, errBadTime)
	}
	for _, ch := range s[0:2] + s[3:5] {
		if ch < '0' || ch > '9' {
			return 0, 0, fmt.Errorf("time %q: %w", s, errBadTime)
		}
	}
	hour, _ = strconv.Atoi(s[0:2])
	minute, _ = strconv.Atoi(s[3:5])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q: out of range", s)
	}
	return hour, minute, nil
}
