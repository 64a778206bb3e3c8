package wallclock

import (
	"fmt"
	"iter"
	"time"
)

const (
	// CorrectionStep is the granularity of the inverse search. Every offset
	// in use today is a multiple of it.
	CorrectionStep = 15 * time.Minute
	// MaxCorrectionSteps bounds the inverse search to one day of steps.
	MaxCorrectionSteps = int(24 * time.Hour / CorrectionStep)
	// WeekdayStep is the stride used when walking to a neighbouring weekday.
	// It is shorter than any civil day, so no day is skipped.
	WeekdayStep = 12 * time.Hour
)

// Converter maps between instants and civil fields using only an Oracle.
type Converter struct {
	oracle Oracle
}

func NewConverter(o Oracle) *Converter {
	return &Converter{oracle: o}
}

// CivilOf returns the wall-clock fields of t.
func (c *Converter) CivilOf(t time.Time) CivilDateTime {
	return c.oracle.CivilParts(t)
}

// InstantOf returns the instant whose wall-clock reading is civil.
//
// For a reading that occurs twice (the repeated hour when clocks go back) the
// result is whichever occurrence the search reaches first. For a reading that
// never occurs (the skipped hour when clocks go forward) the result is the
// first instant whose reading is later than civil.
func (c *Converter) InstantOf(civil CivilDateTime) time.Time {
	guess := civil.UTCFrame()
	offset := c.oracle.CivilParts(guess).UTCFrame().Sub(guess)
	guess = guess.Add(-offset)

	lastDir := 0
	for range MaxCorrectionSteps {
		cmp := c.oracle.CivilParts(guess).Compare(civil)
		if cmp == 0 {
			return guess
		}
		dir := -cmp
		if lastDir != 0 && dir != lastDir {
			// Overshot both ways: civil falls in a gap.
			if cmp > 0 {
				return guess
			}
			return guess.Add(CorrectionStep)
		}
		lastDir = dir
		guess = guess.Add(time.Duration(dir) * CorrectionStep)
	}
	return guess
}

// StartOfDay returns the instant of 00:00 on t's civil day.
func (c *Converter) StartOfDay(t time.Time) time.Time {
	civil := c.CivilOf(t)
	if civil.Hour == 0 && civil.Minute == 0 {
		return t.Truncate(time.Minute)
	}
	return c.InstantOf(civil.Date())
}

// PreviousMonday returns the start of the most recent Monday on or before t.
func (c *Converter) PreviousMonday(t time.Time) time.Time {
	for c.oracle.Weekday(t) != time.Monday {
		t = t.Add(-WeekdayStep)
	}
	return c.StartOfDay(t)
}

// NextSunday returns the start of the first Sunday on or after t.
func (c *Converter) NextSunday(t time.Time) time.Time {
	for c.oracle.Weekday(t) != time.Sunday {
		t = t.Add(WeekdayStep)
	}
	return c.StartOfDay(t)
}

// DayMarker formats t's civil date as "Y.M.D" without zero padding.
func (c *Converter) DayMarker(t time.Time) string {
	civil := c.CivilOf(t)
	return fmt.Sprintf("%d.%d.%d", civil.Year, civil.Month, civil.Day)
}

// EachCivilDay returns an iterator over the civil days from start's day up
// to and including end's day. Nothing is computed until the iterator is
// advanced.
func (c *Converter) EachCivilDay(start, end time.Time) *DayIter {
	return &DayIter{first: c.CivilOf(start).Date(), last: c.CivilOf(end).Date()}
}

// DayIter walks civil days lazily. Each call to All starts over from the
// first day.
type DayIter struct {
	first, last CivilDateTime
	cur         CivilDateTime
	started     bool
}

// Next advances the iterator and reports whether a day was produced.
func (it *DayIter) Next() (CivilDateTime, bool) {
	if !it.started {
		it.started = true
		it.cur = it.first
	} else {
		it.cur = it.cur.NextDay()
	}
	if it.cur.After(it.last) {
		return CivilDateTime{}, false
	}
	return it.cur, true
}

// Reset rewinds the iterator to the first day.
func (it *DayIter) Reset() {
	it.started = false
	it.cur = CivilDateTime{}
}

// All ranges over every day without touching the Next/Reset cursor.
func (it *DayIter) All() iter.Seq[CivilDateTime] {
	first, last := it.first, it.last
	return func(yield func(CivilDateTime) bool) {
		for d := first; !d.After(last); d = d.NextDay() {
			if !yield(d) {
				return
			}
		}
	}
}
