package wallclock

import (
	"time"
	// Embedded zone database for hosts without /usr/share/zoneinfo.
	_ "time/tzdata"
)

// DefaultZone is the civil zone the upstream timetable is published in.
const DefaultZone = "Europe/Warsaw"

// Oracle reports the wall-clock representation of an instant in one fixed
// zone. It is the only timezone-aware piece of the package.
type Oracle interface {
	CivilParts(t time.Time) CivilDateTime
	Weekday(t time.Time) time.Weekday
}

// LocationOracle backs Oracle with a *time.Location.
type LocationOracle struct {
	loc *time.Location
}

// NewLocationOracle loads the named IANA zone. An empty name selects
// DefaultZone.
func NewLocationOracle(name string) (*LocationOracle, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return &LocationOracle{loc: loc}, nil
}

// Location returns the zone backing the oracle.
func (o *LocationOracle) Location() *time.Location { return o.loc }

func (o *LocationOracle) CivilParts(t time.Time) CivilDateTime {
	return CivilFromUTCFrame(localAsUTC(t.In(o.loc)))
}

func (o *LocationOracle) Weekday(t time.Time) time.Weekday {
	return t.In(o.loc).Weekday()
}

// FixedOffsetOracle is an Oracle for a zone with a constant UTC offset.
type FixedOffsetOracle struct {
	Offset time.Duration
}

func (o FixedOffsetOracle) CivilParts(t time.Time) CivilDateTime {
	return CivilFromUTCFrame(t.UTC().Add(o.Offset))
}

func (o FixedOffsetOracle) Weekday(t time.Time) time.Weekday {
	return t.UTC().Add(o.Offset).Weekday()
}

// localAsUTC keeps the wall-clock fields of t and drops its zone.
func localAsUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
}
