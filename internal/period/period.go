// Package period maps a (period kind, reference instant, week start)
// tuple to a half-open time range for reporting.
package period

import "time"

// Kind is the reporting granularity.
type Kind int

const (
	Day Kind = iota
	Week
	Month
	Year
	All
)

var kindNames = map[Kind]string{
	Day:   "Day",
	Week:  "Week",
	Month: "Month",
	Year:  "Year",
	All:   "All",
}

func (k Kind) String() string { return kindNames[k] }

// Kinds lists every kind in selector order.
var Kinds = []Kind{Day, Week, Month, Year, All}

// Range is a half-open interval [Start, End). An Unbounded range covers
// all time; Start and End are meaningless on it, so downstream arithmetic
// never touches extreme timestamps.
type Range struct {
	Start     time.Time
	End       time.Time
	Unbounded bool
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if r.Unbounded {
		return true
	}
	return !t.Before(r.Start) && t.Before(r.End)
}

// Resolve returns the range of the given kind containing ref, using ref's
// location for calendar boundaries. weekStartsOn is 0 for Sunday, 1 for
// Monday; any other value falls back to Monday.
func Resolve(kind Kind, ref time.Time, weekStartsOn int) Range {
	loc := ref.Location()

	switch kind {
	case Day:
		start := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)
		return Range{Start: start, End: start.AddDate(0, 0, 1)}

	case Week:
		firstDay := time.Monday
		if weekStartsOn == 0 {
			firstDay = time.Sunday
		}
		dayStart := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)
		offset := (int(ref.Weekday()) - int(firstDay) + 7) % 7
		start := dayStart.AddDate(0, 0, -offset)
		return Range{Start: start, End: start.AddDate(0, 0, 7)}

	case Month:
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
		return Range{Start: start, End: start.AddDate(0, 1, 0)}

	case Year:
		start := time.Date(ref.Year(), 1, 1, 0, 0, 0, 0, loc)
		return Range{Start: start, End: start.AddDate(1, 0, 0)}

	default:
		return Range{Unbounded: true}
	}
}

// Previous shifts ref back by one unit of kind. All has no unit, so the
// reference is returned unchanged.
func Previous(kind Kind, ref time.Time) time.Time {
	return shift(kind, ref, -1)
}

// Next shifts ref forward by one unit of kind.
func Next(kind Kind, ref time.Time) time.Time {
	return shift(kind, ref, 1)
}

func shift(kind Kind, ref time.Time, n int) time.Time {
	switch kind {
	case Day:
		return ref.AddDate(0, 0, n)
	case Week:
		return ref.AddDate(0, 0, 7*n)
	case Month:
		return ref.AddDate(0, n, 0)
	case Year:
		return ref.AddDate(n, 0, 0)
	default:
		return ref
	}
}
