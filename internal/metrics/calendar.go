package metrics

import (
	"fmt"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Month identifies one calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// String renders the month as YYYY-MM.
func (m Month) String() string {
	return m.First().Format(monthLayout)
}

// First returns the first day of the month.
func (m Month) First() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Last returns the last day of the month.
func (m Month) Last() time.Time {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC)
}

// Days reports the number of days in the month.
func (m Month) Days() int {
	return m.Last().Day()
}

// Before reports whether m precedes other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// Day truncates t to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Date builds a calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("metrics: parse date %q: %w", value, err)
	}
	return t, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ShiftYear moves d back exactly one calendar year. The day of month is
// clamped to the last day of the prior-year month, so Feb 29 maps to Feb 28.
func ShiftYear(d time.Time) time.Time {
	prior := Month{Year: d.Year() - 1, Month: d.Month()}
	day := d.Day()
	if last := prior.Days(); day > last {
		day = last
	}
	return Date(prior.Year, prior.Month, day)
}

// MonthsBetween lists every month touched by the inclusive span [from, to].
func MonthsBetween(from, to time.Time) []Month {
	start := MonthOf(from)
	end := MonthOf(to)
	if end.Before(start) {
		return nil
	}
	var months []Month
	for current := start; !end.Before(current); current = MonthOf(current.First().AddDate(0, 1, 0)) {
		months = append(months, current)
	}
	return months
}

// Range is an inclusive span of calendar dates. A range whose From is after
// its To is empty.
type Range struct {
	From time.Time
	To   time.Time
}

// SingleDay covers exactly d.
func SingleDay(d time.Time) Range {
	d = Day(d)
	return Range{From: d, To: d}
}

// MonthToDate covers the first of d's month through d itself.
func MonthToDate(d time.Time) Range {
	d = Day(d)
	return Range{From: MonthOf(d).First(), To: d}
}

// Empty reports whether the range contains no dates.
func (r Range) Empty() bool {
	return r.From.After(r.To)
}

// Contains reports whether d falls inside the range.
func (r Range) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(Day(r.From)) && !d.After(Day(r.To))
}

// Months lists the calendar months the range touches.
func (r Range) Months() []Month {
	if r.Empty() {
		return nil
	}
	return MonthsBetween(r.From, r.To)
}
