package metrics

import "time"

// ComparableDate returns the date one year before d that falls on weekday w.
// The year shift clamps the day of month first, then the result is moved
// within the week so that its weekday equals w. The match may land in a
// different month, or year, than the shifted date.
func ComparableDate(d time.Time, w time.Weekday) time.Time {
	shifted := ShiftYear(Day(d))
	diff := int(shifted.Weekday()) - int(w)
	return shifted.AddDate(0, 0, -diff)
}

// ComparableMonths lists the distinct prior-year months that must be fetched
// to resolve the comparable date of d.
func ComparableMonths(d time.Time) []Month {
	shifted := ShiftYear(Day(d))
	matched := ComparableDate(d, d.Weekday())
	first, second := MonthOf(shifted), MonthOf(matched)
	if first == second {
		return []Month{first}
	}
	if second.Before(first) {
		first, second = second, first
	}
	return []Month{first, second}
}

// ResolveComparable finds the weekday-matched prior-year record for d.
func ResolveComparable(days []BusinessDay, d time.Time) (BusinessDay, bool) {
	target := ComparableDate(d, d.Weekday())
	return IndexDays(days).Lookup(target)
}

// ComparablePeriod pairs a current window with its prior-year counterpart.
type ComparablePeriod struct {
	Current   Range `json:"current"`
	PriorYear Range `json:"prior_year"`
}

// ResolvePeriod builds the comparable period for the selected date. Daily
// mode compares against the weekday-matched prior-year day; monthly mode
// compares month-to-date against the same day-of-month span one year back.
func ResolvePeriod(d time.Time, mode Mode) ComparablePeriod {
	d = Day(d)
	if mode == ModeMonthly {
		current := MonthToDate(d)
		return ComparablePeriod{
			Current:   current,
			PriorYear: Range{From: ShiftYear(current.From), To: ShiftYear(current.To)},
		}
	}
	return ComparablePeriod{
		Current:   SingleDay(d),
		PriorYear: SingleDay(ComparableDate(d, d.Weekday())),
	}
}

// PriorMonths lists every prior-year month the period touches.
func (p ComparablePeriod) PriorMonths() []Month {
	return p.PriorYear.Months()
}

// DayIndex maps calendar dates to records.
type DayIndex map[time.Time]BusinessDay

// IndexDays indexes records by calendar date. On duplicate dates the last
// record wins.
func IndexDays(days []BusinessDay) DayIndex {
	index := make(DayIndex, len(days))
	for _, day := range days {
		index[Day(day.Date)] = day
	}
	return index
}

// Lookup returns the record stored for d.
func (idx DayIndex) Lookup(d time.Time) (BusinessDay, bool) {
	day, ok := idx[Day(d)]
	return day, ok
}
