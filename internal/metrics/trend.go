package metrics

import "time"

const (
	// TrendLookbackDays bounds how far back the trading-day search walks.
	TrendLookbackDays = 45
	// TrendPoints is the number of trading days charted.
	TrendPoints = 14
)

// TrendWindow is the calendar span searched for trading days ending at end.
func TrendWindow(end time.Time) Range {
	end = Day(end)
	return Range{From: end.AddDate(0, 0, -(TrendLookbackDays - 1)), To: end}
}

// TrendMonths lists the current months and the prior-year months needed to
// chart the window ending at end.
func TrendMonths(end time.Time) (current []Month, prior []Month) {
	window := TrendWindow(end)
	current = window.Months()
	seen := make(map[Month]struct{})
	for d := window.From; !d.After(window.To); d = d.AddDate(0, 0, 1) {
		for _, m := range ComparableMonths(d) {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			prior = append(prior, m)
		}
	}
	return current, prior
}

// BuildTrend selects up to TrendPoints trading days, searching backward from
// end at most TrendLookbackDays, and pairs each with its weekday-matched
// prior-year turnover. Missing prior-year records compare against zero.
// Points are returned oldest first.
func BuildTrend(current, prior []BusinessDay, end time.Time) []TrendPoint {
	currentIdx := IndexDays(current)
	priorIdx := IndexDays(prior)
	end = Day(end)

	points := make([]TrendPoint, 0, TrendPoints)
	for offset := 0; offset < TrendLookbackDays && len(points) < TrendPoints; offset++ {
		d := end.AddDate(0, 0, -offset)
		day, ok := currentIdx.Lookup(d)
		if !ok || !day.Turnover.IsPositive() {
			continue
		}
		point := TrendPoint{
			Date:         d,
			CurrentValue: day.Turnover,
			Label:        d.Weekday().String()[:3],
		}
		if match, ok := priorIdx.Lookup(ComparableDate(d, d.Weekday())); ok {
			point.ComparisonValue = match.Turnover
		}
		points = append(points, point)
	}

	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points
}
