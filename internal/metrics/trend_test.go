package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func marchWithClosedSundays() []BusinessDay {
	var days []BusinessDay
	for d := Date(2024, time.March, 1); d.Month() == time.March; d = d.AddDate(0, 0, 1) {
		turnover := dec("1000")
		if d.Weekday() == time.Sunday {
			turnover = dec("0")
		}
		days = append(days, BusinessDay{Date: d, Turnover: turnover})
	}
	return days
}

func TestBuildTrendSkipsClosedDays(t *testing.T) {
	prior := []BusinessDay{{Date: Date(2023, time.March, 31), Turnover: dec("777")}}
	points := BuildTrend(marchWithClosedSundays(), prior, Date(2024, time.March, 31))
	if len(points) != TrendPoints {
		t.Fatalf("expected %d points, got %d", TrendPoints, len(points))
	}
	if !points[0].Date.Equal(Date(2024, time.March, 15)) || !points[len(points)-1].Date.Equal(Date(2024, time.March, 30)) {
		t.Fatalf("unexpected span %s..%s", FormatDate(points[0].Date), FormatDate(points[len(points)-1].Date))
	}
	for i, p := range points {
		if p.Date.Weekday() == time.Sunday || !p.CurrentValue.IsPositive() {
			t.Fatalf("point %d is not a trading day: %+v", i, p)
		}
		if i > 0 && !p.Date.After(points[i-1].Date) {
			t.Fatalf("points not chronological at %d", i)
		}
	}
	if points[0].Label != "Fri" {
		t.Fatalf("expected Fri label, got %s", points[0].Label)
	}
	for _, p := range points {
		if p.Date.Equal(Date(2024, time.March, 29)) {
			if !p.ComparisonValue.Equal(dec("777")) {
				t.Fatalf("expected weekday matched comparison, got %s", p.ComparisonValue)
			}
		} else if !p.ComparisonValue.IsZero() {
			t.Fatalf("expected zero comparison for %s", FormatDate(p.Date))
		}
	}
}

func TestBuildTrendRespectsLookback(t *testing.T) {
	end := Date(2024, time.March, 31)
	days := []BusinessDay{
		{Date: Date(2024, time.February, 15), Turnover: dec("10")},
		{Date: Date(2024, time.February, 16), Turnover: dec("20")},
		{Date: Date(2024, time.March, 20), Turnover: dec("30")},
	}
	points := BuildTrend(days, nil, end)
	if len(points) != 2 {
		t.Fatalf("expected 2 points inside the window, got %d", len(points))
	}
	if !points[0].Date.Equal(Date(2024, time.February, 16)) {
		t.Fatalf("unexpected first point %s", FormatDate(points[0].Date))
	}
	if got := BuildTrend(nil, nil, end); len(got) != 0 {
		t.Fatalf("expected empty trend, got %d", len(got))
	}
}

func TestTrendMonths(t *testing.T) {
	current, prior := TrendMonths(Date(2024, time.March, 10))
	if len(current) != 3 || current[0].String() != "2024-01" || current[2].String() != "2024-03" {
		t.Fatalf("unexpected current months: %v", current)
	}
	if len(prior) == 0 || prior[len(prior)-1].String() != "2023-03" {
		t.Fatalf("unexpected prior months: %v", prior)
	}
}

func TestStockCover(t *testing.T) {
	var days []BusinessDay
	for i := 1; i <= 10; i++ {
		days = append(days, BusinessDay{
			Date:         Date(2024, time.March, i),
			Turnover:     dec("1000"),
			ClosingStock: decimal.NewFromInt(int64(500 * i)),
		})
	}
	pos := StockCover(days, Date(2024, time.March, 10))
	if !pos.ClosingStock.Equal(dec("5000")) || !pos.OpeningStock.Equal(dec("4500")) {
		t.Fatalf("unexpected stock balances: %+v", pos)
	}
	if !pos.AverageDailyTurnover.Equal(dec("1000")) {
		t.Fatalf("expected average 1000, got %s", pos.AverageDailyTurnover)
	}
	if !pos.StockDays.Valid || !pos.StockDays.Decimal.Equal(dec("5")) {
		t.Fatalf("expected 5 stock days, got %+v", pos.StockDays)
	}

	empty := StockCover(nil, Date(2024, time.March, 10))
	if empty.StockDays.Valid {
		t.Fatalf("expected null stock days without data")
	}
}
