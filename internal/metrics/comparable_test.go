package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestComparableDateKeepsWeekday(t *testing.T) {
	start := Date(2019, time.January, 1)
	end := Date(2028, time.December, 31)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		got := ComparableDate(d, d.Weekday())
		if got.Weekday() != d.Weekday() {
			t.Fatalf("%s: comparable %s has weekday %s", FormatDate(d), FormatDate(got), got.Weekday())
		}
		if gap := d.Sub(got).Hours() / 24; gap < 358 || gap > 372 {
			t.Fatalf("%s: comparable %s is %v days back", FormatDate(d), FormatDate(got), gap)
		}
	}
}

func TestComparableDateBoundaries(t *testing.T) {
	cases := []struct {
		name string
		date time.Time
		want time.Time
	}{
		{"friday in march", Date(2024, time.March, 1), Date(2023, time.March, 3)},
		{"leap day crosses into march", Date(2024, time.February, 29), Date(2023, time.March, 2)},
		{"new year crosses into december", Date(2023, time.January, 1), Date(2021, time.December, 26)},
		{"sunday wraps back within the week", Date(2024, time.March, 31), Date(2023, time.March, 26)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComparableDate(tc.date, tc.date.Weekday())
			if !got.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", FormatDate(tc.want), FormatDate(got))
			}
		})
	}
}

func TestShiftYearClampsLeapDay(t *testing.T) {
	got := ShiftYear(Date(2024, time.February, 29))
	if !got.Equal(Date(2023, time.February, 28)) {
		t.Fatalf("expected 2023-02-28, got %s", FormatDate(got))
	}
}

func TestComparableMonthsCrossingBoundaries(t *testing.T) {
	months := ComparableMonths(Date(2024, time.February, 29))
	if len(months) != 2 || months[0].String() != "2023-02" || months[1].String() != "2023-03" {
		t.Fatalf("unexpected months: %v", months)
	}
	months = ComparableMonths(Date(2023, time.January, 1))
	if len(months) != 2 || months[0].String() != "2021-12" || months[1].String() != "2022-01" {
		t.Fatalf("unexpected months: %v", months)
	}
	months = ComparableMonths(Date(2024, time.March, 15))
	if len(months) != 1 || months[0].String() != "2023-03" {
		t.Fatalf("unexpected months: %v", months)
	}
}

func TestResolveComparable(t *testing.T) {
	days := []BusinessDay{
		{Date: Date(2023, time.March, 1), Turnover: decimal.NewFromInt(99999)},
		{Date: Date(2023, time.March, 3), Turnover: decimal.NewFromInt(10000)},
	}
	got, ok := ResolveComparable(days, Date(2024, time.March, 1))
	if !ok {
		t.Fatalf("expected a comparable record")
	}
	if !got.Turnover.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("expected weekday matched record, got %s", got.Turnover)
	}
	if _, ok := ResolveComparable(days, Date(2024, time.March, 8)); ok {
		t.Fatalf("expected no record for unmatched date")
	}
}

func TestResolvePeriod(t *testing.T) {
	daily := ResolvePeriod(Date(2024, time.March, 1), ModeDaily)
	if !daily.PriorYear.From.Equal(Date(2023, time.March, 3)) || !daily.PriorYear.To.Equal(daily.PriorYear.From) {
		t.Fatalf("unexpected daily prior range: %+v", daily.PriorYear)
	}

	monthly := ResolvePeriod(Date(2024, time.February, 29), ModeMonthly)
	if !monthly.Current.From.Equal(Date(2024, time.February, 1)) || !monthly.Current.To.Equal(Date(2024, time.February, 29)) {
		t.Fatalf("unexpected current range: %+v", monthly.Current)
	}
	if !monthly.PriorYear.From.Equal(Date(2023, time.February, 1)) || !monthly.PriorYear.To.Equal(Date(2023, time.February, 28)) {
		t.Fatalf("unexpected prior range: %+v", monthly.PriorYear)
	}
	if months := monthly.PriorMonths(); len(months) != 1 || months[0].String() != "2023-02" {
		t.Fatalf("unexpected prior months: %v", months)
	}
}

func TestParseMode(t *testing.T) {
	if mode, err := ParseMode(""); err != nil || mode != ModeDaily {
		t.Fatalf("expected default daily, got %q %v", mode, err)
	}
	if mode, err := ParseMode("monthly"); err != nil || mode != ModeMonthly {
		t.Fatalf("expected monthly, got %q %v", mode, err)
	}
	if _, err := ParseMode("weekly"); err != ErrUnknownMode {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}
