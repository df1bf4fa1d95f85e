package metrics

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockAverageDays is the window used to average daily turnover.
const StockAverageDays = 30

// StockPosition summarises stock cover on one date.
type StockPosition struct {
	Date                 time.Time           `json:"date"`
	ClosingStock         decimal.Decimal     `json:"closing_stock"`
	OpeningStock         decimal.Decimal     `json:"opening_stock"`
	AverageDailyTurnover decimal.Decimal     `json:"average_daily_turnover"`
	StockDays            decimal.NullDecimal `json:"stock_days"`
}

// StockWindow is the averaging span ending at d.
func StockWindow(d time.Time) Range {
	d = Day(d)
	return Range{From: d.AddDate(0, 0, -(StockAverageDays - 1)), To: d}
}

// StockMonths lists the months needed to compute stock cover on d,
// including the previous day for the opening balance.
func StockMonths(d time.Time) []Month {
	window := StockWindow(d)
	return MonthsBetween(window.From.AddDate(0, 0, -1), window.To)
}

// StockCover computes the stock position on d. Opening stock is the prior
// day's closing stock. The average only counts days that have a record.
func StockCover(days []BusinessDay, d time.Time) StockPosition {
	d = Day(d)
	idx := IndexDays(days)
	pos := StockPosition{Date: d}
	if today, ok := idx.Lookup(d); ok {
		pos.ClosingStock = today.ClosingStock
	}
	if yesterday, ok := idx.Lookup(d.AddDate(0, 0, -1)); ok {
		pos.OpeningStock = yesterday.ClosingStock
	}

	totals := Aggregate(days, StockWindow(d))
	if totals.Days > 0 {
		pos.AverageDailyTurnover = totals.Turnover.Div(decimal.NewFromInt(int64(totals.Days))).Round(percentScale)
	}
	if pos.ClosingStock.IsPositive() && pos.AverageDailyTurnover.IsPositive() {
		pos.StockDays = decimal.NewNullDecimal(pos.ClosingStock.Div(pos.AverageDailyTurnover).Round(1))
	}
	return pos
}
