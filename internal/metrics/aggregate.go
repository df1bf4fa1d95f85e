package metrics

import "github.com/shopspring/decimal"

// Totals is the partial sum of business-day fields over a range.
type Totals struct {
	Turnover           decimal.Decimal `json:"turnover"`
	GrossProfitValue   decimal.Decimal `json:"gross_profit_value"`
	Purchases          decimal.Decimal `json:"purchases"`
	TransactionCount   int64           `json:"transaction_count"`
	DispensaryTurnover decimal.Decimal `json:"dispensary_turnover"`
	FrontShopTurnover  decimal.Decimal `json:"front_shop_turnover"`
	ScriptsQty         int64           `json:"scripts_qty"`
	Days               int             `json:"days"`
}

// Add folds one record into the totals.
func (t Totals) Add(day BusinessDay) Totals {
	t.Turnover = t.Turnover.Add(day.Turnover)
	t.GrossProfitValue = t.GrossProfitValue.Add(day.GrossProfitValue)
	t.Purchases = t.Purchases.Add(day.Purchases)
	t.TransactionCount += day.TransactionCount
	t.DispensaryTurnover = t.DispensaryTurnover.Add(day.DispensaryTurnover)
	t.FrontShopTurnover = t.FrontShopTurnover.Add(day.FrontShopTurnover)
	t.ScriptsQty += day.ScriptsQty
	t.Days++
	return t
}

// Aggregate sums the records whose date lies inside r. An empty range yields
// zero totals.
func Aggregate(days []BusinessDay, r Range) Totals {
	var totals Totals
	if r.Empty() {
		return totals
	}
	for _, day := range days {
		if !r.Contains(day.Date) {
			continue
		}
		totals = totals.Add(day)
	}
	return totals
}

// AggregateComparison sums the prior-year side of a comparable period.
// Daily periods resolve the weekday-matched record; monthly periods sum the
// shifted month-to-date window.
func AggregateComparison(days []BusinessDay, period ComparablePeriod) Totals {
	return Aggregate(days, period.PriorYear)
}
