// Package export writes group views as CSV or renders them to PDF through
// Gotenberg.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/pharmasight/pharmasight/internal/dashboard"
	"github.com/pharmasight/pharmasight/internal/metrics"
)

var groupHeader = []string{
	"Pharmacy ID", "Pharmacy", "Status",
	"Turnover", "Prior Year", "Growth %",
	"Target", "Target Source", "Achievement %",
	"GP %", "GP Value", "Purchases", "Purchase Budget",
	"Transactions", "Basket", "Scripts",
}

// WriteGroupCSV serialises a group report, one row per pharmacy sorted by
// name, followed by a totals row.
func WriteGroupCSV(w io.Writer, report dashboard.GroupReport) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Date", metrics.FormatDate(report.Date), "Mode", string(report.Mode)}); err != nil {
		return err
	}
	if err := writer.Write(groupHeader); err != nil {
		return err
	}
	for _, entry := range report.Sorted() {
		if err := writer.Write(groupRow(entry)); err != nil {
			return err
		}
	}
	sum := report.Summary
	totals := []string{
		"", "Total", strconv.Itoa(sum.Loaded) + " loaded",
		money(sum.Turnover), money(sum.ComparisonTurnover), percent(sum.TurnoverGrowthPercent),
		money(sum.Target), "", "",
		"", "", money(sum.Purchases), "",
		"", "", "",
	}
	if err := writer.Write(totals); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func groupRow(entry dashboard.GroupEntry) []string {
	s := entry.Snapshot
	status := "ok"
	if entry.Failed {
		status = "unavailable"
	}
	return []string{
		strconv.FormatInt(entry.Pharmacy.ID, 10),
		entry.Pharmacy.Name,
		status,
		money(s.Turnover),
		money(s.ComparisonTurnover),
		percent(s.TurnoverGrowthPercent),
		money(s.Target),
		string(s.TargetSource),
		percent(s.TargetAchievementPercent),
		s.GrossProfitPercent.StringFixed(2),
		money(s.GrossProfitValue),
		money(s.Purchases),
		money(s.PurchaseBudget),
		strconv.FormatInt(s.DisplayTransactions, 10),
		money(s.BasketSize),
		strconv.FormatInt(s.ScriptsQty, 10),
	}
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func percent(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.StringFixed(2)
}
