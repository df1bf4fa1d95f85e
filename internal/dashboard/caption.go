package dashboard

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

const currencySymbol = "R"

var printer = message.NewPrinter(language.English)

// Captions are the short strings printed under each card value.
type Captions struct {
	Turnover       string `json:"turnover"`
	Comparison     string `json:"comparison"`
	Growth         string `json:"growth"`
	Target         string `json:"target"`
	Achievement    string `json:"achievement"`
	PurchaseBudget string `json:"purchase_budget"`
	Basket         string `json:"basket"`
}

// BuildCaptions renders the captions for a computed snapshot.
func BuildCaptions(period metrics.ComparablePeriod, snap metrics.MetricSnapshot) Captions {
	c := Captions{
		Turnover:       Money(snap.Turnover),
		Comparison:     fmt.Sprintf("vs %d: %s", period.PriorYear.To.Year(), Money(snap.ComparisonTurnover)),
		Growth:         Percent(snap.TurnoverGrowthPercent, true),
		Achievement:    Percent(snap.TargetAchievementPercent, false),
		PurchaseBudget: "Budget: " + Money(snap.PurchaseBudget),
		Basket:         printer.Sprintf("%d transactions", snap.DisplayTransactions),
	}
	switch snap.TargetSource {
	case metrics.TargetNone:
		c.Target = "No target"
	case metrics.TargetFallback:
		c.Target = "Target (est.): " + Money(snap.Target)
	default:
		c.Target = "Target: " + Money(snap.Target)
	}
	if snap.BasketEstimated {
		c.Basket = printer.Sprintf("~%d transactions", snap.DisplayTransactions)
	}
	return c
}

// Money rounds to whole currency units with thousands separators.
func Money(v decimal.Decimal) string {
	return printer.Sprintf("%s %d", currencySymbol, v.Round(0).IntPart())
}

// Percent renders a nullable percentage with one decimal, or a dash when
// absent. Signed adds a leading plus to positive values.
func Percent(v decimal.NullDecimal, signed bool) string {
	if !v.Valid {
		return "—"
	}
	s := v.Decimal.StringFixed(1)
	if signed && v.Decimal.IsPositive() {
		s = "+" + s
	}
	return s + "%"
}
