// Package metrics holds the comparable-period rules behind every sales card:
// range aggregation, weekday-matched prior-year lookup, target fallback,
// growth and achievement percentages, trading-day trends and stock cover.
// Everything here is pure; fetching lives in the upstream and dashboard
// packages.
package metrics

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Business policy constants.
var (
	// FallbackGrowth is applied to prior-year turnover when no explicit target exists.
	FallbackGrowth = decimal.RequireFromString("1.10")
	// PurchaseBudgetRatio caps purchases relative to the revenue target.
	PurchaseBudgetRatio = decimal.RequireFromString("0.75")
	// BasketEstimateDivisor approximates transactions for pharmacies that report none.
	BasketEstimateDivisor = decimal.NewFromInt(150)
)

var hundred = decimal.NewFromInt(100)

// ErrUnknownMode is returned when a view mode string is not recognised.
var ErrUnknownMode = errors.New("metrics: unknown view mode")

// Mode selects between a single-day and a month-to-date window.
type Mode string

const (
	ModeDaily   Mode = "daily"
	ModeMonthly Mode = "monthly"
)

// ParseMode validates a mode string. Empty input means daily.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case "", ModeDaily:
		return ModeDaily, nil
	case ModeMonthly:
		return ModeMonthly, nil
	default:
		return "", ErrUnknownMode
	}
}

// Pharmacy is one store in a user's portfolio.
type Pharmacy struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BusinessDay is one pharmacy's trading record for one calendar date.
type BusinessDay struct {
	PharmacyID         int64           `json:"pharmacy_id"`
	Date               time.Time       `json:"date"`
	Turnover           decimal.Decimal `json:"turnover"`
	GrossProfitValue   decimal.Decimal `json:"gross_profit_value"`
	Purchases          decimal.Decimal `json:"purchases"`
	TransactionCount   int64           `json:"transaction_count"`
	DispensaryTurnover decimal.Decimal `json:"dispensary_turnover"`
	FrontShopTurnover  decimal.Decimal `json:"front_shop_turnover"`
	ScriptsQty         int64           `json:"scripts_qty"`
	ClosingStock       decimal.Decimal `json:"closing_stock"`
}

// Target is an explicit revenue goal for one date.
type Target struct {
	PharmacyID int64           `json:"pharmacy_id"`
	Date       time.Time       `json:"date"`
	Value      decimal.Decimal `json:"value"`
}

// TargetSource records where a resolved target came from.
type TargetSource string

const (
	TargetExplicit TargetSource = "explicit"
	TargetFallback TargetSource = "fallback"
	TargetNone     TargetSource = "none"
)

// Polarity colours a badge.
type Polarity string

const (
	PolarityNone     Polarity = ""
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// Badges carries the polarity of each card badge.
type Badges struct {
	Turnover  Polarity `json:"turnover,omitempty"`
	Target    Polarity `json:"target,omitempty"`
	Purchases Polarity `json:"purchases,omitempty"`
}

// MetricSnapshot is the display-ready result for one pharmacy and period.
type MetricSnapshot struct {
	Turnover                 decimal.Decimal     `json:"turnover"`
	GrossProfitPercent       decimal.Decimal     `json:"gross_profit_percent"`
	GrossProfitValue         decimal.Decimal     `json:"gross_profit_value"`
	Purchases                decimal.Decimal     `json:"purchases"`
	BasketSize               decimal.Decimal     `json:"basket_size"`
	TransactionCount         int64               `json:"transaction_count"`
	DisplayTransactions      int64               `json:"display_transactions"`
	BasketEstimated          bool                `json:"basket_estimated"`
	ComparisonTurnover       decimal.Decimal     `json:"comparison_turnover"`
	TurnoverGrowthPercent    decimal.NullDecimal `json:"turnover_growth_percent"`
	Target                   decimal.Decimal     `json:"target"`
	TargetSource             TargetSource        `json:"target_source"`
	TargetAchievementPercent decimal.NullDecimal `json:"target_achievement_percent"`
	TargetVariancePercent    decimal.NullDecimal `json:"target_variance_percent"`
	PurchaseBudget           decimal.Decimal     `json:"purchase_budget"`
	PurchaseVariancePercent  decimal.NullDecimal `json:"purchase_variance_percent"`
	DispensaryTurnover       decimal.Decimal     `json:"dispensary_turnover"`
	FrontShopTurnover        decimal.Decimal     `json:"front_shop_turnover"`
	DispensaryPercent        int64               `json:"dispensary_percent"`
	ScriptsQty               int64               `json:"scripts_qty"`
	AverageScriptValue       decimal.Decimal     `json:"average_script_value"`
	Badges                   Badges              `json:"badges"`
}

// ZeroSnapshot is the placeholder shown when no data could be loaded.
func ZeroSnapshot() MetricSnapshot {
	return MetricSnapshot{TargetSource: TargetNone}
}

// TrendPoint is one bar of the trading-day chart.
type TrendPoint struct {
	Date            time.Time       `json:"date"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	ComparisonValue decimal.Decimal `json:"comparison_value"`
	Label           string          `json:"label"`
}
