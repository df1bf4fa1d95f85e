package metrics

import "github.com/shopspring/decimal"

const percentScale = 2

// Inputs gathers everything BuildSnapshot needs for one pharmacy and period.
type Inputs struct {
	Current    Totals
	Comparison Totals
	Target     ResolvedTarget
}

// BuildSnapshot combines current totals, the prior-year comparison and the
// resolved target into a display snapshot. It has no side effects.
func BuildSnapshot(in Inputs) MetricSnapshot {
	cur := in.Current
	snap := MetricSnapshot{
		Turnover:           cur.Turnover,
		GrossProfitValue:   cur.GrossProfitValue,
		Purchases:          cur.Purchases,
		TransactionCount:   cur.TransactionCount,
		ComparisonTurnover: in.Comparison.Turnover,
		Target:             in.Target.Target,
		TargetSource:       in.Target.Source,
		PurchaseBudget:     in.Target.PurchaseBudget,
		DispensaryTurnover: cur.DispensaryTurnover,
		FrontShopTurnover:  cur.FrontShopTurnover,
		ScriptsQty:         cur.ScriptsQty,
	}
	if snap.TargetSource == "" {
		snap.TargetSource = TargetNone
	}

	snap.GrossProfitPercent = GrossProfitPercent(cur.GrossProfitValue, cur.Turnover)
	snap.BasketSize, snap.DisplayTransactions, snap.BasketEstimated = Basket(cur.Turnover, cur.TransactionCount)

	if cur.Turnover.IsPositive() {
		snap.TurnoverGrowthPercent = changePercent(cur.Turnover, in.Comparison.Turnover)
		snap.TargetVariancePercent = changePercent(cur.Turnover, snap.Target)
		if snap.Target.IsPositive() {
			snap.TargetAchievementPercent = decimal.NewNullDecimal(ratioPercent(cur.Turnover, snap.Target))
		}
	}
	if cur.Purchases.IsPositive() {
		snap.PurchaseVariancePercent = changePercent(cur.Purchases, snap.PurchaseBudget)
	}

	if split := cur.DispensaryTurnover.Add(cur.FrontShopTurnover); split.IsPositive() {
		snap.DispensaryPercent = cur.DispensaryTurnover.Div(split).Mul(hundred).Round(0).IntPart()
	}
	if cur.ScriptsQty > 0 {
		snap.AverageScriptValue = cur.DispensaryTurnover.Div(decimal.NewFromInt(cur.ScriptsQty)).Round(percentScale)
	}

	snap.Badges = Badges{
		Turnover:  badge(snap.TurnoverGrowthPercent, false),
		Target:    badge(snap.TargetVariancePercent, false),
		Purchases: badge(snap.PurchaseVariancePercent, true),
	}
	return snap
}

// GrossProfitPercent is value over turnover as a percentage, or zero when
// nothing traded.
func GrossProfitPercent(value, turnover decimal.Decimal) decimal.Decimal {
	if !turnover.IsPositive() {
		return decimal.Zero
	}
	return ratioPercent(value, turnover)
}

// Basket returns the average basket, the transaction count it was divided
// by and whether that count was estimated. Pharmacies that report no
// transactions get one transaction per BasketEstimateDivisor of turnover,
// never fewer than one.
func Basket(turnover decimal.Decimal, transactions int64) (decimal.Decimal, int64, bool) {
	if transactions > 0 {
		return turnover.Div(decimal.NewFromInt(transactions)).Round(percentScale), transactions, false
	}
	if !turnover.IsPositive() {
		return decimal.Zero, 0, false
	}
	estimated := turnover.Div(BasketEstimateDivisor).Round(0).IntPart()
	if estimated < 1 {
		estimated = 1
	}
	return turnover.Div(decimal.NewFromInt(estimated)).Round(percentScale), estimated, true
}

// changePercent is (value-base)/base*100, null unless base is positive.
func changePercent(value, base decimal.Decimal) decimal.NullDecimal {
	if !base.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(value.Sub(base).Div(base).Mul(hundred).Round(percentScale))
}

func ratioPercent(value, base decimal.Decimal) decimal.Decimal {
	return value.Div(base).Mul(hundred).Round(percentScale)
}

func badge(pct decimal.NullDecimal, inverted bool) Polarity {
	if !pct.Valid {
		return PolarityNone
	}
	good := !pct.Decimal.IsNegative()
	if inverted {
		good = !pct.Decimal.IsPositive()
	}
	if good {
		return PolarityPositive
	}
	return PolarityNegative
}
