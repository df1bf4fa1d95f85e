package metrics

import "github.com/shopspring/decimal"

// ResolvedTarget is the effective goal for a period.
type ResolvedTarget struct {
	Target         decimal.Decimal `json:"target"`
	PurchaseBudget decimal.Decimal `json:"purchase_budget"`
	Source         TargetSource    `json:"source"`
}

// SumTargets adds the explicit targets dated inside r.
func SumTargets(targets []Target, r Range) decimal.Decimal {
	sum := decimal.Zero
	if r.Empty() {
		return sum
	}
	for _, t := range targets {
		if r.Contains(t.Date) {
			sum = sum.Add(t.Value)
		}
	}
	return sum
}

// ResolveTarget sums explicit targets in r. When none exist and the prior
// year traded, the target falls back to prior-year turnover grown by
// FallbackGrowth. The purchase budget is always PurchaseBudgetRatio of the
// target.
func ResolveTarget(targets []Target, r Range, priorYearTurnover decimal.Decimal) ResolvedTarget {
	resolved := ResolvedTarget{Target: SumTargets(targets, r), Source: TargetExplicit}
	switch {
	case !resolved.Target.IsZero():
	case priorYearTurnover.IsPositive():
		resolved.Target = priorYearTurnover.Mul(FallbackGrowth)
		resolved.Source = TargetFallback
	default:
		resolved.Target = decimal.Zero
		resolved.Source = TargetNone
	}
	resolved.PurchaseBudget = resolved.Target.Mul(PurchaseBudgetRatio)
	return resolved
}
