package domain

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SpreadPct is (sell-buy)/buy as a percentage. A non-positive buy yields zero.
func SpreadPct(buy, sell decimal.Decimal) decimal.Decimal {
	if !buy.IsPositive() {
		return decimal.Zero
	}
	return sell.Sub(buy).Div(buy).Mul(hundred)
}

// FeePct converts fee fractions into percentage points.
func FeePct(fees ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, f := range fees {
		total = total.Add(f)
	}
	return total.Mul(hundred)
}

// ProfitOn returns pct percent of notional.
func ProfitOn(notional, pct decimal.Decimal) decimal.Decimal {
	return notional.Mul(pct).Div(hundred)
}

// TierForProfit escalates base one tier above 3% and straight to high above 5%.
func TierForProfit(base RiskTier, profitPct decimal.Decimal) RiskTier {
	switch {
	case profitPct.GreaterThan(decimal.NewFromInt(5)):
		return RiskHigh
	case profitPct.GreaterThan(decimal.NewFromInt(3)):
		return base.Escalate()
	default:
		return base
	}
}
