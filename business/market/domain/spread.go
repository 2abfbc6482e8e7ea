package domain

import "github.com/shopspring/decimal"

var (
	tenThousand = decimal.NewFromInt(10000)
	hundred     = decimal.NewFromInt(100)
)

// Spread is the price difference between a buy and a sell quote.
type Spread struct {
	BuyPrice    decimal.Decimal
	SellPrice   decimal.Decimal
	Absolute    decimal.Decimal // sell - buy
	BasisPoints decimal.Decimal // (sell - buy) / buy * 10000
	Direction   SpreadDirection
}

// SpreadDirection tells whether buying at BuyPrice and selling at SellPrice
// is profitable before fees.
type SpreadDirection string

const (
	SpreadProfitable SpreadDirection = "PROFITABLE"
	SpreadInverted   SpreadDirection = "INVERTED"
	SpreadNone       SpreadDirection = "NONE"
)

// CalculateSpread computes the spread of buying at buy and selling at sell.
func CalculateSpread(buy, sell decimal.Decimal) Spread {
	absolute := sell.Sub(buy)
	bps := decimal.Zero
	if !buy.IsZero() {
		bps = absolute.Div(buy).Mul(tenThousand)
	}

	var direction SpreadDirection
	switch {
	case absolute.IsPositive():
		direction = SpreadProfitable
	case absolute.IsNegative():
		direction = SpreadInverted
	default:
		direction = SpreadNone
	}

	return Spread{
		BuyPrice:    buy,
		SellPrice:   sell,
		Absolute:    absolute,
		BasisPoints: bps,
		Direction:   direction,
	}
}

// Percent returns the spread in percent of the buy price.
func (s Spread) Percent() decimal.Decimal {
	return s.BasisPoints.Div(hundred)
}
