package domain

import "github.com/shopspring/decimal"

// PositionSide is the direction of a statistical position.
type PositionSide string

const (
	// Long buys expecting the price to revert upwards.
	Long PositionSide = "long"
	// Short sells expecting the price to revert downwards.
	Short PositionSide = "short"
)

// SideFromZ maps a z-score sign to a position side. A positive z means the
// price sits below its mean.
func SideFromZ(z decimal.Decimal) PositionSide {
	if z.IsNegative() {
		return Short
	}
	return Long
}

// Sign is +1 for long and -1 for short.
func (s PositionSide) Sign() decimal.Decimal {
	if s == Short {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}
