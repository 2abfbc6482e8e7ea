// Package domain contains the core domain types for the chain context.
package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

var weiPerGwei = decimal.New(1, 9)

// GasTier selects a point on the fee curve.
type GasTier string

const (
	GasFast    GasTier = "fast"
	GasAverage GasTier = "average"
	GasSlow    GasTier = "slow"
)

// GasSnapshot is the latest fee curve of a network, in gwei.
type GasSnapshot struct {
	Network   string
	Fast      decimal.Decimal
	Average   decimal.Decimal
	Slow      decimal.Decimal
	Timestamp time.Time
	// Fallback is set when the figures come from config rather than the node.
	Fallback bool
}

// NewGasSnapshot derives the curve from the node's suggested price and tip.
// Fast pays one extra tip, slow gives half of it back.
func NewGasSnapshot(network string, priceWei, tipWei *big.Int) GasSnapshot {
	price := decimal.NewFromBigInt(priceWei, 0).Div(weiPerGwei)
	tip := decimal.Zero
	if tipWei != nil {
		tip = decimal.NewFromBigInt(tipWei, 0).Div(weiPerGwei)
	}

	slow := price.Sub(tip.Div(decimal.NewFromInt(2)))
	if slow.IsNegative() {
		slow = decimal.Zero
	}

	return GasSnapshot{
		Network:   network,
		Fast:      price.Add(tip),
		Average:   price,
		Slow:      slow,
		Timestamp: time.Now(),
	}
}

// FallbackGasSnapshot is a flat curve at gwei.
func FallbackGasSnapshot(network string, gwei decimal.Decimal) GasSnapshot {
	return GasSnapshot{
		Network:   network,
		Fast:      gwei,
		Average:   gwei,
		Slow:      gwei,
		Timestamp: time.Now(),
		Fallback:  true,
	}
}

// Price returns the gwei price of tier.
func (g GasSnapshot) Price(tier GasTier) decimal.Decimal {
	switch tier {
	case GasFast:
		return g.Fast
	case GasSlow:
		return g.Slow
	default:
		return g.Average
	}
}

// GasCost is the cost of a transaction in the native token and in USD.
type GasCost struct {
	GasLimit uint64
	Gwei     decimal.Decimal
	Native   decimal.Decimal
	USD      decimal.Decimal
}

// NewGasCost prices gasLimit units at gwei using the native token's USD price.
func NewGasCost(gasLimit uint64, gwei, nativePriceUSD decimal.Decimal) GasCost {
	native := gwei.Mul(decimal.NewFromInt(int64(gasLimit))).Div(weiPerGwei)
	return GasCost{
		GasLimit: gasLimit,
		Gwei:     gwei,
		Native:   native,
		USD:      native.Mul(nativePriceUSD),
	}
}
