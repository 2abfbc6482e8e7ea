package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pool is a constant-product liquidity pool snapshot. Reserve0 holds the
// pair's base asset and Reserve1 its quote asset, both in whole units.
type Pool struct {
	Network   string
	DEX       string
	Address   string
	Pair      Pair
	Reserve0  decimal.Decimal
	Reserve1  decimal.Decimal
	Fee       decimal.Decimal // fraction, 0.003 = 0.3%
	Timestamp time.Time
}

// Price returns the implied price of base in quote (reserve1/reserve0).
func (p *Pool) Price() decimal.Decimal {
	if !p.Reserve0.IsPositive() {
		return decimal.Zero
	}
	return p.Reserve1.Div(p.Reserve0)
}

// LiquidityUSD returns the pool's depth in quote units, counting both sides.
// Quote assets are assumed to be USD stablecoins.
func (p *Pool) LiquidityUSD() decimal.Decimal {
	return p.Reserve1.Mul(two)
}

// AmountOut returns the output of swapping amountIn through the pool using
// x*y=k after the fee. baseIn selects the direction.
func (p *Pool) AmountOut(amountIn decimal.Decimal, baseIn bool) decimal.Decimal {
	if !amountIn.IsPositive() || !p.Reserve0.IsPositive() || !p.Reserve1.IsPositive() {
		return decimal.Zero
	}
	rIn, rOut := p.Reserve1, p.Reserve0
	if baseIn {
		rIn, rOut = p.Reserve0, p.Reserve1
	}
	in := amountIn.Mul(decimal.NewFromInt(1).Sub(p.Fee))
	return in.Mul(rOut).Div(rIn.Add(in))
}
