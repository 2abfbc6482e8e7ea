package app

import (
	"github.com/shopspring/decimal"

	marketDomain "github.com/fd1az/arbitrage-engine/business/market/domain"
)

var (
	one        = decimal.NewFromInt(1)
	hundredPct = decimal.NewFromInt(100)
)

// QuoteFunc converts amount of asset from into asset to on venue using the
// view's prices. ok is false when the venue has no market between the two.
// venue is a CEX name or a "dex@network" deployment.
type QuoteFunc func(view *MarketView, venue, from, to string, amount decimal.Decimal) (out decimal.Decimal, ok bool)

// SpotQuote prices a conversion at the top of book for exchanges and at the
// fee-adjusted implied price for pools. It ignores depth.
func SpotQuote(view *MarketView, venue, from, to string, amount decimal.Decimal) (decimal.Decimal, bool) {
	pair, sell, ok := view.HopPair(venue, from, to)
	if !ok {
		return decimal.Zero, false
	}

	if t, found := view.Ticker(venue, pair); found {
		if sell {
			return amount.Mul(t.Bid), true
		}
		return amount.Div(t.Ask), true
	}

	p, found := view.Pool(venue, pair)
	if !found {
		return decimal.Zero, false
	}
	price := p.Price()
	net := one.Sub(p.Fee)
	if sell {
		return amount.Mul(price).Mul(net), true
	}
	return amount.Div(price).Mul(net), true
}

// HopPair finds the market on venue that converts from into to. sell is true
// when from is the pair's base.
func (v *MarketView) HopPair(venue, from, to string) (pair marketDomain.Pair, sell, ok bool) {
	direct := marketDomain.NewPair(from, to)
	if v.hasMarket(venue, direct) {
		return direct, true, true
	}
	inverse := direct.Inverse()
	if v.hasMarket(venue, inverse) {
		return inverse, false, true
	}
	return marketDomain.Pair{}, false, false
}

func (v *MarketView) hasMarket(venue string, pair marketDomain.Pair) bool {
	if _, ok := v.Ticker(venue, pair); ok {
		return true
	}
	_, ok := v.Pool(venue, pair)
	return ok
}
