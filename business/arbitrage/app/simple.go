package app

import (
	"context"
	"fmt"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	marketDomain "github.com/fd1az/arbitrage-engine/business/market/domain"
)

// SimpleDetector buys at the lowest ask and sells at the highest bid of the
// same pair on two different exchanges.
type SimpleDetector struct {
	settings DetectorSettings
}

// NewSimpleDetector creates a SimpleDetector.
func NewSimpleDetector(settings DetectorSettings) *SimpleDetector {
	return &SimpleDetector{settings: settings}
}

func (d *SimpleDetector) Strategy() domain.Strategy { return domain.StrategySimple }

// Detect emits at most one opportunity per pair.
func (d *SimpleDetector) Detect(_ context.Context, view *MarketView) []*domain.Opportunity {
	var out []*domain.Opportunity
	for _, key := range view.Pairs {
		if opp := d.detectPair(view.Tickers[key]); opp != nil {
			out = append(out, opp)
		}
	}
	return out
}

func (d *SimpleDetector) detectPair(tickers []*marketDomain.Ticker) *domain.Opportunity {
	if len(tickers) < 2 {
		return nil
	}

	buy, sell := tickers[0], tickers[0]
	for _, t := range tickers[1:] {
		if t.Ask.LessThan(buy.Ask) {
			buy = t
		}
		if t.Bid.GreaterThan(sell.Bid) {
			sell = t
		}
	}
	if buy.Venue == sell.Venue {
		return nil
	}

	pct := domain.SpreadPct(buy.Ask, sell.Bid)
	if !pct.IsPositive() {
		return nil
	}

	pair := buy.Pair
	volume := d.settings.MaxPosition
	if depth := minPositive(buy.Volume, sell.Volume); depth.IsPositive() {
		volume = depth.Mul(d.settings.VolumeShare).Mul(buy.Ask)
	}

	return &domain.Opportunity{
		Pair:            pair.String(),
		BuyVenue:        buy.Venue,
		SellVenue:       sell.Venue,
		BuyVenueType:    domain.VenueCEX,
		SellVenueType:   domain.VenueCEX,
		BuyPrice:        buy.Ask,
		SellPrice:       sell.Bid,
		ProfitPct:       pct,
		Volume:          volume,
		EstimatedProfit: domain.ProfitOn(volume, pct),
		Strategy:        domain.StrategySimple,
		Risk:            domain.TierForProfit(d.settings.Risk.For(pair.String()), pct),
		Route:           fmt.Sprintf("buy %s on %s, sell on %s", pair.Base, buy.Venue, sell.Venue),
		Active:          true,
		Details:         domain.SimpleDetails{Base: pair.Base, Quote: pair.Quote},
	}
}
