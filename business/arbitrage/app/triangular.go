package app

import (
	"context"
	"strings"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/config"
)

// TriangularDetector walks configured three-asset cycles on a single
// exchange, applying a slippage decay to the carried amount after each hop.
type TriangularDetector struct {
	settings DetectorSettings
	quote    QuoteFunc
}

// NewTriangularDetector creates a TriangularDetector. A nil quote uses SpotQuote.
func NewTriangularDetector(settings DetectorSettings, quote QuoteFunc) *TriangularDetector {
	if quote == nil {
		quote = SpotQuote
	}
	return &TriangularDetector{settings: settings, quote: quote}
}

func (d *TriangularDetector) Strategy() domain.Strategy { return domain.StrategyTriangular }

func (d *TriangularDetector) Detect(_ context.Context, view *MarketView) []*domain.Opportunity {
	var out []*domain.Opportunity
	for _, cycle := range d.settings.TriangularCycles {
		if !view.CEXStatus[cycle.Venue].Usable() {
			continue
		}
		if opp := d.evaluate(view, cycle); opp != nil {
			out = append(out, opp)
		}
	}
	return out
}

func (d *TriangularDetector) evaluate(view *MarketView, cycle config.TriangularCycle) *domain.Opportunity {
	if len(cycle.Assets) != 3 || !d.settings.TriangularStart.IsPositive() {
		return nil
	}

	start := d.settings.TriangularStart
	keep := one.Sub(d.settings.SlippageDecay)
	amount := start
	hops := make([]domain.Hop, 0, 3)

	for i, from := range cycle.Assets {
		to := cycle.Assets[(i+1)%3]
		pair, sell, ok := view.HopPair(cycle.Venue, from, to)
		if !ok {
			return nil
		}
		out, ok := d.quote(view, cycle.Venue, from, to, amount)
		if !ok || !out.IsPositive() {
			return nil
		}
		hops = append(hops, domain.Hop{
			From: from,
			To:   to,
			Pair: pair.String(),
			Sell: sell,
			Rate: out.Div(amount),
		})
		amount = out.Mul(keep)
	}

	profit := amount.Sub(start)
	pct := profit.Div(start).Mul(hundredPct)
	if !pct.IsPositive() {
		return nil
	}

	route := strings.Join(append(append([]string{}, cycle.Assets...), cycle.Assets[0]), " -> ")
	name := strings.Join(cycle.Assets, "/")
	return &domain.Opportunity{
		Pair:            name,
		BuyVenue:        cycle.Venue,
		SellVenue:       cycle.Venue,
		BuyVenueType:    domain.VenueCEX,
		SellVenueType:   domain.VenueCEX,
		BuyPrice:        start,
		SellPrice:       amount,
		ProfitPct:       pct,
		Volume:          start,
		EstimatedProfit: profit,
		Strategy:        domain.StrategyTriangular,
		Risk:            domain.TierForProfit(d.settings.Risk.For(name), pct),
		Route:           route + " on " + cycle.Venue,
		Active:          true,
		Details: domain.TriangularDetails{
			Venue:       cycle.Venue,
			Hops:        hops,
			StartAmount: start,
			FinalAmount: amount,
			Decay:       d.settings.SlippageDecay,
		},
	}
}
