package app

import (
	"context"
	"fmt"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
)

// StatisticalDetector samples each exchange mid-price once per cycle and
// signals a mean-reversion trade when it strays past the z-score threshold.
type StatisticalDetector struct {
	settings DetectorSettings
	zscore   *RollingZScore
	venues   map[string]bool
}

// NewStatisticalDetector creates a StatisticalDetector. An empty venue list
// in settings samples every exchange in the view.
func NewStatisticalDetector(settings DetectorSettings) *StatisticalDetector {
	var venues map[string]bool
	if len(settings.StatisticalVenues) > 0 {
		venues = make(map[string]bool, len(settings.StatisticalVenues))
		for _, v := range settings.StatisticalVenues {
			venues[v] = true
		}
	}
	return &StatisticalDetector{
		settings: settings,
		zscore:   NewRollingZScore(settings.ZScoreWindow),
		venues:   venues,
	}
}

func (d *StatisticalDetector) Strategy() domain.Strategy { return domain.StrategyStatistical }

func (d *StatisticalDetector) Detect(_ context.Context, view *MarketView) []*domain.Opportunity {
	threshold := d.settings.ZScoreThreshold
	if !threshold.IsPositive() {
		return nil
	}

	var out []*domain.Opportunity
	for _, key := range view.Pairs {
		for _, t := range view.Tickers[key] {
			if d.venues != nil && !d.venues[t.Venue] {
				continue
			}
			mid := t.Mid()
			sig, ok := d.zscore.Observe(t.Venue+"|"+key, mid)
			if !ok || sig.Z.Abs().LessThan(threshold) {
				continue
			}

			pct := sig.Mean.Sub(mid).Abs().Div(mid).Mul(hundredPct)
			if !pct.IsPositive() {
				continue
			}

			scale := sig.Z.Abs().Div(threshold)
			if d.settings.StatMaxScale.IsPositive() && scale.GreaterThan(d.settings.StatMaxScale) {
				scale = d.settings.StatMaxScale
			}
			size := d.settings.StatBaseSize.Mul(scale)
			side := domain.SideFromZ(sig.Z)

			out = append(out, &domain.Opportunity{
				Pair:            key,
				BuyVenue:        t.Venue,
				SellVenue:       t.Venue,
				BuyVenueType:    domain.VenueCEX,
				SellVenueType:   domain.VenueCEX,
				BuyPrice:        mid,
				SellPrice:       sig.Mean,
				ProfitPct:       pct,
				Volume:          size,
				EstimatedProfit: domain.ProfitOn(size, pct),
				Strategy:        domain.StrategyStatistical,
				Risk:            domain.TierForProfit(d.settings.Risk.For(key), pct),
				Route:           fmt.Sprintf("%s %s on %s, z=%s", side, t.Pair.Base, t.Venue, sig.Z.StringFixed(2)),
				Active:          true,
				Details: domain.StatisticalDetails{
					Venue:  t.Venue,
					ZScore: sig.Z,
					Mean:   sig.Mean,
					StdDev: sig.StdDev,
					Side:   side,
				},
			})
		}
	}
	return out
}
