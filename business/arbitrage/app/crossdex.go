package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	chainApp "github.com/fd1az/arbitrage-engine/business/chain/app"
	marketDomain "github.com/fd1az/arbitrage-engine/business/market/domain"
)

// CrossDEXDetector compares implied pool prices of the same pair across DEX
// deployments, including deployments on different networks.
type CrossDEXDetector struct {
	settings DetectorSettings
	bridges  chainApp.BridgeAdapter
}

// NewCrossDEXDetector creates a CrossDEXDetector.
func NewCrossDEXDetector(settings DetectorSettings, bridges chainApp.BridgeAdapter) *CrossDEXDetector {
	return &CrossDEXDetector{settings: settings, bridges: bridges}
}

func (d *CrossDEXDetector) Strategy() domain.Strategy { return domain.StrategyCrossDEX }

func (d *CrossDEXDetector) Detect(_ context.Context, view *MarketView) []*domain.Opportunity {
	var out []*domain.Opportunity
	for _, key := range view.PoolPairs {
		if opp := d.detectPair(view, view.Pools[key]); opp != nil {
			out = append(out, opp)
		}
	}
	return out
}

func (d *CrossDEXDetector) detectPair(view *MarketView, pools []*marketDomain.Pool) *domain.Opportunity {
	if len(pools) < 2 {
		return nil
	}

	buy, sell := pools[0], pools[0]
	for _, p := range pools[1:] {
		if p.Price().LessThan(buy.Price()) {
			buy = p
		}
		if p.Price().GreaterThan(sell.Price()) {
			sell = p
		}
	}
	if buy == sell {
		return nil
	}

	buyPrice, sellPrice := buy.Price(), sell.Price()
	net := domain.SpreadPct(buyPrice, sellPrice).Sub(domain.FeePct(buy.Fee, sell.Fee))
	if !net.IsPositive() {
		return nil
	}

	pair := buy.Pair
	crossNetwork := buy.Network != sell.Network
	risk := d.settings.Risk.For(pair.String())

	var (
		bridgeName   string
		bridgeFeePct = decimal.Zero
		completion   = 2 * d.settings.blockMinutes(buy.Network)
	)
	if crossNetwork {
		risk = domain.RiskHigh
		bridgeFeePct = d.settings.BridgeFeePct
		completion = d.settings.blockMinutes(buy.Network) + d.settings.blockMinutes(sell.Network)
		if d.bridges != nil {
			if found := d.bridges.FindBridges(buy.Network, sell.Network); len(found) > 0 {
				bridgeName = found[0].Name
				completion += float64(found[0].EstimatedMinutes)
				if found[0].FeePct.IsPositive() {
					bridgeFeePct = found[0].FeePct
				}
			}
		}
	}

	poolCap := decimal.Min(buy.LiquidityUSD(), sell.LiquidityUSD()).Mul(d.settings.PoolShare)
	volume := decimal.Min(poolCap, d.settings.MaxPosition)

	gas := d.settings.swapGasUSD(view, buy.Network).Add(d.settings.swapGasUSD(view, sell.Network))
	cost := gas.Add(volume.Mul(bridgeFeePct))

	route := fmt.Sprintf("buy %s on %s, sell on %s", pair.Base, poolVenue(buy), poolVenue(sell))
	if bridgeName != "" {
		route = fmt.Sprintf("buy %s on %s, bridge via %s, sell on %s", pair.Base, poolVenue(buy), bridgeName, poolVenue(sell))
	}

	return &domain.Opportunity{
		Pair:              pair.String(),
		BuyVenue:          buy.DEX,
		SellVenue:         sell.DEX,
		BuyVenueType:      domain.VenueDEX,
		SellVenueType:     domain.VenueDEX,
		BuyNetwork:        buy.Network,
		SellNetwork:       sell.Network,
		BuyPrice:          buyPrice,
		SellPrice:         sellPrice,
		ProfitPct:         net,
		Volume:            volume,
		EstimatedProfit:   domain.ProfitOn(volume, net).Sub(cost),
		EstimatedCost:     cost,
		CompletionMinutes: completion,
		Strategy:          domain.StrategyCrossDEX,
		Risk:              risk,
		Route:             route,
		Bridge:            bridgeName,
		CrossNetwork:      crossNetwork,
		Active:            true,
		Details: domain.CrossDEXDetails{
			Base:             pair.Base,
			Quote:            pair.Quote,
			BuyFee:           buy.Fee,
			SellFee:          sell.Fee,
			BuyLiquidityUSD:  buy.LiquidityUSD(),
			SellLiquidityUSD: sell.LiquidityUSD(),
			GasCostUSD:       gas,
			BridgeFeePct:     bridgeFeePct,
		},
	}
}
