package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	chainApp "github.com/fd1az/arbitrage-engine/business/chain/app"
	chainDomain "github.com/fd1az/arbitrage-engine/business/chain/domain"
	marketDomain "github.com/fd1az/arbitrage-engine/business/market/domain"
)

// FlashLoanDetector borrows a provider's token, buys the base asset on the
// cheapest pool of the provider's network and sells it on the dearest one,
// all inside one transaction.
type FlashLoanDetector struct {
	settings  DetectorSettings
	providers chainApp.FlashLoanAdapter
	quote     QuoteFunc
}

// NewFlashLoanDetector creates a FlashLoanDetector. A nil quote uses SpotQuote.
func NewFlashLoanDetector(settings DetectorSettings, providers chainApp.FlashLoanAdapter, quote QuoteFunc) *FlashLoanDetector {
	if quote == nil {
		quote = SpotQuote
	}
	return &FlashLoanDetector{settings: settings, providers: providers, quote: quote}
}

func (d *FlashLoanDetector) Strategy() domain.Strategy { return domain.StrategyFlashLoan }

func (d *FlashLoanDetector) Detect(_ context.Context, view *MarketView) []*domain.Opportunity {
	if d.providers == nil {
		return nil
	}
	var out []*domain.Opportunity
	for _, network := range d.settings.NetworkOrder {
		for _, provider := range d.providers.ProvidersForNetwork(network) {
			for _, token := range provider.Tokens {
				out = append(out, d.detectToken(view, provider, token)...)
			}
		}
	}
	return out
}

func (d *FlashLoanDetector) detectToken(view *MarketView, provider chainDomain.FlashLoanProvider, token string) []*domain.Opportunity {
	loan := decimal.Min(provider.MaxLoanUSD.Mul(d.settings.FlashLoanShare), d.settings.FlashLoanCap)
	if !loan.IsPositive() {
		return nil
	}

	var out []*domain.Opportunity
	for _, key := range view.PoolPairs {
		var pools []*marketDomain.Pool
		for _, p := range view.Pools[key] {
			if p.Network == provider.Network && p.Pair.Quote == token {
				pools = append(pools, p)
			}
		}
		if opp := d.roundTrip(view, provider, token, loan, pools); opp != nil {
			out = append(out, opp)
		}
	}
	return out
}

func (d *FlashLoanDetector) roundTrip(
	view *MarketView,
	provider chainDomain.FlashLoanProvider,
	token string,
	loan decimal.Decimal,
	pools []*marketDomain.Pool,
) *domain.Opportunity {
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

	base := buy.Pair.Base
	bought, ok := d.quote(view, poolVenue(buy), token, base, loan)
	if !ok || !bought.IsPositive() {
		return nil
	}
	back, ok := d.quote(view, poolVenue(sell), base, token, bought)
	if !ok {
		return nil
	}

	pct := domain.SpreadPct(loan, back).Sub(domain.FeePct(provider.FeePct))
	if !pct.IsPositive() {
		return nil
	}

	gas := d.settings.swapGasUSD(view, provider.Network).Mul(decimal.NewFromInt(2))
	return &domain.Opportunity{
		Pair:              buy.Pair.String(),
		BuyVenue:          buy.DEX,
		SellVenue:         sell.DEX,
		BuyVenueType:      domain.VenueDEX,
		SellVenueType:     domain.VenueDEX,
		BuyNetwork:        provider.Network,
		SellNetwork:       provider.Network,
		BuyPrice:          buy.Price(),
		SellPrice:         sell.Price(),
		ProfitPct:         pct,
		Volume:            loan,
		EstimatedProfit:   domain.ProfitOn(loan, pct).Sub(gas),
		EstimatedCost:     gas,
		CompletionMinutes: d.settings.blockMinutes(provider.Network),
		Strategy:          domain.StrategyFlashLoan,
		Risk:              domain.RiskHigh,
		Route: fmt.Sprintf("borrow %s %s from %s, buy %s on %s, sell on %s, repay",
			loan.StringFixed(2), token, provider.Name, base, poolVenue(buy), poolVenue(sell)),
		Active: true,
		Details: domain.FlashLoanDetails{
			Provider:    provider.Name,
			Network:     provider.Network,
			Token:       token,
			Base:        base,
			LoanAmount:  loan,
			ProviderFee: provider.FeePct,
		},
	}
}
