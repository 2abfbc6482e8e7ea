package app

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	marketApp "github.com/fd1az/arbitrage-engine/business/market/app"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

// SizingLimits configures the PositionSizer.
type SizingLimits struct {
	MaxPosition     decimal.Decimal
	MinPosition     decimal.Decimal
	FallbackBalance decimal.Decimal
	Factors         map[domain.Strategy]decimal.Decimal
	Wallet          string
}

// NewSizingLimits reads sizing limits from cfg.
func NewSizingLimits(cfg *config.Config) SizingLimits {
	f := cfg.Sizing.Factors
	return SizingLimits{
		MaxPosition:     cfg.Sizing.MaxPositionDecimal(),
		MinPosition:     cfg.Sizing.MinPositionDecimal(),
		FallbackBalance: cfg.Sizing.FallbackBalanceDecimal(),
		Factors: map[domain.Strategy]decimal.Decimal{
			domain.StrategySimple:      decimal.NewFromFloat(f.Simple),
			domain.StrategyTriangular:  decimal.NewFromFloat(f.Triangular),
			domain.StrategyCrossDEX:    decimal.NewFromFloat(f.CrossDEX),
			domain.StrategyFlashLoan:   decimal.NewFromFloat(f.FlashLoan),
			domain.StrategyStatistical: decimal.NewFromFloat(f.Statistical),
		},
		Wallet: cfg.Engine.WalletAddress,
	}
}

// PositionSizer turns an opportunity's advertised volume into the notional
// an execution commits.
type PositionSizer struct {
	limits SizingLimits
	cex    marketApp.CEXAdapter
	dex    marketApp.DEXAdapter
	log    logger.LoggerInterface
}

// NewPositionSizer creates a PositionSizer.
func NewPositionSizer(limits SizingLimits, cex marketApp.CEXAdapter, dex marketApp.DEXAdapter, log logger.LoggerInterface) *PositionSizer {
	return &PositionSizer{limits: limits, cex: cex, dex: dex, log: log}
}

// Bound clamps volume into [min, max]. It needs no venue access and is what
// detection-time admission uses.
func (s *PositionSizer) Bound(opp *domain.Opportunity) decimal.Decimal {
	size := opp.Volume
	if s.limits.MaxPosition.IsPositive() && size.GreaterThan(s.limits.MaxPosition) {
		size = s.limits.MaxPosition
	}
	if size.LessThan(s.limits.MinPosition) {
		size = s.limits.MinPosition
	}
	return size
}

// Size bounds the volume, caps it at the buy-side balance and applies the
// strategy factor. A failed balance query falls back to the configured
// conservative balance.
func (s *PositionSizer) Size(ctx context.Context, opp *domain.Opportunity) decimal.Decimal {
	size := s.Bound(opp)

	if balance, ok := s.balance(ctx, opp); ok && size.GreaterThan(balance) {
		size = balance
	}

	factor, ok := s.limits.Factors[opp.Strategy]
	if !ok {
		factor = one
	}
	return size.Mul(factor)
}

// balance reports the funds available to the buy leg. ok is false when the
// strategy does not draw on a balance.
func (s *PositionSizer) balance(ctx context.Context, opp *domain.Opportunity) (decimal.Decimal, bool) {
	var (
		bal decimal.Decimal
		err error
	)
	switch d := opp.Details.(type) {
	case domain.FlashLoanDetails:
		return decimal.Zero, false
	case domain.TriangularDetails:
		if s.cex == nil {
			return s.limits.FallbackBalance, true
		}
		bal, err = s.cex.GetBalance(ctx, d.Venue, d.StartAsset())
	case domain.CrossDEXDetails:
		if s.dex == nil {
			return s.limits.FallbackBalance, true
		}
		bal, err = s.dex.GetTokenBalance(ctx, opp.BuyNetwork, d.Quote, s.limits.Wallet)
	default:
		if s.cex == nil {
			return s.limits.FallbackBalance, true
		}
		bal, err = s.cex.GetBalance(ctx, opp.BuyVenue, quoteOf(opp.Pair))
	}

	if err != nil {
		s.log.Warn(ctx, "balance query failed, using fallback",
			"opportunity", opp.ID, "venue", opp.BuyVenue, "fallback", s.limits.FallbackBalance.String(), "error", err)
		return s.limits.FallbackBalance, true
	}
	return bal, true
}

func quoteOf(pair string) string {
	if i := strings.LastIndex(pair, "/"); i >= 0 {
		return pair[i+1:]
	}
	return pair
}
