package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	chainDomain "github.com/fd1az/arbitrage-engine/business/chain/domain"
	"github.com/fd1az/arbitrage-engine/internal/config"
)

// Detector turns a market view into candidate opportunities. Detectors never
// call venues; everything they need is in the view.
type Detector interface {
	Strategy() domain.Strategy
	Detect(ctx context.Context, view *MarketView) []*domain.Opportunity
}

// RiskTable is the static pair -> risk classification.
type RiskTable struct {
	Default domain.RiskTier
	Pairs   map[string]domain.RiskTier
}

// NewRiskTable builds the table from detector config.
func NewRiskTable(cfg config.DetectorsConfig) (RiskTable, error) {
	def, err := domain.ParseRiskTier(cfg.DefaultRisk)
	if err != nil {
		return RiskTable{}, err
	}
	t := RiskTable{Default: def, Pairs: make(map[string]domain.RiskTier, len(cfg.PairRisk))}
	for _, pr := range cfg.PairRisk {
		tier, err := domain.ParseRiskTier(pr.Risk)
		if err != nil {
			return RiskTable{}, fmt.Errorf("pair %s: %w", pr.Pair, err)
		}
		t.Pairs[pr.Pair] = tier
	}
	return t, nil
}

// For returns the tier of pair, or the default.
func (t RiskTable) For(pair string) domain.RiskTier {
	if tier, ok := t.Pairs[pair]; ok {
		return tier
	}
	if t.Default == "" {
		return domain.RiskMedium
	}
	return t.Default
}

// DetectorSettings collects the tunables shared by the detectors.
type DetectorSettings struct {
	Risk          RiskTable
	MaxPosition   decimal.Decimal
	VolumeShare   decimal.Decimal
	SlippageDecay decimal.Decimal

	TriangularCycles []config.TriangularCycle
	TriangularStart  decimal.Decimal

	PoolShare    decimal.Decimal
	BridgeFeePct decimal.Decimal
	Networks     map[string]config.NetworkConfig
	NetworkOrder []string

	FlashLoanShare decimal.Decimal
	FlashLoanCap   decimal.Decimal

	ZScoreThreshold   decimal.Decimal
	ZScoreWindow      int
	StatBaseSize      decimal.Decimal
	StatMaxScale      decimal.Decimal
	StatisticalVenues []string
}

// NewDetectorSettings reads the detector tunables from cfg.
func NewDetectorSettings(cfg *config.Config) (DetectorSettings, error) {
	risk, err := NewRiskTable(cfg.Detectors)
	if err != nil {
		return DetectorSettings{}, err
	}
	networks := make(map[string]config.NetworkConfig, len(cfg.Networks))
	order := make([]string, 0, len(cfg.Networks))
	for _, n := range cfg.Networks {
		networks[n.Name] = n
		order = append(order, n.Name)
	}
	d := cfg.Detectors
	return DetectorSettings{
		Risk:              risk,
		MaxPosition:       cfg.Sizing.MaxPositionDecimal(),
		VolumeShare:       decimal.NewFromFloat(d.VolumeShare),
		SlippageDecay:     decimal.NewFromFloat(d.SlippageDecay),
		TriangularCycles:  d.TriangularCycles,
		TriangularStart:   decimal.NewFromFloat(d.TriangularStart),
		PoolShare:         decimal.NewFromFloat(d.PoolShare),
		BridgeFeePct:      cfg.Engine.BridgeFeePctDecimal(),
		Networks:          networks,
		NetworkOrder:      order,
		FlashLoanShare:    decimal.NewFromFloat(d.FlashLoanShare),
		FlashLoanCap:      decimal.NewFromFloat(d.FlashLoanCap),
		ZScoreThreshold:   decimal.NewFromFloat(d.ZScoreThreshold),
		ZScoreWindow:      d.ZScoreWindow,
		StatBaseSize:      decimal.NewFromFloat(d.StatBaseSize),
		StatMaxScale:      decimal.NewFromFloat(d.StatMaxScale),
		StatisticalVenues: d.StatisticalVenues,
	}, nil
}

// swapGasUSD prices one swap on network at the view's average gas price.
// Networks without a gas snapshot cost nothing.
func (s DetectorSettings) swapGasUSD(view *MarketView, network string) decimal.Decimal {
	n, ok := s.Networks[network]
	if !ok {
		return decimal.Zero
	}
	snap, ok := view.Gas[network]
	if !ok {
		return decimal.Zero
	}
	return chainDomain.NewGasCost(n.SwapGasLimit, snap.Average, n.NativePriceDecimal()).USD
}

// blockMinutes is the block time of network in minutes, one minute if unknown.
func (s DetectorSettings) blockMinutes(network string) float64 {
	n, ok := s.Networks[network]
	if !ok || n.BlockTime <= 0 {
		return 1
	}
	return n.BlockTime.Minutes()
}

// minPositive is the smaller of a and b, or zero unless both are positive.
func minPositive(a, b decimal.Decimal) decimal.Decimal {
	if !a.IsPositive() || !b.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(a, b)
}
