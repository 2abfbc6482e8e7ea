// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"fmt"
	"strings"
)

// Strategy identifies the detector/executor pair that owns an opportunity.
type Strategy string

const (
	StrategySimple      Strategy = "simple"
	StrategyTriangular  Strategy = "triangular"
	StrategyCrossDEX    Strategy = "cross-dex"
	StrategyFlashLoan   Strategy = "flash-loan"
	StrategyStatistical Strategy = "statistical"
)

// Strategies lists every strategy in scan order.
func Strategies() []Strategy {
	return []Strategy{StrategySimple, StrategyTriangular, StrategyCrossDEX, StrategyFlashLoan, StrategyStatistical}
}

// ParseStrategy accepts the canonical names case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown strategy %q", s)
	}
	return st, nil
}

func (s Strategy) Valid() bool {
	switch s {
	case StrategySimple, StrategyTriangular, StrategyCrossDEX, StrategyFlashLoan, StrategyStatistical:
		return true
	}
	return false
}

// RiskTier is the coarse risk classification of an opportunity.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// ParseRiskTier parses low, medium or high.
func ParseRiskTier(s string) (RiskTier, error) {
	switch RiskTier(strings.ToLower(s)) {
	case RiskLow:
		return RiskLow, nil
	case RiskMedium:
		return RiskMedium, nil
	case RiskHigh:
		return RiskHigh, nil
	}
	return "", fmt.Errorf("unknown risk tier %q", s)
}

// Escalate moves one tier up; high stays high.
func (r RiskTier) Escalate() RiskTier {
	switch r {
	case RiskLow:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// VenueType distinguishes order-book venues from pools.
type VenueType string

const (
	VenueCEX VenueType = "CEX"
	VenueDEX VenueType = "DEX"
)
