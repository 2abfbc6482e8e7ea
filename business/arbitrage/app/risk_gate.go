package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

// RiskLimits configures the RiskGate.
type RiskLimits struct {
	MaxConsecutiveLosses int
	DailyLossLimit       decimal.Decimal
	LiquidityMultiple    decimal.Decimal
	ResetPeriod          time.Duration
}

// RiskGate owns the process-wide RiskState. The loss counter and daily P/L
// are zeroed only when ResetPeriod has elapsed since the last reset.
type RiskGate struct {
	mu     sync.Mutex
	limits RiskLimits
	state  domain.RiskState
	now    func() time.Time
}

// NewRiskGate creates a gate whose reset window starts now.
func NewRiskGate(limits RiskLimits) *RiskGate {
	if limits.ResetPeriod <= 0 {
		limits.ResetPeriod = 24 * time.Hour
	}
	g := &RiskGate{limits: limits, now: time.Now}
	g.state.LastReset = g.now()
	return g
}

// AdmitCycle refuses a scan cycle while the breaker is tripped.
func (g *RiskGate) AdmitCycle() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkLocked()
}

// AdmitExecution refuses an execution while the breaker is tripped.
func (g *RiskGate) AdmitExecution() error {
	return g.AdmitCycle()
}

func (g *RiskGate) checkLocked() error {
	g.maybeResetLocked()

	reason := ""
	switch {
	case g.limits.MaxConsecutiveLosses > 0 && g.state.ConsecutiveLosses >= g.limits.MaxConsecutiveLosses:
		reason = fmt.Sprintf("%d consecutive losses", g.state.ConsecutiveLosses)
	case g.limits.DailyLossLimit.IsPositive() && g.state.DailyPnL.LessThan(g.limits.DailyLossLimit.Neg()):
		reason = fmt.Sprintf("daily P/L %s below -%s", g.state.DailyPnL.StringFixed(2), g.limits.DailyLossLimit.StringFixed(2))
	}

	g.state.Tripped = reason != ""
	g.state.Reason = reason
	if g.state.Tripped {
		return apperror.New(apperror.CodeCircuitBreakerTripped, apperror.WithContext(reason))
	}
	return nil
}

func (g *RiskGate) maybeResetLocked() {
	now := g.now()
	if now.Sub(g.state.LastReset) < g.limits.ResetPeriod {
		return
	}
	g.state.ConsecutiveLosses = 0
	g.state.DailyPnL = decimal.Zero
	g.state.LastReset = now
}

// RecordResult folds an execution outcome into the state. A failure costs
// the attempted notional; a success resets the loss streak.
func (g *RiskGate) RecordResult(success bool, notional, realized decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.maybeResetLocked()
	if success {
		g.state.ConsecutiveLosses = 0
		g.state.DailyPnL = g.state.DailyPnL.Add(realized)
		return
	}
	g.state.ConsecutiveLosses++
	g.state.DailyPnL = g.state.DailyPnL.Sub(notional)
}

// RecordPnL books realized P/L that is not an execution attempt, such as a
// closed statistical position. Losses extend the streak.
func (g *RiskGate) RecordPnL(realized decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.maybeResetLocked()
	g.state.DailyPnL = g.state.DailyPnL.Add(realized)
	if realized.IsNegative() {
		g.state.ConsecutiveLosses++
	} else {
		g.state.ConsecutiveLosses = 0
	}
}

// AdmitOpportunity rejects a candidate that loses money after fees or, for
// pool trades, sits in pools too shallow for the intended position.
func (g *RiskGate) AdmitOpportunity(opp *domain.Opportunity, position decimal.Decimal) error {
	if !opp.ProfitPct.IsPositive() || opp.EstimatedProfit.IsNegative() {
		return apperror.New(apperror.CodeNonPositiveProfit,
			apperror.WithContext(fmt.Sprintf("%s %s: %s%% net %s", opp.Strategy, opp.Pair, opp.ProfitPct.StringFixed(4), opp.EstimatedProfit.StringFixed(2))))
	}

	if d, ok := opp.Details.(domain.CrossDEXDetails); ok {
		need := position.Mul(g.limits.LiquidityMultiple)
		if d.MinLiquidityUSD().LessThan(need) {
			return apperror.New(apperror.CodeInsufficientLiquidity,
				apperror.WithContext(fmt.Sprintf("%s: pool liquidity %s < %s", opp.Pair, d.MinLiquidityUSD().StringFixed(2), need.StringFixed(2))))
		}
	}
	return nil
}

// State returns a copy of the current RiskState.
func (g *RiskGate) State() domain.RiskState {
	g.mu.Lock()
	defer g.mu.Unlock()
	_ = g.checkLocked()
	return g.state
}
