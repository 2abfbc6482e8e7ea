package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

func TestRiskGate_ConsecutiveLosses(t *testing.T) {
	g := NewRiskGate(testLimits())

	for i := range 2 {
		g.RecordResult(false, dec("10"), decimal.Zero)
		if err := g.AdmitCycle(); err != nil {
			t.Fatalf("tripped after %d losses: %v", i+1, err)
		}
	}
	g.RecordResult(false, dec("10"), decimal.Zero)

	err := g.AdmitCycle()
	if !apperror.HasCode(err, apperror.CodeCircuitBreakerTripped) {
		t.Fatalf("AdmitCycle() = %v, want breaker tripped", err)
	}
	if err := g.AdmitExecution(); !apperror.HasCode(err, apperror.CodeCircuitBreakerTripped) {
		t.Errorf("AdmitExecution() = %v, want breaker tripped", err)
	}

	st := g.State()
	if !st.Tripped || st.ConsecutiveLosses != 3 || st.Reason == "" {
		t.Errorf("State() = %+v", st)
	}
	if !st.DailyPnL.Equal(dec("-30")) {
		t.Errorf("DailyPnL = %s, want -30", st.DailyPnL)
	}
}

func TestRiskGate_SuccessResetsStreak(t *testing.T) {
	g := NewRiskGate(testLimits())

	g.RecordResult(false, dec("10"), decimal.Zero)
	g.RecordResult(false, dec("10"), decimal.Zero)
	g.RecordResult(true, dec("10"), dec("5"))
	g.RecordResult(false, dec("10"), decimal.Zero)

	if err := g.AdmitCycle(); err != nil {
		t.Fatalf("AdmitCycle() = %v", err)
	}
	st := g.State()
	if st.ConsecutiveLosses != 1 {
		t.Errorf("ConsecutiveLosses = %d, want 1", st.ConsecutiveLosses)
	}
	if !st.DailyPnL.Equal(dec("-25")) {
		t.Errorf("DailyPnL = %s, want -25", st.DailyPnL)
	}
}

func TestRiskGate_DailyLossLimit(t *testing.T) {
	g := NewRiskGate(testLimits())

	g.RecordResult(false, dec("1000"), decimal.Zero)
	if err := g.AdmitCycle(); err != nil {
		t.Fatalf("exactly at the limit must not trip: %v", err)
	}

	g.RecordPnL(dec("0.01"))
	g.RecordPnL(dec("-0.02"))
	if err := g.AdmitCycle(); !apperror.HasCode(err, apperror.CodeCircuitBreakerTripped) {
		t.Fatalf("AdmitCycle() = %v, want breaker tripped", err)
	}
}

func TestRiskGate_ResetAfterPeriod(t *testing.T) {
	g := NewRiskGate(testLimits())
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return start }
	g.state.LastReset = start

	for range 3 {
		g.RecordResult(false, dec("10"), decimal.Zero)
	}
	if err := g.AdmitCycle(); err == nil {
		t.Fatal("expected the breaker to trip")
	}

	g.now = func() time.Time { return start.Add(23 * time.Hour) }
	if err := g.AdmitCycle(); err == nil {
		t.Fatal("breaker reset before the period elapsed")
	}

	g.now = func() time.Time { return start.Add(24 * time.Hour) }
	if err := g.AdmitCycle(); err != nil {
		t.Fatalf("AdmitCycle() after reset = %v", err)
	}
	st := g.State()
	if st.Tripped || st.ConsecutiveLosses != 0 || !st.DailyPnL.IsZero() {
		t.Errorf("State() after reset = %+v", st)
	}
	if !st.LastReset.Equal(start.Add(24 * time.Hour)) {
		t.Errorf("LastReset = %s", st.LastReset)
	}
}

func TestRiskGate_RecordPnL(t *testing.T) {
	g := NewRiskGate(testLimits())

	g.RecordPnL(dec("-5"))
	g.RecordPnL(dec("-5"))
	if st := g.State(); st.ConsecutiveLosses != 2 {
		t.Fatalf("ConsecutiveLosses = %d, want 2", st.ConsecutiveLosses)
	}
	g.RecordPnL(dec("12"))
	st := g.State()
	if st.ConsecutiveLosses != 0 || !st.DailyPnL.Equal(dec("2")) {
		t.Errorf("State() = %+v", st)
	}
}

func TestRiskGate_AdmitOpportunity(t *testing.T) {
	crossDEX := func(liquidity string) *domain.Opportunity {
		return &domain.Opportunity{
			Pair:            "ETH/USDT",
			Strategy:        domain.StrategyCrossDEX,
			ProfitPct:       dec("1"),
			EstimatedProfit: dec("10"),
			Details: domain.CrossDEXDetails{
				BuyLiquidityUSD:  dec(liquidity),
				SellLiquidityUSD: dec("1000000"),
			},
		}
	}

	tests := []struct {
		name     string
		opp      *domain.Opportunity
		position string
		wantCode apperror.Code
	}{
		{
			name:     "deep enough pools",
			opp:      crossDEX("2000"),
			position: "1000",
		},
		{
			name:     "pool shallower than twice the position",
			opp:      crossDEX("1999"),
			position: "1000",
			wantCode: apperror.CodeInsufficientLiquidity,
		},
		{
			name:     "zero profit",
			opp:      &domain.Opportunity{Pair: "SOL/USDT", Strategy: domain.StrategySimple, ProfitPct: decimal.Zero},
			position: "1000",
			wantCode: apperror.CodeNonPositiveProfit,
		},
		{
			name: "costs exceed the spread",
			opp: &domain.Opportunity{
				Pair: "SOL/USDT", Strategy: domain.StrategySimple,
				ProfitPct: dec("0.5"), EstimatedProfit: dec("-1"),
			},
			position: "1000",
			wantCode: apperror.CodeNonPositiveProfit,
		},
		{
			name: "liquidity is not checked outside pool trades",
			opp: &domain.Opportunity{
				Pair: "SOL/USDT", Strategy: domain.StrategySimple,
				ProfitPct: dec("0.5"), EstimatedProfit: dec("1"),
			},
			position: "1000000",
		},
	}

	g := NewRiskGate(testLimits())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.AdmitOpportunity(tt.opp, dec(tt.position))
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("AdmitOpportunity() = %v, want nil", err)
				}
				return
			}
			if !apperror.HasCode(err, tt.wantCode) {
				t.Fatalf("AdmitOpportunity() = %v, want %s", err, tt.wantCode)
			}
		})
	}
}
