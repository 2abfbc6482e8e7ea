package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

func TestTierForProfit(t *testing.T) {
	tests := []struct {
		base   RiskTier
		profit string
		want   RiskTier
	}{
		{RiskLow, "2.0", RiskLow},
		{RiskLow, "3", RiskLow},
		{RiskLow, "3.01", RiskMedium},
		{RiskMedium, "4", RiskHigh},
		{RiskLow, "5.5", RiskHigh},
		{RiskHigh, "0.1", RiskHigh},
	}
	for _, tt := range tests {
		t.Run(string(tt.base)+"_"+tt.profit, func(t *testing.T) {
			if got := TierForProfit(tt.base, decimal.RequireFromString(tt.profit)); got != tt.want {
				t.Errorf("TierForProfit(%s, %s) = %s, want %s", tt.base, tt.profit, got, tt.want)
			}
		})
	}
}

func TestSpreadPct(t *testing.T) {
	got := SpreadPct(decimal.NewFromInt(100), decimal.NewFromInt(102))
	if !got.Equal(decimal.NewFromInt(2)) {
		t.Errorf("SpreadPct(100, 102) = %s, want 2", got)
	}
	if !SpreadPct(decimal.Zero, decimal.NewFromInt(1)).IsZero() {
		t.Error("SpreadPct with zero buy should be zero")
	}
	if got := FeePct(decimal.RequireFromString("0.003"), decimal.RequireFromString("0.003")); !got.Equal(decimal.RequireFromString("0.6")) {
		t.Errorf("FeePct = %s, want 0.6", got)
	}
}

func TestOpportunity_Validate(t *testing.T) {
	base := Opportunity{Pair: "BTC/USDT", Strategy: StrategySimple, ProfitPct: decimal.NewFromInt(2), Details: SimpleDetails{}}

	tests := []struct {
		name   string
		mutate func(o *Opportunity)
		code   apperror.Code
	}{
		{"valid", func(*Opportunity) {}, ""},
		{"zero profit", func(o *Opportunity) { o.ProfitPct = decimal.Zero }, apperror.CodeNonPositiveProfit},
		{"negative profit", func(o *Opportunity) { o.ProfitPct = decimal.NewFromInt(-1) }, apperror.CodeNonPositiveProfit},
		{"bad strategy", func(o *Opportunity) { o.Strategy = "momentum" }, apperror.CodeInvalidInput},
		{"details mismatch", func(o *Opportunity) { o.Details = CrossDEXDetails{} }, apperror.CodeInvalidState},
		{"no pair", func(o *Opportunity) { o.Pair = "" }, apperror.CodeRequiredField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			tt.mutate(&o)
			err := o.Validate()
			if tt.code == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !apperror.HasCode(err, tt.code) {
				t.Errorf("Validate() = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestOpportunity_DetailsEnvelope(t *testing.T) {
	opp := Opportunity{
		ID:        7,
		Pair:      "ETH/USDT",
		Strategy:  StrategyStatistical,
		ProfitPct: decimal.RequireFromString("1.25"),
		Active:    true,
		Details: StatisticalDetails{
			Venue:  "paper-alpha",
			ZScore: decimal.RequireFromString("-2.5"),
			Side:   Short,
		},
	}

	raw, err := json.Marshal(opp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"details":{"kind":"statistical","data":{`) {
		t.Errorf("envelope missing from %s", raw)
	}

	var back Opportunity
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	d, ok := back.Details.(StatisticalDetails)
	if !ok {
		t.Fatalf("Details = %T, want StatisticalDetails", back.Details)
	}
	if d.Side != Short || !d.ZScore.Equal(decimal.RequireFromString("-2.5")) {
		t.Errorf("details = %+v", d)
	}
	if back.ID != 7 || !back.Active || !back.ProfitPct.Equal(opp.ProfitPct) {
		t.Errorf("opportunity fields lost: %+v", back)
	}

	if err := json.Unmarshal([]byte(`{"id":1,"details":{"kind":"momentum","data":{}}}`), &back); err == nil {
		t.Error("expected unknown details kind to fail")
	}
}

func TestLegError(t *testing.T) {
	cause := errors.New("exchange said no")
	err := error(NewLegError(StrategySimple, 42, 1, "sell order", []string{"ref-1"}, cause))

	if !apperror.HasCode(err, apperror.CodeLegFailure) {
		t.Errorf("LegError should carry LEG_FAILURE, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("LegError should unwrap to its cause")
	}

	var legErr *LegError
	if !errors.As(err, &legErr) {
		t.Fatal("errors.As(*LegError) failed")
	}
	if legErr.Leg != 1 || legErr.OpportunityID != 42 || len(legErr.Refs) != 1 {
		t.Errorf("LegError = %+v", legErr)
	}
}

func TestPosition_PnL(t *testing.T) {
	tests := []struct {
		side PositionSide
		exit string
		want string
	}{
		{Long, "110", "20"},
		{Long, "95", "-10"},
		{Short, "95", "10"},
		{Short, "110", "-20"},
	}
	for _, tt := range tests {
		p := Position{Side: tt.side, Size: decimal.NewFromInt(2), EntryPrice: decimal.NewFromInt(100)}
		if got := p.PnL(decimal.RequireFromString(tt.exit)); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("%s exit %s: PnL = %s, want %s", tt.side, tt.exit, got, tt.want)
		}
	}
	if SideFromZ(decimal.RequireFromString("-0.1")) != Short || SideFromZ(decimal.NewFromInt(2)) != Long {
		t.Error("SideFromZ sign mapping wrong")
	}
}
