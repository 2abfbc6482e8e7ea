package infra

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/app"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
)

func TestConsoleReporter_Opportunity(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf, false)

	r.ReportOpportunity(context.Background(), &domain.Opportunity{
		ID:           12,
		Pair:         "ETH/USDT",
		Strategy:     domain.StrategyCrossDEX,
		BuyVenue:     "uni",
		SellVenue:    "camelot",
		BuyNetwork:   "ethereum",
		SellNetwork:  "arbitrum",
		CrossNetwork: true,
		ProfitPct:    decimal.RequireFromString("1.25"),
		Risk:         domain.RiskHigh,
	})

	out := buf.String()
	for _, want := range []string{"#12 cross-dex ETH/USDT", "uni @", "+1.2500%", "ethereum -> arbitrum via none", "high"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleReporter_QuietSkipsIdleCycles(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf, true)
	ctx := context.Background()

	r.ReportCycle(ctx, app.CycleReport{Started: time.Now()})
	if buf.Len() != 0 {
		t.Fatalf("idle cycle printed in quiet mode: %q", buf.String())
	}

	r.ReportCycle(ctx, app.CycleReport{Skipped: true, Reason: "circuit breaker open"})
	if !strings.Contains(buf.String(), "SKIPPED circuit breaker open") {
		t.Errorf("skipped cycle = %q", buf.String())
	}

	buf.Reset()
	r.ReportCycle(ctx, app.CycleReport{
		Stored:    2,
		Venues:    4,
		Found:     map[domain.Strategy]int{domain.StrategyTriangular: 1, domain.StrategySimple: 1},
		Unhealthy: []string{"gamma"},
	})
	out := buf.String()
	for _, want := range []string{"venues=4 stored=2", "[simple=1 triangular=1]", "down: gamma"} {
		if !strings.Contains(out, want) {
			t.Errorf("cycle line missing %q: %s", want, out)
		}
	}
}

func TestConsoleReporter_StopPrintsLastStats(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf, true)

	r.ReportCycle(context.Background(), app.CycleReport{Stats: domain.Stats{ActiveOpportunities: 3, Cycles: 9, BreakerSkips: 2}})
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "breaker skips") || !strings.Contains(out, "engine stopped") {
		t.Errorf("stop output = %s", out)
	}
}

func TestRenderExecution(t *testing.T) {
	out := RenderExecution(&domain.ExecutionResult{
		ID:            "x1",
		OpportunityID: 4,
		Strategy:      domain.StrategySimple,
		Leg:           1,
		TxRefs:        []string{"alpha-1"},
		ErrorCode:     "LEG_FAILURE",
		Error:         "order rejected",
	})
	for _, want := range []string{"FAILED", "alpha-1", "[LEG_FAILURE] leg 1: order rejected"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}
}

type recordingReporter struct {
	name     string
	log      *[]string
	startErr error
}

func (r *recordingReporter) Start(context.Context) error {
	*r.log = append(*r.log, r.name+":start")
	return r.startErr
}

func (r *recordingReporter) ReportOpportunity(context.Context, *domain.Opportunity) {
	*r.log = append(*r.log, r.name+":opp")
}

func (r *recordingReporter) ReportCycle(context.Context, app.CycleReport) {
	*r.log = append(*r.log, r.name+":cycle")
}

func (r *recordingReporter) ReportExecution(context.Context, *domain.ExecutionResult) {
	*r.log = append(*r.log, r.name+":exec")
}

func (r *recordingReporter) Stop() error {
	*r.log = append(*r.log, r.name+":stop")
	return nil
}

func TestMultiReporter(t *testing.T) {
	var log []string
	a := &recordingReporter{name: "a", log: &log}
	b := &recordingReporter{name: "b", log: &log}
	m := NewMultiReporter(a, nil, b)
	ctx := context.Background()

	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.ReportOpportunity(ctx, &domain.Opportunity{})
	m.ReportCycle(ctx, app.CycleReport{})
	m.ReportExecution(ctx, &domain.ExecutionResult{})
	_ = m.Stop()

	want := "a:start b:start a:opp b:opp a:cycle b:cycle a:exec b:exec a:stop b:stop"
	if got := strings.Join(log, " "); got != want {
		t.Errorf("calls = %s\nwant    %s", got, want)
	}
}

func TestMultiReporter_StartFailureStopsStarted(t *testing.T) {
	var log []string
	a := &recordingReporter{name: "a", log: &log}
	b := &recordingReporter{name: "b", log: &log, startErr: errors.New("boom")}

	if err := NewMultiReporter(a, b).Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if got := strings.Join(log, " "); got != "a:start b:start a:stop" {
		t.Errorf("calls = %s", got)
	}
}
