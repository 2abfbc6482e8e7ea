// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/app"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/pkg/ui"
)

// ConsoleReporter renders engine events to a terminal.
type ConsoleReporter struct {
	mu    sync.Mutex
	out   io.Writer
	quiet bool
	last  *domain.Stats
}

// NewConsoleReporter writes to stdout. In quiet mode idle cycles are not printed.
func NewConsoleReporter(quiet bool) *ConsoleReporter {
	return NewConsoleReporterTo(os.Stdout, quiet)
}

// NewConsoleReporterTo writes to w.
func NewConsoleReporterTo(w io.Writer, quiet bool) *ConsoleReporter {
	return &ConsoleReporter{out: w, quiet: quiet}
}

func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.println(ui.TitleStyle.Render(" Arbitrage Engine "))
	return nil
}

// Stop prints the statistics carried by the last cycle.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	last := r.last
	r.mu.Unlock()
	if last != nil {
		r.println(RenderStats(*last))
	}
	r.println(ui.MutedValue.Render("engine stopped"))
	return nil
}

func (r *ConsoleReporter) ReportOpportunity(_ context.Context, opp *domain.Opportunity) {
	r.println(RenderOpportunity(opp))
}

func (r *ConsoleReporter) ReportCycle(_ context.Context, rep app.CycleReport) {
	r.mu.Lock()
	st := rep.Stats
	r.last = &st
	r.mu.Unlock()

	if r.quiet && !rep.Skipped && rep.Stored == 0 {
		return
	}
	r.println(RenderCycle(rep))
}

func (r *ConsoleReporter) ReportExecution(_ context.Context, res *domain.ExecutionResult) {
	r.println(RenderExecution(res))
}

func (r *ConsoleReporter) println(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, s)
}

// RenderOpportunity renders one opportunity as a card.
func RenderOpportunity(opp *domain.Opportunity) string {
	title := fmt.Sprintf("#%d %s %s", opp.ID, opp.Strategy, opp.Pair)
	fields := []ui.Field{
		{Label: "Route", Value: opp.Route},
		{Label: "Buy", Value: fmt.Sprintf("%s @ %s", opp.BuyVenue, opp.BuyPrice.StringFixed(6))},
		{Label: "Sell", Value: fmt.Sprintf("%s @ %s", opp.SellVenue, opp.SellPrice.StringFixed(6))},
		{Label: "Profit", Value: ui.Signed(opp.ProfitPct, 4) + "%"},
		{Label: "Est. profit", Value: ui.Signed(opp.EstimatedProfit, 2)},
		{Label: "Volume", Value: opp.Volume.StringFixed(2)},
		{Label: "Risk", Value: ui.Tier(string(opp.Risk))},
	}
	if opp.CrossNetwork {
		fields = append(fields, ui.Field{Label: "Bridge", Value: ui.InfoValue.Render(bridgeLabel(opp))})
	}
	return ui.Card(title, fields...)
}

func bridgeLabel(opp *domain.Opportunity) string {
	name := opp.Bridge
	if name == "" {
		name = "none"
	}
	return fmt.Sprintf("%s -> %s via %s", opp.BuyNetwork, opp.SellNetwork, name)
}

// RenderCycle renders a one-line cycle summary.
func RenderCycle(rep app.CycleReport) string {
	ts := ui.MutedValue.Render(rep.Started.Format(time.TimeOnly))
	if rep.Skipped {
		return fmt.Sprintf("%s %s %s", ts, ui.WarningBadge.Render("SKIPPED"), rep.Reason)
	}

	strategies := make([]string, 0, len(rep.Found))
	for s := range rep.Found {
		strategies = append(strategies, string(s))
	}
	sort.Strings(strategies)
	found := make([]string, 0, len(strategies))
	for _, s := range strategies {
		found = append(found, fmt.Sprintf("%s=%d", s, rep.Found[domain.Strategy(s)]))
	}

	line := fmt.Sprintf("%s venues=%d stored=%d rejected=%d expired=%d [%s] %s",
		ts, rep.Venues, rep.Stored, rep.Rejected, rep.Expired,
		strings.Join(found, " "), ui.MutedValue.Render(rep.Duration.Round(time.Millisecond).String()))
	if len(rep.Unhealthy) > 0 {
		line += " " + ui.FailureBadge.Render("down: "+strings.Join(rep.Unhealthy, ","))
	}
	return line
}

// RenderExecution renders an execution outcome as a card.
func RenderExecution(res *domain.ExecutionResult) string {
	status := "FAILED"
	if res.Success {
		status = "SUCCESS"
	}
	return ui.Card(fmt.Sprintf("execution %s (#%d %s)", res.ID, res.OpportunityID, res.Strategy),
		ui.Field{Label: "Status", Value: ui.Badge(res.Success, status)},
		ui.Field{Label: "Notional", Value: res.Notional.StringFixed(2)},
		ui.Field{Label: "Realized", Value: ui.Signed(res.RealizedProfit, 2)},
		ui.Field{Label: "Tx", Value: strings.Join(res.TxRefs, ", ")},
		ui.Field{Label: "Position", Value: res.PositionID},
		ui.Field{Label: "Error", Value: errorLabel(res)},
	)
}

func errorLabel(res *domain.ExecutionResult) string {
	if res.Error == "" {
		return ""
	}
	return ui.NegativeValue.Render(fmt.Sprintf("[%s] leg %d: %s", res.ErrorCode, res.Leg, res.Error))
}

// RenderStats renders the engine statistics as a table.
func RenderStats(st domain.Stats) string {
	rows := [][]string{
		{"active", fmt.Sprint(st.ActiveOpportunities)},
		{"avg profit %", st.AvgProfitPct.StringFixed(4)},
		{"max profit %", st.MaxProfitPct.StringFixed(4)},
		{"executions", fmt.Sprint(st.Executions)},
		{"success rate", st.SuccessRate.StringFixed(2)},
		{"realized", st.RealizedProfit.StringFixed(2)},
		{"cycles", fmt.Sprint(st.Cycles)},
		{"breaker skips", fmt.Sprint(st.BreakerSkips)},
		{"overlapped ticks", fmt.Sprint(st.OverlappedTicks)},
	}
	for _, s := range domain.Strategies() {
		rows = append(rows, []string{"  " + string(s), fmt.Sprint(st.ByStrategy[s])})
	}
	return ui.Table([]string{"metric", "value"}, rows)
}
