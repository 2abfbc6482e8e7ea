package app

import (
	"context"
	"testing"
	"time"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

func TestStatsTracker_Compute(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	for _, pct := range []string{"1", "3", "2"} {
		opp := simpleOpportunity()
		opp.ProfitPct = dec(pct)
		if _, err := store.Add(ctx, opp); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if _, err := store.Deactivate(ctx, 3); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	s := NewStatsTracker(store)
	empty, err := s.Compute(ctx)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !empty.SuccessRate.IsZero() {
		t.Errorf("SuccessRate before any execution = %s", empty.SuccessRate)
	}

	s.ObserveExecution(&domain.ExecutionResult{Success: true, RealizedProfit: dec("20")})
	s.ObserveExecution(&domain.ExecutionResult{Success: false, RealizedProfit: dec("999")})
	s.ObserveExecution(&domain.ExecutionResult{Success: true, RealizedProfit: dec("-5")})
	s.ObserveExecution(&domain.ExecutionResult{Success: false})
	s.ObserveRealized(dec("10"))
	s.ObserveCycle(CycleReport{Started: time.Now()})
	s.ObserveCycle(CycleReport{Skipped: true})
	s.ObserveOverlappedTick()
	s.ObserveOverlappedTick()

	st, err := s.Compute(ctx)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if st.ActiveOpportunities != 2 || st.ByStrategy[domain.StrategySimple] != 2 || st.ByStrategy[domain.StrategyFlashLoan] != 0 {
		t.Errorf("active = %d, by strategy = %v", st.ActiveOpportunities, st.ByStrategy)
	}
	if _, ok := st.ByStrategy[domain.StrategyStatistical]; !ok {
		t.Error("ByStrategy should list every strategy")
	}
	if !st.AvgProfitPct.Equal(dec("2")) || !st.MaxProfitPct.Equal(dec("3")) {
		t.Errorf("avg/max = %s/%s, want 2/3", st.AvgProfitPct, st.MaxProfitPct)
	}
	if st.Executions != 4 || st.Successes != 2 || !st.SuccessRate.Equal(dec("0.5")) {
		t.Errorf("executions = %d, successes = %d, rate = %s", st.Executions, st.Successes, st.SuccessRate)
	}
	if !st.RealizedProfit.Equal(dec("25")) {
		t.Errorf("RealizedProfit = %s, want 25", st.RealizedProfit)
	}
	if st.Cycles != 1 || st.BreakerSkips != 1 || st.OverlappedTicks != 2 {
		t.Errorf("cycles/breaker/overlapped = %d/%d/%d, want 1/1/2", st.Cycles, st.BreakerSkips, st.OverlappedTicks)
	}
}

func TestPositionBook(t *testing.T) {
	b := NewPositionBook()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first := b.Open(domain.Position{Venue: "alpha", Pair: "ETH/USDT", Side: domain.Short, Size: dec("2"), EntryPrice: dec("100")}, t0)
	second := b.Open(domain.Position{Venue: "alpha", Pair: "ETH/USDT", Side: domain.Long, Size: dec("1"), EntryPrice: dec("100")}, t0.Add(time.Minute))
	if first.ID == "" || first.ID == second.ID || !first.Open {
		t.Fatalf("Open() = %+v, %+v", first, second)
	}

	closed, err := b.Close(first.ID, dec("90"), "ref", t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	// short from 100 to 90 on 2 units
	if !closed.RealizedProfit.Equal(dec("20")) || closed.ClosedAt == nil {
		t.Errorf("closed = %+v", closed)
	}
	if _, err := b.Close(first.ID, dec("90"), "ref", t0); !apperror.HasCode(err, apperror.CodeInvalidState) {
		t.Errorf("double close = %v", err)
	}
	if _, err := b.Get("missing"); !apperror.HasCode(err, apperror.CodePositionNotFound) {
		t.Errorf("Get(missing) = %v", err)
	}

	all := b.List(false)
	if len(all) != 2 || all[0].ID != second.ID || all[1].ID != first.ID {
		t.Errorf("List(false) order wrong: %+v", all)
	}
	if open := b.List(true); len(open) != 1 || open[0].ID != second.ID {
		t.Errorf("List(true) = %+v", open)
	}
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex[uint64]()
	unlock := k.Lock(7)
	unlock()
	if len(k.locks) != 0 {
		t.Errorf("locks = %d after release, want 0", len(k.locks))
	}
}
