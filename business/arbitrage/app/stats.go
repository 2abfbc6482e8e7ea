package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
)

// StatsTracker accumulates execution and cycle counters and derives the
// opportunity aggregates from the store on demand.
type StatsTracker struct {
	mu sync.Mutex

	store OpportunityStore

	executions   int
	successes    int
	realized     decimal.Decimal
	cycles       int
	breakerSkips int
	overlapped   int
	lastCycle    time.Time
}

// NewStatsTracker creates a StatsTracker over store.
func NewStatsTracker(store OpportunityStore) *StatsTracker {
	return &StatsTracker{store: store}
}

// ObserveExecution counts one attempt.
func (s *StatsTracker) ObserveExecution(r *domain.ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions++
	if r.Success {
		s.successes++
		s.realized = s.realized.Add(r.RealizedProfit)
	}
}

// ObserveRealized adds P/L booked outside an execution, e.g. a closed position.
func (s *StatsTracker) ObserveRealized(pnl decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realized = s.realized.Add(pnl)
}

// ObserveCycle counts a completed cycle or one refused by the risk gate.
func (s *StatsTracker) ObserveCycle(report CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if report.Skipped {
		s.breakerSkips++
	} else {
		s.cycles++
	}
	s.lastCycle = report.Started
}

// ObserveOverlappedTick counts a timer tick dropped while a cycle was running.
func (s *StatsTracker) ObserveOverlappedTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlapped++
}

// Compute returns the current aggregates. Success rate is successes over
// attempts since start, zero before the first attempt.
func (s *StatsTracker) Compute(ctx context.Context) (domain.Stats, error) {
	active, err := s.store.List(ctx, decimal.Zero, "")
	if err != nil {
		return domain.Stats{}, err
	}

	st := domain.Stats{
		ActiveOpportunities: len(active),
		ByStrategy:          make(map[domain.Strategy]int, len(domain.Strategies())),
		AvgProfitPct:        decimal.Zero,
		MaxProfitPct:        decimal.Zero,
		SuccessRate:         decimal.Zero,
	}
	for _, strategy := range domain.Strategies() {
		st.ByStrategy[strategy] = 0
	}

	sum := decimal.Zero
	for _, o := range active {
		st.ByStrategy[o.Strategy]++
		sum = sum.Add(o.ProfitPct)
		if o.ProfitPct.GreaterThan(st.MaxProfitPct) {
			st.MaxProfitPct = o.ProfitPct
		}
	}
	if len(active) > 0 {
		st.AvgProfitPct = sum.Div(decimal.NewFromInt(int64(len(active))))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st.Executions = s.executions
	st.Successes = s.successes
	if s.executions > 0 {
		st.SuccessRate = decimal.NewFromInt(int64(s.successes)).Div(decimal.NewFromInt(int64(s.executions)))
	}
	st.RealizedProfit = s.realized
	st.Cycles = s.cycles
	st.BreakerSkips = s.breakerSkips
	st.OverlappedTicks = s.overlapped
	st.LastCycle = s.lastCycle
	return st, nil
}
