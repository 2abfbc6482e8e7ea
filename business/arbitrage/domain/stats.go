package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stats aggregates the opportunity book and execution history.
type Stats struct {
	ActiveOpportunities int              `json:"active_opportunities"`
	ByStrategy          map[Strategy]int `json:"by_strategy"`
	AvgProfitPct        decimal.Decimal  `json:"avg_profit_pct"`
	MaxProfitPct        decimal.Decimal  `json:"max_profit_pct"`
	Executions          int              `json:"executions"`
	Successes           int              `json:"successes"`
	SuccessRate         decimal.Decimal  `json:"success_rate"`
	RealizedProfit      decimal.Decimal  `json:"realized_profit"`
	Cycles              int              `json:"cycles"`
	BreakerSkips        int              `json:"breaker_skips"`
	OverlappedTicks     int              `json:"overlapped_ticks"`
	LastCycle           time.Time        `json:"last_cycle"`
}
