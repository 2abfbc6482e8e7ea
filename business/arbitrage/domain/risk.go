package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskState is the process-wide loss tracking behind the circuit breaker.
type RiskState struct {
	ConsecutiveLosses int             `json:"consecutive_losses"`
	DailyPnL          decimal.Decimal `json:"daily_pnl"`
	LastReset         time.Time       `json:"last_reset"`
	Tripped           bool            `json:"tripped"`
	Reason            string          `json:"reason,omitempty"`
}
