package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExecState is the position of an execution in its state machine:
// pending -> sizing -> leg_in_flight -> settled_success | settled_failure.
type ExecState string

const (
	ExecPending        ExecState = "pending"
	ExecSizing         ExecState = "sizing"
	ExecLegInFlight    ExecState = "leg_in_flight"
	ExecSettledSuccess ExecState = "settled_success"
	ExecSettledFailure ExecState = "settled_failure"
)

// Terminal reports whether no further transition is possible.
func (s ExecState) Terminal() bool {
	return s == ExecSettledSuccess || s == ExecSettledFailure
}

// ExecutionResult is the outcome of one execution attempt.
type ExecutionResult struct {
	ID             string          `json:"id"`
	OpportunityID  uint64          `json:"opportunity_id"`
	Strategy       Strategy        `json:"strategy"`
	State          ExecState       `json:"state"`
	Leg            int             `json:"leg"` // index of the leg in flight or the one that failed
	Success        bool            `json:"success"`
	TxRefs         []string        `json:"tx_refs"`
	Notional       decimal.Decimal `json:"notional"`
	RealizedProfit decimal.Decimal `json:"realized_profit"`
	PositionID     string          `json:"position_id,omitempty"`
	ErrorCode      string          `json:"error_code,omitempty"`
	Error          string          `json:"error,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// NewExecutionResult starts a pending result.
func NewExecutionResult(opportunityID uint64, strategy Strategy, now time.Time) *ExecutionResult {
	return &ExecutionResult{
		ID:            uuid.NewString(),
		OpportunityID: opportunityID,
		Strategy:      strategy,
		State:         ExecPending,
		TxRefs:        []string{},
		StartedAt:     now,
	}
}

// AddRef appends a leg transaction reference.
func (r *ExecutionResult) AddRef(ref string) {
	r.TxRefs = append(r.TxRefs, ref)
}

// Refs returns a copy of the collected references.
func (r *ExecutionResult) Refs() []string {
	return append([]string(nil), r.TxRefs...)
}
