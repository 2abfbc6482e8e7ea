package domain

import (
	"fmt"

	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

// LegError reports a failed leg of an execution together with the
// references of the legs that went through before it.
type LegError struct {
	Strategy      Strategy
	OpportunityID uint64
	Leg           int
	Message       string
	Refs          []string

	err *apperror.AppError
}

// NewLegError builds a LegError wrapping cause under LEG_FAILURE.
func NewLegError(strategy Strategy, opportunityID uint64, leg int, message string, refs []string, cause error) *LegError {
	ctx := fmt.Sprintf("%s opportunity %d leg %d: %s", strategy, opportunityID, leg, message)
	opts := []apperror.Option{apperror.WithContext(ctx)}
	if cause != nil {
		opts = append(opts, apperror.WithCause(cause))
	}
	return &LegError{
		Strategy:      strategy,
		OpportunityID: opportunityID,
		Leg:           leg,
		Message:       message,
		Refs:          append([]string(nil), refs...),
		err:           apperror.New(apperror.CodeLegFailure, opts...),
	}
}

func (e *LegError) Error() string {
	if cause := e.err.Unwrap(); cause != nil {
		return fmt.Sprintf("leg %d of %s opportunity %d failed: %s: %v", e.Leg, e.Strategy, e.OpportunityID, e.Message, cause)
	}
	return fmt.Sprintf("leg %d of %s opportunity %d failed: %s", e.Leg, e.Strategy, e.OpportunityID, e.Message)
}

// Unwrap exposes the LEG_FAILURE AppError, whose own Unwrap yields the cause.
func (e *LegError) Unwrap() error {
	return e.err
}
