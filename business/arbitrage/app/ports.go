// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
)

// OpportunityStore persists opportunities. Implementations assign sequential
// ids and return copies, never shared pointers.
type OpportunityStore interface {
	// Add stores opp, assigning ID and CreatedAt when unset, and returns the id.
	Add(ctx context.Context, opp *domain.Opportunity) (uint64, error)
	// GetByID returns OPPORTUNITY_NOT_FOUND for unknown ids.
	GetByID(ctx context.Context, id uint64) (*domain.Opportunity, error)
	// Deactivate clears the active flag. Deactivating an inactive record is a no-op.
	Deactivate(ctx context.Context, id uint64) (*domain.Opportunity, error)
	// List returns active records with ProfitPct >= minProfit, optionally of
	// one strategy, by profit descending then id ascending.
	List(ctx context.Context, minProfit decimal.Decimal, strategy domain.Strategy) ([]*domain.Opportunity, error)
	// ExpireBefore deactivates active records created before cutoff.
	ExpireBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// CycleReport summarises one scan cycle.
type CycleReport struct {
	Started   time.Time
	Duration  time.Duration
	Skipped   bool
	Reason    string
	Found     map[domain.Strategy]int
	Stored    int
	Rejected  int
	Expired   int
	Venues    int
	Unhealthy []string
	Stats     domain.Stats
}

// Reporter receives engine events for display or fan-out.
type Reporter interface {
	Start(ctx context.Context) error
	ReportOpportunity(ctx context.Context, opp *domain.Opportunity)
	ReportCycle(ctx context.Context, report CycleReport)
	ReportExecution(ctx context.Context, result *domain.ExecutionResult)
	Stop() error
}
