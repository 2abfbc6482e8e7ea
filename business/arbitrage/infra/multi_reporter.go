package infra

import (
	"context"
	"errors"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/app"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
)

// MultiReporter forwards every event to each reporter in order.
type MultiReporter struct {
	reporters []app.Reporter
}

// NewMultiReporter skips nil reporters.
func NewMultiReporter(reporters ...app.Reporter) *MultiReporter {
	m := &MultiReporter{}
	for _, r := range reporters {
		if r != nil {
			m.reporters = append(m.reporters, r)
		}
	}
	return m
}

// Len is the number of wrapped reporters.
func (m *MultiReporter) Len() int { return len(m.reporters) }

// Start starts every reporter, stopping the ones already started on failure.
func (m *MultiReporter) Start(ctx context.Context) error {
	for i, r := range m.reporters {
		if err := r.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.reporters[j].Stop()
			}
			return err
		}
	}
	return nil
}

func (m *MultiReporter) ReportOpportunity(ctx context.Context, opp *domain.Opportunity) {
	for _, r := range m.reporters {
		r.ReportOpportunity(ctx, opp)
	}
}

func (m *MultiReporter) ReportCycle(ctx context.Context, rep app.CycleReport) {
	for _, r := range m.reporters {
		r.ReportCycle(ctx, rep)
	}
}

func (m *MultiReporter) ReportExecution(ctx context.Context, res *domain.ExecutionResult) {
	for _, r := range m.reporters {
		r.ReportExecution(ctx, res)
	}
}

func (m *MultiReporter) Stop() error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
