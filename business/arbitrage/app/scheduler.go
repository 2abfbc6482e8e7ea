package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apm"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

// SchedulerConfig configures the scan loop.
type SchedulerConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// SchedulerDeps are the collaborators of a Scheduler. Reporter may be nil.
type SchedulerDeps struct {
	Collector *SnapshotCollector
	Detectors []Detector
	Gate      *RiskGate
	Sizer     *PositionSizer
	Store     OpportunityStore
	Stats     *StatsTracker
	Reporter  Reporter
}

// Scheduler runs one scan cycle per interval. A tick that fires while the
// previous cycle is still running is dropped.
type Scheduler struct {
	deps    SchedulerDeps
	config  SchedulerConfig
	log     logger.LoggerInterface
	tracer  apm.Tracer
	metrics *engineMetrics
	now     func() time.Time

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(deps SchedulerDeps, config SchedulerConfig, log logger.LoggerInterface) (*Scheduler, error) {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	m, err := newEngineMetrics()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return &Scheduler{
		deps:    deps,
		config:  config,
		log:     log,
		tracer:  apm.NewTracer(tracerName),
		metrics: m,
		now:     time.Now,
	}, nil
}

// Start runs a first cycle immediately and then one per interval until ctx
// is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
	s.log.Info(ctx, "scheduler started", "interval", s.config.Interval.String(), "detectors", len(s.deps.Detectors))
}

// Stop cancels the loop and waits for the cycles in flight.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick starts a cycle in the background unless one is already running.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn(ctx, "previous cycle still running, skipping tick")
		s.metrics.skippedTicks.Add(ctx, 1)
		if s.deps.Stats != nil {
			s.deps.Stats.ObserveOverlappedTick()
		}
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		if _, err := s.RunCycle(ctx); err != nil {
			s.log.Debug(ctx, "cycle ended with error", "error", err)
		}
	}()
}

// Running reports whether a cycle is in progress.
func (s *Scheduler) Running() bool { return s.running.Load() }

// RunCycle performs one scan: risk admission, snapshot, the detectors in
// order, the staleness sweep and the stats refresh.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleReport, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "arbitrage.cycle")
	defer span.End()

	report := CycleReport{Started: s.now(), Found: make(map[domain.Strategy]int)}

	if err := s.deps.Gate.AdmitCycle(); err != nil {
		report.Skipped = true
		report.Reason = err.Error()
		s.log.Warn(ctx, "cycle skipped by risk gate", "reason", s.deps.Gate.State().Reason)
		s.metrics.recordBreaker(ctx, true)
		s.metrics.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "skipped")))
		s.finish(ctx, &report)
		span.Fail(err, "risk gate")
		return report, err
	}
	s.metrics.recordBreaker(ctx, false)

	view, err := s.deps.Collector.Collect(ctx)
	if err != nil {
		span.Fail(err, "collect")
		s.metrics.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return report, err
	}
	report.Venues = view.VenueCount()
	report.Unhealthy = view.Unhealthy()

	for _, d := range s.deps.Detectors {
		for _, opp := range d.Detect(ctx, view) {
			report.Found[d.Strategy()]++
			if s.admit(ctx, opp) {
				report.Stored++
			} else {
				report.Rejected++
			}
		}
	}

	if s.config.MaxAge > 0 {
		n, err := s.deps.Store.ExpireBefore(ctx, s.now().Add(-s.config.MaxAge))
		if err != nil {
			s.log.Error(ctx, "staleness sweep failed", "error", err)
		}
		report.Expired = n
	}

	if s.deps.Stats != nil {
		st, err := s.deps.Stats.Compute(ctx)
		if err != nil {
			s.log.Error(ctx, "stats refresh failed", "error", err)
		}
		report.Stats = st
	}

	s.metrics.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "completed")))
	s.finish(ctx, &report)
	span.SetAttributes(
		attribute.Int("opportunities.stored", report.Stored),
		attribute.Int("opportunities.rejected", report.Rejected),
	)
	span.SetStatus(codes.Ok, "")
	return report, nil
}

// admit runs a candidate through the risk gate and stores it.
func (s *Scheduler) admit(ctx context.Context, opp *domain.Opportunity) bool {
	attrs := metric.WithAttributes(attribute.String("strategy", string(opp.Strategy)))

	if err := s.deps.Gate.AdmitOpportunity(opp, s.deps.Sizer.Bound(opp)); err != nil {
		s.log.Debug(ctx, "candidate rejected", "strategy", opp.Strategy, "pair", opp.Pair, "error", err)
		s.metrics.rejected.Add(ctx, 1, attrs)
		return false
	}
	if err := opp.Validate(); err != nil {
		s.log.Debug(ctx, "candidate invalid", "strategy", opp.Strategy, "pair", opp.Pair, "error", err)
		s.metrics.rejected.Add(ctx, 1, attrs)
		return false
	}

	id, err := s.deps.Store.Add(ctx, opp)
	if err != nil {
		s.log.Error(ctx, "store opportunity", "strategy", opp.Strategy, "pair", opp.Pair, "error", err)
		return false
	}
	opp.ID = id
	s.metrics.opportunities.Add(ctx, 1, attrs)
	if s.deps.Reporter != nil {
		s.deps.Reporter.ReportOpportunity(ctx, opp)
	}
	return true
}

func (s *Scheduler) finish(ctx context.Context, report *CycleReport) {
	report.Duration = s.now().Sub(report.Started)
	s.metrics.cycleDuration.Record(ctx, report.Duration.Seconds())
	if s.deps.Stats != nil {
		s.deps.Stats.ObserveCycle(*report)
	}
	if s.deps.Reporter != nil {
		s.deps.Reporter.ReportCycle(ctx, *report)
	}
}
