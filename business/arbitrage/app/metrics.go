package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
)

const (
	tracerName = "github.com/fd1az/arbitrage-engine/business/arbitrage/app"
	meterName  = "github.com/fd1az/arbitrage-engine/business/arbitrage/app"
)

type engineMetrics struct {
	cycles        metric.Int64Counter
	skippedTicks  metric.Int64Counter
	cycleDuration metric.Float64Histogram
	opportunities metric.Int64Counter
	rejected      metric.Int64Counter
	executions    metric.Int64Counter
	breaker       metric.Int64Gauge
}

func newEngineMetrics() (*engineMetrics, error) {
	meter := otel.Meter(meterName)
	m := &engineMetrics{}
	var err error

	m.cycles, err = meter.Int64Counter(
		"arbitrage_cycles_total",
		metric.WithDescription("Scan cycles by outcome"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, err
	}

	m.skippedTicks, err = meter.Int64Counter(
		"arbitrage_skipped_ticks_total",
		metric.WithDescription("Timer ticks dropped because a cycle was still running"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, err
	}

	m.cycleDuration, err = meter.Float64Histogram(
		"arbitrage_cycle_duration_seconds",
		metric.WithDescription("Scan cycle latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.opportunities, err = meter.Int64Counter(
		"arbitrage_opportunities_total",
		metric.WithDescription("Opportunities stored by strategy"),
		metric.WithUnit("{opportunity}"),
	)
	if err != nil {
		return nil, err
	}

	m.rejected, err = meter.Int64Counter(
		"arbitrage_opportunities_rejected_total",
		metric.WithDescription("Candidates refused by the risk gate"),
		metric.WithUnit("{opportunity}"),
	)
	if err != nil {
		return nil, err
	}

	m.executions, err = meter.Int64Counter(
		"arbitrage_executions_total",
		metric.WithDescription("Execution attempts by strategy and outcome"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return nil, err
	}

	m.breaker, err = meter.Int64Gauge(
		"arbitrage_risk_breaker_tripped",
		metric.WithDescription("1 while the risk circuit breaker refuses work"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *engineMetrics) recordBreaker(ctx context.Context, tripped bool) {
	var v int64
	if tripped {
		v = 1
	}
	m.breaker.Record(ctx, v)
}

func (m *engineMetrics) recordExecution(ctx context.Context, r *domain.ExecutionResult) {
	outcome := "failure"
	if r.Success {
		outcome = "success"
	}
	m.executions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", string(r.Strategy)),
		attribute.String("outcome", outcome),
	))
}
