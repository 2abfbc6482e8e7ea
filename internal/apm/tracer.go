package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans on the global provider, so spans started before
// NewTraceProvider runs are dropped rather than buffered.
type Tracer interface {
	StartSpanFromContext(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	SpanFromContext(ctx context.Context) Span
}

// Span is the subset of trace.Span the engine records on.
type Span interface {
	SetAttributes(kv ...attribute.KeyValue)
	AddEvent(name string, opts ...trace.EventOption)
	RecordError(err error, opts ...trace.EventOption)
	SetStatus(code codes.Code, description string)
	// Fail records err and marks the span as errored with reason.
	Fail(err error, reason string)
	End(opts ...trace.SpanEndOption)
}

type tracer struct {
	name string
}

// NewTracer names the instrumentation scope, typically the package path.
func NewTracer(name string) Tracer {
	return tracer{name: name}
}

func (t tracer) StartSpanFromContext(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, s := otel.Tracer(t.name).Start(ctx, name, opts...)
	return ctx, span{s}
}

func (t tracer) SpanFromContext(ctx context.Context) Span {
	return span{trace.SpanFromContext(ctx)}
}

type span struct {
	trace.Span
}

func (s span) Fail(err error, reason string) {
	if err != nil {
		s.Span.RecordError(err)
	}
	s.Span.SetStatus(codes.Error, reason)
}
