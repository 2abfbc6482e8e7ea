// Package httpclient is the REST transport shared by the exchange venues.
// Every call is rate limited, traced and counted per venue.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbitrage-engine/internal/ratelimit"
)

const (
	defaultRequestTimeout   = 10 * time.Second
	defaultMaxConnsPerVenue = 8

	metricRequests = "venue_http_requests_total"
	metricLatency  = "venue_http_request_duration_seconds"
)

// TraceOption selects which bodies are attached to spans.
type TraceOption string

const (
	TraceRequest  TraceOption = "request"
	TraceResponse TraceOption = "response"
)

// Client creates requests against one venue.
type Client interface {
	NewRequest() Request
	NewRequestWithOptions(opts ...RequestOption) Request
}

type settings struct {
	venue       string
	baseURL     string
	timeout     time.Duration
	headers     map[string]string
	limiter     *ratelimit.Limiter
	tracer      trace.Tracer
	logRequest  bool
	logResponse bool
}

// ClientOption configures NewInstrumentedClient.
type ClientOption func(*settings)

// WithProviderName labels spans and metrics with the venue name.
func WithProviderName(name string) ClientOption {
	return func(s *settings) { s.venue = name }
}

// WithBaseURL is prepended to relative request paths.
func WithBaseURL(url string) ClientOption {
	return func(s *settings) { s.baseURL = url }
}

func WithRequestTimeout(d time.Duration) ClientOption {
	return func(s *settings) { s.timeout = d }
}

// WithHeaders are sent on every request.
func WithHeaders(h map[string]string) ClientOption {
	return func(s *settings) { s.headers = h }
}

// WithRateLimiter makes every request wait for a token first.
func WithRateLimiter(l *ratelimit.Limiter) ClientOption {
	return func(s *settings) { s.limiter = l }
}

// WithTraceOptions sets the tracer and which bodies end up on the span.
func WithTraceOptions(tracer trace.Tracer, opts ...TraceOption) ClientOption {
	return func(s *settings) {
		s.tracer = tracer
		for _, o := range opts {
			switch o {
			case TraceRequest:
				s.logRequest = true
			case TraceResponse:
				s.logResponse = true
			}
		}
	}
}

type instrumentedClient struct {
	http     *http.Client
	settings settings
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewInstrumentedClient builds a client whose transport is wrapped with
// otelhttp, so connection phases show up under the request span.
func NewInstrumentedClient(opts ...ClientOption) (Client, error) {
	s := settings{venue: "default", timeout: defaultRequestTimeout}
	for _, o := range opts {
		o(&s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("venue_http_client")
	}

	transport := &http.Transport{
		DialContext:     (&net.Dialer{KeepAlive: 15 * time.Second}).DialContext,
		MaxConnsPerHost: defaultMaxConnsPerVenue,
		IdleConnTimeout: 90 * time.Second,
	}

	meter := otel.GetMeterProvider().Meter("venue_http_client",
		metric.WithInstrumentationAttributes(attribute.String("venue", s.venue)))
	requests, err := meter.Int64Counter(metricRequests,
		metric.WithDescription("Venue REST requests by outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(metricLatency,
		metric.WithDescription("Venue REST round trip"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &instrumentedClient{
		http: &http.Client{
			Timeout: s.timeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
					return otelhttptrace.NewClientTrace(ctx)
				}),
			),
		},
		settings: s,
		requests: requests,
		latency:  latency,
	}, nil
}

func (c *instrumentedClient) NewRequest() Request {
	return c.NewRequestWithOptions()
}

func (c *instrumentedClient) NewRequestWithOptions(opts ...RequestOption) Request {
	r := &request{client: c, headers: make(map[string]string, len(c.settings.headers))}
	for k, v := range c.settings.headers {
		r.headers[k] = v
	}
	for _, o := range opts {
		o(r)
	}
	return r
}
