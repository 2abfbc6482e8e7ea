package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Request builds and sends one venue call.
type Request interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string) (*Response, error)

	SetHeader(key, value string) Request
	SetQueryParam(key, value string) Request
	// SetRawQuery sends query verbatim. Signed endpoints need the exact
	// bytes that were signed, so it wins over SetQueryParam.
	SetRawQuery(query string) Request
	// SetResult decodes a JSON body into v.
	SetResult(v any) Request
}

// Response keeps the drained body next to the status.
type Response struct {
	*http.Response
	body []byte
}

func (r *Response) Body() []byte { return r.body }

// IsError reports a 4xx or 5xx status.
func (r *Response) IsError() bool { return r.StatusCode >= http.StatusBadRequest }

// ResponseErrorHandler maps a venue reply to an error; nil means success.
type ResponseErrorHandler func(statusCode int, body []byte) error

// Label adds a metric attribute to a request.
type Label struct {
	Key   string
	Value string
}

func NewLabel(key, value string) *Label {
	return &Label{Key: key, Value: value}
}

// RequestOption configures a single request.
type RequestOption func(*request)

func WithResponseErrorHandler(h ResponseErrorHandler) RequestOption {
	return func(r *request) { r.onResponse = h }
}

func WithLabels(labels ...*Label) RequestOption {
	return func(r *request) { r.labels = labels }
}

// WithRedactedHeaders records request headers on the span, masking the
// named ones.
func WithRedactedHeaders(names ...string) RequestOption {
	return func(r *request) {
		r.logHeaders = true
		r.redact = make(map[string]bool, len(names))
		for _, n := range names {
			r.redact[http.CanonicalHeaderKey(n)] = true
		}
	}
}

type request struct {
	client     *instrumentedClient
	headers    map[string]string
	query      url.Values
	rawQuery   string
	result     any
	onResponse ResponseErrorHandler
	labels     []*Label
	logHeaders bool
	redact     map[string]bool
}

func (r *request) Get(ctx context.Context, path string) (*Response, error) {
	return r.do(ctx, http.MethodGet, path)
}

func (r *request) Post(ctx context.Context, path string) (*Response, error) {
	return r.do(ctx, http.MethodPost, path)
}

func (r *request) SetHeader(key, value string) Request {
	r.headers[key] = value
	return r
}

func (r *request) SetQueryParam(key, value string) Request {
	if r.query == nil {
		r.query = url.Values{}
	}
	r.query.Set(key, value)
	return r
}

func (r *request) SetRawQuery(query string) Request {
	r.rawQuery = query
	return r
}

func (r *request) SetResult(v any) Request {
	r.result = v
	return r
}

func (r *request) url(path string) string {
	u := path
	if base := r.client.settings.baseURL; base != "" && !strings.HasPrefix(path, "http") {
		u = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	q := r.rawQuery
	if q == "" && len(r.query) > 0 {
		q = r.query.Encode()
	}
	if q == "" {
		return u
	}
	if strings.Contains(u, "?") {
		return u + "&" + q
	}
	return u + "?" + q
}

func (r *request) do(ctx context.Context, method, path string) (*Response, error) {
	s := r.client.settings
	ctx, span := s.tracer.Start(ctx, "venue.http",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
			attribute.String("venue", s.venue),
		),
	)
	defer span.End()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			span.SetStatus(codes.Error, "rate limit wait aborted")
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	target := r.url(path)
	if s.logRequest && r.rawQuery != "" {
		span.AddEvent("request.query", trace.WithAttributes(attribute.String("http.query", redactSignature(r.rawQuery))))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	if r.logHeaders {
		r.traceHeaders(span, req.Header)
	}

	start := time.Now()
	resp, err := r.client.http.Do(req)
	r.client.latency.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("venue", s.venue)))
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("context.cancelled", errors.Is(err, context.Canceled)))
		span.SetStatus(codes.Error, err.Error())
		r.count(ctx, "transport_error")
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		r.count(ctx, "transport_error")
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if s.logResponse {
		span.AddEvent("response.body", trace.WithAttributes(attribute.String("http.response_body", string(body))))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	out := &Response{Response: resp, body: body}
	if r.result != nil && len(body) > 0 && !out.IsError() {
		if err := json.Unmarshal(body, r.result); err != nil {
			span.RecordError(err)
		}
	}

	if r.onResponse != nil {
		if err := r.onResponse(resp.StatusCode, body); err != nil {
			span.SetStatus(codes.Error, err.Error())
			r.count(ctx, "venue_error")
			return out, err
		}
	}
	if out.IsError() {
		r.count(ctx, "http_error")
	} else {
		r.count(ctx, "ok")
	}
	return out, nil
}

func (r *request) count(ctx context.Context, outcome string) {
	attrs := make([]attribute.KeyValue, 0, len(r.labels)+2)
	attrs = append(attrs,
		attribute.String("venue", r.client.settings.venue),
		attribute.String("outcome", outcome),
	)
	for _, l := range r.labels {
		attrs = append(attrs, attribute.String(l.Key, l.Value))
	}
	r.client.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (r *request) traceHeaders(span trace.Span, h http.Header) {
	attrs := make([]attribute.KeyValue, 0, len(h))
	for k := range h {
		v := h.Get(k)
		if r.redact[k] {
			v = "*****"
		}
		attrs = append(attrs, attribute.String("http.request.header."+strings.ToLower(k), v))
	}
	span.AddEvent("request.headers", trace.WithAttributes(attrs...))
}

// redactSignature drops the signature parameter so secrets derived from the
// API secret never reach the trace backend.
func redactSignature(q string) string {
	if i := strings.Index(q, "signature="); i >= 0 {
		return q[:i] + "signature=*****"
	}
	return q
}
