// Package apperror defines the coded errors shared by every module. Each code
// carries a default HTTP status so the API layer can render any error
// without knowing where it came from.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// AppError is a coded error with an optional cause.
type AppError struct {
	Code       Code      `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Context    string    `json:"context,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`

	cause error
	stack []uintptr
}

func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Context != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Context)
		sb.WriteString(")")
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches any AppError with the same code, so errors.Is works against a
// bare &AppError{Code: c}.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

// WithSpan stamps the trace id of the span in ctx, if any.
func (e *AppError) WithSpan(ctx context.Context) *AppError {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		e.TraceID = sc.TraceID().String()
	}
	return e
}

// ErrorBody is the wire shape of an error in API responses.
type ErrorBody struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Context   string `json:"context,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Body renders the error for clients. The cause is never exposed.
func (e *AppError) Body() ErrorBody {
	return ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Context:   e.Context,
		TraceID:   e.TraceID,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	}
}

// ToResponse wraps Body under an "error" key.
func (e *AppError) ToResponse() map[string]ErrorBody {
	return map[string]ErrorBody{"error": e.Body()}
}

// LogValue lets the logger print the error as a group, including the cause
// and the first non-runtime frame.
func (e *AppError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", string(e.Code)),
		slog.String("message", e.Message),
	}
	if e.Context != "" {
		attrs = append(attrs, slog.String("context", e.Context))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	if origin := e.origin(); origin != "" {
		attrs = append(attrs, slog.String("origin", origin))
	}
	return slog.GroupValue(attrs...)
}

func (e *AppError) origin() string {
	frames := runtime.CallersFrames(e.stack)
	for {
		f, more := frames.Next()
		if f.File != "" && !strings.HasSuffix(f.File, "/apperror/error.go") && !strings.Contains(f.File, "runtime/") {
			return fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if !more {
			return ""
		}
	}
}

func captureStack() []uintptr {
	var pcs [16]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[:n]
}

// Option customises New.
type Option func(*AppError)

func WithMessage(message string) Option {
	return func(e *AppError) { e.Message = message }
}

func WithContext(context string) Option {
	return func(e *AppError) { e.Context = context }
}

func WithStatusCode(statusCode int) Option {
	return func(e *AppError) { e.StatusCode = statusCode }
}

func WithCause(cause error) Option {
	return func(e *AppError) { e.cause = cause }
}

// New builds an error for code with its registered message and default
// status.
func New(code Code, opts ...Option) *AppError {
	err := &AppError{
		Code:       code,
		Message:    messages[code],
		StatusCode: defaultStatus(code),
		Timestamp:  time.Now(),
		stack:      captureStack(),
	}
	for _, opt := range opts {
		opt(err)
	}
	if err.Message == "" {
		err.Message = string(code)
	}
	return err
}

func NotFound(code Code, context string) *AppError {
	return New(code, WithContext(context), WithStatusCode(http.StatusNotFound))
}

func Validation(code Code, context string) *AppError {
	return New(code, WithContext(context), WithStatusCode(http.StatusBadRequest))
}

func Conflict(code Code, context string) *AppError {
	return New(code, WithContext(context), WithStatusCode(http.StatusConflict))
}

func Internal(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause), WithStatusCode(http.StatusInternalServerError))
}

// External is a failure of a venue, chain or store the engine depends on.
func External(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause), WithStatusCode(http.StatusServiceUnavailable))
}

// Unavailable marks a venue adapter as unreachable for the current call.
func Unavailable(venue string, cause error) *AppError {
	return External(CodeAdapterUnavailable, venue, cause)
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &AppError{Code: code})
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetCode returns the outermost code in err's chain, or CodeUnknownError.
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

func defaultStatus(code Code) int {
	switch {
	case code == CodeStaleOpportunity:
		return http.StatusConflict
	case code == CodeCircuitBreakerTripped, code == CodeAdapterUnavailable:
		return http.StatusServiceUnavailable
	case code == CodeLegFailure:
		return http.StatusBadGateway
	case code == CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case strings.HasSuffix(string(code), "NOT_FOUND"):
		return http.StatusNotFound
	case strings.Contains(string(code), "INVALID"),
		code == CodeInsufficientLiquidity, code == CodeNonPositiveProfit, code == CodeRequiredField:
		return http.StatusBadRequest
	case strings.Contains(string(code), "CONNECTION"), strings.Contains(string(code), "TIMEOUT"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
