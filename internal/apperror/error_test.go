package apperror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestDefaultStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeStaleOpportunity, http.StatusConflict},
		{CodeCircuitBreakerTripped, http.StatusServiceUnavailable},
		{CodeLegFailure, http.StatusBadGateway},
		{CodeOpportunityNotFound, http.StatusNotFound},
		{CodeInvalidFormat, http.StatusBadRequest},
		{CodeNonPositiveProfit, http.StatusBadRequest},
		{CodeRateLimitExceeded, http.StatusTooManyRequests},
		{CodeStoreFailure, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.code).StatusCode)
		})
	}
}

func TestHasCodeThroughWrapping(t *testing.T) {
	inner := New(CodeBridgeTimeout, WithContext("stargate"))
	err := fmt.Errorf("leg 2: %w", inner)

	assert.True(t, HasCode(err, CodeBridgeTimeout))
	assert.False(t, HasCode(err, CodeLegFailure))
	assert.Equal(t, CodeBridgeTimeout, GetCode(err))
	assert.Equal(t, CodeUnknownError, GetCode(errors.New("plain")))
}

func TestErrorIncludesCause(t *testing.T) {
	err := Internal(CodeStoreFailure, "redis", errors.New("connection refused"))

	assert.Contains(t, err.Error(), "redis")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorContains(t, errors.Unwrap(err), "connection refused")
}

func TestToResponseHidesCause(t *testing.T) {
	err := Internal(CodeStoreFailure, "redis", errors.New("password=hunter2"))

	raw, jerr := json.Marshal(err.ToResponse())
	require.NoError(t, jerr)
	assert.NotContains(t, string(raw), "hunter2")

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, string(CodeStoreFailure), decoded["error"]["code"])
	assert.Equal(t, "redis", decoded["error"]["context"])
}

func TestWithSpan(t *testing.T) {
	traceID := trace.TraceID{0x01, 0x02}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: trace.SpanID{0x03}})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	err := New(CodeLegFailure).WithSpan(ctx)
	assert.Equal(t, traceID.String(), err.Body().TraceID)

	assert.Empty(t, New(CodeLegFailure).WithSpan(context.Background()).TraceID)
}

func TestLogValue(t *testing.T) {
	err := External(CodeAdapterUnavailable, "alpha", errors.New("timeout"))

	v := err.LogValue()
	require.Equal(t, slog.KindGroup, v.Kind())

	got := map[string]string{}
	for _, a := range v.Group() {
		got[a.Key] = a.Value.String()
	}
	assert.Equal(t, string(CodeAdapterUnavailable), got["code"])
	assert.Equal(t, "alpha", got["context"])
	assert.Equal(t, "timeout", got["cause"])
	assert.Contains(t, got["origin"], "error_test.go")
}
