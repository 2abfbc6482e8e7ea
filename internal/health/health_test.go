package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fd1az/arbitrage-engine/internal/logger"
)

func newTestServer() *Server {
	return NewServer(0, "test", logger.New(io.Discard, logger.LevelError, "test", nil))
}

func TestHealth_AllHealthy(t *testing.T) {
	s := newTestServer()
	s.RegisterCheck("store", func(context.Context) (bool, string) { return true, "memory" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "ok" || !status.Checks["store"].Healthy {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestHealth_Degraded(t *testing.T) {
	s := newTestServer()
	s.RegisterCheck("venues", func(context.Context) (bool, string) { return false, "0/2 online" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("live status = %d, want 200", rec.Code)
	}
}

func TestReady_NamesFailingChecks(t *testing.T) {
	s := newTestServer()
	s.RegisterCheck("store", func(context.Context) (bool, string) { return true, "redis" })
	s.RegisterCheck("risk_gate", func(context.Context) (bool, string) { return false, "daily loss limit" })
	s.RegisterCheck("exchanges", func(context.Context) (bool, string) { return false, "0/2 online" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := rec.Body.String(); got != "not ready: exchanges,risk_gate" {
		t.Errorf("body = %q", got)
	}
}

func TestHealth_SlowCheckTimesOut(t *testing.T) {
	s := newTestServer()
	release := make(chan struct{})
	defer close(release)
	s.RegisterCheck("rpc", func(ctx context.Context) (bool, string) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return true, "late"
	})

	results := s.runChecks(context.Background())
	if results["rpc"].Healthy {
		t.Errorf("slow check reported healthy: %+v", results["rpc"])
	}
	if results["rpc"].LatencyMS < checkTimeout.Milliseconds() {
		t.Errorf("latency = %dms, want at least the check timeout", results["rpc"].LatencyMS)
	}
}
