package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fd1az/arbitrage-engine/internal/ratelimit"
)

func TestRequest_GetDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/bookTicker" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %s, want BTCUSDT", got)
		}
		if got := r.Header.Get("X-MBX-APIKEY"); got != "key" {
			t.Errorf("api key header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","bidPrice":"100.5"}`))
	}))
	defer srv.Close()

	client, err := NewInstrumentedClient(
		WithProviderName("test"),
		WithBaseURL(srv.URL),
		WithHeaders(map[string]string{"X-MBX-APIKEY": "key"}),
		WithRequestTimeout(time.Second),
	)
	if err != nil {
		t.Fatalf("NewInstrumentedClient: %v", err)
	}

	var result struct {
		Symbol   string `json:"symbol"`
		BidPrice string `json:"bidPrice"`
	}
	resp, err := client.NewRequest().
		SetQueryParam("symbol", "BTCUSDT").
		SetResult(&result).
		Get(context.Background(), "/api/v3/ticker/bookTicker")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.IsError() {
		t.Fatalf("unexpected error status %d", resp.StatusCode)
	}
	if result.BidPrice != "100.5" {
		t.Errorf("BidPrice = %s, want 100.5", result.BidPrice)
	}
}

func TestRequest_RawQueryPreserved(t *testing.T) {
	const raw = "symbol=ETHUSDT&side=BUY&timestamp=1&signature=abc"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != raw {
			t.Errorf("raw query = %q, want %q", r.URL.RawQuery, raw)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewInstrumentedClient(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := client.NewRequest().SetRawQuery(raw).Post(context.Background(), "/api/v3/order"); err != nil {
		t.Fatalf("Post: %v", err)
	}
}

func TestRequest_ErrorHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":-1003,"msg":"too many requests"}`))
	}))
	defer srv.Close()

	client, err := NewInstrumentedClient(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	errLimited := errors.New("limited")
	resp, err := client.NewRequestWithOptions(
		WithLabels(NewLabel("endpoint", "ping")),
		WithResponseErrorHandler(func(status int, body []byte) error {
			if status == http.StatusTooManyRequests {
				return errLimited
			}
			return nil
		}),
	).Get(context.Background(), "/api/v3/ping")

	if !errors.Is(err, errLimited) {
		t.Fatalf("err = %v, want errLimited", err)
	}
	if resp == nil || !resp.IsError() {
		t.Errorf("expected error response to be returned alongside the error")
	}
}

func TestRequest_RateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	limiter := ratelimit.NewWithBurst(0.001, 1)
	client, err := NewInstrumentedClient(WithBaseURL(srv.URL), WithRateLimiter(limiter))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := client.NewRequest().Get(context.Background(), "/"); err != nil {
		t.Fatalf("first request should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.NewRequest().Get(ctx, "/"); err == nil {
		t.Error("expected second request to fail waiting for a token")
	}
}

func TestRedactSignature(t *testing.T) {
	tests := []struct{ in, want string }{
		{in: "symbol=ETHUSDT&timestamp=1&signature=deadbeef", want: "symbol=ETHUSDT&timestamp=1&signature=*****"},
		{in: "symbol=ETHUSDT", want: "symbol=ETHUSDT"},
	}
	for _, tt := range tests {
		if got := redactSignature(tt.in); got != tt.want {
			t.Errorf("redactSignature(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRequest_URL(t *testing.T) {
	c, err := NewInstrumentedClient(WithBaseURL("https://api.example.com/"))
	if err != nil {
		t.Fatal(err)
	}

	r := c.NewRequest().SetQueryParam("symbol", "BTCUSDT").(*request)
	if got := r.url("/api/v3/depth?limit=5"); got != "https://api.example.com/api/v3/depth?limit=5&symbol=BTCUSDT" {
		t.Errorf("url = %s", got)
	}

	r = c.NewRequest().SetQueryParam("symbol", "BTCUSDT").SetRawQuery("a=1").(*request)
	if got := r.url("https://other.example.com/x"); got != "https://other.example.com/x?a=1" {
		t.Errorf("raw query url = %s", got)
	}
}
