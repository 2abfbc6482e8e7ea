package exchange

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/market/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

const testSecret = "s3cr3t"

func newTestClient(t *testing.T, handler http.Handler, dryRun bool) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.ExchangeConfig{
		Name:      "testex",
		Kind:      config.KindREST,
		BaseURL:   srv.URL,
		APIKey:    "key-1",
		APISecret: testSecret,
		Pairs:     []string{"BTC/USDT"},
	}, dryRun, logger.New(io.Discard, logger.LevelError, "test", nil))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func TestClient_TickerIsCached(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(ticker24hEndpoint, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			t.Errorf("symbol = %q, want BTCUSDT", r.URL.Query().Get("symbol"))
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"symbol":"BTCUSDT","bidPrice":"60000.10","askPrice":"60000.20","lastPrice":"60000.15","volume":"1234.5","closeTime":1700000000000}`)
	})
	c, _ := newTestClient(t, mux, false)

	ctx := context.Background()
	pair := domain.MustParsePair("BTC/USDT")
	for i := 0; i < 3; i++ {
		tk, err := c.Ticker(ctx, pair)
		if err != nil {
			t.Fatalf("Ticker: %v", err)
		}
		if !tk.Bid.Equal(decimal.RequireFromString("60000.10")) || !tk.Ask.Equal(decimal.RequireFromString("60000.20")) {
			t.Errorf("bid/ask = %s/%s", tk.Bid, tk.Ask)
		}
		if tk.Venue != "testex" || tk.Pair != pair {
			t.Errorf("ticker identity = %s %s", tk.Venue, tk.Pair)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}

func TestClient_TickerUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(ticker24hEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":-1121,"msg":"Invalid symbol."}`)
	})
	c, _ := newTestClient(t, mux, false)

	_, err := c.Ticker(context.Background(), domain.MustParsePair("BTC/USDT"))
	if !apperror.HasCode(err, apperror.CodeAdapterUnavailable) {
		t.Errorf("err = %v, want ADAPTER_UNAVAILABLE", err)
	}
}

func TestClient_Status(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   domain.CEXStatus
	}{
		{"ok", http.StatusOK, domain.CEXOnline},
		{"throttled", http.StatusTooManyRequests, domain.CEXRateLimited},
		{"banned", http.StatusTeapot, domain.CEXRateLimited},
		{"server_error", http.StatusInternalServerError, domain.CEXError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc(pingEndpoint, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, `{}`)
			})
			c, _ := newTestClient(t, mux, false)

			if got := c.Status(context.Background()); got != tt.want {
				t.Errorf("Status() = %s, want %s", got, tt.want)
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		c, srv := newTestClient(t, http.NewServeMux(), false)
		srv.Close()
		if got := c.Status(context.Background()); got != domain.CEXOffline {
			t.Errorf("Status() = %s, want offline", got)
		}
	})
}

func TestClient_MarketOrderIsSigned(t *testing.T) {
	tests := []struct {
		name     string
		dryRun   bool
		path     string
		body     string
		wantRef  string
		wantCode apperror.Code
	}{
		{"live", false, orderEndpoint, `{"symbol":"BTCUSDT","orderId":42,"status":"FILLED"}`, "testex:42", ""},
		{"dry_run", true, orderTestEndpoint, `{}`, "testex:test:", ""},
		{"rejected", false, orderEndpoint, `{"symbol":"BTCUSDT","orderId":43,"status":"REJECTED"}`, "", apperror.CodeOrderRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc(tt.path, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				if r.Header.Get(apiKeyHeader) != "key-1" {
					t.Errorf("api key header = %q", r.Header.Get(apiKeyHeader))
				}
				payload, sig, ok := strings.Cut(r.URL.RawQuery, "&signature=")
				if !ok || sign(testSecret, payload) != sig {
					t.Errorf("bad signature for %q", r.URL.RawQuery)
				}
				q := r.URL.Query()
				if q.Get("side") != "BUY" || q.Get("type") != "MARKET" || q.Get("quantity") != "0.5" {
					t.Errorf("order params = %v", q)
				}
				io.WriteString(w, tt.body)
			})
			c, _ := newTestClient(t, mux, tt.dryRun)

			ref, err := c.MarketOrder(context.Background(), domain.MustParsePair("BTC/USDT"), domain.SideBuy, decimal.RequireFromString("0.5"))
			if tt.wantCode != "" {
				if !apperror.HasCode(err, tt.wantCode) {
					t.Errorf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("MarketOrder: %v", err)
			}
			if !strings.HasPrefix(ref, tt.wantRef) {
				t.Errorf("ref = %q, want prefix %q", ref, tt.wantRef)
			}
		})
	}
}

func TestClient_Balance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(accountEndpoint, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("signature") == "" {
			t.Error("account request is not signed")
		}
		io.WriteString(w, `{"balances":[{"asset":"BTC","free":"0.25","locked":"0"},{"asset":"USDT","free":"1500.5","locked":"10"}]}`)
	})
	c, _ := newTestClient(t, mux, false)

	got, err := c.Balance(context.Background(), "usdt")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("1500.5")) {
		t.Errorf("Balance(USDT) = %s, want 1500.5", got)
	}

	got, err = c.Balance(context.Background(), "ETH")
	if err != nil || !got.IsZero() {
		t.Errorf("Balance(ETH) = %s, %v, want 0", got, err)
	}
}

func TestStream_OverridesBook(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(ticker24hEndpoint, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"symbol":"BTCUSDT","bidPrice":"100","askPrice":"101","lastPrice":"100.5","volume":"10"}`)
	})
	c, _ := newTestClient(t, mux, false)

	s, err := NewStream("testex", "wss://example.invalid", []string{"BTCUSDT"}, c.logger)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	c.stream = s

	s.handleMessage(context.Background(), []byte(`{"stream":"btcusdt@bookTicker","data":{"u":1,"s":"BTCUSDT","b":"99.5","B":"1","a":"99.6","A":"2"}}`))
	s.handleMessage(context.Background(), []byte(`{"result":null,"id":1}`))

	tk, err := c.Ticker(context.Background(), domain.MustParsePair("BTC/USDT"))
	if err != nil {
		t.Fatalf("Ticker: %v", err)
	}
	if !tk.Bid.Equal(decimal.RequireFromString("99.5")) || !tk.Ask.Equal(decimal.RequireFromString("99.6")) {
		t.Errorf("bid/ask = %s/%s, want stream quote 99.5/99.6", tk.Bid, tk.Ask)
	}
	if !tk.Last.Equal(decimal.RequireFromString("100.5")) {
		t.Errorf("last = %s, want 100.5 from REST", tk.Last)
	}

	s.now = func() time.Time { return time.Now().Add(time.Minute) }
	if _, _, _, ok := s.Book("BTCUSDT", streamMaxAge); ok {
		t.Error("stale stream quote should be ignored")
	}
}

func TestStream_URL(t *testing.T) {
	s, err := NewStream("testex", "wss://stream.example.com:9443", []string{"BTCUSDT", "ETHUSDT"}, logger.New(io.Discard, logger.LevelError, "test", nil))
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	got, err := s.streamURL()
	if err != nil {
		t.Fatalf("streamURL: %v", err)
	}
	want := "wss://stream.example.com:9443/stream?streams=btcusdt@bookTicker/ethusdt@bookTicker"
	if got != want {
		t.Errorf("streamURL() = %s, want %s", got, want)
	}
}
