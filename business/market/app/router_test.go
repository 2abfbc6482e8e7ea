package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/market/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

type fakeCEX struct {
	name      string
	orders    int
	connected bool
}

func (f *fakeCEX) Name() string          { return f.name }
func (f *fakeCEX) Pairs() []domain.Pair { return []domain.Pair{domain.MustParsePair("BTC/USDT")} }
func (f *fakeCEX) Ticker(_ context.Context, pair domain.Pair) (*domain.Ticker, error) {
	return &domain.Ticker{Venue: f.name, Pair: pair, Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(100)}, nil
}
func (f *fakeCEX) Status(context.Context) domain.CEXStatus { return domain.CEXOnline }
func (f *fakeCEX) MarketOrder(context.Context, domain.Pair, domain.Side, decimal.Decimal) (string, error) {
	f.orders++
	return f.name + ":1", nil
}
func (f *fakeCEX) Balance(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(500), nil
}
func (f *fakeCEX) Connect(context.Context) error {
	f.connected = true
	return nil
}

type fakeDEX struct {
	name, network string
}

func (f *fakeDEX) Name() string          { return f.name }
func (f *fakeDEX) Network() string       { return f.network }
func (f *fakeDEX) Pairs() []domain.Pair { return []domain.Pair{domain.MustParsePair("ETH/USDT")} }
func (f *fakeDEX) Pool(context.Context, domain.Pair) (*domain.Pool, error) {
	return nil, nil
}
func (f *fakeDEX) Status(context.Context) domain.DEXStatus { return domain.DEXHighGas }
func (f *fakeDEX) Swap(context.Context, string, string, decimal.Decimal, decimal.Decimal) (string, error) {
	return "0xswap", nil
}
func (f *fakeDEX) TokenBalance(context.Context, string, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(7), nil
}

func TestCEXRouter(t *testing.T) {
	ctx := context.Background()
	a, b := &fakeCEX{name: "alpha"}, &fakeCEX{name: "beta"}

	r, err := NewCEXRouter(a, b)
	if err != nil {
		t.Fatalf("NewCEXRouter: %v", err)
	}

	if got := r.Venues(); len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Errorf("Venues() = %v, want [alpha beta]", got)
	}

	tk, err := r.GetTicker(ctx, "beta", domain.MustParsePair("BTC/USDT"))
	if err != nil || tk.Venue != "beta" {
		t.Errorf("GetTicker(beta) = %v, %v", tk, err)
	}

	if _, err := r.GetTicker(ctx, "gamma", domain.MustParsePair("BTC/USDT")); !apperror.HasCode(err, apperror.CodeVenueNotConfigured) {
		t.Errorf("unknown venue err = %v, want VENUE_NOT_CONFIGURED", err)
	}
	if st := r.GetStatus(ctx, "gamma"); st != domain.CEXError {
		t.Errorf("GetStatus(unknown) = %s, want error", st)
	}

	if _, err := r.PlaceMarketOrder(ctx, "alpha", domain.MustParsePair("BTC/USDT"), domain.SideBuy, decimal.Zero); !apperror.HasCode(err, apperror.CodeInvalidTradeSize) {
		t.Errorf("zero order err = %v, want INVALID_TRADE_SIZE", err)
	}
	if a.orders != 0 {
		t.Errorf("zero-sized order reached the venue")
	}

	ref, err := r.PlaceMarketOrder(ctx, "alpha", domain.MustParsePair("BTC/USDT"), domain.SideBuy, decimal.NewFromInt(1))
	if err != nil || ref != "alpha:1" {
		t.Errorf("PlaceMarketOrder = %q, %v", ref, err)
	}

	if err := r.Connect(ctx); err != nil || !a.connected || !b.connected {
		t.Errorf("Connect: err=%v alpha=%v beta=%v", err, a.connected, b.connected)
	}

	if _, err := NewCEXRouter(a, &fakeCEX{name: "alpha"}); err == nil {
		t.Error("expected duplicate venue names to be rejected")
	}
}

func TestDEXRouter(t *testing.T) {
	ctx := context.Background()
	r, err := NewDEXRouter(&fakeDEX{name: "uni", network: "ethereum"}, &fakeDEX{name: "uni-arb", network: "arbitrum"})
	if err != nil {
		t.Fatalf("NewDEXRouter: %v", err)
	}

	dexes := r.DEXes()
	if len(dexes) != 2 || dexes[1] != (domain.DEXVenue{Network: "arbitrum", Name: "uni-arb"}) {
		t.Errorf("DEXes() = %v", dexes)
	}

	if st := r.GetStatus(ctx, "arbitrum", "uni"); st != domain.DEXError {
		t.Errorf("GetStatus with wrong network = %s, want error", st)
	}
	if st := r.GetStatus(ctx, "ethereum", "uni"); st != domain.DEXHighGas {
		t.Errorf("GetStatus = %s, want high_gas", st)
	}

	pool, err := r.GetPool(ctx, "ethereum", "uni", domain.MustParsePair("ETH/USDT"))
	if pool != nil || err != nil {
		t.Errorf("GetPool = %v, %v, want nil, nil", pool, err)
	}

	bal, err := r.GetTokenBalance(ctx, "arbitrum", "USDT", "0xabc")
	if err != nil || !bal.Equal(decimal.NewFromInt(7)) {
		t.Errorf("GetTokenBalance = %s, %v", bal, err)
	}
	if _, err := r.GetTokenBalance(ctx, "optimism", "USDT", "0xabc"); !errors.Is(err, &apperror.AppError{Code: apperror.CodeVenueNotConfigured}) {
		t.Errorf("GetTokenBalance(unknown network) err = %v", err)
	}

	if ref, err := r.Swap(ctx, "uni-arb", "USDT", "ETH", decimal.NewFromInt(10), decimal.RequireFromString("0.005")); err != nil || ref != "0xswap" {
		t.Errorf("Swap = %q, %v", ref, err)
	}
}
