// Package app defines the market context's ports and composes individual
// venue clients behind them.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/market/domain"
)

// CEXAdapter is the engine's view of every configured centralized venue.
// Venues returns names in a stable order.
type CEXAdapter interface {
	Venues() []string
	Pairs(venue string) []domain.Pair
	GetTicker(ctx context.Context, venue string, pair domain.Pair) (*domain.Ticker, error)
	GetStatus(ctx context.Context, venue string) domain.CEXStatus
	// PlaceMarketOrder trades amount units of the pair's base asset and
	// returns the venue's order reference.
	PlaceMarketOrder(ctx context.Context, venue string, pair domain.Pair, side domain.Side, amount decimal.Decimal) (string, error)
	GetBalance(ctx context.Context, venue, currency string) (decimal.Decimal, error)
}

// DEXAdapter is the engine's view of every configured decentralized venue.
type DEXAdapter interface {
	DEXes() []domain.DEXVenue
	Pairs(network, dex string) []domain.Pair
	// GetPool returns nil, nil when the venue has no pool for the pair.
	GetPool(ctx context.Context, network, dex string, pair domain.Pair) (*domain.Pool, error)
	GetStatus(ctx context.Context, network, dex string) domain.DEXStatus
	Swap(ctx context.Context, dex, tokenIn, tokenOut string, amountIn, maxSlippage decimal.Decimal) (string, error)
	GetTokenBalance(ctx context.Context, network, token, address string) (decimal.Decimal, error)
}

// CEXVenue is a single centralized venue client.
type CEXVenue interface {
	Name() string
	Pairs() []domain.Pair
	Ticker(ctx context.Context, pair domain.Pair) (*domain.Ticker, error)
	Status(ctx context.Context) domain.CEXStatus
	MarketOrder(ctx context.Context, pair domain.Pair, side domain.Side, amount decimal.Decimal) (string, error)
	Balance(ctx context.Context, currency string) (decimal.Decimal, error)
}

// DEXVenue is a single DEX deployment client.
type DEXVenue interface {
	Name() string
	Network() string
	Pairs() []domain.Pair
	Pool(ctx context.Context, pair domain.Pair) (*domain.Pool, error)
	Status(ctx context.Context) domain.DEXStatus
	Swap(ctx context.Context, tokenIn, tokenOut string, amountIn, maxSlippage decimal.Decimal) (string, error)
	TokenBalance(ctx context.Context, token, address string) (decimal.Decimal, error)
}
