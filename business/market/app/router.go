package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/market/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

type connector interface {
	Connect(ctx context.Context) error
}

type closer interface {
	Close() error
}

// Ensure interface compliance.
var (
	_ CEXAdapter = (*CEXRouter)(nil)
	_ DEXAdapter = (*DEXRouter)(nil)
)

// CEXRouter dispatches CEXAdapter calls to the named venue.
type CEXRouter struct {
	order  []string
	venues map[string]CEXVenue
}

// NewCEXRouter creates a router over venues, preserving their order.
func NewCEXRouter(venues ...CEXVenue) (*CEXRouter, error) {
	r := &CEXRouter{venues: make(map[string]CEXVenue, len(venues))}
	for _, v := range venues {
		if _, dup := r.venues[v.Name()]; dup {
			return nil, fmt.Errorf("duplicate cex venue %q", v.Name())
		}
		r.venues[v.Name()] = v
		r.order = append(r.order, v.Name())
	}
	return r, nil
}

func (r *CEXRouter) Venues() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *CEXRouter) Pairs(venue string) []domain.Pair {
	if v, ok := r.venues[venue]; ok {
		return v.Pairs()
	}
	return nil
}

func (r *CEXRouter) GetTicker(ctx context.Context, venue string, pair domain.Pair) (*domain.Ticker, error) {
	v, err := r.venue(venue)
	if err != nil {
		return nil, err
	}
	return v.Ticker(ctx, pair)
}

func (r *CEXRouter) GetStatus(ctx context.Context, venue string) domain.CEXStatus {
	v, err := r.venue(venue)
	if err != nil {
		return domain.CEXError
	}
	return v.Status(ctx)
}

func (r *CEXRouter) PlaceMarketOrder(ctx context.Context, venue string, pair domain.Pair, side domain.Side, amount decimal.Decimal) (string, error) {
	v, err := r.venue(venue)
	if err != nil {
		return "", err
	}
	if !amount.IsPositive() {
		return "", apperror.Validation(apperror.CodeInvalidTradeSize, "order amount must be positive")
	}
	return v.MarketOrder(ctx, pair, side, amount)
}

func (r *CEXRouter) GetBalance(ctx context.Context, venue, currency string) (decimal.Decimal, error) {
	v, err := r.venue(venue)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Balance(ctx, currency)
}

// Connect connects every venue that holds a live connection. Failures are
// joined so one venue does not hide another.
func (r *CEXRouter) Connect(ctx context.Context) error {
	var errs []error
	for _, name := range r.order {
		if c, ok := r.venues[name].(connector); ok {
			if err := c.Connect(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (r *CEXRouter) Close() error {
	var errs []error
	for _, name := range r.order {
		if c, ok := r.venues[name].(closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func (r *CEXRouter) venue(name string) (CEXVenue, error) {
	v, ok := r.venues[name]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeVenueNotConfigured, "cex venue "+name)
	}
	return v, nil
}

// DEXRouter dispatches DEXAdapter calls to the named deployment. DEX names
// are unique across networks.
type DEXRouter struct {
	order  []domain.DEXVenue
	venues map[string]DEXVenue
}

// NewDEXRouter creates a router over venues, preserving their order.
func NewDEXRouter(venues ...DEXVenue) (*DEXRouter, error) {
	r := &DEXRouter{venues: make(map[string]DEXVenue, len(venues))}
	for _, v := range venues {
		if _, dup := r.venues[v.Name()]; dup {
			return nil, fmt.Errorf("duplicate dex venue %q", v.Name())
		}
		r.venues[v.Name()] = v
		r.order = append(r.order, domain.DEXVenue{Network: v.Network(), Name: v.Name()})
	}
	return r, nil
}

func (r *DEXRouter) DEXes() []domain.DEXVenue {
	out := make([]domain.DEXVenue, len(r.order))
	copy(out, r.order)
	return out
}

func (r *DEXRouter) Pairs(network, dex string) []domain.Pair {
	v, err := r.venue(network, dex)
	if err != nil {
		return nil
	}
	return v.Pairs()
}

func (r *DEXRouter) GetPool(ctx context.Context, network, dex string, pair domain.Pair) (*domain.Pool, error) {
	v, err := r.venue(network, dex)
	if err != nil {
		return nil, err
	}
	return v.Pool(ctx, pair)
}

func (r *DEXRouter) GetStatus(ctx context.Context, network, dex string) domain.DEXStatus {
	v, err := r.venue(network, dex)
	if err != nil {
		return domain.DEXError
	}
	return v.Status(ctx)
}

func (r *DEXRouter) Swap(ctx context.Context, dex, tokenIn, tokenOut string, amountIn, maxSlippage decimal.Decimal) (string, error) {
	v, ok := r.venues[dex]
	if !ok {
		return "", apperror.NotFound(apperror.CodeVenueNotConfigured, "dex venue "+dex)
	}
	if !amountIn.IsPositive() {
		return "", apperror.Validation(apperror.CodeInvalidTradeSize, "swap amount must be positive")
	}
	return v.Swap(ctx, tokenIn, tokenOut, amountIn, maxSlippage)
}

// GetTokenBalance asks the first deployment on network.
func (r *DEXRouter) GetTokenBalance(ctx context.Context, network, token, address string) (decimal.Decimal, error) {
	for _, ref := range r.order {
		if ref.Network == network {
			return r.venues[ref.Name].TokenBalance(ctx, token, address)
		}
	}
	return decimal.Zero, apperror.NotFound(apperror.CodeVenueNotConfigured, "no dex on network "+network)
}

func (r *DEXRouter) Connect(ctx context.Context) error {
	var errs []error
	for _, ref := range r.order {
		if c, ok := r.venues[ref.Name].(connector); ok {
			if err := c.Connect(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", ref, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (r *DEXRouter) venue(network, dex string) (DEXVenue, error) {
	v, ok := r.venues[dex]
	if !ok || v.Network() != network {
		return nil, apperror.NotFound(apperror.CodeVenueNotConfigured, "dex venue "+dex+"@"+network)
	}
	return v, nil
}
