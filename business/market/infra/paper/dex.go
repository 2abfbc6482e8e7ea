package paper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/market/app"
	"github.com/fd1az/arbitrage-engine/business/market/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

var _ app.DEXVenue = (*DEX)(nil)

// DEX is a simulated constant-product deployment. Each pool holds half of the
// configured liquidity on each side at the skewed reference price.
type DEX struct {
	name      string
	network   string
	pairs     []domain.Pair
	market    *Market
	skew      decimal.Decimal
	fee       decimal.Decimal
	liquidity decimal.Decimal
	logger    logger.LoggerInterface

	nonce    atomic.Uint64
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	start    decimal.Decimal
}

// NewDEX creates a paper DEX from its config.
func NewDEX(cfg config.DEXConfig, paperCfg config.PaperConfig, market *Market, log logger.LoggerInterface) (*DEX, error) {
	d := &DEX{
		name:      cfg.Name,
		network:   cfg.Network,
		market:    market,
		skew:      decimal.NewFromFloat(cfg.PriceSkew),
		fee:       decimal.NewFromFloat(cfg.Fee),
		liquidity: decimal.NewFromFloat(cfg.Liquidity),
		logger:    log,
		balances:  make(map[string]decimal.Decimal),
		start:     decimal.NewFromFloat(paperCfg.Balance),
	}
	for _, raw := range cfg.Pairs {
		pair, err := domain.ParsePair(raw)
		if err != nil {
			return nil, fmt.Errorf("dex %s: %w", cfg.Name, err)
		}
		d.pairs = append(d.pairs, pair)
	}
	return d, nil
}

func (d *DEX) Name() string { return d.name }

func (d *DEX) Network() string { return d.network }

func (d *DEX) Pairs() []domain.Pair { return d.pairs }

func (d *DEX) Pool(_ context.Context, pair domain.Pair) (*domain.Pool, error) {
	if !d.lists(pair) {
		return nil, nil
	}
	ref, ok := d.market.Price(pair)
	if !ok || !ref.IsPositive() {
		return nil, nil
	}
	price := ref.Mul(decimal.NewFromInt(1).Add(d.skew))
	quoteSide := d.liquidity.Div(decimal.NewFromInt(2))

	return &domain.Pool{
		Network:   d.network,
		DEX:       d.name,
		Address:   d.poolAddress(pair),
		Pair:      pair,
		Reserve0:  quoteSide.Div(price),
		Reserve1:  quoteSide,
		Fee:       d.fee,
		Timestamp: time.Now(),
	}, nil
}

func (d *DEX) Status(context.Context) domain.DEXStatus { return domain.DEXOnline }

// Swap simulates the trade against the pool and returns a keccak-derived
// transaction reference. maxSlippage bounds the price impact.
func (d *DEX) Swap(ctx context.Context, tokenIn, tokenOut string, amountIn, maxSlippage decimal.Decimal) (string, error) {
	tokenIn, tokenOut = strings.ToUpper(tokenIn), strings.ToUpper(tokenOut)

	pair, baseIn, ok := d.route(tokenIn, tokenOut)
	if !ok {
		return "", apperror.NotFound(apperror.CodePoolNotFound,
			fmt.Sprintf("%s has no %s/%s pool", d.name, tokenIn, tokenOut))
	}
	pool, err := d.Pool(ctx, pair)
	if err != nil || pool == nil {
		return "", apperror.NotFound(apperror.CodePoolNotFound, pair.String())
	}

	out := pool.AmountOut(amountIn, baseIn)
	spot := amountIn.Mul(pool.Price())
	if !baseIn {
		spot = amountIn.Div(pool.Price())
	}
	if spot.IsPositive() && maxSlippage.IsPositive() {
		impact := spot.Sub(out).Div(spot)
		if impact.GreaterThan(maxSlippage.Add(d.fee)) {
			return "", apperror.New(apperror.CodeOrderRejected,
				apperror.WithContext(fmt.Sprintf("%s: price impact %s exceeds slippage %s", d.name, impact.StringFixed(4), maxSlippage)))
		}
	}

	d.mu.Lock()
	d.balances[tokenIn] = d.balanceLocked(tokenIn).Sub(amountIn)
	d.balances[tokenOut] = d.balanceLocked(tokenOut).Add(out)
	d.mu.Unlock()

	ref := d.txRef(tokenIn, tokenOut, amountIn)
	d.logger.Debug(ctx, "paper swap",
		"dex", d.name,
		"token_in", tokenIn,
		"token_out", tokenOut,
		"amount_in", amountIn.String(),
		"amount_out", out.String(),
		"tx", ref)

	return ref, nil
}

// TokenBalance ignores address; the simulation tracks one wallet.
func (d *DEX) TokenBalance(_ context.Context, token, _ string) (decimal.Decimal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.balanceLocked(strings.ToUpper(token)), nil
}

func (d *DEX) balanceLocked(token string) decimal.Decimal {
	if b, ok := d.balances[token]; ok {
		return b
	}
	b := d.start
	for _, p := range d.pairs {
		if p.Base == token {
			if ref, ok := d.market.Reference(p); ok && ref.IsPositive() {
				b = d.start.Div(ref)
			}
			break
		}
	}
	d.balances[token] = b
	return b
}

func (d *DEX) lists(pair domain.Pair) bool {
	for _, p := range d.pairs {
		if p == pair {
			return true
		}
	}
	return false
}

func (d *DEX) route(tokenIn, tokenOut string) (domain.Pair, bool, bool) {
	for _, p := range d.pairs {
		switch {
		case p.Base == tokenIn && p.Quote == tokenOut:
			return p, true, true
		case p.Quote == tokenIn && p.Base == tokenOut:
			return p, false, true
		}
	}
	return domain.Pair{}, false, false
}

func (d *DEX) poolAddress(pair domain.Pair) string {
	h := crypto.Keccak256([]byte(d.network + "/" + d.name + "/" + pair.String()))
	return "0x" + fmt.Sprintf("%x", h[12:])
}

func (d *DEX) txRef(tokenIn, tokenOut string, amountIn decimal.Decimal) string {
	n := d.nonce.Add(1)
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("%s:%d:%s:%s:%s", d.name, n, tokenIn, tokenOut, amountIn))).Hex()
}
