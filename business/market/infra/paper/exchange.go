package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/market/app"
	"github.com/fd1az/arbitrage-engine/business/market/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

var _ app.CEXVenue = (*Exchange)(nil)

// Exchange is a simulated centralized venue. Orders fill immediately at the
// touch and move the in-memory balances.
type Exchange struct {
	name       string
	pairs      []domain.Pair
	market     *Market
	skew       decimal.Decimal
	halfSpread decimal.Decimal
	fee        decimal.Decimal
	logger     logger.LoggerInterface

	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

// NewExchange creates a paper venue from its exchange config. Every currency
// the venue lists starts with paper.balance worth of quote value.
func NewExchange(cfg config.ExchangeConfig, paperCfg config.PaperConfig, market *Market, log logger.LoggerInterface) (*Exchange, error) {
	e := &Exchange{
		name:       cfg.Name,
		market:     market,
		skew:       decimal.NewFromFloat(cfg.PriceSkew),
		halfSpread: decimal.NewFromFloat(paperCfg.SpreadBps).Div(decimal.NewFromInt(20000)),
		fee:        decimal.NewFromFloat(cfg.TakerFee),
		logger:     log,
		balances:   make(map[string]decimal.Decimal),
	}

	start := decimal.NewFromFloat(paperCfg.Balance)
	for _, raw := range cfg.Pairs {
		pair, err := domain.ParsePair(raw)
		if err != nil {
			return nil, fmt.Errorf("exchange %s: %w", cfg.Name, err)
		}
		e.pairs = append(e.pairs, pair)

		if _, ok := e.balances[pair.Quote]; !ok {
			e.balances[pair.Quote] = start
		}
		if _, ok := e.balances[pair.Base]; !ok {
			if ref, ok := market.Price(pair); ok && ref.IsPositive() {
				e.balances[pair.Base] = start.Div(ref)
			}
		}
	}
	return e, nil
}

func (e *Exchange) Name() string { return e.name }

func (e *Exchange) Pairs() []domain.Pair { return e.pairs }

func (e *Exchange) Ticker(_ context.Context, pair domain.Pair) (*domain.Ticker, error) {
	ref, ok := e.market.Price(pair)
	if !ok {
		return nil, apperror.NotFound(apperror.CodeNotFound, fmt.Sprintf("%s does not list %s", e.name, pair))
	}
	mid := ref.Mul(decimal.NewFromInt(1).Add(e.skew))
	half := mid.Mul(e.halfSpread)

	return &domain.Ticker{
		Venue:     e.name,
		Pair:      pair,
		Bid:       mid.Sub(half),
		Ask:       mid.Add(half),
		Last:      mid,
		Volume:    decimal.NewFromFloat(1000 + 9000*e.market.Noise()).Round(2),
		Timestamp: time.Now(),
	}, nil
}

func (e *Exchange) Status(context.Context) domain.CEXStatus { return domain.CEXOnline }

// MarketOrder fills amount of the base asset at the current touch, charging
// the taker fee in the quote asset.
func (e *Exchange) MarketOrder(ctx context.Context, pair domain.Pair, side domain.Side, amount decimal.Decimal) (string, error) {
	tk, err := e.Ticker(ctx, pair)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	price := tk.Ask
	if side == domain.SideSell {
		price = tk.Bid
	}
	notional := amount.Mul(price)
	fee := notional.Mul(e.fee)

	switch side {
	case domain.SideBuy:
		cost := notional.Add(fee)
		if e.balances[pair.Quote].LessThan(cost) {
			return "", apperror.New(apperror.CodeOrderRejected,
				apperror.WithContext(fmt.Sprintf("%s: insufficient %s balance", e.name, pair.Quote)))
		}
		e.balances[pair.Quote] = e.balances[pair.Quote].Sub(cost)
		e.balances[pair.Base] = e.balances[pair.Base].Add(amount)
	case domain.SideSell:
		if e.balances[pair.Base].LessThan(amount) {
			return "", apperror.New(apperror.CodeOrderRejected,
				apperror.WithContext(fmt.Sprintf("%s: insufficient %s balance", e.name, pair.Base)))
		}
		e.balances[pair.Base] = e.balances[pair.Base].Sub(amount)
		e.balances[pair.Quote] = e.balances[pair.Quote].Add(notional.Sub(fee))
	default:
		return "", apperror.Validation(apperror.CodeInvalidInput, "unknown side "+string(side))
	}

	ref := e.name + ":" + uuid.NewString()
	e.logger.Debug(ctx, "paper order filled",
		"venue", e.name,
		"pair", pair.String(),
		"side", string(side),
		"amount", amount.String(),
		"price", price.String(),
		"ref", ref)

	return ref, nil
}

func (e *Exchange) Balance(_ context.Context, currency string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[currency], nil
}
