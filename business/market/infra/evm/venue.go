package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbitrage-engine/business/market/app"
	"github.com/fd1az/arbitrage-engine/business/market/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/asset"
	"github.com/fd1az/arbitrage-engine/internal/cache"
	"github.com/fd1az/arbitrage-engine/internal/circuitbreaker"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

const (
	tracerName = "evm-dex"
	meterName  = "evm-dex"

	pairCacheTTL  = time.Hour
	swapDeadline  = 5 * time.Minute
	minStaleAfter = 2 * time.Minute
)

var _ app.DEXVenue = (*Venue)(nil)

// ChainReader is the subset of ethclient.Client the venue reads through.
type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// TxSender submits calldata to a contract on network and returns the
// transaction reference.
type TxSender interface {
	Send(ctx context.Context, network string, to common.Address, data []byte) (string, error)
}

type venueMetrics struct {
	poolReads  metric.Int64Counter
	readErrors metric.Int64Counter
	readTime   metric.Float64Histogram
	swaps      metric.Int64Counter
}

// Venue is a Uniswap-V2-style DEX deployment.
type Venue struct {
	name    string
	network config.NetworkConfig
	factory common.Address
	router  common.Address
	fee     decimal.Decimal
	pairs   []domain.Pair
	wallet  common.Address

	client   ChainReader
	sender   TxSender
	registry *asset.Registry

	factoryABI abi.ABI
	pairABI    abi.ABI
	routerABI  abi.ABI
	erc20ABI   abi.ABI

	pairAddrs *cache.Cache[domain.Pair, common.Address]
	cb        *circuitbreaker.CircuitBreaker[[]byte]

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *venueMetrics
	now     func() time.Time
}

// NewVenue creates a venue for a DEX deployment on network.
func NewVenue(cfg config.DEXConfig, network config.NetworkConfig, wallet string, client ChainReader, sender TxSender, registry *asset.Registry, log logger.LoggerInterface) (*Venue, error) {
	v := &Venue{
		name:      cfg.Name,
		network:   network,
		factory:   cfg.FactoryAddress(),
		router:    cfg.RouterAddress(),
		fee:       decimal.NewFromFloat(cfg.Fee),
		wallet:    common.HexToAddress(wallet),
		client:    client,
		sender:    sender,
		registry:  registry,
		pairAddrs: cache.New[domain.Pair, common.Address](10 * time.Minute),
		cb:        circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("dex-" + cfg.Name)),
		logger:    log,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}

	for _, raw := range cfg.Pairs {
		pair, err := domain.ParsePair(raw)
		if err != nil {
			return nil, fmt.Errorf("dex %s: %w", cfg.Name, err)
		}
		v.pairs = append(v.pairs, pair)
	}

	var err error
	for _, def := range []struct {
		dst *abi.ABI
		src string
	}{
		{&v.factoryABI, FactoryABI},
		{&v.pairABI, PairABI},
		{&v.routerABI, RouterABI},
		{&v.erc20ABI, ERC20ABI},
	} {
		if *def.dst, err = abi.JSON(strings.NewReader(def.src)); err != nil {
			return nil, fmt.Errorf("failed to parse ABI: %w", err)
		}
	}

	if err := v.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return v, nil
}

func (v *Venue) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	v.metrics = &venueMetrics{}

	v.metrics.poolReads, err = meter.Int64Counter(
		"dex_pool_reads_total",
		metric.WithDescription("Total pool reserve reads"),
	)
	if err != nil {
		return err
	}

	v.metrics.readErrors, err = meter.Int64Counter(
		"dex_read_errors_total",
		metric.WithDescription("Total failed contract reads"),
	)
	if err != nil {
		return err
	}

	v.metrics.readTime, err = meter.Float64Histogram(
		"dex_pool_read_latency_ms",
		metric.WithDescription("Pool read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	v.metrics.swaps, err = meter.Int64Counter(
		"dex_swaps_total",
		metric.WithDescription("Total swaps submitted"),
	)
	if err != nil {
		return err
	}

	return nil
}

func (v *Venue) Name() string { return v.name }

func (v *Venue) Network() string { return v.network.Name }

func (v *Venue) Pairs() []domain.Pair { return v.pairs }

// Pool reads the pair's reserves. It returns nil, nil when the factory has
// no pair for the tokens.
func (v *Venue) Pool(ctx context.Context, pair domain.Pair) (*domain.Pool, error) {
	ctx, span := v.tracer.Start(ctx, "dex.pool",
		trace.WithAttributes(
			attribute.String("dex", v.name),
			attribute.String("network", v.network.Name),
			attribute.String("pair", pair.String()),
		),
	)
	defer span.End()

	start := v.now()
	v.metrics.poolReads.Add(ctx, 1)

	base, quote, err := v.tokens(pair.Base, pair.Quote)
	if err != nil {
		return nil, err
	}

	pairAddr, err := v.pairAddress(ctx, pair, base.Address(), quote.Address())
	if err != nil {
		v.readFailed(ctx, span, err)
		return nil, apperror.Unavailable(v.name, err)
	}
	if pairAddr == (common.Address{}) {
		span.AddEvent("pair_not_deployed")
		return nil, nil
	}

	var reserves struct {
		Reserve0           *big.Int
		Reserve1           *big.Int
		BlockTimestampLast uint32
	}
	if err := v.call(ctx, pairAddr, v.pairABI, "getReserves", &reserves); err != nil {
		v.readFailed(ctx, span, err)
		return nil, apperror.Unavailable(v.name, err)
	}
	var token0 common.Address
	if err := v.call(ctx, pairAddr, v.pairABI, "token0", &token0); err != nil {
		v.readFailed(ctx, span, err)
		return nil, apperror.Unavailable(v.name, err)
	}

	rBase, rQuote := reserves.Reserve0, reserves.Reserve1
	if token0 != base.Address() {
		rBase, rQuote = rQuote, rBase
	}

	pool := &domain.Pool{
		Network:   v.network.Name,
		DEX:       v.name,
		Address:   pairAddr.Hex(),
		Pair:      pair,
		Reserve0:  asset.NewAmount(base, rBase).ToDecimal(),
		Reserve1:  asset.NewAmount(quote, rQuote).ToDecimal(),
		Fee:       v.fee,
		Timestamp: v.now(),
	}

	v.metrics.readTime.Record(ctx, float64(v.now().Sub(start).Milliseconds()))
	span.SetAttributes(attribute.String("price", pool.Price().String()))
	span.SetStatus(codes.Ok, "pool read")

	return pool, nil
}

// Status derives venue health from the head block age and the gas price.
func (v *Venue) Status(ctx context.Context) domain.DEXStatus {
	ctx, span := v.tracer.Start(ctx, "dex.status",
		trace.WithAttributes(attribute.String("dex", v.name)),
	)
	defer span.End()

	head, err := v.client.HeaderByNumber(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return domain.DEXOffline
	}

	staleAfter := 10 * v.network.BlockTime
	if staleAfter < minStaleAfter {
		staleAfter = minStaleAfter
	}
	if age := v.now().Sub(time.Unix(int64(head.Time), 0)); age > staleAfter {
		span.AddEvent("stale_head", trace.WithAttributes(attribute.String("age", age.String())))
		return domain.DEXError
	}

	if v.network.HighGasGwei > 0 {
		wei, err := v.client.SuggestGasPrice(ctx)
		if err != nil {
			span.RecordError(err)
			return domain.DEXError
		}
		gwei := decimal.NewFromBigInt(wei, -9)
		if gwei.GreaterThan(decimal.NewFromFloat(v.network.HighGasGwei)) {
			return domain.DEXHighGas
		}
	}

	return domain.DEXOnline
}

// Swap quotes the exact-input route through the router and submits the swap
// with amountOutMin bounded by maxSlippage.
func (v *Venue) Swap(ctx context.Context, tokenIn, tokenOut string, amountIn, maxSlippage decimal.Decimal) (string, error) {
	ctx, span := v.tracer.Start(ctx, "dex.swap",
		trace.WithAttributes(
			attribute.String("dex", v.name),
			attribute.String("token_in", tokenIn),
			attribute.String("token_out", tokenOut),
			attribute.String("amount_in", amountIn.String()),
		),
	)
	defer span.End()

	in, out, err := v.tokens(tokenIn, tokenOut)
	if err != nil {
		return "", err
	}

	amt, err := asset.FloorDecimal(in, amountIn)
	if err != nil {
		return "", apperror.Validation(apperror.CodeInvalidTradeSize, err.Error())
	}
	path := []common.Address{in.Address(), out.Address()}

	var amounts []*big.Int
	if err := v.call(ctx, v.router, v.routerABI, "getAmountsOut", &amounts, amt.Raw(), path); err != nil {
		span.RecordError(err)
		return "", apperror.Unavailable(v.name, err)
	}
	if len(amounts) != 2 {
		return "", apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext(fmt.Sprintf("getAmountsOut returned %d amounts", len(amounts))))
	}

	bps := maxSlippage.Mul(decimal.NewFromInt(10000)).IntPart()
	minOut := asset.NewAmount(out, amounts[1]).ApplyBps(bps)
	deadline := big.NewInt(v.now().Add(swapDeadline).Unix())

	data, err := v.routerABI.Pack("swapExactTokensForTokens", amt.Raw(), minOut.Raw(), path, v.wallet, deadline)
	if err != nil {
		return "", fmt.Errorf("failed to encode swap: %w", err)
	}

	ref, err := v.sender.Send(ctx, v.network.Name, v.router, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return "", err
	}

	v.metrics.swaps.Add(ctx, 1, metric.WithAttributes(attribute.String("dex", v.name)))
	v.logger.Info(ctx, "swap submitted",
		"dex", v.name,
		"amount_in", amt.String(),
		"min_out", minOut.String(),
		"tx", ref)

	return ref, nil
}

// TokenBalance reads ERC20 balanceOf(address).
func (v *Venue) TokenBalance(ctx context.Context, token, address string) (decimal.Decimal, error) {
	ctx, span := v.tracer.Start(ctx, "dex.token_balance",
		trace.WithAttributes(attribute.String("token", token)),
	)
	defer span.End()

	tok, ok := v.registry.Token(v.network.ChainID, strings.ToUpper(token))
	if !ok || tok.IsNative() {
		return decimal.Zero, apperror.NotFound(apperror.CodeTokenNotFound, token+" on "+v.network.Name)
	}

	var raw *big.Int
	if err := v.call(ctx, tok.Address(), v.erc20ABI, "balanceOf", &raw, common.HexToAddress(address)); err != nil {
		span.RecordError(err)
		return decimal.Zero, apperror.Unavailable(v.name, err)
	}
	return asset.NewAmount(tok, raw).ToDecimal(), nil
}

func (v *Venue) Close() error {
	v.pairAddrs.Close()
	return nil
}

func (v *Venue) pairAddress(ctx context.Context, pair domain.Pair, base, quote common.Address) (common.Address, error) {
	if addr, ok := v.pairAddrs.Get(ctx, pair); ok {
		return addr, nil
	}
	var addr common.Address
	if err := v.call(ctx, v.factory, v.factoryABI, "getPair", &addr, base, quote); err != nil {
		return common.Address{}, err
	}
	v.pairAddrs.Set(ctx, pair, addr, pairCacheTTL)
	return addr, nil
}

// call packs method with args, runs eth_call through the breaker and unpacks
// the result into out.
func (v *Venue) call(ctx context.Context, to common.Address, contract abi.ABI, method string, out any, args ...any) error {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	res, err := v.cb.Execute(func() ([]byte, error) {
		return v.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		return apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(method))
	}

	if err := contract.UnpackIntoInterface(out, method, res); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	return nil
}

func (v *Venue) tokens(a, b string) (*asset.Asset, *asset.Asset, error) {
	ta, ok := v.registry.Token(v.network.ChainID, strings.ToUpper(a))
	if !ok || ta.IsNative() {
		return nil, nil, apperror.NotFound(apperror.CodeTokenNotFound, a+" on "+v.network.Name)
	}
	tb, ok := v.registry.Token(v.network.ChainID, strings.ToUpper(b))
	if !ok || tb.IsNative() {
		return nil, nil, apperror.NotFound(apperror.CodeTokenNotFound, b+" on "+v.network.Name)
	}
	return ta, tb, nil
}

func (v *Venue) readFailed(ctx context.Context, span trace.Span, err error) {
	v.metrics.readErrors.Add(ctx, 1)
	span.RecordError(err)
	span.SetStatus(codes.Error, "read failed")
}
