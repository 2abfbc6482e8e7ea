// Package ethereum implements the chain ports on top of go-ethereum.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbitrage-engine/business/chain/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/cache"
	"github.com/fd1az/arbitrage-engine/internal/circuitbreaker"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

const (
	tracerName = "github.com/fd1az/arbitrage-engine/business/chain/infra/ethereum"
	meterName  = "github.com/fd1az/arbitrage-engine/business/chain/infra/ethereum"
)

// GasReader is the subset of ethclient.Client the oracle needs.
type GasReader interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// GasOracleConfig holds configuration for the gas oracle.
type GasOracleConfig struct {
	CacheTTL    time.Duration
	MaxGasPrice *big.Int // clamp for misbehaving nodes
}

// DefaultGasOracleConfig caches for roughly one mainnet block and clamps at 500 gwei.
func DefaultGasOracleConfig() GasOracleConfig {
	return GasOracleConfig{
		CacheTTL:    12 * time.Second,
		MaxGasPrice: big.NewInt(500_000_000_000),
	}
}

type gasOracleMetrics struct {
	fetches   metric.Int64Counter
	fallbacks metric.Int64Counter
	gwei      metric.Float64Gauge
}

type tipResult struct {
	price *big.Int
	tip   *big.Int
}

// GasOracle serves per-network gas snapshots. Networks without an RPC client,
// or whose node fails, get a flat curve at their configured fallback price.
type GasOracle struct {
	config   GasOracleConfig
	logger   logger.LoggerInterface
	networks map[string]config.NetworkConfig
	readers  map[string]GasReader

	cache *cache.Cache[string, domain.GasSnapshot]

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker[tipResult]

	tracer  trace.Tracer
	metrics *gasOracleMetrics
}

// NewGasOracle creates a gas oracle. readers is keyed by network name.
func NewGasOracle(cfg GasOracleConfig, networks []config.NetworkConfig, readers map[string]GasReader, log logger.LoggerInterface) (*GasOracle, error) {
	g := &GasOracle{
		config:   cfg,
		logger:   log,
		networks: make(map[string]config.NetworkConfig, len(networks)),
		readers:  readers,
		cache:    cache.New[string, domain.GasSnapshot](time.Minute),
		breakers: make(map[string]*circuitbreaker.CircuitBreaker[tipResult]),
		tracer:   otel.Tracer(tracerName),
	}
	for _, n := range networks {
		g.networks[n.Name] = n
	}

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return g, nil
}

func (g *GasOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	g.metrics = &gasOracleMetrics{}

	g.metrics.fetches, err = meter.Int64Counter(
		"gas_price_fetches_total",
		metric.WithDescription("Gas price fetches from RPC nodes"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	g.metrics.fallbacks, err = meter.Int64Counter(
		"gas_price_fallbacks_total",
		metric.WithDescription("Gas snapshots served from configured fallback prices"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return err
	}

	g.metrics.gwei, err = meter.Float64Gauge(
		"gas_price_gwei",
		metric.WithDescription("Average gas price per network"),
		metric.WithUnit("gwei"),
	)
	return err
}

// LatestGasPrice returns the network's current snapshot.
func (g *GasOracle) LatestGasPrice(ctx context.Context, network string) (domain.GasSnapshot, error) {
	ctx, span := g.tracer.Start(ctx, "gas.latest_price",
		trace.WithAttributes(attribute.String("network", network)),
	)
	defer span.End()

	netCfg, ok := g.networks[network]
	if !ok {
		err := apperror.NotFound(apperror.CodeVenueNotConfigured, "network "+network)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown network")
		return domain.GasSnapshot{}, err
	}

	if snap, found := g.cache.Get(ctx, network); found {
		span.AddEvent("cache_hit")
		return snap, nil
	}

	reader, ok := g.readers[network]
	if !ok {
		return g.fallback(ctx, netCfg, nil), nil
	}

	g.metrics.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("network", network)))
	res, err := g.breaker(network).Execute(func() (tipResult, error) {
		price, err := reader.SuggestGasPrice(ctx)
		if err != nil {
			return tipResult{}, err
		}
		tip, err := reader.SuggestGasTipCap(ctx)
		if err != nil {
			// legacy nodes: no tip
			tip = nil
		}
		return tipResult{price: price, tip: tip}, nil
	})
	if err != nil {
		span.RecordError(err)
		return g.fallback(ctx, netCfg, err), nil
	}

	price := res.price
	if g.config.MaxGasPrice != nil && price.Cmp(g.config.MaxGasPrice) > 0 {
		span.AddEvent("gas_price_clamped", trace.WithAttributes(attribute.String("wei", price.String())))
		g.logger.Warn(ctx, "gas price exceeds max, clamping", "network", network, "wei", price.String())
		price = g.config.MaxGasPrice
	}

	snap := domain.NewGasSnapshot(network, price, res.tip)
	g.cache.Set(ctx, network, snap, g.config.CacheTTL)

	avg, _ := snap.Average.Float64()
	g.metrics.gwei.Record(ctx, avg, metric.WithAttributes(attribute.String("network", network)))
	span.SetAttributes(attribute.Float64("gwei", avg))
	span.SetStatus(codes.Ok, "fetched")

	return snap, nil
}

func (g *GasOracle) fallback(ctx context.Context, n config.NetworkConfig, cause error) domain.GasSnapshot {
	g.metrics.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("network", n.Name)))
	if cause != nil {
		g.logger.Warn(ctx, "gas price fetch failed, using fallback", "network", n.Name, "error", cause)
	}
	return domain.FallbackGasSnapshot(n.Name, decimal.NewFromFloat(n.FallbackGasGwei))
}

func (g *GasOracle) breaker(network string) *circuitbreaker.CircuitBreaker[tipResult] {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb, ok := g.breakers[network]
	if !ok {
		cb = circuitbreaker.New[tipResult](circuitbreaker.DefaultConfig("gas-oracle-" + network))
		g.breakers[network] = cb
	}
	return cb
}

// Close stops the cache janitor.
func (g *GasOracle) Close() error {
	g.cache.Close()
	return nil
}
