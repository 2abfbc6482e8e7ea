package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbitrage-engine/business/market/app"
	"github.com/fd1az/arbitrage-engine/business/market/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/cache"
	"github.com/fd1az/arbitrage-engine/internal/circuitbreaker"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/httpclient"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/ratelimit"
)

const (
	tracerName = "exchange"
	meterName  = "exchange"

	defaultTimeout = 10 * time.Second
	recvWindow     = "5000"
	statsTTL       = 5 * time.Second
	streamMaxAge   = 3 * time.Second
	apiKeyHeader   = "X-MBX-APIKEY"
)

var _ app.CEXVenue = (*Client)(nil)

type clientMetrics struct {
	tickers    metric.Int64Counter
	streamHits metric.Int64Counter
	orders     metric.Int64Counter
}

// Client is a REST venue for a Binance-compatible exchange. When a WebSocket
// URL is configured, fresh stream quotes override the polled bid/ask.
type Client struct {
	name      string
	pairs     []domain.Pair
	apiKey    string
	apiSecret string
	dryRun    bool

	http   httpclient.Client
	stream *Stream
	stats  *cache.Cache[string, domain.Ticker]
	cb     *circuitbreaker.CircuitBreaker[*httpclient.Response]

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *clientMetrics
	now     func() time.Time
}

// NewClient creates a REST venue. In dry-run mode orders go to the venue's
// test endpoint, which validates without matching.
func NewClient(cfg config.ExchangeConfig, dryRun bool, log logger.LoggerInterface) (*Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	tracer := otel.Tracer(tracerName)

	hc, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(cfg.Name),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithRateLimiter(ratelimit.New(cfg.RateLimitRPM)),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	c := &Client{
		name:      cfg.Name,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		dryRun:    dryRun,
		http:      hc,
		stats:     cache.New[string, domain.Ticker](time.Minute),
		cb:        circuitbreaker.New[*httpclient.Response](circuitbreaker.DefaultConfig("exchange-" + cfg.Name)),
		logger:    log,
		tracer:    tracer,
		now:       time.Now,
	}

	symbols := make([]string, 0, len(cfg.Pairs))
	for _, raw := range cfg.Pairs {
		pair, err := domain.ParsePair(raw)
		if err != nil {
			return nil, fmt.Errorf("exchange %s: %w", cfg.Name, err)
		}
		c.pairs = append(c.pairs, pair)
		symbols = append(symbols, pair.Symbol())
	}

	if cfg.WebSocketURL != "" {
		c.stream, err = NewStream(cfg.Name, cfg.WebSocketURL, symbols, log)
		if err != nil {
			return nil, err
		}
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.tickers, err = meter.Int64Counter(
		"exchange_ticker_requests_total",
		metric.WithDescription("Total ticker lookups"),
	)
	if err != nil {
		return err
	}

	c.metrics.streamHits, err = meter.Int64Counter(
		"exchange_stream_hits_total",
		metric.WithDescription("Ticker lookups served from the stream"),
	)
	if err != nil {
		return err
	}

	c.metrics.orders, err = meter.Int64Counter(
		"exchange_orders_total",
		metric.WithDescription("Orders submitted by result"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Connect opens the book-ticker stream when one is configured.
func (c *Client) Connect(ctx context.Context) error {
	if c.stream == nil {
		return nil
	}
	return c.stream.Connect(ctx)
}

func (c *Client) Close() error {
	c.stats.Close()
	if c.stream != nil {
		return c.stream.Close()
	}
	return nil
}

func (c *Client) Name() string { return c.name }

func (c *Client) Pairs() []domain.Pair { return c.pairs }

// Ticker returns the pair's top of book. Last and volume come from the 24hr
// endpoint, cached briefly; bid/ask prefer a fresh stream quote.
func (c *Client) Ticker(ctx context.Context, pair domain.Pair) (*domain.Ticker, error) {
	ctx, span := c.tracer.Start(ctx, "exchange.ticker",
		trace.WithAttributes(
			attribute.String("venue", c.name),
			attribute.String("pair", pair.String()),
		),
	)
	defer span.End()

	c.metrics.tickers.Add(ctx, 1, metric.WithAttributes(attribute.String("venue", c.name)))
	symbol := pair.Symbol()

	tk, found := c.stats.Get(ctx, symbol)
	if !found {
		fetched, err := c.fetch24h(ctx, symbol)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "ticker fetch failed")
			return nil, apperror.Unavailable(c.name, err)
		}
		tk = *fetched
		c.stats.Set(ctx, symbol, tk, statsTTL)
	}
	tk.Venue = c.name
	tk.Pair = pair

	if c.stream != nil {
		if bid, ask, at, ok := c.stream.Book(symbol, streamMaxAge); ok {
			tk.Bid, tk.Ask, tk.Timestamp = bid, ask, at
			c.metrics.streamHits.Add(ctx, 1)
			span.AddEvent("stream_quote")
		}
	}

	return &tk, nil
}

func (c *Client) fetch24h(ctx context.Context, symbol string) (*domain.Ticker, error) {
	var result Ticker24hResponse
	_, err := c.cb.Execute(func() (*httpclient.Response, error) {
		return c.http.NewRequestWithOptions(
			httpclient.WithLabels(
				httpclient.NewLabel("endpoint", "ticker_24hr"),
				httpclient.NewLabel("symbol", symbol),
			),
			httpclient.WithResponseErrorHandler(apiErrorHandler),
		).
			SetQueryParam("symbol", symbol).
			SetResult(&result).
			Get(ctx, ticker24hEndpoint)
	})
	if err != nil {
		return nil, err
	}

	vals, err := parseDecimals(result.BidPrice, result.AskPrice, result.LastPrice, result.Volume)
	if err != nil {
		return nil, fmt.Errorf("parse ticker %s: %w", symbol, err)
	}

	ts := c.now()
	if result.CloseTime > 0 {
		ts = time.UnixMilli(result.CloseTime)
	}
	return &domain.Ticker{
		Bid:       vals[0],
		Ask:       vals[1],
		Last:      vals[2],
		Volume:    vals[3],
		Timestamp: ts,
	}, nil
}

// Status pings the venue. 429 and 418 mean the venue is throttling us; an
// open breaker or a transport failure means it is offline.
func (c *Client) Status(ctx context.Context) domain.CEXStatus {
	ctx, span := c.tracer.Start(ctx, "exchange.status",
		trace.WithAttributes(attribute.String("venue", c.name)),
	)
	defer span.End()

	resp, err := c.cb.Execute(func() (*httpclient.Response, error) {
		return c.http.NewRequestWithOptions(
			httpclient.WithLabels(httpclient.NewLabel("endpoint", "ping")),
			httpclient.WithResponseErrorHandler(apiErrorHandler),
		).Get(ctx, pingEndpoint)
	})

	status := classifyStatus(resp, err)
	span.SetAttributes(attribute.String("status", string(status)))
	return status
}

func classifyStatus(resp *httpclient.Response, err error) domain.CEXStatus {
	if resp != nil && resp.Response != nil {
		switch code := resp.StatusCode; {
		case code == http.StatusTooManyRequests || code == http.StatusTeapot:
			return domain.CEXRateLimited
		case code >= 400:
			return domain.CEXError
		}
	}
	if err != nil {
		if apperror.HasCode(err, apperror.CodeCircuitOpen) {
			return domain.CEXOffline
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return domain.CEXError
		}
		return domain.CEXOffline
	}
	return domain.CEXOnline
}

// MarketOrder submits a signed MARKET order for amount of the base asset.
func (c *Client) MarketOrder(ctx context.Context, pair domain.Pair, side domain.Side, amount decimal.Decimal) (string, error) {
	ctx, span := c.tracer.Start(ctx, "exchange.market_order",
		trace.WithAttributes(
			attribute.String("venue", c.name),
			attribute.String("pair", pair.String()),
			attribute.String("side", string(side)),
			attribute.String("amount", amount.String()),
			attribute.Bool("dry_run", c.dryRun),
		),
	)
	defer span.End()

	clientID := uuid.NewString()
	params := url.Values{}
	params.Set("symbol", pair.Symbol())
	params.Set("side", strings.ToUpper(string(side)))
	params.Set("type", "MARKET")
	params.Set("quantity", amount.Truncate(8).String())
	params.Set("newClientOrderId", clientID)

	endpoint := orderEndpoint
	if c.dryRun {
		endpoint = orderTestEndpoint
	}

	var result OrderResponse
	_, err := c.cb.Execute(func() (*httpclient.Response, error) {
		return c.signed(params).
			SetResult(&result).
			Post(ctx, endpoint)
	})
	if err != nil {
		c.metrics.orders.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		span.RecordError(err)
		span.SetStatus(codes.Error, "order failed")
		return "", apperror.New(apperror.CodeOrderRejected,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s %s %s", c.name, side, pair)))
	}

	if result.Status == "REJECTED" || result.Status == "EXPIRED" {
		c.metrics.orders.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "rejected")))
		return "", apperror.New(apperror.CodeOrderRejected,
			apperror.WithContext(fmt.Sprintf("%s: order %s", c.name, strings.ToLower(result.Status))))
	}

	ref := c.name + ":" + strconv.FormatInt(result.OrderID, 10)
	if c.dryRun {
		ref = c.name + ":test:" + clientID
	}

	c.metrics.orders.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "accepted")))
	c.logger.Info(ctx, "order accepted",
		"venue", c.name,
		"pair", pair.String(),
		"side", string(side),
		"amount", amount.String(),
		"ref", ref)

	return ref, nil
}

// Balance returns the free balance of currency.
func (c *Client) Balance(ctx context.Context, currency string) (decimal.Decimal, error) {
	ctx, span := c.tracer.Start(ctx, "exchange.balance",
		trace.WithAttributes(
			attribute.String("venue", c.name),
			attribute.String("currency", currency),
		),
	)
	defer span.End()

	var result AccountResponse
	_, err := c.cb.Execute(func() (*httpclient.Response, error) {
		return c.signed(url.Values{}).
			SetResult(&result).
			Get(ctx, accountEndpoint)
	})
	if err != nil {
		span.RecordError(err)
		return decimal.Zero, apperror.Unavailable(c.name, err)
	}

	for _, b := range result.Balances {
		if strings.EqualFold(b.Asset, currency) {
			free, err := decimal.NewFromString(b.Free)
			if err != nil {
				return decimal.Zero, apperror.New(apperror.CodeExchangeAPIError,
					apperror.WithCause(err),
					apperror.WithContext("bad balance for "+currency))
			}
			return free, nil
		}
	}
	return decimal.Zero, nil
}

// signed builds a request carrying params, a timestamp and their HMAC-SHA256
// signature.
func (c *Client) signed(params url.Values) httpclient.Request {
	params.Set("recvWindow", recvWindow)
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	query := params.Encode()

	return c.http.NewRequestWithOptions(
		httpclient.WithResponseErrorHandler(apiErrorHandler),
		httpclient.WithRedactedHeaders(apiKeyHeader),
	).
		SetHeader(apiKeyHeader, c.apiKey).
		SetRawQuery(query + "&signature=" + sign(c.apiSecret, query))
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
