package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/wsconn"
)

// bookQuote is the latest top of book seen on the stream.
type bookQuote struct {
	bid decimal.Decimal
	ask decimal.Decimal
	at  time.Time
}

type streamMetrics struct {
	messagesReceived metric.Int64Counter
	parseErrors      metric.Int64Counter
}

// Stream keeps the latest book ticker per symbol from a combined WebSocket
// stream.
type Stream struct {
	name    string
	baseURL string
	symbols []string
	logger  logger.LoggerInterface

	conn   *wsconn.Client
	connMu sync.RWMutex

	books   map[string]bookQuote
	booksMu sync.RWMutex

	tracer  trace.Tracer
	metrics *streamMetrics
	now     func() time.Time
}

// NewStream creates a stream for symbols (e.g. "BTCUSDT").
func NewStream(name, baseURL string, symbols []string, log logger.LoggerInterface) (*Stream, error) {
	s := &Stream{
		name:    name,
		baseURL: baseURL,
		symbols: symbols,
		logger:  log,
		books:   make(map[string]bookQuote, len(symbols)),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}

	meter := otel.Meter(meterName)
	m := &streamMetrics{}
	var err error
	m.messagesReceived, err = meter.Int64Counter(
		"exchange_stream_messages_total",
		metric.WithDescription("Total stream messages received"),
	)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	m.parseErrors, err = meter.Int64Counter(
		"exchange_stream_parse_errors_total",
		metric.WithDescription("Stream message parse errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	s.metrics = m

	return s, nil
}

// Connect dials the combined stream. The underlying connection reconnects on
// its own after a drop.
func (s *Stream) Connect(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "exchange.stream.connect",
		trace.WithAttributes(
			attribute.String("venue", s.name),
			attribute.StringSlice("symbols", s.symbols),
		),
	)
	defer span.End()

	wsURL, err := s.streamURL()
	if err != nil {
		return err
	}

	conn, err := wsconn.New(wsconn.DefaultConfig(wsURL, s.name))
	if err != nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("failed to create stream connection"))
	}
	conn.OnMessage(s.handleMessage)

	if err := conn.ConnectWithRetry(ctx); err != nil {
		span.RecordError(err)
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect to "+s.name))
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.logger.Info(ctx, "exchange stream connected", "venue", s.name, "url", wsURL)
	return nil
}

// Book returns the stream's bid/ask for symbol if it is younger than maxAge.
func (s *Stream) Book(symbol string, maxAge time.Duration) (bid, ask decimal.Decimal, at time.Time, ok bool) {
	s.booksMu.RLock()
	q, found := s.books[symbol]
	s.booksMu.RUnlock()

	if !found || s.now().Sub(q.at) > maxAge {
		return decimal.Zero, decimal.Zero, time.Time{}, false
	}
	return q.bid, q.ask, q.at, true
}

func (s *Stream) IsConnected() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.conn != nil && s.conn.IsConnected()
}

func (s *Stream) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Stream) streamURL() (string, error) {
	if len(s.symbols) == 0 {
		return "", apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(s.name+": no symbols to stream"))
	}
	streams := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		streams = append(streams, BookTickerStream(sym))
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", err
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(streams, "/")
	return u.String(), nil
}

func (s *Stream) handleMessage(ctx context.Context, data []byte) {
	s.metrics.messagesReceived.Add(ctx, 1)

	var event StreamEvent
	if err := json.Unmarshal(data, &event); err != nil || event.Stream == "" {
		// subscription acks and pongs carry no stream
		return
	}
	if !strings.HasSuffix(event.Stream, bookTickerStreamID) {
		return
	}

	var tick BookTickerEvent
	if err := json.Unmarshal(event.Data, &tick); err != nil {
		s.metrics.parseErrors.Add(ctx, 1)
		s.logger.Debug(ctx, "failed to parse book ticker", "venue", s.name, "error", err)
		return
	}
	prices, err := parseDecimals(tick.BidPrice, tick.AskPrice)
	if err != nil {
		s.metrics.parseErrors.Add(ctx, 1)
		return
	}

	s.booksMu.Lock()
	s.books[strings.ToUpper(tick.Symbol)] = bookQuote{bid: prices[0], ask: prices[1], at: s.now()}
	s.booksMu.Unlock()
}
