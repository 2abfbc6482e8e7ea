package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	chainApp "github.com/fd1az/arbitrage-engine/business/chain/app"
	chainDomain "github.com/fd1az/arbitrage-engine/business/chain/domain"
	marketApp "github.com/fd1az/arbitrage-engine/business/market/app"
	marketDomain "github.com/fd1az/arbitrage-engine/business/market/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

// ExecutionConfig holds the execution-time tunables.
type ExecutionConfig struct {
	MaxSlippage   decimal.Decimal
	BridgeTimeout time.Duration
	Wallet        string
}

// CoordinatorDeps are the collaborators of a Coordinator. Bridges, FlashLoans
// and Reporter may be nil.
type CoordinatorDeps struct {
	Store      OpportunityStore
	Gate       *RiskGate
	Sizer      *PositionSizer
	CEX        marketApp.CEXAdapter
	DEX        marketApp.DEXAdapter
	Bridges    chainApp.BridgeAdapter
	FlashLoans chainApp.FlashLoanAdapter
	Positions  *PositionBook
	Stats      *StatsTracker
	Reporter   Reporter
}

// Coordinator executes stored opportunities leg by leg. Legs are never
// retried; a failed leg aborts the rest and reports the refs gathered so far.
type Coordinator struct {
	deps      CoordinatorDeps
	config    ExecutionConfig
	locks     *keyedMutex[uint64]
	positions *keyedMutex[string]
	log       logger.LoggerInterface
	tracer    trace.Tracer
	metrics   *engineMetrics
	now       func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(deps CoordinatorDeps, config ExecutionConfig, log logger.LoggerInterface) (*Coordinator, error) {
	m, err := newEngineMetrics()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	if config.BridgeTimeout <= 0 {
		config.BridgeTimeout = 30 * time.Minute
	}
	return &Coordinator{
		deps:      deps,
		config:    config,
		locks:     newKeyedMutex[uint64](),
		positions: newKeyedMutex[string](),
		log:       log,
		tracer:    otel.Tracer(tracerName),
		metrics:   m,
		now:       time.Now,
	}, nil
}

// Execute runs the opportunity with the given id. An inactive opportunity
// yields STALE_OPPORTUNITY before any venue is touched; a tripped breaker
// yields CIRCUIT_BREAKER_TRIPPED. A failed leg returns the result together
// with a *domain.LegError.
func (c *Coordinator) Execute(ctx context.Context, id uint64) (*domain.ExecutionResult, error) {
	ctx, span := c.tracer.Start(ctx, "arbitrage.execute",
		trace.WithAttributes(attribute.Int64("opportunity.id", int64(id))),
	)
	defer span.End()

	unlock := c.locks.Lock(id)
	defer unlock()

	opp, err := c.deps.Store.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, err
	}
	if !opp.Active {
		err := apperror.New(apperror.CodeStaleOpportunity, apperror.WithContext(fmt.Sprintf("opportunity %d", id)))
		span.SetStatus(codes.Error, "stale")
		return nil, err
	}
	if err := c.deps.Gate.AdmitExecution(); err != nil {
		c.metrics.recordBreaker(ctx, true)
		span.SetStatus(codes.Error, "breaker tripped")
		return nil, err
	}
	span.SetAttributes(attribute.String("strategy", string(opp.Strategy)))

	result := domain.NewExecutionResult(id, opp.Strategy, c.now())
	result.State = domain.ExecSizing
	notional := c.deps.Sizer.Size(ctx, opp)
	result.Notional = notional
	if !notional.IsPositive() {
		err := apperror.Validation(apperror.CodeInvalidTradeSize, fmt.Sprintf("opportunity %d sized to %s", id, notional))
		c.settle(ctx, result, opp, err)
		return result, err
	}

	result.State = domain.ExecLegInFlight
	c.log.Info(ctx, "executing opportunity",
		"id", id, "strategy", opp.Strategy, "pair", opp.Pair, "notional", notional.StringFixed(2))

	err = c.run(ctx, opp, notional, result)
	c.settle(ctx, result, opp, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execution failed")
		return result, err
	}
	span.AddEvent("settled", trace.WithAttributes(attribute.String("realized", result.RealizedProfit.String())))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (c *Coordinator) run(ctx context.Context, opp *domain.Opportunity, notional decimal.Decimal, r *domain.ExecutionResult) error {
	switch d := opp.Details.(type) {
	case domain.SimpleDetails:
		return c.runSimple(ctx, opp, d, notional, r)
	case domain.TriangularDetails:
		return c.runTriangular(ctx, opp, d, notional, r)
	case domain.CrossDEXDetails:
		return c.runCrossDEX(ctx, opp, d, notional, r)
	case domain.FlashLoanDetails:
		return c.runFlashLoan(ctx, opp, d, notional, r)
	case domain.StatisticalDetails:
		return c.runStatistical(ctx, opp, d, notional, r)
	default:
		return apperror.Validation(apperror.CodeInvalidState, fmt.Sprintf("opportunity %d has no %s details", opp.ID, opp.Strategy))
	}
}

// leg runs one leg and records its ref. An error or an empty ref is a leg failure.
func (c *Coordinator) leg(ctx context.Context, opp *domain.Opportunity, r *domain.ExecutionResult, idx int, what string, fn func() (string, error)) error {
	r.Leg = idx
	ref, err := fn()
	if err == nil && ref == "" {
		err = errors.New("venue returned no transaction reference")
	}
	if err != nil {
		return domain.NewLegError(opp.Strategy, opp.ID, idx, what, r.Refs(), err)
	}
	r.AddRef(ref)
	c.log.Debug(ctx, "leg settled", "id", opp.ID, "leg", idx, "what", what, "ref", ref)
	return nil
}

func (c *Coordinator) runSimple(ctx context.Context, opp *domain.Opportunity, d domain.SimpleDetails, notional decimal.Decimal, r *domain.ExecutionResult) error {
	if c.deps.CEX == nil {
		return domain.NewLegError(opp.Strategy, opp.ID, 0, "no exchange adapter", nil, apperror.Unavailable("cex", nil))
	}
	pair := marketDomain.NewPair(d.Base, d.Quote)
	amount := notional.Div(opp.BuyPrice)

	if err := c.leg(ctx, opp, r, 0, "buy on "+opp.BuyVenue, func() (string, error) {
		return c.deps.CEX.PlaceMarketOrder(ctx, opp.BuyVenue, pair, marketDomain.SideBuy, amount)
	}); err != nil {
		return err
	}
	if err := c.leg(ctx, opp, r, 1, "sell on "+opp.SellVenue, func() (string, error) {
		return c.deps.CEX.PlaceMarketOrder(ctx, opp.SellVenue, pair, marketDomain.SideSell, amount)
	}); err != nil {
		return err
	}

	r.RealizedProfit = opp.SellPrice.Sub(opp.BuyPrice).Mul(amount)
	return nil
}

func (c *Coordinator) runTriangular(ctx context.Context, opp *domain.Opportunity, d domain.TriangularDetails, notional decimal.Decimal, r *domain.ExecutionResult) error {
	if c.deps.CEX == nil {
		return domain.NewLegError(opp.Strategy, opp.ID, 0, "no exchange adapter", nil, apperror.Unavailable("cex", nil))
	}
	keep := one.Sub(d.Decay)
	amount := notional

	for i, hop := range d.Hops {
		pair, err := marketDomain.ParsePair(hop.Pair)
		if err != nil {
			return domain.NewLegError(opp.Strategy, opp.ID, i, "bad hop pair", r.Refs(), err)
		}
		out := amount.Mul(hop.Rate)
		side, base := marketDomain.SideBuy, out
		if hop.Sell {
			side, base = marketDomain.SideSell, amount
		}
		if err := c.leg(ctx, opp, r, i, fmt.Sprintf("%s %s -> %s", side, hop.From, hop.To), func() (string, error) {
			return c.deps.CEX.PlaceMarketOrder(ctx, d.Venue, pair, side, base)
		}); err != nil {
			return err
		}
		amount = out.Mul(keep)
	}

	r.RealizedProfit = amount.Sub(notional)
	return nil
}

func (c *Coordinator) runCrossDEX(ctx context.Context, opp *domain.Opportunity, d domain.CrossDEXDetails, notional decimal.Decimal, r *domain.ExecutionResult) error {
	if c.deps.DEX == nil {
		return domain.NewLegError(opp.Strategy, opp.ID, 0, "no dex adapter", nil, apperror.Unavailable("dex", nil))
	}
	slippage := c.config.MaxSlippage

	if err := c.leg(ctx, opp, r, 0, "swap on "+opp.BuyVenue, func() (string, error) {
		return c.deps.DEX.Swap(ctx, opp.BuyVenue, d.Quote, d.Base, notional, slippage)
	}); err != nil {
		return err
	}
	bought := notional.Div(opp.BuyPrice).Mul(one.Sub(d.BuyFee))

	next := 1
	bridgeFee := decimal.Zero
	if opp.CrossNetwork {
		if err := c.bridge(ctx, opp, d, bought, r); err != nil {
			return err
		}
		bridgeFee = bought.Mul(opp.SellPrice).Mul(d.BridgeFeePct)
		next = 2
	}

	if err := c.leg(ctx, opp, r, next, "swap on "+opp.SellVenue, func() (string, error) {
		return c.deps.DEX.Swap(ctx, opp.SellVenue, d.Base, d.Quote, bought, slippage)
	}); err != nil {
		return err
	}

	proceeds := bought.Mul(opp.SellPrice).Mul(one.Sub(d.SellFee))
	r.RealizedProfit = proceeds.Sub(notional).Sub(d.GasCostUSD).Sub(bridgeFee)
	return nil
}

// bridge submits the transfer and blocks until it lands or the bridge
// timeout elapses.
func (c *Coordinator) bridge(ctx context.Context, opp *domain.Opportunity, d domain.CrossDEXDetails, amount decimal.Decimal, r *domain.ExecutionResult) error {
	const idx = 1
	r.Leg = idx
	if c.deps.Bridges == nil {
		return domain.NewLegError(opp.Strategy, opp.ID, idx, "bridge", r.Refs(), apperror.Unavailable("bridge", nil))
	}

	receipt, err := c.deps.Bridges.Transfer(ctx, chainDomain.TransferRequest{
		Bridge:      opp.Bridge,
		Source:      opp.BuyNetwork,
		Destination: opp.SellNetwork,
		Token:       d.Base,
		Amount:      amount,
		Recipient:   c.config.Wallet,
	})
	if err == nil && (receipt == nil || receipt.TxRef == "") {
		err = errors.New("bridge returned no transaction reference")
	}
	if err != nil {
		return domain.NewLegError(opp.Strategy, opp.ID, idx, "bridge transfer", r.Refs(), err)
	}
	r.AddRef(receipt.TxRef)

	c.log.Info(ctx, "waiting for bridge", "id", opp.ID, "bridge", receipt.Bridge,
		"ref", receipt.TxRef, "estimated_minutes", receipt.EstimatedMinutes)
	if err := c.deps.Bridges.AwaitCompletion(ctx, receipt, c.config.BridgeTimeout); err != nil {
		return domain.NewLegError(opp.Strategy, opp.ID, idx, "bridge completion", r.Refs(), err)
	}
	return nil
}

type flashLoanCallback struct {
	OpportunityID uint64 `json:"opportunity_id"`
	BuyDEX        string `json:"buy_dex"`
	SellDEX       string `json:"sell_dex"`
	Base          string `json:"base"`
	Token         string `json:"token"`
}

func (c *Coordinator) runFlashLoan(ctx context.Context, opp *domain.Opportunity, d domain.FlashLoanDetails, notional decimal.Decimal, r *domain.ExecutionResult) error {
	if c.deps.FlashLoans == nil {
		return domain.NewLegError(opp.Strategy, opp.ID, 0, "flash loan", nil, apperror.Unavailable("flash-loan", nil))
	}
	callback, err := json.Marshal(flashLoanCallback{
		OpportunityID: opp.ID,
		BuyDEX:        opp.BuyVenue,
		SellDEX:       opp.SellVenue,
		Base:          d.Base,
		Token:         d.Token,
	})
	if err != nil {
		return domain.NewLegError(opp.Strategy, opp.ID, 0, "encode callback", nil, err)
	}

	if err := c.leg(ctx, opp, r, 0, "flash loan from "+d.Provider, func() (string, error) {
		return c.deps.FlashLoans.Execute(ctx, chainDomain.FlashLoanRequest{
			Provider:     d.Provider,
			Tokens:       []string{d.Token},
			Amounts:      []decimal.Decimal{notional},
			CallbackData: callback,
		})
	}); err != nil {
		return err
	}

	r.RealizedProfit = domain.ProfitOn(notional, opp.ProfitPct)
	return nil
}

func (c *Coordinator) runStatistical(ctx context.Context, opp *domain.Opportunity, d domain.StatisticalDetails, notional decimal.Decimal, r *domain.ExecutionResult) error {
	if c.deps.CEX == nil || c.deps.Positions == nil {
		return domain.NewLegError(opp.Strategy, opp.ID, 0, "no exchange adapter", nil, apperror.Unavailable("cex", nil))
	}
	pair, err := marketDomain.ParsePair(opp.Pair)
	if err != nil {
		return domain.NewLegError(opp.Strategy, opp.ID, 0, "bad pair", nil, err)
	}
	side := marketDomain.SideBuy
	if d.Side == domain.Short {
		side = marketDomain.SideSell
	}
	size := notional.Div(opp.BuyPrice)

	var ref string
	if err := c.leg(ctx, opp, r, 0, fmt.Sprintf("open %s on %s", d.Side, d.Venue), func() (string, error) {
		var err error
		ref, err = c.deps.CEX.PlaceMarketOrder(ctx, d.Venue, pair, side, size)
		return ref, err
	}); err != nil {
		return err
	}

	pos := c.deps.Positions.Open(domain.Position{
		OpportunityID: opp.ID,
		Venue:         d.Venue,
		Pair:          opp.Pair,
		Side:          d.Side,
		Size:          size,
		EntryPrice:    opp.BuyPrice,
		OpenRef:       ref,
	}, c.now())
	r.PositionID = pos.ID
	r.RealizedProfit = decimal.Zero
	return nil
}

// settle finalises the result, deactivates on success and informs the risk
// gate, stats and reporter. Opened statistical positions reach the gate only
// when they close.
func (c *Coordinator) settle(ctx context.Context, r *domain.ExecutionResult, opp *domain.Opportunity, err error) {
	r.CompletedAt = c.now()
	if err != nil {
		r.State = domain.ExecSettledFailure
		r.Success = false
		r.Error = err.Error()
		r.ErrorCode = string(apperror.GetCode(err))
		if !apperror.HasCode(err, apperror.CodeInvalidTradeSize) {
			c.deps.Gate.RecordResult(false, r.Notional, decimal.Zero)
		}
		c.log.Warn(ctx, "execution failed", "id", opp.ID, "strategy", opp.Strategy, "leg", r.Leg, "refs", r.Refs(), "error", err)
	} else {
		r.State = domain.ExecSettledSuccess
		r.Success = true
		if _, derr := c.deps.Store.Deactivate(ctx, opp.ID); derr != nil {
			c.log.Error(ctx, "deactivate after execution", "id", opp.ID, "error", derr)
		}
		if opp.Strategy != domain.StrategyStatistical {
			c.deps.Gate.RecordResult(true, r.Notional, r.RealizedProfit)
		}
		c.log.Info(ctx, "execution settled", "id", opp.ID, "strategy", opp.Strategy,
			"refs", r.Refs(), "realized", r.RealizedProfit.StringFixed(2))
	}

	c.metrics.recordExecution(ctx, r)
	c.metrics.recordBreaker(ctx, c.deps.Gate.State().Tripped)
	if c.deps.Stats != nil {
		c.deps.Stats.ObserveExecution(r)
	}
	if c.deps.Reporter != nil {
		c.deps.Reporter.ReportExecution(ctx, r)
	}
}

// ClosePosition takes the opposite side of an open statistical position at
// the current top of book and books the realized P/L with the risk gate.
func (c *Coordinator) ClosePosition(ctx context.Context, id string) (domain.Position, error) {
	ctx, span := c.tracer.Start(ctx, "arbitrage.close_position",
		trace.WithAttributes(attribute.String("position.id", id)),
	)
	defer span.End()

	if c.deps.Positions == nil || c.deps.CEX == nil {
		return domain.Position{}, apperror.NotFound(apperror.CodePositionNotFound, id)
	}

	// The open check and the closing order form one critical section per
	// position; a concurrent close waits and then sees the position closed.
	unlock := c.positions.Lock(id)
	defer unlock()

	pos, err := c.deps.Positions.Get(id)
	if err != nil {
		return domain.Position{}, err
	}
	if !pos.Open {
		return domain.Position{}, apperror.Conflict(apperror.CodeInvalidState, "position "+id+" already closed")
	}

	pair, err := marketDomain.ParsePair(pos.Pair)
	if err != nil {
		return domain.Position{}, apperror.Validation(apperror.CodeInvalidFormat, pos.Pair)
	}
	ticker, err := c.deps.CEX.GetTicker(ctx, pos.Venue, pair)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ticker failed")
		return domain.Position{}, err
	}

	exit, side := ticker.Bid, marketDomain.SideSell
	if pos.Side == domain.Short {
		exit, side = ticker.Ask, marketDomain.SideBuy
	}
	ref, err := c.deps.CEX.PlaceMarketOrder(ctx, pos.Venue, pair, side, pos.Size)
	if err == nil && ref == "" {
		err = errors.New("venue returned no transaction reference")
	}
	if err != nil {
		legErr := domain.NewLegError(domain.StrategyStatistical, pos.OpportunityID, 1, "close position", []string{pos.OpenRef}, err)
		c.deps.Gate.RecordResult(false, pos.Notional(), decimal.Zero)
		span.RecordError(legErr)
		span.SetStatus(codes.Error, "close failed")
		return domain.Position{}, legErr
	}

	closed, err := c.deps.Positions.Close(id, exit, ref, c.now())
	if err != nil {
		return domain.Position{}, err
	}
	c.deps.Gate.RecordPnL(closed.RealizedProfit)
	if c.deps.Stats != nil {
		c.deps.Stats.ObserveRealized(closed.RealizedProfit)
	}
	c.log.Info(ctx, "position closed", "id", id, "side", closed.Side,
		"entry", closed.EntryPrice.String(), "exit", exit.String(), "realized", closed.RealizedProfit.StringFixed(2))
	span.SetStatus(codes.Ok, "")
	return closed, nil
}
