package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	chainDomain "github.com/fd1az/arbitrage-engine/business/chain/domain"
	marketDomain "github.com/fd1az/arbitrage-engine/business/market/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ticker(venue, pair, bid, ask string) *marketDomain.Ticker {
	return &marketDomain.Ticker{
		Venue:     venue,
		Pair:      marketDomain.MustParsePair(pair),
		Bid:       dec(bid),
		Ask:       dec(ask),
		Timestamp: time.Now(),
	}
}

func pool(network, dex, pair, reserve0, reserve1, fee string) *marketDomain.Pool {
	return &marketDomain.Pool{
		Network:  network,
		DEX:      dex,
		Pair:     marketDomain.MustParsePair(pair),
		Reserve0: dec(reserve0),
		Reserve1: dec(reserve1),
		Fee:      dec(fee),
	}
}

type order struct {
	venue  string
	pair   string
	side   marketDomain.Side
	amount decimal.Decimal
}

type fakeCEX struct {
	mu         sync.Mutex
	venues     []string
	tickers    map[string][]*marketDomain.Ticker
	status     map[string]marketDomain.CEXStatus
	tickerErr  map[string]error
	balance    decimal.Decimal
	balanceErr error
	failOrder  int // 1-based index of the order to reject, 0 for none
	orderDelay time.Duration
	orders     []order
	calls      int
}

func newFakeCEX(tickers ...*marketDomain.Ticker) *fakeCEX {
	f := &fakeCEX{
		tickers:   make(map[string][]*marketDomain.Ticker),
		status:    make(map[string]marketDomain.CEXStatus),
		tickerErr: make(map[string]error),
		balance:   dec("50000"),
	}
	for _, t := range tickers {
		if _, ok := f.tickers[t.Venue]; !ok {
			f.venues = append(f.venues, t.Venue)
		}
		f.tickers[t.Venue] = append(f.tickers[t.Venue], t)
	}
	return f
}

func (f *fakeCEX) Venues() []string { return f.venues }

func (f *fakeCEX) Pairs(venue string) []marketDomain.Pair {
	var out []marketDomain.Pair
	for _, t := range f.tickers[venue] {
		out = append(out, t.Pair)
	}
	return out
}

func (f *fakeCEX) GetTicker(_ context.Context, venue string, pair marketDomain.Pair) (*marketDomain.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.tickerErr[venue]; err != nil {
		return nil, err
	}
	for _, t := range f.tickers[venue] {
		if t.Pair == pair {
			c := *t
			return &c, nil
		}
	}
	return nil, apperror.NotFound(apperror.CodeNotFound, pair.String())
}

func (f *fakeCEX) GetStatus(_ context.Context, venue string) marketDomain.CEXStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if s, ok := f.status[venue]; ok {
		return s
	}
	return marketDomain.CEXOnline
}

func (f *fakeCEX) PlaceMarketOrder(_ context.Context, venue string, pair marketDomain.Pair, side marketDomain.Side, amount decimal.Decimal) (string, error) {
	time.Sleep(f.orderDelay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.orders = append(f.orders, order{venue: venue, pair: pair.String(), side: side, amount: amount})
	if f.failOrder == len(f.orders) {
		return "", apperror.External(apperror.CodeOrderRejected, venue, errors.New("rejected"))
	}
	return fmt.Sprintf("%s-%d", venue, len(f.orders)), nil
}

func (f *fakeCEX) GetBalance(context.Context, string, string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.balance, f.balanceErr
}

func (f *fakeCEX) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeCEX) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type swap struct {
	dex, in, out string
	amount       decimal.Decimal
}

type fakeDEX struct {
	mu      sync.Mutex
	dexes   []marketDomain.DEXVenue
	pools   map[string][]*marketDomain.Pool
	status  map[string]marketDomain.DEXStatus
	balance decimal.Decimal
	swaps   []swap
}

func newFakeDEX(pools ...*marketDomain.Pool) *fakeDEX {
	f := &fakeDEX{
		pools:   make(map[string][]*marketDomain.Pool),
		status:  make(map[string]marketDomain.DEXStatus),
		balance: dec("50000"),
	}
	for _, p := range pools {
		v := marketDomain.DEXVenue{Network: p.Network, Name: p.DEX}
		if _, ok := f.pools[v.String()]; !ok {
			f.dexes = append(f.dexes, v)
		}
		f.pools[v.String()] = append(f.pools[v.String()], p)
	}
	return f
}

func (f *fakeDEX) DEXes() []marketDomain.DEXVenue { return f.dexes }

func (f *fakeDEX) Pairs(network, dex string) []marketDomain.Pair {
	var out []marketDomain.Pair
	for _, p := range f.pools[marketDomain.DEXVenue{Network: network, Name: dex}.String()] {
		out = append(out, p.Pair)
	}
	return out
}

func (f *fakeDEX) GetPool(_ context.Context, network, dex string, pair marketDomain.Pair) (*marketDomain.Pool, error) {
	for _, p := range f.pools[marketDomain.DEXVenue{Network: network, Name: dex}.String()] {
		if p.Pair == pair {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeDEX) GetStatus(_ context.Context, network, dex string) marketDomain.DEXStatus {
	if s, ok := f.status[marketDomain.DEXVenue{Network: network, Name: dex}.String()]; ok {
		return s
	}
	return marketDomain.DEXOnline
}

func (f *fakeDEX) Swap(_ context.Context, dex, tokenIn, tokenOut string, amountIn, _ decimal.Decimal) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swaps = append(f.swaps, swap{dex: dex, in: tokenIn, out: tokenOut, amount: amountIn})
	return fmt.Sprintf("0xswap%d", len(f.swaps)), nil
}

func (f *fakeDEX) GetTokenBalance(context.Context, string, string, string) (decimal.Decimal, error) {
	return f.balance, nil
}

type fakeGas map[string]chainDomain.GasSnapshot

func (f fakeGas) LatestGasPrice(_ context.Context, network string) (chainDomain.GasSnapshot, error) {
	s, ok := f[network]
	if !ok {
		return chainDomain.GasSnapshot{}, apperror.NotFound(apperror.CodeVenueNotConfigured, network)
	}
	return s, nil
}

type fakeBridges struct {
	records   []chainDomain.BridgeRecord
	transfers []chainDomain.TransferRequest
	awaitErr  error
}

func (f *fakeBridges) FindBridges(src, dst string) []chainDomain.BridgeRecord {
	var out []chainDomain.BridgeRecord
	for _, b := range f.records {
		if b.Serves(src, dst) {
			out = append(out, b)
		}
	}
	return out
}

func (f *fakeBridges) ListBridges(src, dst string) []chainDomain.BridgeRecord {
	return f.FindBridges(src, dst)
}

func (f *fakeBridges) Transfer(_ context.Context, req chainDomain.TransferRequest) (*chainDomain.TransferReceipt, error) {
	f.transfers = append(f.transfers, req)
	return &chainDomain.TransferReceipt{TxRef: "0xbridge", Bridge: req.Bridge, Source: req.Source, EstimatedMinutes: 15}, nil
}

func (f *fakeBridges) AwaitCompletion(context.Context, *chainDomain.TransferReceipt, time.Duration) error {
	return f.awaitErr
}

type fakeFlash struct {
	providers []chainDomain.FlashLoanProvider
	requests  []chainDomain.FlashLoanRequest
}

func (f *fakeFlash) ProvidersForNetwork(network string) []chainDomain.FlashLoanProvider {
	var out []chainDomain.FlashLoanProvider
	for _, p := range f.providers {
		if p.Network == network {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeFlash) Execute(_ context.Context, req chainDomain.FlashLoanRequest) (string, error) {
	f.requests = append(f.requests, req)
	return "0xflash", nil
}

type fakeStore struct {
	mu    sync.Mutex
	next  uint64
	items map[uint64]*domain.Opportunity
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[uint64]*domain.Opportunity)}
}

func (s *fakeStore) Add(_ context.Context, opp *domain.Opportunity) (uint64, error) {
	if err := opp.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	c := opp.Clone()
	c.ID = s.next
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.items[c.ID] = c
	return c.ID, nil
}

func (s *fakeStore) GetByID(_ context.Context, id uint64) (*domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.items[id]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeOpportunityNotFound, fmt.Sprint(id))
	}
	return o.Clone(), nil
}

func (s *fakeStore) Deactivate(_ context.Context, id uint64) (*domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.items[id]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeOpportunityNotFound, fmt.Sprint(id))
	}
	o.Active = false
	return o.Clone(), nil
}

func (s *fakeStore) List(_ context.Context, minProfit decimal.Decimal, strategy domain.Strategy) ([]*domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Opportunity
	for _, o := range s.items {
		if o.Active && !o.ProfitPct.LessThan(minProfit) && (strategy == "" || o.Strategy == strategy) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ExpireBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.items {
		if o.Active && o.CreatedAt.Before(cutoff) {
			o.Active = false
			n++
		}
	}
	return n, nil
}

type fakeReporter struct {
	mu         sync.Mutex
	opps       []*domain.Opportunity
	cycles     []CycleReport
	executions []*domain.ExecutionResult
}

func (r *fakeReporter) Start(context.Context) error { return nil }
func (r *fakeReporter) Stop() error                 { return nil }

func (r *fakeReporter) ReportOpportunity(_ context.Context, opp *domain.Opportunity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opps = append(r.opps, opp)
}

func (r *fakeReporter) ReportCycle(_ context.Context, report CycleReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles = append(r.cycles, report)
}

func (r *fakeReporter) ReportExecution(_ context.Context, res *domain.ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions = append(r.executions, res)
}

func testSettings() DetectorSettings {
	return DetectorSettings{
		Risk:            RiskTable{Default: domain.RiskMedium, Pairs: map[string]domain.RiskTier{"BTC/USDT": domain.RiskLow}},
		MaxPosition:     dec("10000"),
		VolumeShare:     dec("0.01"),
		SlippageDecay:   dec("0.02"),
		TriangularStart: dec("1000"),
		PoolShare:       dec("0.05"),
		BridgeFeePct:    dec("0.001"),
		FlashLoanShare:  dec("0.5"),
		FlashLoanCap:    dec("1000000"),
		ZScoreThreshold: dec("1.5"),
		ZScoreWindow:    4,
		StatBaseSize:    dec("1000"),
		StatMaxScale:    dec("3"),
		NetworkOrder:    []string{"ethereum", "arbitrum"},
	}
}

func testLimits() RiskLimits {
	return RiskLimits{
		MaxConsecutiveLosses: 3,
		DailyLossLimit:       dec("1000"),
		LiquidityMultiple:    dec("2"),
		ResetPeriod:          24 * time.Hour,
	}
}

func testSizing() SizingLimits {
	return SizingLimits{
		MaxPosition:     dec("10000"),
		MinPosition:     dec("100"),
		FallbackBalance: dec("1000"),
		Factors: map[domain.Strategy]decimal.Decimal{
			domain.StrategySimple:      dec("1"),
			domain.StrategyTriangular:  dec("0.8"),
			domain.StrategyCrossDEX:    dec("0.7"),
			domain.StrategyFlashLoan:   dec("0.5"),
			domain.StrategyStatistical: dec("0.6"),
		},
		Wallet: "0x000000000000000000000000000000000000dEaD",
	}
}

func viewWith(tickers []*marketDomain.Ticker, pools []*marketDomain.Pool) *MarketView {
	v := NewMarketView(time.Now())
	for _, t := range tickers {
		v.CEXStatus[t.Venue] = marketDomain.CEXOnline
		v.AddTicker(t)
	}
	for _, p := range pools {
		v.DEXStatus[poolVenue(p)] = marketDomain.DEXOnline
		v.AddPool(p)
	}
	return v
}
