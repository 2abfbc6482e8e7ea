package app

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	chainApp "github.com/fd1az/arbitrage-engine/business/chain/app"
	chainDomain "github.com/fd1az/arbitrage-engine/business/chain/domain"
	marketApp "github.com/fd1az/arbitrage-engine/business/market/app"
	marketDomain "github.com/fd1az/arbitrage-engine/business/market/domain"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

// MarketView is the snapshot one scan cycle works from. Slices keep adapter
// listing order so detectors break ties deterministically.
type MarketView struct {
	Timestamp time.Time

	Pairs   []string
	Tickers map[string][]*marketDomain.Ticker

	PoolPairs []string
	Pools     map[string][]*marketDomain.Pool

	Gas       map[string]chainDomain.GasSnapshot
	CEXStatus map[string]marketDomain.CEXStatus
	DEXStatus map[string]marketDomain.DEXStatus
}

// NewMarketView returns an empty view stamped at ts.
func NewMarketView(ts time.Time) *MarketView {
	return &MarketView{
		Timestamp: ts,
		Tickers:   make(map[string][]*marketDomain.Ticker),
		Pools:     make(map[string][]*marketDomain.Pool),
		Gas:       make(map[string]chainDomain.GasSnapshot),
		CEXStatus: make(map[string]marketDomain.CEXStatus),
		DEXStatus: make(map[string]marketDomain.DEXStatus),
	}
}

// AddTicker appends t under its pair.
func (v *MarketView) AddTicker(t *marketDomain.Ticker) {
	key := t.Pair.String()
	if _, ok := v.Tickers[key]; !ok {
		v.Pairs = append(v.Pairs, key)
	}
	v.Tickers[key] = append(v.Tickers[key], t)
}

// AddPool appends p under its pair.
func (v *MarketView) AddPool(p *marketDomain.Pool) {
	key := p.Pair.String()
	if _, ok := v.Pools[key]; !ok {
		v.PoolPairs = append(v.PoolPairs, key)
	}
	v.Pools[key] = append(v.Pools[key], p)
}

// Ticker returns the quote of pair on venue.
func (v *MarketView) Ticker(venue string, pair marketDomain.Pair) (*marketDomain.Ticker, bool) {
	for _, t := range v.Tickers[pair.String()] {
		if t.Venue == venue {
			return t, true
		}
	}
	return nil, false
}

// Pool returns the pool of pair on the DEX deployment named by venue
// ("dex@network").
func (v *MarketView) Pool(venue string, pair marketDomain.Pair) (*marketDomain.Pool, bool) {
	for _, p := range v.Pools[pair.String()] {
		if poolVenue(p) == venue {
			return p, true
		}
	}
	return nil, false
}

// Unhealthy lists venues that were skipped this cycle, sorted.
func (v *MarketView) Unhealthy() []string {
	var out []string
	for name, s := range v.CEXStatus {
		if !s.Usable() {
			out = append(out, name)
		}
	}
	for name, s := range v.DEXStatus {
		if !s.Usable() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// VenueCount is the number of venues polled.
func (v *MarketView) VenueCount() int {
	return len(v.CEXStatus) + len(v.DEXStatus)
}

func poolVenue(p *marketDomain.Pool) string {
	return marketDomain.DEXVenue{Network: p.Network, Name: p.DEX}.String()
}

// CollectorConfig bounds the snapshot fan-out.
type CollectorConfig struct {
	Networks     []string
	FetchTimeout time.Duration
	Concurrency  int
}

// SnapshotCollector builds a MarketView by querying every venue concurrently.
// A failing venue is logged and left out of the view.
type SnapshotCollector struct {
	cex    marketApp.CEXAdapter
	dex    marketApp.DEXAdapter
	gas    chainApp.GasOracle
	config CollectorConfig
	log    logger.LoggerInterface
	now    func() time.Time
}

// NewSnapshotCollector creates a SnapshotCollector.
func NewSnapshotCollector(
	cex marketApp.CEXAdapter,
	dex marketApp.DEXAdapter,
	gas chainApp.GasOracle,
	config CollectorConfig,
	log logger.LoggerInterface,
) *SnapshotCollector {
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 5 * time.Second
	}
	return &SnapshotCollector{
		cex:    cex,
		dex:    dex,
		gas:    gas,
		config: config,
		log:    log,
		now:    time.Now,
	}
}

// Collect refreshes gas, then venue status, then quotes from usable venues.
func (c *SnapshotCollector) Collect(ctx context.Context) (*MarketView, error) {
	view := NewMarketView(c.now())

	c.collectGas(ctx, view)
	c.collectStatus(ctx, view)
	c.collectQuotes(ctx, view)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return view, nil
}

func (c *SnapshotCollector) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	return g, gctx
}

func (c *SnapshotCollector) collectGas(ctx context.Context, view *MarketView) {
	snaps := make([]*chainDomain.GasSnapshot, len(c.config.Networks))
	g, gctx := c.group(ctx)
	for i, network := range c.config.Networks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, c.config.FetchTimeout)
			defer cancel()
			snap, err := c.gas.LatestGasPrice(cctx, network)
			if err != nil {
				c.log.Warn(ctx, "gas refresh failed", "network", network, "error", err)
				return nil
			}
			snaps[i] = &snap
			return nil
		})
	}
	_ = g.Wait()

	for i, network := range c.config.Networks {
		if snaps[i] != nil {
			view.Gas[network] = *snaps[i]
		}
	}
}

func (c *SnapshotCollector) collectStatus(ctx context.Context, view *MarketView) {
	venues := c.cex.Venues()
	dexes := c.dex.DEXes()
	cexStatus := make([]marketDomain.CEXStatus, len(venues))
	dexStatus := make([]marketDomain.DEXStatus, len(dexes))

	g, gctx := c.group(ctx)
	for i, venue := range venues {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, c.config.FetchTimeout)
			defer cancel()
			cexStatus[i] = c.cex.GetStatus(cctx, venue)
			return nil
		})
	}
	for i, d := range dexes {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, c.config.FetchTimeout)
			defer cancel()
			dexStatus[i] = c.dex.GetStatus(cctx, d.Network, d.Name)
			return nil
		})
	}
	_ = g.Wait()

	for i, venue := range venues {
		view.CEXStatus[venue] = cexStatus[i]
		if !cexStatus[i].Usable() {
			c.log.Warn(ctx, "skipping venue", "venue", venue, "status", cexStatus[i])
		}
	}
	for i, d := range dexes {
		view.DEXStatus[d.String()] = dexStatus[i]
		if !dexStatus[i].Usable() {
			c.log.Warn(ctx, "skipping venue", "venue", d.String(), "status", dexStatus[i])
		}
	}
}

type tickerTask struct {
	venue string
	pair  marketDomain.Pair
}

type poolTask struct {
	dex  marketDomain.DEXVenue
	pair marketDomain.Pair
}

func (c *SnapshotCollector) collectQuotes(ctx context.Context, view *MarketView) {
	var tickerTasks []tickerTask
	for _, venue := range c.cex.Venues() {
		if !view.CEXStatus[venue].Usable() {
			continue
		}
		for _, pair := range c.cex.Pairs(venue) {
			tickerTasks = append(tickerTasks, tickerTask{venue: venue, pair: pair})
		}
	}
	var poolTasks []poolTask
	for _, d := range c.dex.DEXes() {
		if !view.DEXStatus[d.String()].Usable() {
			continue
		}
		for _, pair := range c.dex.Pairs(d.Network, d.Name) {
			poolTasks = append(poolTasks, poolTask{dex: d, pair: pair})
		}
	}

	tickers := make([]*marketDomain.Ticker, len(tickerTasks))
	pools := make([]*marketDomain.Pool, len(poolTasks))

	g, gctx := c.group(ctx)
	for i, task := range tickerTasks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, c.config.FetchTimeout)
			defer cancel()
			t, err := c.cex.GetTicker(cctx, task.venue, task.pair)
			if err != nil {
				c.log.Warn(ctx, "ticker fetch failed", "venue", task.venue, "pair", task.pair.String(), "error", err)
				return nil
			}
			if !t.Valid() {
				c.log.Debug(ctx, "discarding invalid ticker", "venue", task.venue, "pair", task.pair.String())
				return nil
			}
			tickers[i] = t
			return nil
		})
	}
	for i, task := range poolTasks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, c.config.FetchTimeout)
			defer cancel()
			p, err := c.dex.GetPool(cctx, task.dex.Network, task.dex.Name, task.pair)
			if err != nil {
				c.log.Warn(ctx, "pool fetch failed", "venue", task.dex.String(), "pair", task.pair.String(), "error", err)
				return nil
			}
			if p == nil || !p.Price().IsPositive() {
				return nil
			}
			pools[i] = p
			return nil
		})
	}
	_ = g.Wait()

	for _, t := range tickers {
		if t != nil {
			view.AddTicker(t)
		}
	}
	for _, p := range pools {
		if p != nil {
			view.AddPool(p)
		}
	}
}
