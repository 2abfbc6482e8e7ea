// Package paper provides simulated CEX and DEX venues driven by a seeded
// random walk. They back dry-run deployments and local runs.
package paper

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/market/domain"
	"github.com/fd1az/arbitrage-engine/internal/config"
)

const (
	stepInterval = time.Second
	maxSteps     = 600
)

// Market holds the reference prices every paper venue quotes around. Prices
// advance one random-walk step per elapsed second, so venues read in the same
// cycle see the same reference.
type Market struct {
	mu         sync.Mutex
	rng        *rand.Rand
	volatility float64
	prices     map[domain.Pair]float64
	last       time.Time
	now        func() time.Time
}

// NewMarket seeds the walk from the paper config.
func NewMarket(cfg config.PaperConfig) (*Market, error) {
	m := &Market{
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		volatility: cfg.Volatility,
		prices:     make(map[domain.Pair]float64, len(cfg.Prices)),
		now:        time.Now,
	}
	for _, p := range cfg.Prices {
		pair, err := domain.ParsePair(p.Pair)
		if err != nil {
			return nil, err
		}
		if p.Price <= 0 {
			return nil, fmt.Errorf("paper price for %s must be positive", p.Pair)
		}
		m.prices[pair] = p.Price
	}
	m.last = m.now()
	return m, nil
}

// Price advances the walk to now and returns the pair's reference price. The
// inverse of a configured pair is derived.
func (m *Market) Price(pair domain.Pair) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advance()

	if p, ok := m.prices[pair]; ok {
		return decimal.NewFromFloat(p), true
	}
	if p, ok := m.prices[pair.Inverse()]; ok {
		return decimal.NewFromInt(1).Div(decimal.NewFromFloat(p)), true
	}
	return decimal.Zero, false
}

// Reference returns the configured price without advancing the walk.
func (m *Market) Reference(pair domain.Pair) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prices[pair]
	return decimal.NewFromFloat(p), ok
}

// Noise returns a deterministic value in [0, 1).
func (m *Market) Noise() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64()
}

func (m *Market) advance() {
	now := m.now()
	steps := int(now.Sub(m.last) / stepInterval)
	if steps <= 0 {
		return
	}
	m.last = m.last.Add(time.Duration(steps) * stepInterval)
	if steps > maxSteps {
		steps = maxSteps
	}
	if m.volatility == 0 {
		return
	}
	// map iteration order is random; walk pairs in a fixed order
	for _, pair := range m.sortedPairs() {
		p := m.prices[pair]
		for i := 0; i < steps; i++ {
			p *= 1 + m.volatility*m.rng.NormFloat64()
			if p <= 0 {
				p = m.prices[pair]
			}
		}
		m.prices[pair] = p
	}
}

func (m *Market) sortedPairs() []domain.Pair {
	pairs := make([]domain.Pair, 0, len(m.prices))
	for p := range m.prices {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })
	return pairs
}
