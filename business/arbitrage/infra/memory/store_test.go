package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

func opportunity(strategy domain.Strategy, pct string) *domain.Opportunity {
	o := &domain.Opportunity{
		Pair:      "ETH/USDT",
		BuyVenue:  "alpha",
		SellVenue: "beta",
		BuyPrice:  decimal.RequireFromString("100"),
		SellPrice: decimal.RequireFromString("101"),
		ProfitPct: decimal.RequireFromString(pct),
		Strategy:  strategy,
		Active:    true,
	}
	if strategy == domain.StrategySimple {
		o.Details = domain.SimpleDetails{Base: "ETH", Quote: "USDT"}
	}
	return o
}

func TestStore_AddAssignsSequentialIDs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		opp := opportunity(domain.StrategySimple, "1")
		id, err := s.Add(ctx, opp)
		require.NoError(t, err)
		assert.Equal(t, want, id)
		assert.Equal(t, want, opp.ID)
		assert.False(t, opp.CreatedAt.IsZero())
	}
	assert.Equal(t, 3, s.Len())
}

func TestStore_AddRejectsInvalid(t *testing.T) {
	s := NewStore()
	_, err := s.Add(context.Background(), opportunity(domain.StrategySimple, "0"))
	assert.True(t, apperror.HasCode(err, apperror.CodeNonPositiveProfit))
	assert.Equal(t, 0, s.Len())
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	opp := opportunity(domain.StrategySimple, "1")
	id, err := s.Add(ctx, opp)
	require.NoError(t, err)
	opp.Pair = "mutated"

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", got.Pair)

	got.Active = false
	again, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, again.Active)
}

func TestStore_NotFound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.GetByID(ctx, 99)
	assert.True(t, apperror.HasCode(err, apperror.CodeOpportunityNotFound))
	_, err = s.Deactivate(ctx, 99)
	assert.True(t, apperror.HasCode(err, apperror.CodeOpportunityNotFound))
}

func TestStore_DeactivateIsIdempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	id, err := s.Add(ctx, opportunity(domain.StrategySimple, "1"))
	require.NoError(t, err)

	for range 2 {
		got, err := s.Deactivate(ctx, id)
		require.NoError(t, err)
		assert.False(t, got.Active)
	}

	list, err := s.List(ctx, decimal.Zero, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_ListFiltersAndOrders(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	inputs := []struct {
		strategy domain.Strategy
		pct      string
	}{
		{domain.StrategySimple, "1.5"},
		{domain.StrategyCrossDEX, "3"},
		{domain.StrategySimple, "0.2"},
		{domain.StrategySimple, "3"},
		{domain.StrategyFlashLoan, "2"},
	}
	for _, in := range inputs {
		_, err := s.Add(ctx, opportunity(in.strategy, in.pct))
		require.NoError(t, err)
	}

	all, err := s.List(ctx, decimal.Zero, "")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 4, 5, 1, 3}, ids(all))

	above, err := s.List(ctx, decimal.RequireFromString("1.5"), "")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 4, 5, 1}, ids(above))

	simple, err := s.List(ctx, decimal.Zero, domain.StrategySimple)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 1, 3}, ids(simple))
}

func TestStore_ExpireBefore(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	old := opportunity(domain.StrategySimple, "1")
	old.CreatedAt = now.Add(-10 * time.Minute)
	_, err := s.Add(ctx, old)
	require.NoError(t, err)
	fresh, err := s.Add(ctx, opportunity(domain.StrategySimple, "1"))
	require.NoError(t, err)

	n, err := s.ExpireBefore(ctx, now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := s.List(ctx, decimal.Zero, "")
	require.NoError(t, err)
	assert.Equal(t, []uint64{fresh}, ids(list))

	n, err = s.ExpireBefore(ctx, now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_ConcurrentAdd(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	seen := make(chan uint64, 100)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.Add(ctx, opportunity(domain.StrategySimple, "1"))
			if err == nil {
				seen <- id
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint64]bool)
	for id := range seen {
		unique[id] = true
	}
	assert.Len(t, unique, 100)
}

func ids(opps []*domain.Opportunity) []uint64 {
	out := make([]uint64, 0, len(opps))
	for _, o := range opps {
		out = append(out, o.ID)
	}
	return out
}
