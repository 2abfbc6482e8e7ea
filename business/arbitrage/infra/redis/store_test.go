package redis

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/app"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, "test"), mr
}

func crossDEX(pct string) *domain.Opportunity {
	return &domain.Opportunity{
		Pair:         "ETH/USDT",
		BuyVenue:     "uni",
		SellVenue:    "camelot",
		BuyNetwork:   "ethereum",
		SellNetwork:  "arbitrum",
		BuyPrice:     decimal.RequireFromString("3000"),
		SellPrice:    decimal.RequireFromString("3060"),
		ProfitPct:    decimal.RequireFromString(pct),
		Strategy:     domain.StrategyCrossDEX,
		CrossNetwork: true,
		Bridge:       "canonical",
		Active:       true,
		Details: domain.CrossDEXDetails{
			Base:         "ETH",
			Quote:        "USDT",
			BuyFee:       decimal.RequireFromString("0.003"),
			SellFee:      decimal.RequireFromString("0.003"),
			BridgeFeePct: decimal.RequireFromString("0.001"),
		},
	}
}

func TestStore_AddAndGet(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	opp := crossDEX("1.4")
	id, err := s.Add(ctx, opp)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, id, opp.ID)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "canonical", got.Bridge)
	assert.True(t, got.Active)
	assert.True(t, got.ProfitPct.Equal(decimal.RequireFromString("1.4")))

	details, ok := got.Details.(domain.CrossDEXDetails)
	require.True(t, ok, "details type %T", got.Details)
	assert.True(t, details.BridgeFeePct.Equal(decimal.RequireFromString("0.001")))

	assert.True(t, mr.Exists("test:opp:1"))
	members, err := mr.ZMembers("test:opp:active")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, members)
}

func TestStore_AddRejectsInvalid(t *testing.T) {
	s, mr := newTestStore(t)

	_, err := s.Add(context.Background(), crossDEX("-1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeNonPositiveProfit))
	assert.False(t, mr.Exists("test:opp:seq"))
}

func TestStore_GetByIDNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.GetByID(context.Background(), 7)
	assert.True(t, apperror.HasCode(err, apperror.CodeOpportunityNotFound))

	_, err = s.Deactivate(context.Background(), 7)
	assert.True(t, apperror.HasCode(err, apperror.CodeOpportunityNotFound))
}

func TestStore_Deactivate(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	id, err := s.Add(ctx, crossDEX("1"))
	require.NoError(t, err)

	got, err := s.Deactivate(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Active)

	again, err := s.Deactivate(ctx, id)
	require.NoError(t, err)
	assert.False(t, again.Active)

	stored, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	members, _ := mr.ZMembers("test:opp:active")
	assert.Empty(t, members)
}

func TestStore_ConcurrentDeactivate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id, err := s.Add(ctx, crossDEX("1"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Deactivate(ctx, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestStore_List(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, pct := range []string{"1.5", "3", "0.2", "3"} {
		_, err := s.Add(ctx, crossDEX(pct))
		require.NoError(t, err)
	}
	simple := &domain.Opportunity{
		Pair: "SOL/USDT", BuyVenue: "alpha", SellVenue: "beta",
		ProfitPct: decimal.RequireFromString("2"), Strategy: domain.StrategySimple, Active: true,
		Details: domain.SimpleDetails{Base: "SOL", Quote: "USDT"},
	}
	_, err := s.Add(ctx, simple)
	require.NoError(t, err)

	all, err := s.List(ctx, decimal.Zero, "")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 4, 5, 1, 3}, ids(all))

	above, err := s.List(ctx, decimal.RequireFromString("1.5"), "")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 4, 5, 1}, ids(above))

	onlyCross, err := s.List(ctx, decimal.Zero, domain.StrategyCrossDEX)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 4, 1, 3}, ids(onlyCross))

	none, err := s.List(ctx, decimal.RequireFromString("10"), "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_ExpireBefore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := crossDEX("1")
	old.CreatedAt = now.Add(-time.Hour)
	oldID, err := s.Add(ctx, old)
	require.NoError(t, err)
	freshID, err := s.Add(ctx, crossDEX("1"))
	require.NoError(t, err)

	n, err := s.ExpireBefore(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetByID(ctx, oldID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	list, err := s.List(ctx, decimal.Zero, "")
	require.NoError(t, err)
	assert.Equal(t, []uint64{freshID}, ids(list))
}

func TestPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, "events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewPublisher(rdb, "events", logger.New(io.Discard, logger.LevelError, "test", nil))
	opp := crossDEX("1.2")
	opp.ID = 9
	p.ReportOpportunity(ctx, opp)
	p.ReportCycle(ctx, app.CycleReport{Stored: 1, Found: map[domain.Strategy]int{domain.StrategyCrossDEX: 1}})

	ch := sub.Channel()
	var kinds []string
	for range 2 {
		select {
		case msg := <-ch:
			var ev Event
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
			kinds = append(kinds, ev.Type)
			if ev.Type == EventOpportunity {
				var got domain.Opportunity
				require.NoError(t, json.Unmarshal(ev.Data, &got))
				assert.Equal(t, uint64(9), got.ID)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, []string{EventOpportunity, EventCycle}, kinds)
}

func ids(opps []*domain.Opportunity) []uint64 {
	out := make([]uint64, 0, len(opps))
	for _, o := range opps {
		out = append(out, o.ID)
	}
	return out
}
