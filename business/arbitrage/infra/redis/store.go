// Package redis stores opportunities in Redis and publishes engine events
// over pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/config"
)

const maxTxRetries = 5

// Store keeps each opportunity as a JSON string. Two sorted sets index the
// active records: one by profit for listing, one by creation time for the
// staleness sweep. Deactivated records drop out of both.
type Store struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewClient opens a client from cfg and pings it.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// NewStore creates a Store. Keys are namespaced under prefix.
func NewStore(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "arb"
	}
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *Store) seqKey() string     { return s.prefix + ":opp:seq" }
func (s *Store) activeKey() string  { return s.prefix + ":opp:active" }
func (s *Store) createdKey() string { return s.prefix + ":opp:created" }

func (s *Store) oppKey(id uint64) string { return s.prefix + ":opp:" + member(id) }

func member(id uint64) string { return strconv.FormatUint(id, 10) }

func profitScore(o *domain.Opportunity) float64 { return o.ProfitPct.InexactFloat64() }

func (s *Store) Add(ctx context.Context, opp *domain.Opportunity) (uint64, error) {
	if err := opp.Validate(); err != nil {
		return 0, err
	}

	seq, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return 0, storeErr("allocate id", err)
	}
	id := uint64(seq)

	c := opp.Clone()
	c.ID = id
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return 0, apperror.Internal(apperror.CodeStoreFailure, "encode opportunity", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.oppKey(id), payload, 0)
		if c.Active {
			p.ZAdd(ctx, s.activeKey(), redis.Z{Score: profitScore(c), Member: member(id)})
			p.ZAdd(ctx, s.createdKey(), redis.Z{Score: float64(c.CreatedAt.UnixMilli()), Member: member(id)})
		}
		return nil
	})
	if err != nil {
		return 0, storeErr("write opportunity", err)
	}

	opp.ID, opp.CreatedAt = c.ID, c.CreatedAt
	return id, nil
}

func (s *Store) GetByID(ctx context.Context, id uint64) (*domain.Opportunity, error) {
	raw, err := s.rdb.Get(ctx, s.oppKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storeErr("read opportunity", err)
	}
	return decode(raw)
}

// Deactivate flips the active flag under WATCH so a concurrent writer
// cannot interleave between the read and the write.
func (s *Store) Deactivate(ctx context.Context, id uint64) (*domain.Opportunity, error) {
	key := s.oppKey(id)
	var out *domain.Opportunity

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return notFound(id)
		}
		if err != nil {
			return err
		}
		o, err := decode(raw)
		if err != nil {
			return err
		}
		if !o.Active {
			out = o
			return nil
		}

		o.Active = false
		payload, err := json.Marshal(o)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, 0)
			p.ZRem(ctx, s.activeKey(), member(id))
			p.ZRem(ctx, s.createdKey(), member(id))
			return nil
		})
		if err == nil {
			out = o
		}
		return err
	}

	for range maxTxRetries {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, storeErr("deactivate opportunity", err)
	}
	return nil, apperror.New(apperror.CodeStoreFailure,
		apperror.WithContext(fmt.Sprintf("deactivate opportunity %d: too much contention", id)))
}

// List reads the profit index from minProfit upwards. The float score only
// pre-filters; the exact decimal comparison and the id tie-break are redone
// on the decoded records.
func (s *Store) List(ctx context.Context, minProfit decimal.Decimal, strategy domain.Strategy) ([]*domain.Opportunity, error) {
	members, err := s.rdb.ZRevRangeByScore(ctx, s.activeKey(), &redis.ZRangeBy{
		Min: strconv.FormatFloat(minProfit.InexactFloat64()-1e-9, 'f', -1, 64),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, storeErr("list active", err)
	}
	if len(members) == 0 {
		return []*domain.Opportunity{}, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = s.prefix + ":opp:" + m
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storeErr("read opportunities", err)
	}

	out := make([]*domain.Opportunity, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		o, err := decode([]byte(str))
		if err != nil {
			return nil, err
		}
		if !o.Active || o.ProfitPct.LessThan(minProfit) {
			continue
		}
		if strategy != "" && o.Strategy != strategy {
			continue
		}
		out = append(out, o)
	}
	domain.SortByProfit(out)
	return out, nil
}

func (s *Store) ExpireBefore(ctx context.Context, cutoff time.Time) (int, error) {
	members, err := s.rdb.ZRangeByScore(ctx, s.createdKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, storeErr("scan created index", err)
	}

	n := 0
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		if _, err := s.Deactivate(ctx, id); err != nil {
			if apperror.HasCode(err, apperror.CodeOpportunityNotFound) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// Ping reports whether the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func decode(raw []byte) (*domain.Opportunity, error) {
	var o domain.Opportunity
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, apperror.Internal(apperror.CodeStoreFailure, "decode opportunity", err)
	}
	return &o, nil
}

func notFound(id uint64) error {
	return apperror.NotFound(apperror.CodeOpportunityNotFound, fmt.Sprintf("opportunity %d", id))
}

func storeErr(op string, err error) error {
	return apperror.Internal(apperror.CodeStoreFailure, "redis: "+op, err)
}
