// Package memory provides the in-process opportunity store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

// Store keeps every opportunity in a map guarded by a RWMutex. Records are
// copied in and out so callers never share state with the store.
type Store struct {
	mu     sync.RWMutex
	nextID uint64
	items  map[uint64]*domain.Opportunity
	now    func() time.Time
}

// NewStore creates an empty Store. Ids start at 1.
func NewStore() *Store {
	return &Store{items: make(map[uint64]*domain.Opportunity), now: time.Now}
}

func (s *Store) Add(_ context.Context, opp *domain.Opportunity) (uint64, error) {
	if err := opp.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	c := opp.Clone()
	c.ID = s.nextID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.items[c.ID] = c
	opp.ID, opp.CreatedAt = c.ID, c.CreatedAt
	return c.ID, nil
}

func (s *Store) GetByID(_ context.Context, id uint64) (*domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.items[id]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeOpportunityNotFound, fmt.Sprintf("opportunity %d", id))
	}
	return o.Clone(), nil
}

func (s *Store) Deactivate(_ context.Context, id uint64) (*domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.items[id]
	if !ok {
		return nil, apperror.NotFound(apperror.CodeOpportunityNotFound, fmt.Sprintf("opportunity %d", id))
	}
	o.Active = false
	return o.Clone(), nil
}

func (s *Store) List(_ context.Context, minProfit decimal.Decimal, strategy domain.Strategy) ([]*domain.Opportunity, error) {
	s.mu.RLock()
	out := make([]*domain.Opportunity, 0, len(s.items))
	for _, o := range s.items {
		if !o.Active || o.ProfitPct.LessThan(minProfit) {
			continue
		}
		if strategy != "" && o.Strategy != strategy {
			continue
		}
		out = append(out, o.Clone())
	}
	s.mu.RUnlock()

	domain.SortByProfit(out)
	return out, nil
}

func (s *Store) ExpireBefore(_ context.Context, cutoff time.Time) (int, error) {
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

// Len is the number of records held, active or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
