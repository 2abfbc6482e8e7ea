package app

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

// PositionBook tracks statistical positions between their opening and
// closing legs.
type PositionBook struct {
	mu        sync.RWMutex
	positions map[string]*domain.Position
}

// NewPositionBook creates an empty PositionBook.
func NewPositionBook() *PositionBook {
	return &PositionBook{positions: make(map[string]*domain.Position)}
}

// Open records a new open position and returns a copy of it.
func (b *PositionBook) Open(p domain.Position, now time.Time) domain.Position {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Open = true
	p.OpenedAt = now

	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions[p.ID] = &p
	return p
}

// Get returns a copy of the position.
func (b *PositionBook) Get(id string) (domain.Position, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[id]
	if !ok {
		return domain.Position{}, apperror.NotFound(apperror.CodePositionNotFound, id)
	}
	return *p, nil
}

// Close marks the position closed at exit and returns the realized P/L.
func (b *PositionBook) Close(id string, exit decimal.Decimal, ref string, now time.Time) (domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[id]
	if !ok {
		return domain.Position{}, apperror.NotFound(apperror.CodePositionNotFound, id)
	}
	if !p.Open {
		return domain.Position{}, apperror.Conflict(apperror.CodeInvalidState, "position "+id+" already closed")
	}
	p.Open = false
	p.ExitPrice = exit
	p.RealizedProfit = p.PnL(exit)
	p.CloseRef = ref
	closed := now
	p.ClosedAt = &closed
	return *p, nil
}

// List returns every position, open ones first, each group by opening time.
func (b *PositionBook) List(openOnly bool) []domain.Position {
	b.mu.RLock()
	out := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		if openOnly && !p.Open {
			continue
		}
		out = append(out, *p)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Open != out[j].Open {
			return out[i].Open
		}
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.Before(out[j].OpenedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
