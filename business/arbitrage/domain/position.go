package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an open statistical trade awaiting its closing leg.
type Position struct {
	ID             string          `json:"id"`
	OpportunityID  uint64          `json:"opportunity_id"`
	Venue          string          `json:"venue"`
	Pair           string          `json:"pair"`
	Side           PositionSide    `json:"side"`
	Size           decimal.Decimal `json:"size"` // base units
	EntryPrice     decimal.Decimal `json:"entry_price"`
	ExitPrice      decimal.Decimal `json:"exit_price"`
	RealizedProfit decimal.Decimal `json:"realized_profit"`
	OpenRef        string          `json:"open_ref"`
	CloseRef       string          `json:"close_ref,omitempty"`
	Open           bool            `json:"open"`
	OpenedAt       time.Time       `json:"opened_at"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
}

// Notional is the entry value of the position in quote currency.
func (p *Position) Notional() decimal.Decimal {
	return p.Size.Mul(p.EntryPrice)
}

// PnL is (exit-entry) x size, signed by side.
func (p *Position) PnL(exit decimal.Decimal) decimal.Decimal {
	return exit.Sub(p.EntryPrice).Mul(p.Size).Mul(p.Side.Sign())
}
