package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Ticker is the top of book of a centralized venue.
type Ticker struct {
	Venue     string
	Pair      Pair
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Last      decimal.Decimal
	Volume    decimal.Decimal
	Timestamp time.Time
}

// Mid returns (bid+ask)/2.
func (t *Ticker) Mid() decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(two)
}

// Valid reports whether both sides of the book are quoted and not crossed.
func (t *Ticker) Valid() bool {
	return t.Bid.IsPositive() && t.Ask.IsPositive() && t.Bid.LessThanOrEqual(t.Ask)
}

// Age returns how old the quote is relative to now.
func (t *Ticker) Age(now time.Time) time.Duration {
	return now.Sub(t.Timestamp)
}
