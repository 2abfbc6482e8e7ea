// Package domain contains the market data types shared by venue adapters and
// the arbitrage engine.
package domain

import (
	"fmt"
	"strings"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the closing side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Pair is a trading pair, e.g. BTC/USDT. Base is the asset being priced and
// Quote the asset prices are expressed in.
type Pair struct {
	Base  string
	Quote string
}

// NewPair creates a pair with upper-cased symbols.
func NewPair(base, quote string) Pair {
	return Pair{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}
}

// ParsePair parses "BTC/USDT" (or "BTC-USDT").
func ParsePair(s string) (Pair, error) {
	sep := "/"
	if !strings.Contains(s, sep) {
		sep = "-"
	}
	parts := strings.Split(strings.TrimSpace(s), sep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("invalid pair %q", s)
	}
	return NewPair(parts[0], parts[1]), nil
}

// MustParsePair is ParsePair for static inputs; it panics on error.
func MustParsePair(s string) Pair {
	p, err := ParsePair(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns e.g. "BTC/USDT".
func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// Symbol returns the exchange symbol, e.g. "BTCUSDT".
func (p Pair) Symbol() string {
	return p.Base + p.Quote
}

// Inverse swaps base and quote.
func (p Pair) Inverse() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}

func (p Pair) IsZero() bool { return p.Base == "" && p.Quote == "" }
