package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/internal/apperror"
)

// Opportunity is a detected price discrepancy. Records are created by the
// detectors and only ever change by deactivation.
type Opportunity struct {
	ID        uint64    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Pair          string    `json:"pair"`
	BuyVenue      string    `json:"buy_venue"`
	SellVenue     string    `json:"sell_venue"`
	BuyVenueType  VenueType `json:"buy_venue_type"`
	SellVenueType VenueType `json:"sell_venue_type"`
	BuyNetwork    string    `json:"buy_network,omitempty"`
	SellNetwork   string    `json:"sell_network,omitempty"`

	BuyPrice          decimal.Decimal `json:"buy_price"`
	SellPrice         decimal.Decimal `json:"sell_price"`
	ProfitPct         decimal.Decimal `json:"profit_pct"`
	Volume            decimal.Decimal `json:"volume"`
	EstimatedProfit   decimal.Decimal `json:"estimated_profit"`
	EstimatedCost     decimal.Decimal `json:"estimated_cost"`
	CompletionMinutes float64         `json:"completion_minutes"`

	Strategy     Strategy `json:"strategy"`
	Risk         RiskTier `json:"risk"`
	Route        string   `json:"route"`
	Bridge       string   `json:"bridge,omitempty"`
	CrossNetwork bool     `json:"cross_network"`
	Active       bool     `json:"active"`

	Details Details `json:"-"`
}

// Validate enforces the invariants every stored record holds.
func (o *Opportunity) Validate() error {
	if !o.Strategy.Valid() {
		return apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("unknown strategy %q", o.Strategy))
	}
	if o.Pair == "" {
		return apperror.Validation(apperror.CodeRequiredField, "pair")
	}
	if !o.ProfitPct.IsPositive() {
		return apperror.New(apperror.CodeNonPositiveProfit,
			apperror.WithContext(fmt.Sprintf("%s %s: %s%%", o.Strategy, o.Pair, o.ProfitPct)))
	}
	if o.Details != nil && o.Details.Strategy() != o.Strategy {
		return apperror.Validation(apperror.CodeInvalidState,
			fmt.Sprintf("details for %s attached to %s opportunity", o.Details.Strategy(), o.Strategy))
	}
	return nil
}

// Age is the time since detection.
func (o *Opportunity) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}

// Clone returns a copy safe to hand out of a store.
func (o *Opportunity) Clone() *Opportunity {
	c := *o
	return &c
}

// SortByProfit orders by profit descending, then id ascending.
func SortByProfit(opps []*Opportunity) {
	sort.Slice(opps, func(i, j int) bool {
		if c := opps[i].ProfitPct.Cmp(opps[j].ProfitPct); c != 0 {
			return c > 0
		}
		return opps[i].ID < opps[j].ID
	})
}

type opportunityAlias Opportunity

type opportunityJSON struct {
	*opportunityAlias
	Details *detailsEnvelope `json:"details,omitempty"`
}

// MarshalJSON wraps the strategy details in a {"kind","data"} envelope.
func (o Opportunity) MarshalJSON() ([]byte, error) {
	out := opportunityJSON{opportunityAlias: (*opportunityAlias)(&o)}
	if o.Details != nil {
		data, err := json.Marshal(o.Details)
		if err != nil {
			return nil, err
		}
		out.Details = &detailsEnvelope{Kind: o.Details.Strategy(), Data: data}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the details variant named by the envelope kind.
func (o *Opportunity) UnmarshalJSON(b []byte) error {
	in := opportunityJSON{opportunityAlias: (*opportunityAlias)(o)}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if in.Details == nil {
		o.Details = nil
		return nil
	}
	d, err := decodeDetails(in.Details.Kind, in.Details.Data)
	if err != nil {
		return err
	}
	o.Details = d
	return nil
}
