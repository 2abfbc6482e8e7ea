package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Details carries the strategy-specific part of an opportunity. Exactly one
// variant exists per Strategy.
type Details interface {
	Strategy() Strategy
}

type detailsEnvelope struct {
	Kind Strategy        `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// SimpleDetails is a buy on one exchange and a sell on another.
type SimpleDetails struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

func (SimpleDetails) Strategy() Strategy { return StrategySimple }

// Hop is one conversion of a triangular cycle. Rate converts From into To
// before slippage decay.
type Hop struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Pair string          `json:"pair"`
	Sell bool            `json:"sell"` // true when From is the pair's base
	Rate decimal.Decimal `json:"rate"`
}

// TriangularDetails is a three-hop cycle on a single venue.
type TriangularDetails struct {
	Venue       string          `json:"venue"`
	Hops        []Hop           `json:"hops"`
	StartAmount decimal.Decimal `json:"start_amount"`
	FinalAmount decimal.Decimal `json:"final_amount"`
	Decay       decimal.Decimal `json:"decay"`
}

func (TriangularDetails) Strategy() Strategy { return StrategyTriangular }

// StartAsset is the asset the cycle begins and ends in.
func (d TriangularDetails) StartAsset() string {
	if len(d.Hops) == 0 {
		return ""
	}
	return d.Hops[0].From
}

// CrossDEXDetails is a pool-to-pool trade, possibly across networks.
type CrossDEXDetails struct {
	Base             string          `json:"base"`
	Quote            string          `json:"quote"`
	BuyFee           decimal.Decimal `json:"buy_fee"`
	SellFee          decimal.Decimal `json:"sell_fee"`
	BuyLiquidityUSD  decimal.Decimal `json:"buy_liquidity_usd"`
	SellLiquidityUSD decimal.Decimal `json:"sell_liquidity_usd"`
	GasCostUSD       decimal.Decimal `json:"gas_cost_usd"`
	BridgeFeePct     decimal.Decimal `json:"bridge_fee_pct"`
}

func (CrossDEXDetails) Strategy() Strategy { return StrategyCrossDEX }

// MinLiquidityUSD is the shallower of the two pools.
func (d CrossDEXDetails) MinLiquidityUSD() decimal.Decimal {
	return decimal.Min(d.BuyLiquidityUSD, d.SellLiquidityUSD)
}

// FlashLoanDetails borrows Token from Provider and round-trips it through two pools.
type FlashLoanDetails struct {
	Provider    string          `json:"provider"`
	Network     string          `json:"network"`
	Token       string          `json:"token"`
	Base        string          `json:"base"`
	LoanAmount  decimal.Decimal `json:"loan_amount"`
	ProviderFee decimal.Decimal `json:"provider_fee"`
}

func (FlashLoanDetails) Strategy() Strategy { return StrategyFlashLoan }

// StatisticalDetails is a mean-reversion signal on one venue.
type StatisticalDetails struct {
	Venue  string          `json:"venue"`
	ZScore decimal.Decimal `json:"z_score"`
	Mean   decimal.Decimal `json:"mean"`
	StdDev decimal.Decimal `json:"std_dev"`
	Side   PositionSide    `json:"side"`
}

func (StatisticalDetails) Strategy() Strategy { return StrategyStatistical }

func decodeDetails(kind Strategy, data json.RawMessage) (Details, error) {
	var (
		d   Details
		err error
	)
	switch kind {
	case StrategySimple:
		var v SimpleDetails
		err = json.Unmarshal(data, &v)
		d = v
	case StrategyTriangular:
		var v TriangularDetails
		err = json.Unmarshal(data, &v)
		d = v
	case StrategyCrossDEX:
		var v CrossDEXDetails
		err = json.Unmarshal(data, &v)
		d = v
	case StrategyFlashLoan:
		var v FlashLoanDetails
		err = json.Unmarshal(data, &v)
		d = v
	case StrategyStatistical:
		var v StatisticalDetails
		err = json.Unmarshal(data, &v)
		d = v
	default:
		return nil, fmt.Errorf("unknown details kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", kind, err)
	}
	return d, nil
}
