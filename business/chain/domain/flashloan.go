package domain

import (
	"github.com/shopspring/decimal"
)

// FlashLoanProvider is reference data for a flash-loan pool.
type FlashLoanProvider struct {
	Name       string
	Network    string
	Pool       string
	Receiver   string
	FeePct     decimal.Decimal // fraction of the loan
	MaxLoanUSD decimal.Decimal
	Tokens     []string
}

// Supports reports whether the pool lends token.
func (p FlashLoanProvider) Supports(token string) bool {
	for _, t := range p.Tokens {
		if t == token {
			return true
		}
	}
	return false
}

// FlashLoanRequest borrows Amounts of Tokens for one transaction. The
// receiver contract gets CallbackData verbatim.
type FlashLoanRequest struct {
	Provider     string
	Tokens       []string
	Amounts      []decimal.Decimal
	CallbackData []byte
}
