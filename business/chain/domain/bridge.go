package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BridgeRecord is reference data for a bridge route.
type BridgeRecord struct {
	Name             string
	Source           string
	Destination      string
	Contract         string
	FeePct           decimal.Decimal // fraction of the bridged amount
	EstimatedMinutes int
}

// Serves reports whether the bridge moves funds from src to dst.
func (b BridgeRecord) Serves(src, dst string) bool {
	return b.Source == src && b.Destination == dst
}

// TransferRequest moves Amount of Token from Source to Destination.
type TransferRequest struct {
	Bridge      string
	Source      string
	Destination string
	Token       string
	Amount      decimal.Decimal
	Recipient   string
}

// TransferReceipt is the source-chain submission of a bridge transfer.
type TransferReceipt struct {
	TxRef            string
	Bridge           string
	Source           string
	EstimatedMinutes int
	SubmittedAt      time.Time
}
