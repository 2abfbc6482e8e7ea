// Package app defines the ports of the chain context.
package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/arbitrage-engine/business/chain/domain"
)

// GasOracle reports the fee curve of a network.
type GasOracle interface {
	LatestGasPrice(ctx context.Context, network string) (domain.GasSnapshot, error)
}

// BridgeAdapter looks up and drives cross-network transfers.
type BridgeAdapter interface {
	// FindBridges returns the bridges serving src -> dst, in config order.
	FindBridges(src, dst string) []domain.BridgeRecord
	// ListBridges filters by source and destination; an empty filter matches all.
	ListBridges(src, dst string) []domain.BridgeRecord
	Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferReceipt, error)
	// AwaitCompletion blocks until the transfer lands or timeout elapses.
	AwaitCompletion(ctx context.Context, receipt *domain.TransferReceipt, timeout time.Duration) error
}

// FlashLoanAdapter looks up and executes flash loans.
type FlashLoanAdapter interface {
	ProvidersForNetwork(network string) []domain.FlashLoanProvider
	Execute(ctx context.Context, req domain.FlashLoanRequest) (string, error)
}

// TxSender submits calldata to a contract and returns the transaction reference.
type TxSender interface {
	Send(ctx context.Context, network string, to common.Address, data []byte) (string, error)
}

// ReceiptChecker reports whether a submitted transaction has been mined successfully.
type ReceiptChecker interface {
	Confirmed(ctx context.Context, network, txRef string) (bool, error)
}
