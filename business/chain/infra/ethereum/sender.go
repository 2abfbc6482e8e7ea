package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

// DryRunSender records transactions instead of broadcasting them. Every
// reference it hands out is reported as confirmed.
type DryRunSender struct {
	logger logger.LoggerInterface
	tracer trace.Tracer

	mu    sync.Mutex
	nonce uint64
	sent  map[string]bool
}

// NewDryRunSender creates an empty dry-run sender.
func NewDryRunSender(log logger.LoggerInterface) *DryRunSender {
	return &DryRunSender{
		logger: log,
		tracer: otel.Tracer(tracerName),
		sent:   make(map[string]bool),
	}
}

// Send derives a transaction hash from the call and remembers it.
func (s *DryRunSender) Send(ctx context.Context, network string, to common.Address, data []byte) (string, error) {
	ctx, span := s.tracer.Start(ctx, "tx.send_dry_run",
		trace.WithAttributes(
			attribute.String("network", network),
			attribute.String("to", to.Hex()),
		),
	)
	defer span.End()

	s.mu.Lock()
	s.nonce++
	nonce := new(big.Int).SetUint64(s.nonce).Bytes()
	ref := crypto.Keccak256Hash([]byte(network), to.Bytes(), data, nonce).Hex()
	s.sent[ref] = true
	s.mu.Unlock()

	selector := ""
	if len(data) >= 4 {
		selector = hexutil.Encode(data[:4])
	}
	s.logger.Info(ctx, "dry-run transaction",
		"network", network,
		"to", to.Hex(),
		"selector", selector,
		"ref", ref,
	)
	span.SetAttributes(attribute.String("tx.ref", ref))

	return ref, nil
}

// Sent reports whether ref was produced by this sender.
func (s *DryRunSender) Sent(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[ref]
}

// Confirmed implements app.ReceiptChecker for dry-run references.
func (s *DryRunSender) Confirmed(_ context.Context, _ string, ref string) (bool, error) {
	return s.Sent(ref), nil
}

// ReceiptReader is the subset of ethclient.Client used to follow transactions.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Receipts checks transaction status on chain, short-circuiting references
// produced by a dry-run sender.
type Receipts struct {
	readers map[string]ReceiptReader
	dryRun  *DryRunSender
}

// NewReceipts creates a receipt checker. dryRun may be nil.
func NewReceipts(readers map[string]ReceiptReader, dryRun *DryRunSender) *Receipts {
	return &Receipts{readers: readers, dryRun: dryRun}
}

// Confirmed returns true once the transaction is mined successfully, false
// while it is pending, and an error if it reverted.
func (r *Receipts) Confirmed(ctx context.Context, network, ref string) (bool, error) {
	if r.dryRun != nil && r.dryRun.Sent(ref) {
		return true, nil
	}

	reader, ok := r.readers[network]
	if !ok {
		return false, apperror.NotFound(apperror.CodeVenueNotConfigured, "no rpc client for network "+network)
	}

	rcpt, err := reader.TransactionReceipt(ctx, common.HexToHash(ref))
	if errors.Is(err, ethereum.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperror.External(apperror.CodeRPCConnectionFailed, network, err)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return false, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("transaction "+ref+" reverted on "+network))
	}
	return true, nil
}
