package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbitrage-engine/business/chain/app"
	"github.com/fd1az/arbitrage-engine/business/chain/domain"
	"github.com/fd1az/arbitrage-engine/internal/apperror"
	"github.com/fd1az/arbitrage-engine/internal/asset"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

// BridgeABI is the deposit entry point shared by the configured token bridges.
const BridgeABI = `[
	{"name":"depositERC20To","type":"function","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"token","type":"address"},
		{"name":"to","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"destChainId","type":"uint256"}],
	 "outputs":[]}
]`

// Bridges serves bridge reference data and submits deposits through a TxSender.
type Bridges struct {
	records  []domain.BridgeRecord
	networks map[string]config.NetworkConfig
	registry *asset.Registry
	sender   app.TxSender
	receipts app.ReceiptChecker
	poll     time.Duration
	abi      abi.ABI
	logger   logger.LoggerInterface
	tracer   trace.Tracer
}

// NewBridges builds the bridge adapter from config.
func NewBridges(
	bridges []config.BridgeConfig,
	networks []config.NetworkConfig,
	registry *asset.Registry,
	sender app.TxSender,
	receipts app.ReceiptChecker,
	pollInterval time.Duration,
	log logger.LoggerInterface,
) (*Bridges, error) {
	parsed, err := abi.JSON(strings.NewReader(BridgeABI))
	if err != nil {
		return nil, fmt.Errorf("parse bridge abi: %w", err)
	}
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}

	b := &Bridges{
		networks: make(map[string]config.NetworkConfig, len(networks)),
		registry: registry,
		sender:   sender,
		receipts: receipts,
		poll:     pollInterval,
		abi:      parsed,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
	for _, n := range networks {
		b.networks[n.Name] = n
	}
	for _, bc := range bridges {
		b.records = append(b.records, domain.BridgeRecord{
			Name:             bc.Name,
			Source:           bc.Source,
			Destination:      bc.Destination,
			Contract:         bc.Contract,
			FeePct:           decimal.NewFromFloat(bc.FeePct),
			EstimatedMinutes: bc.EstimatedMinutes,
		})
	}
	return b, nil
}

// FindBridges returns the bridges serving src -> dst.
func (b *Bridges) FindBridges(src, dst string) []domain.BridgeRecord {
	var out []domain.BridgeRecord
	for _, r := range b.records {
		if r.Serves(src, dst) {
			out = append(out, r)
		}
	}
	return out
}

// ListBridges filters by source and destination; empty matches any.
func (b *Bridges) ListBridges(src, dst string) []domain.BridgeRecord {
	out := make([]domain.BridgeRecord, 0, len(b.records))
	for _, r := range b.records {
		if src != "" && r.Source != src {
			continue
		}
		if dst != "" && r.Destination != dst {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Transfer submits a deposit on the source network.
func (b *Bridges) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferReceipt, error) {
	ctx, span := b.tracer.Start(ctx, "bridge.transfer",
		trace.WithAttributes(
			attribute.String("source", req.Source),
			attribute.String("destination", req.Destination),
			attribute.String("token", req.Token),
			attribute.String("amount", req.Amount.String()),
		),
	)
	defer span.End()

	record, err := b.resolve(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no bridge")
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidTradeSize, "bridge amount must be positive")
	}

	src := b.networks[record.Source]
	dst := b.networks[record.Destination]
	token, ok := lookupToken(b.registry, src.ChainID, req.Token)
	if !ok {
		return nil, apperror.NotFound(apperror.CodeTokenNotFound, req.Token+" on "+record.Source)
	}
	amount, err := asset.FloorDecimal(token, req.Amount)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidTradeSize, err.Error())
	}

	data, err := b.abi.Pack("depositERC20To",
		token.Address(),
		common.HexToAddress(req.Recipient),
		amount.Raw(),
		new(big.Int).SetUint64(dst.ChainID),
	)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeContractCallFailed, "pack bridge deposit", err)
	}

	ref, err := b.sender.Send(ctx, record.Source, common.HexToAddress(record.Contract), data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return nil, err
	}

	b.logger.Info(ctx, "bridge transfer submitted",
		"bridge", record.Name,
		"token", req.Token,
		"amount", amount.String(),
		"ref", ref,
	)
	span.SetStatus(codes.Ok, "submitted")

	return &domain.TransferReceipt{
		TxRef:            ref,
		Bridge:           record.Name,
		Source:           record.Source,
		EstimatedMinutes: record.EstimatedMinutes,
		SubmittedAt:      time.Now(),
	}, nil
}

func (b *Bridges) resolve(req domain.TransferRequest) (domain.BridgeRecord, error) {
	for _, r := range b.FindBridges(req.Source, req.Destination) {
		if req.Bridge == "" || r.Name == req.Bridge {
			return r, nil
		}
	}
	return domain.BridgeRecord{}, apperror.NotFound(apperror.CodeBridgeNotFound,
		fmt.Sprintf("%s -> %s", req.Source, req.Destination))
}

// AwaitCompletion polls the receipt checker until the transfer is confirmed.
func (b *Bridges) AwaitCompletion(ctx context.Context, receipt *domain.TransferReceipt, timeout time.Duration) error {
	ctx, span := b.tracer.Start(ctx, "bridge.await",
		trace.WithAttributes(attribute.String("tx.ref", receipt.TxRef)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	for {
		done, err := b.receipts.Confirmed(ctx, receipt.Source, receipt.TxRef)
		if err != nil && ctx.Err() == nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "transfer failed")
			return err
		}
		if done {
			span.SetStatus(codes.Ok, "completed")
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err := apperror.New(apperror.CodeBridgeTimeout,
					apperror.WithContext(fmt.Sprintf("%s after %s", receipt.Bridge, timeout)))
				span.RecordError(err)
				span.SetStatus(codes.Error, "timeout")
				return err
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// lookupToken resolves a symbol, falling back to its wrapped form (ETH -> WETH).
func lookupToken(r *asset.Registry, chainID uint64, symbol string) (*asset.Asset, bool) {
	if a, ok := r.Token(chainID, symbol); ok && !a.IsNative() {
		return a, true
	}
	return r.Token(chainID, "W"+symbol)
}
