package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

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

// PoolABI is the Aave V3 pool flashLoan entry point.
const PoolABI = `[
	{"name":"flashLoan","type":"function","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"receiverAddress","type":"address"},
		{"name":"assets","type":"address[]"},
		{"name":"amounts","type":"uint256[]"},
		{"name":"interestRateModes","type":"uint256[]"},
		{"name":"onBehalfOf","type":"address"},
		{"name":"params","type":"bytes"},
		{"name":"referralCode","type":"uint16"}],
	 "outputs":[]}
]`

// FlashLoans executes flash loans against configured Aave-style pools.
type FlashLoans struct {
	providers []domain.FlashLoanProvider
	networks  map[string]config.NetworkConfig
	registry  *asset.Registry
	sender    app.TxSender
	wallet    common.Address
	abi       abi.ABI
	logger    logger.LoggerInterface
	tracer    trace.Tracer
}

// NewFlashLoans builds the flash-loan adapter from config.
func NewFlashLoans(
	cfgs []config.FlashLoanConfig,
	networks []config.NetworkConfig,
	registry *asset.Registry,
	sender app.TxSender,
	wallet string,
	log logger.LoggerInterface,
) (*FlashLoans, error) {
	parsed, err := abi.JSON(strings.NewReader(PoolABI))
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	f := &FlashLoans{
		networks: make(map[string]config.NetworkConfig, len(networks)),
		registry: registry,
		sender:   sender,
		wallet:   common.HexToAddress(wallet),
		abi:      parsed,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
	for _, n := range networks {
		f.networks[n.Name] = n
	}
	for _, c := range cfgs {
		f.providers = append(f.providers, domain.FlashLoanProvider{
			Name:       c.Name,
			Network:    c.Network,
			Pool:       c.Pool,
			Receiver:   c.Receiver,
			FeePct:     decimal.NewFromFloat(c.FeePct),
			MaxLoanUSD: decimal.NewFromFloat(c.MaxLoanUSD),
			Tokens:     append([]string(nil), c.Tokens...),
		})
	}
	return f, nil
}

// ProvidersForNetwork returns the providers deployed on network.
func (f *FlashLoans) ProvidersForNetwork(network string) []domain.FlashLoanProvider {
	var out []domain.FlashLoanProvider
	for _, p := range f.providers {
		if p.Network == network {
			out = append(out, p)
		}
	}
	return out
}

// Execute submits the flashLoan call; the receiver contract runs the legs.
func (f *FlashLoans) Execute(ctx context.Context, req domain.FlashLoanRequest) (string, error) {
	ctx, span := f.tracer.Start(ctx, "flashloan.execute",
		trace.WithAttributes(attribute.String("provider", req.Provider)),
	)
	defer span.End()

	var provider *domain.FlashLoanProvider
	for i := range f.providers {
		if f.providers[i].Name == req.Provider {
			provider = &f.providers[i]
			break
		}
	}
	if provider == nil {
		err := apperror.NotFound(apperror.CodeFlashLoanProvider, req.Provider)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown provider")
		return "", err
	}
	if len(req.Tokens) == 0 || len(req.Tokens) != len(req.Amounts) {
		return "", apperror.Validation(apperror.CodeInvalidInput, "tokens and amounts must be non-empty and aligned")
	}

	chainID := f.networks[provider.Network].ChainID
	assets := make([]common.Address, len(req.Tokens))
	amounts := make([]*big.Int, len(req.Tokens))
	modes := make([]*big.Int, len(req.Tokens))
	for i, sym := range req.Tokens {
		if !provider.Supports(sym) {
			return "", apperror.Validation(apperror.CodeFlashLoanProvider, provider.Name+" does not lend "+sym)
		}
		token, ok := lookupToken(f.registry, chainID, sym)
		if !ok {
			return "", apperror.NotFound(apperror.CodeTokenNotFound, sym+" on "+provider.Network)
		}
		if !req.Amounts[i].IsPositive() {
			return "", apperror.Validation(apperror.CodeInvalidTradeSize, "loan amount must be positive")
		}
		amt, err := asset.FloorDecimal(token, req.Amounts[i])
		if err != nil {
			return "", apperror.Validation(apperror.CodeInvalidTradeSize, err.Error())
		}
		assets[i] = token.Address()
		amounts[i] = amt.Raw()
		modes[i] = new(big.Int) // 0 = repay in the same transaction
	}

	data, err := f.abi.Pack("flashLoan",
		common.HexToAddress(provider.Receiver),
		assets,
		amounts,
		modes,
		f.wallet,
		req.CallbackData,
		uint16(0),
	)
	if err != nil {
		return "", apperror.Internal(apperror.CodeContractCallFailed, "pack flashLoan", err)
	}

	ref, err := f.sender.Send(ctx, provider.Network, common.HexToAddress(provider.Pool), data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return "", err
	}

	f.logger.Info(ctx, "flash loan submitted", "provider", provider.Name, "tokens", req.Tokens, "ref", ref)
	span.SetStatus(codes.Ok, "submitted")
	return ref, nil
}
