// Package chain implements the chain bounded context: gas prices, bridges,
// flash loans and transaction submission across EVM networks.
package chain

import (
	"context"

	"github.com/fd1az/arbitrage-engine/business/chain/app"
	chainDI "github.com/fd1az/arbitrage-engine/business/chain/di"
	"github.com/fd1az/arbitrage-engine/business/chain/infra/ethereum"
	"github.com/fd1az/arbitrage-engine/internal/asset"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/di"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers all chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, chainDI.DryRunSender, func(sr di.ServiceRegistry) *ethereum.DryRunSender {
		log := sr.Get("logger").(logger.LoggerInterface)
		return ethereum.NewDryRunSender(log)
	})

	// Only dry-run submission is supported; key management lives outside the engine.
	di.RegisterToken(c, chainDI.TxSender, func(sr di.ServiceRegistry) app.TxSender {
		return chainDI.GetDryRunSender(sr)
	})

	di.RegisterToken(c, chainDI.Receipts, func(sr di.ServiceRegistry) app.ReceiptChecker {
		clients := sr.Get("ethClients").(monolith.EthClients)
		readers := make(map[string]ethereum.ReceiptReader, len(clients))
		for name, client := range clients {
			readers[name] = client
		}
		return ethereum.NewReceipts(readers, chainDI.GetDryRunSender(sr))
	})

	di.RegisterToken(c, chainDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		clients := sr.Get("ethClients").(monolith.EthClients)

		readers := make(map[string]ethereum.GasReader, len(clients))
		for name, client := range clients {
			readers[name] = client
		}
		oracle, err := ethereum.NewGasOracle(ethereum.DefaultGasOracleConfig(), cfg.Networks, readers, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, chainDI.BridgeAdapter, func(sr di.ServiceRegistry) app.BridgeAdapter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		bridges, err := ethereum.NewBridges(cfg.Bridges, cfg.Networks, registry,
			chainDI.GetTxSender(sr), chainDI.GetReceipts(sr), cfg.Engine.BridgePollInterval, log)
		if err != nil {
			panic("failed to create bridge adapter: " + err.Error())
		}
		return bridges
	})

	di.RegisterToken(c, chainDI.FlashLoanAdapter, func(sr di.ServiceRegistry) app.FlashLoanAdapter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		loans, err := ethereum.NewFlashLoans(cfg.FlashLoans, cfg.Networks, registry,
			chainDI.GetTxSender(sr), cfg.Engine.WalletAddress, log)
		if err != nil {
			panic("failed to create flash loan adapter: " + err.Error())
		}
		return loans
	})

	return nil
}

// Startup warms the gas oracle so the first scan has snapshots.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	if !cfg.Engine.DryRun {
		log.Warn(ctx, "engine.dry_run is false but only dry-run transaction submission is available")
	}

	oracle := chainDI.GetGasOracle(mono.Services())
	for _, n := range cfg.Networks {
		snap, err := oracle.LatestGasPrice(ctx, n.Name)
		if err != nil {
			log.Error(ctx, "failed to read gas price", "network", n.Name, "error", err)
			continue
		}
		log.Info(ctx, "gas price", "network", n.Name, "average_gwei", snap.Average.String(), "fallback", snap.Fallback)
	}

	log.Info(ctx, "chain module started",
		"bridges", len(cfg.Bridges),
		"flash_loan_providers", len(cfg.FlashLoans),
	)
	return nil
}
