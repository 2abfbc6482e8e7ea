// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/arbitrage-engine/business/chain/app"
	"github.com/fd1az/arbitrage-engine/business/chain/infra/ethereum"
	"github.com/fd1az/arbitrage-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	GasOracle        = di.NewToken[app.GasOracle]("chain.GasOracle")
	BridgeAdapter    = di.NewToken[app.BridgeAdapter]("chain.BridgeAdapter")
	FlashLoanAdapter = di.NewToken[app.FlashLoanAdapter]("chain.FlashLoanAdapter")
	TxSender         = di.NewToken[app.TxSender]("chain.TxSender")
)

// Private dependency tokens - internal to the chain module
var (
	DryRunSender = di.NewToken[*ethereum.DryRunSender]("chain:dryRunSender")
	Receipts     = di.NewToken[app.ReceiptChecker]("chain:receipts")
)

func GetGasOracle(c di.ServiceRegistry) app.GasOracle {
	return di.GetToken(c, GasOracle)
}

func GetBridgeAdapter(c di.ServiceRegistry) app.BridgeAdapter {
	return di.GetToken(c, BridgeAdapter)
}

func GetFlashLoanAdapter(c di.ServiceRegistry) app.FlashLoanAdapter {
	return di.GetToken(c, FlashLoanAdapter)
}

func GetTxSender(c di.ServiceRegistry) app.TxSender {
	return di.GetToken(c, TxSender)
}

func GetDryRunSender(c di.ServiceRegistry) *ethereum.DryRunSender {
	return di.GetToken(c, DryRunSender)
}

func GetReceipts(c di.ServiceRegistry) app.ReceiptChecker {
	return di.GetToken(c, Receipts)
}
