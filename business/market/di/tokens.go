// Package di contains dependency injection tokens for the market context.
package di

import (
	"github.com/fd1az/arbitrage-engine/business/market/app"
	"github.com/fd1az/arbitrage-engine/business/market/infra/paper"
	"github.com/fd1az/arbitrage-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	CEXAdapter = di.NewToken[app.CEXAdapter]("market.CEXAdapter")
	DEXAdapter = di.NewToken[app.DEXAdapter]("market.DEXAdapter")
)

// Private dependency tokens - internal to the market module
var (
	PaperMarket = di.NewToken[*paper.Market]("market:paperMarket")
	CEXRouter   = di.NewToken[*app.CEXRouter]("market:cexRouter")
	DEXRouter   = di.NewToken[*app.DEXRouter]("market:dexRouter")
)

func GetCEXAdapter(c di.ServiceRegistry) app.CEXAdapter {
	return di.GetToken(c, CEXAdapter)
}

func GetDEXAdapter(c di.ServiceRegistry) app.DEXAdapter {
	return di.GetToken(c, DEXAdapter)
}

func GetPaperMarket(c di.ServiceRegistry) *paper.Market {
	return di.GetToken(c, PaperMarket)
}

func GetCEXRouter(c di.ServiceRegistry) *app.CEXRouter {
	return di.GetToken(c, CEXRouter)
}

func GetDEXRouter(c di.ServiceRegistry) *app.DEXRouter {
	return di.GetToken(c, DEXRouter)
}
