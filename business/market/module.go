// Package market implements the market bounded context: CEX and DEX venues
// behind the two adapter ports the engine scans.
package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	chainDI "github.com/fd1az/arbitrage-engine/business/chain/di"
	"github.com/fd1az/arbitrage-engine/business/market/app"
	marketDI "github.com/fd1az/arbitrage-engine/business/market/di"
	"github.com/fd1az/arbitrage-engine/business/market/infra/evm"
	"github.com/fd1az/arbitrage-engine/business/market/infra/exchange"
	"github.com/fd1az/arbitrage-engine/business/market/infra/paper"
	"github.com/fd1az/arbitrage-engine/internal/asset"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/di"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/monolith"
)

// Module implements the market bounded context.
type Module struct{}

// RegisterServices registers all market services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, marketDI.PaperMarket, func(sr di.ServiceRegistry) *paper.Market {
		cfg := sr.Get("config").(*config.Config)
		market, err := paper.NewMarket(cfg.Paper)
		if err != nil {
			panic("failed to create paper market: " + err.Error())
		}
		return market
	})

	di.RegisterToken(c, marketDI.CEXRouter, func(sr di.ServiceRegistry) *app.CEXRouter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		venues := make([]app.CEXVenue, 0, len(cfg.Exchanges))
		for _, ex := range cfg.Exchanges {
			venue, err := newCEXVenue(sr, cfg, ex, log)
			if err != nil {
				panic("failed to create exchange " + ex.Name + ": " + err.Error())
			}
			venues = append(venues, venue)
		}

		router, err := app.NewCEXRouter(venues...)
		if err != nil {
			panic("failed to create cex router: " + err.Error())
		}
		return router
	})

	di.RegisterToken(c, marketDI.DEXRouter, func(sr di.ServiceRegistry) *app.DEXRouter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		venues := make([]app.DEXVenue, 0, len(cfg.DEXes))
		for _, dex := range cfg.DEXes {
			venue, err := newDEXVenue(sr, cfg, dex, log)
			if err != nil {
				panic("failed to create dex " + dex.Name + ": " + err.Error())
			}
			venues = append(venues, venue)
		}

		router, err := app.NewDEXRouter(venues...)
		if err != nil {
			panic("failed to create dex router: " + err.Error())
		}
		return router
	})

	di.RegisterToken(c, marketDI.CEXAdapter, func(sr di.ServiceRegistry) app.CEXAdapter {
		return marketDI.GetCEXRouter(sr)
	})

	di.RegisterToken(c, marketDI.DEXAdapter, func(sr di.ServiceRegistry) app.DEXAdapter {
		return marketDI.GetDEXRouter(sr)
	})

	return nil
}

func newCEXVenue(sr di.ServiceRegistry, cfg *config.Config, ex config.ExchangeConfig, log logger.LoggerInterface) (app.CEXVenue, error) {
	switch ex.Kind {
	case config.KindPaper:
		return paper.NewExchange(ex, cfg.Paper, marketDI.GetPaperMarket(sr), log)
	case config.KindREST:
		return exchange.NewClient(ex, cfg.Engine.DryRun, log)
	default:
		return nil, fmt.Errorf("unknown exchange kind %q", ex.Kind)
	}
}

func newDEXVenue(sr di.ServiceRegistry, cfg *config.Config, dex config.DEXConfig, log logger.LoggerInterface) (app.DEXVenue, error) {
	switch dex.Kind {
	case config.KindPaper:
		return paper.NewDEX(dex, cfg.Paper, marketDI.GetPaperMarket(sr), log)
	case config.KindUniswapV2:
		network, ok := cfg.Network(dex.Network)
		if !ok {
			return nil, fmt.Errorf("unknown network %q", dex.Network)
		}
		clients := sr.Get("ethClients").(monolith.EthClients)
		client, ok := clients[dex.Network]
		if !ok {
			return nil, fmt.Errorf("network %s has no rpc_url", dex.Network)
		}
		registry := sr.Get("assetRegistry").(*asset.Registry)
		return evm.NewVenue(dex, network, cfg.Engine.WalletAddress, client, chainDI.GetTxSender(sr), registry, log)
	default:
		return nil, fmt.Errorf("unknown dex kind %q", dex.Kind)
	}
}

// Startup connects venue streams. A failed connect is retried in the
// background; tickers fall back to REST meanwhile.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	cex := marketDI.GetCEXRouter(mono.Services())
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := cex.Connect(connectCtx); err != nil {
		log.Warn(ctx, "exchange stream connection failed, will retry in background", "error", err)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
					if err := cex.Connect(ctx); err != nil {
						log.Warn(ctx, "exchange stream retry failed", "error", err)
					} else {
						log.Info(ctx, "exchange streams connected")
						return
					}
				}
			}
		}()
	}

	dex := marketDI.GetDEXRouter(mono.Services())
	if err := dex.Connect(ctx); err != nil {
		log.Warn(ctx, "dex connect failed", "error", err)
	}

	if hs := mono.Health(); hs != nil {
		hs.RegisterCheck("exchanges", func(ctx context.Context) (bool, string) {
			var down []string
			for _, venue := range cex.Venues() {
				if !cex.GetStatus(ctx, venue).Usable() {
					down = append(down, venue)
				}
			}
			if len(down) > 0 {
				return false, "unusable: " + strings.Join(down, ",")
			}
			return true, fmt.Sprintf("%d online", len(cex.Venues()))
		})
	}

	log.Info(ctx, "market module started",
		"exchanges", len(cex.Venues()),
		"dexes", len(dex.DEXes()),
	)
	return nil
}
