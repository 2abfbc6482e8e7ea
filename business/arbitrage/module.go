// Package arbitrage implements the arbitrage bounded context: opportunity
// detection, the risk gate and leg-by-leg execution.
package arbitrage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/app"
	arbDI "github.com/fd1az/arbitrage-engine/business/arbitrage/di"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/infra"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/infra/httpapi"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/infra/memory"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/infra/postgres"
	arbRedis "github.com/fd1az/arbitrage-engine/business/arbitrage/infra/redis"
	chainDI "github.com/fd1az/arbitrage-engine/business/chain/di"
	marketDI "github.com/fd1az/arbitrage-engine/business/market/di"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/di"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/monolith"
)

const connectTimeout = 10 * time.Second

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	m.registerStore(c)

	di.RegisterToken(c, arbDI.RiskGate, func(sr di.ServiceRegistry) *app.RiskGate {
		cfg := sr.Get("config").(*config.Config)
		return app.NewRiskGate(app.RiskLimits{
			MaxConsecutiveLosses: cfg.Risk.MaxConsecutiveLosses,
			DailyLossLimit:       cfg.Risk.DailyLossLimitDecimal(),
			LiquidityMultiple:    cfg.Risk.LiquidityMultipleDecimal(),
			ResetPeriod:          cfg.Risk.ResetPeriod,
		})
	})

	di.RegisterToken(c, arbDI.Sizer, func(sr di.ServiceRegistry) *app.PositionSizer {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewPositionSizer(app.NewSizingLimits(cfg),
			marketDI.GetCEXAdapter(sr), marketDI.GetDEXAdapter(sr), log)
	})

	di.RegisterToken(c, arbDI.Positions, func(di.ServiceRegistry) *app.PositionBook {
		return app.NewPositionBook()
	})

	di.RegisterToken(c, arbDI.Stats, func(sr di.ServiceRegistry) *app.StatsTracker {
		return app.NewStatsTracker(arbDI.GetStore(sr))
	})

	di.RegisterToken(c, arbDI.Collector, func(sr di.ServiceRegistry) *app.SnapshotCollector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		networks := make([]string, 0, len(cfg.Networks))
		for _, n := range cfg.Networks {
			networks = append(networks, n.Name)
		}
		return app.NewSnapshotCollector(
			marketDI.GetCEXAdapter(sr),
			marketDI.GetDEXAdapter(sr),
			chainDI.GetGasOracle(sr),
			app.CollectorConfig{
				Networks:     networks,
				FetchTimeout: cfg.Engine.FetchTimeout,
				Concurrency:  cfg.Engine.FetchConcurrency,
			},
			log,
		)
	})

	di.RegisterToken(c, arbDI.Detectors, func(sr di.ServiceRegistry) []app.Detector {
		cfg := sr.Get("config").(*config.Config)
		settings, err := app.NewDetectorSettings(cfg)
		if err != nil {
			panic("failed to build detector settings: " + err.Error())
		}
		return []app.Detector{
			app.NewSimpleDetector(settings),
			app.NewTriangularDetector(settings, app.SpotQuote),
			app.NewCrossDEXDetector(settings, chainDI.GetBridgeAdapter(sr)),
			app.NewFlashLoanDetector(settings, chainDI.GetFlashLoanAdapter(sr), app.SpotQuote),
			app.NewStatisticalDetector(settings),
		}
	})

	di.RegisterToken(c, arbDI.Reporter, func(sr di.ServiceRegistry) *infra.MultiReporter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		reporters := []app.Reporter{infra.NewConsoleReporter(cfg.App.Quiet)}
		if cfg.Store.Redis.Publish {
			reporters = append(reporters,
				arbRedis.NewPublisher(arbDI.GetRedisClient(sr), cfg.Store.Redis.Channel, log))
		}
		return infra.NewMultiReporter(reporters...)
	})

	di.RegisterToken(c, arbDI.Coordinator, func(sr di.ServiceRegistry) *app.Coordinator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		coord, err := app.NewCoordinator(app.CoordinatorDeps{
			Store:      arbDI.GetStore(sr),
			Gate:       arbDI.GetRiskGate(sr),
			Sizer:      arbDI.GetSizer(sr),
			CEX:        marketDI.GetCEXAdapter(sr),
			DEX:        marketDI.GetDEXAdapter(sr),
			Bridges:    chainDI.GetBridgeAdapter(sr),
			FlashLoans: chainDI.GetFlashLoanAdapter(sr),
			Positions:  arbDI.GetPositions(sr),
			Stats:      arbDI.GetStats(sr),
			Reporter:   arbDI.GetReporter(sr),
		}, app.ExecutionConfig{
			MaxSlippage:   decimal.NewFromFloat(cfg.Engine.MaxSlippage),
			BridgeTimeout: cfg.Engine.BridgeTimeout,
			Wallet:        cfg.Engine.WalletAddress,
		}, log)
		if err != nil {
			panic("failed to create coordinator: " + err.Error())
		}
		return coord
	})

	di.RegisterToken(c, arbDI.Scheduler, func(sr di.ServiceRegistry) *app.Scheduler {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		sched, err := app.NewScheduler(app.SchedulerDeps{
			Collector: arbDI.GetCollector(sr),
			Detectors: arbDI.GetDetectors(sr),
			Gate:      arbDI.GetRiskGate(sr),
			Sizer:     arbDI.GetSizer(sr),
			Store:     arbDI.GetStore(sr),
			Stats:     arbDI.GetStats(sr),
			Reporter:  arbDI.GetReporter(sr),
		}, app.SchedulerConfig{
			Interval: cfg.Engine.ScanInterval,
			MaxAge:   cfg.Engine.MaxAge,
		}, log)
		if err != nil {
			panic("failed to create scheduler: " + err.Error())
		}
		return sched
	})

	di.RegisterToken(c, arbDI.API, func(sr di.ServiceRegistry) *httpapi.Server {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return httpapi.New(httpapi.Deps{
			Opportunities: arbDI.GetStore(sr),
			Executor:      arbDI.GetCoordinator(sr),
			Positions:     arbDI.GetPositions(sr),
			Stats:         arbDI.GetStats(sr),
			Risk:          arbDI.GetRiskGate(sr),
		}, serviceName(cfg), log)
	})

	return nil
}

// registerStore binds the opportunity store selected by store.driver. The
// redis client is also registered when only the publisher needs it.
func (m *Module) registerStore(c di.Container) {
	di.RegisterToken(c, arbDI.RedisClient, func(sr di.ServiceRegistry) *redis.Client {
		cfg := sr.Get("config").(*config.Config)
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		rdb, err := arbRedis.NewClient(ctx, cfg.Store.Redis)
		if err != nil {
			panic("failed to connect to redis: " + err.Error())
		}
		return rdb
	})

	di.RegisterToken(c, arbDI.PostgresPool, func(sr di.ServiceRegistry) *pgxpool.Pool {
		cfg := sr.Get("config").(*config.Config)
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		pool, err := postgres.Connect(ctx, cfg.Store.Postgres)
		if err != nil {
			panic("failed to connect to postgres: " + err.Error())
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			panic("failed to migrate postgres: " + err.Error())
		}
		return pool
	})

	di.RegisterToken(c, arbDI.Store, func(sr di.ServiceRegistry) app.OpportunityStore {
		cfg := sr.Get("config").(*config.Config)
		switch cfg.Store.Driver {
		case config.StoreRedis:
			return arbRedis.NewStore(arbDI.GetRedisClient(sr), cfg.Store.Redis.KeyPrefix)
		case config.StorePostgres:
			return postgres.NewStore(arbDI.GetPostgresPool(sr))
		default:
			return memory.NewStore()
		}
	})
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Startup registers health checks, starts the reporters, the scan loop and,
// when enabled, the HTTP API.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()
	sr := mono.Services()

	store := arbDI.GetStore(sr)
	gate := arbDI.GetRiskGate(sr)
	if hs := mono.Health(); hs != nil {
		if p, ok := store.(pinger); ok {
			hs.RegisterCheck("store", func(ctx context.Context) (bool, string) {
				if err := p.Ping(ctx); err != nil {
					return false, err.Error()
				}
				return true, cfg.Store.Driver
			})
		}
		hs.RegisterCheck("risk_gate", func(context.Context) (bool, string) {
			st := gate.State()
			if st.Tripped {
				return false, st.Reason
			}
			return true, "admitting"
		})
	}

	reporter := arbDI.GetReporter(sr)
	if err := reporter.Start(ctx); err != nil {
		return err
	}

	if cfg.API.Enabled {
		if err := arbDI.GetAPI(sr).Start(ctx, cfg.API.Port); err != nil {
			return err
		}
	}

	sched := arbDI.GetScheduler(sr)
	sched.Start(ctx)

	log.Info(ctx, "arbitrage module started",
		"store", cfg.Store.Driver,
		"detectors", len(arbDI.GetDetectors(sr)),
		"reporters", reporter.Len(),
		"scan_interval", cfg.Engine.ScanInterval,
		"api", cfg.API.Enabled,
	)
	return nil
}

// Shutdown stops the scan loop, drains the API and flushes the reporters.
func (m *Module) Shutdown(ctx context.Context, mono monolith.Monolith) {
	log := mono.Logger()
	sr := mono.Services()
	cfg := mono.Config()

	arbDI.GetScheduler(sr).Stop()
	if cfg.API.Enabled {
		if err := arbDI.GetAPI(sr).Shutdown(ctx); err != nil {
			log.Warn(ctx, "api shutdown", "error", err)
		}
	}
	if err := arbDI.GetReporter(sr).Stop(); err != nil {
		log.Warn(ctx, "reporter shutdown", "error", err)
	}

	if usesRedis(cfg) {
		if err := arbDI.GetRedisClient(sr).Close(); err != nil {
			log.Warn(ctx, "redis close", "error", err)
		}
	}
	if cfg.Store.Driver == config.StorePostgres {
		arbDI.GetPostgresPool(sr).Close()
	}
}

func usesRedis(cfg *config.Config) bool {
	return cfg.Store.Driver == config.StoreRedis || cfg.Store.Redis.Publish
}

func serviceName(cfg *config.Config) string {
	if cfg.Telemetry.ServiceName != "" {
		return cfg.Telemetry.ServiceName
	}
	return cfg.App.Name
}
