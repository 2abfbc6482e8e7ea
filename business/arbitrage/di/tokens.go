// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/app"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/infra"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/infra/httpapi"
	"github.com/fd1az/arbitrage-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Store       = di.NewToken[app.OpportunityStore]("arbitrage.Store")
	Coordinator = di.NewToken[*app.Coordinator]("arbitrage.Coordinator")
	Scheduler   = di.NewToken[*app.Scheduler]("arbitrage.Scheduler")
	Stats       = di.NewToken[*app.StatsTracker]("arbitrage.Stats")
	RiskGate    = di.NewToken[*app.RiskGate]("arbitrage.RiskGate")
)

// Private dependency tokens - internal to the arbitrage module
var (
	RedisClient  = di.NewToken[*redis.Client]("arbitrage:redisClient")
	PostgresPool = di.NewToken[*pgxpool.Pool]("arbitrage:postgresPool")
	Sizer        = di.NewToken[*app.PositionSizer]("arbitrage:sizer")
	Positions    = di.NewToken[*app.PositionBook]("arbitrage:positions")
	Collector    = di.NewToken[*app.SnapshotCollector]("arbitrage:collector")
	Detectors    = di.NewToken[[]app.Detector]("arbitrage:detectors")
	Reporter     = di.NewToken[*infra.MultiReporter]("arbitrage:reporter")
	API          = di.NewToken[*httpapi.Server]("arbitrage:api")
)

func GetStore(c di.ServiceRegistry) app.OpportunityStore {
	return di.GetToken(c, Store)
}

func GetCoordinator(c di.ServiceRegistry) *app.Coordinator {
	return di.GetToken(c, Coordinator)
}

func GetScheduler(c di.ServiceRegistry) *app.Scheduler {
	return di.GetToken(c, Scheduler)
}

func GetStats(c di.ServiceRegistry) *app.StatsTracker {
	return di.GetToken(c, Stats)
}

func GetRiskGate(c di.ServiceRegistry) *app.RiskGate {
	return di.GetToken(c, RiskGate)
}

func GetRedisClient(c di.ServiceRegistry) *redis.Client {
	return di.GetToken(c, RedisClient)
}

func GetPostgresPool(c di.ServiceRegistry) *pgxpool.Pool {
	return di.GetToken(c, PostgresPool)
}

func GetSizer(c di.ServiceRegistry) *app.PositionSizer {
	return di.GetToken(c, Sizer)
}

func GetPositions(c di.ServiceRegistry) *app.PositionBook {
	return di.GetToken(c, Positions)
}

func GetCollector(c di.ServiceRegistry) *app.SnapshotCollector {
	return di.GetToken(c, Collector)
}

func GetDetectors(c di.ServiceRegistry) []app.Detector {
	return di.GetToken(c, Detectors)
}

func GetReporter(c di.ServiceRegistry) *infra.MultiReporter {
	return di.GetToken(c, Reporter)
}

func GetAPI(c di.ServiceRegistry) *httpapi.Server {
	return di.GetToken(c, API)
}
