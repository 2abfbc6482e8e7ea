// Package main is the entry point for the multi-strategy arbitrage engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fd1az/arbitrage-engine/business/arbitrage"
	"github.com/fd1az/arbitrage-engine/business/chain"
	"github.com/fd1az/arbitrage-engine/business/market"
	marketDI "github.com/fd1az/arbitrage-engine/business/market/di"
	"github.com/fd1az/arbitrage-engine/internal/apm"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/health"
	"github.com/fd1az/arbitrage-engine/internal/logger"
	"github.com/fd1az/arbitrage-engine/internal/metrics"
	"github.com/fd1az/arbitrage-engine/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	quiet := flag.Bool("quiet", false, "Suppress logs and idle cycle output")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("arbitrage-engine %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !*quiet {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, *quiet); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, quiet bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.Quiet = quiet

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	var out io.Writer = os.Stderr
	if quiet {
		out = io.Discard
	}
	log := logger.New(out, logLevel, cfg.App.Name, nil)
	log.Info(ctx, "starting arbitrage engine",
		"version", version,
		"environment", cfg.App.Environment,
		"dry_run", cfg.Engine.DryRun,
		"store", cfg.Store.Driver,
	)

	stopTelemetry := setupTelemetry(ctx, cfg, log)
	defer stopTelemetry()

	healthServer := health.NewServer(cfg.API.HealthPort, version, log)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.API.HealthPort)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = healthServer.Stop(stopCtx)
	}()

	mono, err := monolith.New(ctx, cfg, log, healthServer)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	engine := &arbitrage.Module{}
	modules := []monolith.Module{
		&market.Module{}, // venues and pools
		&chain.Module{},  // gas, bridges, flash loans
		engine,           // depends on both
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	log.Info(ctx, "all modules started, scanning for opportunities")

	<-ctx.Done()

	log.Info(context.Background(), "shutting down")
	stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	engine.Shutdown(stopCtx, mono)
	if err := marketDI.GetCEXRouter(mono.Services()).Close(); err != nil {
		log.Warn(stopCtx, "closing exchange streams", "error", err)
	}

	return nil
}

// setupTelemetry wires tracing and the Prometheus endpoint when enabled and
// returns the matching teardown.
func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}

	endpoint := cfg.Telemetry.OTLPEndpoint
	headers := apm.ParseHeaders(cfg.Telemetry.OTLPHeaders)
	provider := apm.ProviderFromEndpoint(endpoint)
	traceProvider := apm.NewTraceProvider(log,
		apm.WithProvider(provider, endpoint, headers, log),
		apm.WithServiceName(cfg.Telemetry.ServiceName),
	)

	metricOpts := append([]metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{
			Provider: metrics.PrometheusProvider,
		}),
	}, metrics.EngineLatencyBuckets()...)
	// A bare host:port is an OTLP/gRPC collector; push metrics there as well.
	if provider == apm.OTLPGRPCProvider {
		metricOpts = append(metricOpts, metrics.WithProviderConfig(
			metrics.NewOtelCollectorConfig("http://"+endpoint, headers, true)))
	}
	if _, err := metrics.NewMetricProvider(metricOpts...); err != nil {
		log.Warn(ctx, "metrics provider disabled", "error", err)
	}

	port := cfg.Telemetry.PrometheusPort
	if port == 0 {
		port = 9090
	}
	promServer := metrics.ServePrometheusMetrics(log, metrics.WithPort(strconv.Itoa(port)))

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := promServer.Stop(stopCtx); err != nil {
			log.Warn(stopCtx, "metrics server shutdown", "error", err)
		}
		if err := traceProvider.Stop(); err != nil {
			log.Warn(stopCtx, "trace provider shutdown", "error", err)
		}
	}
}
