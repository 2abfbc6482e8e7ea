// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Venue kinds.
const (
	KindREST      = "rest"
	KindPaper     = "paper"
	KindUniswapV2 = "uniswap-v2"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig         `mapstructure:"app"`
	Engine     EngineConfig      `mapstructure:"engine"`
	Risk       RiskConfig        `mapstructure:"risk"`
	Sizing     SizingConfig      `mapstructure:"sizing"`
	Detectors  DetectorsConfig   `mapstructure:"detectors"`
	Paper      PaperConfig       `mapstructure:"paper"`
	Exchanges  []ExchangeConfig  `mapstructure:"exchanges"`
	Networks   []NetworkConfig   `mapstructure:"networks"`
	DEXes      []DEXConfig       `mapstructure:"dexes"`
	Bridges    []BridgeConfig    `mapstructure:"bridges"`
	FlashLoans []FlashLoanConfig `mapstructure:"flash_loans"`
	Store      StoreConfig       `mapstructure:"store"`
	API        APIConfig         `mapstructure:"api"`
	Telemetry  TelemetryConfig   `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	// Quiet is set from the command line: logs are discarded and the console
	// only shows cycles that stored or skipped something.
	Quiet bool `mapstructure:"-"`
}

// EngineConfig drives the scan scheduler and execution coordinator.
type EngineConfig struct {
	ScanInterval       time.Duration `mapstructure:"scan_interval"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	FetchConcurrency   int           `mapstructure:"fetch_concurrency"`
	MaxAge             time.Duration `mapstructure:"max_age"`
	DryRun             bool          `mapstructure:"dry_run"`
	WalletAddress      string        `mapstructure:"wallet_address"`
	QuoteCurrency      string        `mapstructure:"quote_currency"`
	BridgeTimeout      time.Duration `mapstructure:"bridge_timeout"`
	BridgePollInterval time.Duration `mapstructure:"bridge_poll_interval"`
	BridgeFeePct       float64       `mapstructure:"bridge_fee_pct"`
	MaxSlippage        float64       `mapstructure:"max_slippage"`
}

// BridgeFeePctDecimal returns the bridge fee as a fraction.
func (c *EngineConfig) BridgeFeePctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.BridgeFeePct)
}

// RiskConfig configures the engine-level circuit breaker.
type RiskConfig struct {
	MaxConsecutiveLosses int           `mapstructure:"max_consecutive_losses"`
	DailyLossLimit       float64       `mapstructure:"daily_loss_limit"`
	LiquidityMultiple    float64       `mapstructure:"liquidity_multiple"`
	ResetPeriod          time.Duration `mapstructure:"reset_period"`
}

// DailyLossLimitDecimal returns the daily loss limit in quote currency.
func (c *RiskConfig) DailyLossLimitDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.DailyLossLimit)
}

// LiquidityMultipleDecimal returns the required liquidity/position ratio.
func (c *RiskConfig) LiquidityMultipleDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.LiquidityMultiple)
}

// SizingConfig configures the position sizer.
type SizingConfig struct {
	MaxPosition     float64       `mapstructure:"max_position"`
	MinPosition     float64       `mapstructure:"min_position"`
	FallbackBalance float64       `mapstructure:"fallback_balance"`
	Factors         FactorsConfig `mapstructure:"factors"`
}

// FactorsConfig holds per-strategy risk multipliers.
type FactorsConfig struct {
	Simple      float64 `mapstructure:"simple"`
	Triangular  float64 `mapstructure:"triangular"`
	CrossDEX    float64 `mapstructure:"cross_dex"`
	FlashLoan   float64 `mapstructure:"flash_loan"`
	Statistical float64 `mapstructure:"statistical"`
}

type namedFactor struct {
	name  string
	value float64
}

func (f FactorsConfig) list() []namedFactor {
	return []namedFactor{
		{"simple", f.Simple},
		{"triangular", f.Triangular},
		{"cross_dex", f.CrossDEX},
		{"flash_loan", f.FlashLoan},
		{"statistical", f.Statistical},
	}
}

// MaxPositionDecimal returns the global position cap.
func (c *SizingConfig) MaxPositionDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxPosition)
}

// MinPositionDecimal returns the global position floor.
func (c *SizingConfig) MinPositionDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinPosition)
}

// FallbackBalanceDecimal returns the balance assumed when a query fails.
func (c *SizingConfig) FallbackBalanceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.FallbackBalance)
}

// DetectorsConfig holds the tunables of the strategy detectors.
type DetectorsConfig struct {
	DefaultRisk       string            `mapstructure:"default_risk"`
	PairRisk          []PairRiskConfig  `mapstructure:"pair_risk"`
	VolumeShare       float64           `mapstructure:"volume_share"`
	SlippageDecay     float64           `mapstructure:"slippage_decay"`
	TriangularCycles  []TriangularCycle `mapstructure:"triangular_cycles"`
	TriangularStart   float64           `mapstructure:"triangular_start"`
	PoolShare         float64           `mapstructure:"pool_share"`
	FlashLoanShare    float64           `mapstructure:"flash_loan_share"`
	FlashLoanCap      float64           `mapstructure:"flash_loan_cap"`
	ZScoreThreshold   float64           `mapstructure:"zscore_threshold"`
	ZScoreWindow      int               `mapstructure:"zscore_window"`
	StatBaseSize      float64           `mapstructure:"stat_base_size"`
	StatMaxScale      float64           `mapstructure:"stat_max_scale"`
	StatisticalVenues []string          `mapstructure:"statistical_venues"`
}

// PairRiskConfig assigns a base risk tier to a pair.
type PairRiskConfig struct {
	Pair string `mapstructure:"pair"`
	Risk string `mapstructure:"risk"`
}

// TriangularCycle is a three-asset loop evaluated on one venue, e.g.
// USDT -> BTC -> ETH -> USDT.
type TriangularCycle struct {
	Venue  string   `mapstructure:"venue"`
	Assets []string `mapstructure:"assets"`
}

// PaperConfig seeds the simulated venues used in dry-run deployments.
type PaperConfig struct {
	Seed       int64              `mapstructure:"seed"`
	Volatility float64            `mapstructure:"volatility"`
	SpreadBps  float64            `mapstructure:"spread_bps"`
	Prices     []PaperPriceConfig `mapstructure:"prices"`
	Balance    float64            `mapstructure:"balance"`
}

// PaperPriceConfig is the reference price of a pair for paper venues.
type PaperPriceConfig struct {
	Pair  string  `mapstructure:"pair"`
	Price float64 `mapstructure:"price"`
}

// ExchangeConfig configures one centralized exchange venue.
type ExchangeConfig struct {
	Name         string        `mapstructure:"name"`
	Kind         string        `mapstructure:"kind"`
	BaseURL      string        `mapstructure:"base_url"`
	WebSocketURL string        `mapstructure:"websocket_url"`
	APIKey       string        `mapstructure:"api_key"`
	APISecret    string        `mapstructure:"api_secret"`
	RateLimitRPM int           `mapstructure:"rate_limit_rpm"`
	Timeout      time.Duration `mapstructure:"timeout"`
	TakerFee     float64       `mapstructure:"taker_fee"`
	Pairs        []string      `mapstructure:"pairs"`
	PriceSkew    float64       `mapstructure:"price_skew"`
}

// NetworkConfig configures one EVM network.
type NetworkConfig struct {
	Name            string        `mapstructure:"name"`
	ChainID         uint64        `mapstructure:"chain_id"`
	RPCURL          string        `mapstructure:"rpc_url"`
	NativeSymbol    string        `mapstructure:"native_symbol"`
	NativePriceUSD  float64       `mapstructure:"native_price_usd"`
	BlockTime       time.Duration `mapstructure:"block_time"`
	HighGasGwei     float64       `mapstructure:"high_gas_gwei"`
	FallbackGasGwei float64       `mapstructure:"fallback_gas_gwei"`
	SwapGasLimit    uint64        `mapstructure:"swap_gas_limit"`
	Tokens          []TokenConfig `mapstructure:"tokens"`
}

// NativePriceDecimal returns the USD price of the network's gas token.
func (c *NetworkConfig) NativePriceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.NativePriceUSD)
}

// TokenConfig is an ERC20 deployment on a network.
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
}

// DEXConfig configures one decentralized exchange deployment.
type DEXConfig struct {
	Name      string   `mapstructure:"name"`
	Network   string   `mapstructure:"network"`
	Kind      string   `mapstructure:"kind"`
	Factory   string   `mapstructure:"factory"`
	Router    string   `mapstructure:"router"`
	Fee       float64  `mapstructure:"fee"`
	Pairs     []string `mapstructure:"pairs"`
	PriceSkew float64  `mapstructure:"price_skew"`
	Liquidity float64  `mapstructure:"liquidity"`
}

// FactoryAddress returns the factory address as common.Address.
func (c *DEXConfig) FactoryAddress() common.Address {
	return common.HexToAddress(c.Factory)
}

// RouterAddress returns the router address as common.Address.
func (c *DEXConfig) RouterAddress() common.Address {
	return common.HexToAddress(c.Router)
}

// BridgeConfig is a reference record for a cross-network bridge.
type BridgeConfig struct {
	Name             string  `mapstructure:"name"`
	Source           string  `mapstructure:"source"`
	Destination      string  `mapstructure:"destination"`
	Contract         string  `mapstructure:"contract"`
	FeePct           float64 `mapstructure:"fee_pct"`
	EstimatedMinutes int     `mapstructure:"estimated_minutes"`
}

// FlashLoanConfig is a reference record for a flash-loan pool.
type FlashLoanConfig struct {
	Name       string   `mapstructure:"name"`
	Network    string   `mapstructure:"network"`
	Pool       string   `mapstructure:"pool"`
	Receiver   string   `mapstructure:"receiver"`
	FeePct     float64  `mapstructure:"fee_pct"`
	MaxLoanUSD float64  `mapstructure:"max_loan_usd"`
	Tokens     []string `mapstructure:"tokens"`
}

// StoreConfig selects the opportunity store backend.
type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig configures the redis store and publisher.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	Channel   string `mapstructure:"channel"`
	Publish   bool   `mapstructure:"publish"`
}

// PostgresConfig configures the postgres store.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// APIConfig configures the HTTP surfaces.
type APIConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Port       int  `mapstructure:"port"`
	HealthPort int  `mapstructure:"health_port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, defaults describe a paper deployment
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("engine.dry_run", "ARB_DRY_RUN")
	v.BindEnv("engine.wallet_address", "ARB_WALLET_ADDRESS")
	v.BindEnv("engine.scan_interval", "ARB_SCAN_INTERVAL")

	v.BindEnv("store.driver", "ARB_STORE_DRIVER")
	v.BindEnv("store.redis.addr", "ARB_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("store.redis.password", "ARB_REDIS_PASSWORD", "REDIS_PASSWORD")
	v.BindEnv("store.postgres.dsn", "ARB_POSTGRES_DSN", "DATABASE_URL")

	v.BindEnv("api.port", "ARB_API_PORT")

	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arbitrage-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("engine.scan_interval", "30s")
	v.SetDefault("engine.fetch_timeout", "5s")
	v.SetDefault("engine.fetch_concurrency", 8)
	v.SetDefault("engine.max_age", "5m")
	v.SetDefault("engine.dry_run", true)
	v.SetDefault("engine.wallet_address", "0x000000000000000000000000000000000000dEaD")
	v.SetDefault("engine.quote_currency", "USDT")
	v.SetDefault("engine.bridge_timeout", "30m")
	v.SetDefault("engine.bridge_poll_interval", "15s")
	v.SetDefault("engine.bridge_fee_pct", 0.001)
	v.SetDefault("engine.max_slippage", 0.005)

	v.SetDefault("risk.max_consecutive_losses", 3)
	v.SetDefault("risk.daily_loss_limit", 1000)
	v.SetDefault("risk.liquidity_multiple", 2)
	v.SetDefault("risk.reset_period", "24h")

	v.SetDefault("sizing.max_position", 10000)
	v.SetDefault("sizing.min_position", 100)
	v.SetDefault("sizing.fallback_balance", 1000)
	v.SetDefault("sizing.factors.simple", 1.0)
	v.SetDefault("sizing.factors.triangular", 0.8)
	v.SetDefault("sizing.factors.cross_dex", 0.7)
	v.SetDefault("sizing.factors.flash_loan", 0.5)
	v.SetDefault("sizing.factors.statistical", 0.6)

	v.SetDefault("detectors.default_risk", "medium")
	v.SetDefault("detectors.pair_risk", []map[string]any{
		{"pair": "BTC/USDT", "risk": "low"},
		{"pair": "ETH/USDT", "risk": "low"},
	})
	v.SetDefault("detectors.volume_share", 0.01)
	v.SetDefault("detectors.slippage_decay", 0.02)
	v.SetDefault("detectors.triangular_cycles", []map[string]any{
		{"venue": "paper-alpha", "assets": []string{"USDT", "BTC", "ETH"}},
	})
	v.SetDefault("detectors.triangular_start", 1000)
	v.SetDefault("detectors.pool_share", 0.05)
	v.SetDefault("detectors.flash_loan_share", 0.5)
	v.SetDefault("detectors.flash_loan_cap", 1000000)
	v.SetDefault("detectors.zscore_threshold", 2.0)
	v.SetDefault("detectors.zscore_window", 20)
	v.SetDefault("detectors.stat_base_size", 1000)
	v.SetDefault("detectors.stat_max_scale", 3)

	v.SetDefault("paper.seed", 42)
	v.SetDefault("paper.volatility", 0.004)
	v.SetDefault("paper.spread_bps", 5)
	v.SetDefault("paper.balance", 50000)
	v.SetDefault("paper.prices", []map[string]any{
		{"pair": "BTC/USDT", "price": 60000},
		{"pair": "ETH/USDT", "price": 3000},
		{"pair": "ETH/BTC", "price": 0.05},
	})
	v.SetDefault("exchanges", []map[string]any{
		{"name": "paper-alpha", "kind": KindPaper, "taker_fee": 0.001, "pairs": []string{"BTC/USDT", "ETH/USDT", "ETH/BTC"}},
		{"name": "paper-beta", "kind": KindPaper, "taker_fee": 0.001, "price_skew": 0.003, "pairs": []string{"BTC/USDT", "ETH/USDT"}},
	})
	v.SetDefault("networks", []map[string]any{
		{"name": "ethereum", "chain_id": 1, "native_symbol": "ETH", "native_price_usd": 3000, "block_time": "12s", "high_gas_gwei": 100, "fallback_gas_gwei": 20, "swap_gas_limit": 150000},
		{"name": "arbitrum", "chain_id": 42161, "native_symbol": "ETH", "native_price_usd": 3000, "block_time": "250ms", "high_gas_gwei": 5, "fallback_gas_gwei": 0.1, "swap_gas_limit": 700000},
	})
	v.SetDefault("dexes", []map[string]any{
		{"name": "paper-swap", "network": "ethereum", "kind": KindPaper, "fee": 0.003, "liquidity": 5000000, "pairs": []string{"ETH/USDT"}},
		{"name": "paper-sushi", "network": "ethereum", "kind": KindPaper, "fee": 0.003, "liquidity": 3000000, "price_skew": 0.012, "pairs": []string{"ETH/USDT"}},
		{"name": "paper-swap-arb", "network": "arbitrum", "kind": KindPaper, "fee": 0.003, "liquidity": 2000000, "price_skew": 0.01, "pairs": []string{"ETH/USDT"}},
	})
	v.SetDefault("bridges", []map[string]any{
		{"name": "canonical-arbitrum", "source": "ethereum", "destination": "arbitrum", "fee_pct": 0.001, "estimated_minutes": 15},
		{"name": "fast-exit", "source": "arbitrum", "destination": "ethereum", "fee_pct": 0.002, "estimated_minutes": 20},
	})
	v.SetDefault("flash_loans", []map[string]any{
		{"name": "aave-v3", "network": "ethereum", "fee_pct": 0.0005, "max_loan_usd": 5000000, "tokens": []string{"USDT"}},
	})

	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.key_prefix", "arb")
	v.SetDefault("store.redis.channel", "arb:opportunities")
	v.SetDefault("store.postgres.max_conns", 10)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.health_port", 8081)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "arbitrage-engine")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// normalize upper-cases symbols so lookups are case-insensitive regardless of
// how the source spelled them.
func (c *Config) normalize() {
	for i := range c.Detectors.PairRisk {
		c.Detectors.PairRisk[i].Pair = strings.ToUpper(c.Detectors.PairRisk[i].Pair)
	}
	for i := range c.Paper.Prices {
		c.Paper.Prices[i].Pair = strings.ToUpper(c.Paper.Prices[i].Pair)
	}
	for i := range c.Exchanges {
		upperAll(c.Exchanges[i].Pairs)
	}
	for i := range c.DEXes {
		upperAll(c.DEXes[i].Pairs)
	}
	for i := range c.FlashLoans {
		upperAll(c.FlashLoans[i].Tokens)
	}
	for i := range c.Detectors.TriangularCycles {
		upperAll(c.Detectors.TriangularCycles[i].Assets)
	}
	for i := range c.Networks {
		for j := range c.Networks[i].Tokens {
			c.Networks[i].Tokens[j].Symbol = strings.ToUpper(c.Networks[i].Tokens[j].Symbol)
		}
	}
	c.Engine.QuoteCurrency = strings.ToUpper(c.Engine.QuoteCurrency)
}

func upperAll(ss []string) {
	for i := range ss {
		ss[i] = strings.ToUpper(ss[i])
	}
}

// Network returns the named network config.
func (c *Config) Network(name string) (NetworkConfig, bool) {
	for _, n := range c.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return NetworkConfig{}, false
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.ScanInterval <= 0 {
		return fmt.Errorf("engine.scan_interval must be positive")
	}
	if c.Engine.FetchTimeout <= 0 {
		return fmt.Errorf("engine.fetch_timeout must be positive")
	}
	if c.Risk.MaxConsecutiveLosses <= 0 {
		return fmt.Errorf("risk.max_consecutive_losses must be positive")
	}
	if c.Risk.DailyLossLimit <= 0 {
		return fmt.Errorf("risk.daily_loss_limit must be positive")
	}
	if c.Sizing.MinPosition <= 0 || c.Sizing.MaxPosition < c.Sizing.MinPosition {
		return fmt.Errorf("sizing: need 0 < min_position <= max_position")
	}
	for _, f := range c.Sizing.Factors.list() {
		if f.value <= 0 || f.value > 1 {
			return fmt.Errorf("sizing.factors.%s must be in (0, 1], got %v", f.name, f.value)
		}
	}
	if c.Detectors.SlippageDecay < 0 || c.Detectors.SlippageDecay >= 1 {
		return fmt.Errorf("detectors.slippage_decay must be in [0, 1), got %v", c.Detectors.SlippageDecay)
	}
	if !isRisk(c.Detectors.DefaultRisk) {
		return fmt.Errorf("invalid detectors.default_risk: %s", c.Detectors.DefaultRisk)
	}
	for _, pr := range c.Detectors.PairRisk {
		if !isRisk(pr.Risk) {
			return fmt.Errorf("invalid risk %q for pair %s", pr.Risk, pr.Pair)
		}
	}
	for _, tc := range c.Detectors.TriangularCycles {
		if len(tc.Assets) != 3 {
			return fmt.Errorf("triangular cycle on %s needs exactly 3 assets", tc.Venue)
		}
	}

	seen := make(map[string]bool)
	for _, ex := range c.Exchanges {
		if ex.Name == "" {
			return fmt.Errorf("exchange name is required")
		}
		if seen[ex.Name] {
			return fmt.Errorf("duplicate venue name: %s", ex.Name)
		}
		seen[ex.Name] = true
		switch ex.Kind {
		case KindPaper:
		case KindREST:
			if ex.BaseURL == "" {
				return fmt.Errorf("exchange %s: base_url is required", ex.Name)
			}
		default:
			return fmt.Errorf("exchange %s: unknown kind %q", ex.Name, ex.Kind)
		}
	}

	networks := make(map[string]bool)
	for _, n := range c.Networks {
		networks[n.Name] = true
		for _, tok := range n.Tokens {
			if !common.IsHexAddress(tok.Address) {
				return fmt.Errorf("network %s: invalid token address for %s", n.Name, tok.Symbol)
			}
		}
	}

	for _, d := range c.DEXes {
		if !networks[d.Network] {
			return fmt.Errorf("dex %s: unknown network %q", d.Name, d.Network)
		}
		switch d.Kind {
		case KindPaper:
		case KindUniswapV2:
			if !common.IsHexAddress(d.Factory) || !common.IsHexAddress(d.Router) {
				return fmt.Errorf("dex %s: invalid factory or router address", d.Name)
			}
		default:
			return fmt.Errorf("dex %s: unknown kind %q", d.Name, d.Kind)
		}
	}

	for _, b := range c.Bridges {
		if !networks[b.Source] || !networks[b.Destination] {
			return fmt.Errorf("bridge %s: unknown network", b.Name)
		}
	}
	for _, f := range c.FlashLoans {
		if !networks[f.Network] {
			return fmt.Errorf("flash loan provider %s: unknown network %q", f.Name, f.Network)
		}
	}

	switch c.Store.Driver {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	return nil
}

func isRisk(s string) bool {
	return s == "low" || s == "medium" || s == "high"
}
