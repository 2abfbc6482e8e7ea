package metrics

import (
	metric2 "go.opentelemetry.io/otel/sdk/metric"
)

type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OtelCollector      Provider = "customOtelCollector"
)

// NewOtelCollectorConfig pushes metrics to an OTLP/gRPC collector at url.
func NewOtelCollectorConfig(url string, headers map[string]string, insecure bool) ProviderCfg {
	return ProviderCfg{
		Provider: OtelCollector,
		Endpoint: url,
		Headers:  headers,
		Insecure: insecure,
	}
}

type Config struct {
	ServiceName string
	Provider    []ProviderCfg
	Views       []metric2.View
}

type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

type OptionFn func(config Config) Config

func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Provider = append(config.Provider, provider)
		return config
	}
}

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName
		return config
	}
}

// WithLatencyBuckets overrides the bucket boundaries of the named histogram.
// SDK default boundaries span 0 to 10000.
func WithLatencyBuckets(instrument string, bounds ...float64) OptionFn {
	return func(config Config) Config {
		config.Views = append(config.Views, metric2.NewView(
			metric2.Instrument{Name: instrument},
			metric2.Stream{Aggregation: metric2.AggregationExplicitBucketHistogram{Boundaries: bounds}},
		))
		return config
	}
}

// EngineLatencyBuckets are the bucket overrides for the scan loop and pool
// reads.
func EngineLatencyBuckets() []OptionFn {
	return []OptionFn{
		WithLatencyBuckets("arbitrage_cycle_duration_seconds", 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
		WithLatencyBuckets("dex_pool_read_latency_ms", 5, 10, 25, 50, 100, 250, 500, 1000),
	}
}

type PromServerConfig struct {
	port string
}

type PromOptionFn func(config PromServerConfig) PromServerConfig

func WithPort(port string) PromOptionFn {
	return func(config PromServerConfig) PromServerConfig {
		config.port = port
		return config
	}
}
