// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/arbitrage-engine/internal/asset"
	"github.com/fd1az/arbitrage-engine/internal/config"
	"github.com/fd1az/arbitrage-engine/internal/di"
	"github.com/fd1az/arbitrage-engine/internal/health"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

// EthClients maps network name to an RPC client. Networks without an
// rpc_url are absent.
type EthClients map[string]*ethclient.Client

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	EthClients() EthClients
	AssetRegistry() *asset.Registry
	Health() *health.Server
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	ethClients    EthClients
	assetRegistry *asset.Registry
	health        *health.Server
	container     di.Container
}

// New dials every configured network and seeds the container with the shared
// services under the names "config", "logger", "ethClients" and
// "assetRegistry". Modules register their readiness checks on hs.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface, hs *health.Server) (*app, error) {
	clients := make(EthClients)
	for _, n := range cfg.Networks {
		if n.RPCURL == "" {
			continue
		}
		c, err := ethclient.DialContext(ctx, n.RPCURL)
		if err != nil {
			closeAll(clients)
			return nil, fmt.Errorf("dial %s rpc: %w", n.Name, err)
		}
		clients[n.Name] = c
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		closeAll(clients)
		return nil, err
	}

	container := di.NewContainer()
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("ethClients", clients)
	container.Register("assetRegistry", registry)

	log.Info(ctx, "monolith initialised", "rpc_networks", len(clients), "assets", registry.Count())

	return &app{
		config:        cfg,
		logger:        log,
		ethClients:    clients,
		assetRegistry: registry,
		health:        hs,
		container:     container,
	}, nil
}

// buildRegistry extends the well-known assets with the tokens and native
// coins declared per network.
func buildRegistry(cfg *config.Config) (*asset.Registry, error) {
	registry := asset.DefaultRegistry()
	for _, n := range cfg.Networks {
		if n.ChainID == 0 {
			continue
		}
		if _, ok := registry.Native(n.ChainID); !ok && n.NativeSymbol != "" {
			if err := registry.Register(asset.NewNative(n.ChainID, n.NativeSymbol)); err != nil {
				return nil, err
			}
		}
		for _, tok := range n.Tokens {
			if _, ok := registry.Token(n.ChainID, tok.Symbol); ok {
				continue
			}
			a := asset.NewToken(n.ChainID, common.HexToAddress(tok.Address), tok.Symbol, tok.Decimals)
			if err := registry.Register(a); err != nil {
				return nil, fmt.Errorf("network %s: %w", n.Name, err)
			}
		}
	}
	return registry, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) EthClients() EthClients {
	return a.ethClients
}

func (a *app) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *app) Health() *health.Server {
	return a.health
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all RPC clients.
func (a *app) Close() error {
	closeAll(a.ethClients)
	return nil
}

func closeAll(clients EthClients) {
	for _, c := range clients {
		c.Close()
	}
}
