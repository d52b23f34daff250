// Package monolith wires bounded-context modules around shared
// infrastructure and runs their lifecycle.
package monolith

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/swap-sentinel/internal/asset"
	"github.com/fd1az/swap-sentinel/internal/config"
	"github.com/fd1az/swap-sentinel/internal/di"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

// Monolith is what a module sees of the process during Startup and
// Shutdown.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	EthClient() *ethclient.Client
	AssetRegistry() *asset.Registry
	Services() di.ServiceRegistry
}

// Module is a bounded context.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// Stopper is implemented by modules that hold goroutines, connections or
// queues past Startup.
type Stopper interface {
	Shutdown(context.Context, Monolith) error
}

// App owns the shared services and the started modules.
type App struct {
	config    *config.Config
	logger    logger.LoggerInterface
	ethClient *ethclient.Client
	assets    *asset.Registry
	container di.Container

	mu      sync.Mutex
	started []Module
}

var _ Monolith = (*App)(nil)

// New dials the HTTP endpoint and registers the shared services: config,
// logger, ethClient and assetRegistry.
func New(cfg *config.Config, log logger.LoggerInterface) (*App, error) {
	eth, err := ethclient.Dial(cfg.Ethereum.HTTPURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Ethereum.HTTPURL, err)
	}

	assets := asset.DefaultRegistry()
	if err := registerTokens(assets, cfg.Ethereum.ChainID, cfg.Monitor.Tokens); err != nil {
		eth.Close()
		return nil, err
	}

	a := newApp(cfg, log, di.NewContainer())
	a.ethClient, a.assets = eth, assets
	a.container.Register("ethClient", eth)
	a.container.Register("assetRegistry", assets)
	return a, nil
}

func newApp(cfg *config.Config, log logger.LoggerInterface, c di.Container) *App {
	c.Register("config", cfg)
	c.Register("logger", log)
	return &App{config: cfg, logger: log, container: c}
}

// registerTokens adds configured tokens the registry does not know yet.
func registerTokens(r *asset.Registry, chainID uint64, tokens []config.TokenConfig) error {
	for _, t := range tokens {
		addr := common.HexToAddress(t.Address)
		if _, ok := r.GetToken(chainID, addr); ok {
			continue
		}
		if t.Decimals > 36 {
			return fmt.Errorf("token %s: decimals %d out of range", t.Symbol, t.Decimals)
		}
		if err := r.Register(asset.NewToken(chainID, addr, t.Symbol, t.Decimals)); err != nil {
			return fmt.Errorf("register token %s: %w", t.Symbol, err)
		}
	}
	return nil
}

func (a *App) Config() *config.Config { return a.config }
func (a *App) Logger() logger.LoggerInterface { return a.logger }
func (a *App) EthClient() *ethclient.Client { return a.ethClient }
func (a *App) AssetRegistry() *asset.Registry { return a.assets }
func (a *App) Services() di.ServiceRegistry { return a.container }

// RegisterModules lets each module add its DI factories.
func (a *App) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return fmt.Errorf("register %T: %w", m, err)
		}
	}
	return nil
}

// StartModules runs Startup in order and stops at the first failure.
// Modules that started are remembered for StopModules.
func (a *App) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
		a.mu.Lock()
		a.started = append(a.started, m)
		a.mu.Unlock()
	}
	return nil
}

// StopModules shuts started modules down in reverse start order. Every
// Stopper is called even if an earlier one fails.
func (a *App) StopModules(ctx context.Context) error {
	a.mu.Lock()
	started := a.started
	a.started = nil
	a.mu.Unlock()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		s, ok := started[i].(Stopper)
		if !ok {
			continue
		}
		if err := s.Shutdown(ctx, a); err != nil {
			a.logger.Warn(ctx, "module shutdown failed", "module", fmt.Sprintf("%T", started[i]), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the shared HTTP client.
func (a *App) Close() error {
	if a.ethClient != nil {
		a.ethClient.Close()
	}
	return nil
}
