// Package monitor implements the monitor bounded context: it watches
// blocks for watchlist activity and turns matches into swap requests.
package monitor

import (
	"context"
	"fmt"

	blockchainDI "github.com/fd1az/swap-sentinel/business/blockchain/di"
	"github.com/fd1az/swap-sentinel/business/monitor/app"
	monitorDI "github.com/fd1az/swap-sentinel/business/monitor/di"
	"github.com/fd1az/swap-sentinel/business/monitor/domain"
	"github.com/fd1az/swap-sentinel/business/monitor/infra"
	swapDI "github.com/fd1az/swap-sentinel/business/swap/di"
	swapDomain "github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/asset"
	"github.com/fd1az/swap-sentinel/internal/config"
	"github.com/fd1az/swap-sentinel/internal/di"
	"github.com/fd1az/swap-sentinel/internal/logger"
	"github.com/fd1az/swap-sentinel/internal/monolith"
)

// Module implements the monitor bounded context.
type Module struct{}

// RegisterServices registers all monitor services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, monitorDI.Monitor, func(sr di.ServiceRegistry) *app.Monitor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		watch, err := domain.NewWatchlist(cfg.Monitor.WatchAddresses)
		if err != nil {
			panic("invalid watchlist: " + err.Error())
		}
		classifier, err := domain.NewClassifier(watch, knownTokens(registry, cfg.Ethereum.ChainID))
		if err != nil {
			panic("failed to create classifier: " + err.Error())
		}
		rules, err := reactionRules(cfg.Monitor.Reactions)
		if err != nil {
			panic("invalid reaction rules: " + err.Error())
		}

		monCfg := app.DefaultConfig()
		if cfg.Monitor.DedupTTL > 0 {
			monCfg.DedupTTL = cfg.Monitor.DedupTTL
		}
		if cfg.Monitor.MaxConcurrentSwaps > 0 {
			monCfg.MaxConcurrentSwaps = int64(cfg.Monitor.MaxConcurrentSwaps)
		}
		if cfg.Monitor.SwapTimeout > 0 {
			monCfg.SwapTimeout = cfg.Monitor.SwapTimeout
		}

		var observer app.Observer
		if cfg.TUIMode {
			observer = infra.NewTUIObserver()
		}

		mon, err := app.NewMonitor(
			blockchainDI.GetBlockchainService(sr),
			swapDI.GetService(sr),
			classifier,
			rules,
			monCfg,
			observer,
			log,
		)
		if err != nil {
			panic("failed to create monitor: " + err.Error())
		}
		return mon
	})

	return nil
}

func knownTokens(registry *asset.Registry, chainID uint64) []domain.Token {
	assets := registry.Tokens(chainID)
	out := make([]domain.Token, 0, len(assets))
	for _, a := range assets {
		out = append(out, domain.Token{Address: a.Address(), Symbol: a.Symbol()})
	}
	return out
}

func reactionRules(cfgs []config.ReactionConfig) ([]domain.ReactionRule, error) {
	rules := make([]domain.ReactionRule, 0, len(cfgs))
	for i, rc := range cfgs {
		rule, err := domain.NewReactionRule(rc.Kind, rc.Token, rc.Direction, swapDomain.SwapParams{
			AssetIn:         rc.AssetIn,
			AssetOut:        rc.AssetOut,
			AmountIn:        rc.Amount,
			SlippagePercent: rc.Slippage,
			DryRun:          rc.DryRun,
		})
		if err != nil {
			return nil, fmt.Errorf("reaction %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Startup validates the monitor configuration. The block loop itself is
// started by the caller once every module is up.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()

	if !cfg.Monitor.Enabled {
		log.Info(ctx, "monitor module started", "enabled", false)
		return nil
	}
	if _, err := reactionRules(cfg.Monitor.Reactions); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	// Resolve now so a bad watchlist fails startup instead of the first block.
	monitorDI.GetMonitor(mono.Services())
	log.Info(ctx, "monitor module started",
		"enabled", true,
		"watch_addresses", len(cfg.Monitor.WatchAddresses),
		"reactions", len(cfg.Monitor.Reactions))
	return nil
}

// Shutdown stops the block loop and waits for in-flight swaps.
func (m *Module) Shutdown(ctx context.Context, mono monolith.Monolith) error {
	if !mono.Config().Monitor.Enabled {
		return nil
	}
	return monitorDI.GetMonitor(mono.Services()).Stop()
}
