// Package pricing implements the pricing bounded context: on-chain quotes
// and the reference price cross-check.
package pricing

import (
	"context"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	blockchainDI "github.com/fd1az/swap-sentinel/business/blockchain/di"
	"github.com/fd1az/swap-sentinel/business/pricing/app"
	pricingDI "github.com/fd1az/swap-sentinel/business/pricing/di"
	"github.com/fd1az/swap-sentinel/business/pricing/infra/binance"
	"github.com/fd1az/swap-sentinel/business/pricing/infra/uniswap"
	"github.com/fd1az/swap-sentinel/internal/config"
	"github.com/fd1az/swap-sentinel/internal/di"
	"github.com/fd1az/swap-sentinel/internal/logger"
	"github.com/fd1az/swap-sentinel/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.ReferenceProvider, func(sr di.ServiceRegistry) *binance.Provider {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		providerCfg := binance.DefaultProviderConfig(referenceSymbols(cfg.Pricing))
		providerCfg.WebSocketURL = cfg.Pricing.BinanceWSURL
		providerCfg.HTTPURL = cfg.Pricing.BinanceRESTURL
		if cfg.Pricing.StaleTimeout > 0 {
			providerCfg.StaleTimeout = cfg.Pricing.StaleTimeout
		}

		provider, err := binance.NewProvider(providerCfg, log)
		if err != nil {
			panic("failed to create binance provider: " + err.Error())
		}
		return provider
	})

	di.RegisterToken(c, pricingDI.PriceOracle, func(sr di.ServiceRegistry) app.PriceOracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)

		provider, err := uniswap.NewProvider(ethClient, cfg.Uniswap, log)
		if err != nil {
			panic("failed to create uniswap provider: " + err.Error())
		}
		return provider
	})

	di.RegisterToken(c, pricingDI.PricingService, func(sr di.ServiceRegistry) *app.PricingService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		svcCfg := app.Config{
			ReferenceCheck:  cfg.Pricing.ReferenceCheck,
			MaxDeviationBps: decimal.NewFromFloat(cfg.Pricing.MaxDeviationBps),
			WrappedNative:   cfg.Uniswap.WETHAddressHex(),
		}

		var reference app.ReferencePriceSource
		if cfg.Pricing.ReferenceCheck {
			reference = pricingDI.GetReferenceProvider(sr)
		}

		svc, err := app.NewPricingService(svcCfg,
			pricingDI.GetPriceOracle(sr),
			reference,
			blockchainDI.GetAssetResolver(sr),
			cfg.Pricing.Symbol,
			log,
		)
		if err != nil {
			panic("failed to create pricing service: " + err.Error())
		}
		return svc
	})

	return nil
}

// referenceSymbols returns the distinct exchange symbols in the pair map.
func referenceSymbols(cfg config.PricingConfig) []string {
	seen := make(map[string]bool, len(cfg.Symbols))
	out := make([]string, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Startup initializes the pricing module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	if !cfg.Pricing.ReferenceCheck || len(cfg.Pricing.Symbols) == 0 {
		log.Info(ctx, "pricing module started", "reference_check", false)
		return nil
	}

	// Don't block startup on Binance; quotes fall back to REST meanwhile.
	ref := pricingDI.GetReferenceProvider(mono.Services())
	go func() {
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := ref.Connect(connectCtx); err != nil {
			log.Warn(ctx, "binance stream unavailable, using REST fallback", "error", err)
		}
	}()

	log.Info(ctx, "pricing module started",
		"reference_check", true,
		"max_deviation_bps", cfg.Pricing.MaxDeviationBps)
	return nil
}

// Shutdown closes the Binance stream.
func (m *Module) Shutdown(_ context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	if !cfg.Pricing.ReferenceCheck || len(cfg.Pricing.Symbols) == 0 {
		return nil
	}
	return pricingDI.GetReferenceProvider(mono.Services()).Close()
}
