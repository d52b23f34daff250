// Package swap implements the swap execution bounded context: the safety
// pipeline between a trade intent and a confirmed on-chain swap.
package swap

import (
	"context"

	blockchainDI "github.com/fd1az/swap-sentinel/business/blockchain/di"
	pricingDI "github.com/fd1az/swap-sentinel/business/pricing/di"
	swapApp "github.com/fd1az/swap-sentinel/business/swap/app"
	swapDI "github.com/fd1az/swap-sentinel/business/swap/di"
	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/business/swap/infra"
	"github.com/fd1az/swap-sentinel/business/swap/infra/uniswap"
	"github.com/fd1az/swap-sentinel/internal/config"
	"github.com/fd1az/swap-sentinel/internal/di"
	"github.com/fd1az/swap-sentinel/internal/logger"
	"github.com/fd1az/swap-sentinel/internal/monolith"
)

// Module implements the swap bounded context.
type Module struct{}

// RegisterServices registers all swap services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, swapDI.Router, func(sr di.ServiceRegistry) swapApp.RouterEncoder {
		cfg := sr.Get("config").(*config.Config)
		router, err := uniswap.NewRouter(cfg.Uniswap.RouterAddressHex())
		if err != nil {
			panic("failed to create router encoder: " + err.Error())
		}
		return router
	})

	di.RegisterToken(c, swapDI.Reporter, func(sr di.ServiceRegistry) swapApp.ResultSink {
		cfg := sr.Get("config").(*config.Config)
		if cfg.TUIMode {
			return infra.NewTUIReporter(func() domain.Statistics {
				return swapDI.GetService(sr).Stats()
			})
		}
		return infra.NewConsoleReporter()
	})

	di.RegisterToken(c, swapDI.Service, func(sr di.ServiceRegistry) *swapApp.Service {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		chain := blockchainDI.GetChainClient(sr)
		wallet := blockchainDI.GetWallet(sr)
		router := swapDI.GetRouter(sr)

		limits := riskLimits(cfg.Risk)
		governor := swapApp.NewRiskGovernor(limits, log)

		deps := swapApp.Deps{
			Validator: swapApp.NewValidator(infra.NewAssetDecimals(blockchainDI.GetAssetResolver(sr)), cfg.Uniswap.WETHAddressHex()),
			Governor:  governor,
			Verifier:  swapApp.NewBalanceAllowanceVerifier(chain),
			Quotes:    swapApp.NewSwapQuoteCalculator(pricingDI.GetPricingService(sr)),
			Builder:   swapApp.NewTransactionBuilder(router, cfg.Uniswap.WETHAddressHex(), limits.DeadlineMinutes),
			Simulator: swapApp.NewSimulator(chain, governor, cfg.Wallet.GasMarginPercent),
			Stats:     swapApp.NewStatisticsRecorder(),
			Router:    router.Address(),
			ConfigErr: wallet.Err,
		}

		execCfg := swapApp.ExecutorConfig{
			Enabled:             limits.RealExecutionEnabled,
			ConfirmationTimeout: cfg.Wallet.ConfirmationTimeout,
			PollInterval:        cfg.Wallet.PollInterval,
		}
		if wallet.Ready() {
			deps.Signer = wallet.Signer
			deps.Executor = swapApp.NewExecutor(chain, wallet.Signer, wallet.Nonces, execCfg, log)
		} else {
			deps.Executor = swapApp.NewExecutor(chain, nil, nil, execCfg, log)
		}

		svc, err := swapApp.NewService(deps, log)
		if err != nil {
			panic("failed to create swap service: " + err.Error())
		}
		return svc
	})

	return nil
}

func riskLimits(cfg config.RiskConfig) domain.RiskLimits {
	return domain.RiskLimits{
		MaxSlippagePercent:        cfg.MaxSlippagePercent,
		MaxTransactionValueNative: cfg.MaxTransactionValueDecimal(),
		MaxGasPriceWei:            cfg.MaxGasPriceWei(),
		DeadlineMinutes:           cfg.DeadlineMinutes,
		RealExecutionEnabled:      cfg.EnableRealTrading,
	}
}

// Startup wires the result reporter and logs the active limits.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	svc := swapDI.GetService(mono.Services())
	svc.AddSink(swapDI.GetReporter(mono.Services()))

	limits := svc.Governor().Limits()
	if err := svc.Configured(); err != nil {
		log.Warn(ctx, "swap pipeline disabled until a signing key is configured", "error", err)
	}
	if limits.RealExecutionEnabled {
		log.Warn(ctx, "REAL TRADING ENABLED: confirmed swaps move funds")
	}

	log.Info(ctx, "swap module started",
		"signer", svc.SignerAddress().Hex(),
		"max_slippage_percent", limits.MaxSlippagePercent,
		"max_transaction_value", limits.MaxTransactionValueNative.String(),
		"deadline_minutes", limits.DeadlineMinutes,
		"real_trading", limits.RealExecutionEnabled)
	return nil
}
