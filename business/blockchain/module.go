// Package blockchain implements the blockchain bounded context for Ethereum integration.
package blockchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/swap-sentinel/business/blockchain/app"
	blockchainDI "github.com/fd1az/swap-sentinel/business/blockchain/di"
	"github.com/fd1az/swap-sentinel/business/blockchain/infra/ethereum"
	"github.com/fd1az/swap-sentinel/internal/asset"
	"github.com/fd1az/swap-sentinel/internal/config"
	"github.com/fd1az/swap-sentinel/internal/di"
	"github.com/fd1az/swap-sentinel/internal/logger"
	"github.com/fd1az/swap-sentinel/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.HeadSource, func(sr di.ServiceRegistry) app.HeadSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		subCfg := ethereum.DefaultSubscriberConfig(cfg.Ethereum.WebSocketURL, cfg.Ethereum.HTTPURL)
		if cfg.Ethereum.InitialBackoff > 0 {
			subCfg.Reconnect.InitialInterval = cfg.Ethereum.InitialBackoff
		}
		if cfg.Ethereum.MaxBackoff > 0 {
			subCfg.Reconnect.MaxInterval = cfg.Ethereum.MaxBackoff
		}
		if cfg.Ethereum.MaxReconnects > 0 {
			subCfg.Reconnect.MaxAttempts = uint(cfg.Ethereum.MaxReconnects)
		}
		sub, err := ethereum.NewSubscriber(subCfg, log)
		if err != nil {
			panic("failed to create subscriber: " + err.Error())
		}
		return sub
	})

	di.RegisterToken(c, blockchainDI.GasOracle, func(sr di.ServiceRegistry) *ethereum.GasOracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		oracleCfg := ethereum.DefaultGasOracleConfig()
		if cfg.Ethereum.GasCacheTTL > 0 {
			oracleCfg.CacheTTL = cfg.Ethereum.GasCacheTTL
		}
		oracle, err := ethereum.NewGasOracle(client, oracleCfg, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, blockchainDI.ChainClient, func(sr di.ServiceRegistry) *ethereum.ChainClient {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		cc, err := ethereum.NewChainClient(client, new(big.Int).SetUint64(cfg.Ethereum.ChainID),
			blockchainDI.GetGasOracle(sr), log)
		if err != nil {
			panic("failed to create chain client: " + err.Error())
		}
		return cc
	})

	di.RegisterToken(c, blockchainDI.AssetResolver, func(sr di.ServiceRegistry) *asset.Resolver {
		cfg := sr.Get("config").(*config.Config)
		registry := sr.Get("assetRegistry").(*asset.Registry)
		return asset.NewResolver(registry, cfg.Ethereum.ChainID, blockchainDI.GetChainClient(sr))
	})

	// A bad or missing key is not fatal; the swap module reports it per request.
	di.RegisterToken(c, blockchainDI.Wallet, func(sr di.ServiceRegistry) *app.Wallet {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		signer, err := ethereum.NewSigner(cfg.Wallet.PrivateKey, new(big.Int).SetUint64(cfg.Ethereum.ChainID))
		if err != nil {
			return &app.Wallet{Err: err}
		}
		nonces := app.NewNonceAllocator(blockchainDI.GetChainClient(sr), signer.Address(), log)
		return &app.Wallet{Signer: signer, Nonces: nonces}
	})

	di.RegisterToken(c, blockchainDI.BlockchainService, func(sr di.ServiceRegistry) *app.BlockchainService {
		return app.NewBlockchainService(
			blockchainDI.GetHeadSource(sr),
			blockchainDI.GetGasOracle(sr),
			blockchainDI.GetChainClient(sr),
		)
	})

	return nil
}

// Startup initializes the blockchain module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	cc := blockchainDI.GetChainClient(mono.Services())
	id, err := cc.ChainID(ctx)
	if err != nil {
		log.Error(ctx, "failed to read chain id", "error", err)
	} else if id.Uint64() != cfg.Ethereum.ChainID {
		return fmt.Errorf("node serves chain %s but ethereum.chain_id is %d", id, cfg.Ethereum.ChainID)
	}

	wallet := blockchainDI.GetWallet(mono.Services())
	if wallet.Ready() {
		log.Info(ctx, "wallet loaded", "address", wallet.Signer.Address().Hex())
	} else {
		log.Warn(ctx, "no usable signing key; swaps will be rejected", "error", wallet.Err)
	}

	// Heads stream only once the monitor subscribes.
	st := blockchainDI.GetBlockchainService(mono.Services()).Status(ctx)
	log.Info(ctx, "blockchain module started", "head", st.Head, "gas_gwei", st.GasGwei)
	return nil
}

// Shutdown closes the head subscription, then the RPC-backed adapters.
func (m *Module) Shutdown(_ context.Context, mono monolith.Monolith) error {
	sr := mono.Services()
	var errs []error
	if c, ok := blockchainDI.GetHeadSource(sr).(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs,
		blockchainDI.GetChainClient(sr).Close(),
		blockchainDI.GetGasOracle(sr).Close(),
	)
	return errors.Join(errs...)
}
