// Package di holds the blockchain context's service tokens.
package di

import (
	"github.com/fd1az/swap-sentinel/business/blockchain/app"
	"github.com/fd1az/swap-sentinel/business/blockchain/infra/ethereum"
	"github.com/fd1az/swap-sentinel/internal/asset"
	"github.com/fd1az/swap-sentinel/internal/di"
)

// Used by other modules.
var (
	BlockchainService = di.NewToken[*app.BlockchainService]("blockchain.BlockchainService")
	ChainClient       = di.NewToken[*ethereum.ChainClient]("blockchain.ChainClient")
	Wallet            = di.NewToken[*app.Wallet]("blockchain.Wallet")
	AssetResolver     = di.NewToken[*asset.Resolver]("blockchain.AssetResolver")
)

// Module-private.
var (
	HeadSource = di.NewToken[app.HeadSource]("blockchain:headSource")
	GasOracle  = di.NewToken[*ethereum.GasOracle]("blockchain:gasOracle")
)

func GetBlockchainService(c di.ServiceRegistry) *app.BlockchainService {
	return di.GetToken(c, BlockchainService)
}

func GetChainClient(c di.ServiceRegistry) *ethereum.ChainClient { return di.GetToken(c, ChainClient) }

func GetWallet(c di.ServiceRegistry) *app.Wallet { return di.GetToken(c, Wallet) }

func GetAssetResolver(c di.ServiceRegistry) *asset.Resolver { return di.GetToken(c, AssetResolver) }

func GetHeadSource(c di.ServiceRegistry) app.HeadSource { return di.GetToken(c, HeadSource) }

func GetGasOracle(c di.ServiceRegistry) *ethereum.GasOracle { return di.GetToken(c, GasOracle) }
