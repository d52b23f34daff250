package asset

import "github.com/ethereum/go-ethereum/common"

const (
	ChainIDEthereum = 1
	ChainIDSepolia  = 11155111
)

// Ethereum mainnet token addresses.
var (
	AddrUSDCEthereum = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrUSDTEthereum = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	AddrDAIEthereum  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	AddrWETHEthereum = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrWBTCEthereum = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

// Sepolia token addresses.
var (
	AddrWETHSepolia = common.HexToAddress("0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14")
	AddrUSDCSepolia = common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
)

var (
	ETH  = NewAsset(NewNativeAssetID(ChainIDEthereum), "ETH", "Ethereum", 18)
	USDC = NewAsset(NewTokenAssetID(ChainIDEthereum, AddrUSDCEthereum), "USDC", "USD Coin", 6)
	USDT = NewAsset(NewTokenAssetID(ChainIDEthereum, AddrUSDTEthereum), "USDT", "Tether USD", 6)
	DAI  = NewAsset(NewTokenAssetID(ChainIDEthereum, AddrDAIEthereum), "DAI", "Dai Stablecoin", 18)
	WETH = NewAsset(NewTokenAssetID(ChainIDEthereum, AddrWETHEthereum), "WETH", "Wrapped Ether", 18)
	WBTC = NewAsset(NewTokenAssetID(ChainIDEthereum, AddrWBTCEthereum), "WBTC", "Wrapped Bitcoin", 8)

	SepoliaETH  = NewAsset(NewNativeAssetID(ChainIDSepolia), "ETH", "Sepolia Ether", 18)
	SepoliaWETH = NewAsset(NewTokenAssetID(ChainIDSepolia, AddrWETHSepolia), "WETH", "Wrapped Ether", 18)
	SepoliaUSDC = NewAsset(NewTokenAssetID(ChainIDSepolia, AddrUSDCSepolia), "USDC", "USD Coin", 6)
)

// DefaultRegistry holds the well-known assets of mainnet and Sepolia.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(ETH, USDC, USDT, DAI, WETH, WBTC)
	r.MustRegister(SepoliaETH, SepoliaWETH, SepoliaUSDC)
	return r
}

// NewToken builds an ERC20 asset for operator-configured tokens.
func NewToken(chainID uint64, addr common.Address, symbol string, decimals uint8) *Asset {
	return NewAsset(NewTokenAssetID(chainID, addr), symbol, symbol, decimals)
}
