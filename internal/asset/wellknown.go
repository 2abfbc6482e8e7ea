package asset

import "github.com/ethereum/go-ethereum/common"

const (
	ChainIDEthereum = 1
	ChainIDOptimism = 10
	ChainIDBSC      = 56
	ChainIDPolygon  = 137
	ChainIDBase     = 8453
	ChainIDArbitrum = 42161
)

// Well-known deployments on Ethereum mainnet.
var (
	AddrUSDCEthereum = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrUSDTEthereum = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	AddrWETHEthereum = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrWBTCEthereum = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

// Well-known deployments on Arbitrum One.
var (
	AddrUSDCArbitrum = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	AddrUSDTArbitrum = common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9")
	AddrWETHArbitrum = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
)

var (
	ETH  = NewNative(ChainIDEthereum, "ETH")
	USDC = NewToken(ChainIDEthereum, AddrUSDCEthereum, "USDC", 6)
	USDT = NewToken(ChainIDEthereum, AddrUSDTEthereum, "USDT", 6)
	WETH = NewToken(ChainIDEthereum, AddrWETHEthereum, "WETH", 18)
	WBTC = NewToken(ChainIDEthereum, AddrWBTCEthereum, "WBTC", 8)

	ArbETH  = NewNative(ChainIDArbitrum, "ETH")
	ArbUSDC = NewToken(ChainIDArbitrum, AddrUSDCArbitrum, "USDC", 6)
	ArbUSDT = NewToken(ChainIDArbitrum, AddrUSDTArbitrum, "USDT", 6)
	ArbWETH = NewToken(ChainIDArbitrum, AddrWETHArbitrum, "WETH", 18)
)

// DefaultRegistry returns a registry pre-populated with well-known assets.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []*Asset{ETH, USDC, USDT, WETH, WBTC, ArbETH, ArbUSDC, ArbUSDT, ArbWETH} {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}
