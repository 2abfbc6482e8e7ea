// Package asset models on-chain assets per network. Raw quantities are kept
// as big.Int in the token's smallest unit; decimal.Decimal is only produced at
// the boundary where prices are compared.
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AssetID identifies an asset by chain and contract address. Native coins
// use the zero address. The symbol is metadata, not identity.
type AssetID struct {
	chainID uint64
	address common.Address
}

// NewNativeAssetID creates the AssetID of a chain's gas coin.
func NewNativeAssetID(chainID uint64) AssetID {
	return AssetID{chainID: chainID}
}

// NewTokenAssetID creates the AssetID of an ERC20 deployment.
func NewTokenAssetID(chainID uint64, addr common.Address) AssetID {
	if addr == (common.Address{}) {
		panic("asset: token address cannot be zero, use NewNativeAssetID")
	}
	return AssetID{chainID: chainID, address: addr}
}

func (id AssetID) ChainID() uint64           { return id.chainID }
func (id AssetID) Address() common.Address   { return id.address }
func (id AssetID) IsNative() bool            { return id.address == (common.Address{}) }
func (id AssetID) Equals(other AssetID) bool { return id == other }

func (id AssetID) String() string {
	if id.IsNative() {
		return fmt.Sprintf("chain:%d/native", id.chainID)
	}
	return fmt.Sprintf("chain:%d/%s", id.chainID, id.address.Hex())
}

// Asset is the metadata of one asset deployment.
type Asset struct {
	id       AssetID
	symbol   string
	decimals uint8
}

// NewAsset creates an Asset. It panics on empty symbols or implausible
// decimals since those are wiring bugs.
func NewAsset(id AssetID, symbol string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}
	return &Asset{id: id, symbol: symbol, decimals: decimals}
}

// NewToken creates an ERC20 asset.
func NewToken(chainID uint64, address common.Address, symbol string, decimals uint8) *Asset {
	return NewAsset(NewTokenAssetID(chainID, address), symbol, decimals)
}

// NewNative creates a chain's gas coin.
func NewNative(chainID uint64, symbol string) *Asset {
	return NewAsset(NewNativeAssetID(chainID), symbol, 18)
}

func (a *Asset) ID() AssetID             { return a.id }
func (a *Asset) Symbol() string          { return a.symbol }
func (a *Asset) Decimals() uint8         { return a.decimals }
func (a *Asset) ChainID() uint64         { return a.id.chainID }
func (a *Asset) Address() common.Address { return a.id.address }
func (a *Asset) IsNative() bool          { return a.id.IsNative() }
func (a *Asset) String() string          { return a.symbol }

// Equals compares two Assets by their ID.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id.Equals(other.id)
}
