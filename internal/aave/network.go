package aave

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// BaseSepoliaChainID is the only network the gateway registers.
const BaseSepoliaChainID int64 = 84532

// Asset is one reserve listed in the address book.
type Asset struct {
	Symbol     string
	Underlying common.Address
	Decimals   int32
}

// Network is the Aave V3 deployment on one chain.
type Network struct {
	Name    string
	ChainID int64
	Pool    common.Address
	Oracle  common.Address
	Assets  []Asset
}

// BaseSepolia returns the Aave V3 Base Sepolia address book.
func BaseSepolia() Network {
	return Network{
		Name:    "BASE-SEPOLIA",
		ChainID: BaseSepoliaChainID,
		Pool:    common.HexToAddress("0x8bAB6d1b75f19e9eD9fCe8b9BD338844fF79aE27"),
		Oracle:  common.HexToAddress("0x943b0dE18d4abf4eF02A85912F8fc07684C141dF"),
		Assets: []Asset{
			{Symbol: "USDC", Underlying: common.HexToAddress("0xba50Cd2A20f6DA35D788639E581bca8d0B5d4D5f"), Decimals: 6},
			{Symbol: "WETH", Underlying: common.HexToAddress("0x4200000000000000000000000000000000000006"), Decimals: 18},
		},
	}
}

// AssetByAddress looks up a listed reserve by its underlying token.
func (n Network) AssetByAddress(addr common.Address) (Asset, bool) {
	for _, a := range n.Assets {
		if a.Underlying == addr {
			return a, true
		}
	}
	return Asset{}, false
}

// AssetBySymbol looks up a listed reserve by symbol, case-insensitively.
func (n Network) AssetBySymbol(symbol string) (Asset, bool) {
	for _, a := range n.Assets {
		if strings.EqualFold(a.Symbol, symbol) {
			return a, true
		}
	}
	return Asset{}, false
}

// ResolveAsset turns "USDC" or "USDC.BASE-SEPOLIA" into the underlying
// address. Anything else, including raw addresses, is returned unchanged.
func (n Network) ResolveAsset(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "0x") || strings.HasPrefix(ref, "0X") {
		return ref
	}
	symbol := ref
	if i := strings.LastIndex(ref, "."); i > 0 {
		if !strings.EqualFold(ref[i+1:], n.Name) {
			return ref
		}
		symbol = ref[:i]
	}
	if a, ok := n.AssetBySymbol(symbol); ok {
		return a.Underlying.Hex()
	}
	return ref
}

// Symbols lists the reserve symbols in address-book order.
func (n Network) Symbols() []string {
	out := make([]string, 0, len(n.Assets))
	for _, a := range n.Assets {
		out = append(out, a.Symbol)
	}
	return out
}
