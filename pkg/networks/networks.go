package networks

import (
	"math/big"
	"sort"
)

// DefaultDecimals is the base-unit exponent of every ETH-like native currency.
const DefaultDecimals = 18

// Network describes a chain the form can send on.
type Network struct {
	ChainID          uint64 `json:"chain_id"`
	Name             string `json:"name"`
	Currency         string `json:"currency"`
	Decimals         int    `json:"decimals"`
	ExplorerTxPrefix string `json:"explorer_tx_prefix,omitempty"`
}

// Unknown is returned for chain IDs missing from a registry.
var Unknown = Network{
	Name:     "Unknown",
	Currency: "Unknown",
	Decimals: DefaultDecimals,
}

var builtin = []Network{
	{ChainID: 1, Name: "Ethereum Mainnet", Currency: "ETH", Decimals: 18, ExplorerTxPrefix: "https://etherscan.io/tx/"},
	{ChainID: 3, Name: "Ropsten Testnet", Currency: "ETH", Decimals: 18, ExplorerTxPrefix: "https://ropsten.etherscan.io/tx/"},
	{ChainID: 4, Name: "Rinkeby Testnet", Currency: "ETH", Decimals: 18, ExplorerTxPrefix: "https://rinkeby.etherscan.io/tx/"},
	{ChainID: 5, Name: "Goerli Testnet", Currency: "ETH", Decimals: 18, ExplorerTxPrefix: "https://goerli.etherscan.io/tx/"},
	{ChainID: 42, Name: "Kovan Testnet", Currency: "ETH", Decimals: 18, ExplorerTxPrefix: "https://kovan.etherscan.io/tx/"},
	{ChainID: 56, Name: "Binance Smart Chain", Currency: "BNB", Decimals: 18, ExplorerTxPrefix: "https://bscscan.com/tx/"},
	{ChainID: 100, Name: "xDAI Chain", Currency: "DAI", Decimals: 18, ExplorerTxPrefix: "https://blockscout.com/poa/xdai/tx/"},
	{ChainID: 137, Name: "Polygon (Matic) Mainnet", Currency: "MATIC", Decimals: 18, ExplorerTxPrefix: "https://polygonscan.com/tx/"},
	{ChainID: 250, Name: "Fantom Opera", Currency: "FTM", Decimals: 18, ExplorerTxPrefix: "https://ftmscan.com/tx/"},
	{ChainID: 42161, Name: "Arbitrum One", Currency: "ETH", Decimals: 18, ExplorerTxPrefix: "https://arbiscan.io/tx/"},
	{ChainID: 43114, Name: "Avalanche C-Chain", Currency: "AVAX", Decimals: 18, ExplorerTxPrefix: "https://cchain.explorer.avax.network/tx/"},
	{ChainID: 80001, Name: "Mumbai Testnet", Currency: "MATIC", Decimals: 18, ExplorerTxPrefix: "https://mumbai.polygonscan.com/tx/"},
}

// Registry is a read-only chain ID lookup table. It is built once and never
// mutated afterwards, so it is safe to share between goroutines.
type Registry struct {
	byID map[uint64]Network
}

var defaultRegistry = NewRegistry()

// Default returns the registry holding only the builtin networks.
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry builds a registry from the builtin table plus extra networks.
// Extra entries override builtin ones with the same chain ID; empty fields of
// an override fall back to the builtin values.
func NewRegistry(extra ...Network) *Registry {
	r := &Registry{byID: make(map[uint64]Network, len(builtin)+len(extra))}
	for _, n := range builtin {
		r.byID[n.ChainID] = n
	}
	for _, n := range extra {
		if n.ChainID == 0 {
			continue
		}
		base, ok := r.byID[n.ChainID]
		if !ok {
			base = Unknown
			base.ChainID = n.ChainID
		}
		if n.Name != "" {
			base.Name = n.Name
		}
		if n.Currency != "" {
			base.Currency = n.Currency
		}
		if n.Decimals > 0 {
			base.Decimals = n.Decimals
		}
		if n.ExplorerTxPrefix != "" {
			base.ExplorerTxPrefix = n.ExplorerTxPrefix
		}
		r.byID[n.ChainID] = base
	}
	return r
}

// Lookup returns the network for chainID and whether it is known. Unknown
// and nil IDs yield the Unknown network; Lookup never fails.
func (r *Registry) Lookup(chainID *big.Int) (Network, bool) {
	if r == nil || chainID == nil || !chainID.IsUint64() {
		return Unknown, false
	}
	n, ok := r.byID[chainID.Uint64()]
	if !ok {
		u := Unknown
		u.ChainID = chainID.Uint64()
		return u, false
	}
	return n, true
}

// ExplorerTxURL returns the explorer link for hash on chainID, or "" when the
// chain has no explorer configured.
func (r *Registry) ExplorerTxURL(chainID *big.Int, hash string) string {
	n, _ := r.Lookup(chainID)
	if n.ExplorerTxPrefix == "" || hash == "" {
		return ""
	}
	return n.ExplorerTxPrefix + hash
}

// All returns the registered networks ordered by chain ID.
func (r *Registry) All() []Network {
	out := make([]Network, 0, len(r.byID))
	for _, n := range r.byID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}
