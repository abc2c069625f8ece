package networks

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		chainID  *big.Int
		known    bool
		wantName string
		wantCur  string
	}{
		{"mainnet", big.NewInt(1), true, "Ethereum Mainnet", "ETH"},
		{"polygon", big.NewInt(137), true, "Polygon (Matic) Mainnet", "MATIC"},
		{"avalanche", big.NewInt(43114), true, "Avalanche C-Chain", "AVAX"},
		{"unknown", big.NewInt(999999), false, "Unknown", "Unknown"},
		{"nil", nil, false, "Unknown", "Unknown"},
		{"overflow", new(big.Int).Lsh(big.NewInt(1), 70), false, "Unknown", "Unknown"},
	}

	r := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := r.Lookup(tt.chainID)
			assert.Equal(t, tt.known, ok)
			assert.Equal(t, tt.wantName, n.Name)
			assert.Equal(t, tt.wantCur, n.Currency)
			assert.Equal(t, DefaultDecimals, n.Decimals)
		})
	}
}

func TestExplorerTxURL(t *testing.T) {
	r := Default()
	hash := "0xabc"

	assert.Equal(t, "https://etherscan.io/tx/0xabc", r.ExplorerTxURL(big.NewInt(1), hash))
	assert.Equal(t, "https://arbiscan.io/tx/0xabc", r.ExplorerTxURL(big.NewInt(42161), hash))
	assert.Equal(t, "", r.ExplorerTxURL(big.NewInt(31337), hash))
	assert.Equal(t, "", r.ExplorerTxURL(big.NewInt(1), ""))
}

func TestNewRegistry_Extra(t *testing.T) {
	r := NewRegistry(
		Network{ChainID: 31337, Name: "Anvil", Currency: "ETH", ExplorerTxPrefix: "http://localhost:4000/tx/"},
		Network{ChainID: 1, ExplorerTxPrefix: "https://eth.blockscout.com/tx/"},
		Network{Name: "ignored"},
	)

	n, ok := r.Lookup(big.NewInt(31337))
	assert.True(t, ok)
	assert.Equal(t, "Anvil", n.Name)
	assert.Equal(t, DefaultDecimals, n.Decimals)
	assert.Equal(t, "http://localhost:4000/tx/0x1", r.ExplorerTxURL(big.NewInt(31337), "0x1"))

	n, _ = r.Lookup(big.NewInt(1))
	assert.Equal(t, "Ethereum Mainnet", n.Name)
	assert.Equal(t, "https://eth.blockscout.com/tx/", n.ExplorerTxPrefix)

	// the default registry is untouched
	n, _ = Default().Lookup(big.NewInt(1))
	assert.Equal(t, "https://etherscan.io/tx/", n.ExplorerTxPrefix)
	_, ok = Default().Lookup(big.NewInt(31337))
	assert.False(t, ok)
}

func TestAll_Sorted(t *testing.T) {
	all := Default().All()
	assert.Len(t, all, 12)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ChainID, all[i].ChainID)
	}
}
