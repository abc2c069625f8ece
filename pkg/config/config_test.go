package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Malformed(t *testing.T) {
	reader := strings.NewReader(`{ "chains": [`)
	_, _, _, _, err := LoadConfig(reader)
	if err == nil {
		t.Error("Expected error loading malformed config, got nil")
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	wallet, chains, idx, g, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, wallet.Address)
	assert.Empty(t, chains)
	assert.Equal(t, 0, idx)
	assert.Equal(t, DefaultGlobalConfig(), g)
}

func TestSaveConfig(t *testing.T) {
	tmpPath := filepath.Join(t.TempDir(), "config.json")

	wallet := WalletConfig{KeystoreDir: "/tmp/keys", Address: "0x123"}
	chains := []ChainConfig{
		{Name: "Ethereum", RPCURLs: []string{"http://localhost:8545"}, ChainID: 1},
		{Name: "Anvil", RPCURLs: []string{"http://localhost:8546"}, ChainID: 31337},
	}
	globalCfg := GlobalConfig{ConfirmBeforeSend: false, WaitTimeoutSeconds: 120, GasRefreshSeconds: 30}

	err := SaveConfig(wallet, chains, 1, globalCfg, tmpPath)
	if err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loadedWallet, loadedChains, loadedIdx, loadedGlobal, err := LoadConfigFromFile(tmpPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	assert.Equal(t, wallet, loadedWallet)
	assert.Equal(t, chains, loadedChains)
	assert.Equal(t, 1, loadedIdx)
	assert.Equal(t, globalCfg, loadedGlobal)

	// second save leaves a backup that can be restored
	require.NoError(t, SaveConfig(wallet, chains, 0, DefaultGlobalConfig(), tmpPath))
	matches, _ := filepath.Glob(tmpPath + ".*.bak")
	assert.NotEmpty(t, matches)
	require.NoError(t, RestoreLastBackup(tmpPath))
	_, _, loadedIdx, _, err = LoadConfigFromFile(tmpPath)
	require.NoError(t, err)
	assert.Equal(t, 1, loadedIdx)
}

func TestSaveConfig_Validation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	assert.Error(t, SaveConfig(WalletConfig{}, nil, 0, GlobalConfig{}, path))
	assert.Error(t, SaveConfig(WalletConfig{}, []ChainConfig{{Name: " ", RPCURLs: []string{"http://x"}}}, 0, GlobalConfig{}, path))
	assert.Error(t, SaveConfig(WalletConfig{}, []ChainConfig{{Name: "Eth"}}, 0, GlobalConfig{}, path))
}

func TestRestoreLastBackup_None(t *testing.T) {
	assert.Error(t, RestoreLastBackup(filepath.Join(t.TempDir(), "config.json")))
}

func TestLoadConfig_TableDriven(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		jsonContent string
		expectError bool
		validate    func(*testing.T, WalletConfig, []ChainConfig, int, GlobalConfig)
	}{
		{
			name: "Valid Modern Config",
			jsonContent: `{
				"wallet": {"keystore_dir": "/keys", "address": "0xabc"},
				"chains": [
					{"name": "Eth", "rpc_urls": ["http://eth"], "chain_id": 1},
					{"name": "Polygon", "rpc_urls": ["http://poly"], "chain_id": 137}
				],
				"selected_chain": "polygon",
				"confirm_before_send": false,
				"wait_timeout_seconds": 90
			}`,
			validate: func(t *testing.T, w WalletConfig, chains []ChainConfig, idx int, g GlobalConfig) {
				assert.Equal(t, "/keys", w.KeystoreDir)
				assert.Equal(t, "0xabc", w.Address)
				assert.Len(t, chains, 2)
				assert.Equal(t, 1, idx)
				assert.False(t, g.ConfirmBeforeSend)
				assert.Equal(t, 90, g.WaitTimeoutSeconds)
				assert.Equal(t, 15, g.GasRefreshSeconds)
			},
		},
		{
			name: "Legacy Chains (Root RPC URLs)",
			jsonContent: `{
				"rpc_urls": ["http://legacy-rpc"]
			}`,
			validate: func(t *testing.T, w WalletConfig, chains []ChainConfig, idx int, g GlobalConfig) {
				if len(chains) != 1 {
					t.Fatalf("Expected 1 chain from legacy migration, got %d", len(chains))
				}
				assert.Equal(t, "Ethereum", chains[0].Name)
				assert.Equal(t, []string{"http://legacy-rpc"}, chains[0].RPCURLs)
				assert.Equal(t, int64(1), chains[0].ChainID)
			},
		},
		{
			name:        "Malformed JSON",
			jsonContent: `{ "chains": [ unclosed_array`,
			expectError: true,
		},
		{
			name: "Partial Config (Defaults)",
			jsonContent: `{
				"chains": [{"name": "Eth", "rpc_urls": ["http://eth"]}],
				"selected_chain": "missing"
			}`,
			validate: func(t *testing.T, w WalletConfig, chains []ChainConfig, idx int, g GlobalConfig) {
				assert.Equal(t, 0, idx)
				assert.True(t, g.ConfirmBeforeSend)
				assert.Equal(t, 0, g.WaitTimeoutSeconds)
				assert.False(t, g.APIAutoConfirm)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, chains, idx, gCfg, err := LoadConfig(strings.NewReader(tt.jsonContent))

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, w, chains, idx, gCfg)
			}
		})
	}
}

func TestBuildRegistry(t *testing.T) {
	r := BuildRegistry([]ChainConfig{
		{Name: "Anvil", Symbol: "ETH", ChainID: 31337, ExplorerURL: "http://localhost:4000/"},
		{Name: "NoID", Symbol: "XYZ"},
	})

	n, ok := r.Lookup(big.NewInt(31337))
	assert.True(t, ok)
	assert.Equal(t, "Anvil", n.Name)
	assert.Equal(t, "http://localhost:4000/tx/0xabc", r.ExplorerTxURL(big.NewInt(31337), "0xabc"))

	n, ok = r.Lookup(big.NewInt(1))
	assert.True(t, ok)
	assert.Equal(t, "Ethereum Mainnet", n.Name)
}

func TestSaveConfig_PermissionError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	tmpDir := t.TempDir()

	if err := os.Chmod(tmpDir, 0500); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chmod(tmpDir, 0700) }()

	configPath := filepath.Join(tmpDir, "config.json")
	chains := []ChainConfig{{Name: "Eth", RPCURLs: []string{"http://eth"}}}

	err := SaveConfig(WalletConfig{}, chains, 0, GlobalConfig{}, configPath)
	if err == nil {
		t.Error("Expected permission error, got nil")
	}
}
