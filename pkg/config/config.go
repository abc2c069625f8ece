package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"evmsend/pkg/networks"
)

const (
	ConfigFileName  = ".evmsend.json"
	HistoryFileName = ".evmsend.db"
)

// ChainConfig holds configuration for a specific EVM chain.
type ChainConfig struct {
	Name        string   `json:"name"`
	RPCURLs     []string `json:"rpc_urls"`
	Symbol      string   `json:"symbol"`
	ChainID     int64    `json:"chain_id,omitempty"`
	Decimals    int      `json:"decimals,omitempty"`
	ExplorerURL string   `json:"explorer_url,omitempty"`
}

// Network converts the chain into a registry entry. Chains without an ID
// cannot be looked up and return ok=false.
func (c ChainConfig) Network() (networks.Network, bool) {
	if c.ChainID <= 0 {
		return networks.Network{}, false
	}
	n := networks.Network{
		ChainID:  uint64(c.ChainID),
		Name:     c.Name,
		Currency: c.Symbol,
		Decimals: c.Decimals,
	}
	if c.ExplorerURL != "" {
		n.ExplorerTxPrefix = strings.TrimRight(c.ExplorerURL, "/") + "/tx/"
	}
	return n, true
}

// WalletConfig locates the signing key.
type WalletConfig struct {
	KeystoreDir string `json:"keystore_dir,omitempty"`
	Address     string `json:"address,omitempty"`
}

// GlobalConfig holds application-wide settings.
type GlobalConfig struct {
	ConfirmBeforeSend  bool   `json:"confirm_before_send"`
	WaitTimeoutSeconds int    `json:"wait_timeout_seconds"`
	GasRefreshSeconds  int    `json:"gas_refresh_seconds"`
	HistoryPath        string `json:"history_path,omitempty"`
	APIAutoConfirm     bool   `json:"api_auto_confirm"`
}

func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		ConfirmBeforeSend:  true,
		WaitTimeoutSeconds: 0,
		GasRefreshSeconds:  15,
	}
}

// BuildRegistry merges the chains that declare an ID into the builtin table.
func BuildRegistry(chains []ChainConfig) *networks.Registry {
	var extra []networks.Network
	for _, c := range chains {
		if n, ok := c.Network(); ok {
			extra = append(extra, n)
		}
	}
	return networks.NewRegistry(extra...)
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// HistoryPath resolves where the transfer journal lives.
func HistoryPath(g GlobalConfig) (string, error) {
	if g.HistoryPath != "" {
		return g.HistoryPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, HistoryFileName), nil
}

func LoadConfigFromFile(path string) (WalletConfig, []ChainConfig, int, GlobalConfig, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return WalletConfig{}, nil, 0, DefaultGlobalConfig(), nil
	}
	if err != nil {
		return WalletConfig{}, nil, 0, GlobalConfig{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

func LoadConfig(r io.Reader) (WalletConfig, []ChainConfig, int, GlobalConfig, error) {
	var cfg struct {
		Wallet             WalletConfig  `json:"wallet"`
		RPCURLs            []string      `json:"rpc_urls"` // Legacy
		Chains             []ChainConfig `json:"chains"`
		SelectedChain      string        `json:"selected_chain"`
		ConfirmBeforeSend  *bool         `json:"confirm_before_send"`
		WaitTimeoutSeconds *int          `json:"wait_timeout_seconds"`
		GasRefreshSeconds  *int          `json:"gas_refresh_seconds"`
		HistoryPath        string        `json:"history_path"`
		APIAutoConfirm     *bool         `json:"api_auto_confirm"`
	}
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return WalletConfig{}, nil, 0, GlobalConfig{}, err
	}

	// Migration for legacy config
	if len(cfg.Chains) == 0 && len(cfg.RPCURLs) > 0 {
		cfg.Chains = []ChainConfig{{
			Name:        "Ethereum",
			RPCURLs:     cfg.RPCURLs,
			Symbol:      "ETH",
			ChainID:     1,
			ExplorerURL: "https://etherscan.io",
		}}
		cfg.SelectedChain = "Ethereum"
	}

	selectedIdx := SelectChain(cfg.Chains, cfg.SelectedChain)

	globalCfg := DefaultGlobalConfig()
	if cfg.ConfirmBeforeSend != nil {
		globalCfg.ConfirmBeforeSend = *cfg.ConfirmBeforeSend
	}
	if cfg.WaitTimeoutSeconds != nil {
		globalCfg.WaitTimeoutSeconds = *cfg.WaitTimeoutSeconds
	}
	if cfg.GasRefreshSeconds != nil {
		globalCfg.GasRefreshSeconds = *cfg.GasRefreshSeconds
	}
	if cfg.APIAutoConfirm != nil {
		globalCfg.APIAutoConfirm = *cfg.APIAutoConfirm
	}
	globalCfg.HistoryPath = cfg.HistoryPath

	return cfg.Wallet, cfg.Chains, selectedIdx, globalCfg, nil
}

// SelectChain returns the index of the chain called name (case-insensitive),
// or 0 when there is no such chain.
func SelectChain(chains []ChainConfig, name string) int {
	for i, c := range chains {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return 0
}

func SaveConfig(wallet WalletConfig, chains []ChainConfig, selectedIdx int, globalCfg GlobalConfig, path string) error {
	// Validation: Ensure we have at least one chain
	if len(chains) == 0 {
		return fmt.Errorf("validation failed: configuration must have at least one chain")
	}

	// Validation: Ensure chains have names and RPCs
	for i, c := range chains {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("validation failed: chain at index %d has no name", i)
		}
		if len(c.RPCURLs) == 0 {
			return fmt.Errorf("validation failed: chain %s has no RPC URLs", c.Name)
		}
	}

	selectedName := ""
	if selectedIdx >= 0 && selectedIdx < len(chains) {
		selectedName = chains[selectedIdx].Name
	}
	cfg := struct {
		Wallet             WalletConfig  `json:"wallet"`
		Chains             []ChainConfig `json:"chains"`
		SelectedChain      string        `json:"selected_chain"`
		ConfirmBeforeSend  bool          `json:"confirm_before_send"`
		WaitTimeoutSeconds int           `json:"wait_timeout_seconds"`
		GasRefreshSeconds  int           `json:"gas_refresh_seconds"`
		HistoryPath        string        `json:"history_path,omitempty"`
		APIAutoConfirm     bool          `json:"api_auto_confirm"`
	}{
		Wallet:             wallet,
		Chains:             chains,
		SelectedChain:      selectedName,
		ConfirmBeforeSend:  globalCfg.ConfirmBeforeSend,
		WaitTimeoutSeconds: globalCfg.WaitTimeoutSeconds,
		GasRefreshSeconds:  globalCfg.GasRefreshSeconds,
		HistoryPath:        globalCfg.HistoryPath,
		APIAutoConfirm:     globalCfg.APIAutoConfirm,
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}
