package models

import (
	"math/big"
	"time"
)

// TransferRecord is one confirmed transfer sent from this wallet.
type TransferRecord struct {
	Hash        string    `json:"hash"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	ChainID     uint64    `json:"chain_id"`
	Network     string    `json:"network"`
	ExplorerURL string    `json:"explorer_url,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

// GasPriceData contains the current gas price.
type GasPriceData struct {
	Price      *big.Int
	FailedRPCs []string
	Err        error
}

// GasPricePoint holds a timestamped gas price value.
type GasPricePoint struct {
	Timestamp time.Time
	Value     float64
}

// BalanceData is the native balance of the connected account.
type BalanceData struct {
	Address string
	Balance *big.Int
	Err     error
}

// RPCLatencyData contains the result of a latency check.
type RPCLatencyData struct {
	RPCURL  string
	Latency time.Duration
	Err     error
}

// ChainResult holds test results for a specific chain.
type ChainResult struct {
	Name            string      `json:"name"`
	Symbol          string      `json:"symbol"`
	ConfigChainID   int64       `json:"config_chain_id"`
	RPCs            []RPCResult `json:"rpcs"`
	Inconsistent    bool        `json:"inconsistent"`
	ChainIDUpdated  bool        `json:"chain_id_updated"`
	ObservedChainID int64       `json:"observed_chain_id,omitempty"`
}

// RPCResult holds test results for a specific RPC URL.
type RPCResult struct {
	URL       string `json:"url"`
	Status    string `json:"status"` // "ok" or "error"
	ChainID   int64  `json:"chain_id,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TestReport holds the results of the configuration test.
type TestReport struct {
	ConfigPath         string        `json:"config_path"`
	ValidStructure     bool          `json:"valid_structure"`
	StructureErrors    []string      `json:"structure_errors,omitempty"`
	ChainCount         int           `json:"chain_count"`
	Chains             []ChainResult `json:"chains,omitempty"`
	InconsistentChains []string      `json:"inconsistent_chains,omitempty"`
	ConfigUpdated      bool          `json:"config_updated"`
	SaveError          string        `json:"save_error,omitempty"`
	DryRun             bool          `json:"dry_run"`
}
