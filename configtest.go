package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"evmsend/pkg/config"
	"evmsend/pkg/models"
	"evmsend/pkg/rpc"
)

// testInput is what -t needs from the loaded configuration.
type testInput struct {
	Path   string
	Wallet config.WalletConfig
	Chains []config.ChainConfig
	Active int
	Global config.GlobalConfig
	JSON   bool
	DryRun bool
}

// probeChain is swapped out in tests.
var probeChain = rpc.ProbeChain

// runConfigTest checks the configuration structure, probes every RPC and
// fills in chain IDs the config left empty. It returns the exit code.
func runConfigTest(w io.Writer, in testInput) int {
	report := models.TestReport{
		ConfigPath:     in.Path,
		ValidStructure: true,
		DryRun:         in.DryRun,
	}
	printf := func(format string, args ...interface{}) {
		if !in.JSON {
			fmt.Fprintf(w, format, args...)
		}
	}
	encode := func() {
		if in.JSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			_ = enc.Encode(report)
		}
	}

	printf("Testing configuration at: %s\n", in.Path)

	if len(in.Chains) == 0 {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, "No Chains found in configuration.")
		printf("No Chains found in configuration.\n")
		encode()
		return 1
	}

	for i, chain := range in.Chains {
		if strings.TrimSpace(chain.Name) == "" {
			msg := fmt.Sprintf("Chain at index %d has no name.", i)
			report.StructureErrors = append(report.StructureErrors, msg)
			report.ValidStructure = false
			printf("Error: %s\n", msg)
		}
		if len(chain.RPCURLs) == 0 {
			msg := fmt.Sprintf("Chain '%s' has no RPC URLs.", chain.Name)
			report.StructureErrors = append(report.StructureErrors, msg)
			report.ValidStructure = false
			printf("Error: %s\n", msg)
		}
	}
	if !report.ValidStructure {
		encode()
		return 1
	}

	report.ChainCount = len(in.Chains)
	printf("Found %d Chains.\n", len(in.Chains))
	if in.Wallet.KeystoreDir != "" {
		printf("Keystore: %s\n", in.Wallet.KeystoreDir)
	}

	chains := make([]config.ChainConfig, len(in.Chains))
	copy(chains, in.Chains)

	for i := range chains {
		chain := &chains[i]
		printf("Testing Chain: %s (%s)\n", chain.Name, chain.Symbol)

		res := probeChain(*chain)
		for _, r := range res.RPCs {
			if r.Status != "ok" {
				printf("  RPC: %s ... Failed: %s\n", r.URL, r.Error)
				continue
			}
			printf("  RPC: %s ... OK (ChainID: %d, %dms)", r.URL, r.ChainID, r.LatencyMS)
			switch {
			case chain.ChainID == 0:
				printf(" - NEW")
			case r.Error != "":
				printf(" - MISMATCH! Expected %d", chain.ChainID)
			default:
				printf(" - Verified")
			}
			printf("\n")
		}

		if chain.ChainID == 0 && res.ObservedChainID != 0 && !res.Inconsistent {
			chain.ChainID = res.ObservedChainID
			res.ChainIDUpdated = true
			report.ConfigUpdated = true
			printf("  Chain ID set to %d", chain.ChainID)
			if in.DryRun {
				printf(" (DRY RUN)")
			}
			printf("\n")
		}
		if res.Inconsistent {
			report.InconsistentChains = append(report.InconsistentChains, chain.Name)
		}
		report.Chains = append(report.Chains, res)
	}

	if len(report.InconsistentChains) > 0 {
		printf("\nWARNING: Inconsistent RPCs detected!\n")
		printf("The following chains have RPCs returning conflicting Chain IDs:\n")
		for _, name := range report.InconsistentChains {
			printf(" - %s\n", name)
		}
	}

	if report.ConfigUpdated {
		printf("\nUpdating configuration with fetched Chain IDs...\n")
		if in.DryRun {
			printf("Dry run enabled: Configuration NOT saved.\n")
		} else if err := config.SaveConfig(in.Wallet, chains, in.Active, in.Global, in.Path); err != nil {
			report.SaveError = err.Error()
			printf("Failed to save config: %v\n", err)
		} else {
			printf("Configuration saved successfully.\n")
		}
	}

	encode()
	return 0
}
