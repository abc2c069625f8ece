package rpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"evmsend/pkg/config"
	"evmsend/pkg/models"

	"github.com/ethereum/go-ethereum/ethclient"
)

var DialTimeout = 10 * time.Second

// DialChain connects to the first RPC of chain that answers eth_chainId and,
// when the chain has a configured ID, reports that same ID. It returns the
// client, the URL it connected to and the URLs that failed.
func DialChain(ctx context.Context, chain config.ChainConfig) (*ethclient.Client, string, []string, error) {
	var failed []string
	lastErr := fmt.Errorf("chain %s has no RPC URLs", chain.Name)

	for _, rpcURL := range chain.RPCURLs {
		client, err := ethclient.DialContext(ctx, rpcURL)
		if err != nil {
			failed = append(failed, rpcURL)
			lastErr = err
			continue
		}

		idCtx, cancel := context.WithTimeout(ctx, DialTimeout)
		id, err := client.ChainID(idCtx)
		cancel()
		if err != nil {
			client.Close()
			failed = append(failed, rpcURL)
			lastErr = fmt.Errorf("%s: failed to get chain ID: %w", rpcURL, err)
			continue
		}
		if chain.ChainID != 0 && id.Cmp(big.NewInt(chain.ChainID)) != 0 {
			client.Close()
			failed = append(failed, rpcURL)
			lastErr = fmt.Errorf("%s: chain ID mismatch: expected %d, got %s", rpcURL, chain.ChainID, id)
			continue
		}
		return client, rpcURL, failed, nil
	}
	return nil, "", failed, lastErr
}

// FetchGasPrice fetches the current gas price.
func FetchGasPrice(rpcURLs []string) (models.GasPriceData, error) {
	var failed []string
	var lastErr error
	for _, rpcURL := range rpcURLs {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := ethclient.Dial(rpcURL)
		if err != nil {
			failed = append(failed, rpcURL)
			cancel()
			lastErr = err
			continue
		}
		price, err := client.SuggestGasPrice(ctx)
		client.Close()
		cancel()
		if err != nil {
			failed = append(failed, rpcURL)
			lastErr = err
			continue
		}
		return models.GasPriceData{Price: price, FailedRPCs: failed}, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no RPC URLs")
	}
	return models.GasPriceData{Err: lastErr, FailedRPCs: failed}, lastErr
}

// FetchRPCLatency pings an RPC URL to measure latency.
func FetchRPCLatency(rpcURL string) (models.RPCLatencyData, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	defer client.Close()

	_, err = client.HeaderByNumber(ctx, nil)
	if err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	return models.RPCLatencyData{RPCURL: rpcURL, Latency: time.Since(start)}, nil
}

// ProbeChain queries every RPC of chain for its chain ID and latency.
// ObservedChainID is the first ID seen; later RPCs disagreeing with it mark
// the chain inconsistent.
func ProbeChain(chain config.ChainConfig) models.ChainResult {
	res := models.ChainResult{
		Name:          chain.Name,
		Symbol:        chain.Symbol,
		ConfigChainID: chain.ChainID,
	}

	var observed *big.Int
	for _, rpcURL := range chain.RPCURLs {
		r := models.RPCResult{URL: rpcURL}

		client, err := ethclient.Dial(rpcURL)
		if err != nil {
			r.Status = "error"
			r.Error = err.Error()
			res.RPCs = append(res.RPCs, r)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), DialTimeout)
		id, err := client.ChainID(ctx)
		cancel()
		client.Close()
		if err != nil {
			r.Status = "error"
			r.Error = fmt.Sprintf("Failed to get ChainID: %v", err)
			res.RPCs = append(res.RPCs, r)
			continue
		}

		r.Status = "ok"
		r.ChainID = id.Int64()
		if lat, err := FetchRPCLatency(rpcURL); err == nil {
			r.LatencyMS = lat.Latency.Milliseconds()
		}
		if observed == nil {
			observed = id
			res.ObservedChainID = id.Int64()
		} else if observed.Cmp(id) != 0 {
			res.Inconsistent = true
		}
		if chain.ChainID != 0 && id.Cmp(big.NewInt(chain.ChainID)) != 0 {
			r.Error = fmt.Sprintf("Mismatch! Expected %d", chain.ChainID)
		}
		res.RPCs = append(res.RPCs, r)
	}
	return res
}
