package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"evmsend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRPC(t *testing.T, chainID string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int           `json:"id"`
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var result interface{}
		switch req.Method {
		case "eth_chainId":
			result = chainID
		case "eth_gasPrice":
			result = "0x4a817c800" // 20 Gwei
		case "eth_getBlockByNumber":
			result = map[string]interface{}{
				"number":           "0x1000",
				"hash":             "0x0000000000000000000000000000000000000000000000000000000000000001",
				"parentHash":       "0x0000000000000000000000000000000000000000000000000000000000000002",
				"sha3Uncles":       "0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347",
				"timestamp":        "0x5f5e1000",
				"miner":            "0x0000000000000000000000000000000000000000",
				"gasLimit":         "0x1",
				"gasUsed":          "0x0",
				"difficulty":       "0x0",
				"extraData":        "0x",
				"mixHash":          "0x0000000000000000000000000000000000000000000000000000000000000000",
				"nonce":            "0x0000000000000000",
				"stateRoot":        "0x0000000000000000000000000000000000000000000000000000000000000000",
				"receiptsRoot":     "0x0000000000000000000000000000000000000000000000000000000000000000",
				"transactionsRoot": "0x0000000000000000000000000000000000000000000000000000000000000001",
				"logsBloom":        "0x" + strings.Repeat("00", 256),
			}
		default:
			result = "0x0"
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDialChain(t *testing.T) {
	server := newMockRPC(t, "0x1")

	chain := config.ChainConfig{Name: "Eth", RPCURLs: []string{server.URL}, ChainID: 1}
	client, url, failed, err := DialChain(context.Background(), chain)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, server.URL, url)
	assert.Empty(t, failed)
}

func TestDialChain_Failover(t *testing.T) {
	wrong := newMockRPC(t, "0x89")
	right := newMockRPC(t, "0x1")

	chain := config.ChainConfig{
		Name:    "Eth",
		RPCURLs: []string{"ftp://not-an-rpc", wrong.URL, right.URL},
		ChainID: 1,
	}
	client, url, failed, err := DialChain(context.Background(), chain)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, right.URL, url)
	assert.Equal(t, []string{"ftp://not-an-rpc", wrong.URL}, failed)
}

func TestDialChain_AllFail(t *testing.T) {
	wrong := newMockRPC(t, "0x89")

	_, _, failed, err := DialChain(context.Background(), config.ChainConfig{Name: "Eth", RPCURLs: []string{wrong.URL}, ChainID: 1})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
	assert.Len(t, failed, 1)

	_, _, _, err = DialChain(context.Background(), config.ChainConfig{Name: "Empty"})
	assert.Error(t, err)
}

func TestFetchGasPrice_Integration(t *testing.T) {
	server := newMockRPC(t, "0x1")

	gasMsg, err := FetchGasPrice([]string{server.URL})
	if err != nil {
		t.Fatalf("FetchGasPrice error: %v", err)
	}

	expected := int64(20000000000)
	if gasMsg.Price.Int64() != expected {
		t.Errorf("Expected gas price %d, got %s", expected, gasMsg.Price.String())
	}
}

func TestFetchGasPrice_NoURLs(t *testing.T) {
	_, err := FetchGasPrice(nil)
	assert.Error(t, err)
}

func TestFetchRPCLatency(t *testing.T) {
	server := newMockRPC(t, "0x1")

	data, err := FetchRPCLatency(server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL, data.RPCURL)
	assert.Greater(t, int64(data.Latency), int64(0))
}

func TestProbeChain(t *testing.T) {
	a := newMockRPC(t, "0x1")
	b := newMockRPC(t, "0x5")

	res := ProbeChain(config.ChainConfig{Name: "Eth", Symbol: "ETH", RPCURLs: []string{a.URL, b.URL}, ChainID: 1})

	assert.Equal(t, "Eth", res.Name)
	assert.Equal(t, int64(1), res.ObservedChainID)
	assert.True(t, res.Inconsistent)
	require.Len(t, res.RPCs, 2)
	assert.Equal(t, "ok", res.RPCs[0].Status)
	assert.Empty(t, res.RPCs[0].Error)
	assert.Equal(t, int64(5), res.RPCs[1].ChainID)
	assert.Contains(t, res.RPCs[1].Error, "Mismatch")
}
