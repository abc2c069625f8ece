package wallet

import (
	"context"
	"math/big"

	"evmsend/pkg/config"
	"evmsend/pkg/rpc"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is the read side of a wallet connection to one chain.
type Client struct {
	eth   *ethclient.Client
	url   string
	chain config.ChainConfig
}

// Dial connects to the first healthy RPC of chain.
func Dial(ctx context.Context, chain config.ChainConfig) (*Client, error) {
	ec, url, _, err := rpc.DialChain(ctx, chain)
	if err != nil {
		return nil, err
	}
	return &Client{eth: ec, url: url, chain: chain}, nil
}

func NewClient(ec *ethclient.Client, chain config.ChainConfig) *Client {
	return &Client{eth: ec, chain: chain}
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.eth.BalanceAt(ctx, addr, nil)
}

func (c *Client) Chain() config.ChainConfig {
	return c.chain
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) Close() {
	c.eth.Close()
}
