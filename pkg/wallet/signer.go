package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"evmsend/pkg/transfer"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ReceiptPollInterval is how often Wait asks for the receipt.
var ReceiptPollInterval = 2 * time.Second

// KeySigner builds, signs and broadcasts native transfers.
type KeySigner struct {
	client *Client
	key    KeySource
}

func NewKeySigner(client *Client, key KeySource) *KeySigner {
	return &KeySigner{client: client, key: key}
}

func (s *KeySigner) Address() common.Address {
	return s.key.Address()
}

func (s *KeySigner) Provider() transfer.Provider {
	if s.client == nil {
		return nil
	}
	return s.client
}

// Key returns the key source, for reconnecting on another chain.
func (s *KeySigner) Key() KeySource {
	return s.key
}

// Client returns the chain connection, which may be nil.
func (s *KeySigner) Client() *Client {
	return s.client
}

func (s *KeySigner) SendTransaction(ctx context.Context, req transfer.Request) (transfer.Pending, error) {
	if s.client == nil {
		return nil, transfer.ErrProviderUnavailable
	}
	if req.Value == nil || req.Value.Sign() <= 0 {
		return nil, fmt.Errorf("transfer value must be positive")
	}
	ec := s.client.eth
	from := s.key.Address()
	to := req.To

	chainID, err := ec.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	nonce, err := ec.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	gas, err := ec.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: req.Value})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	head, err := ec.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tip, err := ec.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("gas tip: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Value:     req.Value,
		})
	} else {
		gasPrice, err := ec.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("gas price: %w", err)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Value:    req.Value,
		})
	}

	signed, err := s.key.SignTx(tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	if err := ec.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return &pendingTx{client: s.client, tx: signed}, nil
}

type pendingTx struct {
	client *Client
	tx     *types.Transaction
}

func (p *pendingTx) Hash() common.Hash {
	return p.tx.Hash()
}

// Wait polls for the receipt until it appears or ctx ends. A receipt with a
// failed status is an error.
func (p *pendingTx) Wait(ctx context.Context) error {
	ticker := time.NewTicker(ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := p.client.eth.TransactionReceipt(ctx, p.tx.Hash())
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return fmt.Errorf("transaction %s reverted in block %v", p.tx.Hash().Hex(), receipt.BlockNumber)
			}
			return nil
		case errors.Is(err, ethereum.NotFound):
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
