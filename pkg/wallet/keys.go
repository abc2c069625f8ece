package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySource signs transactions for a single account.
type KeySource interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// PrivateKey is a raw secp256k1 key held in memory.
type PrivateKey struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// ParsePrivateKey accepts a hex key with or without the 0x prefix.
func ParsePrivateKey(hexKey string) (*PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewPrivateKey(key), nil
}

func NewPrivateKey(key *ecdsa.PrivateKey) *PrivateKey {
	return &PrivateKey{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (k *PrivateKey) Address() common.Address {
	return k.addr
}

func (k *PrivateKey) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), k.key)
}

// Keystore is an encrypted key directory in the geth format.
type Keystore struct {
	ks *keystore.KeyStore
}

func OpenKeystore(dir string) (*Keystore, error) {
	return openKeystore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
}

func openKeystore(dir string, scryptN, scryptP int) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Keystore{ks: keystore.NewKeyStore(dir, scryptN, scryptP)}, nil
}

// Accounts lists the addresses held in the keystore.
func (k *Keystore) Accounts() []common.Address {
	var out []common.Address
	for _, a := range k.ks.Accounts() {
		out = append(out, a.Address)
	}
	return out
}

func (k *Keystore) Import(key *ecdsa.PrivateKey, passphrase string) (common.Address, error) {
	acct, err := k.ks.ImportECDSA(key, passphrase)
	if err != nil {
		return common.Address{}, err
	}
	return acct.Address, nil
}

// Unlock checks passphrase against the account at address and returns a key
// source for it. An empty address picks the only account in the keystore.
func (k *Keystore) Unlock(address, passphrase string) (*KeystoreAccount, error) {
	account, err := k.find(address)
	if err != nil {
		return nil, err
	}
	if err := k.ks.Unlock(account, passphrase); err != nil {
		return nil, fmt.Errorf("unlock %s: %w", account.Address.Hex(), err)
	}
	return &KeystoreAccount{ks: k.ks, account: account}, nil
}

func (k *Keystore) find(address string) (accounts.Account, error) {
	if address == "" {
		all := k.ks.Accounts()
		switch len(all) {
		case 0:
			return accounts.Account{}, fmt.Errorf("keystore is empty")
		case 1:
			return all[0], nil
		default:
			return accounts.Account{}, fmt.Errorf("keystore holds %d accounts, set wallet.address", len(all))
		}
	}
	if !common.IsHexAddress(address) {
		return accounts.Account{}, fmt.Errorf("invalid address: %s", address)
	}
	addr := common.HexToAddress(address)
	if !k.ks.HasAddress(addr) {
		return accounts.Account{}, fmt.Errorf("address not found: %s", address)
	}
	return k.ks.Find(accounts.Account{Address: addr})
}

// KeystoreAccount is an unlocked keystore account.
type KeystoreAccount struct {
	ks      *keystore.KeyStore
	account accounts.Account
}

func (a *KeystoreAccount) Address() common.Address {
	return a.account.Address
}

func (a *KeystoreAccount) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return a.ks.SignTx(a.account, tx, chainID)
}

// Lock drops the decrypted key from memory.
func (a *KeystoreAccount) Lock() error {
	return a.ks.Lock(a.account.Address)
}
