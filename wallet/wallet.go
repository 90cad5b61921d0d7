// Package wallet keeps signing keys on disk and builds signed transactions
// for one chain.
package wallet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
)

// Wallet is a key bound to the chain it signs for.
type Wallet struct {
	key     crypto.PrivateKey
	addr    string
	chainID string
}

func New(key crypto.PrivateKey, chainID string) *Wallet {
	return &Wallet{key: key, addr: key.Address(), chainID: chainID}
}

// Generate returns a wallet with a fresh key.
func Generate(chainID string) (*Wallet, error) {
	key, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(key, chainID), nil
}

// Open decrypts the keystore at path.
func Open(path, password, chainID string) (*Wallet, error) {
	key, err := LoadKey(path, password)
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", path, err)
	}
	return New(key, chainID), nil
}

// CreateKeyFile generates a key, stores it at path and returns its address.
// An existing file is never overwritten.
func CreateKeyFile(path, password string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s: %w", path, fs.ErrExist)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	w, err := Generate("")
	if err != nil {
		return "", err
	}
	if err := SaveKey(path, password, w.key); err != nil {
		return "", err
	}
	return w.addr, nil
}

// Key is the raw private key.
func (w *Wallet) Key() crypto.PrivateKey { return w.key }

// Address is the checksummed account address.
func (w *Wallet) Address() string { return w.addr }

func (w *Wallet) ChainID() string { return w.chainID }

// Sign builds and signs a transaction at nonce, which must be the account's
// next nonce for it to execute.
func (w *Wallet) Sign(typ core.TxType, nonce, fee uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(w.chainID, typ, w.addr, nonce, fee, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.key)
	return tx, nil
}

// Transfer signs a ledger transfer.
func (w *Wallet) Transfer(to string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.Sign(core.TxTransfer, nonce, fee, core.TransferPayload{To: to, Amount: amount})
}
