// Package wallet provides key management for accounts: generating keys,
// persisting them to a keystore on disk, and signing transactions.
package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgecoin/forgecoin/foundation/blockchain/signature"
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// Wallet wraps a private key. The hex encoded public key doubles as the
// account identity on the wire, the derived address is the short form
// shown to people.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
}

// New generates a fresh key pair.
func New() (*Wallet, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	return &Wallet{privateKey: privateKey}, nil
}

// Load reads a private key from the keystore file at the specified path.
func Load(path string) (*Wallet, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("loading key from %q: %w", path, err)
	}

	return &Wallet{privateKey: privateKey}, nil
}

// Save writes the private key to the keystore file at the specified path,
// creating parent directories as needed.
func (w *Wallet) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating keystore directory: %w", err)
	}

	if err := crypto.SaveECDSA(path, w.privateKey); err != nil {
		return fmt.Errorf("saving key to %q: %w", path, err)
	}

	return nil
}

// PublicKey returns the hex encoded uncompressed public key. This is the
// value transactions carry in their sender field.
func (w *Wallet) PublicKey() string {
	return signature.PublicKeyToHex(&w.privateKey.PublicKey)
}

// Address returns the short account address derived from the public key.
func (w *Wallet) Address() string {
	return crypto.PubkeyToAddress(w.privateKey.PublicKey).Hex()
}

// ExportPrivateKey returns the hex encoded private key. Handle with care,
// anyone holding this value owns the account.
func (w *Wallet) ExportPrivateKey() string {
	return hex.EncodeToString(crypto.FromECDSA(w.privateKey))
}

// SignTx signs the transaction with the wallet key. The transaction sender
// must be this wallet's public key or the signature would never verify.
func (w *Wallet) SignTx(tx *transaction.Tx) error {
	if tx.Sender != w.PublicKey() {
		return fmt.Errorf("transaction sender is not this wallet")
	}

	return tx.Sign(w.privateKey)
}

// NewSignedTx constructs and signs a transfer from this wallet in one step.
func (w *Wallet) NewSignedTx(recipient string, amount float64) (transaction.Tx, error) {
	tx, err := transaction.New(w.PublicKey(), recipient, amount)
	if err != nil {
		return transaction.Tx{}, err
	}

	if err := tx.Sign(w.privateKey); err != nil {
		return transaction.Tx{}, err
	}

	return tx, nil
}
