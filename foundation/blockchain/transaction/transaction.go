// Package transaction implements the signed value transfer that makes up
// the payload of every block.
package transaction

import (
	"crypto/ecdsa"
	"fmt"
	"math"
	"time"

	"github.com/forgecoin/forgecoin/foundation/blockchain/signature"
)

// SystemAccount is the reserved sender for mining reward transactions.
// Transactions from this account are never signed.
const SystemAccount = "system"

// Bounds every transaction amount must respect.
const (
	MinAmount = 1e-8
	MaxAmount = 1e9
)

// Tx represents a transfer of value between two accounts. Sender and
// Recipient carry hex encoded public keys, except for the reserved system
// account used for mining rewards. The field names form the wire contract
// and must not change.
type Tx struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"`
	Signature string  `json:"signature,omitempty"`
}

// New constructs a transaction and validates the business rules for a
// transfer. The timestamp is captured at construction.
func New(sender string, recipient string, amount float64) (Tx, error) {
	tx := Tx{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Timestamp: time.Now().UTC().UnixNano(),
	}

	if err := tx.Validate(); err != nil {
		return Tx{}, err
	}

	return tx, nil
}

// Validate checks the construction rules for a transaction. It is applied
// when a transaction is created locally and again when one arrives off the
// wire, so the rest of the system only ever sees well formed values.
func (tx Tx) Validate() error {
	if tx.Sender == "" {
		return fmt.Errorf("transaction must have a sender")
	}
	if tx.Recipient == "" {
		return fmt.Errorf("transaction must have a recipient")
	}

	return validateAmount(tx.Amount)
}

// Sign computes the signing hash for the transaction and stores the hex
// encoded signature. Signing is a no-op for system transactions since
// mining rewards carry no signature.
func (tx *Tx) Sign(privateKey *ecdsa.PrivateKey) error {
	if tx.Sender == SystemAccount {
		return nil
	}

	sig, err := signature.Sign(tx.SigningHash(), privateKey)
	if err != nil {
		return fmt.Errorf("signing transaction: %w", err)
	}
	tx.Signature = sig

	return nil
}

// Verify reports whether the transaction carries a valid signature from
// the sender. System transactions are always valid. Any malformed input,
// including a sender that does not parse as a public key, reports false
// rather than failing.
func (tx Tx) Verify() bool {
	if tx.Sender == SystemAccount {
		return true
	}

	if tx.Signature == "" {
		return false
	}

	if err := validateAmount(tx.Amount); err != nil {
		return false
	}

	publicKey, err := signature.PublicKeyFromHex(tx.Sender)
	if err != nil {
		return false
	}

	return signature.Verify(tx.SigningHash(), tx.Signature, publicKey)
}

// SigningHash returns the hash the sender signs. The signature field is
// excluded so the hash is stable before and after signing.
func (tx Tx) SigningHash() string {
	return signature.Hash(tx.canonical(false))
}

// IdentityHash returns the hash that uniquely identifies this transaction,
// signature included when present. The pool uses it for deduplication and
// removal, never for signing.
func (tx Tx) IdentityHash() string {
	return signature.Hash(tx.canonical(true))
}

// Canonical returns the canonical key sorted form of the transaction for
// inclusion in a block hash.
func (tx Tx) Canonical() map[string]any {
	return tx.canonical(true)
}

// Equal reports whether two transactions carry identical values across
// every field.
func (tx Tx) Equal(other Tx) bool {
	return tx.Sender == other.Sender &&
		tx.Recipient == other.Recipient &&
		tx.Amount == other.Amount &&
		tx.Timestamp == other.Timestamp &&
		tx.Signature == other.Signature
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%.10s -> %.10s amount[%v]", tx.Sender, tx.Recipient, tx.Amount)
}

// =============================================================================

// canonical builds the map the hashing routines consume. Maps marshal with
// sorted keys, which is what makes the encoding canonical.
func (tx Tx) canonical(includeSignature bool) map[string]any {
	m := map[string]any{
		"sender":    tx.Sender,
		"recipient": tx.Recipient,
		"amount":    tx.Amount,
		"timestamp": tx.Timestamp,
	}

	if includeSignature && tx.Signature != "" {
		m["signature"] = tx.Signature
	}

	return m
}

// validateAmount checks the amount is a finite value inside the allowed
// bounds.
func validateAmount(amount float64) error {
	switch {
	case math.IsNaN(amount) || math.IsInf(amount, 0):
		return fmt.Errorf("transaction amount must be a finite number")
	case amount <= 0:
		return fmt.Errorf("transaction amount must be positive")
	case amount < MinAmount:
		return fmt.Errorf("transaction amount is too small, minimum %v", MinAmount)
	case amount > MaxAmount:
		return fmt.Errorf("transaction amount is too large, maximum %v", MaxAmount)
	}

	return nil
}
