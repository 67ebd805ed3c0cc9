// Package block implements the proof of work block and its hashing rules.
package block

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/forgecoin/forgecoin/foundation/blockchain/signature"
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// maxNonce bounds the proof of work search space. A production system
// would roll an extra nonce or the timestamp once this is exhausted.
const maxNonce = uint64(1) << 32

// ErrNonceExhausted is returned from Mine when the bounded nonce space is
// exhausted without finding a solution. This is a fatal condition for the
// mining call, distinct from having nothing to mine.
var ErrNonceExhausted = errors.New("nonce space exhausted without a solution")

// Block represents an ordered batch of transactions chained to its
// predecessor by hash. The field names form the wire contract and must
// not change.
type Block struct {
	Index        uint64           `json:"index"`
	Timestamp    int64            `json:"timestamp"`
	PrevHash     string           `json:"previous_hash"`
	Hash         string           `json:"hash"`
	Nonce        uint64           `json:"nonce"`
	Transactions []transaction.Tx `json:"transactions"`
}

// New constructs a block at the specified position with the given payload
// and computes its initial hash. The timestamp is captured at construction.
func New(index uint64, txs []transaction.Tx, prevHash string) (Block, error) {
	b := Block{
		Index:        index,
		Timestamp:    time.Now().UTC().UnixNano(),
		PrevHash:     prevHash,
		Nonce:        0,
		Transactions: txs,
	}

	if err := b.validateShape(); err != nil {
		return Block{}, err
	}
	b.Hash = b.CalculateHash()

	return b, nil
}

// CalculateHash returns the hex encoded SHA-256 digest of the canonical
// key sorted encoding of the block contents, hash excluded.
func (b Block) CalculateHash() string {
	txs := make([]map[string]any, len(b.Transactions))
	for i, tx := range b.Transactions {
		txs[i] = tx.Canonical()
	}

	return signature.Hash(map[string]any{
		"index":         b.Index,
		"timestamp":     b.Timestamp,
		"previous_hash": b.PrevHash,
		"nonce":         b.Nonce,
		"transactions":  txs,
	})
}

// Mine performs the proof of work search, iterating the nonce from zero
// until the hash carries the required count of leading zero characters.
// Pointer semantics are being used since a nonce is being discovered.
func (b *Block) Mine(difficulty int) error {
	for nonce := uint64(0); nonce < maxNonce; nonce++ {
		b.Nonce = nonce
		b.Hash = b.CalculateHash()

		if isHashSolved(difficulty, b.Hash) {
			return nil
		}
	}

	return ErrNonceExhausted
}

// IsValid reports whether the stored hash matches the block contents,
// satisfies the proof of work for the specified difficulty, and every
// contained transaction verifies. Any failure invalidates the whole block.
func (b Block) IsValid(difficulty int) bool {
	if b.CalculateHash() != b.Hash {
		return false
	}

	if !isHashSolved(difficulty, b.Hash) {
		return false
	}

	for _, tx := range b.Transactions {
		if !tx.Verify() {
			return false
		}
	}

	return true
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("blk[%d] hash[%.10s] prev[%.10s] txs[%d] nonce[%d]", b.Index, b.Hash, b.PrevHash, len(b.Transactions), b.Nonce)
}

// =============================================================================

// validateShape checks the construction rules for a block.
func (b Block) validateShape() error {
	if len(b.PrevHash) != signature.HashLength {
		return fmt.Errorf("previous hash must be %d characters, got %d", signature.HashLength, len(b.PrevHash))
	}
	if _, err := hex.DecodeString(b.PrevHash); err != nil {
		return fmt.Errorf("previous hash must be hex encoded: %w", err)
	}

	return nil
}

// isHashSolved checks the hash complies with the proof of work rules for
// the specified difficulty.
func isHashSolved(difficulty int, hash string) bool {
	if len(hash) != signature.HashLength {
		return false
	}
	if difficulty < 0 || difficulty > signature.HashLength {
		return false
	}

	return hash[:difficulty] == signature.ZeroHash[:difficulty]
}
