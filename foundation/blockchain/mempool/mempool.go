// Package mempool maintains the bounded pool of transactions waiting to
// be included in a block.
package mempool

import (
	"errors"
	"sync"

	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// MaxSize is the default capacity of the pool.
const MaxSize = 1000

// Set of pool admission errors.
var (
	ErrPoolFull  = errors.New("transaction pool is full")
	ErrDuplicate = errors.New("duplicate transaction")
	ErrInvalid   = errors.New("transaction failed verification")
)

// Mempool represents the pending transactions for the node. Admission is
// deduplicated on the (sender, recipient, amount, timestamp) tuple and
// removal matches on signature.
type Mempool struct {
	mu      sync.RWMutex
	maxSize int
	pool    []transaction.Tx
}

// New constructs a mempool with the default capacity.
func New() *Mempool {
	return NewWithSize(MaxSize)
}

// NewWithSize constructs a mempool with the specified capacity.
func NewWithSize(maxSize int) *Mempool {
	return &Mempool{
		maxSize: maxSize,
	}
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Add admits a transaction into the pool. The pool must have capacity, the
// transaction must not duplicate a pending one, and its signature must
// verify. On any rejection the pool is left unchanged.
func (mp *Mempool) Add(tx transaction.Tx) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if len(mp.pool) >= mp.maxSize {
		return ErrPoolFull
	}

	for _, existing := range mp.pool {
		if existing.Sender == tx.Sender &&
			existing.Recipient == tx.Recipient &&
			existing.Amount == tx.Amount &&
			existing.Timestamp == tx.Timestamp {
			return ErrDuplicate
		}
	}

	if !tx.Verify() {
		return ErrInvalid
	}

	mp.pool = append(mp.pool, tx)

	return nil
}

// Copy returns a defensive copy of the pending transactions. Callers never
// observe pool internals directly.
func (mp *Mempool) Copy() []transaction.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]transaction.Tx, len(mp.pool))
	copy(txs, mp.pool)

	return txs
}

// Remove drops every pooled transaction whose signature appears in the
// specified set. Transactions without a signature cannot be targeted this
// way. That is safe today because reward transactions are injected at
// mining time and never pooled, but admitting unsigned transactions
// directly into the pool would break removal.
func (mp *Mempool) Remove(txs []transaction.Tx) {
	signatures := make(map[string]struct{})
	for _, tx := range txs {
		if tx.Signature != "" {
			signatures[tx.Signature] = struct{}{}
		}
	}
	if len(signatures) == 0 {
		return
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	keep := mp.pool[:0]
	for _, tx := range mp.pool {
		if _, found := signatures[tx.Signature]; !found {
			keep = append(keep, tx)
		}
	}
	mp.pool = keep
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = nil
}
