// Package memory implements the storage interface entirely in memory. It
// exists for tests and for running throwaway nodes without a data directory.
package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/forgecoin/forgecoin/foundation/blockchain/block"
	"github.com/forgecoin/forgecoin/foundation/blockchain/storage"
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Memory represents the in memory implementation of the storage interface.
type Memory struct {
	mu      sync.Mutex
	blocks  map[uint64]block.Block
	pending []transaction.Tx
	wallets map[string]storage.WalletRecord
	peers   map[string]storage.PeerRecord
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{
		blocks:  make(map[uint64]block.Block),
		wallets: make(map[string]storage.WalletRecord),
		peers:   make(map[string]storage.PeerRecord),
	}
}

// Close in this implementation has nothing to do.
func (m *Memory) Close() error {
	return nil
}

// SaveBlock stores the specified block by index.
func (m *Memory) SaveBlock(b block.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks[b.Index] = b

	return nil
}

// GetBlocks returns the stored blocks in index order, stopping at the first
// missing index.
func (m *Memory) GetBlocks() ([]block.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var blocks []block.Block
	for index := uint64(0); ; index++ {
		b, found := m.blocks[index]
		if !found {
			return blocks, nil
		}
		blocks = append(blocks, b)
	}
}

// SavePendingTransactions replaces the stored pending pool.
func (m *Memory) SavePendingTransactions(txs []transaction.Tx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = make([]transaction.Tx, len(txs))
	copy(m.pending, txs)

	return nil
}

// GetPendingTransactions returns the stored pending pool.
func (m *Memory) GetPendingTransactions() ([]transaction.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	txs := make([]transaction.Tx, len(m.pending))
	copy(txs, m.pending)

	return txs, nil
}

// SaveWallet stores or updates the public record of a wallet.
func (m *Memory) SaveWallet(w storage.WalletRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.wallets[w.Address] = w

	return nil
}

// GetWallet returns the wallet record for the specified address.
func (m *Memory) GetWallet(address string) (storage.WalletRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, found := m.wallets[address]
	if !found {
		return storage.WalletRecord{}, fmt.Errorf("wallet %q: %w", address, ErrNotFound)
	}

	return w, nil
}

// SavePeer stores or updates a known peer.
func (m *Memory) SavePeer(p storage.PeerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.peers[p.NodeID] = p

	return nil
}

// RemovePeer drops a peer from the stored set.
func (m *Memory) RemovePeer(nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.peers, nodeID)

	return nil
}

// GetPeers returns the stored peers, restricted to the trusted ones when
// trustedOnly is set.
func (m *Memory) GetPeers(trustedOnly bool) ([]storage.PeerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	peers := make([]storage.PeerRecord, 0, len(m.peers))
	for _, p := range m.peers {
		if trustedOnly && !p.Trusted {
			continue
		}
		peers = append(peers, p)
	}

	return peers, nil
}

// ClearData drops everything.
func (m *Memory) ClearData() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = make(map[uint64]block.Block)
	m.pending = nil
	m.wallets = make(map[string]storage.WalletRecord)
	m.peers = make(map[string]storage.PeerRecord)

	return nil
}
