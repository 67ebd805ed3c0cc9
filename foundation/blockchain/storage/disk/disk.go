// Package disk implements the storage interface with one JSON file per
// block plus flat JSON files for pending transactions, wallets and peers.
package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/forgecoin/forgecoin/foundation/blockchain/block"
	"github.com/forgecoin/forgecoin/foundation/blockchain/storage"
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Disk represents the file based implementation of the storage interface.
// Block files are named by index so the chain reads back in order. The
// mutex serializes writers of the shared flat files.
type Disk struct {
	mu     sync.Mutex
	dbPath string
}

// New constructs a Disk value for use, creating the data directory when it
// does not exist.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(filepath.Join(dbPath, "blocks"), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since every write opens
// its file and immediately closes it.
func (d *Disk) Close() error {
	return nil
}

// SaveBlock stores the specified block on disk in a file named by its index.
func (d *Disk) SaveBlock(b block.Block) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding block: %w", err)
	}

	if err := os.WriteFile(d.blockPath(b.Index), data, 0600); err != nil {
		return fmt.Errorf("writing block file: %w", err)
	}

	return nil
}

// GetBlocks reads the blocks back in index order, stopping at the first
// missing index. A node with no data returns an empty slice, not an error.
func (d *Disk) GetBlocks() ([]block.Block, error) {
	var blocks []block.Block

	for index := uint64(0); ; index++ {
		data, err := os.ReadFile(d.blockPath(index))
		if errors.Is(err, fs.ErrNotExist) {
			return blocks, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading block file %d: %w", index, err)
		}

		var b block.Block
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decoding block file %d: %w", index, err)
		}
		blocks = append(blocks, b)
	}
}

// SavePendingTransactions replaces the persisted pending pool.
func (d *Disk) SavePendingTransactions(txs []transaction.Tx) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.writeJSON("pending.json", txs)
}

// GetPendingTransactions reads the persisted pending pool.
func (d *Disk) GetPendingTransactions() ([]transaction.Tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var txs []transaction.Tx
	if err := d.readJSON("pending.json", &txs); err != nil {
		return nil, err
	}

	return txs, nil
}

// SaveWallet stores or updates the public record of a wallet.
func (d *Disk) SaveWallet(w storage.WalletRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var wallets []storage.WalletRecord
	if err := d.readJSON("wallets.json", &wallets); err != nil {
		return err
	}

	for i := range wallets {
		if wallets[i].Address == w.Address {
			wallets[i] = w
			return d.writeJSON("wallets.json", wallets)
		}
	}
	wallets = append(wallets, w)

	return d.writeJSON("wallets.json", wallets)
}

// GetWallet returns the wallet record for the specified address.
func (d *Disk) GetWallet(address string) (storage.WalletRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var wallets []storage.WalletRecord
	if err := d.readJSON("wallets.json", &wallets); err != nil {
		return storage.WalletRecord{}, err
	}

	for _, w := range wallets {
		if w.Address == address {
			return w, nil
		}
	}

	return storage.WalletRecord{}, fmt.Errorf("wallet %q: %w", address, ErrNotFound)
}

// SavePeer stores or updates a known peer.
func (d *Disk) SavePeer(p storage.PeerRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var peers []storage.PeerRecord
	if err := d.readJSON("peers.json", &peers); err != nil {
		return err
	}

	for i := range peers {
		if peers[i].NodeID == p.NodeID {
			peers[i] = p
			return d.writeJSON("peers.json", peers)
		}
	}
	peers = append(peers, p)

	return d.writeJSON("peers.json", peers)
}

// RemovePeer drops a peer from the persisted set. Removing an unknown peer
// is not an error.
func (d *Disk) RemovePeer(nodeID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var peers []storage.PeerRecord
	if err := d.readJSON("peers.json", &peers); err != nil {
		return err
	}

	keep := peers[:0]
	for _, p := range peers {
		if p.NodeID != nodeID {
			keep = append(keep, p)
		}
	}

	return d.writeJSON("peers.json", keep)
}

// GetPeers returns the persisted peers, restricted to the trusted ones
// when trustedOnly is set.
func (d *Disk) GetPeers(trustedOnly bool) ([]storage.PeerRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var peers []storage.PeerRecord
	if err := d.readJSON("peers.json", &peers); err != nil {
		return nil, err
	}

	if !trustedOnly {
		return peers, nil
	}

	trusted := make([]storage.PeerRecord, 0, len(peers))
	for _, p := range peers {
		if p.Trusted {
			trusted = append(trusted, p)
		}
	}

	return trusted, nil
}

// ClearData removes everything under the data directory and recreates it
// empty.
func (d *Disk) ClearData() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.RemoveAll(d.dbPath); err != nil {
		return fmt.Errorf("removing data directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(d.dbPath, "blocks"), 0755); err != nil {
		return fmt.Errorf("recreating data directory: %w", err)
	}

	return nil
}

// =============================================================================

// blockPath forms the path to the file for the specified block index.
func (d *Disk) blockPath(index uint64) string {
	return filepath.Join(d.dbPath, "blocks", strconv.FormatUint(index, 10)+".json")
}

// writeJSON replaces the named flat file with the encoded value.
func (d *Disk) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	if err := os.WriteFile(filepath.Join(d.dbPath, name), data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return nil
}

// readJSON decodes the named flat file into the value. A missing file
// leaves the value untouched.
func (d *Disk) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(d.dbPath, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}

	return nil
}
