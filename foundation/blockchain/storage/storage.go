// Package storage declares the persistence interface the node consults for
// durability. The consensus rules never depend on storage, a node that loses
// its data directory simply rebuilds from its peers.
package storage

import (
	"github.com/forgecoin/forgecoin/foundation/blockchain/block"
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// PeerRecord represents a known peer persisted across restarts. Trusted
// marks peers an operator vouches for, which lets a node restrict its
// bootstrap set to them.
type PeerRecord struct {
	NodeID  string `json:"node_id"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Trusted bool   `json:"is_trusted"`
}

// WalletRecord represents the public half of a wallet the node has seen.
type WalletRecord struct {
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
}

// Storage interface represents the behavior required to be implemented by
// any package providing persistence for the node.
type Storage interface {
	SaveBlock(b block.Block) error
	GetBlocks() ([]block.Block, error)
	SavePendingTransactions(txs []transaction.Tx) error
	GetPendingTransactions() ([]transaction.Tx, error)
	SaveWallet(w WalletRecord) error
	GetWallet(address string) (WalletRecord, error)
	SavePeer(p PeerRecord) error
	RemovePeer(nodeID string) error
	GetPeers(trustedOnly bool) ([]PeerRecord, error)
	ClearData() error
	Close() error
}
