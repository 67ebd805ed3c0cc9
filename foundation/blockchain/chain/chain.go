// Package chain is the core API for the blockchain and implements all the
// consensus rules: appending blocks, mining pending transactions, replacing
// the chain on a longer fork, and retargeting the difficulty.
package chain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/forgecoin/forgecoin/foundation/blockchain/block"
	"github.com/forgecoin/forgecoin/foundation/blockchain/genesis"
	"github.com/forgecoin/forgecoin/foundation/blockchain/mempool"
	"github.com/forgecoin/forgecoin/foundation/blockchain/signature"
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// Set of consensus errors callers branch on.
var (
	ErrNoTransactions = errors.New("no transactions to mine")
	ErrBlockExists    = errors.New("block already exists in the chain")
	ErrNotLonger      = errors.New("candidate chain is not longer than the current chain")
)

// EventHandler defines a function that is called when events occur in the
// processing of consensus operations.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to start the chain.
type Config struct {
	Genesis     genesis.Genesis
	MaxPoolSize int
	EvHandler   EventHandler
}

// Chain manages the blockchain and the pool of pending transactions. One
// mutex guards every read and write of chain state, which keeps the
// consensus rules simple to reason about at the cost of concurrency.
type Chain struct {
	mu           sync.Mutex
	genesis      genesis.Genesis
	difficulty   int
	miningReward float64
	blocks       []block.Block
	mempool      *mempool.Mempool
	evHandler    EventHandler
}

// New constructs a chain and mines the genesis block from the fixed genesis
// parameters. Since the nonce search starts at zero, every node produces an
// identical first block.
func New(cfg Config) (*Chain, error) {
	ev := func(v string, args ...any) {}
	if cfg.EvHandler != nil {
		ev = cfg.EvHandler
	}

	maxPoolSize := cfg.MaxPoolSize
	if maxPoolSize <= 0 {
		maxPoolSize = mempool.MaxSize
	}

	gen := block.Block{
		Index:     0,
		Timestamp: cfg.Genesis.Timestamp,
		PrevHash:  signature.ZeroHash,
	}
	if err := gen.Mine(cfg.Genesis.Difficulty); err != nil {
		return nil, fmt.Errorf("mining genesis block: %w", err)
	}

	c := Chain{
		genesis:      cfg.Genesis,
		difficulty:   cfg.Genesis.Difficulty,
		miningReward: cfg.Genesis.MiningReward,
		blocks:       []block.Block{gen},
		mempool:      mempool.NewWithSize(maxPoolSize),
		evHandler:    ev,
	}

	ev("chain: genesis block mined: %s", gen)

	return &c, nil
}

// Genesis returns a copy of the genesis configuration.
func (c *Chain) Genesis() genesis.Genesis {
	return c.genesis
}

// Height returns the current number of blocks in the chain.
func (c *Chain) Height() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.blocks)
}

// Difficulty returns the current mining difficulty.
func (c *Chain) Difficulty() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.difficulty
}

// MiningReward returns the reward paid for mining a block.
func (c *Chain) MiningReward() float64 {
	return c.miningReward
}

// LatestBlock returns a copy of the most recent block in the chain.
func (c *Chain) LatestBlock() block.Block {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.blocks[len(c.blocks)-1]
}

// Blocks returns a copy of the full chain.
func (c *Chain) Blocks() []block.Block {
	c.mu.Lock()
	defer c.mu.Unlock()

	blocks := make([]block.Block, len(c.blocks))
	copy(blocks, c.blocks)

	return blocks
}

// PendingTransactions returns a copy of the pool of transactions waiting to
// be mined.
func (c *Chain) PendingTransactions() []transaction.Tx {
	return c.mempool.Copy()
}

// AddTransaction validates a transaction and admits it into the pool.
func (c *Chain) AddTransaction(tx transaction.Tx) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validating transaction: %w", err)
	}

	if err := c.mempool.Add(tx); err != nil {
		return err
	}

	c.evHandler("chain: transaction accepted into the pool: %s", tx)

	return nil
}

// MinePendingTransactions performs the proof of work to produce the next
// block from the pending pool, paying the reward to the specified miner. The
// nonce search runs outside the chain lock so transactions and peer blocks
// keep flowing while mining; the finished block is re-checked against the
// chain under lock and simply discarded when it went stale.
func (c *Chain) MinePendingTransactions(minerAddress string) (block.Block, error) {
	c.mu.Lock()
	pending := c.mempool.Copy()
	index := uint64(len(c.blocks))
	prevHash := c.blocks[len(c.blocks)-1].Hash
	difficulty := c.difficulty
	c.mu.Unlock()

	if len(pending) == 0 && minerAddress != transaction.SystemAccount {
		return block.Block{}, ErrNoTransactions
	}

	txs := pending
	if minerAddress != transaction.SystemAccount {
		reward := transaction.Tx{
			Sender:    transaction.SystemAccount,
			Recipient: minerAddress,
			Amount:    c.miningReward,
			Timestamp: time.Now().UTC().UnixNano(),
		}
		txs = append([]transaction.Tx{reward}, pending...)
	}

	b, err := block.New(index, txs, prevHash)
	if err != nil {
		return block.Block{}, fmt.Errorf("constructing block: %w", err)
	}

	c.evHandler("chain: mining block at index %d with %d transactions", b.Index, len(b.Transactions))
	start := time.Now()
	if err := b.Mine(difficulty); err != nil {
		return block.Block{}, fmt.Errorf("mining block: %w", err)
	}
	c.evHandler("chain: block mined in %v: %s", time.Since(start), b)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.addBlockLocked(b); err != nil {
		return block.Block{}, fmt.Errorf("adding mined block: %w", err)
	}
	c.mempool.Truncate()

	return b, nil
}

// AddBlock validates a block received from a peer and appends it to the
// chain. The block must extend the current tip and satisfy the current
// difficulty. A block whose hash already exists anywhere in the chain is
// rejected, which makes delivery of the same block twice harmless.
func (c *Chain) AddBlock(b block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.addBlockLocked(b)
}

// ReplaceChain swaps the current chain for the candidate when the candidate
// is fully valid and strictly longer. The whole check and swap happens under
// the lock so concurrent mining or appends never observe a half replaced
// chain. Length is the fork choice rule, not accumulated work.
func (c *Chain) ReplaceChain(candidate []block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(candidate) == 0 {
		return fmt.Errorf("candidate chain is empty")
	}

	seen := make(map[string]struct{}, len(candidate))
	for _, b := range candidate {
		if _, found := seen[b.Hash]; found {
			return fmt.Errorf("candidate chain contains duplicate block %.10s", b.Hash)
		}
		seen[b.Hash] = struct{}{}
	}

	if err := c.validateChainLocked(candidate); err != nil {
		return fmt.Errorf("validating candidate chain: %w", err)
	}

	if len(candidate) <= len(c.blocks) {
		return fmt.Errorf("candidate length %d, current length %d: %w", len(candidate), len(c.blocks), ErrNotLonger)
	}

	blocks := make([]block.Block, len(candidate))
	copy(blocks, candidate)
	c.blocks = blocks

	c.evHandler("chain: chain replaced, new height %d", len(c.blocks))

	return nil
}

// Balance walks every block and sums the transaction amounts touching the
// specified address.
func (c *Chain) Balance(address string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var balance float64
	for _, b := range c.blocks {
		for _, tx := range b.Transactions {
			if tx.Sender == address {
				balance -= tx.Amount
			}
			if tx.Recipient == address {
				balance += tx.Amount
			}
		}
	}

	return balance
}

// =============================================================================

// Data is the serialized form of the chain exchanged between peers and
// persisted to storage. The field names form the wire contract and must not
// change.
type Data struct {
	Chain        []block.Block `json:"chain"`
	Difficulty   int           `json:"difficulty"`
	MiningReward float64       `json:"mining_reward"`
}

// CopyData returns a snapshot of the chain in its serialized form.
func (c *Chain) CopyData() Data {
	c.mu.Lock()
	defer c.mu.Unlock()

	blocks := make([]block.Block, len(c.blocks))
	copy(blocks, c.blocks)

	return Data{
		Chain:        blocks,
		Difficulty:   c.difficulty,
		MiningReward: c.miningReward,
	}
}

// ReplaceFromData applies a serialized chain received from a peer or read
// back from storage. The difficulty and reward in the payload are advisory,
// the node keeps its own.
func (c *Chain) ReplaceFromData(data Data) error {
	return c.ReplaceChain(data.Chain)
}

// =============================================================================

// addBlockLocked implements the append rules. The caller must hold the lock.
func (c *Chain) addBlockLocked(b block.Block) error {
	for _, existing := range c.blocks {
		if existing.Hash == b.Hash {
			return fmt.Errorf("block %.10s: %w", b.Hash, ErrBlockExists)
		}
	}

	if b.Index != uint64(len(c.blocks)) {
		return fmt.Errorf("block index %d, expected %d", b.Index, len(c.blocks))
	}

	latest := c.blocks[len(c.blocks)-1]
	if b.PrevHash != latest.Hash {
		return fmt.Errorf("block previous hash %.10s does not reference the tip %.10s", b.PrevHash, latest.Hash)
	}

	if !b.IsValid(c.difficulty) {
		return fmt.Errorf("block %.10s failed validation at difficulty %d", b.Hash, c.difficulty)
	}

	c.blocks = append(c.blocks, b)
	c.evHandler("chain: block accepted: %s", b)

	c.mempool.Remove(b.Transactions)
	c.adjustDifficultyLocked()

	return nil
}

// validateChainLocked checks a candidate chain from genesis forward. Every
// block is validated against the node's current difficulty. The caller must
// hold the lock.
func (c *Chain) validateChainLocked(candidate []block.Block) error {
	if candidate[0].Index != 0 || candidate[0].PrevHash != signature.ZeroHash {
		return fmt.Errorf("candidate genesis block is malformed")
	}

	for i := 1; i < len(candidate); i++ {
		current := candidate[i]
		previous := candidate[i-1]

		if current.Index != uint64(i) {
			return fmt.Errorf("block at position %d carries index %d", i, current.Index)
		}
		if current.PrevHash != previous.Hash {
			return fmt.Errorf("block at position %d does not reference its predecessor", i)
		}
		if !current.IsValid(c.difficulty) {
			return fmt.Errorf("block at position %d failed validation", i)
		}
	}

	return nil
}

// adjustDifficultyLocked retargets the difficulty once per adjustment
// interval by comparing the time the last interval of blocks took against
// the target. The difficulty never drops below 1 and has no ceiling. The
// caller must hold the lock.
func (c *Chain) adjustDifficultyLocked() {
	interval := c.genesis.AdjustmentInterval

	if len(c.blocks)%interval != 0 {
		return
	}
	if len(c.blocks) <= interval {
		return
	}

	expected := c.genesis.TargetBlockTime.Nanoseconds() * int64(interval)
	taken := c.blocks[len(c.blocks)-1].Timestamp - c.blocks[len(c.blocks)-interval].Timestamp

	switch {
	case taken < expected/2:
		c.difficulty++
		c.evHandler("chain: blocks arriving too fast, difficulty raised to %d", c.difficulty)

	case taken > expected*2 && c.difficulty > 1:
		c.difficulty--
		c.evHandler("chain: blocks arriving too slow, difficulty lowered to %d", c.difficulty)
	}
}
