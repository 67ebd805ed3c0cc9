package chain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgecoin/forgecoin/foundation/blockchain/chain"
	"github.com/forgecoin/forgecoin/foundation/blockchain/genesis"
	"github.com/forgecoin/forgecoin/foundation/blockchain/signature"
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// testGenesis keeps the difficulty low so tests mine in microseconds.
func testGenesis() genesis.Genesis {
	gen := genesis.Default()
	gen.Difficulty = 1
	return gen
}

func newTestChain(t *testing.T, gen genesis.Genesis) *chain.Chain {
	t.Helper()

	c, err := chain.New(chain.Config{Genesis: gen})
	if err != nil {
		t.Fatalf("constructing chain: %v", err)
	}

	return c
}

func signedTx(t *testing.T, recipient string, amount float64) transaction.Tx {
	t.Helper()

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	tx, err := transaction.New(signature.PublicKeyToHex(&privateKey.PublicKey), recipient, amount)
	if err != nil {
		t.Fatalf("constructing transaction: %v", err)
	}
	if err := tx.Sign(privateKey); err != nil {
		t.Fatalf("signing transaction: %v", err)
	}

	return tx
}

func TestGenesisDeterminism(t *testing.T) {
	t.Log("Given the need for every node to derive the same genesis block.")
	{
		c1 := newTestChain(t, testGenesis())
		c2 := newTestChain(t, testGenesis())

		g1 := c1.Blocks()[0]
		g2 := c2.Blocks()[0]

		if g1.Hash != g2.Hash {
			t.Fatalf("\t%s\tShould mine identical genesis blocks: %s vs %s.", failed, g1.Hash, g2.Hash)
		}
		t.Logf("\t%s\tShould mine identical genesis blocks.", success)

		if g1.Index != 0 || g1.PrevHash != signature.ZeroHash || len(g1.Transactions) != 0 {
			t.Fatalf("\t%s\tShould produce a well formed genesis block.", failed)
		}
		t.Logf("\t%s\tShould produce a well formed genesis block.", success)
	}
}

func TestMinePendingTransactions(t *testing.T) {
	t.Log("Given the need to mine pending transactions into a block.")
	{
		c := newTestChain(t, testGenesis())

		// Two refusals in a row, with the chain and pool untouched after each.
		for i := 0; i < 2; i++ {
			if _, err := c.MinePendingTransactions("miner-address"); !errors.Is(err, chain.ErrNoTransactions) {
				t.Fatalf("\t%s\tShould refuse to mine an empty pool for a regular miner: %v", failed, err)
			}
			if c.Height() != 1 {
				t.Fatalf("\t%s\tShould leave the chain unchanged after a refused mine, height %d.", failed, c.Height())
			}
			if len(c.PendingTransactions()) != 0 {
				t.Fatalf("\t%s\tShould leave the pool unchanged after a refused mine.", failed)
			}
		}
		t.Logf("\t%s\tShould refuse to mine an empty pool twice and leave all state unchanged.", success)

		tx := signedTx(t, "bob", 25)
		if err := c.AddTransaction(tx); err != nil {
			t.Fatalf("\t%s\tShould accept a signed transaction: %v", failed, err)
		}

		b, err := c.MinePendingTransactions("miner-address")
		if err != nil {
			t.Fatalf("\t%s\tShould mine a block from the pool: %v", failed, err)
		}
		t.Logf("\t%s\tShould mine a block from the pool.", success)

		if len(b.Transactions) != 2 {
			t.Fatalf("\t%s\tShould include the reward and the pending transaction, got %d.", failed, len(b.Transactions))
		}
		reward := b.Transactions[0]
		if reward.Sender != transaction.SystemAccount || reward.Recipient != "miner-address" || reward.Amount != c.MiningReward() {
			t.Fatalf("\t%s\tShould place the reward transaction first.", failed)
		}
		t.Logf("\t%s\tShould place the reward transaction first.", success)

		if len(c.PendingTransactions()) != 0 {
			t.Fatalf("\t%s\tShould clear the pool after a successful mine.", failed)
		}
		t.Logf("\t%s\tShould clear the pool after a successful mine.", success)

		if c.Height() != 2 {
			t.Fatalf("\t%s\tShould append the mined block, height %d.", failed, c.Height())
		}
		t.Logf("\t%s\tShould append the mined block.", success)

		// The system account mines without a reward, even on an empty pool.
		b, err = c.MinePendingTransactions(transaction.SystemAccount)
		if err != nil {
			t.Fatalf("\t%s\tShould allow the system account to mine an empty block: %v", failed, err)
		}
		if len(b.Transactions) != 0 {
			t.Fatalf("\t%s\tShould not pay a reward to the system account.", failed)
		}
		t.Logf("\t%s\tShould allow the system account to mine an empty block without a reward.", success)
	}
}

func TestAddBlockRules(t *testing.T) {
	t.Log("Given the need to validate blocks received from peers.")
	{
		c := newTestChain(t, testGenesis())
		peer := newTestChain(t, testGenesis())

		b, err := peer.MinePendingTransactions(transaction.SystemAccount)
		if err != nil {
			t.Fatalf("\t%s\tShould mine a block on the peer chain: %v", failed, err)
		}

		if err := c.AddBlock(b); err != nil {
			t.Fatalf("\t%s\tShould accept a valid block extending the tip: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept a valid block extending the tip.", success)

		if err := c.AddBlock(b); !errors.Is(err, chain.ErrBlockExists) {
			t.Fatalf("\t%s\tShould reject a replayed block: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a replayed block.", success)

		wrongIndex := b
		wrongIndex.Index = 5
		wrongIndex.Hash = wrongIndex.CalculateHash()
		if err := c.AddBlock(wrongIndex); err == nil {
			t.Fatalf("\t%s\tShould reject a block with the wrong index.", failed)
		}
		t.Logf("\t%s\tShould reject a block with the wrong index.", success)

		orphan, err := peer.MinePendingTransactions(transaction.SystemAccount)
		if err != nil {
			t.Fatalf("\t%s\tShould mine a second block on the peer chain: %v", failed, err)
		}
		orphan.PrevHash = signature.ZeroHash
		if err := c.AddBlock(orphan); err == nil {
			t.Fatalf("\t%s\tShould reject a block that does not reference the tip.", failed)
		}
		t.Logf("\t%s\tShould reject a block that does not reference the tip.", success)
	}
}

func TestReplaceChain(t *testing.T) {
	t.Log("Given the need to adopt the longest valid chain.")
	{
		c := newTestChain(t, testGenesis())
		peer := newTestChain(t, testGenesis())

		for i := 0; i < 3; i++ {
			if _, err := peer.MinePendingTransactions(transaction.SystemAccount); err != nil {
				t.Fatalf("\t%s\tShould grow the peer chain: %v", failed, err)
			}
		}

		if err := c.ReplaceChain(peer.Blocks()); err != nil {
			t.Fatalf("\t%s\tShould adopt a longer valid chain: %v", failed, err)
		}
		if c.Height() != peer.Height() {
			t.Fatalf("\t%s\tShould match the peer height after replacement, got %d.", failed, c.Height())
		}
		t.Logf("\t%s\tShould adopt a longer valid chain.", success)

		if err := c.ReplaceChain(peer.Blocks()); !errors.Is(err, chain.ErrNotLonger) {
			t.Fatalf("\t%s\tShould reject a chain of equal length: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a chain of equal length.", success)

		if err := c.ReplaceChain(nil); err == nil {
			t.Fatalf("\t%s\tShould reject an empty candidate chain.", failed)
		}
		t.Logf("\t%s\tShould reject an empty candidate chain.", success)

		if _, err := peer.MinePendingTransactions(transaction.SystemAccount); err != nil {
			t.Fatalf("\t%s\tShould grow the peer chain again: %v", failed, err)
		}
		tampered := peer.Blocks()
		tampered[2].Timestamp++
		if err := c.ReplaceChain(tampered); err == nil {
			t.Fatalf("\t%s\tShould reject a tampered candidate chain.", failed)
		}
		t.Logf("\t%s\tShould reject a tampered candidate chain.", success)

		duplicated := c.Blocks()
		duplicated = append(duplicated, duplicated[1])
		if err := c.ReplaceChain(duplicated); err == nil {
			t.Fatalf("\t%s\tShould reject a candidate chain with duplicate blocks.", failed)
		}
		t.Logf("\t%s\tShould reject a candidate chain with duplicate blocks.", success)
	}
}

func TestDifficultyRetarget(t *testing.T) {
	t.Log("Given the need to retarget difficulty from observed block times.")
	{
		// Blocks mine in microseconds against an hour long target, so the
		// interval completes far too fast and the difficulty must rise.
		gen := testGenesis()
		gen.TargetBlockTime = time.Hour
		gen.AdjustmentInterval = 2

		c := newTestChain(t, gen)
		for c.Height() < 4 {
			if _, err := c.MinePendingTransactions(transaction.SystemAccount); err != nil {
				t.Fatalf("\t%s\tShould mine filler blocks: %v", failed, err)
			}
		}

		if c.Difficulty() != 2 {
			t.Fatalf("\t%s\tShould raise the difficulty after a fast interval, got %d.", failed, c.Difficulty())
		}
		t.Logf("\t%s\tShould raise the difficulty after a fast interval.", success)
	}
	{
		// A nanosecond target makes every interval slow, so the difficulty
		// must fall, stopping at the floor of 1.
		gen := testGenesis()
		gen.Difficulty = 2
		gen.TargetBlockTime = time.Nanosecond
		gen.AdjustmentInterval = 2

		c := newTestChain(t, gen)
		for c.Height() < 4 {
			if _, err := c.MinePendingTransactions(transaction.SystemAccount); err != nil {
				t.Fatalf("\t%s\tShould mine filler blocks: %v", failed, err)
			}
		}

		if c.Difficulty() != 1 {
			t.Fatalf("\t%s\tShould lower the difficulty after a slow interval, got %d.", failed, c.Difficulty())
		}

		for c.Height() < 6 {
			if _, err := c.MinePendingTransactions(transaction.SystemAccount); err != nil {
				t.Fatalf("\t%s\tShould mine filler blocks: %v", failed, err)
			}
		}
		if c.Difficulty() != 1 {
			t.Fatalf("\t%s\tShould never lower the difficulty below 1, got %d.", failed, c.Difficulty())
		}
		t.Logf("\t%s\tShould lower the difficulty after a slow interval and hold the floor.", success)
	}
}

func TestBalance(t *testing.T) {
	t.Log("Given the need to compute balances from chain history.")
	{
		c := newTestChain(t, testGenesis())

		tx := signedTx(t, "bob", 25)
		if err := c.AddTransaction(tx); err != nil {
			t.Fatalf("\t%s\tShould accept the transaction: %v", failed, err)
		}
		if _, err := c.MinePendingTransactions("miner-address"); err != nil {
			t.Fatalf("\t%s\tShould mine the block: %v", failed, err)
		}

		if got := c.Balance("bob"); got != 25 {
			t.Fatalf("\t%s\tShould credit the recipient, balance %v.", failed, got)
		}
		t.Logf("\t%s\tShould credit the recipient.", success)

		if got := c.Balance(tx.Sender); got != -25 {
			t.Fatalf("\t%s\tShould debit the sender, balance %v.", failed, got)
		}
		t.Logf("\t%s\tShould debit the sender.", success)

		if got := c.Balance("miner-address"); got != c.MiningReward() {
			t.Fatalf("\t%s\tShould credit the miner with the reward, balance %v.", failed, got)
		}
		t.Logf("\t%s\tShould credit the miner with the reward.", success)

		// Ledger conservation: every coin held by a regular account was
		// minted by the system account, so the non system balances sum to
		// the negative of the system balance.
		var total float64
		for _, addr := range []string{"bob", tx.Sender, "miner-address"} {
			total += c.Balance(addr)
		}
		if total != -c.Balance(transaction.SystemAccount) {
			t.Fatalf("\t%s\tShould conserve value against the system account, sum %v.", failed, total)
		}
		if total != c.MiningReward() {
			t.Fatalf("\t%s\tShould sum to the total minted reward, sum %v.", failed, total)
		}
		t.Logf("\t%s\tShould conserve value against the minted rewards.", success)
	}
}
