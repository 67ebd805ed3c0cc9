package worker_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgecoin/forgecoin/foundation/blockchain/chain"
	"github.com/forgecoin/forgecoin/foundation/blockchain/genesis"
	"github.com/forgecoin/forgecoin/foundation/blockchain/node"
	"github.com/forgecoin/forgecoin/foundation/blockchain/signature"
	"github.com/forgecoin/forgecoin/foundation/blockchain/storage/memory"
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
	"github.com/forgecoin/forgecoin/foundation/blockchain/worker"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func TestMiningOperation(t *testing.T) {
	t.Log("Given the need to mine in the background on a signal.")
	{
		gen := genesis.Default()
		gen.Difficulty = 1

		c, err := chain.New(chain.Config{Genesis: gen})
		if err != nil {
			t.Fatalf("\t%s\tShould construct the chain: %v", failed, err)
		}

		n := node.New(node.Config{Host: "127.0.0.1", Port: 0, Chain: c})
		if err := n.Start(); err != nil {
			t.Fatalf("\t%s\tShould start the node: %v", failed, err)
		}
		defer n.Stop()

		store := memory.New()
		if err := store.SaveBlock(c.Blocks()[0]); err != nil {
			t.Fatalf("\t%s\tShould persist the genesis block: %v", failed, err)
		}

		w := worker.Run(worker.Config{
			Chain:        c,
			Node:         n,
			Storage:      store,
			MinerAddress: "miner-address",
		})
		defer w.Shutdown()

		privateKey, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould generate a key: %v", failed, err)
		}
		tx, err := transaction.New(signature.PublicKeyToHex(&privateKey.PublicKey), "bob", 10)
		if err != nil {
			t.Fatalf("\t%s\tShould construct a transaction: %v", failed, err)
		}
		if err := tx.Sign(privateKey); err != nil {
			t.Fatalf("\t%s\tShould sign the transaction: %v", failed, err)
		}
		if err := c.AddTransaction(tx); err != nil {
			t.Fatalf("\t%s\tShould pool the transaction: %v", failed, err)
		}

		w.SignalStartMining()

		deadline := time.Now().Add(5 * time.Second)
		for c.Height() < 2 {
			if time.Now().After(deadline) {
				t.Fatalf("\t%s\tShould mine a block on the signal, height %d.", failed, c.Height())
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Logf("\t%s\tShould mine a block on the signal.", success)

		for {
			blocks, err := store.GetBlocks()
			if err != nil {
				t.Fatalf("\t%s\tShould read blocks back from storage: %v", failed, err)
			}
			if len(blocks) == 2 && blocks[1].Index == 1 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("\t%s\tShould persist the mined block.", failed)
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Logf("\t%s\tShould persist the mined block.", success)
	}
}
