package block_test

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forgecoin/forgecoin/foundation/blockchain/block"
	"github.com/forgecoin/forgecoin/foundation/blockchain/signature"
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

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

func TestConstruction(t *testing.T) {
	t.Log("Given the need to construct well formed blocks.")
	{
		b, err := block.New(1, nil, signature.ZeroHash)
		if err != nil {
			t.Fatalf("\t%s\tShould construct a block with a valid previous hash: %v", failed, err)
		}
		t.Logf("\t%s\tShould construct a block with a valid previous hash.", success)

		if b.Hash != b.CalculateHash() {
			t.Fatalf("\t%s\tShould store the hash of the block contents.", failed)
		}
		t.Logf("\t%s\tShould store the hash of the block contents.", success)

		if _, err := block.New(1, nil, "short"); err == nil {
			t.Fatalf("\t%s\tShould reject a previous hash with the wrong length.", failed)
		}
		t.Logf("\t%s\tShould reject a previous hash with the wrong length.", success)

		if _, err := block.New(1, nil, strings.Repeat("z", signature.HashLength)); err == nil {
			t.Fatalf("\t%s\tShould reject a previous hash that is not hex.", failed)
		}
		t.Logf("\t%s\tShould reject a previous hash that is not hex.", success)
	}
}

func TestMining(t *testing.T) {
	t.Log("Given the need to mine blocks at increasing difficulties.")
	{
		for difficulty := 1; difficulty <= 3; difficulty++ {
			b, err := block.New(1, []transaction.Tx{signedTx(t, "bob", 10)}, signature.ZeroHash)
			if err != nil {
				t.Fatalf("\t%s\tShould construct a block: %v", failed, err)
			}

			if err := b.Mine(difficulty); err != nil {
				t.Fatalf("\t%s\tShould mine a block at difficulty %d: %v", failed, difficulty, err)
			}

			if b.Hash[:difficulty] != signature.ZeroHash[:difficulty] {
				t.Fatalf("\t%s\tShould produce %d leading zeros, hash %s.", failed, difficulty, b.Hash)
			}
			t.Logf("\t%s\tShould mine a valid block at difficulty %d.", success, difficulty)

			if !b.IsValid(difficulty) {
				t.Fatalf("\t%s\tShould validate a freshly mined block at difficulty %d.", failed, difficulty)
			}
			t.Logf("\t%s\tShould validate a freshly mined block at difficulty %d.", success, difficulty)
		}
	}
}

func TestValidation(t *testing.T) {
	t.Log("Given the need to reject tampered blocks.")
	{
		b, err := block.New(1, []transaction.Tx{signedTx(t, "bob", 10)}, signature.ZeroHash)
		if err != nil {
			t.Fatalf("\t%s\tShould construct a block: %v", failed, err)
		}
		if err := b.Mine(1); err != nil {
			t.Fatalf("\t%s\tShould mine the block: %v", failed, err)
		}

		tampered := b
		tampered.Timestamp++
		if tampered.IsValid(1) {
			t.Fatalf("\t%s\tShould reject a block whose contents do not match its hash.", failed)
		}
		t.Logf("\t%s\tShould reject a block whose contents do not match its hash.", success)

		unsolved := b
		unsolved.Nonce = 0
		unsolved.Hash = unsolved.CalculateHash()
		if unsolved.Hash[:1] != "0" && unsolved.IsValid(1) {
			t.Fatalf("\t%s\tShould reject a block whose hash does not satisfy the difficulty.", failed)
		}
		t.Logf("\t%s\tShould reject a block whose hash does not satisfy the difficulty.", success)

		// A forged transaction invalidates the block even when rehashed.
		forged := b
		forged.Transactions = []transaction.Tx{{Sender: "alice", Recipient: "mallory", Amount: 10, Timestamp: 1, Signature: "00"}}
		if err := forged.Mine(1); err != nil {
			t.Fatalf("\t%s\tShould be able to remine the forged block: %v", failed, err)
		}
		if forged.IsValid(1) {
			t.Fatalf("\t%s\tShould reject a block containing an unverifiable transaction.", failed)
		}
		t.Logf("\t%s\tShould reject a block containing an unverifiable transaction.", success)
	}
}
