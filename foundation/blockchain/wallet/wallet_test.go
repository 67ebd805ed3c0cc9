package wallet_test

import (
	"path/filepath"
	"testing"

	"github.com/forgecoin/forgecoin/foundation/blockchain/wallet"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func TestRoundTrip(t *testing.T) {
	t.Log("Given the need to persist and reload a wallet key.")
	{
		w, err := wallet.New()
		if err != nil {
			t.Fatalf("\t%s\tShould generate a wallet: %v", failed, err)
		}
		t.Logf("\t%s\tShould generate a wallet.", success)

		path := filepath.Join(t.TempDir(), "keystore", "miner.ecdsa")
		if err := w.Save(path); err != nil {
			t.Fatalf("\t%s\tShould save the key: %v", failed, err)
		}

		loaded, err := wallet.Load(path)
		if err != nil {
			t.Fatalf("\t%s\tShould reload the key: %v", failed, err)
		}

		if loaded.PublicKey() != w.PublicKey() || loaded.Address() != w.Address() {
			t.Fatalf("\t%s\tShould derive the same identity after reload.", failed)
		}
		t.Logf("\t%s\tShould derive the same identity after reload.", success)
	}
}

func TestSignTx(t *testing.T) {
	t.Log("Given the need to sign transfers from a wallet.")
	{
		w, err := wallet.New()
		if err != nil {
			t.Fatalf("\t%s\tShould generate a wallet: %v", failed, err)
		}

		tx, err := w.NewSignedTx("bob", 12.5)
		if err != nil {
			t.Fatalf("\t%s\tShould construct a signed transfer: %v", failed, err)
		}
		if !tx.Verify() {
			t.Fatalf("\t%s\tShould produce a verifiable transaction.", failed)
		}
		t.Logf("\t%s\tShould produce a verifiable transaction.", success)

		other, err := wallet.New()
		if err != nil {
			t.Fatalf("\t%s\tShould generate a second wallet: %v", failed, err)
		}

		foreign, err := other.NewSignedTx("bob", 1)
		if err != nil {
			t.Fatalf("\t%s\tShould construct the foreign transaction: %v", failed, err)
		}
		if err := w.SignTx(&foreign); err == nil {
			t.Fatalf("\t%s\tShould refuse to sign a transaction from another wallet.", failed)
		}
		t.Logf("\t%s\tShould refuse to sign a transaction from another wallet.", success)
	}
}
