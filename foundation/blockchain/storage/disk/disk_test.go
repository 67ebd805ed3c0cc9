package disk_test

import (
	"errors"
	"testing"

	"github.com/forgecoin/forgecoin/foundation/blockchain/block"
	"github.com/forgecoin/forgecoin/foundation/blockchain/signature"
	"github.com/forgecoin/forgecoin/foundation/blockchain/storage"
	"github.com/forgecoin/forgecoin/foundation/blockchain/storage/disk"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func TestBlocksRoundTrip(t *testing.T) {
	t.Log("Given the need to persist blocks and read them back in order.")
	{
		d, err := disk.New(t.TempDir())
		if err != nil {
			t.Fatalf("\t%s\tShould open the storage: %v", failed, err)
		}
		defer d.Close()

		blocks, err := d.GetBlocks()
		if err != nil {
			t.Fatalf("\t%s\tShould read an empty store: %v", failed, err)
		}
		if len(blocks) != 0 {
			t.Fatalf("\t%s\tShould return no blocks from an empty store.", failed)
		}
		t.Logf("\t%s\tShould return no blocks from an empty store.", success)

		prev := signature.ZeroHash
		for i := uint64(0); i < 3; i++ {
			b, err := block.New(i, nil, prev)
			if err != nil {
				t.Fatalf("\t%s\tShould construct block %d: %v", failed, i, err)
			}
			if err := d.SaveBlock(b); err != nil {
				t.Fatalf("\t%s\tShould save block %d: %v", failed, i, err)
			}
			prev = b.Hash
		}

		blocks, err = d.GetBlocks()
		if err != nil {
			t.Fatalf("\t%s\tShould read the blocks back: %v", failed, err)
		}
		if len(blocks) != 3 {
			t.Fatalf("\t%s\tShould read back every block, got %d.", failed, len(blocks))
		}
		for i, b := range blocks {
			if b.Index != uint64(i) {
				t.Fatalf("\t%s\tShould read blocks back in index order.", failed)
			}
		}
		t.Logf("\t%s\tShould read back every block in index order.", success)
	}
}

func TestRecords(t *testing.T) {
	t.Log("Given the need to persist wallets and peers.")
	{
		d, err := disk.New(t.TempDir())
		if err != nil {
			t.Fatalf("\t%s\tShould open the storage: %v", failed, err)
		}
		defer d.Close()

		w := storage.WalletRecord{Address: "0xabc", PublicKey: "04deadbeef"}
		if err := d.SaveWallet(w); err != nil {
			t.Fatalf("\t%s\tShould save a wallet: %v", failed, err)
		}
		got, err := d.GetWallet("0xabc")
		if err != nil || got != w {
			t.Fatalf("\t%s\tShould read the wallet back: %v", failed, err)
		}
		t.Logf("\t%s\tShould read the wallet back.", success)

		if _, err := d.GetWallet("0xmissing"); !errors.Is(err, disk.ErrNotFound) {
			t.Fatalf("\t%s\tShould report a missing wallet: %v", failed, err)
		}
		t.Logf("\t%s\tShould report a missing wallet.", success)

		p := storage.PeerRecord{NodeID: "abcd", Host: "127.0.0.1", Port: 9080}
		if err := d.SavePeer(p); err != nil {
			t.Fatalf("\t%s\tShould save a peer: %v", failed, err)
		}
		vetted := storage.PeerRecord{NodeID: "ef01", Host: "127.0.0.1", Port: 9081, Trusted: true}
		if err := d.SavePeer(vetted); err != nil {
			t.Fatalf("\t%s\tShould save a trusted peer: %v", failed, err)
		}
		peers, err := d.GetPeers(false)
		if err != nil || len(peers) != 2 {
			t.Fatalf("\t%s\tShould read every peer back: %v", failed, err)
		}
		t.Logf("\t%s\tShould read every peer back.", success)

		peers, err = d.GetPeers(true)
		if err != nil || len(peers) != 1 || peers[0] != vetted {
			t.Fatalf("\t%s\tShould return only the trusted peers when asked: %v", failed, err)
		}
		t.Logf("\t%s\tShould return only the trusted peers when asked.", success)

		if err := d.RemovePeer("abcd"); err != nil {
			t.Fatalf("\t%s\tShould remove the peer: %v", failed, err)
		}
		peers, err = d.GetPeers(false)
		if err != nil || len(peers) != 1 || peers[0] != vetted {
			t.Fatalf("\t%s\tShould keep the remaining peer after removal: %v", failed, err)
		}
		t.Logf("\t%s\tShould keep the remaining peer after removal.", success)
	}
}
