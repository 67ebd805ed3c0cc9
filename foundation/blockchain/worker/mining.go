package worker

import (
	"errors"

	"github.com/forgecoin/forgecoin/foundation/blockchain/block"
	"github.com/forgecoin/forgecoin/foundation/blockchain/chain"
)

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation mines the pending transactions into the next block,
// persists the result, and gossips the block to the known peers.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	// After running a mining operation, check if a new operation should
	// be signaled again.
	defer func() {
		if length := len(w.chain.PendingTransactions()); length > 0 {
			w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: Txs[%d]", length)
			w.SignalStartMining()
		}
	}()

	b, err := w.chain.MinePendingTransactions(w.minerAddress)
	if err != nil {
		switch {
		case errors.Is(err, chain.ErrNoTransactions):
			w.evHandler("worker: runMiningOperation: MINING: no transactions in the pool")
		case errors.Is(err, block.ErrNonceExhausted):
			w.evHandler("worker: runMiningOperation: MINING: ERROR: nonce space exhausted at the current difficulty")
		default:
			w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
		}
		return
	}

	if err := w.storage.SaveBlock(b); err != nil {
		w.evHandler("worker: runMiningOperation: MINING: WARNING: persisting block: %s", err)
	}
	if err := w.storage.SavePendingTransactions(w.chain.PendingTransactions()); err != nil {
		w.evHandler("worker: runMiningOperation: MINING: WARNING: persisting pool: %s", err)
	}

	reached := w.node.BroadcastBlock(b)
	w.evHandler("worker: runMiningOperation: MINING: block %s reached %d peers", b, reached)
}
