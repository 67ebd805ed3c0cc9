package worker

import (
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// maxTxShareRequests represents the max number of pending tx share requests
// that can be outstanding before share requests are dropped. To keep this
// simple, a buffered channel of this arbitrary number is being used. If the
// channel does become full, requests for new transactions to be shared will
// not be accepted.
const maxTxShareRequests = 100

// shareTxOperations handles sharing new transactions.
func (w *Worker) shareTxOperations() {
	w.evHandler("worker: shareTxOperations: G started")
	defer w.evHandler("worker: shareTxOperations: G completed")

	for {
		select {
		case tx := <-w.txSharing:
			if !w.isShutdown() {
				w.runShareTxOperation(tx)
			}
		case <-w.shut:
			w.evHandler("worker: shareTxOperations: received shut signal")
			return
		}
	}
}

// runShareTxOperation persists the pending pool and shares a new
// transaction with the known peers.
func (w *Worker) runShareTxOperation(tx transaction.Tx) {
	w.evHandler("worker: runShareTxOperation: started")
	defer w.evHandler("worker: runShareTxOperation: completed")

	if err := w.storage.SavePendingTransactions(w.chain.PendingTransactions()); err != nil {
		w.evHandler("worker: runShareTxOperation: WARNING: persisting pool: %s", err)
	}

	reached := w.node.BroadcastTransaction(tx)
	w.evHandler("worker: runShareTxOperation: transaction %s reached %d peers", tx, reached)
}
