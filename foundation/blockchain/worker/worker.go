// Package worker implements mining and transaction sharing as background
// operations driven by signals from the handlers and the peer layer.
package worker

import (
	"sync"

	"github.com/forgecoin/forgecoin/foundation/blockchain/chain"
	"github.com/forgecoin/forgecoin/foundation/blockchain/node"
	"github.com/forgecoin/forgecoin/foundation/blockchain/storage"
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// EventHandler defines a function that is called when events occur in the
// processing of background operations.
type EventHandler func(v string, args ...any)

// Config represents the dependencies required to run the worker.
type Config struct {
	Chain        *chain.Chain
	Node         *node.Node
	Storage      storage.Storage
	MinerAddress string
	EvHandler    EventHandler
}

// Worker manages the background workflows for the node. Mining runs one
// operation at a time; a signal arriving while one is in flight simply
// queues the next run. A mining operation is never cancelled, a block that
// went stale while being mined is rejected on append and thrown away.
type Worker struct {
	chain        *chain.Chain
	node         *node.Node
	storage      storage.Storage
	minerAddress string
	evHandler    EventHandler

	wg          sync.WaitGroup
	shut        chan struct{}
	startMining chan bool
	txSharing   chan transaction.Tx
}

// Run creates a worker and starts up all the background operations.
func Run(cfg Config) *Worker {
	ev := func(v string, args ...any) {}
	if cfg.EvHandler != nil {
		ev = cfg.EvHandler
	}

	w := Worker{
		chain:        cfg.Chain,
		node:         cfg.Node,
		storage:      cfg.Storage,
		minerAddress: cfg.MinerAddress,
		evHandler:    ev,
		shut:         make(chan struct{}),
		startMining:  make(chan bool, 1),
		txSharing:    make(chan transaction.Tx, maxTxShareRequests),
	}

	operations := []func(){
		w.miningOperations,
		w.shareTxOperations,
	}

	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// SignalShareTx queues a transaction to be shared with the known peers. If
// the queue is full the transaction is not shared, peers will learn about
// it when it lands in a block.
func (w *Worker) SignalShareTx(tx transaction.Tx) {
	select {
	case w.txSharing <- tx:
		w.evHandler("worker: SignalShareTx: share tx signaled")
	default:
		w.evHandler("worker: SignalShareTx: queue full, transaction won't be shared")
	}
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
