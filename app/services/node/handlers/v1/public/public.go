// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"net/http"
	"time"

	"github.com/forgecoin/forgecoin/business/web/errs"
	"github.com/forgecoin/forgecoin/foundation/blockchain/chain"
	"github.com/forgecoin/forgecoin/foundation/blockchain/node"
	"github.com/forgecoin/forgecoin/foundation/blockchain/storage"
	"github.com/forgecoin/forgecoin/foundation/blockchain/wallet"
	"github.com/forgecoin/forgecoin/foundation/blockchain/worker"
	"github.com/forgecoin/forgecoin/foundation/events"
	"github.com/forgecoin/forgecoin/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log     *zap.SugaredLogger
	Chain   *chain.Chain
	Node    *node.Node
	Worker  *worker.Worker
	Storage storage.Storage
	WS      websocket.Upgrader
	Evts    *events.Events
}

// Events handles a web socket to provide node events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Subscribe(v.TraceID)
	defer h.Evts.Unsubscribe(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis configuration.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Chain.Genesis(), http.StatusOK)
}

// ChainList returns the full serialized chain.
func (h Handlers) ChainList(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Chain.CopyData(), http.StatusOK)
}

// Status returns a summary of the node state.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	st := status{
		NodeID:     h.Node.ID(),
		Host:       h.Node.Host(),
		Port:       h.Node.Port(),
		Height:     h.Chain.Height(),
		Difficulty: h.Chain.Difficulty(),
		Reward:     h.Chain.MiningReward(),
		Pending:    len(h.Chain.PendingTransactions()),
		Peers:      len(h.Node.Peers()),
	}

	return web.Respond(ctx, w, st, http.StatusOK)
}

// Peers returns the current routing table.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	peers := h.Node.Peers()

	infos := make([]peerInfo, len(peers))
	for i, p := range peers {
		infos[i] = peerInfo{
			NodeID: p.NodeID,
			Host:   p.Host,
			Port:   p.Port,
		}
	}

	return web.Respond(ctx, w, infos, http.StatusOK)
}

// SignalMining signals the worker to start a mining operation.
func (h Handlers) SignalMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Worker.SignalStartMining()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "mining signaled",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Balance returns the balance for the specified address.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")

	bal := balanceInfo{
		Address: address,
		Balance: h.Chain.Balance(address),
	}

	return web.Respond(ctx, w, bal, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Chain.PendingTransactions(), http.StatusOK)
}

// SubmitTransaction adds a new signed transaction to the pool and shares it
// with the known peers.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var app submitTx
	if err := web.Decode(r, &app); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tx := app.toTransaction()
	h.Log.Infow("submit transaction", "traceid", v.TraceID, "tx", tx)

	if err := h.Chain.AddTransaction(tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Worker.SignalShareTx(tx)

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to the pool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// CreateWallet generates a fresh wallet, records its public half, and
// returns the key material to the caller.
func (h Handlers) CreateWallet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	wlt, err := wallet.New()
	if err != nil {
		return err
	}

	record := storage.WalletRecord{
		Address:   wlt.Address(),
		PublicKey: wlt.PublicKey(),
	}
	if err := h.Storage.SaveWallet(record); err != nil {
		return err
	}

	info := walletInfo{
		Address:    wlt.Address(),
		PublicKey:  wlt.PublicKey(),
		PrivateKey: wlt.ExportPrivateKey(),
	}

	return web.Respond(ctx, w, info, http.StatusCreated)
}
