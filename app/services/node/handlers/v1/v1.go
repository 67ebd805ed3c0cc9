// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/forgecoin/forgecoin/app/services/node/handlers/v1/public"
	"github.com/forgecoin/forgecoin/foundation/blockchain/chain"
	"github.com/forgecoin/forgecoin/foundation/blockchain/node"
	"github.com/forgecoin/forgecoin/foundation/blockchain/storage"
	"github.com/forgecoin/forgecoin/foundation/blockchain/worker"
	"github.com/forgecoin/forgecoin/foundation/events"
	"github.com/forgecoin/forgecoin/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log     *zap.SugaredLogger
	Chain   *chain.Chain
	Node    *node.Node
	Worker  *worker.Worker
	Storage storage.Storage
	Evts    *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:     cfg.Log,
		Chain:   cfg.Chain,
		Node:    cfg.Node,
		Worker:  cfg.Worker,
		Storage: cfg.Storage,
		Evts:    cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis/list", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/chain/list", pbl.ChainList)
	app.Handle(http.MethodGet, version, "/node/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/peers/list", pbl.Peers)
	app.Handle(http.MethodGet, version, "/mining/signal", pbl.SignalMining)
	app.Handle(http.MethodGet, version, "/balances/:address", pbl.Balance)
	app.Handle(http.MethodGet, version, "/tx/uncommitted/list", pbl.Mempool)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitTransaction)
	app.Handle(http.MethodPost, version, "/wallet/create", pbl.CreateWallet)
}
