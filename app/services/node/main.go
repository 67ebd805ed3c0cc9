package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/forgecoin/forgecoin/app/services/node/handlers"
	"github.com/forgecoin/forgecoin/foundation/blockchain/chain"
	"github.com/forgecoin/forgecoin/foundation/blockchain/genesis"
	"github.com/forgecoin/forgecoin/foundation/blockchain/node"
	"github.com/forgecoin/forgecoin/foundation/blockchain/storage"
	"github.com/forgecoin/forgecoin/foundation/blockchain/storage/disk"
	"github.com/forgecoin/forgecoin/foundation/blockchain/wallet"
	"github.com/forgecoin/forgecoin/foundation/blockchain/worker"
	"github.com/forgecoin/forgecoin/foundation/events"
	"github.com/forgecoin/forgecoin/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Node struct {
			Host           string   `conf:"default:0.0.0.0"`
			Port           int      `conf:"default:9080"`
			BootstrapPeers []string `conf:""`
			DataPath       string   `conf:"default:zblock/data"`
			KeystorePath   string   `conf:"default:zblock/accounts/miner.ecdsa"`
			GenesisPath    string   `conf:""`
			MaxPoolSize    int      `conf:"default:1000"`
			TrustedOnly    bool     `conf:"default:false"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Genesis and Storage Support

	gen := genesis.Default()
	if cfg.Node.GenesisPath != "" {
		gen, err = genesis.Load(cfg.Node.GenesisPath)
		if err != nil {
			return fmt.Errorf("loading genesis configuration: %w", err)
		}
	}

	store, err := disk.New(cfg.Node.DataPath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	// =========================================================================
	// Blockchain Support

	// The blockchain packages accept a function of this signature to allow
	// the application to log. These raw messages are also sent to any
	// websocket client connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	bc, err := chain.New(chain.Config{
		Genesis:     gen,
		MaxPoolSize: cfg.Node.MaxPoolSize,
		EvHandler:   ev,
	})
	if err != nil {
		return fmt.Errorf("constructing chain: %w", err)
	}

	// Warm start from any chain persisted by a previous run. The stored
	// chain goes through the normal replacement rules, so corrupt data on
	// disk is rejected and the node falls back to its fresh genesis chain.
	storedBlocks, err := store.GetBlocks()
	if err != nil {
		return fmt.Errorf("reading stored blocks: %w", err)
	}
	if len(storedBlocks) > 1 {
		if err := bc.ReplaceChain(storedBlocks); err != nil {
			log.Infow("startup", "status", "discarding stored chain", "ERROR", err)
		} else {
			log.Infow("startup", "status", "chain warmed from storage", "height", bc.Height())
		}
	}
	if len(storedBlocks) == 0 {
		if err := store.SaveBlock(bc.Blocks()[0]); err != nil {
			return fmt.Errorf("persisting genesis block: %w", err)
		}
	}

	storedTxs, err := store.GetPendingTransactions()
	if err != nil {
		return fmt.Errorf("reading stored pending transactions: %w", err)
	}
	for _, tx := range storedTxs {
		if err := bc.AddTransaction(tx); err != nil {
			log.Infow("startup", "status", "discarding stored transaction", "ERROR", err)
		}
	}

	// =========================================================================
	// Miner Wallet Support

	// Load the private key file for the configured miner so the account can
	// get credited with mining rewards. A first run generates the key.
	minerWallet, err := wallet.Load(cfg.Node.KeystorePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading miner wallet: %w", err)
		}

		minerWallet, err = wallet.New()
		if err != nil {
			return fmt.Errorf("generating miner wallet: %w", err)
		}
		if err := minerWallet.Save(cfg.Node.KeystorePath); err != nil {
			return fmt.Errorf("saving miner wallet: %w", err)
		}
		log.Infow("startup", "status", "miner wallet generated", "path", cfg.Node.KeystorePath)
	}
	log.Infow("startup", "status", "miner wallet loaded", "address", minerWallet.Address())

	if err := store.SaveWallet(storage.WalletRecord{Address: minerWallet.Address(), PublicKey: minerWallet.PublicKey()}); err != nil {
		return fmt.Errorf("recording miner wallet: %w", err)
	}

	// =========================================================================
	// Peer Node Support

	nd := node.New(node.Config{
		Host:           cfg.Node.Host,
		Port:           cfg.Node.Port,
		BootstrapPeers: cfg.Node.BootstrapPeers,
		Chain:          bc,
		EvHandler:      ev,
	})

	// Rejoin the peers a previous run knew about, optionally restricted to
	// the trusted set.
	storedPeers, err := store.GetPeers(cfg.Node.TrustedOnly)
	if err != nil {
		return fmt.Errorf("reading stored peers: %w", err)
	}
	for _, p := range storedPeers {
		nd.AddPeer(node.Peer{NodeID: p.NodeID, Host: p.Host, Port: p.Port})
	}

	if err := nd.Start(); err != nil {
		return fmt.Errorf("starting peer node: %w", err)
	}
	defer nd.Stop()

	// =========================================================================
	// Worker Support

	wrk := worker.Run(worker.Config{
		Chain:        bc,
		Node:         nd,
		Storage:      store,
		MinerAddress: minerWallet.Address(),
		EvHandler:    ev,
	})
	defer wrk.Shutdown()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	// Not concerned with shutting this down with load shedding.
	debugMux := handlers.DebugMux(build, log)
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Chain:    bc,
		Node:     nd,
		Worker:   wrk,
		Storage:  store,
		Evts:     evts,
	})

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Persist the routing table so the next run rejoins the network.
		// The trusted flag is operator data, carry it over from the stored
		// records rather than resetting it.
		trusted := make(map[string]bool)
		if stored, err := store.GetPeers(false); err == nil {
			for _, p := range stored {
				trusted[p.NodeID] = p.Trusted
			}
		}
		for _, p := range nd.Peers() {
			rec := storage.PeerRecord{NodeID: p.NodeID, Host: p.Host, Port: p.Port, Trusted: trusted[p.NodeID]}
			if err := store.SavePeer(rec); err != nil {
				log.Infow("shutdown", "status", "persisting peer", "ERROR", err)
			}
		}

		// Persist the full chain. Blocks adopted from peers during this run
		// were never written individually, this sweep catches them.
		for _, b := range bc.Blocks() {
			if err := store.SaveBlock(b); err != nil {
				log.Infow("shutdown", "status", "persisting block", "ERROR", err)
			}
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
