// Package node implements the peer to peer layer. A node listens for one
// shot JSON requests from its peers, gossips new blocks and transactions,
// and synchronizes its chain from bootstrap peers on startup.
package node

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/forgecoin/forgecoin/foundation/blockchain/block"
	"github.com/forgecoin/forgecoin/foundation/blockchain/chain"
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// Set of networking defaults. One socket carries one request and one
// response, so the timeout bounds the whole exchange.
const (
	defaultTimeout    = 5 * time.Second
	bootstrapAttempts = 3
	bootstrapDelay    = time.Second
	maxMessageSize    = 1 << 20
)

// ErrBootstrapFailed is returned when every bootstrap attempt is exhausted
// without receiving a chain. The node then continues from its local genesis
// chain.
var ErrBootstrapFailed = errors.New("bootstrap failed, no peer returned a chain")

// EventHandler defines a function that is called when events occur in the
// processing of peer operations.
type EventHandler func(v string, args ...any)

// Peer represents a known peer in the routing table. The table is a best
// effort membership view, never a source of truth.
type Peer struct {
	NodeID string
	Host   string
	Port   int
}

// Address returns the host:port form of the peer.
func (p Peer) Address() string {
	return net.JoinHostPort(p.Host, fmt.Sprintf("%d", p.Port))
}

// Config represents the configuration required to start a node.
type Config struct {
	Host           string
	Port           int
	BootstrapPeers []string
	Chain          *chain.Chain
	EvHandler      EventHandler
	Timeout        time.Duration
}

// Node manages the listener, the routing table and the gossip exchanges
// for one peer in the network. The chain reference is optional; a node
// without one still routes but answers chain queries with an error.
type Node struct {
	id             string
	host           string
	port           int
	bootstrapPeers []string
	chain          *chain.Chain
	evHandler      EventHandler
	timeout        time.Duration

	mu       sync.Mutex
	peers    map[string]Peer
	listener net.Listener
	running  bool

	wg sync.WaitGroup
}

// New constructs a node for use. The node identity is derived from the
// advertised address and the construction time, which keeps it unique
// without any coordination.
func New(cfg Config) *Node {
	ev := func(v string, args ...any) {}
	if cfg.EvHandler != nil {
		ev = cfg.EvHandler
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Node{
		id:             generateID(cfg.Host, cfg.Port),
		host:           cfg.Host,
		port:           cfg.Port,
		bootstrapPeers: cfg.BootstrapPeers,
		chain:          cfg.Chain,
		evHandler:      ev,
		timeout:        timeout,
		peers:          make(map[string]Peer),
	}
}

// ID returns the node identity.
func (n *Node) ID() string {
	return n.id
}

// Host returns the advertised host.
func (n *Node) Host() string {
	return n.host
}

// Port returns the port the listener is bound to. Before Start it returns
// the configured port, which may be zero.
func (n *Node) Port() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listener != nil {
		return n.listener.Addr().(*net.TCPAddr).Port
	}

	return n.port
}

// Peers returns a copy of the routing table.
func (n *Node) Peers() []Peer {
	n.mu.Lock()
	defer n.mu.Unlock()

	peers := make([]Peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}

	return peers
}

// AddPeer registers a peer in the routing table. Gossip reaches registered
// peers only, so this is how a warm started node rejoins its old contacts.
func (n *Node) AddPeer(p Peer) {
	if p.NodeID == "" || p.NodeID == n.id {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.peers[p.NodeID] = p
}

// Start binds the listener, launches the accept loop, and then runs the
// bootstrap walk against the configured peers. A bootstrap failure is not
// fatal, the node continues from its local chain.
func (n *Node) Start() error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return errors.New("node already started")
	}

	listener, err := net.Listen("tcp", net.JoinHostPort("", fmt.Sprintf("%d", n.port)))
	if err != nil {
		n.mu.Unlock()
		return fmt.Errorf("binding listener: %w", err)
	}
	n.listener = listener
	n.running = true
	n.mu.Unlock()

	n.evHandler("node: listening on %s, id %s", listener.Addr(), n.id)

	n.wg.Add(1)
	go n.acceptLoop(listener)

	if len(n.bootstrapPeers) > 0 {
		if err := n.bootstrap(); err != nil {
			n.evHandler("node: %s, continuing with the local chain", err)
		}
	}

	return nil
}

// Stop closes the listener and waits for in flight connections to finish.
func (n *Node) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	listener := n.listener
	n.mu.Unlock()

	listener.Close()
	n.wg.Wait()

	n.evHandler("node: stopped")
}

// BroadcastBlock sends the block to every known peer and returns the count
// of peers that acknowledged it. Peers that fail the exchange are evicted
// from the routing table immediately.
func (n *Node) BroadcastBlock(b block.Block) int {
	return n.broadcast(Message{Type: TypeNewBlock, Block: &b})
}

// BroadcastTransaction sends the transaction to every known peer and
// returns the count of peers that acknowledged it. Peers that fail the
// exchange are evicted from the routing table immediately.
func (n *Node) BroadcastTransaction(tx transaction.Tx) int {
	return n.broadcast(Message{Type: TypeNewTransaction, Transaction: &tx})
}

// =============================================================================

// acceptLoop accepts connections until the listener closes. Every accepted
// connection is handled on its own goroutine, one request and one response.
func (n *Node) acceptLoop(listener net.Listener) {
	defer n.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			n.mu.Lock()
			running := n.running
			n.mu.Unlock()

			if running {
				n.evHandler("node: accept error: %s", err)
				continue
			}
			return
		}

		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.handleConn(conn)
		}()
	}
}

// handleConn reads one request, dispatches it, writes one response, and
// closes the connection.
func (n *Node) handleConn(conn net.Conn) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(n.timeout))

	var req Message
	dec := json.NewDecoder(&io.LimitedReader{R: conn, N: maxMessageSize})
	if err := dec.Decode(&req); err != nil {
		n.evHandler("node: decoding request from %s: %s", conn.RemoteAddr(), err)
		writeMessage(conn, Message{Type: TypeError, Error: errInvalidJSON})
		return
	}

	resp := n.handleMessage(req, conn.RemoteAddr())
	if err := writeMessage(conn, resp); err != nil {
		n.evHandler("node: writing response to %s: %s", conn.RemoteAddr(), err)
	}
}

// handleMessage dispatches a request to its handler and produces the
// response to write back.
func (n *Node) handleMessage(req Message, from net.Addr) Message {
	n.evHandler("node: received %s from %s", req.Type, from)

	switch req.Type {
	case TypeJoin:
		return n.handleJoin(req)

	case TypeGetChain:
		return n.handleGetChain()

	case TypeNewBlock:
		n.handleNewBlock(req)
		return Message{Type: TypeAck}

	case TypeNewTransaction:
		n.handleNewTransaction(req)
		return Message{Type: TypeAck}
	}

	return Message{Type: TypeError, Error: errUnknownType}
}

// handleJoin registers the joining peer and replies with the current chain
// so the newcomer can synchronize in a single exchange.
func (n *Node) handleJoin(req Message) Message {
	if req.NodeID == "" || req.Host == "" || req.Port == 0 {
		return Message{Type: TypeError, Error: errInvalidJoin}
	}

	n.AddPeer(Peer{NodeID: req.NodeID, Host: req.Host, Port: req.Port})
	n.evHandler("node: peer %s joined from %s:%d", req.NodeID, req.Host, req.Port)

	if n.chain == nil {
		return Message{Type: TypeJoinAck, Error: errNoChain}
	}

	data := n.chain.CopyData()
	return Message{Type: TypeJoinAck, Chain: &data}
}

// handleGetChain replies with the current serialized chain.
func (n *Node) handleGetChain() Message {
	if n.chain == nil {
		return Message{Type: TypeError, Error: errNoChain}
	}

	data := n.chain.CopyData()
	return Message{Type: TypeChainResponse, Chain: &data}
}

// handleNewBlock attempts to append a gossiped block. Invalid or duplicate
// blocks are dropped, the sender is acked regardless.
func (n *Node) handleNewBlock(req Message) {
	if n.chain == nil || req.Block == nil {
		return
	}

	if err := n.chain.AddBlock(*req.Block); err != nil {
		n.evHandler("node: dropping gossiped block: %s", err)
		return
	}
	n.evHandler("node: accepted gossiped block %s", *req.Block)
}

// handleNewTransaction attempts to pool a gossiped transaction. Rejected
// transactions are dropped, the sender is acked regardless.
func (n *Node) handleNewTransaction(req Message) {
	if n.chain == nil || req.Transaction == nil {
		return
	}

	if err := n.chain.AddTransaction(*req.Transaction); err != nil {
		n.evHandler("node: dropping gossiped transaction: %s", err)
		return
	}
	n.evHandler("node: accepted gossiped transaction %s", *req.Transaction)
}

// bootstrap walks the configured bootstrap addresses with a bounded number
// of attempts. The first chain received ends the walk. A join is tried
// first so the peer learns about this node; a direct chain request is the
// fallback when the join exchange fails.
func (n *Node) bootstrap() error {
	join := Message{
		Type:   TypeJoin,
		NodeID: n.id,
		Host:   n.host,
		Port:   n.Port(),
	}

	for attempt := 1; attempt <= bootstrapAttempts; attempt++ {
		for _, addr := range n.bootstrapPeers {
			n.evHandler("node: bootstrap attempt %d against %s", attempt, addr)

			resp, err := n.send(addr, join)
			if err == nil && resp.Type == TypeJoinAck && resp.Chain != nil {
				if n.adoptChain(addr, *resp.Chain) {
					return nil
				}
				continue
			}

			resp, err = n.send(addr, Message{Type: TypeGetChain})
			if err == nil && resp.Type == TypeChainResponse && resp.Chain != nil {
				if n.adoptChain(addr, *resp.Chain) {
					return nil
				}
			}
		}

		if attempt < bootstrapAttempts {
			time.Sleep(bootstrapDelay)
		}
	}

	return ErrBootstrapFailed
}

// adoptChain applies a chain received during bootstrap. A candidate that is
// not longer than the local chain still counts as a successful sync, both
// sides simply already agree on history.
func (n *Node) adoptChain(addr string, data chain.Data) bool {
	if n.chain == nil {
		return false
	}

	if err := n.chain.ReplaceFromData(data); err != nil && !errors.Is(err, chain.ErrNotLonger) {
		n.evHandler("node: rejecting chain from %s: %s", addr, err)
		return false
	}

	n.evHandler("node: synchronized chain from %s, height %d", addr, n.chain.Height())
	return true
}

// broadcast sends the message to every known peer except self, evicting
// peers that fail the exchange, and returns the count of peers reached.
func (n *Node) broadcast(msg Message) int {
	var reached int

	for _, p := range n.Peers() {
		if p.NodeID == n.id {
			continue
		}

		resp, err := n.send(p.Address(), msg)
		if err != nil || resp.Type != TypeAck {
			n.evHandler("node: evicting unreachable peer %s at %s", p.NodeID, p.Address())
			n.mu.Lock()
			delete(n.peers, p.NodeID)
			n.mu.Unlock()
			continue
		}
		reached++
	}

	n.evHandler("node: broadcast %s reached %d peers", msg.Type, reached)

	return reached
}

// send performs one request response exchange over a fresh connection.
func (n *Node) send(addr string, msg Message) (Message, error) {
	conn, err := net.DialTimeout("tcp", addr, n.timeout)
	if err != nil {
		return Message{}, fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(n.timeout))

	if err := writeMessage(conn, msg); err != nil {
		return Message{}, fmt.Errorf("sending to %s: %w", addr, err)
	}

	var resp Message
	dec := json.NewDecoder(&io.LimitedReader{R: conn, N: maxMessageSize})
	if err := dec.Decode(&resp); err != nil {
		return Message{}, fmt.Errorf("reading response from %s: %w", addr, err)
	}

	return resp, nil
}

// writeMessage encodes a message onto the connection.
func writeMessage(conn net.Conn, msg Message) error {
	return json.NewEncoder(conn).Encode(msg)
}

// generateID derives the node identity from the advertised address and the
// construction time.
func generateID(host string, port int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", host, port, time.Now().UnixNano())))
	return hex.EncodeToString(sum[:])[:16]
}
