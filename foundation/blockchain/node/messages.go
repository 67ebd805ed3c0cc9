package node

import (
	"github.com/forgecoin/forgecoin/foundation/blockchain/block"
	"github.com/forgecoin/forgecoin/foundation/blockchain/chain"
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// Set of message types exchanged between peers. These values are the wire
// contract and must not change.
const (
	TypeJoin           = "join"
	TypeJoinAck        = "join_ack"
	TypeGetChain       = "get_chain"
	TypeChainResponse  = "chain_response"
	TypeNewBlock       = "new_block"
	TypeNewTransaction = "new_transaction"
	TypeAck            = "ack"
	TypeError          = "error"
)

// Set of error strings sent back to peers. These values are part of the
// wire contract.
const (
	errInvalidJSON = "Invalid JSON"
	errUnknownType = "Unknown message type"
	errInvalidJoin = "Invalid join request"
	errNoChain     = "No blockchain available"
)

// Message is the single envelope every peer exchange uses. One request and
// one response travel over a fresh connection, each encoded as a single
// UTF-8 JSON object.
type Message struct {
	Type        string          `json:"type"`
	NodeID      string          `json:"node_id,omitempty"`
	Host        string          `json:"host,omitempty"`
	Port        int             `json:"port,omitempty"`
	Chain       *chain.Data     `json:"chain,omitempty"`
	Block       *block.Block    `json:"block,omitempty"`
	Transaction *transaction.Tx `json:"transaction,omitempty"`
	Error       string          `json:"error,omitempty"`
}
