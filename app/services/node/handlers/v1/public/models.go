package public

import (
	"github.com/forgecoin/forgecoin/business/sys/validate"
	"github.com/forgecoin/forgecoin/foundation/blockchain/transaction"
)

// submitTx is what clients post to submit a new transaction. The signature
// travels with the payload, the node never signs on a client's behalf.
type submitTx struct {
	Sender    string  `json:"sender" validate:"required"`
	Recipient string  `json:"recipient" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Timestamp int64   `json:"timestamp" validate:"required"`
	Signature string  `json:"signature" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (app submitTx) Validate() error {
	return validate.Check(app)
}

// toTransaction converts the app layer model to the canonical form.
func (app submitTx) toTransaction() transaction.Tx {
	return transaction.Tx{
		Sender:    app.Sender,
		Recipient: app.Recipient,
		Amount:    app.Amount,
		Timestamp: app.Timestamp,
		Signature: app.Signature,
	}
}

// status is the response for the node status endpoint.
type status struct {
	NodeID     string  `json:"node_id"`
	Host       string  `json:"host"`
	Port       int     `json:"port"`
	Height     int     `json:"height"`
	Difficulty int     `json:"difficulty"`
	Reward     float64 `json:"mining_reward"`
	Pending    int     `json:"pending_transactions"`
	Peers      int     `json:"peers"`
}

// peerInfo is the response item for the peer list endpoint.
type peerInfo struct {
	NodeID string `json:"node_id"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

// balanceInfo is the response for the balance endpoint.
type balanceInfo struct {
	Address string  `json:"address"`
	Balance float64 `json:"balance"`
}

// walletInfo is the response for the wallet create endpoint. The private
// key is returned once and never stored by the node.
type walletInfo struct {
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}
