// Package p2p implements the wire protocol every peer connection
// speaks: a JSON message envelope over a single WebSocket, monotonic
// request/response correlation, and the handshake/discovery/broadcast
// rules a Hub applies across every connected peer. Its use of
// gorilla/websocket for the transport itself follows the teacher's
// app/services/node/handlers/v1/public package, which upgrades an
// HTTP connection to a websocket.Conn for its own event-stream
// endpoint; here the connection carries a bidirectional, typed
// request/response protocol instead of a one-way event feed.
package p2p

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire shape of every frame: {"type","id"?,"data"}.
type Envelope struct {
	Type string          `json:"type"`
	ID   *uint64         `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Known message types (§4.I).
const (
	TypeNodeInfo = "nodeinfo"
	TypeBlockInv = "blockinv"
	TypeGetBlock = "getblock"
	TypeTxInv    = "txinv"
	TypeGetTx    = "gettx"
	TypeGetPeers = "getpeers"
	TypeResponse = "response"
)

// EncodeEnvelope marshals data into an Envelope's Data field.
func EncodeEnvelope(msgType string, id *uint64, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("p2p: encode %s: %w", msgType, err)
	}
	return Envelope{Type: msgType, ID: id, Data: raw}, nil
}

// NodeInfo is the handshake payload (§4.I.1).
type NodeInfo struct {
	NodeID        string `json:"nodeId"`
	ListenAddress string `json:"listenAddress,omitempty"`
}

// BlockInv is a block summary announcement (§4.J.1).
type BlockInv struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}

// GetBlockByHashes requests full bodies by hash.
type GetBlockByHashes struct {
	Hash []string `json:"hash"`
}

// GetBlockByFrontier requests a batch of ancestors walking backward
// from a frontier hash.
type GetBlockByFrontier struct {
	Frontier string `json:"frontier"`
	Batch    int    `json:"batch"`
}

// BlockBodies maps hash to hex-encoded serialized block bytes. Missing
// keys (unknown to the responder) map to an empty string.
type BlockBodies map[string]string

// TxInv announces transaction ids the sender holds.
type TxInv struct {
	TxIDs []string `json:"txids"`
}

// GetTx requests raw transaction bytes by id. An empty or absent TxIDs
// means "send everything pending."
type GetTx struct {
	TxIDs []string `json:"txids,omitempty"`
}

// Txs carries hex-encoded serialized transactions in response to gettx.
type Txs struct {
	Txs []string `json:"txs"`
}

// GetPeersResponse lists a peer's other connections' advertised
// listen addresses.
type GetPeersResponse struct {
	Peers []string `json:"peers"`
}
