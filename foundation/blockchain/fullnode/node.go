// Package fullnode wires chain_store, utxo_set, mempool, the sync
// engine, and the peer hub into the single object a node's outer
// surfaces (the debug HTTP mux, the WebSocket listener, and the shell
// CLI) drive, the way the teacher's foundation/blockchain/state
// package is the one object app/services/node/main.go and the wallet
// CLI both talk to.
package fullnode

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chainstore"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/cryptoadapter"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/p2p"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/syncengine"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/txpool"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/utxo"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/validate"
	"go.uber.org/zap"
)

// Config carries every value main needs to supply to bring up a node.
type Config struct {
	ListenAddress string
	KnownPeers    []string
	MaxDataBytes  int
	KeyPath       string
	Log           *zap.SugaredLogger
}

// Node owns every long-lived component of a running full node.
type Node struct {
	store *chainstore.Store
	uset  *utxo.Set
	pool  *txpool.Pool
	hub   *p2p.Hub
	eng   *syncengine.Engine
	log   *zap.SugaredLogger

	keyPath string

	mu         sync.Mutex
	activeKey  *cryptoadapter.PrivateKey
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// New constructs a Node against a fresh, genesis-seeded chain. It does
// not start any goroutines or dial any peers; call Start for that.
func New(cfg Config) (*Node, error) {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	if cfg.MaxDataBytes > 0 {
		validate.SetMaxBlockBytes(cfg.MaxDataBytes)
	}

	store := chainstore.New()
	uset := utxo.New()
	if _, err := validate.Transactions(uset, chain.GenesisHash(), chain.Genesis(), nil); err != nil {
		return nil, fmt.Errorf("fullnode: apply genesis: %w", err)
	}
	pool := txpool.New()

	eng := syncengine.NewEngine(store, uset, pool, cfg.Log)
	hub := p2p.NewHub(eng, cfg.Log)
	eng.SetHub(hub)
	hub.SetListenAddress(cfg.ListenAddress)

	n := &Node{
		store:   store,
		uset:    uset,
		pool:    pool,
		hub:     hub,
		eng:     eng,
		log:     cfg.Log,
		keyPath: cfg.KeyPath,
	}

	if cfg.KeyPath != "" {
		if key, err := loadKey(cfg.KeyPath); err == nil {
			n.activeKey = key
		}
	}

	return n, nil
}

// Start runs the sync engine's mutation loop and the peer hub's
// discovery timer, then dials every configured known peer.
func (n *Node) Start(knownPeers []string) {
	go n.eng.Run()
	go n.hub.RunDiscoveryLoop()

	for _, addr := range knownPeers {
		if err := n.hub.Dial(addr); err != nil {
			n.log.Warnw("fullnode: initial dial failed", "addr", addr, "error", err)
		}
	}
}

// Shutdown stops mining, disconnects every peer, and stops the sync
// engine, in that order (§5's shutdown sequencing).
func (n *Node) Shutdown() {
	n.StopLoop()
	n.hub.Shutdown()
	n.eng.Shutdown()
}

// ServeUpgrade adapts an inbound HTTP request into a peer connection.
func (n *Node) ServeUpgrade(w http.ResponseWriter, r *http.Request) error {
	return n.hub.ServeUpgrade(w, r)
}

// NodeID returns this process's peer-protocol identity.
func (n *Node) NodeID() string {
	return n.hub.NodeID()
}
