// Package syncengine is the single-consumer FIFO work queue that
// serialises every mutation of chain state: inbound block summaries,
// locally mined blocks, and gossiped transactions. It implements
// p2p.Handler to receive inbound frames and drives the chain store,
// UTXO set, mempool, and miner packages the way the teacher's
// state.worker drives the database, mempool, and worker_mining
// packages from its own operational goroutines — generalized here to
// a single ordered queue instead of three independently scheduled
// operation channels, since reorg commits must never interleave with
// each other or with block ingestion.
package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chainstore"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/miner"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/p2p"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/txpool"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/utxo"
	"go.uber.org/zap"
)

// maxGapFillBatch caps the doubling batch size used to walk backward
// during gap-fill (§4.J.1, §6).
const maxGapFillBatch = 2048

// ErrMiningCancelled is returned by Mine when its search is cancelled
// before a solution is found, either through the supplied context or
// because a committed block advanced the tip.
var ErrMiningCancelled = errors.New("syncengine: mining cancelled")

// ErrStaleCandidate is returned when a locally mined block no longer
// extends the tip it was built against, because another block
// (inbound or from a faster peer) landed first.
var ErrStaleCandidate = errors.New("syncengine: mined block no longer extends tip")

// taskQueueSize bounds the FIFO queue's buffer; producers (peer read
// loops, Mine/MineLoop callers) block once it fills, which is the
// desired backpressure rather than a dropped mutation.
const taskQueueSize = 256

// Engine owns chain_store, utxo_set, and mempool, and is the only
// component that mutates any of them.
type Engine struct {
	store *chainstore.Store
	uset  *utxo.Set
	pool  *txpool.Pool
	hub   *p2p.Hub
	log   *zap.SugaredLogger

	tasks    chan func()
	shutdown chan struct{}
	shutOnce sync.Once

	minerMu           sync.Mutex
	activeMiner       *miner.Miner
	activeMinerCancel context.CancelFunc
}

// NewEngine constructs an Engine bound to the given components. The
// hub is wired in afterward via SetHub, since the Hub itself needs a
// Handler (this Engine) at construction time — the same
// chicken-and-egg the teacher resolves by constructing worker after
// State and only then pointing state.worker at it.
func NewEngine(store *chainstore.Store, uset *utxo.Set, pool *txpool.Pool, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		store:    store,
		uset:     uset,
		pool:     pool,
		log:      log,
		tasks:    make(chan func(), taskQueueSize),
		shutdown: make(chan struct{}),
	}
}

// SetHub wires the peer hub used for broadcasts and outbound
// requests. Must be called once, before Run.
func (e *Engine) SetHub(hub *p2p.Hub) {
	e.hub = hub
}

// Run drains the task queue until Shutdown is called. Exactly one
// task executes at a time, to completion, before the next is
// dequeued — the serialisation §4.J and §5 require.
func (e *Engine) Run() {
	for {
		select {
		case task := <-e.tasks:
			task()
		case <-e.shutdown:
			return
		}
	}
}

// Shutdown cancels any in-flight mining and stops Run. Idempotent.
func (e *Engine) Shutdown() {
	e.shutOnce.Do(func() {
		e.cancelActiveMiner()
		close(e.shutdown)
	})
}

func (e *Engine) enqueue(task func()) {
	select {
	case e.tasks <- task:
	case <-e.shutdown:
	}
}

func (e *Engine) evHandler(format string, args ...any) {
	e.log.Debugf(format, args...)
}

// =============================================================================
// p2p.Handler

// HandleMessage dispatches an inbound frame by type. Read-only
// responses that don't mutate chain_store/utxo_set/mempool (getblock,
// gettx, getpeers) answer immediately; everything else is enqueued to
// run on the single consumer. A nodeinfo frame that fails to decode
// (for example a non-string nodeId) closes the peer.
func (e *Engine) HandleMessage(sess *p2p.Session, msgType string, data json.RawMessage) {
	switch msgType {
	case p2p.TypeNodeInfo:
		var info p2p.NodeInfo
		if err := json.Unmarshal(data, &info); err != nil {
			sess.Peer().Close()
			return
		}
		peer := sess.Peer()
		if e.hub != nil {
			e.hub.HandleNodeInfo(peer, info)
		}
		if !peer.Closed() {
			e.announceTo(peer)
		}

	case p2p.TypeBlockInv:
		var inv p2p.BlockInv
		if err := json.Unmarshal(data, &inv); err != nil {
			return
		}
		e.enqueue(func() { e.ingestBlockInv(sess, inv) })

	case p2p.TypeGetBlock:
		e.respondGetBlock(sess, data)

	case p2p.TypeTxInv:
		var inv p2p.TxInv
		if err := json.Unmarshal(data, &inv); err != nil {
			return
		}
		e.enqueue(func() { e.ingestTxInv(sess, inv) })

	case p2p.TypeGetTx:
		e.respondGetTx(sess, data)

	case p2p.TypeGetPeers:
		if e.hub == nil {
			sess.Respond(p2p.GetPeersResponse{})
			return
		}
		sess.Respond(p2p.GetPeersResponse{Peers: e.hub.AdvertisedPeers(sess.Peer())})
	}
}

// announceTo sends our current tip and full mempool to a freshly
// handshaked peer (§4.J.2, "on new peer connect").
func (e *Engine) announceTo(p *p2p.Peer) {
	tip := e.store.TipBlock()
	p.Send(p2p.TypeBlockInv, p2p.BlockInv{Hash: chain.BlockHash(tip).String(), Height: tip.Height})

	ids := e.pool.TxIDs()
	txids := make([]string, len(ids))
	for i, id := range ids {
		txids[i] = id.String()
	}
	p.Send(p2p.TypeTxInv, p2p.TxInv{TxIDs: txids})
}
