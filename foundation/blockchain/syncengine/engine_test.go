package syncengine

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chainstore"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/p2p"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/txpool"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/utxo"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/validate"
)

func pubKey(b byte) chain.PubKey {
	var p chain.PubKey
	p[0] = 0x04
	for i := 1; i < len(p); i++ {
		p[i] = b
	}
	return p
}

// testNode wires an Engine, its own chain_store/utxo_set/mempool, and
// a Hub reachable over a real (loopback) websocket server, so tests
// exercise ingestion the way it actually arrives: over the wire.
type testNode struct {
	store *chainstore.Store
	uset  *utxo.Set
	pool  *txpool.Pool
	eng   *Engine
	hub   *p2p.Hub
	srv   *httptest.Server
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()

	store := chainstore.New()
	uset := utxo.New()
	pool := txpool.New()

	genesis := chain.Genesis()
	if _, err := validate.Transactions(uset, chain.GenesisHash(), genesis, nil); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}

	eng := NewEngine(store, uset, pool, nil)
	hub := p2p.NewHub(eng, nil)
	eng.SetHub(hub)
	go eng.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeUpgrade(w, r)
	}))

	n := &testNode{store: store, uset: uset, pool: pool, eng: eng, hub: hub, srv: srv}
	t.Cleanup(func() {
		srv.Close()
		hub.Shutdown()
		eng.Shutdown()
	})
	return n
}

func (n *testNode) addr() string {
	return strings.TrimPrefix(n.srv.URL, "http://")
}

func connect(t *testing.T, a, b *testNode) {
	t.Helper()
	if err := a.hub.Dial(b.addr()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitFor(t, func() bool {
		return a.hub.PeerCount() > 0 && b.hub.PeerCount() > 0
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestEngineShutdownStopsRun(t *testing.T) {
	store := chainstore.New()
	uset := utxo.New()
	pool := txpool.New()
	e := NewEngine(store, uset, pool, nil)

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	e.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return after Shutdown")
	}
}
