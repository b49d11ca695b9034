package syncengine

import (
	"context"
	"testing"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/cryptoadapter"
)

func mustMine(t *testing.T, n *testNode, msg string) chain.Block {
	t.Helper()
	priv, err := cryptoadapter.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub := chain.PubKey(priv.PublicKey())

	b, err := n.eng.Mine(context.Background(), pub, msg)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	return b
}

func TestBlockInvExtendsChainAcrossPeers(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	connect(t, a, b)

	mined := mustMine(t, a, "extend")

	waitFor(t, func() bool {
		return b.store.Has(chain.BlockHash(mined))
	})
	if got := b.store.Tip(); got != chain.BlockHash(mined) {
		t.Fatalf("b tip = %s, want %s", got, chain.BlockHash(mined))
	}
	if !b.uset.Has(chain.TxInput{PrevTxID: chain.TxID(mined.Coinbase()), PrevIndex: 0}) {
		t.Fatalf("b utxo set missing coinbase output from synced block")
	}
}

func TestBlockInvGapFillAcrossMultipleBatches(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)

	var last chain.Block
	for i := 0; i < 6; i++ {
		last = mustMine(t, a, "gapfill")
	}

	connect(t, a, b)

	waitFor(t, func() bool {
		return b.store.Tip() == chain.BlockHash(last)
	})
	if b.store.Len() != a.store.Len() {
		t.Fatalf("b has %d blocks, a has %d", b.store.Len(), a.store.Len())
	}
}

func TestBlockInvReorgToHigherWork(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)

	for i := 0; i < 2; i++ {
		mustMine(t, a, "short")
	}
	var bTip chain.Block
	for i := 0; i < 3; i++ {
		bTip = mustMine(t, b, "long")
	}

	connect(t, a, b)

	waitFor(t, func() bool {
		return a.store.Tip() == chain.BlockHash(bTip)
	})
	if a.store.Tip() != b.store.Tip() {
		t.Fatalf("chains did not converge: a=%s b=%s", a.store.Tip(), b.store.Tip())
	}
	if got := a.store.TipBlock().Height; got != 3 {
		t.Fatalf("a tip height = %d, want 3", got)
	}
}
