package chainstore

import (
	"testing"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
)

func child(parent chain.Hash, height uint64, diff uint8) chain.Block {
	return chain.Block{
		Height:     height,
		Timestamp:  uint64(height) * 10_000,
		PrevHash:   parent,
		Difficulty: diff,
		Txs:        []chain.Transaction{chain.BuildCoinbase(chain.PubKey{}, 0, height, "")},
	}
}

func TestNewSeedsGenesis(t *testing.T) {
	s := New()
	if s.Tip() != chain.GenesisHash() {
		t.Fatalf("expected tip to be genesis hash")
	}
	if !s.Has(chain.GenesisHash()) {
		t.Fatalf("expected genesis to be present")
	}
}

func TestInsertSetNextAndTop(t *testing.T) {
	s := New()
	gh := chain.GenesisHash()

	b1 := child(gh, 1, 1)
	h1 := chain.BlockHash(b1)
	s.Insert(b1)
	s.SetNext(gh, h1)
	s.SetTip(h1)

	b2 := child(h1, 2, 1)
	h2 := chain.BlockHash(b2)
	s.Insert(b2)
	s.SetNext(h1, h2)
	s.SetTip(h2)

	top0, err := s.Top(0)
	if err != nil || top0.Height != 2 {
		t.Fatalf("top(0) = %+v, err=%v", top0, err)
	}
	top1, err := s.Top(1)
	if err != nil || top1.Height != 1 {
		t.Fatalf("top(1) = %+v, err=%v", top1, err)
	}
	top2, err := s.Top(2)
	if err != nil || top2.Height != 0 {
		t.Fatalf("top(2) = %+v, err=%v", top2, err)
	}
}

func TestDisconnectSuffix(t *testing.T) {
	s := New()
	gh := chain.GenesisHash()

	b1 := child(gh, 1, 1)
	h1 := chain.BlockHash(b1)
	s.Insert(b1)
	s.SetNext(gh, h1)

	b2 := child(h1, 2, 1)
	h2 := chain.BlockHash(b2)
	s.Insert(b2)
	s.SetNext(h1, h2)

	removed := s.DisconnectSuffix(gh)
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed blocks, got %d", len(removed))
	}
	if s.Has(h1) || s.Has(h2) {
		t.Fatalf("expected suffix blocks removed from store")
	}
	if _, ok := s.Next(gh); ok {
		t.Fatalf("expected genesis next pointer cleared")
	}
}
