package miner

import (
	"context"
	"testing"
	"time"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
)

func pubKey(b byte) chain.PubKey {
	var p chain.PubKey
	p[0] = 0x04
	for i := 1; i < len(p); i++ {
		p[i] = b
	}
	return p
}

func TestMinerFindsSolutionAtLowDifficulty(t *testing.T) {
	tip := chain.Genesis()
	candidate := Candidate(tip, 1, nil, 10_240, pubKey(0x01), "test", 1_000_000)

	m := New(candidate)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state := m.Run(ctx)
	if state != StateFound {
		t.Fatalf("expected StateFound, got %v", state)
	}
	if !m.IsFinished() {
		t.Fatalf("expected finished")
	}
	if !chain.IsHashSolved(1, chain.BlockHash(m.Result())) {
		t.Fatalf("result does not satisfy difficulty")
	}
}

func TestMinerCancellation(t *testing.T) {
	tip := chain.Genesis()
	// Difficulty high enough that a 2ms window will not find a solution.
	candidate := Candidate(tip, 40, nil, 10_240, pubKey(0x01), "test", 1_000_000)

	m := New(candidate)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan State, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(2 * time.Millisecond)
	cancel()

	state := <-done
	if state != StateCancelled {
		t.Fatalf("expected StateCancelled, got %v", state)
	}
}

func TestCandidateSelectsWithinByteBudget(t *testing.T) {
	tip := chain.Genesis()
	tx1 := chain.Transaction{
		Inputs:  []chain.TxInput{{PrevTxID: chain.Hash{1}, PrevIndex: 0}},
		Outputs: []chain.TxOutput{{Amount: 10, PublicKey: pubKey(0x02)}},
	}
	pending := []PendingTx{{Tx: tx1, Fees: 100}}

	tinyBudget := 8 // too small for coinbase's own bytes let alone tx1
	c := Candidate(tip, 1, pending, tinyBudget, pubKey(0x01), "", 42)

	if len(c.Txs) != 1 {
		t.Fatalf("expected only coinbase selected when budget too small, got %d txs", len(c.Txs))
	}

	roomyBudget := 10_240
	c2 := Candidate(tip, 1, pending, roomyBudget, pubKey(0x01), "", 42)
	if len(c2.Txs) != 2 {
		t.Fatalf("expected coinbase + tx1 selected, got %d txs", len(c2.Txs))
	}
	if c2.Coinbase().Outputs[0].Amount != chain.Subsidy(1)+100 {
		t.Fatalf("expected coinbase reward = subsidy + fees, got %d", c2.Coinbase().Outputs[0].Amount)
	}
}
