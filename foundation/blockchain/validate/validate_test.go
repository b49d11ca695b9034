package validate

import (
	"errors"
	"testing"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chainstore"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/utxo"
)

func pubKey(b byte) chain.PubKey {
	var p chain.PubKey
	p[0] = 0x04
	for i := 1; i < len(p); i++ {
		p[i] = b
	}
	return p
}

func TestExpectedDifficultyNoRetarget(t *testing.T) {
	parent := chain.Block{Height: 3, Difficulty: 5}
	got := ExpectedDifficulty(parent, chain.Block{}, false)
	if got != 5 {
		t.Fatalf("expected unchanged difficulty, got %d", got)
	}
}

func TestExpectedDifficultyRetargetFaster(t *testing.T) {
	parent := chain.Block{Height: 10, Difficulty: 5, Timestamp: 50_000}
	ancestor10 := chain.Block{Timestamp: 0} // duration 50_000 equals expected/2, so it is not below it
	got := ExpectedDifficulty(parent, ancestor10, true)
	if got != 5 {
		t.Fatalf("boundary case: expected unchanged difficulty, got %d", got)
	}

	fast := chain.Block{Height: 10, Difficulty: 5, Timestamp: 10_000}
	got = ExpectedDifficulty(fast, ancestor10, true)
	if got != 6 {
		t.Fatalf("expected difficulty increase, got %d", got)
	}
}

func TestExpectedDifficultyRetargetSlower(t *testing.T) {
	parent := chain.Block{Height: 10, Difficulty: 5, Timestamp: 300_000}
	ancestor10 := chain.Block{Timestamp: 0}
	got := ExpectedDifficulty(parent, ancestor10, true)
	if got != 4 {
		t.Fatalf("expected difficulty decrease, got %d", got)
	}
}

func TestCumulativeWorkAndPrefer(t *testing.T) {
	blocks := []chain.Block{{Difficulty: 1}, {Difficulty: 2}}
	if got := CumulativeWork(blocks); got != 2+4 {
		t.Fatalf("cumulative work = %d, want 6", got)
	}
	if !PreferIncoming(6, 6) {
		t.Fatalf("ties should favor incoming")
	}
	if PreferIncoming(5, 6) {
		t.Fatalf("lower work should not be preferred")
	}
}

func TestTransactionsRejectsMissingInput(t *testing.T) {
	u := utxo.New()
	b := chain.Block{
		Height: 1,
		Txs: []chain.Transaction{
			chain.BuildCoinbase(pubKey(0x01), 5_000_000_000, 1, ""),
			{
				Inputs:  []chain.TxInput{{PrevTxID: chain.Hash{9}, PrevIndex: 0}},
				Outputs: []chain.TxOutput{{Amount: 1, PublicKey: pubKey(0x02)}},
			},
		},
	}

	_, err := Transactions(u, chain.Hash{}, b, nil)
	if !errors.Is(err, ErrMissingIn) {
		t.Fatalf("expected ErrMissingIn, got %v", err)
	}
}

func TestTransactionsAcceptsCoinbaseOnly(t *testing.T) {
	u := utxo.New()
	b := chain.Block{
		Height: 1,
		Txs:    []chain.Transaction{chain.BuildCoinbase(pubKey(0x01), chain.Subsidy(1), 1, "")},
	}

	fees, err := Transactions(u, chain.Hash{0xAA}, b, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fees != 0 {
		t.Fatalf("expected zero fees, got %d", fees)
	}
	if u.Balance(pubKey(0x01)) != chain.Subsidy(1) {
		t.Fatalf("expected coinbase output applied to utxo set")
	}
}

func TestTransactionsRejectsOverpaidCoinbase(t *testing.T) {
	u := utxo.New()
	b := chain.Block{
		Height: 1,
		Txs:    []chain.Transaction{chain.BuildCoinbase(pubKey(0x01), chain.Subsidy(1)+1, 1, "")},
	}

	_, err := Transactions(u, chain.Hash{}, b, nil)
	if !errors.Is(err, ErrCoinbase) {
		t.Fatalf("expected ErrCoinbase, got %v", err)
	}
}

func TestBlockRejectsWrongHeight(t *testing.T) {
	store := chainstore.New()
	parent := chain.Genesis()

	bad := chain.Block{
		Height:     5,
		Timestamp:  parent.Timestamp + 20_000,
		PrevHash:   chain.BlockHash(parent),
		Difficulty: parent.Difficulty,
	}

	err := Block(store, parent, bad, BlockContext{NowMs: bad.Timestamp}, nil)
	if !errors.Is(err, ErrContinuity) {
		t.Fatalf("expected ErrContinuity, got %v", err)
	}
}
