package syncengine

import (
	"context"
	"testing"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/cryptoadapter"
)

func TestTxInvGossipsAcrossPeers(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)

	priv, err := cryptoadapter.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub := chain.PubKey(priv.PublicKey())

	spendPriv, err := cryptoadapter.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	spendPub := chain.PubKey(spendPriv.PublicKey())

	mined, err := a.eng.Mine(context.Background(), pub, "fund")
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	coinbase := mined.Coinbase()
	coinbaseID := chain.TxID(coinbase)
	spendAmount := coinbase.Outputs[0].Amount - 2000

	tx := chain.Transaction{
		Inputs: []chain.TxInput{
			{PrevTxID: coinbaseID, PrevIndex: 0},
		},
		Outputs: []chain.TxOutput{
			{Amount: spendAmount, PublicKey: spendPub},
		},
	}
	txid := chain.TxID(tx)
	tx.Inputs[0].Signature = cryptoadapter.Sign(txid[:], priv)

	connect(t, a, b)

	gotTxID, err := a.eng.SubmitTransaction(tx)
	if err != nil {
		t.Fatalf("submit transaction: %v", err)
	}
	if gotTxID != txid {
		t.Fatalf("txid mismatch: got %s, want %s", gotTxID, txid)
	}

	waitFor(t, func() bool {
		return b.pool.Has(txid)
	})

	entry, ok := b.pool.Get(txid)
	if !ok {
		t.Fatalf("b never accepted the gossiped transaction")
	}
	if entry.Fees != 2000 {
		t.Fatalf("fee = %d, want 2000", entry.Fees)
	}
}

func TestAcceptTransactionRejectsDoubleSpendClaim(t *testing.T) {
	a := newTestNode(t)

	priv, err := cryptoadapter.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub := chain.PubKey(priv.PublicKey())

	spendPriv, err := cryptoadapter.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	spendPub := chain.PubKey(spendPriv.PublicKey())

	mined, err := a.eng.Mine(context.Background(), pub, "fund")
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	coinbase := mined.Coinbase()
	coinbaseID := chain.TxID(coinbase)

	buildSpend := func(amount uint64) chain.Transaction {
		tx := chain.Transaction{
			Inputs:  []chain.TxInput{{PrevTxID: coinbaseID, PrevIndex: 0}},
			Outputs: []chain.TxOutput{{Amount: amount, PublicKey: spendPub}},
		}
		txid := chain.TxID(tx)
		tx.Inputs[0].Signature = cryptoadapter.Sign(txid[:], priv)
		return tx
	}

	first := buildSpend(coinbase.Outputs[0].Amount - 1000)
	if _, err := a.eng.SubmitTransaction(first); err != nil {
		t.Fatalf("submit first spend: %v", err)
	}

	second := buildSpend(coinbase.Outputs[0].Amount - 2000)
	if _, err := a.eng.SubmitTransaction(second); err == nil {
		t.Fatalf("expected second spend of the same output to be rejected")
	}
}
