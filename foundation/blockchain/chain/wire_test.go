package chain

import (
	"bytes"
	"testing"
)

func samplePubKey(b byte) PubKey {
	var p PubKey
	p[0] = 0x04
	for i := 1; i < len(p); i++ {
		p[i] = b
	}
	return p
}

func TestTransactionRoundTrip(t *testing.T) {
	tx := Transaction{
		Inputs: []TxInput{
			{PrevTxID: Hash{1, 2, 3}, PrevIndex: 4, Signature: []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x02}},
		},
		Outputs: []TxOutput{
			{Amount: 100, PublicKey: samplePubKey(0xAB)},
			{Amount: 200, PublicKey: samplePubKey(0xCD)},
		},
	}

	encoded := Serialize(tx)
	if len(encoded) != tx.BytesLength() {
		t.Fatalf("bytes length mismatch: got %d want %d", len(encoded), tx.BytesLength())
	}

	decoded, err := DeserializeTransaction(encoded, false)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if len(decoded.Inputs) != 1 || len(decoded.Outputs) != 2 {
		t.Fatalf("shape mismatch: %+v", decoded)
	}
	if decoded.Outputs[0].Amount != 100 || decoded.Outputs[1].Amount != 200 {
		t.Fatalf("amounts mismatch: %+v", decoded.Outputs)
	}
	if !bytes.Equal(decoded.Inputs[0].Signature, tx.Inputs[0].Signature) {
		t.Fatalf("signature mismatch: got %x want %x", decoded.Inputs[0].Signature, tx.Inputs[0].Signature)
	}
}

func TestTxIDIndependentOfSignature(t *testing.T) {
	base := Transaction{
		Inputs:  []TxInput{{PrevTxID: Hash{9}, PrevIndex: 1}},
		Outputs: []TxOutput{{Amount: 50, PublicKey: samplePubKey(0x01)}},
	}

	signed := base
	signed.Inputs = append([]TxInput(nil), base.Inputs...)
	signed.Inputs[0].Signature = []byte{0x30, 0x04, 0x02, 0x00, 0x02, 0x00}

	if TxID(base) != TxID(signed) {
		t.Fatalf("txid changed after adding a signature")
	}
}

func TestDeserializeManyTransactions(t *testing.T) {
	tx1 := Transaction{Outputs: []TxOutput{{Amount: 1, PublicKey: samplePubKey(0x01)}}}
	tx2 := Transaction{Outputs: []TxOutput{{Amount: 2, PublicKey: samplePubKey(0x02)}, {Amount: 3, PublicKey: samplePubKey(0x03)}}}

	blob := append(Serialize(tx1), Serialize(tx2)...)

	txs, err := DeserializeManyTransactions(blob)
	if err != nil {
		t.Fatalf("deserialize many: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if txs[0].Outputs[0].Amount != 1 || txs[1].Outputs[1].Amount != 3 {
		t.Fatalf("unexpected contents: %+v", txs)
	}
}

func TestDeserializeManyTransactionsShortBuffer(t *testing.T) {
	tx := Transaction{Outputs: []TxOutput{{Amount: 1, PublicKey: samplePubKey(0x01)}}}
	blob := Serialize(tx)
	blob = append(blob, 0x00, 0x00, 0x00, 0x01) // declares another input we don't provide

	if _, err := DeserializeManyTransactions(blob); err == nil {
		t.Fatalf("expected error for truncated trailing transaction")
	}
}

func TestBlockRoundTrip(t *testing.T) {
	coinbase := BuildCoinbase(samplePubKey(0xEE), 5_000_000_000, 7, "hello block")
	regular := Transaction{
		Inputs:  []TxInput{{PrevTxID: Hash{1}, PrevIndex: 0, Signature: []byte{0x30, 0x02, 0x02, 0x00}}},
		Outputs: []TxOutput{{Amount: 42, PublicKey: samplePubKey(0x02)}},
	}

	blk := Block{
		Height:     7,
		Timestamp:  123456,
		PrevHash:   Hash{0xAA},
		Difficulty: 3,
		Txs:        []Transaction{coinbase, regular},
	}
	blk.Nonce[31] = 0x09

	encoded := SerializeBlock(blk)
	decoded, err := DeserializeBlock(encoded)
	if err != nil {
		t.Fatalf("deserialize block: %v", err)
	}

	if decoded.Height != blk.Height || decoded.Timestamp != blk.Timestamp || decoded.Difficulty != blk.Difficulty {
		t.Fatalf("header mismatch: %+v", decoded)
	}
	if BlockHash(decoded) != BlockHash(blk) {
		t.Fatalf("hash not preserved across round trip")
	}
	if CoinbaseMessage(decoded.Txs[0]) != "hello block" {
		t.Fatalf("coinbase message mismatch: %q", CoinbaseMessage(decoded.Txs[0]))
	}
	if len(decoded.Txs[1].Inputs[0].Signature) == 0 {
		t.Fatalf("expected regular tx signature to survive round trip")
	}
}

func TestIsHashSolved(t *testing.T) {
	var h Hash
	if !IsHashSolved(0, h) {
		t.Fatalf("difficulty 0 should always be solved")
	}

	h[0] = 0x0F // 4 leading zero bits
	if !IsHashSolved(4, h) {
		t.Fatalf("expected difficulty 4 to be solved")
	}
	if IsHashSolved(5, h) {
		t.Fatalf("expected difficulty 5 to fail")
	}
}

func TestGenesisBlockSatisfiesItsOwnProof(t *testing.T) {
	g := Genesis()
	if !IsHashSolved(g.Difficulty, BlockHash(g)) {
		t.Fatalf("genesis block does not satisfy its own proof of work")
	}
	if g.Height != 0 || !g.PrevHash.IsZero() {
		t.Fatalf("genesis header shape wrong: height=%d prevHash=%s", g.Height, g.PrevHash)
	}
}
