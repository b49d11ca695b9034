package fullnode_test

import (
	"context"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/cryptoadapter"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/fullnode"
)

func newTestNode(t *testing.T) *fullnode.Node {
	t.Helper()
	n, err := fullnode.New(fullnode.Config{
		ListenAddress: "localhost:0",
		KeyPath:       filepath.Join(t.TempDir(), "private.hex"),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	n.Start(nil)
	t.Cleanup(n.Shutdown)
	return n
}

func TestImportPrivateKeyAndAccount(t *testing.T) {
	n := newTestNode(t)

	priv, err := cryptoadapter.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	want := chain.PubKey(priv.PublicKey())

	got, err := n.ImportPrivateKey(hex.EncodeToString(priv.Bytes()))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if got != want {
		t.Fatalf("imported pubkey mismatch")
	}

	acct, err := n.Account()
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct != want {
		t.Fatalf("account pubkey mismatch")
	}
}

func TestMineCreditsActiveAccount(t *testing.T) {
	n := newTestNode(t)

	priv, err := cryptoadapter.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if _, err := n.ImportPrivateKey(hex.EncodeToString(priv.Bytes())); err != nil {
		t.Fatalf("import: %v", err)
	}

	mined, err := n.Mine(context.Background(), "hello")
	if err != nil {
		t.Fatalf("mine: %v", err)
	}

	bal, err := n.Balance("")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != chain.Subsidy(mined.Height) {
		t.Fatalf("balance = %d, want %d", bal, chain.Subsidy(mined.Height))
	}

	got, err := n.Block("")
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if chain.BlockHash(got) != chain.BlockHash(mined) {
		t.Fatalf("tip block mismatch")
	}
}

func TestSendSpendsMinedCoinbase(t *testing.T) {
	n := newTestNode(t)

	priv, err := cryptoadapter.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if _, err := n.ImportPrivateKey(hex.EncodeToString(priv.Bytes())); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := n.Mine(context.Background(), "fund"); err != nil {
		t.Fatalf("mine: %v", err)
	}

	receiverPriv, err := cryptoadapter.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	receiverPub := chain.PubKey(receiverPriv.PublicKey())

	txid, err := n.Send(receiverPub.String(), 1_000_000)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	tx, err := n.Tx(txid.String())
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if tx.Outputs[0].Amount != 1_000_000 || tx.Outputs[0].PublicKey != receiverPub {
		t.Fatalf("unexpected first output: %+v", tx.Outputs[0])
	}
}

func TestSendInsufficientFunds(t *testing.T) {
	n := newTestNode(t)

	priv, err := cryptoadapter.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if _, err := n.ImportPrivateKey(hex.EncodeToString(priv.Bytes())); err != nil {
		t.Fatalf("import: %v", err)
	}

	receiverPriv, err := cryptoadapter.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	receiverPub := chain.PubKey(receiverPriv.PublicKey())

	if _, err := n.Send(receiverPub.String(), 1); err == nil {
		t.Fatalf("expected insufficient funds before any mining")
	}
}
