package fullnode

import (
	"errors"
	"fmt"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chainstore"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/utxo"
)

// ErrNotFound is returned by lookups instead of a wrapped storage
// error, matching §7's "block/peer/tx lookups return not found rather
// than failing".
var ErrNotFound = errors.New("fullnode: not found")

// resolvePubKey returns hexKey parsed as a public key, or the active
// account's public key if hexKey is empty (the CLI's "[pubkey_hex]"
// optional-argument convention).
func (n *Node) resolvePubKey(hexKey string) (chain.PubKey, error) {
	if hexKey == "" {
		return n.Account()
	}
	return chain.PubKeyFromHex(hexKey)
}

// Balance sums every unspent output paying pubKeyHex (or the active
// account, if empty).
func (n *Node) Balance(pubKeyHex string) (uint64, error) {
	pub, err := n.resolvePubKey(pubKeyHex)
	if err != nil {
		return 0, err
	}
	return n.uset.Balance(pub), nil
}

// Unspent lists every unspent output paying pubKeyHex (or the active
// account, if empty).
func (n *Node) Unspent(pubKeyHex string) ([]utxo.Entry, error) {
	pub, err := n.resolvePubKey(pubKeyHex)
	if err != nil {
		return nil, err
	}
	return n.uset.ForPubKey(pub), nil
}

// MempoolLen returns the number of transactions currently waiting to
// be mined.
func (n *Node) MempoolLen() int {
	return n.pool.Len()
}

// PeerAdd dials addr and adds it as a live peer.
func (n *Node) PeerAdd(addr string) error {
	return n.hub.Dial(addr)
}

// PeerList returns every live peer's advertised listen address,
// falling back to its dial/accept address when none was advertised.
func (n *Node) PeerList() []string {
	peers := n.hub.Peers()
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		if addr := p.ListenAddress(); addr != "" {
			out = append(out, addr)
			continue
		}
		out = append(out, p.Address())
	}
	return out
}

// Block returns the block named by hashHex, or the active tip if
// hashHex is empty.
func (n *Node) Block(hashHex string) (chain.Block, error) {
	if hashHex == "" {
		return n.store.TipBlock(), nil
	}
	hash, err := chain.HashFromHex(hashHex)
	if err != nil {
		return chain.Block{}, fmt.Errorf("%w: %s", ErrNotFound, hashHex)
	}
	b, err := n.store.Get(hash)
	if err != nil {
		if errors.Is(err, chainstore.ErrUnknownBlock) {
			return chain.Block{}, ErrNotFound
		}
		return chain.Block{}, err
	}
	return b, nil
}

// BlockTxs returns the transactions of the block named by hashHex.
func (n *Node) BlockTxs(hashHex string) ([]chain.Transaction, error) {
	b, err := n.Block(hashHex)
	if err != nil {
		return nil, err
	}
	return b.Txs, nil
}

// Tx looks up txidHex first in the mempool, then among the active
// chain's blocks (walking back from the tip), returning ErrNotFound if
// neither has it.
func (n *Node) Tx(txidHex string) (chain.Transaction, error) {
	txid, err := chain.HashFromHex(txidHex)
	if err != nil {
		return chain.Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, txidHex)
	}

	if entry, ok := n.pool.Get(txid); ok {
		return entry.Tx, nil
	}

	cur := n.store.Tip()
	for {
		b, err := n.store.Get(cur)
		if err != nil {
			break
		}
		for _, tx := range b.Txs {
			if chain.TxID(tx) == txid {
				return tx, nil
			}
		}
		if b.Height == 0 {
			break
		}
		cur = b.PrevHash
	}

	return chain.Transaction{}, ErrNotFound
}
