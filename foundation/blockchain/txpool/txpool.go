// Package txpool maintains the mempool of pending, validated
// transactions awaiting inclusion in a block, ordered by descending
// fee for the miner's candidate-selection pass. Its map+mutex shape and
// its "sort by a single sort.Interface" selection style follow the
// teacher's foundation/blockchain/mempool package, generalized from an
// account/nonce/tip ordering to a UTXO chain's simpler fee ordering
// (there is no per-sender nonce sequencing to respect once every
// transaction is a self-contained set of input claims).
package txpool

import (
	"sort"
	"sync"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
)

// Entry is a pending transaction and the fee it pays.
type Entry struct {
	Tx   chain.Transaction
	Fees uint64
}

// Pool holds pending transactions keyed by txid, plus the set of
// outputs any of them claims, so a second transaction spending the
// same output is detected before either is mined.
type Pool struct {
	mu    sync.RWMutex
	txs   map[chain.Hash]Entry
	spent map[string]chain.Hash // output key -> claiming txid
	order []chain.Hash          // insertion order, for a stable tie-break
}

// New constructs an empty pool.
func New() *Pool {
	return &Pool{
		txs:   make(map[chain.Hash]Entry),
		spent: make(map[string]chain.Hash),
	}
}

// Add records tx and its claims. The caller is responsible for having
// validated tx against the active UTXO set and mempool before calling.
func (p *Pool) Add(tx chain.Transaction, fees uint64) chain.Hash {
	txid := chain.TxID(tx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.txs[txid]; exists {
		return txid
	}

	p.txs[txid] = Entry{Tx: tx, Fees: fees}
	p.order = append(p.order, txid)
	for _, in := range tx.Inputs {
		p.spent[in.Key()] = txid
	}
	return txid
}

// Remove releases txid and its claims.
func (p *Pool) Remove(txid chain.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txid)
}

func (p *Pool) removeLocked(txid chain.Hash) {
	e, ok := p.txs[txid]
	if !ok {
		return
	}
	delete(p.txs, txid)
	for _, in := range e.Tx.Inputs {
		if p.spent[in.Key()] == txid {
			delete(p.spent, in.Key())
		}
	}
	for i, h := range p.order {
		if h == txid {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Has reports whether txid is pending.
func (p *Pool) Has(txid chain.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.txs[txid]
	return ok
}

// HasClaim reports whether some pending transaction already spends the
// output an input references.
func (p *Pool) HasClaim(in chain.TxInput) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.spent[in.Key()]
	return ok
}

// Get returns the pending entry for txid.
func (p *Pool) Get(txid chain.Hash) (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.txs[txid]
	return e, ok
}

// Len returns the number of pending transactions.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// TxIDs returns every pending transaction id, in insertion order.
func (p *Pool) TxIDs() []chain.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]chain.Hash, len(p.order))
	copy(out, p.order)
	return out
}

// OrderByFeesDesc returns every pending entry sorted by descending fee.
// Ties break by insertion order, which sort.Stable preserves.
func (p *Pool) OrderByFeesDesc() []Entry {
	p.mu.RLock()
	entries := make([]Entry, 0, len(p.order))
	for _, txid := range p.order {
		entries = append(entries, p.txs[txid])
	}
	p.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Fees > entries[j].Fees
	})
	return entries
}

// byFeesDesc is kept alongside OrderByFeesDesc's sort.SliceStable call
// as the sort.Interface equivalent, matching the teacher's byTip/byNonce
// style for callers that need a reusable, named Interface implementation
// (e.g. sorting a slice obtained elsewhere without re-copying via Pool).
type byFeesDesc []Entry

func (b byFeesDesc) Len() int           { return len(b) }
func (b byFeesDesc) Less(i, j int) bool { return b[i].Fees > b[j].Fees }
func (b byFeesDesc) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }

// SortByFeesDesc sorts entries in place by descending fee.
func SortByFeesDesc(entries []Entry) {
	sort.Stable(byFeesDesc(entries))
}

// Reconcile removes every pending transaction with an input the
// predicate reports as no longer spendable, called by the sync engine
// after every chain mutation (§4.G).
func (p *Pool) Reconcile(stillUnspent func(chain.TxInput) bool) {
	p.mu.Lock()
	var stale []chain.Hash
	for txid, e := range p.txs {
		for _, in := range e.Tx.Inputs {
			if !stillUnspent(in) {
				stale = append(stale, txid)
				break
			}
		}
	}
	p.mu.Unlock()

	for _, txid := range stale {
		p.Remove(txid)
	}
}
