// Package utxo maintains the set of unspent transaction outputs at the
// active chain tip. Its shape and mutex-guarded map style follow the
// teacher's foundation/blockchain/accounts package, generalized from an
// account/balance table to an output-keyed set the way Bitcoin-style
// chains track spendable value.
package utxo

import (
	"sync"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
)

// Entry is an unspent output together with the block and transaction
// that created it.
type Entry struct {
	BlockHash chain.Hash
	TxID      chain.Hash
	Index     uint32
	Output    chain.TxOutput
}

// Key returns the "(txid, index)" identity of the entry.
func (e Entry) Key() string {
	return chain.OutputKey(e.TxID, e.Index)
}

// FromOutput constructs the Entry a transaction's output produces once
// that transaction is accepted into the active chain.
func FromOutput(blockHash, txid chain.Hash, index uint32, out chain.TxOutput) Entry {
	return Entry{BlockHash: blockHash, TxID: txid, Index: index, Output: out}
}

// Set is the UTXO state at the active chain tip. It is safe for
// concurrent use, though in normal operation the sync engine's single
// mutation queue means writers never race each other.
type Set struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New constructs an empty UTXO set.
func New() *Set {
	return &Set{entries: make(map[string]Entry)}
}

// Add inserts utxo. Idempotent: adding the same key twice just overwrites.
func (s *Set) Add(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Key()] = e
}

// Remove deletes the output at the given (txid, index) pair; see
// RemoveInput for an input. Removing a missing entry is a no-op.
func (s *Set) Remove(txid chain.Hash, index uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, chain.OutputKey(txid, index))
}

// RemoveInput is a convenience wrapper over Remove for a TxInput.
func (s *Set) RemoveInput(in chain.TxInput) {
	s.Remove(in.PrevTxID, in.PrevIndex)
}

// Get resolves the output an input references, if it is currently unspent.
func (s *Set) Get(in chain.TxInput) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[in.Key()]
	return e, ok
}

// GetKey resolves an entry directly by (txid, index).
func (s *Set) GetKey(txid chain.Hash, index uint32) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[chain.OutputKey(txid, index)]
	return e, ok
}

// Has reports whether an input's referenced output is currently unspent.
func (s *Set) Has(in chain.TxInput) bool {
	_, ok := s.Get(in)
	return ok
}

// Balance sums the amount of every unspent output locked to pubKey.
func (s *Set) Balance(pubKey chain.PubKey) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total uint64
	for _, e := range s.entries {
		if e.Output.PublicKey == pubKey {
			total += e.Output.Amount
		}
	}
	return total
}

// Filter returns every entry for which pred returns true.
func (s *Set) Filter(pred func(Entry) bool) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// ForPubKey returns every unspent output locked to pubKey.
func (s *Set) ForPubKey(pubKey chain.PubKey) []Entry {
	return s.Filter(func(e Entry) bool { return e.Output.PublicKey == pubKey })
}

// Len returns the number of unspent outputs tracked.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Copy returns an independent snapshot of the set, safe to mutate
// speculatively (e.g. while validating a candidate block or a reorg
// segment) without affecting the tip-tracking set.
func (s *Set) Copy() *Set {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := New()
	for k, v := range s.entries {
		cp.entries[k] = v
	}
	return cp
}

// Replace atomically swaps this set's contents with other's, used after
// a successful reorg commit to install the recomputed snapshot as the
// tip-tracking set in one step.
func (s *Set) Replace(other *Set) {
	other.mu.RLock()
	cp := make(map[string]Entry, len(other.entries))
	for k, v := range other.entries {
		cp[k] = v
	}
	other.mu.RUnlock()

	s.mu.Lock()
	s.entries = cp
	s.mu.Unlock()
}

// ApplyTransaction removes every UTXO the transaction's inputs consume
// and inserts an entry for each of its outputs. Callers are expected to
// have already validated the transaction against this set.
func (s *Set) ApplyTransaction(blockHash chain.Hash, tx chain.Transaction) {
	txid := chain.TxID(tx)

	for _, in := range tx.Inputs {
		s.RemoveInput(in)
	}
	for i, out := range tx.Outputs {
		s.Add(FromOutput(blockHash, txid, uint32(i), out))
	}
}
