// Package miner searches for a nonce that solves a candidate block's
// proof of work. Its cancel-then-wait-for-done handshake follows the
// teacher's foundation/blockchain/state worker_mining.go
// signalCancelMining/runMiningOperation pair, adapted from a
// goroutine-signaled worker to an explicit context-driven state
// machine (searching, then cancelled or found) instead of the teacher's
// error-or-success outcome.
package miner

import (
	"context"
	"crypto/rand"
	"errors"
	"sync/atomic"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
)

// chunkSize bounds how many nonce trials run between cooperative
// cancellation checks (§4.H).
const chunkSize = 100

// State is the miner's terminal outcome. A miner not yet finished
// reports StateSearching.
type State int32

const (
	StateSearching State = iota
	StateCancelled
	StateFound
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateCancelled:
		return "cancelled"
	case StateFound:
		return "found"
	default:
		return "unknown"
	}
}

// ErrAlreadyFinished is returned by Cancel once a miner has already
// reached a terminal state.
var ErrAlreadyFinished = errors.New("miner: already finished")

// Miner searches for a valid nonce for a single candidate block. It is
// single-use: construct a fresh Miner per candidate.
type Miner struct {
	candidate chain.Block
	state     atomic.Int32
	result    chain.Block
	done      chan struct{}
}

// New constructs a miner for candidate. The candidate must already
// have correct height, prev_hash, difficulty, and transactions; only
// the nonce is undetermined.
func New(candidate chain.Block) *Miner {
	return &Miner{
		candidate: candidate,
		done:      make(chan struct{}),
	}
}

// State reports the miner's current terminal state, or StateSearching
// if still running.
func (m *Miner) State() State {
	return State(m.state.Load())
}

// IsFinished reports whether the miner has reached a terminal state.
func (m *Miner) IsFinished() bool {
	return m.State() != StateSearching
}

// Result returns the solved block. Valid only once State() == StateFound.
func (m *Miner) Result() chain.Block {
	return m.result
}

// Run searches for a solving nonce until it succeeds or ctx is
// cancelled, yielding cooperatively every chunkSize trials so a
// single-threaded caller interleaving other work still makes
// progress. Run blocks until a terminal state is reached; it is safe
// to call from a dedicated goroutine on a multi-threaded runtime, in
// which case the cancellation contract (ctx.Done) is unchanged.
func (m *Miner) Run(ctx context.Context) State {
	defer close(m.done)

	b := m.candidate
	for {
		select {
		case <-ctx.Done():
			m.state.Store(int32(StateCancelled))
			return StateCancelled
		default:
		}

		for i := 0; i < chunkSize; i++ {
			if _, err := rand.Read(b.Nonce[:]); err != nil {
				continue
			}
			if chain.IsHashSolved(b.Difficulty, chain.BlockHash(b)) {
				m.result = b
				m.state.Store(int32(StateFound))
				return StateFound
			}
		}
	}
}

// Cancel requests termination and blocks until Run has observed it and
// reached its terminal state. Calling Cancel after Run has already
// finished is a no-op and returns ErrAlreadyFinished.
func Cancel(cancelFn context.CancelFunc, m *Miner) error {
	if m.IsFinished() {
		return ErrAlreadyFinished
	}
	cancelFn()
	<-m.done
	return nil
}

// Candidate builds the next block to mine atop tip: it snapshots the
// difficulty (already computed by the caller via the validator's
// ExpectedDifficulty), selects transactions from pending in
// fee-descending order up to maxBytes, and sets the coinbase reward to
// subsidy(height) plus the fees of everything selected (§4.H).
func Candidate(tip chain.Block, difficulty uint8, pending []PendingTx, maxBytes int, coinbasePubKey chain.PubKey, coinbaseMessage string, nowMs uint64) chain.Block {
	height := tip.Height + 1

	var selected []chain.Transaction
	var totalBytes int
	var totalFees uint64
	for _, p := range pending {
		size := p.Tx.BytesLength()
		if totalBytes+size > maxBytes {
			continue
		}
		selected = append(selected, p.Tx)
		totalBytes += size
		totalFees += p.Fees
	}

	reward := chain.Subsidy(height) + totalFees
	coinbase := chain.BuildCoinbase(coinbasePubKey, reward, height, coinbaseMessage)

	txs := make([]chain.Transaction, 0, len(selected)+1)
	txs = append(txs, coinbase)
	txs = append(txs, selected...)

	return chain.Block{
		Height:     height,
		Timestamp:  nowMs,
		PrevHash:   chain.BlockHash(tip),
		Difficulty: difficulty,
		Txs:        txs,
	}
}

// PendingTx is the subset of a mempool entry the candidate builder
// needs, kept independent of the txpool package's exact Entry shape
// so miner has no import-cycle-inducing dependency on it.
type PendingTx struct {
	Tx   chain.Transaction
	Fees uint64
}
