package syncengine

import (
	"context"
	"errors"
	"time"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/miner"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/p2p"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/validate"
)

// candidatePendingTxs converts the mempool's fee-ordered entries to
// the shape miner.Candidate expects, without importing txpool into
// the miner package.
func (e *Engine) candidatePendingTxs() []miner.PendingTx {
	entries := e.pool.OrderByFeesDesc()
	out := make([]miner.PendingTx, len(entries))
	for i, en := range entries {
		out[i] = miner.PendingTx{Tx: en.Tx, Fees: en.Fees}
	}
	return out
}

func (e *Engine) expectedDifficultyFor(parent chain.Block) uint8 {
	ctx := e.blockContext(parent, 0)
	return validate.ExpectedDifficulty(parent, ctx.Ancestor10, ctx.HasAncestor10)
}

func (e *Engine) buildCandidate(coinbasePubKey chain.PubKey, message string) chain.Block {
	tip := e.store.TipBlock()
	difficulty := e.expectedDifficultyFor(tip)
	now := uint64(time.Now().UnixMilli())
	return miner.Candidate(tip, difficulty, e.candidatePendingTxs(), validate.MaxBlockBytes(), coinbasePubKey, message, now)
}

// Mine builds a candidate on top of the current tip and searches for
// a solution until one is found or ctx is cancelled. The winning
// block, if any, is committed through the task queue exactly like an
// accepted blockinv segment of length one.
func (e *Engine) Mine(ctx context.Context, coinbasePubKey chain.PubKey, message string) (chain.Block, error) {
	miningCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	candidate := e.buildCandidate(coinbasePubKey, message)
	m := miner.New(candidate)

	e.minerMu.Lock()
	e.activeMiner = m
	e.activeMinerCancel = cancel
	e.minerMu.Unlock()
	defer func() {
		e.minerMu.Lock()
		if e.activeMiner == m {
			e.activeMiner = nil
			e.activeMinerCancel = nil
		}
		e.minerMu.Unlock()
	}()

	if m.Run(miningCtx) == miner.StateCancelled {
		return chain.Block{}, ErrMiningCancelled
	}
	found := m.Result()

	errc := make(chan error, 1)
	e.enqueue(func() { errc <- e.submitLocalBlock(found) })
	if err := <-errc; err != nil {
		return chain.Block{}, err
	}
	return found, nil
}

// MineLoop mines repeatedly until ctx is cancelled, calling onBlock
// (if non-nil) after each block this node successfully commits.
// Attempts that lose a race to a faster block (ErrStaleCandidate) are
// logged and retried against the new tip rather than treated as
// fatal.
func (e *Engine) MineLoop(ctx context.Context, coinbasePubKey chain.PubKey, message string, onBlock func(chain.Block)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.shutdown:
			return
		default:
		}

		b, err := e.Mine(ctx, coinbasePubKey, message)
		if err != nil {
			if errors.Is(err, ErrMiningCancelled) {
				// Either ctx is done or a committed block moved the tip;
				// the check at the top of the loop tells them apart.
				continue
			}
			e.log.Debugw("syncengine: mineloop: attempt did not land", "error", err)
			continue
		}
		if onBlock != nil {
			onBlock(b)
		}
	}
}

// submitLocalBlock validates b as a direct extension of the current
// tip and commits it. Runs on the task queue.
func (e *Engine) submitLocalBlock(b chain.Block) error {
	tip := e.store.TipBlock()
	tipHash := chain.BlockHash(tip)
	if b.PrevHash != tipHash {
		return ErrStaleCandidate
	}

	now := uint64(time.Now().UnixMilli())
	bctx := e.blockContext(tip, now)
	if err := validate.Block(e.store, tip, b, bctx, e.evHandler); err != nil {
		return err
	}

	working := e.uset.Copy()
	bh := chain.BlockHash(b)
	if _, err := validate.Transactions(working, bh, b, e.evHandler); err != nil {
		return err
	}

	e.store.Insert(b)
	e.store.SetNext(tipHash, bh)
	e.store.SetTip(bh)
	e.uset.Replace(working)

	if e.hub != nil {
		e.hub.Broadcast(p2p.TypeBlockInv, p2p.BlockInv{Hash: bh.String(), Height: b.Height})
	}
	e.reconcileMempool()
	return nil
}

func (e *Engine) cancelActiveMiner() {
	e.minerMu.Lock()
	cancel := e.activeMinerCancel
	e.minerMu.Unlock()
	if cancel != nil {
		cancel()
	}
}
