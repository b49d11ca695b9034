package syncengine

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/p2p"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/utxo"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/validate"
)

// ingestBlockInv implements §4.J.1 end to end: fetch the announced
// block, gap-fill backward until the chain store recognizes an
// ancestor, validate the resulting segment (as an extension or a
// reorg), and commit or discard it.
//
// Orphans are inserted into the chain store as soon as they're
// discovered, disconnected from the active chain (chainstore.Insert's
// documented role), so that validate.Block's own ancestor/MTP lookups
// can see them mid-segment. A failed validation rolls back by
// removing every orphan hash inserted this attempt, leaving the
// active chain untouched.
func (e *Engine) ingestBlockInv(sess *p2p.Session, inv p2p.BlockInv) {
	peer := sess.Peer()

	hash, err := chain.HashFromHex(inv.Hash)
	if err != nil {
		e.log.Debugw("syncengine: blockinv: bad hash", "peer", peer.Address(), "error", err)
		return
	}
	if e.store.Has(hash) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p2p.RequestTimeout)
	defer cancel()

	b0, err := e.fetchBlock(ctx, peer, hash)
	if err != nil {
		e.log.Debugw("syncengine: blockinv: fetch failed", "hash", inv.Hash, "error", err)
		return
	}
	e.store.Insert(b0)

	orphanHashes := []chain.Hash{hash}
	rollback := func() {
		for _, h := range orphanHashes {
			e.store.Remove(h)
		}
	}

	block := b0
	frontier := hash
	batch := 2

	for !e.store.Has(block.PrevHash) {
		resp, err := e.fetchAncestors(ctx, peer, frontier, batch)
		if err != nil {
			e.log.Debugw("syncengine: blockinv: gap fill request failed", "error", err)
			rollback()
			return
		}
		if len(resp) == 0 {
			e.log.Debugw("syncengine: blockinv: gap fill: empty response")
			rollback()
			return
		}

		progressed := false
		var lastHash chain.Hash
		for {
			parentHash := block.PrevHash
			if e.store.Has(parentHash) {
				break
			}
			hexBody, ok := resp[parentHash.String()]
			if !ok || hexBody == "" {
				break
			}
			parentBlock, err := decodeHexBlock(hexBody)
			if err != nil {
				e.log.Debugw("syncengine: blockinv: bad ancestor body", "error", err)
				rollback()
				return
			}
			e.store.Insert(parentBlock)
			orphanHashes = append(orphanHashes, parentHash)
			block = parentBlock
			lastHash = parentHash
			progressed = true
		}

		if !progressed {
			e.log.Debugw("syncengine: blockinv: gap fill: response missing required parent")
			rollback()
			return
		}

		frontier = lastHash
		batch *= 2
		if batch > maxGapFillBatch {
			batch = maxGapFillBatch
		}
	}

	e.commitOrRollback(block.PrevHash, orphanHashes, rollback)
}

// commitOrRollback validates the segment named by orphanHashes
// (newest first) against forkHash, then either wires it onto the
// active chain (extension or accepted reorg) or invokes rollback and
// leaves state untouched (§4.J.1 steps 4-7).
func (e *Engine) commitOrRollback(forkHash chain.Hash, orphanHashes []chain.Hash, rollback func()) {
	forkBlock, err := e.store.Get(forkHash)
	if err != nil {
		e.log.Debugw("syncengine: commit: unknown fork point", "error", err)
		rollback()
		return
	}

	segment := make([]chain.Block, len(orphanHashes))
	for i, h := range orphanHashes {
		b, err := e.store.Get(h)
		if err != nil {
			e.log.Debugw("syncengine: commit: missing orphan", "error", err)
			rollback()
			return
		}
		segment[len(orphanHashes)-1-i] = b
	}

	_, hasNext := e.store.Next(forkHash)
	extendsActive := !hasNext

	var working *utxo.Set
	if extendsActive {
		working = e.uset.Copy()
	} else {
		localSuffix := e.collectSuffix(forkHash)
		incoming := validate.CumulativeWork(segment)
		local := validate.CumulativeWork(localSuffix)
		if !validate.PreferIncoming(incoming, local) {
			e.log.Infow("syncengine: reorg rejected: insufficient cumulative work", "incoming", incoming, "local", local)
			rollback()
			return
		}
		working, err = e.rebuildUTXOFromGenesis(forkHash)
		if err != nil {
			e.log.Errorw("syncengine: reorg: utxo rebuild failed", "error", err)
			rollback()
			return
		}
	}

	now := uint64(time.Now().UnixMilli())
	parent := forkBlock
	for _, b := range segment {
		bctx := e.blockContext(parent, now)
		if err := validate.Block(e.store, parent, b, bctx, e.evHandler); err != nil {
			e.log.Infow("syncengine: segment rejected", "height", b.Height, "error", err)
			rollback()
			return
		}
		bh := chain.BlockHash(b)
		if _, err := validate.Transactions(working, bh, b, e.evHandler); err != nil {
			e.log.Infow("syncengine: segment tx rejected", "height", b.Height, "error", err)
			rollback()
			return
		}
		parent = b
	}

	e.cancelActiveMiner()

	for _, h := range e.store.DisconnectSuffix(forkHash) {
		e.log.Debugw("syncengine: commit: disconnected block", "hash", h.String())
	}

	prev := forkHash
	for _, b := range segment {
		bh := chain.BlockHash(b)
		e.store.SetNext(prev, bh)
		prev = bh
	}
	e.store.SetTip(prev)
	e.uset.Replace(working)

	tip := e.store.TipBlock()
	if e.hub != nil {
		e.hub.Broadcast(p2p.TypeBlockInv, p2p.BlockInv{Hash: chain.BlockHash(tip).String(), Height: tip.Height})
	}

	e.reconcileMempool()
}

// collectSuffix returns the active-chain blocks strictly after
// forkHash, oldest first, by walking forward next pointers.
func (e *Engine) collectSuffix(forkHash chain.Hash) []chain.Block {
	var out []chain.Block
	cur := forkHash
	for {
		next, ok := e.store.Next(cur)
		if !ok {
			break
		}
		b, err := e.store.Get(next)
		if err != nil {
			break
		}
		out = append(out, b)
		cur = next
	}
	return out
}

// rebuildUTXOFromGenesis deterministically replays every block from
// genesis to forkHash (inclusive), following the active chain's next
// pointers, to produce the UTXO snapshot a reorg must re-validate
// atop (§4.J.1 step 5).
func (e *Engine) rebuildUTXOFromGenesis(forkHash chain.Hash) (*utxo.Set, error) {
	fresh := utxo.New()

	genesis := chain.Genesis()
	genesisHash := chain.GenesisHash()
	if _, err := validate.Transactions(fresh, genesisHash, genesis, nil); err != nil {
		return nil, fmt.Errorf("syncengine: rebuild: genesis: %w", err)
	}

	cur := genesisHash
	for cur != forkHash {
		next, ok := e.store.Next(cur)
		if !ok {
			return nil, fmt.Errorf("syncengine: rebuild: broken active chain at %s", cur)
		}
		b, err := e.store.Get(next)
		if err != nil {
			return nil, err
		}
		if _, err := validate.Transactions(fresh, next, b, nil); err != nil {
			return nil, fmt.Errorf("syncengine: rebuild: height %d: %w", b.Height, err)
		}
		cur = next
	}
	return fresh, nil
}

// blockContext assembles validate.BlockContext for a child of parent:
// the parent's own 10th ancestor when parent sits on a retarget
// boundary, and the supplied wall-clock time.
func (e *Engine) blockContext(parent chain.Block, nowMs uint64) validate.BlockContext {
	ctx := validate.BlockContext{NowMs: nowMs}
	if parent.Height != 0 && parent.Height%validate.RetargetInterval == 0 {
		parentHash := chain.BlockHash(parent)
		anc, err := e.store.Ancestor(parentHash, validate.RetargetInterval)
		if err == nil {
			ctx.Ancestor10 = anc
			ctx.HasAncestor10 = true
		}
	}
	return ctx
}

func (e *Engine) reconcileMempool() {
	e.pool.Reconcile(func(in chain.TxInput) bool {
		return e.uset.Has(in)
	})
}

// fetchBlock requests a single block body by hash from peer.
func (e *Engine) fetchBlock(ctx context.Context, peer *p2p.Peer, hash chain.Hash) (chain.Block, error) {
	var resp p2p.BlockBodies
	if err := peer.Request(ctx, p2p.TypeGetBlock, p2p.GetBlockByHashes{Hash: []string{hash.String()}}, &resp); err != nil {
		return chain.Block{}, err
	}
	hexBody, ok := resp[hash.String()]
	if !ok || hexBody == "" {
		return chain.Block{}, fmt.Errorf("syncengine: getblock: %s not found on peer", hash)
	}
	return decodeHexBlock(hexBody)
}

// fetchAncestors requests up to batch ancestors of frontier from peer.
func (e *Engine) fetchAncestors(ctx context.Context, peer *p2p.Peer, frontier chain.Hash, batch int) (p2p.BlockBodies, error) {
	var resp p2p.BlockBodies
	if err := peer.Request(ctx, p2p.TypeGetBlock, p2p.GetBlockByFrontier{Frontier: frontier.String(), Batch: batch}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func decodeHexBlock(hexBody string) (chain.Block, error) {
	raw, err := hex.DecodeString(hexBody)
	if err != nil {
		return chain.Block{}, fmt.Errorf("syncengine: bad hex block body: %w", err)
	}
	return chain.DeserializeBlock(raw)
}
