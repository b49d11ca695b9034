package syncengine

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/cryptoadapter"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/p2p"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/validate"
)

// ingestTxInv implements §4.J.2: filter to unknown ids, fetch bodies,
// validate and insert each, then rebroadcast only the ones accepted.
func (e *Engine) ingestTxInv(sess *p2p.Session, inv p2p.TxInv) {
	peer := sess.Peer()

	var unknown []string
	for _, idHex := range inv.TxIDs {
		id, err := chain.HashFromHex(idHex)
		if err != nil {
			continue
		}
		if !e.pool.Has(id) {
			unknown = append(unknown, idHex)
		}
	}
	if len(unknown) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p2p.RequestTimeout)
	defer cancel()

	var resp p2p.Txs
	if err := peer.Request(ctx, p2p.TypeGetTx, p2p.GetTx{TxIDs: unknown}, &resp); err != nil {
		e.log.Debugw("syncengine: txinv: gettx failed", "error", err)
		return
	}

	var valid []string
	for _, hexTx := range resp.Txs {
		raw, err := hex.DecodeString(hexTx)
		if err != nil {
			continue
		}
		tx, err := chain.DeserializeTransaction(raw, false)
		if err != nil {
			e.log.Debugw("syncengine: txinv: bad tx encoding", "error", err)
			continue
		}
		if _, err := e.acceptTransaction(tx); err != nil {
			e.log.Debugw("syncengine: txinv: rejected", "error", err)
			continue
		}
		valid = append(valid, chain.TxID(tx).String())
	}

	if len(valid) > 0 && e.hub != nil {
		e.hub.Broadcast(p2p.TypeTxInv, p2p.TxInv{TxIDs: valid})
	}
}

// acceptTransaction implements §4.J.2 steps 1-4 against the live UTXO
// set and mempool. Callers running outside the task queue must route
// through SubmitTransaction instead of calling this directly.
func (e *Engine) acceptTransaction(tx chain.Transaction) (uint64, error) {
	var sumIn uint64
	for _, in := range tx.Inputs {
		entry, ok := e.uset.Get(in)
		if !ok {
			return 0, fmt.Errorf("%w: %s", validate.ErrMissingIn, in.Key())
		}
		if e.pool.HasClaim(in) {
			return 0, fmt.Errorf("%w: input already claimed by mempool", validate.ErrTx)
		}
		sumIn += entry.Output.Amount
	}

	sumOut := tx.OutputValue()
	if sumIn < sumOut {
		return 0, fmt.Errorf("%w: sum_in %d < sum_out %d", validate.ErrTx, sumIn, sumOut)
	}

	txid := chain.TxID(tx)
	for i, in := range tx.Inputs {
		if len(in.Signature) == 0 {
			return 0, fmt.Errorf("%w: unsigned input %d", validate.ErrTx, i)
		}
		entry, _ := e.uset.Get(in)
		if !cryptoadapter.Verify(txid[:], in.Signature, entry.Output.PublicKey[:]) {
			return 0, fmt.Errorf("%w: bad signature on input %d", validate.ErrTx, i)
		}
	}

	fee := sumIn - sumOut
	minFee := uint64(tx.BytesLength()) * chain.MinFeeRatePerByte
	if fee < minFee {
		return 0, fmt.Errorf("%w: fee %d below minimum %d", validate.ErrTx, fee, minFee)
	}

	e.pool.Add(tx, fee)
	return fee, nil
}

// SubmitTransaction validates and queues a locally originated
// transaction (the wallet-facing send operation), then gossips its id
// to peers on success.
func (e *Engine) SubmitTransaction(tx chain.Transaction) (chain.Hash, error) {
	errc := make(chan error, 1)
	e.enqueue(func() {
		_, err := e.acceptTransaction(tx)
		errc <- err
	})
	if err := <-errc; err != nil {
		return chain.Hash{}, err
	}

	txid := chain.TxID(tx)
	if e.hub != nil {
		e.hub.Broadcast(p2p.TypeTxInv, p2p.TxInv{TxIDs: []string{txid.String()}})
	}
	return txid, nil
}

// =============================================================================
// Responder logic (§4.J.3)

func (e *Engine) respondGetBlock(sess *p2p.Session, data json.RawMessage) {
	var req struct {
		Hash     []string `json:"hash"`
		Frontier string   `json:"frontier"`
		Batch    int      `json:"batch"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		e.log.Debugw("syncengine: getblock: bad request", "error", err)
		return
	}

	bodies := make(p2p.BlockBodies)

	switch {
	case len(req.Hash) > 0:
		for _, hexHash := range req.Hash {
			h, err := chain.HashFromHex(hexHash)
			if err != nil {
				bodies[hexHash] = ""
				continue
			}
			b, err := e.store.Get(h)
			if err != nil {
				bodies[hexHash] = ""
				continue
			}
			bodies[hexHash] = hex.EncodeToString(chain.SerializeBlock(b))
		}

	case req.Frontier != "":
		frontier, err := chain.HashFromHex(req.Frontier)
		if err != nil {
			e.log.Debugw("syncengine: getblock: bad frontier", "error", err)
			sess.Respond(bodies)
			return
		}
		batch := req.Batch
		if batch <= 0 {
			batch = 1
		}
		cur, err := e.store.Get(frontier)
		if err == nil {
			for i := 0; i < batch && cur.Height > 0; i++ {
				parent, err := e.store.Get(cur.PrevHash)
				if err != nil {
					break
				}
				bodies[chain.BlockHash(parent).String()] = hex.EncodeToString(chain.SerializeBlock(parent))
				cur = parent
			}
		}
	}

	sess.Respond(bodies)
}

func (e *Engine) respondGetTx(sess *p2p.Session, data json.RawMessage) {
	var req p2p.GetTx
	json.Unmarshal(data, &req)

	ids := req.TxIDs
	if len(ids) == 0 {
		for _, id := range e.pool.TxIDs() {
			ids = append(ids, id.String())
		}
	}

	var out []string
	for _, idHex := range ids {
		id, err := chain.HashFromHex(idHex)
		if err != nil {
			continue
		}
		entry, ok := e.pool.Get(id)
		if !ok {
			continue
		}
		out = append(out, hex.EncodeToString(chain.Serialize(entry.Tx)))
	}

	sess.Respond(p2p.Txs{Txs: out})
}
