// Package validate implements every consensus rule a block or
// transaction must satisfy before it is accepted: difficulty
// retargeting, median-time-past, block and transaction validity, and
// cumulative-work comparison for reorg decisions. Its logging style —
// an evHandler callback threaded through each check, one call per rule
// — follows the teacher's foundation/blockchain/database ValidateBlock,
// generalized from an account-balance chain's rules to a UTXO chain's.
package validate

import (
	"errors"
	"fmt"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chainstore"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/cryptoadapter"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/utxo"
)

// Tunable consensus constants (§6 of the design).
const (
	RetargetInterval   = 10
	TargetBlockTimeMs  = 10_000
	ExpectedTimespanMs = TargetBlockTimeMs * RetargetInterval
	MTPWindow          = 11
	MaxFutureDriftMs   = 120_000
	// MaxDifficulty is 255, not the 256 the design doc names: difficulty
	// is a one-byte field on the wire (§3), so 256 is unrepresentable and
	// the type's own ceiling governs in practice.
	MaxDifficulty = 255
	MinDifficulty = 1
)

// Error kinds. Each maps to one of spec.md's named error categories;
// wrapping with fmt.Errorf("%w: ...", ErrX) lets callers use errors.Is.
var (
	ErrProof       = errors.New("validate: proof of work not satisfied")
	ErrContinuity  = errors.New("validate: chain continuity violation")
	ErrCapacity    = errors.New("validate: block exceeds max bytes")
	ErrTx          = errors.New("validate: invalid transaction")
	ErrCoinbase    = errors.New("validate: invalid coinbase")
	ErrReorg       = errors.New("validate: insufficient cumulative work")
	ErrMissingIn   = errors.New("validate: missing input")
)

// EventHandler receives one formatted line per validation step, the
// same shape as the teacher's evHandler func(v string, args ...any).
type EventHandler func(format string, args ...any)

func noop(string, ...any) {}

// ExpectedDifficulty computes the difficulty a child of parent must
// declare, per §4.F.1. ancestor10 must be the 10th ancestor of parent
// (i.e. store.Ancestor(parentHash, 10)); callers only need to supply it
// when parent.Height is a retarget boundary.
func ExpectedDifficulty(parent chain.Block, ancestor10 chain.Block, haveAncestor10 bool) uint8 {
	if parent.Height == 0 || parent.Height%RetargetInterval != 0 || !haveAncestor10 {
		return parent.Difficulty
	}

	duration := int64(parent.Timestamp) - int64(ancestor10.Timestamp)

	switch {
	case duration < ExpectedTimespanMs/2:
		if parent.Difficulty >= MaxDifficulty {
			return MaxDifficulty
		}
		return parent.Difficulty + 1
	case duration > ExpectedTimespanMs*2:
		if parent.Difficulty <= MinDifficulty {
			return MinDifficulty
		}
		return parent.Difficulty - 1
	default:
		return parent.Difficulty
	}
}

// MTP returns the median-time-past of block: the timestamp of its 5th
// ancestor, the middle of an inclusive 11-block window.
func MTP(store *chainstore.Store, blockHash chain.Hash) (uint64, error) {
	const back = MTPWindow / 2
	b, err := store.Ancestor(blockHash, back)
	if err != nil {
		return 0, err
	}
	return b.Timestamp, nil
}

// Work returns 2^difficulty (saturating for difficulty >= 64), the
// proof-of-work "work" of a block.
func Work(difficulty uint8) uint64 {
	return chain.Work(difficulty)
}

// CumulativeWork sums Work(difficulty) over a slice of blocks.
func CumulativeWork(blocks []chain.Block) uint64 {
	var total uint64
	for _, b := range blocks {
		total += Work(b.Difficulty)
	}
	return total
}

// PreferIncoming reports whether an incoming segment with the given
// cumulative work should replace a local segment with the given
// cumulative work, per §4.F.5 (ties favor incoming).
func PreferIncoming(incoming, local uint64) bool {
	return incoming >= local
}

// BlockContext carries everything Block needs beyond the two blocks
// themselves: the parent's own 10th ancestor (for retargeting) and the
// current wall-clock time in milliseconds.
type BlockContext struct {
	Ancestor10   chain.Block
	HasAncestor10 bool
	NowMs        uint64
}

// Block validates that b may be connected directly after parent, per
// §4.F.3. It also rechecks that parent satisfies its own proof.
func Block(store *chainstore.Store, parent, b chain.Block, ctx BlockContext, ev EventHandler) error {
	if ev == nil {
		ev = noop
	}

	ev("validate: block[%d]: check: height follows parent", b.Height)
	if b.Height != parent.Height+1 {
		return fmt.Errorf("%w: height %d, want %d", ErrContinuity, b.Height, parent.Height+1)
	}

	ev("validate: block[%d]: check: prev_hash matches parent", b.Height)
	if b.PrevHash != chain.BlockHash(parent) {
		return fmt.Errorf("%w: prev_hash mismatch", ErrContinuity)
	}

	ev("validate: block[%d]: check: timestamp >= MTP(parent)", b.Height)
	mtp, err := MTP(store, chain.BlockHash(parent))
	if err != nil {
		return fmt.Errorf("%w: cannot compute MTP: %v", ErrContinuity, err)
	}
	if b.Timestamp < mtp {
		return fmt.Errorf("%w: timestamp %d before MTP %d", ErrContinuity, b.Timestamp, mtp)
	}

	ev("validate: block[%d]: check: timestamp within future drift", b.Height)
	if b.Timestamp > ctx.NowMs+MaxFutureDriftMs {
		return fmt.Errorf("%w: timestamp %d too far in the future", ErrContinuity, b.Timestamp)
	}

	ev("validate: block[%d]: check: declared difficulty matches expected", b.Height)
	expected := ExpectedDifficulty(parent, ctx.Ancestor10, ctx.HasAncestor10)
	if b.Difficulty != expected {
		return fmt.Errorf("%w: difficulty %d, want %d", ErrContinuity, b.Difficulty, expected)
	}

	ev("validate: block[%d]: check: parent's own proof is solved", b.Height)
	if !chain.IsHashSolved(parent.Difficulty, chain.BlockHash(parent)) {
		return fmt.Errorf("%w: parent proof invalid", ErrProof)
	}

	ev("validate: block[%d]: check: proof of work solved", b.Height)
	if !chain.IsHashSolved(b.Difficulty, chain.BlockHash(b)) {
		return fmt.Errorf("%w: block hash does not satisfy difficulty %d", ErrProof, b.Difficulty)
	}

	ev("validate: block[%d]: check: total tx bytes within capacity", b.Height)
	if totalTxBytes(b) > maxBlockBytes {
		return fmt.Errorf("%w: %d bytes exceeds max %d", ErrCapacity, totalTxBytes(b), maxBlockBytes)
	}

	return nil
}

// maxBlockBytes is the default from §6; the node wires the configured
// value in through SetMaxBlockBytes at startup.
var maxBlockBytes = 10_240

// SetMaxBlockBytes overrides the configured cap on total transaction
// bytes per block.
func SetMaxBlockBytes(n int) {
	maxBlockBytes = n
}

// MaxBlockBytes returns the currently configured cap.
func MaxBlockBytes() int {
	return maxBlockBytes
}

func totalTxBytes(b chain.Block) int {
	total := 0
	for _, tx := range b.Txs {
		total += tx.BytesLength()
	}
	return total
}

// Transactions validates every transaction in b against snapshot u, in
// block order, applying each to u as it passes (§4.F.4). u is mutated
// in place; callers pass a Copy() when speculative validation must not
// touch the live tip set. Returns the total fees collected.
func Transactions(u *utxo.Set, blockHash chain.Hash, b chain.Block, ev EventHandler) (uint64, error) {
	if ev == nil {
		ev = noop
	}

	if len(b.Txs) == 0 {
		return 0, fmt.Errorf("%w: block has no coinbase", ErrCoinbase)
	}

	var totalFees uint64
	for i, tx := range b.Txs[1:] {
		ev("validate: block[%d]: tx[%d]: check", b.Height, i+1)
		fee, err := transaction(u, blockHash, tx, ev)
		if err != nil {
			return 0, err
		}
		totalFees += fee
	}

	ev("validate: block[%d]: check: coinbase shape and reward", b.Height)
	if err := coinbase(u, blockHash, b, totalFees); err != nil {
		return 0, err
	}

	return totalFees, nil
}

func transaction(u *utxo.Set, blockHash chain.Hash, tx chain.Transaction, ev EventHandler) (uint64, error) {
	txid := chain.TxID(tx)

	var sumIn, sumOut uint64
	resolved := make([]utxo.Entry, len(tx.Inputs))
	for i, in := range tx.Inputs {
		e, ok := u.Get(in)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingIn, in.Key())
		}
		resolved[i] = e
		sumIn += e.Output.Amount
	}
	sumOut = tx.OutputValue()

	if sumIn < sumOut {
		return 0, fmt.Errorf("%w: sum_in %d < sum_out %d", ErrTx, sumIn, sumOut)
	}

	for i, in := range tx.Inputs {
		if len(in.Signature) == 0 {
			return 0, fmt.Errorf("%w: unsigned input %d", ErrTx, i)
		}
		if !cryptoadapter.Verify(txid[:], in.Signature, resolved[i].Output.PublicKey[:]) {
			return 0, fmt.Errorf("%w: bad signature on input %d", ErrTx, i)
		}
	}

	fee := sumIn - sumOut
	minFee := uint64(tx.BytesLength()) * chain.MinFeeRatePerByte
	if fee < minFee {
		return 0, fmt.Errorf("%w: fee %d below minimum %d", ErrTx, fee, minFee)
	}

	u.ApplyTransaction(blockHash, tx)
	return fee, nil
}

func coinbase(u *utxo.Set, blockHash chain.Hash, b chain.Block, fees uint64) error {
	cb := b.Coinbase()
	if len(cb.Inputs) != 1 || len(cb.Outputs) != 1 {
		return fmt.Errorf("%w: wrong shape", ErrCoinbase)
	}
	if cb.Inputs[0].PrevIndex != uint32(b.Height) {
		return fmt.Errorf("%w: prev_index %d != height %d", ErrCoinbase, cb.Inputs[0].PrevIndex, b.Height)
	}

	maxReward := chain.Subsidy(b.Height) + fees
	if cb.Outputs[0].Amount > maxReward {
		return fmt.Errorf("%w: reward %d exceeds subsidy+fees %d", ErrCoinbase, cb.Outputs[0].Amount, maxReward)
	}

	u.ApplyTransaction(blockHash, cb)
	return nil
}
