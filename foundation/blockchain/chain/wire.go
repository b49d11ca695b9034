package chain

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/cryptoadapter"
)

// CodecError wraps any failure decoding a fixed-layout wire value: a
// length mismatch, a malformed prefix, or a declared size that exceeds
// the remaining buffer.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string { return fmt.Sprintf("chain: codec: %s: %s", e.Op, e.Err) }
func (e *CodecError) Unwrap() error { return e.Err }

func codecErr(op string, err error) error { return &CodecError{Op: op, Err: err} }

var errShortBuffer = errors.New("buffer shorter than declared length")

// =============================================================================
// TxInput

// SerializeInput encodes an input as 108 bytes: 32-byte prev txid, a
// big-endian u32 prev index, and a 72-byte zero-padded signature slot.
func SerializeInput(in TxInput) []byte {
	buf := make([]byte, TxInputSize)
	copy(buf[0:32], in.PrevTxID[:])
	binary.BigEndian.PutUint32(buf[32:36], in.PrevIndex)
	if len(in.Signature) > SigSlotSize {
		// Callers are expected to never construct an over-long signature;
		// truncation here would corrupt validation, so this is a bug, not
		// a wire error. Guard by dropping to a fault-visible bounded copy.
		copy(buf[36:36+SigSlotSize], in.Signature[:SigSlotSize])
	} else {
		copy(buf[36:36+len(in.Signature)], in.Signature)
	}
	return buf
}

// deserializeInputSlot reads the fixed 108-byte input and returns the raw
// zero-padded 72-byte signature slot uninterpreted. Callers pick the
// coinbase or signature interpretation of that slot afterward.
func deserializeInputSlot(b []byte) (TxInput, []byte, error) {
	if len(b) < TxInputSize {
		return TxInput{}, nil, codecErr("input", errShortBuffer)
	}

	var in TxInput
	copy(in.PrevTxID[:], b[0:32])
	in.PrevIndex = binary.BigEndian.Uint32(b[32:36])
	slot := append([]byte(nil), b[36:36+SigSlotSize]...)
	return in, slot, nil
}

// DeserializeInput decodes a 108-byte input slice. When coinbase is true,
// the signature slot is interpreted as the miner's message: trailing zero
// bytes are stripped. When false, the slot is interpreted as a DER
// signature: the DER length prefix determines the effective length (2 +
// declared content length); an all-zero slot (an unsigned input) decodes
// to a nil signature.
func DeserializeInput(b []byte, coinbase bool) (TxInput, error) {
	in, slot, err := deserializeInputSlot(b)
	if err != nil {
		return TxInput{}, err
	}

	in.Signature = decodeSigSlot(slot, coinbase)
	return in, nil
}

func decodeSigSlot(slot []byte, coinbase bool) []byte {
	if coinbase {
		end := len(slot)
		for end > 0 && slot[end-1] == 0 {
			end--
		}
		if end == 0 {
			return nil
		}
		return append([]byte(nil), slot[:end]...)
	}

	if isAllZero(slot) {
		return nil
	}

	n := cryptoadapter.DERSignatureLen(slot)
	if n == 0 {
		// Malformed DER header: keep the full slot so verification fails
		// loudly downstream instead of silently truncating.
		return append([]byte(nil), slot...)
	}
	return append([]byte(nil), slot[:n]...)
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// =============================================================================
// TxOutput

// SerializeOutput encodes an output as 73 bytes: an 8-byte big-endian
// amount followed by the 65-byte public key.
func SerializeOutput(out TxOutput) []byte {
	buf := make([]byte, TxOutputSize)
	binary.BigEndian.PutUint64(buf[0:8], out.Amount)
	copy(buf[8:8+PubKeySize], out.PublicKey[:])
	return buf
}

// DeserializeOutput decodes a 73-byte output slice.
func DeserializeOutput(b []byte) (TxOutput, error) {
	if len(b) < TxOutputSize {
		return TxOutput{}, codecErr("output", errShortBuffer)
	}

	var out TxOutput
	out.Amount = binary.BigEndian.Uint64(b[0:8])
	copy(out.PublicKey[:], b[8:8+PubKeySize])
	return out, nil
}

// =============================================================================
// Transaction

// Serialize encodes a full transaction: input_count | output_count |
// inputs | outputs.
func Serialize(tx Transaction) []byte {
	buf := make([]byte, 0, tx.BytesLength())
	var counts [8]byte
	binary.BigEndian.PutUint32(counts[0:4], uint32(len(tx.Inputs)))
	binary.BigEndian.PutUint32(counts[4:8], uint32(len(tx.Outputs)))
	buf = append(buf, counts[:]...)

	for _, in := range tx.Inputs {
		buf = append(buf, SerializeInput(in)...)
	}
	for _, out := range tx.Outputs {
		buf = append(buf, SerializeOutput(out)...)
	}
	return buf
}

// SerializeUnsigned encodes the unsigned form of a transaction used to
// compute its txid: input_count | output_count | (prev_txid|prev_index
// per input, signatures omitted) | outputs. Changing any input's
// signature therefore never changes the txid.
func SerializeUnsigned(tx Transaction) []byte {
	buf := make([]byte, 0, 8+36*len(tx.Inputs)+TxOutputSize*len(tx.Outputs))
	var counts [8]byte
	binary.BigEndian.PutUint32(counts[0:4], uint32(len(tx.Inputs)))
	binary.BigEndian.PutUint32(counts[4:8], uint32(len(tx.Outputs)))
	buf = append(buf, counts[:]...)

	for _, in := range tx.Inputs {
		var idx [4]byte
		binary.BigEndian.PutUint32(idx[:], in.PrevIndex)
		buf = append(buf, in.PrevTxID[:]...)
		buf = append(buf, idx[:]...)
	}
	for _, out := range tx.Outputs {
		buf = append(buf, SerializeOutput(out)...)
	}
	return buf
}

// DeserializeTransaction decodes a single transaction from the front of b.
// When coinbase is true, the sole input's signature slot is decoded as a
// coinbase message rather than a DER signature.
func DeserializeTransaction(b []byte, coinbase bool) (Transaction, error) {
	tx, _, err := deserializeTransactionPrefix(b, coinbase)
	return tx, err
}

// deserializeTransactionPrefix decodes one transaction from the front of b
// and returns how many bytes it consumed, so callers can chain further
// transactions after it.
func deserializeTransactionPrefix(b []byte, coinbase bool) (Transaction, int, error) {
	if len(b) < 8 {
		return Transaction{}, 0, codecErr("transaction header", errShortBuffer)
	}

	inCount := binary.BigEndian.Uint32(b[0:4])
	outCount := binary.BigEndian.Uint32(b[4:8])

	declared := 8 + TxInputSize*int(inCount) + TxOutputSize*int(outCount)
	if declared > len(b) {
		return Transaction{}, 0, codecErr("transaction body", errShortBuffer)
	}

	tx := Transaction{
		Inputs:  make([]TxInput, inCount),
		Outputs: make([]TxOutput, outCount),
	}

	off := 8
	for i := range tx.Inputs {
		coinbaseInput := coinbase && i == 0
		in, err := DeserializeInput(b[off:off+TxInputSize], coinbaseInput)
		if err != nil {
			return Transaction{}, 0, err
		}
		tx.Inputs[i] = in
		off += TxInputSize
	}
	for i := range tx.Outputs {
		out, err := DeserializeOutput(b[off : off+TxOutputSize])
		if err != nil {
			return Transaction{}, 0, err
		}
		tx.Outputs[i] = out
		off += TxOutputSize
	}

	return tx, declared, nil
}

// DeserializeManyTransactions parses back-to-back transactions from b
// until the bytes are exhausted. None of these transactions are treated
// as a coinbase (this is used to decode standalone transaction lists —
// mempool contents and gettx responses — which never carry one).
func DeserializeManyTransactions(b []byte) ([]Transaction, error) {
	var txs []Transaction
	off := 0
	for off < len(b) {
		tx, n, err := deserializeTransactionPrefix(b[off:], false)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
		off += n
	}
	return txs, nil
}

// =============================================================================
// Block

// SerializeBlock encodes a full block: height | timestamp | prev_hash |
// difficulty | nonce | concatenated transactions (coinbase first).
func SerializeBlock(b Block) []byte {
	buf := make([]byte, BlockHeaderMin)
	binary.BigEndian.PutUint64(buf[0:8], b.Height)
	binary.BigEndian.PutUint64(buf[8:16], b.Timestamp)
	copy(buf[16:48], b.PrevHash[:])
	buf[48] = b.Difficulty
	copy(buf[49:81], b.Nonce[:])

	for _, tx := range b.Txs {
		buf = append(buf, Serialize(tx)...)
	}
	return buf
}

// DeserializeBlock decodes a full block from its wire representation.
func DeserializeBlock(b []byte) (Block, error) {
	if len(b) < BlockHeaderMin {
		return Block{}, codecErr("block header", errShortBuffer)
	}

	blk := Block{
		Height:     binary.BigEndian.Uint64(b[0:8]),
		Timestamp:  binary.BigEndian.Uint64(b[8:16]),
		Difficulty: b[48],
	}
	copy(blk.PrevHash[:], b[16:48])
	copy(blk.Nonce[:], b[49:81])

	off := BlockHeaderMin
	first := true
	for off < len(b) {
		tx, n, err := deserializeTransactionPrefix(b[off:], first)
		if err != nil {
			return Block{}, err
		}
		blk.Txs = append(blk.Txs, tx)
		off += n
		first = false
	}

	return blk, nil
}
