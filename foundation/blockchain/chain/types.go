// Package chain defines the block/transaction data model, its exact
// fixed-layout binary serialization, and the transaction-identity and
// coinbase-construction rules that sit directly on top of that layout.
//
// The two concerns are kept in one package, mirroring how the teacher's
// foundation/blockchain/database package combines the block/transaction
// model with the code that turns it into bytes: the wire format and the
// domain type are inseparable here, so splitting them into two packages
// would only add an import for no benefit.
package chain

import (
	"encoding/hex"
	"fmt"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/cryptoadapter"
)

// Fixed sizes dictated by the wire format (§6 of the design).
const (
	HashSize       = 32
	PubKeySize     = cryptoadapter.PublicKeySize
	SigSlotSize    = 72
	NonceSize      = 32
	TxInputSize    = HashSize + 4 + SigSlotSize // 108
	TxOutputSize   = 8 + PubKeySize             // 73
	BlockHeaderMin = 8 + 8 + HashSize + 1 + NonceSize // 81
)

// Hash is a 32-byte SHA-256 digest.
type Hash [HashSize]byte

// ZeroHash is 32 zero bytes, used as the previous-hash of the genesis block.
var ZeroHash Hash

// String renders the hash as lowercase, unpadded hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// HashFromHex parses a 64-character lowercase hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	if len(s) != HashSize*2 {
		return h, fmt.Errorf("chain: bad hash length %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("chain: bad hash hex: %w", err)
	}
	copy(h[:], b)
	return h, nil
}

// PubKey is a 65-byte uncompressed secp256k1 public key.
type PubKey [PubKeySize]byte

// String renders the public key as hex.
func (p PubKey) String() string {
	return hex.EncodeToString(p[:])
}

// IsZero reports whether p has never been set.
func (p PubKey) IsZero() bool {
	return p == PubKey{}
}

// PubKeyFromHex parses a hex-encoded uncompressed public key.
func PubKeyFromHex(s string) (PubKey, error) {
	var p PubKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return p, fmt.Errorf("chain: bad pubkey hex: %w", err)
	}
	if len(b) != PubKeySize {
		return p, fmt.Errorf("chain: bad pubkey length %d", len(b))
	}
	copy(p[:], b)
	return p, nil
}

// TxInput references a previous transaction's output. For a coinbase
// input, PrevIndex carries the block height instead of an output index,
// and Signature carries the miner-chosen coinbase message instead of a
// DER signature — the wire layout is identical either way (§4.A).
type TxInput struct {
	PrevTxID  Hash
	PrevIndex uint32
	Signature []byte // DER signature (unsigned = nil) or coinbase message, unpadded
}

// OutputKey returns the "(txid, index)" string used to key mempool claims
// and UTXO entries.
func OutputKey(txid Hash, index uint32) string {
	return fmt.Sprintf("%s-%d", txid, index)
}

// Key returns the OutputKey this input references.
func (in TxInput) Key() string {
	return OutputKey(in.PrevTxID, in.PrevIndex)
}

// TxOutput locks a value to a single public key.
type TxOutput struct {
	Amount    uint64
	PublicKey PubKey
}

// Transaction is a list of inputs and outputs. The first transaction in
// every block is the coinbase.
type Transaction struct {
	Inputs  []TxInput
	Outputs []TxOutput
}

// OutputValue sums the amount of every output.
func (tx Transaction) OutputValue() uint64 {
	var total uint64
	for _, out := range tx.Outputs {
		total += out.Amount
	}
	return total
}

// BytesLength returns the serialized size of tx per the fixed wire layout:
// 8 bytes of counts, 108 bytes per input, 73 bytes per output.
func (tx Transaction) BytesLength() int {
	return 8 + TxInputSize*len(tx.Inputs) + TxOutputSize*len(tx.Outputs)
}

// IsCoinbase reports whether tx has the shape of a coinbase transaction
// (exactly one input, exactly one output). Full coinbase validation
// (prev_index == height, reward bound) is the validator's job.
func (tx Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && len(tx.Outputs) == 1
}

// Block is a height-ordered batch of transactions, the first of which is
// the coinbase.
type Block struct {
	Height     uint64
	Timestamp  uint64 // milliseconds since epoch
	PrevHash   Hash
	Difficulty uint8
	Nonce      [NonceSize]byte
	Txs        []Transaction
}

// Coinbase returns the block's coinbase transaction.
func (b Block) Coinbase() Transaction {
	return b.Txs[0]
}
