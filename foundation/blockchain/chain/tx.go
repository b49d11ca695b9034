package chain

import "github.com/naivecoin-go/naivecoin/foundation/blockchain/cryptoadapter"

// TxID computes the transaction's identity: SHA-256 over its unsigned
// serialization. Because the unsigned form omits every input's signature,
// changing a signature never changes the txid — signing is defined over
// the txid itself, not the other way around.
func TxID(tx Transaction) Hash {
	return Hash(cryptoadapter.Sha256(SerializeUnsigned(tx)))
}

// BuildCoinbase constructs the required shape for a block's first
// transaction: one input whose PrevIndex carries the block height and
// whose signature slot carries the miner's message, and one output
// crediting toPubKey with reward.
func BuildCoinbase(toPubKey PubKey, reward uint64, height uint64, message string) Transaction {
	msg := []byte(message)
	if len(msg) > SigSlotSize {
		msg = msg[:SigSlotSize]
	}

	return Transaction{
		Inputs: []TxInput{
			{
				PrevTxID:  ZeroHash,
				PrevIndex: uint32(height),
				Signature: msg,
			},
		},
		Outputs: []TxOutput{
			{Amount: reward, PublicKey: toPubKey},
		},
	}
}

// CoinbaseMessage extracts the miner-chosen message from a coinbase
// transaction's sole input, decoded as UTF-8.
func CoinbaseMessage(tx Transaction) string {
	if !tx.IsCoinbase() {
		return ""
	}
	return string(tx.Inputs[0].Signature)
}

const (
	// InitialSubsidy is the coinbase reward paid at height 0.
	InitialSubsidy uint64 = 5_000_000_000
	// HalvingInterval is the number of blocks between subsidy halvings.
	HalvingInterval uint64 = 210_000
	// MinFeeRatePerByte is the minimum fee, in sats per serialized byte,
	// a non-coinbase transaction must pay.
	MinFeeRatePerByte uint64 = 1
)

// Subsidy returns the block reward for the block at height h:
// floor(InitialSubsidy / 2^floor(h/HalvingInterval)).
func Subsidy(height uint64) uint64 {
	halvings := height / HalvingInterval
	if halvings >= 64 {
		return 0
	}
	return InitialSubsidy >> halvings
}
