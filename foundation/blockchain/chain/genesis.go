package chain

import "github.com/naivecoin-go/naivecoin/foundation/blockchain/cryptoadapter"

// GenesisTimestamp is the fixed timestamp (milliseconds since epoch) of
// the genesis block for this parameter set.
const GenesisTimestamp uint64 = 1_749_376_247_272

// GenesisDifficulty is the fixed starting difficulty.
const GenesisDifficulty uint8 = 1

// GenesisMessage is the coinbase message embedded in the genesis block,
// a nod to the same convention Bitcoin's own genesis block used.
const GenesisMessage = "The Times 03/Jan/2009 Chancellor on brink of second bailout for banks"

// genesisSeed is a fixed 32-byte scalar used only to derive a valid
// secp256k1 point to credit with the genesis subsidy. It is a constant
// chosen once for this parameter set, not a wallet used anywhere else.
var genesisSeed = [32]byte{
	0x8f, 0x9c, 0x1a, 0x2b, 0x3d, 0x4e, 0x5f, 0x60,
	0x71, 0x82, 0x93, 0xa4, 0xb5, 0xc6, 0xd7, 0xe8,
	0xf9, 0x0a, 0x1b, 0x2c, 0x3d, 0x4e, 0x5f, 0x60,
	0x71, 0x82, 0x93, 0xa4, 0xb5, 0xc6, 0xd7, 0xe8,
}

var genesisPubKey = derivedGenesisPubKey()

func derivedGenesisPubKey() PubKey {
	priv, err := cryptoadapter.PrivateKeyFromBytes(genesisSeed[:])
	if err != nil {
		panic(err)
	}
	return PubKey(priv.PublicKey())
}

// genesisBlock is computed once, deterministically, by searching upward
// from nonce zero for the first value that satisfies GenesisDifficulty.
// This reproduces a "specified nonce" without hand-computing a SHA-256
// preimage: the search is a pure function of the fixed inputs above, so
// every build of this package produces byte-identical genesis blocks and
// therefore an identical genesis hash. See DESIGN.md for why this
// approach was chosen over a literal hardcoded nonce constant.
var genesisBlock = computeGenesisBlock()

func computeGenesisBlock() Block {
	coinbase := BuildCoinbase(genesisPubKey, InitialSubsidy, 0, GenesisMessage)

	b := Block{
		Height:     0,
		Timestamp:  GenesisTimestamp,
		PrevHash:   ZeroHash,
		Difficulty: GenesisDifficulty,
		Txs:        []Transaction{coinbase},
	}

	for nonce := uint64(0); ; nonce++ {
		putCounterNonce(&b.Nonce, nonce)
		if IsHashSolved(b.Difficulty, BlockHash(b)) {
			return b
		}
	}
}

// putCounterNonce writes a 64-bit counter into the low 8 bytes of the
// 32-byte nonce field, leaving the high 24 bytes zero. The miner (§4.H)
// instead fills the whole 32 bytes with randomness; genesis construction
// only needs a deterministic, exhaustible search space.
func putCounterNonce(nonce *[NonceSize]byte, v uint64) {
	for i := 0; i < 8; i++ {
		nonce[NonceSize-1-i] = byte(v >> (8 * i))
	}
}

// Genesis returns the fixed genesis block for this parameter set.
func Genesis() Block {
	return genesisBlock
}

// GenesisHash returns the fixed genesis block's hash.
func GenesisHash() Hash {
	return BlockHash(genesisBlock)
}
