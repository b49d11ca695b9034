package chain

import "github.com/naivecoin-go/naivecoin/foundation/blockchain/cryptoadapter"

// BlockHash computes the block hash: SHA-256 over the entire serialized block,
// including the nonce and every transaction's bytes.
func BlockHash(b Block) Hash {
	return Hash(cryptoadapter.Sha256(SerializeBlock(b)))
}

// IsHashSolved reports whether hash has at least difficulty leading zero
// bits, read most-significant-bit first over the 32-byte digest.
func IsHashSolved(difficulty uint8, hash Hash) bool {
	fullBytes := int(difficulty) / 8
	remBits := int(difficulty) % 8

	for i := 0; i < fullBytes; i++ {
		if hash[i] != 0 {
			return false
		}
	}
	if remBits == 0 {
		return true
	}
	mask := byte(0xFF << (8 - remBits))
	return hash[fullBytes]&mask == 0
}

// LeadingZeroBits returns the number of leading zero bits in hash,
// capped at 256. Useful for diagnostics and tests.
func LeadingZeroBits(hash Hash) int {
	count := 0
	for _, b := range hash {
		if b == 0 {
			count += 8
			continue
		}
		for bit := 7; bit >= 0; bit-- {
			if b&(1<<uint(bit)) != 0 {
				return count
			}
			count++
		}
	}
	return count
}

// Work returns the proof-of-work "work" a block of the given difficulty
// represents: 2^difficulty, saturating at the largest uint64 for
// difficulty 64 and above.
func Work(difficulty uint8) uint64 {
	if difficulty >= 64 {
		return ^uint64(0)
	}
	return uint64(1) << difficulty
}
