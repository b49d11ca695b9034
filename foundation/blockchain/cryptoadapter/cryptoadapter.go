// Package cryptoadapter wraps the cryptographic primitives the rest of the
// blockchain packages consume as black boxes: SHA-256 hashing, secp256k1
// key generation, and DER-encoded ECDSA sign/verify. Nothing above this
// package parses key material or signatures beyond the DER length prefix.
package cryptoadapter

import (
	"crypto/sha256"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// PublicKeySize is the length in bytes of an uncompressed secp256k1 public
// key (a leading 0x04 marker byte followed by the X and Y coordinates).
const PublicKeySize = 65

// MaxSignatureSize is the maximum length in bytes of a DER-encoded ECDSA
// signature produced by this package. Callers pad to this size on the wire.
const MaxSignatureSize = 72

// ErrInvalidPublicKey is returned when a byte slice does not decode to a
// valid uncompressed secp256k1 point.
var ErrInvalidPublicKey = errors.New("cryptoadapter: invalid public key")

// ErrInvalidPrivateKey is returned when a byte slice does not decode to a
// valid secp256k1 scalar.
var ErrInvalidPrivateKey = errors.New("cryptoadapter: invalid private key")

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GeneratePrivateKey creates a new random private key using a
// cryptographically secure source of randomness.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes reconstructs a private key from its 32-byte scalar
// representation.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, ErrInvalidPrivateKey
	}

	key := secp256k1.PrivKeyFromBytes(b)
	if key == nil {
		return nil, ErrInvalidPrivateKey
	}

	return &PrivateKey{key: key}, nil
}

// Bytes returns the 32-byte scalar representation of the private key.
func (p *PrivateKey) Bytes() []byte {
	return p.key.Serialize()
}

// PublicKey returns the 65-byte uncompressed public key that corresponds
// to this private key.
func (p *PrivateKey) PublicKey() [PublicKeySize]byte {
	var out [PublicKeySize]byte
	copy(out[:], p.key.PubKey().SerializeUncompressed())
	return out
}

// Sign produces a DER-encoded ECDSA signature over msg. The DER encoding
// is at most MaxSignatureSize bytes; callers zero-pad to that width on the
// wire (see the chain package's serialization).
func Sign(msg []byte, priv *PrivateKey) []byte {
	sig := ecdsa.Sign(priv.key, msg)
	return sig.Serialize()
}

// Verify checks a DER-encoded ECDSA signature over msg against a 65-byte
// uncompressed public key. Signature bytes beyond the DER-declared length
// (i.e. wire padding) are ignored by the caller before this is invoked.
func Verify(msg, sig, pubKey []byte) bool {
	if len(pubKey) != PublicKeySize {
		return false
	}

	pk, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false
	}

	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}

	return parsed.Verify(msg, pk)
}

// PublicKeyBytesValid reports whether b is a well-formed uncompressed
// secp256k1 public key.
func PublicKeyBytesValid(b []byte) bool {
	if len(b) != PublicKeySize {
		return false
	}
	_, err := secp256k1.ParsePubKey(b)
	return err == nil
}

// Sha256 hashes data with SHA-256, the hash function used throughout the
// codec and validator for txids and block hashes.
func Sha256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// DERSignatureLen returns the effective (unpadded) length of a DER-encoded
// signature by reading its length prefix, per the wire format: byte 0 is
// the SEQUENCE tag (0x30), byte 1 is the declared content length, and the
// effective encoding is 2 + that length. Returns 0 if buf is too short or
// malformed to contain a length prefix.
func DERSignatureLen(buf []byte) int {
	if len(buf) < 2 {
		return 0
	}
	n := 2 + int(buf[1])
	if n > len(buf) {
		return 0
	}
	return n
}
