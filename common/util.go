package common

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// HashWithSignPrefix applies the standard signed-message prefix convention
// to a 32-byte digest and returns the keccak256 of the prefixed payload.
// Recoverable shield signatures are always taken over this prefixed hash.
func HashWithSignPrefix(hash []byte) []byte {
	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(hash))
	return crypto.Keccak256([]byte(msg), hash)
}

// TaggedHash computes the BIP-340 style tagged hash
// sha256(sha256(tag) || sha256(tag) || chunks...).
func TaggedHash(tag string, chunks ...[]byte) []byte {
	tagHash := sha256.Sum256([]byte(tag))
	h := sha256.New()
	h.Write(tagHash[:])
	h.Write(tagHash[:])
	for _, c := range chunks {
		h.Write(c)
	}
	return h.Sum(nil)
}

// BigToBytes32 left-pads the big-endian encoding of v to 32 bytes.
// Values wider than 32 bytes are truncated to their low 32 bytes.
func BigToBytes32(v *big.Int) []byte {
	var out [32]byte
	b := v.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out[:]
}
