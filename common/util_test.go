package common

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestHashWithSignPrefix(t *testing.T) {
	digest := crypto.Keccak256([]byte("withdrawal"))
	prefixed := HashWithSignPrefix(digest)
	if len(prefixed) != 32 {
		t.Fatalf("prefixed hash length: %d, expected 32", len(prefixed))
	}
	if bytes.Equal(prefixed, digest) {
		t.Fatal("prefixed hash must differ from the raw digest")
	}
	// prefixing is deterministic
	if !bytes.Equal(prefixed, HashWithSignPrefix(digest)) {
		t.Fatal("prefixed hash is not deterministic")
	}
}

func TestTaggedHash(t *testing.T) {
	a := TaggedHash("BIP0340/challenge", []byte("one"), []byte("two"))
	b := TaggedHash("BIP0340/challenge", []byte("onetwo"))
	if len(a) != 32 {
		t.Fatalf("tagged hash length: %d, expected 32", len(a))
	}
	// chunk boundaries must not matter, only the concatenation
	if !bytes.Equal(a, b) {
		t.Fatal("tagged hash should depend on concatenated payload only")
	}
	c := TaggedHash("other/tag", []byte("onetwo"))
	if bytes.Equal(a, c) {
		t.Fatal("different tags must produce different hashes")
	}
}

func TestBigToBytes32(t *testing.T) {
	v := big.NewInt(0x1234)
	out := BigToBytes32(v)
	if len(out) != 32 {
		t.Fatalf("length: %d, expected 32", len(out))
	}
	if out[30] != 0x12 || out[31] != 0x34 {
		t.Fatalf("unexpected encoding: %x", out)
	}
	if out[0] != 0 {
		t.Fatal("expected left padding")
	}
}
