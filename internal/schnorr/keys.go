package schnorr

import (
	"crypto/rand"
	"fmt"
	"math/big"

	gcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/frostvault/frostvault/common"
)

// PrivateKey is a single aggregate scalar together with its public point.
// Production signatures come out of the off-chain threshold ceremony; this
// type exists so operators and tests can produce wire-identical signatures
// from one scalar.
type PrivateKey struct {
	D      *big.Int
	Public PublicKey
}

// GenerateKey draws a scalar whose public point satisfies the half-order
// bound the verifiers enforce.
func GenerateKey() (*PrivateKey, error) {
	for {
		d, err := randScalar()
		if err != nil {
			return nil, err
		}
		x, y := crypto.S256().ScalarBaseMult(d.Bytes())
		if x.Cmp(HalfQ) >= 0 {
			continue
		}
		parity := byte(2)
		if y.Bit(0) == 1 {
			parity = 3
		}
		return &PrivateKey{
			D:      d,
			Public: PublicKey{Parity: parity, X: x},
		}, nil
	}
}

// SignClassic produces a classic-convention signature over messageHash.
func (k *PrivateKey) SignClassic(messageHash []byte) (Signature, error) {
	if len(messageHash) != 32 {
		return Signature{}, fmt.Errorf("invalid message hash length: %d", len(messageHash))
	}
	for {
		nonce, err := randScalar()
		if err != nil {
			return Signature{}, err
		}
		rx, ry := crypto.S256().ScalarBaseMult(nonce.Bytes())
		e := ChallengeClassic(pointAddress(rx, ry), k.Public, messageHash)
		s := new(big.Int).Mul(e, k.D)
		s.Sub(nonce, s)
		s.Mod(s, Q)
		if e.Sign() == 0 || s.Sign() == 0 {
			continue
		}
		return Signature{E: e, S: s}, nil
	}
}

// SignTagged produces a tagged-convention signature over messageHash,
// including the nonce address the verifier matches against.
func (k *PrivateKey) SignTagged(messageHash []byte) (Signature, error) {
	if len(messageHash) != 32 {
		return Signature{}, fmt.Errorf("invalid message hash length: %d", len(messageHash))
	}
	for {
		nonce, err := randScalar()
		if err != nil {
			return Signature{}, err
		}
		rx, ry := crypto.S256().ScalarBaseMult(nonce.Bytes())
		if rx.Sign() == 0 || rx.Cmp(Q) >= 0 {
			continue
		}
		e := ChallengeTagged(rx, k.Public, messageHash)
		s := new(big.Int).Mul(e, k.D)
		s.Add(s, nonce)
		s.Mod(s, Q)
		if e.Sign() == 0 || s.Sign() == 0 {
			continue
		}
		return Signature{E: rx, S: s, NonceAddress: pointAddress(rx, ry)}, nil
	}
}

func pointAddress(x, y *big.Int) gcommon.Address {
	h := crypto.Keccak256(common.BigToBytes32(x), common.BigToBytes32(y))
	return gcommon.BytesToAddress(h[12:])
}

func randScalar() (*big.Int, error) {
	for {
		d, err := rand.Int(rand.Reader, Q)
		if err != nil {
			return nil, fmt.Errorf("fail to draw random scalar, err: %w", err)
		}
		if d.Sign() != 0 {
			return d, nil
		}
	}
}
