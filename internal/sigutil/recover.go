package sigutil

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the byte length of a recoverable signature: r ‖ s ‖ v.
const SignatureLength = 65

// RecoverSigner recovers the signer address from a 65-byte recoverable
// signature over messageHash. The hash must already carry the signed-message
// prefix convention. The s component has to sit in the lower half of the
// group order and the recovery id has to be 0/1 (27/28 are normalized).
func RecoverSigner(messageHash []byte, signature []byte) (common.Address, error) {
	if len(messageHash) != 32 {
		return common.Address{}, fmt.Errorf("invalid message hash length: %d", len(messageHash))
	}
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:64])
	v := signature[64]
	if v == 27 || v == 28 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id: %d", signature[64])
	}
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return common.Address{}, fmt.Errorf("signature values out of range")
	}

	sig := make([]byte, SignatureLength)
	copy(sig, signature[:64])
	sig[64] = v
	pub, err := crypto.SigToPub(messageHash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("fail to recover public key, err: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verifier adapts the package functions to a replaceable verifier
// reference, the form the vault holds it in.
type Verifier struct{}

func (Verifier) RecoverSigner(messageHash, signature []byte) (common.Address, error) {
	return RecoverSigner(messageHash, signature)
}

// RecoverAddress is the raw recovery primitive: it runs ecrecover on the
// given (hash, v, r, s) quadruple with no malleability checks and returns
// the address of the recovered point. The threshold verifier feeds it
// crafted non-signature inputs to perform curve arithmetic.
func RecoverAddress(hash []byte, v byte, r, s *big.Int) (common.Address, error) {
	if len(hash) != 32 {
		return common.Address{}, fmt.Errorf("invalid hash length: %d", len(hash))
	}
	sig := make([]byte, SignatureLength)
	rb := r.Bytes()
	sb := s.Bytes()
	if len(rb) > 32 || len(sb) > 32 {
		return common.Address{}, fmt.Errorf("r/s values out of range")
	}
	copy(sig[32-len(rb):32], rb)
	copy(sig[64-len(sb):64], sb)
	sig[64] = v
	pubBytes, err := crypto.Ecrecover(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("fail to recover point, err: %w", err)
	}
	return common.BytesToAddress(crypto.Keccak256(pubBytes[1:])[12:]), nil
}
