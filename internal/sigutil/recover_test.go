package sigutil

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostvault/frostvault/common"
)

func TestRecoverSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	digest := crypto.Keccak256([]byte("withdrawal request"))
	prefixed := common.HashWithSignPrefix(digest)
	sig, err := crypto.Sign(prefixed, key)
	require.NoError(t, err)

	recovered, err := RecoverSigner(prefixed, sig)
	require.NoError(t, err)
	assert.Equal(t, signer, recovered)

	// legacy 27/28 recovery ids are accepted
	legacy := make([]byte, len(sig))
	copy(legacy, sig)
	legacy[64] += 27
	recovered, err = RecoverSigner(prefixed, legacy)
	require.NoError(t, err)
	assert.Equal(t, signer, recovered)
}

func TestRecoverSignerTamper(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	prefixed := common.HashWithSignPrefix(crypto.Keccak256([]byte("payload")))
	sig, err := crypto.Sign(prefixed, key)
	require.NoError(t, err)

	tampered := make([]byte, len(sig))
	copy(tampered, sig)
	tampered[3] ^= 0x01
	recovered, err := RecoverSigner(prefixed, tampered)
	if err == nil {
		assert.NotEqual(t, signer, recovered)
	}

	otherHash := common.HashWithSignPrefix(crypto.Keccak256([]byte("other payload")))
	recovered, err = RecoverSigner(otherHash, sig)
	if err == nil {
		assert.NotEqual(t, signer, recovered)
	}
}

func TestRecoverSignerMalformed(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	prefixed := common.HashWithSignPrefix(crypto.Keccak256([]byte("payload")))
	sig, err := crypto.Sign(prefixed, key)
	require.NoError(t, err)

	_, err = RecoverSigner(prefixed, sig[:64])
	assert.Error(t, err)

	_, err = RecoverSigner(prefixed[:31], sig)
	assert.Error(t, err)

	bad := make([]byte, len(sig))
	copy(bad, sig)
	bad[64] = 5
	_, err = RecoverSigner(prefixed, bad)
	assert.Error(t, err)

	// flip s into the upper half of the group order
	s := new(big.Int).SetBytes(sig[32:64])
	highS := new(big.Int).Sub(crypto.S256().Params().N, s)
	malleated := make([]byte, len(sig))
	copy(malleated, sig)
	copy(malleated[64-len(highS.Bytes()):64], highS.Bytes())
	malleated[64] = sig[64] ^ 1
	_, err = RecoverSigner(prefixed, malleated)
	assert.Error(t, err)
}

func TestRecoverAddressMatchesSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	prefixed := common.HashWithSignPrefix(crypto.Keccak256([]byte("payload")))
	sig, err := crypto.Sign(prefixed, key)
	require.NoError(t, err)

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	addr, err := RecoverAddress(prefixed, sig[64], r, s)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)
}
