package ledger

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice     = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000002")
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000f0")
)

func TestNativeTransfer(t *testing.T) {
	l := New()
	l.CreditNative(alice, big.NewInt(100))

	require.NoError(t, l.TransferNative(alice, bob, big.NewInt(40)))
	assert.Equal(t, int64(60), l.NativeBalance(alice).Int64())
	assert.Equal(t, int64(40), l.NativeBalance(bob).Int64())

	assert.ErrorIs(t, l.TransferNative(alice, bob, big.NewInt(100)), ErrInsufficientBalance)
	assert.ErrorIs(t, l.TransferNative(alice, bob, big.NewInt(0)), ErrZeroAmount)
}

func TestERC20Transfer(t *testing.T) {
	l := New()
	tok := l.RegisterERC20(tokenAddr)
	tok.Mint(alice, big.NewInt(1000))

	require.NoError(t, tok.Transfer(alice, bob, big.NewInt(300)))
	assert.Equal(t, int64(700), tok.BalanceOf(alice).Int64())
	assert.Equal(t, int64(300), tok.BalanceOf(bob).Int64())

	assert.ErrorIs(t, tok.Transfer(alice, bob, big.NewInt(1000)), ErrInsufficientBalance)

	_, ok := l.ERC20(tokenAddr)
	assert.True(t, ok)
	_, ok = l.ERC20(bob)
	assert.False(t, ok)
}

func TestERC20TransferHookRollsBack(t *testing.T) {
	l := New()
	tok := l.RegisterERC20(tokenAddr)
	tok.Mint(alice, big.NewInt(100))
	tok.SetTransferHook(func(from, to common.Address, amount *big.Int) error {
		return fmt.Errorf("receiver rejected")
	})

	err := tok.Transfer(alice, bob, big.NewInt(50))
	require.Error(t, err)
	assert.Equal(t, int64(100), tok.BalanceOf(alice).Int64())
	assert.Equal(t, int64(0), tok.BalanceOf(bob).Int64())
}

type ackReceiver struct {
	received int
	reject   bool
}

func (r *ackReceiver) OnERC721Received(operator, from common.Address, tokenID *big.Int, data []byte) error {
	if r.reject {
		return fmt.Errorf("rejected")
	}
	r.received++
	return nil
}

func TestERC721Transfer(t *testing.T) {
	l := New()
	col := l.RegisterERC721(tokenAddr)
	id := big.NewInt(7)
	col.Mint(alice, id)

	receiver := &ackReceiver{}
	l.RegisterReceiver(bob, receiver)

	require.NoError(t, col.Transfer(alice, alice, bob, id))
	owner, ok := col.OwnerOf(id)
	require.True(t, ok)
	assert.Equal(t, bob, owner)
	assert.Equal(t, 1, receiver.received)

	// only the owner can move a token
	assert.ErrorIs(t, col.Transfer(alice, alice, bob, id), ErrNotTokenOwner)
	assert.ErrorIs(t, col.Transfer(alice, alice, bob, big.NewInt(99)), ErrNotTokenOwner)
}

func TestERC721RejectedAckRollsBack(t *testing.T) {
	l := New()
	col := l.RegisterERC721(tokenAddr)
	id := big.NewInt(7)
	col.Mint(alice, id)
	l.RegisterReceiver(bob, &ackReceiver{reject: true})

	err := col.Transfer(alice, alice, bob, id)
	require.Error(t, err)
	owner, _ := col.OwnerOf(id)
	assert.Equal(t, alice, owner)
}
