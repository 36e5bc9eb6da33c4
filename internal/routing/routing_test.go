package routing

import (
	"context"
	"math/big"
	"testing"

	gcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostvault/frostvault/common"
	"github.com/frostvault/frostvault/internal/events"
	"github.com/frostvault/frostvault/internal/ledger"
	"github.com/frostvault/frostvault/internal/roles"
	"github.com/frostvault/frostvault/storage"
)

var (
	factoryAddr = gcommon.HexToAddress("0x00000000000000000000000000000000000000fa")
	vaultAddr   = gcommon.HexToAddress("0x00000000000000000000000000000000000000e1")
	admin       = gcommon.HexToAddress("0x0000000000000000000000000000000000000a01")
	operator    = gcommon.HexToAddress("0x0000000000000000000000000000000000000a02")
	stranger    = gcommon.HexToAddress("0x0000000000000000000000000000000000000a03")
	tokenAddr   = gcommon.HexToAddress("0x00000000000000000000000000000000000000f0")
)

func saltFromInt(v int64) [32]byte {
	var salt [32]byte
	copy(salt[:], common.BigToBytes32(big.NewInt(v)))
	return salt
}

func newTestFactory(t *testing.T) (*Factory, *ledger.Ledger, *events.MemoryRecorder) {
	t.Helper()
	l := ledger.New()
	recorder := events.NewMemoryRecorder()
	f, err := NewFactory(factoryAddr, admin, vaultAddr, l, storage.NewMemoryStore(), recorder)
	require.NoError(t, err)
	require.NoError(t, f.Roles().Grant(admin, roles.RoleOperator, operator))
	return f, l, recorder
}

func TestDeterministicAddressing(t *testing.T) {
	f, _, recorder := newTestFactory(t)

	salt := saltFromInt(12345)
	predicted, err := f.GetDeploymentAddress(salt)
	require.NoError(t, err)
	require.NotEqual(t, gcommon.Address{}, predicted)

	route, err := f.Deploy(context.Background(), admin, salt)
	require.NoError(t, err)
	assert.Equal(t, predicted, route.Address(), "prediction must match deployment")

	// distinct salts land on distinct addresses
	other, err := f.GetDeploymentAddress(saltFromInt(12346))
	require.NoError(t, err)
	assert.NotEqual(t, predicted, other)

	deployed := recorder.ByKind(events.KindRouteDeployed)
	require.Len(t, deployed, 1)
	assert.Equal(t, predicted.Hex(), deployed[0].Attributes["address"])

	// the same salt cannot be deployed twice
	_, err = f.Deploy(context.Background(), admin, salt)
	assert.ErrorIs(t, err, storage.ErrSaltUsed)
}

func TestDeployRequiresDeployerRole(t *testing.T) {
	f, _, _ := newTestFactory(t)
	_, err := f.Deploy(context.Background(), stranger, saltFromInt(1))
	assert.ErrorIs(t, err, roles.ErrImproperRole)
}

// Depositing 100 units into the predicted address and sweeping must move
// exactly 100 units to the factory's current vault with one sweep event.
func TestSweepERC20(t *testing.T) {
	f, l, recorder := newTestFactory(t)
	token := l.RegisterERC20(tokenAddr)

	salt := saltFromInt(12345)
	predicted, err := f.GetDeploymentAddress(salt)
	require.NoError(t, err)
	token.Mint(predicted, big.NewInt(100))

	route, err := f.Deploy(context.Background(), admin, salt)
	require.NoError(t, err)

	require.NoError(t, route.TransferERC20(operator, tokenAddr, big.NewInt(100)))
	assert.Equal(t, int64(0), token.BalanceOf(route.Address()).Int64())
	assert.Equal(t, int64(100), token.BalanceOf(vaultAddr).Int64())

	swept := recorder.ByKind(events.KindSweptERC20)
	require.Len(t, swept, 1)
	assert.Equal(t, "100", swept[0].Attributes["amount"])

	// errors: zero amount, unknown token, more than held
	assert.ErrorIs(t, route.TransferERC20(operator, tokenAddr, big.NewInt(0)), ledger.ErrZeroAmount)
	assert.ErrorIs(t, route.TransferERC20(operator, stranger, big.NewInt(1)), ledger.ErrUnknownToken)
	assert.ErrorIs(t, route.TransferERC20(operator, tokenAddr, big.NewInt(1)), ledger.ErrInsufficientBalance)
}

func TestSweepERC721(t *testing.T) {
	f, l, recorder := newTestFactory(t)
	col := l.RegisterERC721(tokenAddr)

	route, err := f.Deploy(context.Background(), admin, saltFromInt(5))
	require.NoError(t, err)

	id := big.NewInt(9)
	col.Mint(route.Address(), id)

	require.NoError(t, route.TransferERC721(operator, tokenAddr, id))
	owner, ok := col.OwnerOf(id)
	require.True(t, ok)
	assert.Equal(t, vaultAddr, owner)
	require.Len(t, recorder.ByKind(events.KindSweptERC721), 1)

	// the route no longer owns the token
	assert.ErrorIs(t, route.TransferERC721(operator, tokenAddr, id), ledger.ErrNotTokenOwner)
}

func TestSweepNative(t *testing.T) {
	f, l, recorder := newTestFactory(t)
	route, err := f.Deploy(context.Background(), admin, saltFromInt(6))
	require.NoError(t, err)

	l.CreditNative(route.Address(), big.NewInt(250))
	require.NoError(t, route.TransferNativeToken(operator, big.NewInt(250)))
	assert.Equal(t, int64(250), l.NativeBalance(vaultAddr).Int64())
	require.Len(t, recorder.ByKind(events.KindSweptNative), 1)

	assert.ErrorIs(t, route.TransferNativeToken(operator, big.NewInt(1)), ledger.ErrInsufficientBalance)
}

// Revoking the operator role on the factory must immediately block the
// sweep calls on every already-deployed route.
func TestOperatorRevocationIsImmediate(t *testing.T) {
	f, l, _ := newTestFactory(t)
	token := l.RegisterERC20(tokenAddr)

	routeA, err := f.Deploy(context.Background(), admin, saltFromInt(1))
	require.NoError(t, err)
	routeB, err := f.Deploy(context.Background(), admin, saltFromInt(2))
	require.NoError(t, err)
	token.Mint(routeA.Address(), big.NewInt(10))
	token.Mint(routeB.Address(), big.NewInt(10))

	require.NoError(t, routeA.TransferERC20(operator, tokenAddr, big.NewInt(5)))

	require.NoError(t, f.Roles().Revoke(admin, roles.RoleOperator, operator))
	assert.ErrorIs(t, routeA.TransferERC20(operator, tokenAddr, big.NewInt(5)), roles.ErrImproperRole)
	assert.ErrorIs(t, routeB.TransferERC20(operator, tokenAddr, big.NewInt(5)), roles.ErrImproperRole)

	// re-granting restores both without per-route reconfiguration
	require.NoError(t, f.Roles().Grant(admin, roles.RoleOperator, operator))
	require.NoError(t, routeB.TransferERC20(operator, tokenAddr, big.NewInt(5)))
}

// Changing the factory's vault pointer redirects sweeps on existing
// routes, since routes read the pointer instead of caching it.
func TestSetVaultAffectsExistingRoutes(t *testing.T) {
	f, l, recorder := newTestFactory(t)
	route, err := f.Deploy(context.Background(), admin, saltFromInt(3))
	require.NoError(t, err)
	l.CreditNative(route.Address(), big.NewInt(100))

	newVault := gcommon.HexToAddress("0x00000000000000000000000000000000000000e2")
	assert.ErrorIs(t, f.SetVault(stranger, newVault), roles.ErrImproperRole)
	assert.ErrorIs(t, f.SetVault(admin, gcommon.Address{}), ErrZeroVault)
	require.NoError(t, f.SetVault(admin, newVault))
	require.Len(t, recorder.ByKind(events.KindVaultAddressChanged), 1)

	require.NoError(t, route.TransferNativeToken(operator, big.NewInt(100)))
	assert.Equal(t, int64(100), l.NativeBalance(newVault).Int64())
	assert.Equal(t, int64(0), l.NativeBalance(vaultAddr).Int64())
}

func TestSetFactoryAddress(t *testing.T) {
	f, l, _ := newTestFactory(t)
	route, err := f.Deploy(context.Background(), admin, saltFromInt(4))
	require.NoError(t, err)

	otherVault := gcommon.HexToAddress("0x00000000000000000000000000000000000000e3")
	otherFactory, err := NewFactory(
		gcommon.HexToAddress("0x00000000000000000000000000000000000000fb"),
		admin, otherVault, l, storage.NewMemoryStore(), events.NewMemoryRecorder(),
	)
	require.NoError(t, err)

	assert.ErrorIs(t, route.SetFactoryAddress(stranger, otherFactory), roles.ErrImproperRole)
	require.NoError(t, route.SetFactoryAddress(admin, otherFactory))

	// role lookups and the vault pointer now resolve through the new factory
	l.CreditNative(route.Address(), big.NewInt(10))
	assert.ErrorIs(t, route.TransferNativeToken(operator, big.NewInt(10)), roles.ErrImproperRole)
	require.NoError(t, otherFactory.Roles().Grant(admin, roles.RoleOperator, operator))
	require.NoError(t, route.TransferNativeToken(operator, big.NewInt(10)))
	assert.Equal(t, int64(10), l.NativeBalance(otherVault).Int64())
}

func TestRouteAcceptsInboundERC721(t *testing.T) {
	f, l, _ := newTestFactory(t)
	col := l.RegisterERC721(tokenAddr)
	route, err := f.Deploy(context.Background(), admin, saltFromInt(8))
	require.NoError(t, err)

	id := big.NewInt(11)
	col.Mint(stranger, id)
	require.NoError(t, col.Transfer(stranger, stranger, route.Address(), id))
	owner, ok := col.OwnerOf(id)
	require.True(t, ok)
	assert.Equal(t, route.Address(), owner)
}
