package roles

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostvault/frostvault/internal/events"
)

var (
	admin    = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	operator = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	stranger = common.HexToAddress("0x0000000000000000000000000000000000000a03")
	contract = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func newTable() (*Table, *events.MemoryRecorder) {
	recorder := events.NewMemoryRecorder()
	t := NewTable(recorder, contract)
	t.Bootstrap(RoleAdmin, admin)
	return t, recorder
}

func TestGrantRevoke(t *testing.T) {
	table, recorder := newTable()

	require.NoError(t, table.Grant(admin, RoleOperator, operator))
	assert.True(t, table.HasRole(RoleOperator, operator))

	require.NoError(t, table.Revoke(admin, RoleOperator, operator))
	assert.False(t, table.HasRole(RoleOperator, operator))

	granted := recorder.ByKind(events.KindRoleGranted)
	require.Len(t, granted, 2) // bootstrap + grant
	assert.Equal(t, string(RoleOperator), granted[1].Attributes["role"])
	revoked := recorder.ByKind(events.KindRoleRevoked)
	require.Len(t, revoked, 1)
}

func TestGrantRequiresAdminRole(t *testing.T) {
	table, _ := newTable()

	err := table.Grant(stranger, RoleOperator, operator)
	assert.ErrorIs(t, err, ErrImproperRole)
	assert.False(t, table.HasRole(RoleOperator, operator))

	require.NoError(t, table.Grant(admin, RoleOperator, operator))
	// holding a role does not make its holder an administrator
	err = table.Grant(operator, RoleOperator, stranger)
	assert.ErrorIs(t, err, ErrImproperRole)
}

func TestRolesAreIndependent(t *testing.T) {
	table, _ := newTable()
	require.NoError(t, table.Grant(admin, RolePauser, operator))
	assert.True(t, table.HasRole(RolePauser, operator))
	assert.False(t, table.HasRole(RoleSigner, operator))
	assert.False(t, table.HasRole(RoleEmergency, operator))
}

func TestSetRoleAdmin(t *testing.T) {
	table, recorder := newTable()
	require.NoError(t, table.Grant(admin, RoleDeployer, operator))

	// hand administration of the operator role to the deployer role
	require.NoError(t, table.SetRoleAdmin(admin, RoleOperator, RoleDeployer))
	require.NoError(t, table.Grant(operator, RoleOperator, stranger))
	assert.True(t, table.HasRole(RoleOperator, stranger))

	// the admin role no longer administers it
	err := table.Grant(admin, RoleOperator, admin)
	assert.ErrorIs(t, err, ErrImproperRole)

	err = table.SetRoleAdmin(stranger, RoleOperator, RoleAdmin)
	assert.ErrorIs(t, err, ErrImproperRole)

	changed := recorder.ByKind(events.KindRoleAdminChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, string(RoleDeployer), changed[0].Attributes["new_admin"])
}
