package roles

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/frostvault/frostvault/internal/events"
)

// Role is a capability tag. Permissions are independent entries in the
// table, not an inheritance hierarchy.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleSigner    Role = "signer"
	RoleSetter    Role = "setter"
	RoleOperator  Role = "operator"
	RolePauser    Role = "pauser"
	RoleEmergency Role = "emergency"
	RoleDeployer  Role = "deployer"
)

// ErrImproperRole is returned when the caller lacks the role a mutation
// requires.
var ErrImproperRole = fmt.Errorf("improper role")

// Table maps role tags to the set of principals holding them. Roles are
// additive and never expire; only a holder of a role's admin role may
// grant or revoke it.
type Table struct {
	mu       sync.RWMutex
	members  map[Role]map[common.Address]struct{}
	admins   map[Role]Role
	recorder events.Recorder
	emitter  common.Address
}

// NewTable returns an empty table owned by the contract at emitter. Every
// role is administered by RoleAdmin until changed.
func NewTable(recorder events.Recorder, emitter common.Address) *Table {
	return &Table{
		members:  make(map[Role]map[common.Address]struct{}),
		admins:   make(map[Role]Role),
		recorder: recorder,
		emitter:  emitter,
	}
}

// HasRole reports whether account currently holds role.
func (t *Table) HasRole(role Role, account common.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.members[role][account]
	return ok
}

func (t *Table) adminOf(role Role) Role {
	if admin, ok := t.admins[role]; ok {
		return admin
	}
	return RoleAdmin
}

// Grant adds account to role. The caller must hold the role's admin role.
func (t *Table) Grant(caller common.Address, role Role, account common.Address) error {
	t.mu.Lock()
	if _, ok := t.members[t.adminOf(role)][caller]; !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s may not grant %s", ErrImproperRole, caller.Hex(), role)
	}
	t.grantLocked(role, account)
	t.mu.Unlock()

	t.recorder.Emit(events.KindRoleGranted, t.emitter, map[string]string{
		"role":    string(role),
		"account": account.Hex(),
		"sender":  caller.Hex(),
	})
	return nil
}

// Revoke removes account from role. The caller must hold the role's admin
// role.
func (t *Table) Revoke(caller common.Address, role Role, account common.Address) error {
	t.mu.Lock()
	if _, ok := t.members[t.adminOf(role)][caller]; !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s may not revoke %s", ErrImproperRole, caller.Hex(), role)
	}
	delete(t.members[role], account)
	t.mu.Unlock()

	t.recorder.Emit(events.KindRoleRevoked, t.emitter, map[string]string{
		"role":    string(role),
		"account": account.Hex(),
		"sender":  caller.Hex(),
	})
	return nil
}

// SetRoleAdmin changes which role administers role.
func (t *Table) SetRoleAdmin(caller common.Address, role Role, adminRole Role) error {
	t.mu.Lock()
	if _, ok := t.members[RoleAdmin][caller]; !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s may not change role admins", ErrImproperRole, caller.Hex())
	}
	previous := t.adminOf(role)
	t.admins[role] = adminRole
	t.mu.Unlock()

	t.recorder.Emit(events.KindRoleAdminChanged, t.emitter, map[string]string{
		"role":           string(role),
		"previous_admin": string(previous),
		"new_admin":      string(adminRole),
		"sender":         caller.Hex(),
	})
	return nil
}

// Bootstrap grants role to account with no caller check. It is used during
// construction and initialization only; the grant is still eventized.
func (t *Table) Bootstrap(role Role, account common.Address) {
	t.mu.Lock()
	t.grantLocked(role, account)
	t.mu.Unlock()

	t.recorder.Emit(events.KindRoleGranted, t.emitter, map[string]string{
		"role":    string(role),
		"account": account.Hex(),
		"sender":  t.emitter.Hex(),
	})
}

func (t *Table) grantLocked(role Role, account common.Address) {
	if t.members[role] == nil {
		t.members[role] = make(map[common.Address]struct{})
	}
	t.members[role][account] = struct{}{}
}
