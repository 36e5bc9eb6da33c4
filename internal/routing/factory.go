package routing

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/frostvault/frostvault/internal/events"
	"github.com/frostvault/frostvault/internal/ledger"
	"github.com/frostvault/frostvault/internal/roles"
	"github.com/frostvault/frostvault/storage"
)

var ErrZeroVault = fmt.Errorf("vault is the zero address")

// routeCreationTag stands in for the deposit route's creation code; only
// its hash enters address derivation, so any fixed, versioned byte string
// keeps addresses stable across releases of the same route.
var routeCreationTag = []byte("frostvault/deposit-route/v1")

var routeConstructorArgs = abi.Arguments{
	{Type: mustAddressType()},
	{Type: mustAddressType()},
}

func mustAddressType() abi.Type {
	t, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

// Factory deterministically derives and creates per-user deposit routes.
// It owns the live vault pointer every route sweeps into.
type Factory struct {
	address  gcommon.Address
	admin    gcommon.Address
	ledger   *ledger.Ledger
	store    storage.DeploymentStore
	recorder events.Recorder
	roles    *roles.Table
	logger   *logrus.Logger

	mu     sync.RWMutex
	vault  gcommon.Address
	routes map[gcommon.Address]*DepositRoute
}

// NewFactory constructs a factory. The admin receives the admin, deployer
// and setter roles; operators are granted separately.
func NewFactory(address, admin, vault gcommon.Address, l *ledger.Ledger, store storage.DeploymentStore, recorder events.Recorder) (*Factory, error) {
	if vault == (gcommon.Address{}) {
		return nil, ErrZeroVault
	}
	f := &Factory{
		address:  address,
		admin:    admin,
		ledger:   l,
		store:    store,
		recorder: recorder,
		roles:    roles.NewTable(recorder, address),
		logger:   logrus.WithField("module", "factory").Logger,
		vault:    vault,
		routes:   make(map[gcommon.Address]*DepositRoute),
	}
	f.roles.Bootstrap(roles.RoleAdmin, admin)
	f.roles.Bootstrap(roles.RoleDeployer, admin)
	f.roles.Bootstrap(roles.RoleSetter, admin)
	return f, nil
}

func (f *Factory) Address() gcommon.Address { return f.address }

// Roles exposes the factory's role table. Routes resolve the operator role
// through it at call time, so a revoke takes effect everywhere at once.
func (f *Factory) Roles() *roles.Table { return f.roles }

// VaultAddress returns the current sweep destination.
func (f *Factory) VaultAddress() gcommon.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.vault
}

// SetVault changes where all routes sweep to, existing and future alike.
func (f *Factory) SetVault(caller, vault gcommon.Address) error {
	if !f.roles.HasRole(roles.RoleSetter, caller) {
		return fmt.Errorf("%w: %s is not a setter", roles.ErrImproperRole, caller.Hex())
	}
	if vault == (gcommon.Address{}) {
		return ErrZeroVault
	}
	f.mu.Lock()
	previous := f.vault
	f.vault = vault
	f.mu.Unlock()

	f.recorder.Emit(events.KindVaultAddressChanged, f.address, map[string]string{
		"previous": previous.Hex(),
		"current":  vault.Hex(),
		"sender":   caller.Hex(),
	})
	return nil
}

// GetBytecode returns the route creation payload whose hash pins address
// derivation: the creation tag followed by the packed constructor
// arguments (admin, factory).
func (f *Factory) GetBytecode() ([]byte, error) {
	packed, err := routeConstructorArgs.Pack(f.admin, f.address)
	if err != nil {
		return nil, fmt.Errorf("fail to pack constructor arguments, err: %w", err)
	}
	return append(append([]byte{}, routeCreationTag...), packed...), nil
}

// GetDeploymentAddress computes the address Deploy(salt) will produce,
// before any deployment: a pure function of the factory address, the salt
// and the creation payload hash.
func (f *Factory) GetDeploymentAddress(salt [32]byte) (gcommon.Address, error) {
	bytecode, err := f.GetBytecode()
	if err != nil {
		return gcommon.Address{}, err
	}
	return crypto.CreateAddress2(f.address, salt, crypto.Keccak256(bytecode)), nil
}

// Deploy instantiates the deposit route for salt at its deterministic
// address. The salt is the sole degree of freedom; deploying it twice
// fails.
func (f *Factory) Deploy(ctx context.Context, caller gcommon.Address, salt [32]byte) (*DepositRoute, error) {
	if !f.roles.HasRole(roles.RoleDeployer, caller) {
		return nil, fmt.Errorf("%w: %s is not a deployer", roles.ErrImproperRole, caller.Hex())
	}
	address, err := f.GetDeploymentAddress(salt)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if _, exists := f.routes[address]; exists {
		f.mu.Unlock()
		return nil, storage.ErrSaltUsed
	}
	route := newDepositRoute(address, f.admin, f, f.ledger, f.recorder)
	f.routes[address] = route
	f.mu.Unlock()

	if err := f.store.RecordDeployment(ctx, salt, address); err != nil {
		f.mu.Lock()
		delete(f.routes, address)
		f.mu.Unlock()
		return nil, fmt.Errorf("fail to record deployment, err: %w", err)
	}
	f.ledger.RegisterReceiver(address, route)

	f.recorder.Emit(events.KindRouteDeployed, f.address, map[string]string{
		"salt":    fmt.Sprintf("%x", salt),
		"address": address.Hex(),
		"sender":  caller.Hex(),
	})
	f.logger.WithFields(logrus.Fields{
		"salt":    fmt.Sprintf("%x", salt),
		"address": address.Hex(),
	}).Info("deposit route deployed")
	return route, nil
}

// Route returns the deployed route at address, if any.
func (f *Factory) Route(address gcommon.Address) (*DepositRoute, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	route, ok := f.routes[address]
	return route, ok
}
