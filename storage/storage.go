package storage

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrWithdrawalIDUsed is returned when a withdrawal id was already
	// consumed.
	ErrWithdrawalIDUsed = fmt.Errorf("withdrawal id already used")
	// ErrSaltUsed is returned when a deployment salt already has a route.
	ErrSaltUsed = fmt.Errorf("salt already deployed")
)

// WithdrawalStore is the vault-owned registry of consumed withdrawal ids.
// Ids are append-only in normal operation; Release exists solely so a
// failed asset transfer can undo its own mark and keep the entry point
// atomic, and Reset is the explicit admin path.
type WithdrawalStore interface {
	IsConsumed(ctx context.Context, id *big.Int) (bool, error)
	Consume(ctx context.Context, id *big.Int) error
	Release(ctx context.Context, id *big.Int) error
	Reset(ctx context.Context, id *big.Int) error
}

// DeploymentStore records salt → route address relationships.
type DeploymentStore interface {
	RecordDeployment(ctx context.Context, salt [32]byte, address common.Address) error
	GetDeployment(ctx context.Context, salt [32]byte) (common.Address, bool, error)
}

// Store is the combined persistence surface.
type Store interface {
	WithdrawalStore
	DeploymentStore
	Close() error
}

// MemoryStore is the in-process Store used by the core and in tests.
type MemoryStore struct {
	mu          sync.Mutex
	consumed    map[string]struct{}
	deployments map[[32]byte]common.Address
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		consumed:    make(map[string]struct{}),
		deployments: make(map[[32]byte]common.Address),
	}
}

func (m *MemoryStore) IsConsumed(_ context.Context, id *big.Int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.consumed[id.String()]
	return ok, nil
}

func (m *MemoryStore) Consume(_ context.Context, id *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.consumed[id.String()]; ok {
		return ErrWithdrawalIDUsed
	}
	m.consumed[id.String()] = struct{}{}
	return nil
}

func (m *MemoryStore) Release(_ context.Context, id *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.consumed, id.String())
	return nil
}

func (m *MemoryStore) Reset(_ context.Context, id *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.consumed, id.String())
	return nil
}

func (m *MemoryStore) RecordDeployment(_ context.Context, salt [32]byte, address common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deployments[salt]; ok {
		return ErrSaltUsed
	}
	m.deployments[salt] = address
	return nil
}

func (m *MemoryStore) GetDeployment(_ context.Context, salt [32]byte) (common.Address, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr, ok := m.deployments[salt]
	return addr, ok, nil
}

func (m *MemoryStore) Close() error { return nil }
