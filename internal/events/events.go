package events

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Kind names an emitted event. The external indexer mirrors records
// verbatim, so kinds are part of the public surface.
type Kind string

const (
	KindRouteDeployed       Kind = "route_deployed"
	KindVaultAddressChanged Kind = "vault_address_changed"
	KindVerifiersChanged    Kind = "verifiers_changed"
	KindPublicKeyChanged    Kind = "public_key_changed"
	KindWithdrawalSucceeded Kind = "withdrawal_succeeded"
	KindEmergencyWithdrawal Kind = "emergency_withdrawal"
	KindRoleGranted         Kind = "role_granted"
	KindRoleRevoked         Kind = "role_revoked"
	KindRoleAdminChanged    Kind = "role_admin_changed"
	KindSweptERC20          Kind = "swept_erc20"
	KindSweptERC721         Kind = "swept_erc721"
	KindSweptNative         Kind = "swept_native"
	KindWithdrawalIDReset   Kind = "withdrawal_id_reset"
)

// Record is one emitted event. Every record carries the height at which it
// was emitted, a timestamp and the originating transaction id.
type Record struct {
	Kind       Kind              `json:"kind"`
	Height     uint64            `json:"height"`
	Timestamp  time.Time         `json:"timestamp"`
	TxID       string            `json:"tx_id"`
	Emitter    common.Address    `json:"emitter"`
	Attributes map[string]string `json:"attributes"`
}

// Recorder receives events from the vault, the factory and the routes.
type Recorder interface {
	Emit(kind Kind, emitter common.Address, attributes map[string]string)
}

// MemoryRecorder keeps emitted records in order, assigning heights and
// transaction ids as it goes.
type MemoryRecorder struct {
	mu      sync.Mutex
	height  uint64
	records []Record
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Emit(kind Kind, emitter common.Address, attributes map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.height++
	r.records = append(r.records, Record{
		Kind:       kind,
		Height:     r.height,
		Timestamp:  time.Now().UTC(),
		TxID:       uuid.NewString(),
		Emitter:    emitter,
		Attributes: attributes,
	})
}

// Records returns a copy of all emitted records in emission order.
func (r *MemoryRecorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// ByKind returns all records of the given kind in emission order.
func (r *MemoryRecorder) ByKind(kind Kind) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.records {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}
