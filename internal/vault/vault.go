package vault

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	gcommon "github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/frostvault/frostvault/common"
	"github.com/frostvault/frostvault/internal/events"
	"github.com/frostvault/frostvault/internal/ledger"
	"github.com/frostvault/frostvault/internal/roles"
	"github.com/frostvault/frostvault/internal/schnorr"
	"github.com/frostvault/frostvault/internal/types"
	"github.com/frostvault/frostvault/storage"
)

var (
	ErrNotInitialized     = fmt.Errorf("vault not initialized")
	ErrAlreadyInitialized = fmt.Errorf("vault already initialized")
	ErrPaused             = fmt.Errorf("vault is paused")
	ErrZeroRecipient      = fmt.Errorf("recipient is the zero address")
	ErrReentrantCall      = fmt.Errorf("reentrant call")
	// ErrInvalidSignature covers both authorization layers. Which of the
	// two failed is deliberately not distinguished to callers.
	ErrInvalidSignature = fmt.Errorf("invalid signature")
)

// ShieldVerifier recovers the shield signer from a recoverable signature.
type ShieldVerifier interface {
	RecoverSigner(messageHash, signature []byte) (gcommon.Address, error)
}

// Vault is the single custody contract. It holds assets on the ledger,
// tracks consumed withdrawal ids, and admits a withdrawal only when the
// threshold signature and the shield signature both verify against the
// same message.
type Vault struct {
	address  gcommon.Address
	domainID *big.Int
	ledger   *ledger.Ledger
	store    storage.WithdrawalStore
	recorder events.Recorder
	roles    *roles.Table
	logger   *logrus.Logger

	// entered is the scoped non-reentrant lock around the two
	// asset-moving entry points.
	entered atomic.Bool

	mu          sync.RWMutex
	initialized bool
	paused      bool
	publicKey   schnorr.PublicKey
	threshold   schnorr.Verifier
	shield      ShieldVerifier
}

// New returns an uninitialized vault at the given address. DomainID binds
// all withdrawal messages to this deployment.
func New(address gcommon.Address, domainID *big.Int, l *ledger.Ledger, store storage.WithdrawalStore, recorder events.Recorder) *Vault {
	return &Vault{
		address:  address,
		domainID: domainID,
		ledger:   l,
		store:    store,
		recorder: recorder,
		roles:    roles.NewTable(recorder, address),
		logger:   logrus.WithField("module", "vault").Logger,
	}
}

func (v *Vault) Address() gcommon.Address { return v.address }

// Roles exposes the vault's role table for admin-driven grants.
func (v *Vault) Roles() *roles.Table { return v.roles }

// Initialize performs the one-time setup: it grants the admin, signer and
// pauser roles and binds the verifier references and active public key.
func (v *Vault) Initialize(admin gcommon.Address, threshold schnorr.Verifier, shield ShieldVerifier, shieldSigner gcommon.Address, publicKey schnorr.PublicKey) error {
	if threshold == nil || shield == nil {
		return fmt.Errorf("verifier reference is nil")
	}
	if err := publicKey.Validate(); err != nil {
		return fmt.Errorf("fail to validate public key, err: %w", err)
	}
	v.mu.Lock()
	if v.initialized {
		v.mu.Unlock()
		return ErrAlreadyInitialized
	}
	v.initialized = true
	v.threshold = threshold
	v.shield = shield
	v.publicKey = publicKey
	v.mu.Unlock()

	v.roles.Bootstrap(roles.RoleAdmin, admin)
	v.roles.Bootstrap(roles.RolePauser, admin)
	v.roles.Bootstrap(roles.RoleSigner, shieldSigner)
	v.logger.WithFields(logrus.Fields{
		"admin":         admin.Hex(),
		"shield_signer": shieldSigner.Hex(),
	}).Info("vault initialized")
	return nil
}

// SetVerifiers replaces the two verifier references.
func (v *Vault) SetVerifiers(caller gcommon.Address, threshold schnorr.Verifier, shield ShieldVerifier) error {
	if !v.roles.HasRole(roles.RoleSetter, caller) {
		return fmt.Errorf("%w: %s is not a setter", roles.ErrImproperRole, caller.Hex())
	}
	if threshold == nil || shield == nil {
		return fmt.Errorf("verifier reference is nil")
	}
	v.mu.Lock()
	v.threshold = threshold
	v.shield = shield
	v.mu.Unlock()

	v.recorder.Emit(events.KindVerifiersChanged, v.address, map[string]string{
		"threshold_verifier": fmt.Sprintf("%T", threshold),
		"shield_verifier":    fmt.Sprintf("%T", shield),
		"sender":             caller.Hex(),
	})
	return nil
}

// SetPublicKey replaces the active aggregate public key.
func (v *Vault) SetPublicKey(caller gcommon.Address, publicKey schnorr.PublicKey) error {
	if !v.roles.HasRole(roles.RoleSetter, caller) {
		return fmt.Errorf("%w: %s is not a setter", roles.ErrImproperRole, caller.Hex())
	}
	if err := publicKey.Validate(); err != nil {
		return fmt.Errorf("fail to validate public key, err: %w", err)
	}
	v.mu.Lock()
	v.publicKey = publicKey
	v.mu.Unlock()

	v.recorder.Emit(events.KindPublicKeyChanged, v.address, map[string]string{
		"public_key": fmt.Sprintf("%x", publicKey.Bytes()),
		"sender":     caller.Hex(),
	})
	return nil
}

// Pause gates Withdraw. EmergencyWithdrawERC20 stays available.
func (v *Vault) Pause(caller gcommon.Address) error {
	if !v.roles.HasRole(roles.RolePauser, caller) {
		return fmt.Errorf("%w: %s is not a pauser", roles.ErrImproperRole, caller.Hex())
	}
	v.mu.Lock()
	v.paused = true
	v.mu.Unlock()
	v.logger.WithField("sender", caller.Hex()).Warn("vault paused")
	return nil
}

func (v *Vault) Unpause(caller gcommon.Address) error {
	if !v.roles.HasRole(roles.RolePauser, caller) {
		return fmt.Errorf("%w: %s is not a pauser", roles.ErrImproperRole, caller.Hex())
	}
	v.mu.Lock()
	v.paused = false
	v.mu.Unlock()
	v.logger.WithField("sender", caller.Hex()).Info("vault unpaused")
	return nil
}

// Withdraw releases assets to the request's recipient if both the
// threshold signature and the shield signature cover the request's
// message hash. The withdrawal id is marked consumed before any asset
// moves; a failed transfer releases the mark again so the call stays
// atomic.
func (v *Vault) Withdraw(ctx context.Context, req types.WithdrawalRequest, thresholdSig schnorr.Signature, shieldSig []byte) error {
	if !v.entered.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	defer v.entered.Store(false)

	v.mu.RLock()
	initialized, paused := v.initialized, v.paused
	publicKey, threshold, shield := v.publicKey, v.threshold, v.shield
	v.mu.RUnlock()

	if !initialized {
		return ErrNotInitialized
	}
	if paused {
		return ErrPaused
	}
	if req.Recipient == (gcommon.Address{}) {
		return ErrZeroRecipient
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return ledger.ErrZeroAmount
	}
	used, err := v.store.IsConsumed(ctx, req.WithdrawalID)
	if err != nil {
		return fmt.Errorf("fail to check withdrawal id, err: %w", err)
	}
	if used {
		return storage.ErrWithdrawalIDUsed
	}

	message := req.MessageHash(v.domainID)
	ok, err := threshold.VerifySignature(publicKey, thresholdSig, message)
	if err != nil {
		return fmt.Errorf("malformed withdrawal authorization, err: %w", err)
	}
	if !ok {
		return ErrInvalidSignature
	}
	signer, err := shield.RecoverSigner(common.HashWithSignPrefix(message), shieldSig)
	if err != nil || !v.roles.HasRole(roles.RoleSigner, signer) {
		return ErrInvalidSignature
	}

	// effects before interaction: the id is burned before assets move
	if err := v.store.Consume(ctx, req.WithdrawalID); err != nil {
		return fmt.Errorf("fail to consume withdrawal id, err: %w", err)
	}
	if err := v.transferOut(req.Asset, req.Recipient, req.Amount); err != nil {
		if releaseErr := v.store.Release(ctx, req.WithdrawalID); releaseErr != nil {
			v.logger.WithError(releaseErr).Error("fail to release withdrawal id after failed transfer")
		}
		return fmt.Errorf("fail to transfer asset, err: %w", err)
	}

	v.recorder.Emit(events.KindWithdrawalSucceeded, v.address, map[string]string{
		"recipient":     req.Recipient.Hex(),
		"asset":         req.Asset.Hex(),
		"amount":        req.Amount.String(),
		"withdrawal_id": req.WithdrawalID.String(),
	})
	v.logger.WithFields(logrus.Fields{
		"recipient":     req.Recipient.Hex(),
		"amount":        req.Amount.String(),
		"withdrawal_id": req.WithdrawalID.String(),
	}).Info("withdrawal succeeded")
	return nil
}

// EmergencyWithdrawERC20 moves tokens out with no signature checks. It is
// the last-resort recovery path and is deliberately not gated by the
// pause flag.
func (v *Vault) EmergencyWithdrawERC20(caller gcommon.Address, asset gcommon.Address, amount *big.Int, recipient gcommon.Address) error {
	if !v.roles.HasRole(roles.RoleEmergency, caller) {
		return fmt.Errorf("%w: %s is not an emergency withdrawer", roles.ErrImproperRole, caller.Hex())
	}
	if !v.entered.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	defer v.entered.Store(false)

	if recipient == (gcommon.Address{}) {
		return ErrZeroRecipient
	}
	if amount == nil || amount.Sign() <= 0 {
		return ledger.ErrZeroAmount
	}
	token, ok := v.ledger.ERC20(asset)
	if !ok {
		return ledger.ErrUnknownToken
	}
	if err := token.Transfer(v.address, recipient, amount); err != nil {
		return fmt.Errorf("fail to transfer asset, err: %w", err)
	}

	v.recorder.Emit(events.KindEmergencyWithdrawal, v.address, map[string]string{
		"recipient": recipient.Hex(),
		"asset":     asset.Hex(),
		"amount":    amount.String(),
		"sender":    caller.Hex(),
	})
	v.logger.WithFields(logrus.Fields{
		"recipient": recipient.Hex(),
		"asset":     asset.Hex(),
		"amount":    amount.String(),
	}).Warn("emergency withdrawal executed")
	return nil
}

// ResetWithdrawalID clears a consumed withdrawal id. Admin-only and
// eventized, so every reset leaves an audit trail.
func (v *Vault) ResetWithdrawalID(ctx context.Context, caller gcommon.Address, id *big.Int) error {
	if !v.roles.HasRole(roles.RoleAdmin, caller) {
		return fmt.Errorf("%w: %s is not an admin", roles.ErrImproperRole, caller.Hex())
	}
	if err := v.store.Reset(ctx, id); err != nil {
		return fmt.Errorf("fail to reset withdrawal id, err: %w", err)
	}
	v.recorder.Emit(events.KindWithdrawalIDReset, v.address, map[string]string{
		"withdrawal_id": id.String(),
		"sender":        caller.Hex(),
	})
	v.logger.WithFields(logrus.Fields{
		"withdrawal_id": id.String(),
		"sender":        caller.Hex(),
	}).Warn("withdrawal id reset")
	return nil
}

func (v *Vault) transferOut(asset, recipient gcommon.Address, amount *big.Int) error {
	if asset == types.NativeAsset {
		return v.ledger.TransferNative(v.address, recipient, amount)
	}
	token, ok := v.ledger.ERC20(asset)
	if !ok {
		return ledger.ErrUnknownToken
	}
	return token.Transfer(v.address, recipient, amount)
}
