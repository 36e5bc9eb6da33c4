package routing

import (
	"fmt"
	"math/big"
	"sync"

	gcommon "github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/frostvault/frostvault/internal/events"
	"github.com/frostvault/frostvault/internal/ledger"
	"github.com/frostvault/frostvault/internal/roles"
)

// DepositRoute is a minimal per-user custody contract. It holds assets
// only transiently between deposit and sweep, and resolves the operator
// role through the factory's live role table on every call.
type DepositRoute struct {
	address  gcommon.Address
	admin    gcommon.Address
	ledger   *ledger.Ledger
	recorder events.Recorder
	logger   *logrus.Logger

	mu      sync.RWMutex
	factory *Factory
}

func newDepositRoute(address, admin gcommon.Address, factory *Factory, l *ledger.Ledger, recorder events.Recorder) *DepositRoute {
	return &DepositRoute{
		address:  address,
		admin:    admin,
		ledger:   l,
		recorder: recorder,
		logger:   logrus.WithField("module", "deposit_route").Logger,
		factory:  factory,
	}
}

func (r *DepositRoute) Address() gcommon.Address { return r.address }

// SetFactoryAddress repoints the route at a different factory.
func (r *DepositRoute) SetFactoryAddress(caller gcommon.Address, factory *Factory) error {
	if caller != r.admin {
		return fmt.Errorf("%w: %s is not the route admin", roles.ErrImproperRole, caller.Hex())
	}
	if factory == nil {
		return fmt.Errorf("factory is nil")
	}
	r.mu.Lock()
	r.factory = factory
	r.mu.Unlock()
	return nil
}

func (r *DepositRoute) currentFactory() *Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factory
}

// checkOperator resolves the operator role through the factory at call
// time; a revoke on the factory blocks every route immediately.
func (r *DepositRoute) checkOperator(caller gcommon.Address) (*Factory, error) {
	factory := r.currentFactory()
	if !factory.Roles().HasRole(roles.RoleOperator, caller) {
		return nil, fmt.Errorf("%w: %s is not an operator", roles.ErrImproperRole, caller.Hex())
	}
	return factory, nil
}

// TransferERC20 sweeps amount of token to the factory's current vault.
func (r *DepositRoute) TransferERC20(caller, token gcommon.Address, amount *big.Int) error {
	factory, err := r.checkOperator(caller)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ledger.ErrZeroAmount
	}
	tok, ok := r.ledger.ERC20(token)
	if !ok {
		return ledger.ErrUnknownToken
	}
	if tok.BalanceOf(r.address).Cmp(amount) < 0 {
		return ledger.ErrInsufficientBalance
	}
	vault := factory.VaultAddress()
	if err := tok.Transfer(r.address, vault, amount); err != nil {
		return fmt.Errorf("fail to sweep token, err: %w", err)
	}

	r.recorder.Emit(events.KindSweptERC20, r.address, map[string]string{
		"token":  token.Hex(),
		"amount": amount.String(),
		"vault":  vault.Hex(),
		"sender": caller.Hex(),
	})
	return nil
}

// TransferERC721 sweeps one non-fungible token to the factory's current
// vault. The route must own the token.
func (r *DepositRoute) TransferERC721(caller, token gcommon.Address, tokenID *big.Int) error {
	factory, err := r.checkOperator(caller)
	if err != nil {
		return err
	}
	col, ok := r.ledger.ERC721(token)
	if !ok {
		return ledger.ErrUnknownToken
	}
	if owner, ok := col.OwnerOf(tokenID); !ok || owner != r.address {
		return ledger.ErrNotTokenOwner
	}
	vault := factory.VaultAddress()
	if err := col.Transfer(caller, r.address, vault, tokenID); err != nil {
		return fmt.Errorf("fail to sweep token, err: %w", err)
	}

	r.recorder.Emit(events.KindSweptERC721, r.address, map[string]string{
		"token":    token.Hex(),
		"token_id": tokenID.String(),
		"vault":    vault.Hex(),
		"sender":   caller.Hex(),
	})
	return nil
}

// TransferNativeToken sweeps native currency to the factory's current
// vault.
func (r *DepositRoute) TransferNativeToken(caller gcommon.Address, amount *big.Int) error {
	factory, err := r.checkOperator(caller)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ledger.ErrZeroAmount
	}
	vault := factory.VaultAddress()
	if err := r.ledger.TransferNative(r.address, vault, amount); err != nil {
		return fmt.Errorf("fail to sweep native currency, err: %w", err)
	}

	r.recorder.Emit(events.KindSweptNative, r.address, map[string]string{
		"amount": amount.String(),
		"vault":  vault.Hex(),
		"sender": caller.Hex(),
	})
	r.logger.WithFields(logrus.Fields{
		"route":  r.address.Hex(),
		"amount": amount.String(),
	}).Info("native sweep")
	return nil
}

// OnERC721Received acknowledges every inbound non-fungible transfer;
// routes accept deposits unconditionally.
func (r *DepositRoute) OnERC721Received(_, _ gcommon.Address, _ *big.Int, _ []byte) error {
	return nil
}
