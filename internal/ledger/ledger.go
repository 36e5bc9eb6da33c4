package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrZeroAmount          = fmt.Errorf("amount is zero")
	ErrInsufficientBalance = fmt.Errorf("insufficient balance")
	ErrUnknownToken        = fmt.Errorf("unknown token")
	ErrNotTokenOwner       = fmt.Errorf("not the token owner")
)

// ERC721Receiver is the inbound non-fungible-transfer acknowledgment
// callback. A transfer to a registered receiver is aborted unless the
// callback acknowledges it.
type ERC721Receiver interface {
	OnERC721Received(operator, from common.Address, tokenID *big.Int, data []byte) error
}

// Ledger is the execution environment the custody contracts run against:
// native balances plus registered fungible and non-fungible tokens, all
// addressed accounts. State-mutating calls are serialized per asset, which
// reproduces the platform's atomic entry-point model; the only remaining
// hazard is reentrancy through token callbacks.
type Ledger struct {
	mu        sync.RWMutex
	native    map[common.Address]*big.Int
	erc20     map[common.Address]*FungibleToken
	erc721    map[common.Address]*NFTCollection
	receivers map[common.Address]ERC721Receiver
}

func New() *Ledger {
	return &Ledger{
		native:    make(map[common.Address]*big.Int),
		erc20:     make(map[common.Address]*FungibleToken),
		erc721:    make(map[common.Address]*NFTCollection),
		receivers: make(map[common.Address]ERC721Receiver),
	}
}

// CreditNative mints native currency to an account.
func (l *Ledger) CreditNative(account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.native[account]
	if !ok {
		bal = new(big.Int)
		l.native[account] = bal
	}
	bal.Add(bal, amount)
}

// NativeBalance returns the native balance of an account.
func (l *Ledger) NativeBalance(account common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.native[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// TransferNative moves native currency between accounts.
func (l *Ledger) TransferNative(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.native[from]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	toBal, ok := l.native[to]
	if !ok {
		toBal = new(big.Int)
		l.native[to] = toBal
	}
	toBal.Add(toBal, amount)
	return nil
}

// RegisterERC20 registers a fungible token at the given contract address.
func (l *Ledger) RegisterERC20(address common.Address) *FungibleToken {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok := &FungibleToken{
		address:  address,
		balances: make(map[common.Address]*big.Int),
	}
	l.erc20[address] = tok
	return tok
}

// ERC20 looks up a registered fungible token.
func (l *Ledger) ERC20(address common.Address) (*FungibleToken, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tok, ok := l.erc20[address]
	return tok, ok
}

// RegisterERC721 registers a non-fungible collection at the given address.
func (l *Ledger) RegisterERC721(address common.Address) *NFTCollection {
	l.mu.Lock()
	defer l.mu.Unlock()
	col := &NFTCollection{
		address: address,
		owners:  make(map[string]common.Address),
		ledger:  l,
	}
	l.erc721[address] = col
	return col
}

// ERC721 looks up a registered non-fungible collection.
func (l *Ledger) ERC721(address common.Address) (*NFTCollection, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	col, ok := l.erc721[address]
	return col, ok
}

// RegisterReceiver registers the inbound ERC-721 acknowledgment callback
// for an account.
func (l *Ledger) RegisterReceiver(account common.Address, receiver ERC721Receiver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receivers[account] = receiver
}

func (l *Ledger) receiver(account common.Address) (ERC721Receiver, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.receivers[account]
	return r, ok
}

// FungibleToken is an in-ledger ERC-20 style token. An optional transfer
// hook runs after every balance move, standing in for the recipient-side
// code a real token could invoke.
type FungibleToken struct {
	mu       sync.Mutex
	address  common.Address
	balances map[common.Address]*big.Int
	hook     func(from, to common.Address, amount *big.Int) error
}

func (t *FungibleToken) Address() common.Address { return t.address }

// SetTransferHook installs a post-transfer callback. An error from the
// hook fails and rolls back the transfer.
func (t *FungibleToken) SetTransferHook(hook func(from, to common.Address, amount *big.Int) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hook = hook
}

func (t *FungibleToken) Mint(to common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(to, amount)
}

func (t *FungibleToken) BalanceOf(account common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if bal, ok := t.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Transfer moves tokens and then runs the transfer hook, if any. The hook
// executes outside the balance lock so it can reenter callers, which is
// exactly the hazard vault and route locks exist to contain.
func (t *FungibleToken) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	t.mu.Lock()
	bal, ok := t.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		t.mu.Unlock()
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	t.credit(to, amount)
	hook := t.hook
	t.mu.Unlock()

	if hook != nil {
		if err := hook(from, to, amount); err != nil {
			t.mu.Lock()
			t.balances[to].Sub(t.balances[to], amount)
			t.credit(from, amount)
			t.mu.Unlock()
			return fmt.Errorf("transfer rejected by token, err: %w", err)
		}
	}
	return nil
}

func (t *FungibleToken) credit(to common.Address, amount *big.Int) {
	bal, ok := t.balances[to]
	if !ok {
		bal = new(big.Int)
		t.balances[to] = bal
	}
	bal.Add(bal, amount)
}

// NFTCollection is an in-ledger ERC-721 style collection.
type NFTCollection struct {
	mu      sync.Mutex
	address common.Address
	owners  map[string]common.Address
	ledger  *Ledger
}

func (c *NFTCollection) Address() common.Address { return c.address }

func (c *NFTCollection) Mint(to common.Address, tokenID *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owners[tokenID.String()] = to
}

// OwnerOf returns the current owner of tokenID.
func (c *NFTCollection) OwnerOf(tokenID *big.Int) (common.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.owners[tokenID.String()]
	return owner, ok
}

// Transfer moves a token, invoking the recipient's acknowledgment callback
// when one is registered.
func (c *NFTCollection) Transfer(operator, from, to common.Address, tokenID *big.Int) error {
	c.mu.Lock()
	owner, ok := c.owners[tokenID.String()]
	if !ok || owner != from {
		c.mu.Unlock()
		return ErrNotTokenOwner
	}
	c.owners[tokenID.String()] = to
	c.mu.Unlock()

	if receiver, ok := c.ledger.receiver(to); ok {
		if err := receiver.OnERC721Received(operator, from, tokenID, nil); err != nil {
			c.mu.Lock()
			c.owners[tokenID.String()] = from
			c.mu.Unlock()
			return fmt.Errorf("transfer not acknowledged by receiver, err: %w", err)
		}
	}
	return nil
}
