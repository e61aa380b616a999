package basket

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"basketcore/addrset"
	"basketcore/events"
	"basketcore/precise"
	"basketcore/registry"
)

var (
	ErrUnauthorized         = errors.New("basket: caller is not an initialized module")
	ErrNotManager           = errors.New("basket: caller is not the manager")
	ErrLockedByOther        = errors.New("basket: locked by another module")
	ErrAlreadyLocked        = errors.New("basket: already locked")
	ErrNotLocked            = errors.New("basket: not locked")
	ErrLocked               = errors.New("basket: operation unavailable while locked")
	ErrDuplicateComponent   = errors.New("basket: component already present")
	ErrComponentNotFound    = errors.New("basket: component not present")
	ErrDuplicateModule      = errors.New("basket: module already added")
	ErrModuleNotRecognized  = errors.New("basket: module not recognized by registry")
	ErrModuleNotPending     = errors.New("basket: module not pending")
	ErrModuleNotInitialized = errors.New("basket: module not initialized")
	ErrExternalModuleExists = errors.New("basket: external position module already present")
	ErrExternalModuleAbsent = errors.New("basket: external position module not present")
	ErrPositionRounding     = errors.New("basket: position unit rounds to zero")
	ErrMultiplierTooSmall   = errors.New("basket: multiplier would erase smallest position")
	ErrInvalidQuantity      = errors.New("basket: quantity must be positive")
	ErrInsufficientBalance  = errors.New("basket: insufficient share balance")
	ErrZeroAddress          = errors.New("basket: zero address not allowed")
	ErrInvokeFailed         = errors.New("basket: outbound call failed")
)

// CallExecutor performs an outbound call from the basket's own identity.
// On chain this is the EVM call primitive; tests substitute a stub.
type CallExecutor interface {
	Execute(from, target common.Address, value *big.Int, data []byte) ([]byte, error)
}

// Module is the capability every pluggable module must provide to the token.
// Additional behaviors (issuance hooks, component hooks) are optional
// interfaces discovered by type assertion.
type Module interface {
	// Address is the module's stable identity on the registry.
	Address() common.Address
	// RemoveHook is the module's own teardown, invoked by the token during
	// manager-driven removal before any token-side state is cleared. A
	// returned error aborts the removal.
	RemoveHook(t *Token) error
}

// Component names an asset and its initial per-share real unit.
type Component struct {
	Address common.Address
	Unit    *big.Int
}

// Config carries everything needed to create a basket token. Modules listed
// here start in the pending state and must initialize themselves.
type Config struct {
	Address  common.Address
	Name     string
	Symbol   string
	Manager  common.Address
	Registry registry.Registry
	Executor CallExecutor
	Emitter  events.Emitter

	Components []Component
	Modules    []Module
}

type externalPosition struct {
	virtualUnit *big.Int
	data        []byte
}

type componentPosition struct {
	virtualUnit     *big.Int
	externalModules *addrset.Set
	external        map[common.Address]*externalPosition
}

func newComponentPosition() *componentPosition {
	return &componentPosition{
		virtualUnit:     big.NewInt(0),
		externalModules: addrset.New(),
		external:        make(map[common.Address]*externalPosition),
	}
}

// Token is the basket ledger: a fungible share supply over a set of
// component positions, mutated exclusively through its own entry points by
// initialized modules under the lock discipline. Caller identity is an
// explicit argument on every entry point; the execution model is a single
// sequential transaction processor, so the struct carries no internal
// synchronization.
type Token struct {
	address  common.Address
	name     string
	symbol   string
	manager  common.Address
	registry registry.Registry
	executor CallExecutor
	emitter  events.Emitter

	components *addrset.Set
	positions  map[common.Address]*componentPosition

	moduleStates map[common.Address]ModuleState
	modules      *addrset.Set
	moduleImpls  map[common.Address]Module

	// locker doubles as the lock flag: the zero address means unlocked.
	locker common.Address

	positionMultiplier *big.Int

	totalSupply *big.Int
	balances    map[common.Address]*big.Int
}

// New constructs a basket token. Initial component units are interpreted as
// real units; with the multiplier at its initial value of 1.0 they are
// stored verbatim as virtual units.
func New(cfg Config) (*Token, error) {
	if cfg.Address == (common.Address{}) || cfg.Manager == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if cfg.Registry == nil {
		return nil, errors.New("basket: registry not configured")
	}
	if cfg.Executor == nil {
		return nil, errors.New("basket: call executor not configured")
	}
	name := strings.TrimSpace(cfg.Name)
	symbol := strings.TrimSpace(cfg.Symbol)

	t := &Token{
		address:            cfg.Address,
		name:               name,
		symbol:             symbol,
		manager:            cfg.Manager,
		registry:           cfg.Registry,
		executor:           cfg.Executor,
		emitter:            events.NoopEmitter{},
		components:         addrset.New(),
		positions:          make(map[common.Address]*componentPosition),
		moduleStates:       make(map[common.Address]ModuleState),
		modules:            addrset.New(),
		moduleImpls:        make(map[common.Address]Module),
		positionMultiplier: precise.Unit(),
		totalSupply:        big.NewInt(0),
		balances:           make(map[common.Address]*big.Int),
	}
	if cfg.Emitter != nil {
		t.emitter = cfg.Emitter
	}

	for _, c := range cfg.Components {
		if c.Address == (common.Address{}) {
			return nil, ErrZeroAddress
		}
		if c.Unit == nil || c.Unit.Sign() <= 0 {
			return nil, fmt.Errorf("basket: component %s: %w", c.Address.Hex(), ErrInvalidQuantity)
		}
		if err := t.components.Add(c.Address); err != nil {
			return nil, fmt.Errorf("basket: component %s: %w", c.Address.Hex(), ErrDuplicateComponent)
		}
		pos := newComponentPosition()
		pos.virtualUnit = new(big.Int).Set(c.Unit)
		t.positions[c.Address] = pos
	}

	for _, m := range cfg.Modules {
		if m == nil {
			continue
		}
		addr := m.Address()
		if !t.registry.IsModule(addr) {
			return nil, fmt.Errorf("basket: module %s: %w", addr.Hex(), ErrModuleNotRecognized)
		}
		if _, exists := t.moduleStates[addr]; exists {
			return nil, fmt.Errorf("basket: module %s: %w", addr.Hex(), ErrDuplicateModule)
		}
		t.moduleStates[addr] = ModuleStatePending
		t.moduleImpls[addr] = m
	}

	return t, nil
}

// Address returns the basket's own identity.
func (t *Token) Address() common.Address { return t.address }

// Name returns the share token name.
func (t *Token) Name() string { return t.name }

// Symbol returns the share token symbol.
func (t *Token) Symbol() string { return t.symbol }

// Manager returns the current manager.
func (t *Token) Manager() common.Address { return t.manager }

// IsLocked reports whether a module currently holds the lock.
func (t *Token) IsLocked() bool { return t.locker != (common.Address{}) }

// Locker returns the module holding the lock, or the zero address.
func (t *Token) Locker() common.Address { return t.locker }

func (t *Token) emit(evt *events.Event) {
	if t.emitter != nil {
		t.emitter.Emit(evt)
	}
}

// validateModuleCaller enforces the privileged-mutation gate. While locked
// the check collapses to "is the locker", superseding the general
// initialized-module check; the locker is an initialized module by
// construction of Lock.
func (t *Token) validateModuleCaller(caller common.Address) error {
	if t.IsLocked() {
		if caller != t.locker {
			return ErrLockedByOther
		}
		return nil
	}
	if t.moduleStates[caller] != ModuleStateInitialized || !t.registry.IsModule(caller) {
		return ErrUnauthorized
	}
	return nil
}

func (t *Token) validateManagerCaller(caller common.Address) error {
	if caller != t.manager {
		return ErrNotManager
	}
	return nil
}

// Invoke performs an arbitrary outbound call from the basket's identity.
// Collaborator failures propagate wrapped so the caller can abort its whole
// sequence; nothing is retried here.
func (t *Token) Invoke(caller, target common.Address, value *big.Int, data []byte) ([]byte, error) {
	if err := t.validateModuleCaller(caller); err != nil {
		return nil, err
	}
	if value == nil {
		value = big.NewInt(0)
	}
	result, err := t.executor.Execute(t.address, target, value, data)
	if err != nil {
		return nil, fmt.Errorf("%w: target %s: %w", ErrInvokeFailed, target.Hex(), err)
	}
	t.emit(newInvokedEvent(t.address, caller, target, value, data, result))
	return result, nil
}

// Lock grants the calling module exclusive access to every privileged
// mutation entry point until it calls Unlock.
func (t *Token) Lock(caller common.Address) error {
	if t.IsLocked() {
		return ErrAlreadyLocked
	}
	if t.moduleStates[caller] != ModuleStateInitialized || !t.registry.IsModule(caller) {
		return ErrUnauthorized
	}
	t.locker = caller
	t.emit(newLockedEvent(t.address, caller))
	return nil
}

// Unlock releases the lock with compare-and-clear semantics: only the
// current locker may clear it.
func (t *Token) Unlock(caller common.Address) error {
	if !t.IsLocked() {
		return ErrNotLocked
	}
	if caller != t.locker {
		return ErrLockedByOther
	}
	t.locker = common.Address{}
	t.emit(newUnlockedEvent(t.address, caller))
	return nil
}

// Mint credits freshly created shares to an account.
func (t *Token) Mint(caller, account common.Address, quantity *big.Int) error {
	if err := t.validateModuleCaller(caller); err != nil {
		return err
	}
	if account == (common.Address{}) {
		return ErrZeroAddress
	}
	if quantity == nil || quantity.Sign() <= 0 {
		return ErrInvalidQuantity
	}
	balance := t.balanceRef(account)
	balance.Add(balance, quantity)
	t.totalSupply.Add(t.totalSupply, quantity)
	t.emit(newMintedEvent(t.address, account, quantity))
	return nil
}

// Burn destroys shares held by an account.
func (t *Token) Burn(caller, account common.Address, quantity *big.Int) error {
	if err := t.validateModuleCaller(caller); err != nil {
		return err
	}
	if quantity == nil || quantity.Sign() <= 0 {
		return ErrInvalidQuantity
	}
	balance := t.balanceRef(account)
	if balance.Cmp(quantity) < 0 {
		return ErrInsufficientBalance
	}
	balance.Sub(balance, quantity)
	t.totalSupply.Sub(t.totalSupply, quantity)
	t.emit(newBurnedEvent(t.address, account, quantity))
	return nil
}

// Transfer moves shares between holders. The sender is the caller itself;
// this is the standard fungible surface, not a module privilege.
func (t *Token) Transfer(from, to common.Address, quantity *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if quantity == nil || quantity.Sign() <= 0 {
		return ErrInvalidQuantity
	}
	balance := t.balanceRef(from)
	if balance.Cmp(quantity) < 0 {
		return ErrInsufficientBalance
	}
	balance.Sub(balance, quantity)
	target := t.balanceRef(to)
	target.Add(target, quantity)
	return nil
}

// SetManager transfers management rights. Rejected while locked so a
// module sequence cannot have the manager swapped out from under it.
func (t *Token) SetManager(caller, newManager common.Address) error {
	if err := t.validateManagerCaller(caller); err != nil {
		return err
	}
	if t.IsLocked() {
		return ErrLocked
	}
	if newManager == (common.Address{}) {
		return ErrZeroAddress
	}
	previous := t.manager
	t.manager = newManager
	t.emit(newManagerEditedEvent(t.address, previous, newManager))
	return nil
}

// TotalSupply returns the current share supply.
func (t *Token) TotalSupply() *big.Int { return new(big.Int).Set(t.totalSupply) }

// BalanceOf returns the share balance of an account.
func (t *Token) BalanceOf(account common.Address) *big.Int {
	if balance, ok := t.balances[account]; ok {
		return new(big.Int).Set(balance)
	}
	return big.NewInt(0)
}

func (t *Token) balanceRef(account common.Address) *big.Int {
	balance, ok := t.balances[account]
	if !ok {
		balance = big.NewInt(0)
		t.balances[account] = balance
	}
	return balance
}
