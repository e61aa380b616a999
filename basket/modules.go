package basket

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ModuleState tracks a module's lifecycle on one basket:
// none -> pending (manager adds) -> initialized (module self-call) -> none
// (manager removes, after the module's own teardown hook). A pending module
// the manager abandons goes straight back to none.
type ModuleState uint8

const (
	ModuleStateNone ModuleState = iota
	ModuleStatePending
	ModuleStateInitialized
)

func (s ModuleState) String() string {
	switch s {
	case ModuleStateNone:
		return "none"
	case ModuleStatePending:
		return "pending"
	case ModuleStateInitialized:
		return "initialized"
	default:
		return "unknown"
	}
}

// Valid reports whether the state value is within the supported range.
func (s ModuleState) Valid() bool {
	switch s {
	case ModuleStateNone, ModuleStatePending, ModuleStateInitialized:
		return true
	default:
		return false
	}
}

// AddModule registers a module in the pending state. Manager only; the
// module must be recognized by the registry and not already tracked.
func (t *Token) AddModule(caller common.Address, module Module) error {
	if err := t.validateManagerCaller(caller); err != nil {
		return err
	}
	if module == nil {
		return ErrZeroAddress
	}
	addr := module.Address()
	if !t.registry.IsModule(addr) {
		return ErrModuleNotRecognized
	}
	if t.moduleStates[addr] != ModuleStateNone {
		return ErrDuplicateModule
	}
	t.moduleStates[addr] = ModuleStatePending
	t.moduleImpls[addr] = module
	t.emit(newModuleAddedEvent(t.address, addr))
	return nil
}

// BatchAddModule registers several modules, stopping at the first failure.
// Modules registered before the failing entry stay registered.
func (t *Token) BatchAddModule(caller common.Address, modules []Module) error {
	for _, m := range modules {
		if err := t.AddModule(caller, m); err != nil {
			return err
		}
	}
	return nil
}

// InitializeModule transitions the calling module from pending to
// initialized. The call must come from the module itself, and the ledger
// must be unlocked.
func (t *Token) InitializeModule(caller common.Address) error {
	if t.IsLocked() {
		return ErrLocked
	}
	if t.moduleStates[caller] != ModuleStatePending {
		return ErrModuleNotPending
	}
	t.moduleStates[caller] = ModuleStateInitialized
	if err := t.modules.Add(caller); err != nil {
		return fmt.Errorf("basket: module set: %w", err)
	}
	t.emit(newModuleInitializedEvent(t.address, caller))
	return nil
}

// RemoveModule tears down an initialized module. The module's own
// RemoveHook runs first and can abort the removal; only then is the
// token-side state cleared.
func (t *Token) RemoveModule(caller, module common.Address) error {
	if err := t.validateManagerCaller(caller); err != nil {
		return err
	}
	if t.IsLocked() {
		return ErrLocked
	}
	if t.moduleStates[module] != ModuleStateInitialized {
		return ErrModuleNotInitialized
	}
	impl := t.moduleImpls[module]
	if impl != nil {
		if err := impl.RemoveHook(t); err != nil {
			return fmt.Errorf("basket: module %s teardown: %w", module.Hex(), err)
		}
	}
	delete(t.moduleStates, module)
	delete(t.moduleImpls, module)
	if err := t.modules.Remove(module); err != nil {
		return fmt.Errorf("basket: module set: %w", err)
	}
	t.emit(newModuleRemovedEvent(t.address, module))
	return nil
}

// RemovePendingModule abandons a module the manager added but that never
// initialized itself.
func (t *Token) RemovePendingModule(caller, module common.Address) error {
	if err := t.validateManagerCaller(caller); err != nil {
		return err
	}
	if t.IsLocked() {
		return ErrLocked
	}
	if t.moduleStates[module] != ModuleStatePending {
		return ErrModuleNotPending
	}
	delete(t.moduleStates, module)
	delete(t.moduleImpls, module)
	t.emit(newPendingModuleRemovedEvent(t.address, module))
	return nil
}

// BatchRemovePendingModule abandons several pending modules, stopping at
// the first failure. Modules removed before the failing entry stay removed.
func (t *Token) BatchRemovePendingModule(caller common.Address, modules []common.Address) error {
	for _, m := range modules {
		if err := t.RemovePendingModule(caller, m); err != nil {
			return err
		}
	}
	return nil
}

// ModuleState returns the lifecycle state recorded for a module.
func (t *Token) ModuleState(module common.Address) ModuleState {
	return t.moduleStates[module]
}

// IsInitializedModule reports whether the module may mutate this basket.
func (t *Token) IsInitializedModule(module common.Address) bool {
	return t.moduleStates[module] == ModuleStateInitialized
}

// IsPendingModule reports whether the module was added but not initialized.
func (t *Token) IsPendingModule(module common.Address) bool {
	return t.moduleStates[module] == ModuleStatePending
}

// Modules returns the currently initialized module addresses.
func (t *Token) Modules() []common.Address {
	return t.modules.Elements()
}

// ModuleByAddress returns the registered implementation for an added
// module, whatever its lifecycle state. Orchestrating modules use it to
// reach the optional hook interfaces of their peers.
func (t *Token) ModuleByAddress(module common.Address) (Module, bool) {
	impl, ok := t.moduleImpls[module]
	return impl, ok
}
