package common

import (
	"errors"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"basketcore/basket"
	"basketcore/registry"
)

var (
	ErrInvalidBasket     = errors.New("module: basket not recognized by registry")
	ErrNotManager        = errors.New("module: caller is not the basket manager")
	ErrNotInitialized    = errors.New("module: not initialized on this basket")
	ErrNotPending        = errors.New("module: not pending on this basket")
	ErrCallerNotModule   = errors.New("module: caller is not an initialized module")
	ErrAdapterNotFound   = errors.New("module: adapter not registered")
	ErrFeeTransferAmount = errors.New("module: fee recipient received wrong amount")
	ErrBalancesNotWired  = errors.New("module: balance view not configured")
)

// ValidManagerCaller checks the caller is the manager of a basket the
// registry recognizes. Manager-gated module entry points run this first.
func ValidManagerCaller(reg registry.Registry, t *basket.Token, caller ethcommon.Address) error {
	if reg == nil || t == nil || !reg.IsBasket(t.Address()) {
		return ErrInvalidBasket
	}
	if caller != t.Manager() {
		return ErrNotManager
	}
	return nil
}

// InitializedModuleCaller checks the caller is a module currently
// initialized on the basket.
func InitializedModuleCaller(t *basket.Token, caller ethcommon.Address) error {
	if t == nil || !t.IsInitializedModule(caller) {
		return ErrCallerNotModule
	}
	return nil
}

// ValidAndInitialized checks the basket is recognized by the registry and
// the given module is initialized on it. Every privileged module operation
// runs this before touching ledger state.
func ValidAndInitialized(reg registry.Registry, t *basket.Token, module ethcommon.Address) error {
	if reg == nil || t == nil || !reg.IsBasket(t.Address()) {
		return ErrInvalidBasket
	}
	if !t.IsInitializedModule(module) {
		return ErrNotInitialized
	}
	return nil
}

// PendingInitialization checks the basket is recognized and the module was
// added but not yet initialized; the precondition of Initialize.
func PendingInitialization(reg registry.Registry, t *basket.Token, module ethcommon.Address) error {
	if reg == nil || t == nil || !reg.IsBasket(t.Address()) {
		return ErrInvalidBasket
	}
	if !t.IsPendingModule(module) {
		return ErrNotPending
	}
	return nil
}

// LookupAdapter resolves the integration adapter registered for the module
// under the given name.
func LookupAdapter(reg registry.Registry, module ethcommon.Address, name string) (ethcommon.Address, error) {
	if reg == nil {
		return ethcommon.Address{}, ErrAdapterNotFound
	}
	adapter, ok := reg.Adapter(module, name)
	if !ok {
		return ethcommon.Address{}, ErrAdapterNotFound
	}
	return adapter, nil
}
