package registry

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is the protocol's global source of truth for which addresses are
// recognized baskets and modules, which integration adapter serves a module
// under a given name, and the fee schedule modules charge. The production
// registry is an external governance contract; the core consumes it through
// this capability interface only.
type Registry interface {
	// IsModule reports whether addr is a recognized module implementation.
	IsModule(addr common.Address) bool
	// IsBasket reports whether addr is a basket deployed through a
	// recognized factory.
	IsBasket(addr common.Address) bool
	// Adapter resolves the integration adapter registered for a module
	// under the given name.
	Adapter(module common.Address, name string) (common.Address, bool)
	// ModuleFee returns the fee percentage, in precise units, for the
	// given module and fee index. A missing entry is a zero fee.
	ModuleFee(module common.Address, feeIndex uint8) *big.Int
	// FeeRecipient returns the protocol fee recipient.
	FeeRecipient() common.Address
}
