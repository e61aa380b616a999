// Package issuance mints and redeems basket shares against the default
// component positions and checks the ledger stays collateralized while it
// does so.
package issuance

import (
	"errors"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"basketcore/basket"
	modcommon "basketcore/modules/common"
	"basketcore/precise"
)

var (
	ErrZeroQuantity         = errors.New("issuance: quantity must be positive")
	ErrUndercollateralized  = errors.New("issuance: basket balance below attributed units")
	ErrRecipientZeroAddress = errors.New("issuance: recipient is the zero address")
)

// ValidateCollateralization checks the basket's live balance of a component
// covers what the ledger attributes to the shares outstanding. The
// requirement side rounds up so a one-wei shortfall is never waved through.
func ValidateCollateralization(balances modcommon.BalanceView, t *basket.Token, component ethcommon.Address) error {
	if balances == nil {
		return modcommon.ErrBalancesNotWired
	}
	required := precise.MulCeil(t.DefaultPositionRealUnit(component), t.TotalSupply())
	actual, err := balances.BalanceOf(component, t.Address())
	if err != nil {
		return err
	}
	if actual.Cmp(required) < 0 {
		return fmt.Errorf("%w: component %s has %s, needs %s", ErrUndercollateralized, component.Hex(), actual, required)
	}
	return nil
}
