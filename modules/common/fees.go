package common

import (
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"basketcore/basket"
	"basketcore/precise"
	"basketcore/registry"
)

// Fee computes the protocol fee a module owes on a notional quantity:
// notional multiplied by the registry's precise-unit fee percentage for the
// given fee index, floored. A missing fee entry yields zero.
func Fee(reg registry.Registry, module ethcommon.Address, feeIndex uint8, notional *big.Int) *big.Int {
	if reg == nil || notional == nil {
		return big.NewInt(0)
	}
	return precise.Mul(notional, reg.ModuleFee(module, feeIndex))
}

// PayFeeFromBasket transfers a fee amount of token from the basket to the
// registry's fee recipient through the basket's own identity, verifying the
// recipient's balance grew by exactly the requested amount. Zero fees are a
// no-op.
func PayFeeFromBasket(reg registry.Registry, t *basket.Token, balances BalanceView, module, token ethcommon.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if balances == nil {
		return ErrBalancesNotWired
	}
	recipient := reg.FeeRecipient()

	before, err := balances.BalanceOf(token, recipient)
	if err != nil {
		return fmt.Errorf("module: fee recipient balance: %w", err)
	}
	if _, err := t.Invoke(module, token, nil, TransferCalldata(recipient, amount)); err != nil {
		return err
	}
	after, err := balances.BalanceOf(token, recipient)
	if err != nil {
		return fmt.Errorf("module: fee recipient balance: %w", err)
	}

	received := new(big.Int).Sub(after, before)
	if received.Cmp(amount) != 0 {
		return ErrFeeTransferAmount
	}
	return nil
}
