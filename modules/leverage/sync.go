package leverage

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"basketcore/basket"
	modcommon "basketcore/modules/common"
	"basketcore/precise"
)

// Sync reconciles the basket's position units with the lending market's
// live receipt and debt balances. Anyone may call it; units are written
// only when they changed so a no-op sync emits nothing.
func (e *Engine) Sync(t *basket.Token) error {
	if err := modcommon.ValidAndInitialized(e.registry, t, e.address); err != nil {
		return err
	}
	state, ok := e.baskets[t.Address()]
	if !ok {
		return ErrBasketNotManaged
	}
	supply := t.TotalSupply()
	if supply.Sign() == 0 {
		return nil
	}
	for _, asset := range state.collateralAssets.Elements() {
		if err := e.syncCollateralUnit(t, asset, supply); err != nil {
			return err
		}
	}
	for _, asset := range state.borrowAssets.Elements() {
		if err := e.syncBorrowUnit(t, asset, supply); err != nil {
			return err
		}
	}
	return nil
}

// ModuleIssueHook runs before an issuance module mints shares so the units
// being replicated reflect accrued interest.
func (e *Engine) ModuleIssueHook(caller ethcommon.Address, t *basket.Token, _ *big.Int) error {
	if err := modcommon.InitializedModuleCaller(t, caller); err != nil {
		return err
	}
	return e.Sync(t)
}

// ModuleRedeemHook mirrors ModuleIssueHook for redemptions.
func (e *Engine) ModuleRedeemHook(caller ethcommon.Address, t *basket.Token, _ *big.Int) error {
	if err := modcommon.InitializedModuleCaller(t, caller); err != nil {
		return err
	}
	return e.Sync(t)
}

// ComponentIssueHook settles this engine's external debt leg during
// issuance: the basket borrows the per-share debt scaled by the minted
// quantity, rounding down so real debt never exceeds what the new shares
// were attributed.
func (e *Engine) ComponentIssueHook(caller ethcommon.Address, t *basket.Token, shareQuantity *big.Int, component ethcommon.Address, isEquity bool) error {
	if err := modcommon.InitializedModuleCaller(t, caller); err != nil {
		return err
	}
	if isEquity {
		return ErrEquityLegNotSupported
	}
	unit := t.ExternalPositionRealUnit(component, e.address)
	if unit.Sign() >= 0 {
		return nil
	}
	borrow := precise.Mul(shareQuantity, new(big.Int).Neg(unit))
	if borrow.Sign() == 0 {
		return nil
	}
	target, value, data, err := e.market.BorrowCalldata(component, borrow, variableRateMode)
	return e.invokeMarket(t, target, value, data, err)
}

// ComponentRedeemHook settles the debt leg during redemption: the basket
// repays the per-share debt scaled by the redeemed quantity, rounding up so
// the remaining shares are never left covering understated debt.
func (e *Engine) ComponentRedeemHook(caller ethcommon.Address, t *basket.Token, shareQuantity *big.Int, component ethcommon.Address, isEquity bool) error {
	if err := modcommon.InitializedModuleCaller(t, caller); err != nil {
		return err
	}
	if isEquity {
		return ErrEquityLegNotSupported
	}
	unit := t.ExternalPositionRealUnit(component, e.address)
	if unit.Sign() >= 0 {
		return nil
	}
	repay := precise.MulCeil(shareQuantity, new(big.Int).Neg(unit))
	return e.repayBorrow(t, component, repay)
}

// updatePositions refreshes the two legs touched by a lever or delever.
func (e *Engine) updatePositions(t *basket.Token, collateralAsset, borrowAsset ethcommon.Address, supply *big.Int) error {
	if err := e.syncCollateralUnit(t, collateralAsset, supply); err != nil {
		return err
	}
	return e.syncBorrowUnit(t, borrowAsset, supply)
}

// syncCollateralUnit writes the receipt token's default unit as the floor
// of the receipt balance over supply.
func (e *Engine) syncCollateralUnit(t *basket.Token, asset ethcommon.Address, supply *big.Int) error {
	reserve, err := e.reserveFor(asset)
	if err != nil {
		return err
	}
	balance, err := e.balances.BalanceOf(reserve.ReceiptToken, t.Address())
	if err != nil {
		return err
	}
	unit, err := precise.Div(balance, supply)
	if err != nil {
		return err
	}
	return e.writeDefaultUnit(t, reserve.ReceiptToken, unit)
}

// syncBorrowUnit writes the borrow asset's external unit as the negated
// debt balance over supply, rounded away from zero. Understating debt would
// let redeemers exit without carrying their share of it.
func (e *Engine) syncBorrowUnit(t *basket.Token, asset ethcommon.Address, supply *big.Int) error {
	debt, err := e.debtBalance(t, asset)
	if err != nil {
		return err
	}
	perShare, err := precise.DivCeil(debt, supply)
	if err != nil {
		return err
	}
	return e.writeExternalUnit(t, asset, perShare.Neg(perShare))
}

// syncDefaultFromBalance writes a token's default unit from its raw basket
// balance.
func (e *Engine) syncDefaultFromBalance(t *basket.Token, token ethcommon.Address, supply *big.Int) error {
	balance, err := e.balances.BalanceOf(token, t.Address())
	if err != nil {
		return err
	}
	unit, err := precise.Div(balance, supply)
	if err != nil {
		return err
	}
	return e.writeDefaultUnit(t, token, unit)
}

func (e *Engine) writeDefaultUnit(t *basket.Token, component ethcommon.Address, unit *big.Int) error {
	if !t.IsComponent(component) {
		if unit.Sign() == 0 {
			return nil
		}
		if err := t.AddComponent(e.address, component); err != nil {
			return err
		}
	}
	if t.DefaultPositionRealUnit(component).Cmp(unit) == 0 {
		return nil
	}
	return t.EditDefaultPositionUnit(e.address, component, unit)
}

func (e *Engine) writeExternalUnit(t *basket.Token, component ethcommon.Address, unit *big.Int) error {
	if !e.externalRegistered(t, component) {
		if unit.Sign() == 0 {
			return nil
		}
		if !t.IsComponent(component) {
			if err := t.AddComponent(e.address, component); err != nil {
				return err
			}
		}
		if err := t.AddExternalPositionModule(e.address, component, e.address); err != nil {
			return err
		}
	}
	if t.ExternalPositionRealUnit(component, e.address).Cmp(unit) == 0 {
		return nil
	}
	return t.EditExternalPositionUnit(e.address, component, e.address, unit)
}

func (e *Engine) externalRegistered(t *basket.Token, component ethcommon.Address) bool {
	for _, module := range t.ExternalPositionModules(component) {
		if module == e.address {
			return true
		}
	}
	return false
}
