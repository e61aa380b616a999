package leverage

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"basketcore/addrset"
	"basketcore/basket"
)

// RegisterReserve caches the lending market's receipt and debt tokens for
// an underlying. Open to anyone and idempotent; re-registering refreshes
// the cache.
func (e *Engine) RegisterReserve(asset ethcommon.Address) error {
	active, err := e.market.IsReserveActive(asset)
	if err != nil {
		return err
	}
	if !active {
		return ErrReserveNotActive
	}
	reserve, err := e.market.ReserveTokens(asset)
	if err != nil {
		return err
	}
	e.reserves[asset] = reserve
	e.emitter.Emit(newReserveRegisteredEvent(asset, reserve))
	return nil
}

// AddCollateralAssets enables underlyings as collateral for the basket and
// flags them as collateral on the lending market.
func (e *Engine) AddCollateralAssets(caller ethcommon.Address, t *basket.Token, assets []ethcommon.Address) error {
	state, err := e.actionState(caller, t)
	if err != nil {
		return err
	}
	return e.enableCollateralAssets(t, state, assets)
}

// RemoveCollateralAssets disables collateral underlyings and clears their
// collateral flag on the market. The receipt position itself is untouched.
func (e *Engine) RemoveCollateralAssets(caller ethcommon.Address, t *basket.Token, assets []ethcommon.Address) error {
	state, err := e.actionState(caller, t)
	if err != nil {
		return err
	}
	for _, asset := range assets {
		if err := state.collateralAssets.Remove(asset); err != nil {
			return fmt.Errorf("%w: %s", ErrAssetNotEnabled, asset.Hex())
		}
		target, value, data, berr := e.market.SetUseAsCollateralCalldata(asset, false)
		if err := e.invokeMarket(t, target, value, data, berr); err != nil {
			return err
		}
	}
	return nil
}

// AddBorrowAssets enables underlyings for borrowing.
func (e *Engine) AddBorrowAssets(caller ethcommon.Address, t *basket.Token, assets []ethcommon.Address) error {
	state, err := e.actionState(caller, t)
	if err != nil {
		return err
	}
	return e.enableBorrowAssets(state, assets)
}

// RemoveBorrowAssets disables borrow underlyings. An asset with debt still
// outstanding cannot be removed.
func (e *Engine) RemoveBorrowAssets(caller ethcommon.Address, t *basket.Token, assets []ethcommon.Address) error {
	state, err := e.actionState(caller, t)
	if err != nil {
		return err
	}
	for _, asset := range assets {
		debt, err := e.debtBalance(t, asset)
		if err != nil {
			return err
		}
		if debt.Sign() != 0 {
			return fmt.Errorf("%w: %s", ErrDebtRemaining, asset.Hex())
		}
		if err := state.borrowAssets.Remove(asset); err != nil {
			return fmt.Errorf("%w: %s", ErrAssetNotEnabled, asset.Hex())
		}
		if err := e.clearExternalRegistration(t, asset); err != nil {
			return err
		}
	}
	return nil
}

// CollateralAssets reports the enabled collateral underlyings for a basket.
func (e *Engine) CollateralAssets(t *basket.Token) []ethcommon.Address {
	state, ok := e.baskets[t.Address()]
	if !ok {
		return nil
	}
	return state.collateralAssets.Elements()
}

// BorrowAssets reports the enabled borrow underlyings for a basket.
func (e *Engine) BorrowAssets(t *basket.Token) []ethcommon.Address {
	state, ok := e.baskets[t.Address()]
	if !ok {
		return nil
	}
	return state.borrowAssets.Elements()
}

// RemoveHook is the basket's teardown callback. Removal is refused while
// any enabled borrow asset still carries debt; on success all market
// collateral flags are cleared and the engine forgets the basket.
func (e *Engine) RemoveHook(t *basket.Token) error {
	state, ok := e.baskets[t.Address()]
	if !ok {
		return ErrBasketNotManaged
	}
	if err := e.Sync(t); err != nil {
		return err
	}
	for _, asset := range state.borrowAssets.Elements() {
		debt, err := e.debtBalance(t, asset)
		if err != nil {
			return err
		}
		if debt.Sign() != 0 {
			return fmt.Errorf("%w: %s", ErrDebtRemaining, asset.Hex())
		}
		if err := e.clearExternalRegistration(t, asset); err != nil {
			return err
		}
	}
	for _, asset := range state.collateralAssets.Elements() {
		target, value, data, berr := e.market.SetUseAsCollateralCalldata(asset, false)
		if err := e.invokeMarket(t, target, value, data, berr); err != nil {
			return err
		}
	}
	delete(e.baskets, t.Address())
	return nil
}

// enableCollateralAssets stages the additions against a copy of the set so
// a rejected asset leaves the enabled list untouched, then publishes the
// copy and flags the assets on the market.
func (e *Engine) enableCollateralAssets(t *basket.Token, state *basketState, assets []ethcommon.Address) error {
	staged := state.collateralAssets.Clone()
	if err := e.stageAssets(staged, assets); err != nil {
		return err
	}
	state.collateralAssets = staged
	return e.flagCollateral(t, assets)
}

func (e *Engine) enableBorrowAssets(state *basketState, assets []ethcommon.Address) error {
	staged := state.borrowAssets.Clone()
	if err := e.stageAssets(staged, assets); err != nil {
		return err
	}
	state.borrowAssets = staged
	return nil
}

// stageAssets resolves each underlying's reserve and adds it to the set,
// rejecting assets that are already enabled or lack an active reserve.
func (e *Engine) stageAssets(set *addrset.Set, assets []ethcommon.Address) error {
	for _, asset := range assets {
		if err := e.ensureReserve(asset); err != nil {
			return err
		}
		if err := set.Add(asset); err != nil {
			return fmt.Errorf("%w: %s", ErrAssetEnabled, asset.Hex())
		}
	}
	return nil
}

func (e *Engine) flagCollateral(t *basket.Token, assets []ethcommon.Address) error {
	for _, asset := range assets {
		target, value, data, berr := e.market.SetUseAsCollateralCalldata(asset, true)
		if err := e.invokeMarket(t, target, value, data, berr); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) ensureReserve(asset ethcommon.Address) error {
	if _, ok := e.reserves[asset]; ok {
		return nil
	}
	return e.RegisterReserve(asset)
}

// clearExternalRegistration drops this engine's external position record
// for a component once its debt has been fully repaid.
func (e *Engine) clearExternalRegistration(t *basket.Token, component ethcommon.Address) error {
	if !e.externalRegistered(t, component) {
		return nil
	}
	return t.RemoveExternalPositionModule(e.address, component, e.address)
}

var _ basket.Module = (*Engine)(nil)
