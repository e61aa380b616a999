package leverage

import (
	"errors"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	modcommon "basketcore/modules/common"
	"basketcore/precise"
)

func TestLeverBorrowsTradesAndDeposits(t *testing.T) {
	f := newLevFixture(t)

	f.lever()

	received := milli(9970)
	fee := precise.Mul(received, milli(1))
	deposited := new(big.Int).Sub(received, fee)

	wantReceipt := new(big.Int).Add(unitsOf(1), deposited)
	if got := f.token.DefaultPositionRealUnit(f.wethOnLend); got.Cmp(wantReceipt) != 0 {
		t.Fatalf("receipt unit = %s, want %s", got, wantReceipt)
	}
	wantDebt := new(big.Int).Neg(unitsOf(10))
	if got := f.token.ExternalPositionRealUnit(f.usd, f.engine.Address()); got.Cmp(wantDebt) != 0 {
		t.Fatalf("debt unit = %s, want %s", got, wantDebt)
	}
	if got := f.basketBalance(f.usd); got.Sign() != 0 {
		t.Fatalf("borrowed usd left in basket: %s", got)
	}
	if got := f.basketBalance(f.weth); got.Sign() != 0 {
		t.Fatalf("weth left undeposited: %s", got)
	}
	feeBal, err := f.world.BalanceOf(f.weth, f.feeRecipient)
	if err != nil {
		t.Fatalf("fee balance: %v", err)
	}
	if feeBal.Cmp(fee) != 0 {
		t.Fatalf("fee recipient got %s, want %s", feeBal, fee)
	}
	if n := f.eventCount(EventTypeLevered); n != 1 {
		t.Fatalf("levered events = %d, want 1", n)
	}
}

func TestLeverSlippageFloor(t *testing.T) {
	f := newLevFixture(t)

	f.adapter.receive = milli(9800)
	err := f.engine.Lever(f.manager, f.token, f.usd, f.weth, unitsOf(10), milli(9900), adapterName, nil)
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("lever err = %v, want ErrSlippageExceeded", err)
	}
	if n := f.eventCount(EventTypeLevered); n != 0 {
		t.Fatalf("levered events after failed lever = %d", n)
	}
}

func TestLeverValidations(t *testing.T) {
	f := newLevFixture(t)
	f.adapter.receive = milli(9970)

	err := f.engine.Lever(f.holder, f.token, f.usd, f.weth, unitsOf(10), milli(9900), adapterName, nil)
	if !errors.Is(err, modcommon.ErrNotManager) {
		t.Fatalf("non-manager lever err = %v", err)
	}

	err = f.engine.Lever(f.manager, f.token, f.usd, f.usd, unitsOf(10), milli(9900), adapterName, nil)
	if !errors.Is(err, ErrSameAsset) {
		t.Fatalf("same-asset lever err = %v", err)
	}

	other := testAddr(0x77)
	err = f.engine.Lever(f.manager, f.token, other, f.weth, unitsOf(10), milli(9900), adapterName, nil)
	if !errors.Is(err, ErrBorrowNotEnabled) {
		t.Fatalf("disabled borrow asset err = %v", err)
	}
	err = f.engine.Lever(f.manager, f.token, f.usd, other, unitsOf(10), milli(9900), adapterName, nil)
	if !errors.Is(err, ErrCollateralNotEnabled) {
		t.Fatalf("disabled collateral asset err = %v", err)
	}

	err = f.engine.Lever(f.manager, f.token, f.usd, f.weth, new(big.Int), milli(9900), adapterName, nil)
	if !errors.Is(err, ErrZeroQuantity) {
		t.Fatalf("zero quantity err = %v", err)
	}

	err = f.engine.Lever(f.manager, f.token, f.usd, f.weth, unitsOf(10), milli(9900), "unknown", nil)
	if !errors.Is(err, modcommon.ErrAdapterNotFound) {
		t.Fatalf("unknown adapter err = %v", err)
	}
}

func TestLeverRequiresSupply(t *testing.T) {
	f := newLevFixture(t)

	if err := f.token.Burn(f.engine.Address(), f.holder, unitsOf(1)); err != nil {
		t.Fatalf("burn supply: %v", err)
	}
	f.adapter.receive = milli(9970)
	err := f.engine.Lever(f.manager, f.token, f.usd, f.weth, unitsOf(10), milli(9900), adapterName, nil)
	if !errors.Is(err, ErrZeroSupply) {
		t.Fatalf("lever on empty basket err = %v", err)
	}
}

func TestDeleverRepaysNetOfFee(t *testing.T) {
	f := newLevFixture(t)
	f.lever()

	f.adapter.receive = milli(5200)
	err := f.engine.Delever(f.manager, f.token, f.weth, f.usd, unitsOf(5), unitsOf(5), adapterName, nil)
	if err != nil {
		t.Fatalf("delever: %v", err)
	}

	received := milli(5200)
	fee := precise.Mul(received, milli(1))
	repaid := new(big.Int).Sub(received, fee)

	// receipt shrank by the withdrawn 5 units
	leverDeposit := new(big.Int).Sub(milli(9970), precise.Mul(milli(9970), milli(1)))
	wantReceipt := new(big.Int).Add(unitsOf(1), leverDeposit)
	wantReceipt.Sub(wantReceipt, unitsOf(5))
	if got := f.token.DefaultPositionRealUnit(f.wethOnLend); got.Cmp(wantReceipt) != 0 {
		t.Fatalf("receipt unit = %s, want %s", got, wantReceipt)
	}

	wantDebt := new(big.Int).Sub(unitsOf(10), repaid)
	wantDebt.Neg(wantDebt)
	if got := f.token.ExternalPositionRealUnit(f.usd, f.engine.Address()); got.Cmp(wantDebt) != 0 {
		t.Fatalf("debt unit = %s, want %s", got, wantDebt)
	}
	if n := f.eventCount(EventTypeDelevered); n != 1 {
		t.Fatalf("delevered events = %d, want 1", n)
	}
}

func TestDeleverToZeroBorrowBalance(t *testing.T) {
	f := newLevFixture(t)
	f.lever()

	feeBefore, err := f.world.BalanceOf(f.usd, f.feeRecipient)
	if err != nil {
		t.Fatalf("fee balance: %v", err)
	}

	f.adapter.receive = milli(10050)
	err = f.engine.DeleverToZeroBorrowBalance(f.manager, f.token, f.weth, f.usd, milli(10200), adapterName, nil)
	if err != nil {
		t.Fatalf("delever to zero: %v", err)
	}

	debt, err := f.world.BalanceOf(f.usdDebt, f.token.Address())
	if err != nil {
		t.Fatalf("debt balance: %v", err)
	}
	if debt.Sign() != 0 {
		t.Fatalf("debt after full delever = %s", debt)
	}
	if got := f.token.ExternalPositionRealUnit(f.usd, f.engine.Address()); got.Sign() != 0 {
		t.Fatalf("debt unit after full delever = %s", got)
	}

	// 10.05 received against 10 debt leaves 0.05 usd as a default gain
	if got := f.token.DefaultPositionRealUnit(f.usd); got.Cmp(milli(50)) != 0 {
		t.Fatalf("usd default unit = %s, want %s", got, milli(50))
	}

	// no protocol fee on the full unwind
	feeAfter, err := f.world.BalanceOf(f.usd, f.feeRecipient)
	if err != nil {
		t.Fatalf("fee balance: %v", err)
	}
	if feeAfter.Cmp(feeBefore) != 0 {
		t.Fatalf("fee charged on full unwind: %s -> %s", feeBefore, feeAfter)
	}
}

func TestDeleverToZeroWithNoDebtIsNoop(t *testing.T) {
	f := newLevFixture(t)

	before := f.token.DefaultPositionRealUnit(f.wethOnLend)
	err := f.engine.DeleverToZeroBorrowBalance(f.manager, f.token, f.weth, f.usd, unitsOf(1), adapterName, nil)
	if err != nil {
		t.Fatalf("delever to zero without debt: %v", err)
	}
	if got := f.token.DefaultPositionRealUnit(f.wethOnLend); got.Cmp(before) != 0 {
		t.Fatalf("receipt unit changed: %s -> %s", before, got)
	}
}

func TestActionsRequireInitializedEngine(t *testing.T) {
	f := newLevFixture(t)

	stranger := testAddr(0x99)

	f.registry.RemoveBasket(f.token.Address())
	err := f.engine.Lever(f.manager, f.token, f.usd, f.weth, unitsOf(1), unitsOf(1), adapterName, nil)
	if !errors.Is(err, modcommon.ErrInvalidBasket) {
		t.Fatalf("lever on deregistered basket err = %v", err)
	}
	f.registry.AddBasket(f.token.Address())

	err = f.engine.AddBorrowAssets(stranger, f.token, nil)
	if !errors.Is(err, modcommon.ErrNotManager) {
		t.Fatalf("add borrow assets by stranger err = %v", err)
	}
}

func TestFailedInitializeLeavesModulePending(t *testing.T) {
	f := newLevFixture(t)

	second := NewEngine(testAddr(0x47), f.registry, f.market, f.world)
	f.registry.AddModule(second.Address())
	if err := f.token.AddModule(f.manager, second); err != nil {
		t.Fatalf("add module: %v", err)
	}

	err := second.Initialize(f.manager, f.token, []ethcommon.Address{f.weth, f.weth}, nil)
	if !errors.Is(err, ErrAssetEnabled) {
		t.Fatalf("duplicate collateral err = %v", err)
	}
	if !f.token.IsPendingModule(second.Address()) {
		t.Fatalf("module left %v after rejected initialize", f.token.ModuleState(second.Address()))
	}
	if assets := second.CollateralAssets(f.token); assets != nil {
		t.Fatalf("collateral assets after rejected initialize = %v", assets)
	}

	inactive := testAddr(0x0F)
	err = second.Initialize(f.manager, f.token, []ethcommon.Address{f.weth}, []ethcommon.Address{inactive})
	if !errors.Is(err, ErrReserveNotActive) {
		t.Fatalf("inactive borrow reserve err = %v", err)
	}
	if !f.token.IsPendingModule(second.Address()) {
		t.Fatalf("module left %v after rejected initialize", f.token.ModuleState(second.Address()))
	}

	if err := second.Initialize(f.manager, f.token, []ethcommon.Address{f.weth}, []ethcommon.Address{f.usd}); err != nil {
		t.Fatalf("initialize after rejections: %v", err)
	}
	if !f.token.IsInitializedModule(second.Address()) {
		t.Fatalf("module not initialized")
	}
}

func TestNilSlippageFloorMeansNoMinimum(t *testing.T) {
	f := newLevFixture(t)

	f.adapter.receive = milli(9970)
	if err := f.engine.Lever(f.manager, f.token, f.usd, f.weth, unitsOf(10), nil, adapterName, nil); err != nil {
		t.Fatalf("lever with nil floor: %v", err)
	}

	f.adapter.receive = unitsOf(6)
	if err := f.engine.Delever(f.manager, f.token, f.weth, f.usd, unitsOf(5), nil, adapterName, nil); err != nil {
		t.Fatalf("delever with nil floor: %v", err)
	}
}
