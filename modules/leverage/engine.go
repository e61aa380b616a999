// Package leverage implements a lending-market leverage module for basket
// tokens. The engine borrows against deposited collateral, trades the
// borrowed asset into more collateral through a registered exchange adapter
// and keeps the basket's default and external position units in step with
// the market's receipt and debt balances.
package leverage

import (
	"errors"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"basketcore/basket"
	"basketcore/events"
	modcommon "basketcore/modules/common"
	"basketcore/precise"
	"basketcore/registry"
)

var (
	ErrBasketNotManaged      = errors.New("leverage: basket not managed by engine")
	ErrCollateralNotEnabled  = errors.New("leverage: collateral asset not enabled")
	ErrBorrowNotEnabled      = errors.New("leverage: borrow asset not enabled")
	ErrSameAsset             = errors.New("leverage: collateral and borrow asset must differ")
	ErrZeroSupply            = errors.New("leverage: basket has no supply")
	ErrZeroQuantity          = errors.New("leverage: quantity must be positive")
	ErrSlippageExceeded      = errors.New("leverage: received below minimum")
	ErrAdapterUnknown        = errors.New("leverage: exchange adapter not registered")
	ErrReserveNotActive      = errors.New("leverage: reserve not active")
	ErrReserveNotRegistered  = errors.New("leverage: reserve not registered")
	ErrAssetEnabled          = errors.New("leverage: asset already enabled")
	ErrAssetNotEnabled       = errors.New("leverage: asset not enabled")
	ErrDebtRemaining         = errors.New("leverage: borrow balance outstanding")
	ErrEquityLegNotSupported = errors.New("leverage: equity settlement not supported")
)

const (
	protocolFeeIndex = 0

	// variable interest rate mode on the lending market
	variableRateMode uint8 = 2
)

// Engine is the leverage module. One engine instance serves any number of
// baskets; per-basket asset configuration is kept in basketState.
type Engine struct {
	address  ethcommon.Address
	registry registry.Registry
	market   LendingMarket
	balances modcommon.BalanceView
	emitter  events.Emitter

	adapters map[ethcommon.Address]ExchangeAdapter
	reserves map[ethcommon.Address]ReserveTokens
	baskets  map[ethcommon.Address]*basketState
}

// NewEngine wires a leverage engine against one lending market. The
// balances view reads live token balances at the market's receipt and debt
// tokens as well as the underlyings.
func NewEngine(address ethcommon.Address, reg registry.Registry, market LendingMarket, balances modcommon.BalanceView) *Engine {
	return &Engine{
		address:  address,
		registry: reg,
		market:   market,
		balances: balances,
		emitter:  events.NoopEmitter{},
		adapters: make(map[ethcommon.Address]ExchangeAdapter),
		reserves: make(map[ethcommon.Address]ReserveTokens),
		baskets:  make(map[ethcommon.Address]*basketState),
	}
}

func (e *Engine) Address() ethcommon.Address { return e.address }

// SetEmitter replaces the engine's event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// RegisterExchangeAdapter makes an adapter implementation reachable at the
// address the registry resolves for its name.
func (e *Engine) RegisterExchangeAdapter(addr ethcommon.Address, adapter ExchangeAdapter) {
	e.adapters[addr] = adapter
}

// Initialize moves the engine from pending to initialized on the basket and
// records the manager's initial collateral and borrow asset lists. Both
// lists are validated and staged in full before the lifecycle transition,
// so a rejected asset leaves the module pending and the engine unchanged.
func (e *Engine) Initialize(caller ethcommon.Address, t *basket.Token, collateralAssets, borrowAssets []ethcommon.Address) error {
	if err := modcommon.ValidManagerCaller(e.registry, t, caller); err != nil {
		return err
	}
	if err := modcommon.PendingInitialization(e.registry, t, e.address); err != nil {
		return err
	}
	state := newBasketState()
	if err := e.stageAssets(state.collateralAssets, collateralAssets); err != nil {
		return err
	}
	if err := e.stageAssets(state.borrowAssets, borrowAssets); err != nil {
		return err
	}
	if err := t.InitializeModule(e.address); err != nil {
		return err
	}
	e.baskets[t.Address()] = state
	return e.flagCollateral(t, collateralAssets)
}

// Lever borrows borrowUnits-per-share of borrowAsset, trades the proceeds
// into collateralAsset through the named adapter and deposits the result
// back into the lending market. minReceiveUnits is the per-share slippage
// floor on the trade output.
func (e *Engine) Lever(caller ethcommon.Address, t *basket.Token, borrowAsset, collateralAsset ethcommon.Address, borrowUnits, minReceiveUnits *big.Int, adapterName string, tradeData []byte) error {
	state, err := e.actionState(caller, t)
	if err != nil {
		return err
	}
	if err := e.validateLegs(state, collateralAsset, borrowAsset); err != nil {
		return err
	}
	supply, err := e.requireSupply(t)
	if err != nil {
		return err
	}
	notionalBorrow, err := notional(borrowUnits, supply)
	if err != nil {
		return err
	}
	if minReceiveUnits == nil {
		minReceiveUnits = big.NewInt(0)
	}
	minReceive := precise.Mul(minReceiveUnits, supply)

	target, value, data, berr := e.market.BorrowCalldata(borrowAsset, notionalBorrow, variableRateMode)
	if err := e.invokeMarket(t, target, value, data, berr); err != nil {
		return err
	}
	received, err := e.executeTrade(t, adapterName, borrowAsset, collateralAsset, notionalBorrow, minReceive, tradeData)
	if err != nil {
		return err
	}
	fee, err := e.accrueProtocolFee(t, collateralAsset, received)
	if err != nil {
		return err
	}
	deposit := new(big.Int).Sub(received, fee)
	if err := e.approveMarket(t, collateralAsset, deposit); err != nil {
		return err
	}
	target, value, data, berr = e.market.DepositCalldata(collateralAsset, deposit)
	if err := e.invokeMarket(t, target, value, data, berr); err != nil {
		return err
	}
	if err := e.updatePositions(t, collateralAsset, borrowAsset, supply); err != nil {
		return err
	}
	e.emitter.Emit(newLeveredEvent(t.Address(), borrowAsset, collateralAsset, notionalBorrow, received, fee))
	return nil
}

// Delever withdraws redeemUnits-per-share of collateral, trades it into the
// borrowed asset and repays debt with the proceeds net of the protocol fee.
func (e *Engine) Delever(caller ethcommon.Address, t *basket.Token, collateralAsset, repayAsset ethcommon.Address, redeemUnits, minRepayUnits *big.Int, adapterName string, tradeData []byte) error {
	state, err := e.actionState(caller, t)
	if err != nil {
		return err
	}
	if err := e.validateLegs(state, collateralAsset, repayAsset); err != nil {
		return err
	}
	supply, err := e.requireSupply(t)
	if err != nil {
		return err
	}
	notionalRedeem, err := notional(redeemUnits, supply)
	if err != nil {
		return err
	}
	if minRepayUnits == nil {
		minRepayUnits = big.NewInt(0)
	}
	minRepay := precise.Mul(minRepayUnits, supply)

	target, value, data, berr := e.market.WithdrawCalldata(collateralAsset, notionalRedeem)
	if err := e.invokeMarket(t, target, value, data, berr); err != nil {
		return err
	}
	received, err := e.executeTrade(t, adapterName, collateralAsset, repayAsset, notionalRedeem, minRepay, tradeData)
	if err != nil {
		return err
	}
	fee, err := e.accrueProtocolFee(t, repayAsset, received)
	if err != nil {
		return err
	}
	repay := new(big.Int).Sub(received, fee)
	if err := e.repayBorrow(t, repayAsset, repay); err != nil {
		return err
	}
	if err := e.updatePositions(t, collateralAsset, repayAsset, supply); err != nil {
		return err
	}
	e.emitter.Emit(newDeleveredEvent(t.Address(), collateralAsset, repayAsset, notionalRedeem, repay, fee))
	return nil
}

// DeleverToZeroBorrowBalance unwinds the repayAsset debt completely. The
// outstanding debt balance doubles as the trade's slippage floor, no
// protocol fee is taken, and any trade output beyond the debt stays in the
// basket as a default position gain.
func (e *Engine) DeleverToZeroBorrowBalance(caller ethcommon.Address, t *basket.Token, collateralAsset, repayAsset ethcommon.Address, redeemUnits *big.Int, adapterName string, tradeData []byte) error {
	state, err := e.actionState(caller, t)
	if err != nil {
		return err
	}
	if err := e.validateLegs(state, collateralAsset, repayAsset); err != nil {
		return err
	}
	supply, err := e.requireSupply(t)
	if err != nil {
		return err
	}
	notionalRedeem, err := notional(redeemUnits, supply)
	if err != nil {
		return err
	}
	debt, err := e.debtBalance(t, repayAsset)
	if err != nil {
		return err
	}
	if debt.Sign() == 0 {
		return nil
	}

	target, value, data, berr := e.market.WithdrawCalldata(collateralAsset, notionalRedeem)
	if err := e.invokeMarket(t, target, value, data, berr); err != nil {
		return err
	}
	if _, err := e.executeTrade(t, adapterName, collateralAsset, repayAsset, notionalRedeem, debt, tradeData); err != nil {
		return err
	}
	if err := e.repayBorrow(t, repayAsset, debt); err != nil {
		return err
	}
	if err := e.updatePositions(t, collateralAsset, repayAsset, supply); err != nil {
		return err
	}
	// Trade output beyond the debt stays in the basket as spendable
	// repayAsset, so attribute it to the default position.
	if err := e.syncDefaultFromBalance(t, repayAsset, supply); err != nil {
		return err
	}
	e.emitter.Emit(newDeleveredEvent(t.Address(), collateralAsset, repayAsset, notionalRedeem, debt, new(big.Int)))
	return nil
}

func (e *Engine) actionState(caller ethcommon.Address, t *basket.Token) (*basketState, error) {
	if err := modcommon.ValidManagerCaller(e.registry, t, caller); err != nil {
		return nil, err
	}
	if err := modcommon.ValidAndInitialized(e.registry, t, e.address); err != nil {
		return nil, err
	}
	state, ok := e.baskets[t.Address()]
	if !ok {
		return nil, ErrBasketNotManaged
	}
	return state, nil
}

func (e *Engine) validateLegs(state *basketState, collateralAsset, borrowAsset ethcommon.Address) error {
	if collateralAsset == borrowAsset {
		return ErrSameAsset
	}
	if !state.collateralAssets.Contains(collateralAsset) {
		return ErrCollateralNotEnabled
	}
	if !state.borrowAssets.Contains(borrowAsset) {
		return ErrBorrowNotEnabled
	}
	return nil
}

func (e *Engine) requireSupply(t *basket.Token) (*big.Int, error) {
	supply := t.TotalSupply()
	if supply.Sign() == 0 {
		return nil, ErrZeroSupply
	}
	return supply, nil
}

func notional(units, supply *big.Int) (*big.Int, error) {
	if units == nil || units.Sign() <= 0 {
		return nil, ErrZeroQuantity
	}
	return precise.Mul(units, supply), nil
}

// invokeMarket executes a lending market payload through the basket.
func (e *Engine) invokeMarket(t *basket.Token, target ethcommon.Address, value *big.Int, data []byte, builderErr error) error {
	if builderErr != nil {
		return builderErr
	}
	_, err := t.Invoke(e.address, target, value, data)
	return err
}

func (e *Engine) approveMarket(t *basket.Token, token ethcommon.Address, amount *big.Int) error {
	_, err := t.Invoke(e.address, token, nil, modcommon.ApproveCalldata(e.market.Spender(), amount))
	return err
}

// executeTrade resolves the named adapter, grants it an allowance on the
// send token and runs the swap, returning the receive token delta observed
// at the basket. A delta below minReceive fails with ErrSlippageExceeded.
func (e *Engine) executeTrade(t *basket.Token, adapterName string, sendToken, receiveToken ethcommon.Address, sendQuantity, minReceive *big.Int, tradeData []byte) (*big.Int, error) {
	adapterAddr, err := modcommon.LookupAdapter(e.registry, e.address, adapterName)
	if err != nil {
		return nil, err
	}
	adapter, ok := e.adapters[adapterAddr]
	if !ok {
		return nil, ErrAdapterUnknown
	}
	if _, err := t.Invoke(e.address, sendToken, nil, modcommon.ApproveCalldata(adapter.Spender(), sendQuantity)); err != nil {
		return nil, err
	}
	before, err := e.balances.BalanceOf(receiveToken, t.Address())
	if err != nil {
		return nil, err
	}
	target, value, data, err := adapter.TradeCalldata(sendToken, receiveToken, t.Address(), sendQuantity, minReceive, tradeData)
	if err != nil {
		return nil, err
	}
	if _, err := t.Invoke(e.address, target, value, data); err != nil {
		return nil, err
	}
	after, err := e.balances.BalanceOf(receiveToken, t.Address())
	if err != nil {
		return nil, err
	}
	received := new(big.Int).Sub(after, before)
	if received.Cmp(minReceive) < 0 {
		return nil, ErrSlippageExceeded
	}
	return received, nil
}

// accrueProtocolFee computes the registry fee on the traded notional and
// pays it to the fee recipient from the basket.
func (e *Engine) accrueProtocolFee(t *basket.Token, token ethcommon.Address, notionalQuantity *big.Int) (*big.Int, error) {
	fee := modcommon.Fee(e.registry, e.address, protocolFeeIndex, notionalQuantity)
	if err := modcommon.PayFeeFromBasket(e.registry, t, e.balances, e.address, token, fee); err != nil {
		return nil, err
	}
	return fee, nil
}

func (e *Engine) repayBorrow(t *basket.Token, repayAsset ethcommon.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := e.approveMarket(t, repayAsset, amount); err != nil {
		return err
	}
	target, value, data, err := e.market.RepayCalldata(repayAsset, amount, variableRateMode)
	return e.invokeMarket(t, target, value, data, err)
}

func (e *Engine) reserveFor(asset ethcommon.Address) (ReserveTokens, error) {
	reserve, ok := e.reserves[asset]
	if !ok {
		return ReserveTokens{}, ErrReserveNotRegistered
	}
	return reserve, nil
}

func (e *Engine) debtBalance(t *basket.Token, asset ethcommon.Address) (*big.Int, error) {
	reserve, err := e.reserveFor(asset)
	if err != nil {
		return nil, err
	}
	return e.balances.BalanceOf(reserve.DebtToken, t.Address())
}
