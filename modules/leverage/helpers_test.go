package leverage

import (
	"bytes"
	"fmt"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"basketcore/basket"
	"basketcore/events"
	"basketcore/registry"
)

func testAddr(b byte) ethcommon.Address {
	var a ethcommon.Address
	a[19] = b
	return a
}

func unitsOf(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// milli returns n/1000 expressed in 18-decimal fixed point.
func milli(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e15))
}

var erc20TransferSelector = ethcrypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

// world simulates ERC20 balances plus the side effects of calls the basket
// invokes. Collaborator stubs register an effect closure per payload; the
// executor looks the payload up and applies it. Plain ERC20 transfers are
// decoded from their calldata so fee payments move real balances.
type world struct {
	balances map[ethcommon.Address]map[ethcommon.Address]*big.Int
	effects  map[string]func() error
	seq      int
}

func newWorld() *world {
	return &world{
		balances: make(map[ethcommon.Address]map[ethcommon.Address]*big.Int),
		effects:  make(map[string]func() error),
	}
}

func (w *world) BalanceOf(token, holder ethcommon.Address) (*big.Int, error) {
	if m, ok := w.balances[token]; ok {
		if v, ok := m[holder]; ok {
			return new(big.Int).Set(v), nil
		}
	}
	return new(big.Int), nil
}

func (w *world) set(token, holder ethcommon.Address, v *big.Int) {
	m, ok := w.balances[token]
	if !ok {
		m = make(map[ethcommon.Address]*big.Int)
		w.balances[token] = m
	}
	m[holder] = new(big.Int).Set(v)
}

func (w *world) add(token, holder ethcommon.Address, delta *big.Int) error {
	cur, _ := w.BalanceOf(token, holder)
	next := new(big.Int).Add(cur, delta)
	if next.Sign() < 0 {
		return fmt.Errorf("world: balance of %s at %s below zero", token.Hex(), holder.Hex())
	}
	w.set(token, holder, next)
	return nil
}

func (w *world) sub(token, holder ethcommon.Address, delta *big.Int) error {
	return w.add(token, holder, new(big.Int).Neg(delta))
}

// effect registers a closure and returns the opaque payload that triggers
// it when executed.
func (w *world) effect(fn func() error) []byte {
	w.seq++
	data := []byte(fmt.Sprintf("effect:%d", w.seq))
	w.effects[string(data)] = fn
	return data
}

func (w *world) Execute(from, target ethcommon.Address, value *big.Int, data []byte) ([]byte, error) {
	if fn, ok := w.effects[string(data)]; ok {
		return nil, fn()
	}
	if len(data) == 68 && bytes.Equal(data[:4], erc20TransferSelector) {
		to := ethcommon.BytesToAddress(data[16:36])
		amount := new(big.Int).SetBytes(data[36:68])
		if err := w.sub(target, from, amount); err != nil {
			return nil, err
		}
		return nil, w.add(target, to, amount)
	}
	// approvals and collateral flag calls have no balance effect
	return nil, nil
}

type stubMarket struct {
	w      *world
	pool   ethcommon.Address
	basket ethcommon.Address

	reserves map[ethcommon.Address]ReserveTokens
	active   map[ethcommon.Address]bool
}

func (m *stubMarket) Spender() ethcommon.Address { return m.pool }

func (m *stubMarket) DepositCalldata(asset ethcommon.Address, amount *big.Int) (ethcommon.Address, *big.Int, []byte, error) {
	amt := new(big.Int).Set(amount)
	reserve := m.reserves[asset]
	data := m.w.effect(func() error {
		if err := m.w.sub(asset, m.basket, amt); err != nil {
			return err
		}
		return m.w.add(reserve.ReceiptToken, m.basket, amt)
	})
	return m.pool, nil, data, nil
}

func (m *stubMarket) WithdrawCalldata(asset ethcommon.Address, amount *big.Int) (ethcommon.Address, *big.Int, []byte, error) {
	amt := new(big.Int).Set(amount)
	reserve := m.reserves[asset]
	data := m.w.effect(func() error {
		if err := m.w.sub(reserve.ReceiptToken, m.basket, amt); err != nil {
			return err
		}
		return m.w.add(asset, m.basket, amt)
	})
	return m.pool, nil, data, nil
}

func (m *stubMarket) BorrowCalldata(asset ethcommon.Address, amount *big.Int, _ uint8) (ethcommon.Address, *big.Int, []byte, error) {
	amt := new(big.Int).Set(amount)
	reserve := m.reserves[asset]
	data := m.w.effect(func() error {
		if err := m.w.add(asset, m.basket, amt); err != nil {
			return err
		}
		return m.w.add(reserve.DebtToken, m.basket, amt)
	})
	return m.pool, nil, data, nil
}

func (m *stubMarket) RepayCalldata(asset ethcommon.Address, amount *big.Int, _ uint8) (ethcommon.Address, *big.Int, []byte, error) {
	amt := new(big.Int).Set(amount)
	reserve := m.reserves[asset]
	data := m.w.effect(func() error {
		if err := m.w.sub(asset, m.basket, amt); err != nil {
			return err
		}
		return m.w.sub(reserve.DebtToken, m.basket, amt)
	})
	return m.pool, nil, data, nil
}

func (m *stubMarket) SetUseAsCollateralCalldata(asset ethcommon.Address, enabled bool) (ethcommon.Address, *big.Int, []byte, error) {
	return m.pool, nil, m.w.effect(func() error { return nil }), nil
}

func (m *stubMarket) ReserveTokens(asset ethcommon.Address) (ReserveTokens, error) {
	reserve, ok := m.reserves[asset]
	if !ok {
		return ReserveTokens{}, fmt.Errorf("stub market: no reserve for %s", asset.Hex())
	}
	return reserve, nil
}

func (m *stubMarket) IsReserveActive(asset ethcommon.Address) (bool, error) {
	return m.active[asset], nil
}

// stubAdapter swaps the full send quantity for a preconfigured output.
type stubAdapter struct {
	w       *world
	addr    ethcommon.Address
	receive *big.Int
}

func (a *stubAdapter) Spender() ethcommon.Address { return a.addr }

func (a *stubAdapter) TradeCalldata(sendToken, receiveToken, to ethcommon.Address, sendQuantity, _ *big.Int, _ []byte) (ethcommon.Address, *big.Int, []byte, error) {
	out := new(big.Int).Set(a.receive)
	sendQty := new(big.Int).Set(sendQuantity)
	data := a.w.effect(func() error {
		if err := a.w.sub(sendToken, to, sendQty); err != nil {
			return err
		}
		return a.w.add(receiveToken, to, out)
	})
	return a.addr, nil, data, nil
}

// peerModule stands in for an issuance module so the hook entry points can
// be exercised with an initialized caller.
type peerModule struct {
	addr ethcommon.Address
}

func (m *peerModule) Address() ethcommon.Address { return m.addr }

func (m *peerModule) RemoveHook(*basket.Token) error { return nil }

type levFixture struct {
	t *testing.T

	world    *world
	registry *registry.Static
	market   *stubMarket
	adapter  *stubAdapter
	engine   *Engine
	token    *basket.Token
	recorder *events.Recorder

	manager      ethcommon.Address
	holder       ethcommon.Address
	feeRecipient ethcommon.Address
	issuance     *peerModule

	usd        ethcommon.Address
	usdDebt    ethcommon.Address
	weth       ethcommon.Address
	wethOnLend ethcommon.Address
	wethDebt   ethcommon.Address
}

const adapterName = "dex"

// newLevFixture builds a basket holding one share and one unit of the
// lending market's weth receipt token, with the engine initialized for
// weth collateral and usd borrowing. The protocol fee is 0.1%.
func newLevFixture(t *testing.T) *levFixture {
	t.Helper()

	f := &levFixture{
		t:            t,
		world:        newWorld(),
		registry:     registry.NewStatic(),
		recorder:     &events.Recorder{},
		manager:      testAddr(0xEE),
		holder:       testAddr(0xAA),
		feeRecipient: testAddr(0xFE),
		usd:          testAddr(0x01),
		usdDebt:      testAddr(0x11),
		weth:         testAddr(0x02),
		wethOnLend:   testAddr(0x12),
		wethDebt:     testAddr(0x22),
	}

	basketAddr := testAddr(0xBB)
	engineAddr := testAddr(0x44)
	adapterAddr := testAddr(0x51)
	poolAddr := testAddr(0x50)

	f.market = &stubMarket{
		w:      f.world,
		pool:   poolAddr,
		basket: basketAddr,
		reserves: map[ethcommon.Address]ReserveTokens{
			f.usd:  {ReceiptToken: testAddr(0x21), DebtToken: f.usdDebt},
			f.weth: {ReceiptToken: f.wethOnLend, DebtToken: f.wethDebt},
		},
		active: map[ethcommon.Address]bool{f.usd: true, f.weth: true},
	}
	f.adapter = &stubAdapter{w: f.world, addr: adapterAddr}

	f.registry.AddModule(engineAddr)
	f.registry.AddBasket(basketAddr)
	f.registry.SetAdapter(engineAddr, adapterName, adapterAddr)
	f.registry.SetModuleFee(engineAddr, protocolFeeIndex, milli(1))
	f.registry.SetFeeRecipient(f.feeRecipient)

	f.engine = NewEngine(engineAddr, f.registry, f.market, f.world)
	f.engine.RegisterExchangeAdapter(adapterAddr, f.adapter)
	f.engine.SetEmitter(f.recorder)

	token, err := basket.New(basket.Config{
		Address:    basketAddr,
		Name:       "Levered ETH",
		Symbol:     "LETH",
		Manager:    f.manager,
		Registry:   f.registry,
		Executor:   f.world,
		Emitter:    f.recorder,
		Components: []basket.Component{{Address: f.wethOnLend, Unit: unitsOf(1)}},
		Modules:    []basket.Module{f.engine},
	})
	if err != nil {
		t.Fatalf("new basket: %v", err)
	}
	f.token = token

	if err := f.engine.Initialize(f.manager, token, []ethcommon.Address{f.weth}, []ethcommon.Address{f.usd}); err != nil {
		t.Fatalf("initialize engine: %v", err)
	}

	f.world.set(f.wethOnLend, basketAddr, unitsOf(1))
	if err := token.Mint(f.engine.Address(), f.holder, unitsOf(1)); err != nil {
		t.Fatalf("mint supply: %v", err)
	}

	f.issuance = &peerModule{addr: testAddr(0x45)}
	f.registry.AddModule(f.issuance.addr)
	if err := token.AddModule(f.manager, f.issuance); err != nil {
		t.Fatalf("add issuance module: %v", err)
	}
	if err := token.InitializeModule(f.issuance.addr); err != nil {
		t.Fatalf("initialize issuance module: %v", err)
	}
	return f
}

// lever runs the canonical levering used across tests: borrow 10 usd per
// share with a 9.9 floor while the adapter pays out 9.97 weth.
func (f *levFixture) lever() {
	f.t.Helper()
	f.adapter.receive = milli(9970)
	err := f.engine.Lever(f.manager, f.token, f.usd, f.weth, unitsOf(10), milli(9900), adapterName, nil)
	if err != nil {
		f.t.Fatalf("lever: %v", err)
	}
}

func (f *levFixture) basketBalance(token ethcommon.Address) *big.Int {
	f.t.Helper()
	bal, err := f.world.BalanceOf(token, f.token.Address())
	if err != nil {
		f.t.Fatalf("balance of %s: %v", token.Hex(), err)
	}
	return bal
}

func (f *levFixture) eventCount(eventType string) int {
	n := 0
	for _, evt := range f.recorder.Events() {
		if evt.Type == eventType {
			n++
		}
	}
	return n
}
