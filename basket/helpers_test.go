package basket

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"basketcore/events"
	"basketcore/precise"
	"basketcore/registry"
)

func testAddr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func unitsOf(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), precise.Unit())
}

type recordedCall struct {
	from   common.Address
	target common.Address
	value  *big.Int
	data   []byte
}

type stubExecutor struct {
	calls   []recordedCall
	results map[common.Address][]byte
	fail    error
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{results: make(map[common.Address][]byte)}
}

func (s *stubExecutor) Execute(from, target common.Address, value *big.Int, data []byte) ([]byte, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	s.calls = append(s.calls, recordedCall{
		from:   from,
		target: target,
		value:  new(big.Int).Set(value),
		data:   append([]byte(nil), data...),
	})
	return s.results[target], nil
}

type stubModule struct {
	addr       common.Address
	removeErr  error
	removed    int
	removeFunc func(t *Token) error
}

func (m *stubModule) Address() common.Address { return m.addr }

func (m *stubModule) RemoveHook(t *Token) error {
	m.removed++
	if m.removeFunc != nil {
		return m.removeFunc(t)
	}
	return m.removeErr
}

type fixture struct {
	token    *Token
	registry *registry.Static
	executor *stubExecutor
	recorder *events.Recorder
	manager  common.Address
}

// newFixture builds a basket with components tokenA (1.0/share) and tokenB
// (2.0/share) and the given modules registered and pending.
func newFixture(t *testing.T, modules ...Module) *fixture {
	t.Helper()

	reg := registry.NewStatic()
	for _, m := range modules {
		reg.AddModule(m.Address())
	}

	exec := newStubExecutor()
	rec := &events.Recorder{}
	manager := testAddr(0xEE)

	token, err := New(Config{
		Address:  testAddr(0xBB),
		Name:     "Test Basket",
		Symbol:   "TBX",
		Manager:  manager,
		Registry: reg,
		Executor: exec,
		Emitter:  rec,
		Components: []Component{
			{Address: testAddr(0x0A), Unit: unitsOf(1)},
			{Address: testAddr(0x0B), Unit: unitsOf(2)},
		},
		Modules: modules,
	})
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	reg.AddBasket(token.Address())

	return &fixture{token: token, registry: reg, executor: exec, recorder: rec, manager: manager}
}

// initModule drives a pending module to initialized through the self-call
// entry point.
func (f *fixture) initModule(t *testing.T, module common.Address) {
	t.Helper()
	if err := f.token.InitializeModule(module); err != nil {
		t.Fatalf("initialize module %s: %v", module.Hex(), err)
	}
}

func (f *fixture) lastEvent(t *testing.T) *events.Event {
	t.Helper()
	evts := f.recorder.Events()
	if len(evts) == 0 {
		t.Fatal("no events recorded")
	}
	return evts[len(evts)-1]
}

func tokenA() common.Address { return testAddr(0x0A) }
func tokenB() common.Address { return testAddr(0x0B) }
