package registry

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type adapterKey struct {
	module common.Address
	name   string
}

type feeKey struct {
	module common.Address
	index  uint8
}

// Static is an in-memory Registry with explicit registration methods. The
// daemon and the test suites use it in place of the external governance
// contract.
type Static struct {
	mu           sync.RWMutex
	modules      map[common.Address]bool
	baskets      map[common.Address]bool
	adapters     map[adapterKey]common.Address
	fees         map[feeKey]*big.Int
	feeRecipient common.Address
}

// NewStatic returns an empty static registry.
func NewStatic() *Static {
	return &Static{
		modules:  make(map[common.Address]bool),
		baskets:  make(map[common.Address]bool),
		adapters: make(map[adapterKey]common.Address),
		fees:     make(map[feeKey]*big.Int),
	}
}

func (s *Static) AddModule(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[addr] = true
}

func (s *Static) RemoveModule(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.modules, addr)
}

func (s *Static) AddBasket(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baskets[addr] = true
}

func (s *Static) RemoveBasket(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.baskets, addr)
}

// SetAdapter registers (or overwrites) the adapter serving module under name.
func (s *Static) SetAdapter(module common.Address, name string, adapter common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[adapterKey{module: module, name: name}] = adapter
}

// SetModuleFee registers the precise-unit fee percentage for a module fee index.
func (s *Static) SetModuleFee(module common.Address, feeIndex uint8, fee *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fee == nil {
		delete(s.fees, feeKey{module: module, index: feeIndex})
		return
	}
	s.fees[feeKey{module: module, index: feeIndex}] = new(big.Int).Set(fee)
}

func (s *Static) SetFeeRecipient(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeRecipient = addr
}

func (s *Static) IsModule(addr common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modules[addr]
}

func (s *Static) IsBasket(addr common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baskets[addr]
}

func (s *Static) Adapter(module common.Address, name string) (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	adapter, ok := s.adapters[adapterKey{module: module, name: name}]
	return adapter, ok
}

func (s *Static) ModuleFee(module common.Address, feeIndex uint8) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fee, ok := s.fees[feeKey{module: module, index: feeIndex}]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(fee)
}

func (s *Static) FeeRecipient() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feeRecipient
}
