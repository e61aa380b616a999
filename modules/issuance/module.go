package issuance

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"basketcore/basket"
	"basketcore/events"
	modcommon "basketcore/modules/common"
	"basketcore/precise"
	"basketcore/registry"
)

const (
	EventTypeIssued   = "issuance.issued"
	EventTypeRedeemed = "issuance.redeemed"
)

// Module is a basic issuance module: shares are minted against a pro-rata
// transfer-in of every default component and redeemed against the reverse
// transfer-out. The multi-step sequence runs under the basket lock so no
// other module can interleave position edits with the transfers.
type Module struct {
	address  ethcommon.Address
	registry registry.Registry
	balances modcommon.BalanceView
	emitter  events.Emitter
}

func NewModule(address ethcommon.Address, reg registry.Registry, balances modcommon.BalanceView) *Module {
	return &Module{
		address:  address,
		registry: reg,
		balances: balances,
		emitter:  events.NoopEmitter{},
	}
}

func (m *Module) Address() ethcommon.Address { return m.address }

// SetEmitter replaces the module's event sink.
func (m *Module) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	m.emitter = emitter
}

// Initialize transitions the module from pending to initialized.
func (m *Module) Initialize(caller ethcommon.Address, t *basket.Token) error {
	if err := modcommon.ValidManagerCaller(m.registry, t, caller); err != nil {
		return err
	}
	if err := modcommon.PendingInitialization(m.registry, t, m.address); err != nil {
		return err
	}
	return t.InitializeModule(m.address)
}

// RemoveHook keeps no per-basket state, so teardown always succeeds.
func (m *Module) RemoveHook(*basket.Token) error { return nil }

// Issue mints quantity shares to recipient after pulling each default
// component's pro-rata amount from the issuer. Component amounts round up
// so minted shares are always fully backed.
func (m *Module) Issue(caller ethcommon.Address, t *basket.Token, quantity *big.Int, recipient ethcommon.Address) error {
	if err := m.validateAction(t, quantity, recipient); err != nil {
		return err
	}
	if err := t.Lock(m.address); err != nil {
		return err
	}
	err := m.issueLocked(caller, t, quantity, recipient)
	if unlockErr := t.Unlock(m.address); err == nil {
		err = unlockErr
	}
	return err
}

func (m *Module) issueLocked(caller ethcommon.Address, t *basket.Token, quantity *big.Int, recipient ethcommon.Address) error {
	for _, component := range t.Components() {
		unit := t.DefaultPositionRealUnit(component)
		if unit.Sign() <= 0 {
			continue
		}
		amount := precise.MulCeil(unit, quantity)
		if amount.Sign() == 0 {
			continue
		}
		if _, err := t.Invoke(m.address, component, nil, modcommon.TransferFromCalldata(caller, t.Address(), amount)); err != nil {
			return err
		}
	}
	if err := t.Mint(m.address, recipient, quantity); err != nil {
		return err
	}
	if err := m.validateBacking(t); err != nil {
		return err
	}
	m.emitter.Emit(newIssuedEvent(t.Address(), caller, recipient, quantity))
	return nil
}

// Redeem burns quantity shares from the caller and pays out each default
// component's pro-rata amount to recipient. Component amounts round down
// so the remaining shares are never left short.
func (m *Module) Redeem(caller ethcommon.Address, t *basket.Token, quantity *big.Int, recipient ethcommon.Address) error {
	if err := m.validateAction(t, quantity, recipient); err != nil {
		return err
	}
	if err := t.Lock(m.address); err != nil {
		return err
	}
	err := m.redeemLocked(caller, t, quantity, recipient)
	if unlockErr := t.Unlock(m.address); err == nil {
		err = unlockErr
	}
	return err
}

func (m *Module) redeemLocked(caller ethcommon.Address, t *basket.Token, quantity *big.Int, recipient ethcommon.Address) error {
	if err := t.Burn(m.address, caller, quantity); err != nil {
		return err
	}
	for _, component := range t.Components() {
		unit := t.DefaultPositionRealUnit(component)
		if unit.Sign() <= 0 {
			continue
		}
		amount := precise.Mul(unit, quantity)
		if amount.Sign() == 0 {
			continue
		}
		if _, err := t.Invoke(m.address, component, nil, modcommon.TransferCalldata(recipient, amount)); err != nil {
			return err
		}
	}
	if err := m.validateBacking(t); err != nil {
		return err
	}
	m.emitter.Emit(newRedeemedEvent(t.Address(), caller, recipient, quantity))
	return nil
}

func (m *Module) validateAction(t *basket.Token, quantity *big.Int, recipient ethcommon.Address) error {
	if err := modcommon.ValidAndInitialized(m.registry, t, m.address); err != nil {
		return err
	}
	if quantity == nil || quantity.Sign() <= 0 {
		return ErrZeroQuantity
	}
	if recipient == (ethcommon.Address{}) {
		return ErrRecipientZeroAddress
	}
	return nil
}

func (m *Module) validateBacking(t *basket.Token) error {
	var firstErr error
	for _, component := range t.Components() {
		if t.DefaultPositionRealUnit(component).Sign() <= 0 {
			continue
		}
		if err := ValidateCollateralization(m.balances, t, component); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func newIssuedEvent(basketAddr, issuer, recipient ethcommon.Address, quantity *big.Int) *events.Event {
	return &events.Event{
		Type: EventTypeIssued,
		Attributes: map[string]string{
			"basket":    basketAddr.Hex(),
			"issuer":    issuer.Hex(),
			"recipient": recipient.Hex(),
			"quantity":  quantity.String(),
		},
	}
}

func newRedeemedEvent(basketAddr, redeemer, recipient ethcommon.Address, quantity *big.Int) *events.Event {
	return &events.Event{
		Type: EventTypeRedeemed,
		Attributes: map[string]string{
			"basket":    basketAddr.Hex(),
			"redeemer":  redeemer.Hex(),
			"recipient": recipient.Hex(),
			"quantity":  quantity.String(),
		},
	}
}

var _ basket.Module = (*Module)(nil)
