package basket

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"basketcore/precise"
)

// PositionKind distinguishes how a component balance is held.
type PositionKind uint8

const (
	// KindDefault marks a balance custodied directly by the basket.
	KindDefault PositionKind = iota
	// KindExternal marks a balance attributed to a module, possibly
	// negative to represent debt.
	KindExternal
)

func (k PositionKind) String() string {
	switch k {
	case KindDefault:
		return "default"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Position is one entry of the enumerable snapshot consumed by external
// valuers. Units are real units (virtual unit with the multiplier applied).
type Position struct {
	Component common.Address
	Module    common.Address // zero address for default positions
	Unit      *big.Int
	Data      []byte
	Kind      PositionKind
}

// AddComponent registers a new component with an empty position record.
func (t *Token) AddComponent(caller, component common.Address) error {
	if err := t.validateModuleCaller(caller); err != nil {
		return err
	}
	if component == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := t.components.Add(component); err != nil {
		return ErrDuplicateComponent
	}
	t.positions[component] = newComponentPosition()
	t.emit(newComponentAddedEvent(t.address, component))
	return nil
}

// RemoveComponent drops a component and its position record. Removal is by
// value with swap-and-pop semantics, so enumeration order of the remaining
// components may change.
func (t *Token) RemoveComponent(caller, component common.Address) error {
	if err := t.validateModuleCaller(caller); err != nil {
		return err
	}
	if err := t.components.Remove(component); err != nil {
		return ErrComponentNotFound
	}
	delete(t.positions, component)
	t.emit(newComponentRemovedEvent(t.address, component))
	return nil
}

// Components returns the component addresses in enumeration order.
func (t *Token) Components() []common.Address {
	return t.components.Elements()
}

// IsComponent reports whether the asset is a registered component.
func (t *Token) IsComponent(component common.Address) bool {
	return t.components.Contains(component)
}

// virtualUnitFromReal converts a real unit to multiplier-independent
// virtual terms, rejecting any conversion that silently truncates a
// nonzero unit to zero in either direction.
func (t *Token) virtualUnitFromReal(realUnit *big.Int) (*big.Int, error) {
	virtual, err := precise.Div(realUnit, t.positionMultiplier)
	if err != nil {
		return nil, err
	}
	if realUnit.Sign() != 0 {
		if virtual.Sign() == 0 {
			return nil, ErrPositionRounding
		}
		if precise.Mul(virtual, t.positionMultiplier).Sign() == 0 {
			return nil, ErrPositionRounding
		}
	}
	return virtual, nil
}

func (t *Token) realUnitFromVirtual(virtualUnit *big.Int) *big.Int {
	return precise.Mul(virtualUnit, t.positionMultiplier)
}

// EditDefaultPositionUnit sets the component's default position from a real
// unit. The component must already be registered.
func (t *Token) EditDefaultPositionUnit(caller, component common.Address, realUnit *big.Int) error {
	if err := t.validateModuleCaller(caller); err != nil {
		return err
	}
	pos, ok := t.positions[component]
	if !ok {
		return ErrComponentNotFound
	}
	if realUnit == nil {
		realUnit = big.NewInt(0)
	}
	virtual, err := t.virtualUnitFromReal(realUnit)
	if err != nil {
		return err
	}
	pos.virtualUnit = virtual
	t.emit(newDefaultUnitEditedEvent(t.address, component, realUnit))
	return nil
}

// AddExternalPositionModule registers a module against a component's
// external position list. The entry exists independently of whether the
// module's unit is currently zero.
func (t *Token) AddExternalPositionModule(caller, component, module common.Address) error {
	if err := t.validateModuleCaller(caller); err != nil {
		return err
	}
	pos, ok := t.positions[component]
	if !ok {
		return ErrComponentNotFound
	}
	if err := pos.externalModules.Add(module); err != nil {
		return ErrExternalModuleExists
	}
	pos.external[module] = &externalPosition{virtualUnit: big.NewInt(0)}
	t.emit(newExternalModuleAddedEvent(t.address, component, module))
	return nil
}

// RemoveExternalPositionModule deregisters a module from a component and
// deletes the associated position record.
func (t *Token) RemoveExternalPositionModule(caller, component, module common.Address) error {
	if err := t.validateModuleCaller(caller); err != nil {
		return err
	}
	pos, ok := t.positions[component]
	if !ok {
		return ErrComponentNotFound
	}
	if err := pos.externalModules.Remove(module); err != nil {
		return ErrExternalModuleAbsent
	}
	delete(pos.external, module)
	t.emit(newExternalModuleRemovedEvent(t.address, component, module))
	return nil
}

// EditExternalPositionUnit sets a module's external position on a component
// from a real unit. Negative units represent debt. The module must have
// been registered via AddExternalPositionModule first.
func (t *Token) EditExternalPositionUnit(caller, component, module common.Address, realUnit *big.Int) error {
	if err := t.validateModuleCaller(caller); err != nil {
		return err
	}
	pos, ok := t.positions[component]
	if !ok {
		return ErrComponentNotFound
	}
	ext, ok := pos.external[module]
	if !ok {
		return ErrExternalModuleAbsent
	}
	if realUnit == nil {
		realUnit = big.NewInt(0)
	}
	virtual, err := t.virtualUnitFromReal(realUnit)
	if err != nil {
		return err
	}
	ext.virtualUnit = virtual
	t.emit(newExternalUnitEditedEvent(t.address, component, module, realUnit))
	return nil
}

// EditExternalPositionData replaces the opaque blob a module keeps on a
// component position.
func (t *Token) EditExternalPositionData(caller, component, module common.Address, data []byte) error {
	if err := t.validateModuleCaller(caller); err != nil {
		return err
	}
	pos, ok := t.positions[component]
	if !ok {
		return ErrComponentNotFound
	}
	ext, ok := pos.external[module]
	if !ok {
		return ErrExternalModuleAbsent
	}
	ext.data = append([]byte(nil), data...)
	t.emit(newExternalDataEditedEvent(t.address, component, module))
	return nil
}

// EditPositionMultiplier rebases every stored virtual unit at once. The
// scan over all default and external positions guarantees the new
// multiplier cannot erase the smallest-magnitude position through integer
// truncation.
func (t *Token) EditPositionMultiplier(caller common.Address, newMultiplier *big.Int) error {
	if err := t.validateModuleCaller(caller); err != nil {
		return err
	}
	if newMultiplier == nil || newMultiplier.Sign() <= 0 {
		return ErrMultiplierTooSmall
	}
	if minVirtual := t.minAbsoluteVirtualUnit(); minVirtual != nil {
		if precise.Mul(minVirtual, newMultiplier).Sign() == 0 {
			return ErrMultiplierTooSmall
		}
	}
	t.positionMultiplier = new(big.Int).Set(newMultiplier)
	t.emit(newMultiplierEditedEvent(t.address, newMultiplier))
	return nil
}

// minAbsoluteVirtualUnit returns the smallest nonzero |virtual unit| across
// every default and external position, or nil when no position is set.
func (t *Token) minAbsoluteVirtualUnit() *big.Int {
	var minAbs *big.Int
	consider := func(v *big.Int) {
		if v == nil || v.Sign() == 0 {
			return
		}
		abs := new(big.Int).Abs(v)
		if minAbs == nil || abs.Cmp(minAbs) < 0 {
			minAbs = abs
		}
	}
	for _, component := range t.components.Elements() {
		pos := t.positions[component]
		if pos == nil {
			continue
		}
		consider(pos.virtualUnit)
		for _, module := range pos.externalModules.Elements() {
			if ext := pos.external[module]; ext != nil {
				consider(ext.virtualUnit)
			}
		}
	}
	return minAbs
}

// PositionMultiplier returns the current global multiplier.
func (t *Token) PositionMultiplier() *big.Int {
	return new(big.Int).Set(t.positionMultiplier)
}

// DefaultPositionVirtualUnit returns the stored multiplier-independent
// default unit for a component.
func (t *Token) DefaultPositionVirtualUnit(component common.Address) *big.Int {
	if pos, ok := t.positions[component]; ok {
		return new(big.Int).Set(pos.virtualUnit)
	}
	return big.NewInt(0)
}

// DefaultPositionRealUnit returns the per-share default unit with the
// multiplier applied.
func (t *Token) DefaultPositionRealUnit(component common.Address) *big.Int {
	if pos, ok := t.positions[component]; ok {
		return t.realUnitFromVirtual(pos.virtualUnit)
	}
	return big.NewInt(0)
}

// ExternalPositionRealUnit returns a module's per-share external unit with
// the multiplier applied; negative values are debt.
func (t *Token) ExternalPositionRealUnit(component, module common.Address) *big.Int {
	if pos, ok := t.positions[component]; ok {
		if ext, ok := pos.external[module]; ok {
			return t.realUnitFromVirtual(ext.virtualUnit)
		}
	}
	return big.NewInt(0)
}

// ExternalPositionData returns a copy of the opaque blob stored for the
// (component, module) pair.
func (t *Token) ExternalPositionData(component, module common.Address) []byte {
	if pos, ok := t.positions[component]; ok {
		if ext, ok := pos.external[module]; ok {
			return append([]byte(nil), ext.data...)
		}
	}
	return nil
}

// ExternalPositionModules returns the modules registered against a
// component, in registration order.
func (t *Token) ExternalPositionModules(component common.Address) []common.Address {
	if pos, ok := t.positions[component]; ok {
		return pos.externalModules.Elements()
	}
	return nil
}

// TotalComponentRealUnits sums the default real unit and every external
// real unit for a component; external debt subtracts.
func (t *Token) TotalComponentRealUnits(component common.Address) *big.Int {
	pos, ok := t.positions[component]
	if !ok {
		return big.NewInt(0)
	}
	total := t.realUnitFromVirtual(pos.virtualUnit)
	for _, module := range pos.externalModules.Elements() {
		if ext := pos.external[module]; ext != nil {
			total.Add(total, t.realUnitFromVirtual(ext.virtualUnit))
		}
	}
	return total
}

// Positions produces the deterministic snapshot: components in enumeration
// order, the default position first when its real unit is nonzero, then one
// entry per registered external-position module in registration order.
func (t *Token) Positions() []Position {
	var out []Position
	for _, component := range t.components.Elements() {
		pos := t.positions[component]
		if pos == nil {
			continue
		}
		if defaultUnit := t.realUnitFromVirtual(pos.virtualUnit); defaultUnit.Sign() != 0 {
			out = append(out, Position{
				Component: component,
				Unit:      defaultUnit,
				Kind:      KindDefault,
			})
		}
		for _, module := range pos.externalModules.Elements() {
			ext := pos.external[module]
			if ext == nil {
				continue
			}
			out = append(out, Position{
				Component: component,
				Module:    module,
				Unit:      t.realUnitFromVirtual(ext.virtualUnit),
				Data:      append([]byte(nil), ext.data...),
				Kind:      KindExternal,
			})
		}
	}
	return out
}
