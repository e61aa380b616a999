package basket

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"basketcore/events"
)

const (
	EventTypeInvoked               = "basket.invoked"
	EventTypeComponentAdded        = "basket.component.added"
	EventTypeComponentRemoved      = "basket.component.removed"
	EventTypeDefaultUnitEdited     = "basket.position.default_unit_edited"
	EventTypeExternalUnitEdited    = "basket.position.external_unit_edited"
	EventTypeExternalDataEdited    = "basket.position.external_data_edited"
	EventTypeExternalModuleAdded   = "basket.position.module_added"
	EventTypeExternalModuleRemoved = "basket.position.module_removed"
	EventTypeMultiplierEdited      = "basket.position.multiplier_edited"
	EventTypeModuleAdded           = "basket.module.added"
	EventTypeModuleInitialized     = "basket.module.initialized"
	EventTypeModuleRemoved         = "basket.module.removed"
	EventTypePendingModuleRemoved  = "basket.module.pending_removed"
	EventTypeLocked                = "basket.locked"
	EventTypeUnlocked              = "basket.unlocked"
	EventTypeManagerEdited         = "basket.manager_edited"
	EventTypeSharesMinted          = "basket.shares.minted"
	EventTypeSharesBurned          = "basket.shares.burned"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newEvent(eventType string, basket common.Address, attrs map[string]string) *events.Event {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	attrs["basket"] = basket.Hex()
	return &events.Event{Type: eventType, Attributes: attrs}
}

func newInvokedEvent(basket, caller, target common.Address, value *big.Int, data, result []byte) *events.Event {
	return newEvent(EventTypeInvoked, basket, map[string]string{
		"caller": caller.Hex(),
		"target": target.Hex(),
		"value":  formatAmount(value),
		"data":   hexutil.Encode(data),
		"result": hexutil.Encode(result),
	})
}

func newComponentAddedEvent(basket, component common.Address) *events.Event {
	return newEvent(EventTypeComponentAdded, basket, map[string]string{
		"component": component.Hex(),
	})
}

func newComponentRemovedEvent(basket, component common.Address) *events.Event {
	return newEvent(EventTypeComponentRemoved, basket, map[string]string{
		"component": component.Hex(),
	})
}

func newDefaultUnitEditedEvent(basket, component common.Address, realUnit *big.Int) *events.Event {
	return newEvent(EventTypeDefaultUnitEdited, basket, map[string]string{
		"component": component.Hex(),
		"realUnit":  formatAmount(realUnit),
	})
}

func newExternalUnitEditedEvent(basket, component, module common.Address, realUnit *big.Int) *events.Event {
	return newEvent(EventTypeExternalUnitEdited, basket, map[string]string{
		"component": component.Hex(),
		"module":    module.Hex(),
		"realUnit":  formatAmount(realUnit),
	})
}

func newExternalDataEditedEvent(basket, component, module common.Address) *events.Event {
	return newEvent(EventTypeExternalDataEdited, basket, map[string]string{
		"component": component.Hex(),
		"module":    module.Hex(),
	})
}

func newExternalModuleAddedEvent(basket, component, module common.Address) *events.Event {
	return newEvent(EventTypeExternalModuleAdded, basket, map[string]string{
		"component": component.Hex(),
		"module":    module.Hex(),
	})
}

func newExternalModuleRemovedEvent(basket, component, module common.Address) *events.Event {
	return newEvent(EventTypeExternalModuleRemoved, basket, map[string]string{
		"component": component.Hex(),
		"module":    module.Hex(),
	})
}

func newMultiplierEditedEvent(basket common.Address, multiplier *big.Int) *events.Event {
	return newEvent(EventTypeMultiplierEdited, basket, map[string]string{
		"multiplier": formatAmount(multiplier),
	})
}

func newModuleAddedEvent(basket, module common.Address) *events.Event {
	return newEvent(EventTypeModuleAdded, basket, map[string]string{
		"module": module.Hex(),
	})
}

func newModuleInitializedEvent(basket, module common.Address) *events.Event {
	return newEvent(EventTypeModuleInitialized, basket, map[string]string{
		"module": module.Hex(),
	})
}

func newModuleRemovedEvent(basket, module common.Address) *events.Event {
	return newEvent(EventTypeModuleRemoved, basket, map[string]string{
		"module": module.Hex(),
	})
}

func newPendingModuleRemovedEvent(basket, module common.Address) *events.Event {
	return newEvent(EventTypePendingModuleRemoved, basket, map[string]string{
		"module": module.Hex(),
	})
}

func newLockedEvent(basket, locker common.Address) *events.Event {
	return newEvent(EventTypeLocked, basket, map[string]string{
		"locker": locker.Hex(),
	})
}

func newUnlockedEvent(basket, locker common.Address) *events.Event {
	return newEvent(EventTypeUnlocked, basket, map[string]string{
		"locker": locker.Hex(),
	})
}

func newManagerEditedEvent(basket, previous, next common.Address) *events.Event {
	return newEvent(EventTypeManagerEdited, basket, map[string]string{
		"previousManager": previous.Hex(),
		"newManager":      next.Hex(),
	})
}

func newMintedEvent(basket, account common.Address, quantity *big.Int) *events.Event {
	return newEvent(EventTypeSharesMinted, basket, map[string]string{
		"account":  account.Hex(),
		"quantity": formatAmount(quantity),
	})
}

func newBurnedEvent(basket, account common.Address, quantity *big.Int) *events.Event {
	return newEvent(EventTypeSharesBurned, basket, map[string]string{
		"account":  account.Hex(),
		"quantity": formatAmount(quantity),
	})
}
