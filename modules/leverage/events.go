package leverage

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"basketcore/events"
)

const (
	EventTypeLevered           = "leverage.levered"
	EventTypeDelevered         = "leverage.delevered"
	EventTypeReserveRegistered = "leverage.reserve_registered"
)

func newLeveredEvent(basket, borrowAsset, collateralAsset ethcommon.Address, borrowed, received, fee *big.Int) *events.Event {
	return &events.Event{
		Type: EventTypeLevered,
		Attributes: map[string]string{
			"basket":          basket.Hex(),
			"borrowAsset":     borrowAsset.Hex(),
			"collateralAsset": collateralAsset.Hex(),
			"borrowed":        borrowed.String(),
			"received":        received.String(),
			"fee":             fee.String(),
		},
	}
}

func newDeleveredEvent(basket, collateralAsset, repayAsset ethcommon.Address, redeemed, repaid, fee *big.Int) *events.Event {
	return &events.Event{
		Type: EventTypeDelevered,
		Attributes: map[string]string{
			"basket":          basket.Hex(),
			"collateralAsset": collateralAsset.Hex(),
			"repayAsset":      repayAsset.Hex(),
			"redeemed":        redeemed.String(),
			"repaid":          repaid.String(),
			"fee":             fee.String(),
		},
	}
}

func newReserveRegisteredEvent(asset ethcommon.Address, reserve ReserveTokens) *events.Event {
	return &events.Event{
		Type: EventTypeReserveRegistered,
		Attributes: map[string]string{
			"asset":        asset.Hex(),
			"receiptToken": reserve.ReceiptToken.Hex(),
			"debtToken":    reserve.DebtToken.Hex(),
		},
	}
}
