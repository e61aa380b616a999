package leverage

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"basketcore/addrset"
)

// ReserveTokens caches the lending market's token pair for one underlying:
// the interest-bearing receipt token minted on deposit and the debt token
// tracking what the depositor owes.
type ReserveTokens struct {
	ReceiptToken ethcommon.Address
	DebtToken    ethcommon.Address
}

// LendingMarket is the external lending collaborator. Mutations are
// expressed as call payloads for the basket to execute through Invoke, so
// every state change originates from the basket's own identity; reads are
// direct views.
type LendingMarket interface {
	// Spender is the address that must hold an allowance before deposits
	// and repayments can pull funds from the basket.
	Spender() ethcommon.Address

	DepositCalldata(asset ethcommon.Address, amount *big.Int) (ethcommon.Address, *big.Int, []byte, error)
	WithdrawCalldata(asset ethcommon.Address, amount *big.Int) (ethcommon.Address, *big.Int, []byte, error)
	BorrowCalldata(asset ethcommon.Address, amount *big.Int, rateMode uint8) (ethcommon.Address, *big.Int, []byte, error)
	RepayCalldata(asset ethcommon.Address, amount *big.Int, rateMode uint8) (ethcommon.Address, *big.Int, []byte, error)
	SetUseAsCollateralCalldata(asset ethcommon.Address, enabled bool) (ethcommon.Address, *big.Int, []byte, error)

	ReserveTokens(asset ethcommon.Address) (ReserveTokens, error)
	IsReserveActive(asset ethcommon.Address) (bool, error)
}

// ExchangeAdapter produces trade payloads for a named exchange. The
// returned target/value/calldata triple is executed through the basket's
// Invoke; Spender is where the send token allowance must sit.
type ExchangeAdapter interface {
	Spender() ethcommon.Address
	TradeCalldata(sendToken, receiveToken, to ethcommon.Address, sendQuantity, minReceiveQuantity *big.Int, data []byte) (ethcommon.Address, *big.Int, []byte, error)
}

// basketState is the engine's bookkeeping for one basket: which assets the
// manager enabled for each leg.
type basketState struct {
	collateralAssets *addrset.Set
	borrowAssets     *addrset.Set
}

func newBasketState() *basketState {
	return &basketState{
		collateralAssets: addrset.New(),
		borrowAssets:     addrset.New(),
	}
}
