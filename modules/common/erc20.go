package common

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// BalanceView reads live token balances from the outside world. On chain
// this is an ERC20 balanceOf call; tests substitute a map-backed stub.
type BalanceView interface {
	BalanceOf(token, holder ethcommon.Address) (*big.Int, error)
}

var (
	transferSelector     = ethcrypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
	transferFromSelector = ethcrypto.Keccak256([]byte("transferFrom(address,address,uint256)"))[:4]
	approveSelector      = ethcrypto.Keccak256([]byte("approve(address,uint256)"))[:4]
)

func packAddressAmount(selector []byte, addr ethcommon.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+64)
	data = append(data, selector...)
	data = append(data, ethcommon.LeftPadBytes(addr.Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

// TransferCalldata builds an ERC20 transfer payload for the basket to
// execute against the token contract via Invoke.
func TransferCalldata(to ethcommon.Address, amount *big.Int) []byte {
	return packAddressAmount(transferSelector, to, amount)
}

// ApproveCalldata builds an ERC20 approve payload granting spender an
// allowance of amount.
func ApproveCalldata(spender ethcommon.Address, amount *big.Int) []byte {
	return packAddressAmount(approveSelector, spender, amount)
}

// TransferFromCalldata builds an ERC20 transferFrom payload moving amount
// from one holder to another against a prior allowance.
func TransferFromCalldata(from, to ethcommon.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+96)
	data = append(data, transferFromSelector...)
	data = append(data, ethcommon.LeftPadBytes(from.Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}
