package precise

import (
	"errors"
	"math/big"
)

var (
	ErrDivideByZero  = errors.New("precise math: divide by zero")
	ErrDecimalsRange = errors.New("precise math: decimals exceed 18")
	ErrNegativeValue = errors.New("precise math: value must be non-negative")
	ErrValueOverflow = errors.New("precise math: value outside target range")
)

// unit is the canonical 18-decimal scaling constant. Every quantity handled
// by the ledger and its modules is a real number scaled by this value.
var unit = big.NewInt(1_000_000_000_000_000_000)

const maxDecimals = 18

// Unit returns a fresh copy of the 18-decimal precise unit (1e18).
func Unit() *big.Int { return new(big.Int).Set(unit) }

// floorQuo computes floor(a/b), rounding toward negative infinity for every
// sign combination. big.Int.Quo truncates toward zero, which understates
// negative results by one whenever a remainder exists.
func floorQuo(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 && (a.Sign() < 0) != (b.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return q
}

// ceilQuo computes ceil(a/b), rounding toward positive infinity.
func ceilQuo(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 && (a.Sign() < 0) == (b.Sign() < 0) {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// Mul multiplies two precise-unit values and floors the result toward
// negative infinity: Mul(-1, 0.5e18) is -0.5 rounded down to -1 wei, never 0.
// Inputs are not mutated and the result is a fresh allocation.
func Mul(a, b *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	return floorQuo(product, unit)
}

// MulCeil multiplies two precise-unit values and rounds the result toward
// positive infinity.
func MulCeil(a, b *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	return ceilQuo(product, unit)
}

// Div divides a by b at precise-unit scale, flooring toward negative
// infinity. Division by zero is rejected rather than returning a sentinel
// so callers cannot mistake the failure for a legitimate zero quotient.
func Div(a, b *big.Int) (*big.Int, error) {
	if b == nil || b.Sign() == 0 {
		return nil, ErrDivideByZero
	}
	scaled := new(big.Int).Mul(a, unit)
	return floorQuo(scaled, b), nil
}

// DivCeil divides a by b at precise-unit scale, rounding toward positive
// infinity. Debt quantities use this variant: understating what is owed is
// a solvency bug, overstating by one wei is not.
func DivCeil(a, b *big.Int) (*big.Int, error) {
	if b == nil || b.Sign() == 0 {
		return nil, ErrDivideByZero
	}
	scaled := new(big.Int).Mul(a, unit)
	return ceilQuo(scaled, b), nil
}

// FromPreciseToDecimals rescales an 18-decimal amount to a token's native
// decimal count, flooring when scaling down.
func FromPreciseToDecimals(amount *big.Int, decimals uint8) (*big.Int, error) {
	if decimals > maxDecimals {
		return nil, ErrDecimalsRange
	}
	if decimals == maxDecimals {
		return new(big.Int).Set(amount), nil
	}
	factor := pow10(maxDecimals - decimals)
	return floorQuo(new(big.Int).Set(amount), factor), nil
}

// ToPreciseFromDecimals rescales a native-decimal token amount up to the
// canonical 18-decimal representation. Scaling up is exact.
func ToPreciseFromDecimals(amount *big.Int, decimals uint8) (*big.Int, error) {
	if decimals > maxDecimals {
		return nil, ErrDecimalsRange
	}
	if decimals == maxDecimals {
		return new(big.Int).Set(amount), nil
	}
	factor := pow10(maxDecimals - decimals)
	return new(big.Int).Mul(amount, factor), nil
}

// CheckedUnsigned validates that x is non-negative and returns a copy.
// Explicit checked conversion replaces implicit signed/unsigned narrowing.
func CheckedUnsigned(x *big.Int) (*big.Int, error) {
	if x == nil || x.Sign() < 0 {
		return nil, ErrNegativeValue
	}
	return new(big.Int).Set(x), nil
}

// CheckedUint64 converts x to a uint64, rejecting negatives and values that
// do not fit rather than silently truncating.
func CheckedUint64(x *big.Int) (uint64, error) {
	if x == nil || x.Sign() < 0 {
		return 0, ErrNegativeValue
	}
	if !x.IsUint64() {
		return 0, ErrValueOverflow
	}
	return x.Uint64(), nil
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
