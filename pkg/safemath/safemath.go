// Package safemath provides overflow-aware integer helpers.
//
// Nothing in the stake accounting paths is allowed to wrap silently: every
// addition or subtraction either saturates by design or reports an error.
package safemath

import (
	"errors"
	"math"
	"math/bits"

	"github.com/ryanavella/wide"
)

var (
	ErrIntegerOverflow  = errors.New("ErrIntegerOverflow")
	ErrIntegerUnderflow = errors.New("ErrIntegerUnderflow")
	ErrDivideByZero     = errors.New("ErrDivideByZero")
)

func CheckedAddU64(a uint64, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrIntegerOverflow
	}
	return sum, nil
}

func CheckedSubU64(a uint64, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrIntegerUnderflow
	}
	return diff, nil
}

func SaturatingAddU64(a uint64, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

func SaturatingSubU64(a uint64, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// U128Accumulator sums 64x64-bit products and 64-bit terms in 128 bits.
// Once any step overflows or underflows the accumulator stays poisoned and
// Value reports the error.
type U128Accumulator struct {
	hi  uint64
	lo  uint64
	err error
}

func (acc *U128Accumulator) add(hi uint64, lo uint64) {
	if acc.err != nil {
		return
	}
	var carry uint64
	acc.lo, carry = bits.Add64(acc.lo, lo, 0)
	acc.hi, carry = bits.Add64(acc.hi, hi, carry)
	if carry != 0 {
		acc.err = ErrIntegerOverflow
	}
}

// AddProduct adds x*y. The product itself always fits in 128 bits.
func (acc *U128Accumulator) AddProduct(x uint64, y uint64) {
	hi, lo := bits.Mul64(x, y)
	acc.add(hi, lo)
}

func (acc *U128Accumulator) AddU64(x uint64) {
	acc.add(0, x)
}

func (acc *U128Accumulator) SubU64(x uint64) {
	if acc.err != nil {
		return
	}
	var borrow uint64
	acc.lo, borrow = bits.Sub64(acc.lo, x, 0)
	acc.hi, borrow = bits.Sub64(acc.hi, 0, borrow)
	if borrow != 0 {
		acc.err = ErrIntegerUnderflow
	}
}

func (acc *U128Accumulator) Value() (wide.Uint128, error) {
	if acc.err != nil {
		return wide.Uint128{}, acc.err
	}
	return wide.Uint128FromHiLo(acc.hi, acc.lo), nil
}

// CheckedDivU128ToU64 divides a 128-bit numerator by a 64-bit denominator
// and fails if the quotient does not fit in 64 bits.
func CheckedDivU128ToU64(numerator wide.Uint128, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return 0, ErrDivideByZero
	}
	quotient := numerator.Div(wide.Uint128FromUint64(denominator))
	if !quotient.IsUint64() {
		return 0, ErrIntegerOverflow
	}
	return quotient.Uint64(), nil
}
