package safemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafemath_CheckedAddU64(t *testing.T) {
	sum, err := CheckedAddU64(1, 2)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), sum)

	_, err = CheckedAddU64(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrIntegerOverflow)
}

func TestSafemath_CheckedSubU64(t *testing.T) {
	diff, err := CheckedSubU64(5, 5)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), diff)

	_, err = CheckedSubU64(4, 5)
	assert.ErrorIs(t, err, ErrIntegerUnderflow)
}

func TestSafemath_Saturating(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAddU64(math.MaxUint64-1, 10))
	assert.Equal(t, uint64(0), SaturatingSubU64(3, 10))
	assert.Equal(t, uint64(7), SaturatingSubU64(10, 3))
}

// The TestSafemath_U128Accumulator_CeilDiv function tests the ceiling
// division pattern (n + d - 1) / d over a numerator that does not fit in
// 64 bits.
func TestSafemath_U128Accumulator_CeilDiv(t *testing.T) {
	var acc U128Accumulator
	acc.AddProduct(math.MaxUint64, 4)
	acc.AddProduct(math.MaxUint64, 4)
	acc.AddU64(8)
	acc.SubU64(1)

	n, err := acc.Value()
	require.NoError(t, err)

	q, err := CheckedDivU128ToU64(n, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), q)
}

func TestSafemath_U128Accumulator_Overflow(t *testing.T) {
	var acc U128Accumulator
	acc.AddProduct(math.MaxUint64, math.MaxUint64)
	acc.AddProduct(math.MaxUint64, math.MaxUint64)
	_, err := acc.Value()
	assert.ErrorIs(t, err, ErrIntegerOverflow)

	var under U128Accumulator
	under.SubU64(1)
	_, err = under.Value()
	assert.ErrorIs(t, err, ErrIntegerUnderflow)
}

func TestSafemath_CheckedDivU128ToU64_QuotientTooLarge(t *testing.T) {
	var acc U128Accumulator
	acc.AddProduct(math.MaxUint64, 3)
	n, err := acc.Value()
	require.NoError(t, err)

	_, err = CheckedDivU128ToU64(n, 2)
	assert.ErrorIs(t, err, ErrIntegerOverflow)

	_, err = CheckedDivU128ToU64(n, 0)
	assert.ErrorIs(t, err, ErrDivideByZero)
}
