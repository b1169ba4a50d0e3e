package fixedpoint

import (
	"math"
	"testing"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSub(t *testing.T) {
	got, err := Add(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got)

	_, err = Add(math.MaxUint64, 1)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	got, err = Sub(10, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), got)

	_, err = Sub(4, 10)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestMulDiv(t *testing.T) {
	got, err := MulDiv(1_000_000, 10_000, 1_010_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(9_900), got)

	got, err = MulDivUp(1_000_000, 10_000, 1_010_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(9_901), got)

	got, err = MulDivUp(10, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), got)

	// The product needs 128 bits but the quotient fits.
	got, err = MulDiv(math.MaxUint64, math.MaxUint64, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got)

	_, err = MulDiv(math.MaxUint64, 2, 1)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	_, err = MulDiv(1, 1, 0)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestWideBounds(t *testing.T) {
	max64 := FromUint64(math.MaxUint64)
	sq, err := max64.Mul(max64)
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463426481119284349108225", sq.String())

	_, err = sq.Mul(FromUint64(2))
	assert.ErrorIs(t, err, domain.ErrOverflow)

	_, err = sq.Add(sq)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	_, err = sq.Uint64()
	assert.ErrorIs(t, err, domain.ErrOverflow)

	_, err = FromUint64(1).Sub(FromUint64(2))
	assert.ErrorIs(t, err, domain.ErrOverflow)

	assert.Equal(t, -1, FromUint64(1).Cmp(FromUint64(2)))
	assert.True(t, FromUint64(0).IsZero())
	assert.Equal(t, "18446744073709551615", max64.Big().String())
}
