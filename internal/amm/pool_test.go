package amm

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	pool, err := Initialize(1_000_000, 2_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), pool.ReserveA)
	assert.Equal(t, uint64(2_000_000), pool.ReserveB)
	assert.Equal(t, "2000000000000", pool.K.String())

	_, err = Initialize(0, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = Initialize(1, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	pool, err = Initialize(math.MaxUint64, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463426481119284349108225", pool.K.String())
}

func TestSwapScenario(t *testing.T) {
	pool, err := Initialize(1_000_000, 1_000_000)
	require.NoError(t, err)

	next, out, err := Swap(pool, domain.SideA, 10_000, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(9_900), out)
	assert.Equal(t, uint64(1_010_000), next.ReserveA)
	assert.Equal(t, uint64(990_100), next.ReserveB)

	// The input pool is not mutated.
	assert.Equal(t, uint64(1_000_000), pool.ReserveA)

	back, out, err := Swap(next, domain.SideB, 9_900, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, out, uint64(10_000))
	assert.Equal(t, uint64(1_000_000), back.ReserveB)
}

func TestSwapSlippage(t *testing.T) {
	pool, err := Initialize(1_000_000, 1_000_000)
	require.NoError(t, err)

	_, _, err = Swap(pool, domain.SideB, 10_000, 9_901)
	assert.ErrorIs(t, err, domain.ErrSlippageExceeded)

	_, out, err := Swap(pool, domain.SideB, 10_000, 9_900)
	require.NoError(t, err)
	assert.Equal(t, uint64(9_900), out)
}

func TestSwapInvalidSide(t *testing.T) {
	pool, err := Initialize(10, 10)
	require.NoError(t, err)
	_, _, err = Swap(pool, domain.Side(7), 1, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidSide)
}

func TestQuoteSwapZeroAmount(t *testing.T) {
	out, err := QuoteSwap(0, 1_000, 1_000)
	require.NoError(t, err)
	assert.Zero(t, out)
}

func TestQuoteSwapOverflow(t *testing.T) {
	_, err := QuoteSwap(10, math.MaxUint64-5, 1_000)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	_, _, err = Swap(domain.PoolState{ReserveA: math.MaxUint64, ReserveB: 10}, domain.SideA, 1, 0)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestQuoteSwapNeverDrainsAndIsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 2_000; i++ {
		a := rng.Uint64N(1<<40) + 1
		b := rng.Uint64N(1<<40) + 1
		in := rng.Uint64N(1<<50) + 1

		out, err := QuoteSwap(in, a, b)
		require.NoError(t, err)
		assert.Less(t, out, b)

		more, err := QuoteSwap(in+rng.Uint64N(1<<20), a, b)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, more, out)

		deeper, err := QuoteSwap(in, a, b+rng.Uint64N(1<<20))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, deeper, out)

		shallower, err := QuoteSwap(in, a+rng.Uint64N(1<<20), b)
		require.NoError(t, err)
		assert.LessOrEqual(t, shallower, out)
	}
}

func TestSpotPrice(t *testing.T) {
	pool := domain.PoolState{ReserveA: 1_000_000, ReserveB: 3_000_000}
	assert.Equal(t, "3", SpotPrice(pool, domain.SideA).String())
	assert.Equal(t, "0.333333", SpotPrice(pool, domain.SideB).String())
	assert.True(t, SpotPrice(domain.PoolState{}, domain.SideA).IsZero())
}
