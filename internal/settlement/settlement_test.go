package settlement

import (
	"math"
	"testing"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolved(winner domain.Side, supply [2]uint64, poolValue uint64) domain.Market {
	w := winner
	return domain.Market{
		ID:        "nba-2026-lal-bos",
		Kind:      domain.MarketKindCurve,
		State:     domain.MarketStateResolved,
		Winner:    &w,
		Supply:    supply,
		PoolValue: poolValue,
	}
}

func TestPayoutScenario(t *testing.T) {
	got, err := Payout(500, 100_000, 2_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(25_000), got)
}

func TestPayoutWideIntermediate(t *testing.T) {
	got, err := Payout(math.MaxUint64/2, math.MaxUint64, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64/2), got)

	_, err = Payout(3, 1, 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientSupply)
}

func TestClaim(t *testing.T) {
	m := resolved(domain.SideA, [2]uint64{2_000, 700}, 100_000)

	next, winner, payout, err := Claim(m, 500)
	require.NoError(t, err)
	assert.Equal(t, domain.SideA, winner)
	assert.Equal(t, uint64(25_000), payout)
	assert.Equal(t, uint64(1_500), next.Supply[0])
	assert.Equal(t, uint64(700), next.Supply[1])
	assert.Equal(t, uint64(75_000), next.PoolValue)
}

func TestClaimErrors(t *testing.T) {
	m := resolved(domain.SideB, [2]uint64{10, 10}, 100)
	_, _, _, err := Claim(m, 0)
	assert.ErrorIs(t, err, domain.ErrNoWinningTokens)

	active := m
	active.State = domain.MarketStateHalted
	active.Winner = nil
	_, _, _, err = Claim(active, 5)
	assert.ErrorIs(t, err, domain.ErrMarketNotResolved)
}

// Sequential claims never pay out more than the pool and leave no dust once
// every winning token is redeemed.
func TestClaimsExhaustPoolExactly(t *testing.T) {
	m := resolved(domain.SideA, [2]uint64{7, 0}, 100)
	var paid uint64
	for _, bal := range []uint64{3, 3, 1} {
		var payout uint64
		var err error
		m, _, payout, err = Claim(m, bal)
		require.NoError(t, err)
		paid += payout
	}
	assert.Equal(t, uint64(100), paid)
	assert.Zero(t, m.PoolValue)
	assert.Zero(t, m.Supply[0])
}
