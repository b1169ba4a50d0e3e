package lifecycle

import (
	"testing"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const authority = "0xauthority"

var now = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func newMarket(kind domain.MarketKind) domain.Market {
	m, _ := Open(domain.Market{ID: "nfl-2026-w1-kc-buf", Authority: authority, Kind: kind}, now)
	return m
}

func TestOpen(t *testing.T) {
	pool, events := Open(domain.Market{ID: "g1", Authority: authority, Kind: domain.MarketKindPool}, now)
	assert.Equal(t, domain.MarketStateCreated, pool.State)
	require.Len(t, events, 1)
	assert.Equal(t, domain.LifecycleCreated, events[0].Kind)

	curveMarket, events := Open(domain.Market{ID: "g2", Authority: authority, Kind: domain.MarketKindCurve}, now)
	assert.Equal(t, domain.MarketStateActive, curveMarket.State)
	require.Len(t, events, 2)
	assert.Equal(t, domain.LifecycleActivated, events[1].Kind)
	assert.Equal(t, now, curveMarket.CreatedAt)
}

func TestActivateOnce(t *testing.T) {
	m := newMarket(domain.MarketKindPool)
	require.ErrorIs(t, CheckTradable(m), domain.ErrMarketNotActive)

	m, ev, err := Activate(m, authority, now)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStateActive, m.State)
	assert.Equal(t, domain.LifecycleActivated, ev.Kind)
	assert.NoError(t, CheckTradable(m))

	_, _, err = Activate(m, authority, now)
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized)
}

func TestHalt(t *testing.T) {
	m := newMarket(domain.MarketKindCurve)

	_, _, err := Halt(m, "0xintruder", now)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	halted, ev, err := Halt(m, authority, now)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStateHalted, halted.State)
	assert.True(t, halted.TradingHalted())
	assert.Equal(t, domain.LifecycleHalted, ev.Kind)
	assert.Equal(t, authority, ev.Actor)
	assert.ErrorIs(t, CheckTradable(halted), domain.ErrTradingHalted)

	// The input value is untouched.
	assert.Equal(t, domain.MarketStateActive, m.State)

	_, _, err = Halt(halted, authority, now)
	assert.ErrorIs(t, err, domain.ErrAlreadyHalted)

	_, _, err = Halt(newMarket(domain.MarketKindPool), authority, now)
	assert.ErrorIs(t, err, domain.ErrMarketNotActive)
}

func TestResolveRequiresHalt(t *testing.T) {
	m := newMarket(domain.MarketKindCurve)

	_, _, err := Resolve(m, authority, domain.SideA, now)
	assert.ErrorIs(t, err, domain.ErrTradingNotHalted)
	assert.True(t, domain.IsStateViolation(err))

	m, _, err = Halt(m, authority, now)
	require.NoError(t, err)

	_, _, err = Resolve(m, "0xintruder", domain.SideA, now)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, _, err = Resolve(m, authority, domain.Side(2), now)
	assert.ErrorIs(t, err, domain.ErrInvalidSide)

	resolved, ev, err := Resolve(m, authority, domain.SideB, now)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStateResolved, resolved.State)
	require.NotNil(t, ev.Winner)
	assert.Equal(t, domain.SideB, *ev.Winner)

	winner, err := WinningSide(resolved)
	require.NoError(t, err)
	assert.Equal(t, domain.SideB, winner)

	_, _, err = Resolve(resolved, authority, domain.SideA, now)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	_, _, err = Halt(resolved, authority, now)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
	assert.ErrorIs(t, CheckTradable(resolved), domain.ErrTradingHalted)
}

func TestWinningSide(t *testing.T) {
	_, err := WinningSide(newMarket(domain.MarketKindCurve))
	assert.ErrorIs(t, err, domain.ErrMarketNotResolved)

	broken := newMarket(domain.MarketKindCurve)
	broken.State = domain.MarketStateResolved
	_, err = WinningSide(broken)
	assert.ErrorIs(t, err, domain.ErrNoWinner)
}
