package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveClient connects to SX_TEST_REDIS_ADDR under a throwaway key prefix.
func liveClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("SX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SX_TEST_REDIS_ADDR not set")
	}
	c, err := New(context.Background(), ClientConfig{Addr: addr, KeyPrefix: "sxtest:" + uuid.NewString() + ":"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestKeyPrefix(t *testing.T) {
	c := &Client{prefix: "sx:"}
	assert.Equal(t, "sx:market:nfl-kc-buf", c.key("market:", "nfl-kc-buf"))
	assert.Equal(t, "lock:x", (&Client{}).key("lock:", "x"))
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	assert.Contains(t, slidingWindowLua, "ZREMRANGEBYSCORE")
	assert.Contains(t, slidingWindowLua, "return {0, count}")
}

func TestLockManager(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	locks := NewLockManager(c)

	unlock, err := locks.Acquire(ctx, "market:g1", time.Minute)
	require.NoError(t, err)

	_, err = locks.Acquire(ctx, "market:g1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()

	unlock, err = locks.Acquire(ctx, "market:g1", time.Minute)
	require.NoError(t, err)
	unlock()
}

func TestMarketCache(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	cache := NewMarketCache(c, time.Minute)

	_, err := cache.Get(ctx, "g1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	m := domain.Market{ID: "g1", TokenIDs: [2]string{"tok-a", "tok-b"}, Supply: [2]uint64{5, 7}}
	require.NoError(t, cache.Set(ctx, m))

	got, err := cache.GetByToken(ctx, "tok-b")
	require.NoError(t, err)
	assert.Equal(t, m.Supply, got.Supply)

	require.NoError(t, cache.Invalidate(ctx, "g1"))
	_, err = cache.GetByToken(ctx, "tok-a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRateLimiter(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	rl := NewRateLimiter(c, 2, time.Minute)

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, "alice", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "alice", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(waitCtx, "alice"))
}

func TestSignalBusTradeStream(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	bus := NewSignalBus(c, 100)
	t.Cleanup(func() { c.Underlying().Del(context.Background(), bus.stream) })

	first := domain.TradeEvent{ID: "t1", MarketID: "nba-lal-bos", Trader: "alice", Action: domain.TradeActionBuy,
		Side: domain.SideB, AmountIn: 1_000_000, AmountOut: 1_397_431, CreatedAt: time.Now().UTC()}
	second := first
	second.ID, second.Action, second.AmountIn, second.AmountOut = "t2", domain.TradeActionSell, 1_397_431, 999_999

	id1, err := bus.AppendTrade(ctx, first)
	require.NoError(t, err)
	_, err = bus.AppendTrade(ctx, second)
	require.NoError(t, err)

	got, err := bus.ReadTrades(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, id1, got[0].ID)
	assert.Equal(t, "t2", got[1].Trade.ID)
	assert.Equal(t, uint64(999_999), got[1].Trade.AmountOut)

	got, err = bus.ReadTrades(ctx, id1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.TradeActionSell, got[0].Trade.Action)

	got, err = bus.ReadTrades(ctx, got[0].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTradeFields(t *testing.T) {
	ev := domain.TradeEvent{
		ID: "t1", MarketID: "nfl-kc-buf", Trader: "0xabc", Action: domain.TradeActionSwap, Side: domain.SideA,
		AmountIn: 5, AmountOut: 4, ReserveA: 100, ReserveB: 90, Supply: [2]uint64{7, 8}, PoolValue: 3,
		CreatedAt: time.Date(2026, 10, 19, 12, 0, 0, 500, time.UTC),
	}
	// Redis hands values back as strings.
	values := map[string]any{}
	for k, v := range tradeFields(ev) {
		values[k] = fmt.Sprint(v)
	}
	got, err := parseTradeFields(values)
	require.NoError(t, err)
	assert.Equal(t, ev.Supply, got.Supply)
	assert.Equal(t, ev.Side, got.Side)
	assert.True(t, ev.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, ev.ReserveB, got.ReserveB)

	values["amount_in"] = "-1"
	_, err = parseTradeFields(values)
	assert.ErrorContains(t, err, "amount_in")

	_, err = parseTradeFields(map[string]any{"market_id": "g1"})
	assert.Error(t, err)
}

func TestReplayGuard(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	g := NewReplayGuard(c)

	ok, err := g.Claim(ctx, "sig-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, "sig-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := c.Underlying().PTTL(ctx, c.key("replay:", "sig-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
}
