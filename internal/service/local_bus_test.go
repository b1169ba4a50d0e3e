package service

import (
	"context"
	"testing"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBusPublishMatchesPatterns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewLocalBus(0)

	exact, err := bus.Subscribe(ctx, "sx:trades")
	require.NoError(t, err)
	wild, err := bus.Subscribe(ctx, "sx:*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "sx:trades", []byte("t1")))
	require.NoError(t, bus.Publish(ctx, "sx:lifecycle", []byte("l1")))

	assert.Equal(t, []byte("t1"), recv(t, exact))
	assert.Equal(t, []byte("t1"), recv(t, wild))
	assert.Equal(t, []byte("l1"), recv(t, wild))
	select {
	case msg := <-exact:
		t.Fatalf("unexpected message %q", msg)
	default:
	}
}

func TestLocalBusSubscriptionClosesWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewLocalBus(0)
	ch, err := bus.Subscribe(ctx, "sx:trades")
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
	require.NoError(t, bus.Publish(context.Background(), "sx:trades", []byte("late")))
}

func TestLocalBusTradeStreamTrimsAndReadsAfter(t *testing.T) {
	ctx := context.Background()
	bus := NewLocalBus(3)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_, err := bus.AppendTrade(ctx, domain.TradeEvent{ID: id, MarketID: "g1"})
		require.NoError(t, err)
	}

	all, err := bus.ReadTrades(ctx, "0", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3-0", all[0].ID)
	assert.Equal(t, "c", all[0].Trade.ID)

	next, err := bus.ReadTrades(ctx, all[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "d", next[0].Trade.ID)

	_, err = bus.ReadTrades(ctx, "bogus", 1)
	require.Error(t, err)
}

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}
