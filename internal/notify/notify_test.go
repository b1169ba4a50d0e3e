package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	name   string
	err    error
	events []string
}

func (f *fakeSender) SendLifecycle(_ context.Context, _ domain.Market, ev domain.LifecycleEvent) error {
	f.events = append(f.events, EventName(ev.Kind))
	return f.err
}

func (f *fakeSender) SendTrade(_ context.Context, _ domain.Market, ev domain.TradeEvent) error {
	f.events = append(f.events, TradeEventName(ev.Action))
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var lakers = domain.Market{ID: "nba-lal-bos", SideNames: [2]string{"Lakers", "Celtics"}, PoolValue: 100_000}

func TestNotifierFilters(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{"market.resolved", "trade.claim", " "}, quietLogger())
	ctx := context.Background()

	require.NoError(t, n.NotifyLifecycle(ctx, lakers, domain.LifecycleEvent{Kind: domain.LifecycleHalted}))
	require.NoError(t, n.NotifyTrade(ctx, lakers, domain.TradeEvent{Action: domain.TradeActionBuy}))
	assert.Empty(t, s.events)

	winner := domain.SideB
	require.NoError(t, n.NotifyLifecycle(ctx, lakers, domain.LifecycleEvent{Kind: domain.LifecycleResolved, Winner: &winner}))
	require.NoError(t, n.NotifyTrade(ctx, lakers, domain.TradeEvent{Action: domain.TradeActionClaim}))
	assert.Equal(t, []string{"market.resolved", "trade.claim"}, s.events)
}

func TestNotifierEmptyFilterSkipsTrades(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, quietLogger())
	ctx := context.Background()

	require.NoError(t, n.NotifyTrade(ctx, lakers, domain.TradeEvent{Action: domain.TradeActionBuy}))
	require.NoError(t, n.NotifyLifecycle(ctx, lakers, domain.LifecycleEvent{Kind: domain.LifecycleHalted}))
	assert.Equal(t, []string{"market.halted"}, s.events)
}

func TestNotifierCollectsSenderErrors(t *testing.T) {
	boom := errors.New("boom")
	bad := &fakeSender{name: "bad", err: boom}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	err := n.NotifyLifecycle(context.Background(), lakers, domain.LifecycleEvent{Kind: domain.LifecycleCreated})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, good.events, 1)
}

func TestFormatLifecycle(t *testing.T) {
	winner := domain.SideA
	title, msg := FormatLifecycle(lakers, domain.LifecycleEvent{Kind: domain.LifecycleResolved, Winner: &winner})
	assert.Equal(t, "Market resolved", title)
	assert.Equal(t, "Lakers vs Celtics (nba-lal-bos): Lakers win. Pool value 0.1 is claimable.", msg)
}

func TestFormatTrade(t *testing.T) {
	tests := []struct {
		name  string
		ev    domain.TradeEvent
		title string
		msg   string
	}{
		{
			name:  "buy",
			ev:    domain.TradeEvent{Trader: "alice", Action: domain.TradeActionBuy, Side: domain.SideB, AmountIn: 1_000_000, AmountOut: 1_397_431},
			title: "Buy",
			msg:   "alice bought 1.397431 Celtics for 1 (nba-lal-bos)",
		},
		{
			name:  "sell",
			ev:    domain.TradeEvent{Trader: "bob", Action: domain.TradeActionSell, Side: domain.SideA, AmountIn: 500_000, AmountOut: 250_000},
			title: "Sell",
			msg:   "bob sold 0.5 Lakers for 0.25 (nba-lal-bos)",
		},
		{
			name:  "swap",
			ev:    domain.TradeEvent{Trader: "carol", Action: domain.TradeActionSwap, Side: domain.SideA, AmountIn: 2_000_000, AmountOut: 1_900_000},
			title: "Swap",
			msg:   "carol swapped 2 Lakers for 1.9 Celtics (nba-lal-bos)",
		},
		{
			name:  "claim",
			ev:    domain.TradeEvent{Trader: "dave", Action: domain.TradeActionClaim, Side: domain.SideA, AmountIn: 3_000_000, AmountOut: 2_500_000},
			title: "Winnings claimed",
			msg:   "dave redeemed 3 Lakers for 2.5 (nba-lal-bos)",
		},
		{
			name:  "faucet",
			ev:    domain.TradeEvent{Trader: "erin", Action: domain.TradeActionFund, AmountOut: 10_000_000},
			title: "Faucet",
			msg:   "erin received 10 (nba-lal-bos)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, msg := FormatTrade(lakers, tt.ev)
			assert.Equal(t, tt.title, title)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender(srv.URL, "TOKEN", "42")
	m := domain.Market{ID: "nfl-kc-buf", SideNames: [2]string{"Chiefs", "Bills_2"}}
	require.NoError(t, s.SendLifecycle(context.Background(), m, domain.LifecycleEvent{Kind: domain.LifecycleHalted}))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "Markdown", got["parse_mode"])
	assert.Equal(t, "*Trading halted* `nfl-kc-buf`\nChiefs vs Bills\\_2 (nfl-kc-buf) no longer accepts trades", got["text"])

	require.NoError(t, s.SendTrade(context.Background(), m, domain.TradeEvent{
		ID: "t-9", Trader: "alice", Action: domain.TradeActionBuy, Side: domain.SideA, AmountIn: 1_000_000, AmountOut: 2_000_000,
	}))
	assert.Equal(t, "*Buy* `t-9`\nalice bought 2 Chiefs for 1 (nfl-kc-buf)", got["text"])
}

func TestDiscordSenderEmbeds(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = discordPayload{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	winner := domain.SideB
	at := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	require.NoError(t, d.SendLifecycle(context.Background(), lakers, domain.LifecycleEvent{
		Kind: domain.LifecycleResolved, Actor: "authority", Winner: &winner, CreatedAt: at,
	}))
	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "Market resolved", e.Title)
	assert.Equal(t, colorSuccess, e.Color)
	assert.Equal(t, "2026-10-19T03:00:00Z", e.Timestamp)
	assert.Contains(t, e.Fields, discordField{Name: "Winner", Value: "Celtics", Inline: true})
	assert.Contains(t, e.Fields, discordField{Name: "Actor", Value: "authority", Inline: true})

	require.NoError(t, d.SendTrade(context.Background(), lakers, domain.TradeEvent{
		Trader: "alice", Action: domain.TradeActionBuy, Side: domain.SideB,
		AmountIn: 1_000_000, AmountOut: 1_397_431, PoolValue: 1_000_000,
	}))
	e = got.Embeds[0]
	assert.Equal(t, "Buy", e.Title)
	assert.Equal(t, "alice bought 1.397431 Celtics for 1 (nba-lal-bos)", e.Description)
	assert.Contains(t, e.Fields, discordField{Name: "Out", Value: "1.397431", Inline: true})
	assert.Empty(t, e.Timestamp)
}

func TestDiscordSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).SendLifecycle(context.Background(), lakers, domain.LifecycleEvent{Kind: domain.LifecycleHalted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
