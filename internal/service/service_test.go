package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memMarkets struct {
	byID  map[string]domain.Market
	reads int
}

func (m *memMarkets) GetByID(_ context.Context, id string) (domain.Market, error) {
	m.reads++
	mk, ok := m.byID[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return mk, nil
}

func (m *memMarkets) List(context.Context, domain.MarketFilter) ([]domain.Market, error) {
	return nil, nil
}

func (m *memMarkets) Count(context.Context) (int64, error) { return int64(len(m.byID)), nil }

type memCache struct {
	mu   sync.Mutex
	byID map[string]domain.Market
}

func (c *memCache) Set(_ context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[m.ID] = m
	return nil
}

func (c *memCache) Get(_ context.Context, id string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byID[id]
	if !ok {
		return m, domain.ErrNotFound
	}
	return m, nil
}

func (c *memCache) GetByToken(context.Context, string) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

func (c *memCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, id)
	return nil
}

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  []domain.TradeEvent
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

func (b *memBus) AppendTrade(_ context.Context, ev domain.TradeEvent) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed = append(b.streamed, ev)
	return fmt.Sprintf("%d-0", len(b.streamed)), nil
}

func (b *memBus) ReadTrades(context.Context, string, int) ([]domain.StreamedTrade, error) {
	return nil, nil
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type recordingSender struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordingSender) SendLifecycle(_ context.Context, m domain.Market, ev domain.LifecycleEvent) error {
	_, message := notify.FormatLifecycle(m, ev)
	s.record(message)
	return nil
}

func (s *recordingSender) SendTrade(_ context.Context, m domain.Market, ev domain.TradeEvent) error {
	_, message := notify.FormatTrade(m, ev)
	s.record(message)
	return nil
}

func (s *recordingSender) record(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
}

func (s *recordingSender) Name() string { return "recording" }

func TestMarketServiceReadsThroughCache(t *testing.T) {
	store := &memMarkets{byID: map[string]domain.Market{"g1": {ID: "g1", PoolValue: 7}}}
	cache := &memCache{byID: map[string]domain.Market{}}
	svc := NewMarketService(store, cache, quietLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m, err := svc.GetByID(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, uint64(7), m.PoolValue)
	}
	assert.Equal(t, 1, store.reads)

	svc.Invalidate(ctx, "g1")
	_, err := svc.GetByID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.reads)

	_, err = svc.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketServiceWithoutCache(t *testing.T) {
	store := &memMarkets{byID: map[string]domain.Market{"g1": {ID: "g1"}}}
	svc := NewMarketService(store, nil, quietLogger())
	_, err := svc.GetByID(context.Background(), "g1")
	require.NoError(t, err)
	svc.Invalidate(context.Background(), "g1")
}

func TestFanoutTrade(t *testing.T) {
	store := &memMarkets{byID: map[string]domain.Market{"g1": {ID: "g1"}}}
	cache := &memCache{byID: map[string]domain.Market{"g1": {ID: "g1"}}}
	bus := &memBus{published: map[string][][]byte{}}
	f := NewEventFanout(NewMarketService(store, cache, quietLogger()), quietLogger(), WithBus(bus))

	f.PublishTrade(context.Background(), domain.TradeEvent{
		ID: "t1", MarketID: "g1", Trader: "alice", Action: domain.TradeActionBuy,
		Side: domain.SideB, AmountIn: 1_000_000, AmountOut: 1_397_431,
		CreatedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	})

	_, err := cache.Get(context.Background(), "g1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "trade invalidates the snapshot")

	require.Len(t, bus.published[domain.ChannelTrades], 1)
	require.Len(t, bus.streamed, 1)
	assert.Equal(t, "t1", bus.streamed[0].ID)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(bus.published[domain.ChannelTrades][0], &msg))
	assert.Equal(t, "trade", msg["type"])
	assert.Equal(t, "b", msg["side"])
	assert.Equal(t, "1397431", msg["amount_out"])
	assert.Equal(t, "1-0", msg["stream_id"])
}

func TestFanoutLifecycle(t *testing.T) {
	winner := domain.SideA
	store := &memMarkets{byID: map[string]domain.Market{
		"g1": {ID: "g1", SideNames: [2]string{"Chiefs", "Bills"}, State: domain.MarketStateResolved, Winner: &winner},
	}}
	bus := &memBus{published: map[string][][]byte{}}
	audit := &memAudit{}
	sender := &recordingSender{}
	n := notify.NewNotifier([]notify.Sender{sender}, nil, quietLogger())

	f := NewEventFanout(NewMarketService(store, nil, quietLogger()), quietLogger(),
		WithBus(bus), WithAudit(audit), WithNotifier(n))
	f.PublishLifecycle(context.Background(), domain.LifecycleEvent{
		ID: "l1", MarketID: "g1", Kind: domain.LifecycleResolved, Actor: "authority", Winner: &winner,
	})
	f.Wait()

	require.Len(t, bus.published[domain.ChannelLifecycle], 1)
	assert.Equal(t, []string{"market.resolved"}, audit.events)
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "Chiefs win")
}

func TestFanoutTradeNotifies(t *testing.T) {
	store := &memMarkets{byID: map[string]domain.Market{
		"g1": {ID: "g1", SideNames: [2]string{"Chiefs", "Bills"}},
	}}
	sender := &recordingSender{}
	n := notify.NewNotifier([]notify.Sender{sender}, []string{"trade.claim"}, quietLogger())
	f := NewEventFanout(NewMarketService(store, nil, quietLogger()), quietLogger(), WithNotifier(n))

	f.PublishTrade(context.Background(), domain.TradeEvent{
		MarketID: "g1", Trader: "alice", Action: domain.TradeActionBuy, Side: domain.SideA, AmountIn: 1_000_000, AmountOut: 2_000_000,
	})
	f.PublishTrade(context.Background(), domain.TradeEvent{
		MarketID: "g1", Trader: "bob", Action: domain.TradeActionClaim, Side: domain.SideA, AmountIn: 2_000_000, AmountOut: 1_500_000,
	})
	f.Wait()

	assert.Equal(t, []string{"bob redeemed 2 Chiefs for 1.5 (g1)"}, sender.messages)
}

type memTrades struct {
	byMarket map[string][]domain.TradeEvent
}

func (m *memTrades) ListByMarket(_ context.Context, id string, _ domain.ListOpts) ([]domain.TradeEvent, error) {
	return m.byMarket[id], nil
}

func (m *memTrades) ListByTrader(context.Context, string, domain.ListOpts) ([]domain.TradeEvent, error) {
	return nil, nil
}

func (m *memTrades) ListBefore(context.Context, time.Time) ([]domain.TradeEvent, error) {
	return nil, nil
}

type memArchive struct {
	mark   time.Time
	trades []domain.TradeEvent
	filter domain.TradeFilter
}

func (a *memArchive) Watermark(context.Context) (time.Time, error) { return a.mark, nil }

func (a *memArchive) ListArchived(_ context.Context, f domain.TradeFilter, _ domain.ListOpts) ([]domain.TradeEvent, error) {
	a.filter = f
	return a.trades, nil
}

func TestTradeServiceArchiveFallback(t *testing.T) {
	mark := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	hot := domain.TradeEvent{ID: "hot", MarketID: "g1"}
	cold := domain.TradeEvent{ID: "cold", MarketID: "g1"}
	archive := &memArchive{mark: mark, trades: []domain.TradeEvent{cold}}
	svc := NewTradeService(&memTrades{byMarket: map[string][]domain.TradeEvent{"g1": {hot}}}, nil, nil, WithArchive(archive))
	ctx := context.Background()

	got, err := svc.MarketTrades(ctx, "g1", domain.ListOpts{})
	require.NoError(t, err)
	assert.Equal(t, []domain.TradeEvent{hot}, got, "open-ended listings read the store")

	after := mark.Add(time.Hour)
	got, err = svc.MarketTrades(ctx, "g1", domain.ListOpts{Until: &after})
	require.NoError(t, err)
	assert.Equal(t, []domain.TradeEvent{hot}, got)

	got, err = svc.MarketTrades(ctx, "g1", domain.ListOpts{Until: &mark})
	require.NoError(t, err)
	assert.Equal(t, []domain.TradeEvent{cold}, got)
	assert.Equal(t, domain.TradeFilter{MarketID: "g1"}, archive.filter)

	_, err = svc.TraderTrades(ctx, "alice", domain.ListOpts{Until: &mark})
	require.NoError(t, err)
	assert.Equal(t, domain.TradeFilter{Trader: "alice"}, archive.filter)
}

func TestTradeServiceEmptyArchive(t *testing.T) {
	hot := domain.TradeEvent{ID: "hot", MarketID: "g1"}
	svc := NewTradeService(&memTrades{byMarket: map[string][]domain.TradeEvent{"g1": {hot}}}, nil, nil, WithArchive(&memArchive{}))

	until := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := svc.MarketTrades(context.Background(), "g1", domain.ListOpts{Until: &until})
	require.NoError(t, err)
	assert.Equal(t, []domain.TradeEvent{hot}, got)
}

func TestClampPage(t *testing.T) {
	assert.Equal(t, 50, ClampPage(domain.ListOpts{}).Limit)
	assert.Equal(t, 500, ClampPage(domain.ListOpts{Limit: 10_000}).Limit)
	assert.Equal(t, 0, ClampPage(domain.ListOpts{Offset: -3}).Offset)
}
