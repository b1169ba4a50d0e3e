package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultStreamMaxLen caps streams via XADD MAXLEN ~.
const DefaultStreamMaxLen int64 = 10000

// SignalBus implements domain.SignalBus. Committed trades and lifecycle
// transitions go out on Pub/Sub for live websocket clients; trades are also
// kept on a capped stream for readers that resume from an entry id.
type SignalBus struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

// NewSignalBus creates a SignalBus. A non-positive maxLen uses
// DefaultStreamMaxLen.
func NewSignalBus(c *Client, maxLen int64) *SignalBus {
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	return &SignalBus{rdb: c.Underlying(), stream: c.key(domain.StreamTrades), maxLen: maxLen}
}

// Publish sends a raw byte payload to a Redis Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe creates a Redis Pub/Sub subscription and returns a read-only
// channel that emits raw byte payloads. The subscription is automatically
// closed when the context is cancelled; the returned channel is closed at
// that point as well.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = sb.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, channel)
	}

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// hasPattern returns true when the Redis channel includes glob-style
// wildcards, in which case PSubscribe must be used instead of Subscribe.
func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

// AppendTrade adds ev to the trade stream as flat fields, trimming the
// stream to roughly maxLen entries.
func (sb *SignalBus) AppendTrade(ctx context.Context, ev domain.TradeEvent) (string, error) {
	id, err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: sb.stream,
		MaxLen: sb.maxLen,
		Approx: true,
		Values: tradeFields(ev),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("redis: append trade %s: %w", ev.ID, err)
	}
	return id, nil
}

// ReadTrades reads up to count trades after lastID. It returns an empty
// slice when the stream has nothing newer.
func (sb *SignalBus) ReadTrades(ctx context.Context, lastID string, count int) ([]domain.StreamedTrade, error) {
	if lastID == "" {
		lastID = "0"
	}
	// Exclusive range start needs Redis 6.2.
	start := "(" + lastID
	var cmd *redis.XMessageSliceCmd
	if count > 0 {
		cmd = sb.rdb.XRangeN(ctx, sb.stream, start, "+", int64(count))
	} else {
		cmd = sb.rdb.XRange(ctx, sb.stream, start, "+")
	}
	msgs, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read trades after %s: %w", lastID, err)
	}

	out := make([]domain.StreamedTrade, 0, len(msgs))
	for _, msg := range msgs {
		ev, err := parseTradeFields(msg.Values)
		if err != nil {
			return nil, fmt.Errorf("redis: trade entry %s: %w", msg.ID, err)
		}
		out = append(out, domain.StreamedTrade{ID: msg.ID, Trade: ev})
	}
	return out, nil
}

func tradeFields(ev domain.TradeEvent) map[string]any {
	return map[string]any{
		"id":         ev.ID,
		"market_id":  ev.MarketID,
		"trader":     ev.Trader,
		"action":     string(ev.Action),
		"side":       ev.Side.String(),
		"amount_in":  ev.AmountIn,
		"amount_out": ev.AmountOut,
		"reserve_a":  ev.ReserveA,
		"reserve_b":  ev.ReserveB,
		"supply_a":   ev.Supply[0],
		"supply_b":   ev.Supply[1],
		"pool_value": ev.PoolValue,
		"created_at": ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// parseTradeFields reverses tradeFields. Redis returns every value as a
// string.
func parseTradeFields(values map[string]any) (domain.TradeEvent, error) {
	str := func(k string) string {
		v, _ := values[k].(string)
		return v
	}
	ev := domain.TradeEvent{
		ID:       str("id"),
		MarketID: str("market_id"),
		Trader:   str("trader"),
		Action:   domain.TradeAction(str("action")),
	}
	if ev.ID == "" || ev.MarketID == "" {
		return ev, errors.New("missing trade id or market id")
	}

	side, err := domain.ParseSide(str("side"))
	if err != nil {
		return ev, err
	}
	ev.Side = side

	nums := []struct {
		key string
		dst *uint64
	}{
		{"amount_in", &ev.AmountIn},
		{"amount_out", &ev.AmountOut},
		{"reserve_a", &ev.ReserveA},
		{"reserve_b", &ev.ReserveB},
		{"supply_a", &ev.Supply[0]},
		{"supply_b", &ev.Supply[1]},
		{"pool_value", &ev.PoolValue},
	}
	for _, n := range nums {
		v, err := strconv.ParseUint(str(n.key), 10, 64)
		if err != nil {
			return ev, fmt.Errorf("%s: %w", n.key, err)
		}
		*n.dst = v
	}

	if ev.CreatedAt, err = time.Parse(time.RFC3339Nano, str("created_at")); err != nil {
		return ev, fmt.Errorf("created_at: %w", err)
	}
	return ev, nil
}

var _ domain.SignalBus = (*SignalBus)(nil)
