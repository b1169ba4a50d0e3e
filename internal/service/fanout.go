package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/notify"
)

const notifyTimeout = 15 * time.Second

// EventFanout delivers committed engine events: it drops stale cache
// entries, publishes to the bus, records lifecycle transitions in the audit
// log and alerts operators. Every step is best effort; the events are
// already durable in the store.
type EventFanout struct {
	markets  *MarketService
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier *notify.Notifier
	logger   *slog.Logger

	wg sync.WaitGroup
}

// FanoutOption configures an EventFanout.
type FanoutOption func(*EventFanout)

// WithBus publishes events on a signal bus.
func WithBus(bus domain.SignalBus) FanoutOption {
	return func(f *EventFanout) { f.bus = bus }
}

// WithAudit records lifecycle transitions.
func WithAudit(audit domain.AuditStore) FanoutOption {
	return func(f *EventFanout) { f.audit = audit }
}

// WithNotifier alerts operators on lifecycle transitions.
func WithNotifier(n *notify.Notifier) FanoutOption {
	return func(f *EventFanout) { f.notifier = n }
}

// NewEventFanout creates an EventFanout.
func NewEventFanout(markets *MarketService, logger *slog.Logger, opts ...FanoutOption) *EventFanout {
	f := &EventFanout{markets: markets, logger: logger.With(slog.String("component", "fanout"))}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PublishTrade implements engine.Publisher.
func (f *EventFanout) PublishTrade(ctx context.Context, ev domain.TradeEvent) {
	f.markets.Invalidate(ctx, ev.MarketID)
	if f.bus != nil {
		f.publishTrade(ctx, ev)
	}
	if f.notifier != nil && f.notifier.Allowed(notify.TradeEventName(ev.Action)) {
		f.wg.Add(1)
		go f.notify(ev.MarketID, func(ctx context.Context, m domain.Market) error {
			return f.notifier.NotifyTrade(ctx, m, ev)
		})
	}
}

// publishTrade appends to the trade stream first so live messages carry
// their resume cursor.
func (f *EventFanout) publishTrade(ctx context.Context, ev domain.TradeEvent) {
	msg := NewTradeMessage(ev)
	id, err := f.bus.AppendTrade(ctx, ev)
	if err != nil {
		f.logger.WarnContext(ctx, "stream trade failed",
			slog.String("trade_id", ev.ID),
			slog.String("error", err.Error()),
		)
	}
	msg.StreamID = id

	payload, err := json.Marshal(msg)
	if err != nil {
		f.logger.ErrorContext(ctx, "marshal trade", slog.String("error", err.Error()))
		return
	}
	if err := f.bus.Publish(ctx, domain.ChannelTrades, payload); err != nil {
		f.logger.WarnContext(ctx, "publish trade failed",
			slog.String("trade_id", ev.ID),
			slog.String("error", err.Error()),
		)
	}
}

// PublishLifecycle implements engine.Publisher.
func (f *EventFanout) PublishLifecycle(ctx context.Context, ev domain.LifecycleEvent) {
	f.markets.Invalidate(ctx, ev.MarketID)

	msg := NewLifecycleMessage(ev)
	if f.bus != nil {
		payload, err := json.Marshal(msg)
		if err == nil {
			err = f.bus.Publish(ctx, domain.ChannelLifecycle, payload)
		}
		if err != nil {
			f.logger.WarnContext(ctx, "publish lifecycle failed",
				slog.String("market_id", ev.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}

	if f.audit != nil {
		detail := map[string]any{"market_id": ev.MarketID, "actor": ev.Actor, "event_id": ev.ID}
		if msg.Winner != "" {
			detail["winner"] = msg.Winner
		}
		if err := f.audit.Log(ctx, notify.EventName(ev.Kind), detail); err != nil {
			f.logger.WarnContext(ctx, "audit lifecycle failed",
				slog.String("market_id", ev.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}

	if f.notifier != nil {
		f.wg.Add(1)
		go f.notify(ev.MarketID, func(ctx context.Context, m domain.Market) error {
			return f.notifier.NotifyLifecycle(ctx, m, ev)
		})
	}
}

// notify runs off the request path with its own deadline.
func (f *EventFanout) notify(marketID string, send func(context.Context, domain.Market) error) {
	defer f.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	m, err := f.markets.GetByID(ctx, marketID)
	if err != nil {
		f.logger.WarnContext(ctx, "notify: load market", slog.String("market_id", marketID), slog.String("error", err.Error()))
		return
	}
	if err := send(ctx, m); err != nil {
		f.logger.WarnContext(ctx, "notify failed", slog.String("market_id", marketID), slog.String("error", err.Error()))
	}
}

// Wait blocks until in-flight notifications finish.
func (f *EventFanout) Wait() {
	f.wg.Wait()
}
