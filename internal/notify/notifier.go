// Package notify alerts operators about market activity over Telegram and
// Discord. Events can be filtered by name so operators receive only the
// alerts they care about.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/fixedpoint"
	"github.com/shopspring/decimal"
)

// Sender renders market events for one channel and delivers them.
type Sender interface {
	SendLifecycle(ctx context.Context, m domain.Market, ev domain.LifecycleEvent) error
	SendTrade(ctx context.Context, m domain.Market, ev domain.TradeEvent) error
	Name() string
}

// Notifier dispatches events to every Sender when the event name is allowed.
// An empty allow list passes every lifecycle event; trade events are only
// sent when named explicitly.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. Event names are "market.<kind>", for
// example "market.resolved", and "trade.<action>", for example "trade.claim".
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// EventName returns the filter name of a lifecycle kind.
func EventName(kind domain.LifecycleKind) string {
	return "market." + string(kind)
}

// TradeEventName returns the filter name of a trade action.
func TradeEventName(action domain.TradeAction) string {
	return "trade." + string(action)
}

// Allowed reports whether event passes the filter.
func (n *Notifier) Allowed(event string) bool {
	if len(n.events) == 0 {
		return !strings.HasPrefix(event, "trade.")
	}
	return n.events[event]
}

// NotifyLifecycle sends a lifecycle transition of m.
func (n *Notifier) NotifyLifecycle(ctx context.Context, m domain.Market, ev domain.LifecycleEvent) error {
	event := EventName(ev.Kind)
	if !n.Allowed(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, event, func(s Sender) error { return s.SendLifecycle(ctx, m, ev) })
}

// NotifyTrade sends a committed trade on m.
func (n *Notifier) NotifyTrade(ctx context.Context, m domain.Market, ev domain.TradeEvent) error {
	event := TradeEventName(ev.Action)
	if !n.Allowed(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, event, func(s Sender) error { return s.SendTrade(ctx, m, ev) })
}

// dispatch sends to every sender; one failing sender does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, event string, send func(Sender) error) error {
	var errs []error
	for _, s := range n.senders {
		if err := send(s); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), err)
	}
	return nil
}

// FormatLifecycle renders a transition for humans.
func FormatLifecycle(m domain.Market, ev domain.LifecycleEvent) (title, message string) {
	matchup := fmt.Sprintf("%s vs %s", m.SideNames[0], m.SideNames[1])
	switch ev.Kind {
	case domain.LifecycleCreated:
		title = "Market created"
		message = fmt.Sprintf("%s (%s, %s market)", matchup, m.ID, m.Kind)
	case domain.LifecycleActivated:
		title = "Market open"
		message = fmt.Sprintf("%s (%s) is accepting trades", matchup, m.ID)
	case domain.LifecycleHalted:
		title = "Trading halted"
		message = fmt.Sprintf("%s (%s) no longer accepts trades", matchup, m.ID)
	case domain.LifecycleResolved:
		title = "Market resolved"
		message = fmt.Sprintf("%s (%s): %s win. Pool value %s is claimable.",
			matchup, m.ID, winnerName(m, ev.Winner), Amount(m.PoolValue))
	default:
		title = "Market update"
		message = fmt.Sprintf("%s (%s): %s", matchup, m.ID, ev.Kind)
	}
	return title, message
}

// FormatTrade renders a trade for humans. Amounts are in whole units.
func FormatTrade(m domain.Market, ev domain.TradeEvent) (title, message string) {
	side := sideName(m, ev.Side)
	in, out := Amount(ev.AmountIn), Amount(ev.AmountOut)
	switch ev.Action {
	case domain.TradeActionBuy:
		title = "Buy"
		message = fmt.Sprintf("%s bought %s %s for %s", ev.Trader, out, side, in)
	case domain.TradeActionSell:
		title = "Sell"
		message = fmt.Sprintf("%s sold %s %s for %s", ev.Trader, in, side, out)
	case domain.TradeActionSwap:
		title = "Swap"
		message = fmt.Sprintf("%s swapped %s %s for %s %s", ev.Trader, in, side, out, sideName(m, ev.Side.Other()))
	case domain.TradeActionClaim:
		title = "Winnings claimed"
		message = fmt.Sprintf("%s redeemed %s %s for %s", ev.Trader, in, side, out)
	case domain.TradeActionFund:
		title = "Faucet"
		message = fmt.Sprintf("%s received %s", ev.Trader, out)
	default:
		title = "Trade"
		message = fmt.Sprintf("%s %s: in %s, out %s", ev.Trader, ev.Action, in, out)
	}
	return title, fmt.Sprintf("%s (%s)", message, m.ID)
}

// Amount formats a six-decimal base-unit amount.
func Amount(x uint64) string {
	return decimal.NewFromUint64(x).Shift(-fixedpoint.TokenDecimals).String()
}

func sideName(m domain.Market, s domain.Side) string {
	if !s.Valid() {
		return s.String()
	}
	return m.SideNames[s.Index()]
}

func winnerName(m domain.Market, w *domain.Side) string {
	if w == nil || !w.Valid() {
		return "unknown"
	}
	return m.SideNames[w.Index()]
}
