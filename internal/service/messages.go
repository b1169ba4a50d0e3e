package service

import (
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

// TradeMessage is the wire form of a trade event on the bus, the websocket
// and the HTTP API. Amounts are base units encoded as JSON strings.
type TradeMessage struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	Trader    string    `json:"trader"`
	Action    string    `json:"action"`
	Side      string    `json:"side"`
	AmountIn  uint64    `json:"amount_in,string"`
	AmountOut uint64    `json:"amount_out,string"`
	ReserveA  uint64    `json:"reserve_a,string"`
	ReserveB  uint64    `json:"reserve_b,string"`
	SupplyA   uint64    `json:"supply_a,string"`
	SupplyB   uint64    `json:"supply_b,string"`
	PoolValue uint64    `json:"pool_value,string"`
	CreatedAt time.Time `json:"created_at"`
	// StreamID is the trade stream cursor; pass it as ?after= to resume.
	StreamID string `json:"stream_id,omitempty"`
}

// NewTradeMessage converts a trade event.
func NewTradeMessage(ev domain.TradeEvent) TradeMessage {
	return TradeMessage{
		Type:      "trade",
		ID:        ev.ID,
		MarketID:  ev.MarketID,
		Trader:    ev.Trader,
		Action:    string(ev.Action),
		Side:      ev.Side.String(),
		AmountIn:  ev.AmountIn,
		AmountOut: ev.AmountOut,
		ReserveA:  ev.ReserveA,
		ReserveB:  ev.ReserveB,
		SupplyA:   ev.Supply[0],
		SupplyB:   ev.Supply[1],
		PoolValue: ev.PoolValue,
		CreatedAt: ev.CreatedAt,
	}
}

// LifecycleMessage is the wire form of a lifecycle event.
type LifecycleMessage struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	Kind      string    `json:"kind"`
	Actor     string    `json:"actor"`
	Winner    string    `json:"winner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewLifecycleMessage converts a lifecycle event.
func NewLifecycleMessage(ev domain.LifecycleEvent) LifecycleMessage {
	msg := LifecycleMessage{
		Type:      "lifecycle",
		ID:        ev.ID,
		MarketID:  ev.MarketID,
		Kind:      string(ev.Kind),
		Actor:     ev.Actor,
		CreatedAt: ev.CreatedAt,
	}
	if ev.Winner != nil {
		msg.Winner = ev.Winner.String()
	}
	return msg
}
