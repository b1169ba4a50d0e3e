package domain

import "time"

// TradeAction names what a trade event records.
type TradeAction string

const (
	TradeActionSwap  TradeAction = "swap"
	TradeActionBuy   TradeAction = "buy"
	TradeActionSell  TradeAction = "sell"
	TradeActionClaim TradeAction = "claim"
	TradeActionFund  TradeAction = "fund"
)

// TradeEvent is emitted for every balance-moving market operation.
type TradeEvent struct {
	ID        string
	MarketID  string
	Trader    string
	Action    TradeAction
	Side      Side // input side for swaps, winning side for claims
	AmountIn  uint64
	AmountOut uint64
	ReserveA  uint64
	ReserveB  uint64
	Supply    [2]uint64
	PoolValue uint64
	CreatedAt time.Time
}

// LifecycleKind names a market state transition.
type LifecycleKind string

const (
	LifecycleCreated   LifecycleKind = "created"
	LifecycleActivated LifecycleKind = "activated"
	LifecycleHalted    LifecycleKind = "halted"
	LifecycleResolved  LifecycleKind = "resolved"
)

// LifecycleEvent is emitted when a market changes state.
type LifecycleEvent struct {
	ID        string
	MarketID  string
	Kind      LifecycleKind
	Actor     string
	Winner    *Side
	CreatedAt time.Time
}
