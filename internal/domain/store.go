package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketRepository reads and writes markets inside a transaction. Get locks
// the market row until the transaction ends.
type MarketRepository interface {
	Create(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	Update(ctx context.Context, market Market) error
}

// EventRepository appends events inside a transaction.
type EventRepository interface {
	AppendTrade(ctx context.Context, event TradeEvent) error
	AppendLifecycle(ctx context.Context, event LifecycleEvent) error
}

// Tx is the unit of work handed to Store.InTx callbacks.
type Tx interface {
	Markets() MarketRepository
	Events() EventRepository
	Ledger() Ledger
	Assets() AssetRegistry
}

// Store runs transactions. A non-nil error from fn rolls back every write
// made through tx.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// MarketStore reads committed market state.
type MarketStore interface {
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, filter MarketFilter) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// TradeStore reads committed trade events.
type TradeStore interface {
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]TradeEvent, error)
	ListByTrader(ctx context.Context, trader string, opts ListOpts) ([]TradeEvent, error)
	ListBefore(ctx context.Context, before time.Time) ([]TradeEvent, error)
}

// LifecycleStore reads committed lifecycle events.
type LifecycleStore interface {
	ListByMarket(ctx context.Context, marketID string) ([]LifecycleEvent, error)
}

// BalanceReader reads committed ledger balances.
type BalanceReader interface {
	BalanceOf(ctx context.Context, asset, owner string) (uint64, error)
	Balances(ctx context.Context, owner string) (map[string]uint64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
