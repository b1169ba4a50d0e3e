package domain

import (
	"context"
	"time"
)

// ArchiveBatch is one archived object. It holds the trades created before
// Cutoff and at or after the cutoff of the batch preceding it.
type ArchiveBatch struct {
	Key    string
	Cutoff time.Time
	Size   int64
}

// TradeArchiveWriter uploads a batch of trades as one object.
type TradeArchiveWriter interface {
	WriteTrades(ctx context.Context, key string, trades []TradeEvent) error
}

// TradeArchiveReader lists archived batches, oldest first, and reads them
// back.
type TradeArchiveReader interface {
	Batches(ctx context.Context) ([]ArchiveBatch, error)
	ReadTrades(ctx context.Context, key string) ([]TradeEvent, error)
}

// Archiver copies old trades from the database to cold storage.
type Archiver interface {
	ArchiveTrades(ctx context.Context, before time.Time) (int64, error)
}

// TradeFilter selects archived trades by market or by trader.
type TradeFilter struct {
	MarketID string
	Trader   string
}

// Matches reports whether t passes the filter. Empty fields match anything.
func (f TradeFilter) Matches(t TradeEvent) bool {
	return (f.MarketID == "" || t.MarketID == f.MarketID) && (f.Trader == "" || t.Trader == f.Trader)
}

// TradeArchive serves trade history older than the archive watermark.
type TradeArchive interface {
	// Watermark is the newest archived cutoff, or the zero time.
	Watermark(ctx context.Context) (time.Time, error)
	// ListArchived returns matching archived trades, newest first.
	ListArchived(ctx context.Context, filter TradeFilter, opts ListOpts) ([]TradeEvent, error)
}
