package domain

import (
	"context"
	"time"
)

// MarketCache provides fast market snapshot lookups for quoting.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	GetByToken(ctx context.Context, tokenID string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// ReplayGuard remembers signed requests so each is accepted once.
type ReplayGuard interface {
	// Claim records key for ttl. It reports false when key is already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamedTrade is a trade read back from the trade stream. ID is the
// stream entry id and serves as a resume cursor.
type StreamedTrade struct {
	ID    string
	Trade TradeEvent
}

// SignalBus carries committed engine events: pub/sub for live fan-out and a
// bounded trade stream readers can resume from a cursor.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	// AppendTrade records ev on the trade stream and returns its entry id.
	AppendTrade(ctx context.Context, ev TradeEvent) (string, error)
	// ReadTrades returns up to count trades recorded after lastID, oldest
	// first. "" or "0" reads from the oldest retained entry.
	ReadTrades(ctx context.Context, lastID string, count int) ([]StreamedTrade, error)
}

// Bus channels carrying engine events.
const (
	ChannelTrades    = "sx:trades"
	ChannelLifecycle = "sx:lifecycle"
	StreamTrades     = "sx:stream:trades"
)
