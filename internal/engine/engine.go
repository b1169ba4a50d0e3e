// Package engine runs market operations. Each operation takes the market's
// lock, opens a store transaction, re-reads the market, applies the pure
// transitions from amm, curve, lifecycle and settlement, issues the matching
// ledger calls and persists the result. Events are published only after the
// transaction commits.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// Publisher receives committed events.
type Publisher interface {
	PublishTrade(ctx context.Context, event domain.TradeEvent)
	PublishLifecycle(ctx context.Context, event domain.LifecycleEvent)
}

// MarketReader loads committed market snapshots for quoting.
type MarketReader interface {
	GetByID(ctx context.Context, id string) (domain.Market, error)
}

// Config holds engine settings.
type Config struct {
	// ValueAsset is the ledger asset traded against curve markets.
	ValueAsset string
	// Treasury is the mint authority of the value asset.
	Treasury string
	// LockTTL bounds how long a distributed market lock is held.
	LockTTL time.Duration
	// LockWait bounds how long an operation waits for a busy market.
	LockWait time.Duration
}

// Engine executes market operations.
type Engine struct {
	store     domain.Store
	reader    MarketReader
	locks     domain.LockManager
	publisher Publisher
	cfg       Config
	local     *keyedMutex
	sanitize  *bluemonday.Policy
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLockManager adds a distributed lock taken after the local one, for
// deployments running several engine processes against one database.
func WithLockManager(l domain.LockManager) Option {
	return func(e *Engine) { e.locks = l }
}

// WithPublisher sets the receiver of committed events.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithMarketReader replaces the reader used by quotes.
func WithMarketReader(r MarketReader) Option {
	return func(e *Engine) { e.reader = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine over store. reader serves quotes unless replaced.
func New(store domain.Store, reader MarketReader, cfg Config, opts ...Option) *Engine {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 2 * time.Second
	}
	e := &Engine{
		store:    store,
		reader:   reader,
		cfg:      cfg,
		local:    newKeyedMutex(),
		sanitize: bluemonday.StrictPolicy(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bootstrap registers the value asset with the treasury as mint authority.
// It is safe to call on every start.
func (e *Engine) Bootstrap(ctx context.Context) error {
	err := e.store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Assets().CreateAsset(ctx, e.cfg.ValueAsset, e.cfg.Treasury)
	})
	if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return fmt.Errorf("engine: register value asset %s: %w", e.cfg.ValueAsset, err)
	}
	return nil
}

// Faucet mints value asset to an account. Only the treasury may call it.
func (e *Engine) Faucet(ctx context.Context, caller, to string, amount uint64) error {
	if caller != e.cfg.Treasury {
		return fmt.Errorf("engine: faucet by %s: %w", caller, domain.ErrUnauthorized)
	}
	if amount == 0 || to == "" {
		return fmt.Errorf("engine: faucet: %w", domain.ErrInvalidAmount)
	}
	err := e.store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Ledger().Mint(ctx, e.cfg.ValueAsset, to, amount, e.cfg.Treasury)
	})
	if err != nil {
		return fmt.Errorf("engine: faucet: %w", err)
	}
	e.logger.InfoContext(ctx, "value asset minted",
		slog.String("to", to),
		slog.Uint64("amount", amount),
	)
	return nil
}

// ValueAsset returns the ledger asset id of the value asset.
func (e *Engine) ValueAsset() string { return e.cfg.ValueAsset }

// commit collects the events produced inside one transaction.
type commit struct {
	trades     []domain.TradeEvent
	lifecycles []domain.LifecycleEvent
}

func (c *commit) trade(ctx context.Context, tx domain.Tx, ev domain.TradeEvent) error {
	if err := tx.Events().AppendTrade(ctx, ev); err != nil {
		return err
	}
	c.trades = append(c.trades, ev)
	return nil
}

func (c *commit) lifecycle(ctx context.Context, tx domain.Tx, ev domain.LifecycleEvent) error {
	if err := tx.Events().AppendLifecycle(ctx, ev); err != nil {
		return err
	}
	c.lifecycles = append(c.lifecycles, ev)
	return nil
}

// withMarket serializes fn against every other operation on marketID and
// runs it in a transaction. Events recorded on the commit are published
// once the transaction has committed.
func (e *Engine) withMarket(ctx context.Context, marketID string, fn func(ctx context.Context, tx domain.Tx, c *commit) error) error {
	unlock := e.local.Lock(marketID)
	defer unlock()

	if e.locks != nil {
		release, err := e.acquireDistributed(ctx, marketID)
		if err != nil {
			return err
		}
		defer release()
	}

	var c commit
	if err := e.store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		c = commit{}
		return fn(ctx, tx, &c)
	}); err != nil {
		return err
	}

	if e.publisher != nil {
		for _, ev := range c.lifecycles {
			e.publisher.PublishLifecycle(ctx, ev)
		}
		for _, ev := range c.trades {
			e.publisher.PublishTrade(ctx, ev)
		}
	}
	return nil
}

func (e *Engine) acquireDistributed(ctx context.Context, marketID string) (func(), error) {
	deadline := time.NewTimer(e.cfg.LockWait)
	defer deadline.Stop()
	for {
		release, err := e.locks.Acquire(ctx, "market:"+marketID, e.cfg.LockTTL)
		if err == nil {
			return release, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("engine: lock market %s: %w", marketID, err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("engine: lock market %s: %w", marketID, ctx.Err())
		case <-deadline.C:
			return nil, fmt.Errorf("engine: market %s busy: %w", marketID, domain.ErrLockHeld)
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func (e *Engine) tradeEvent(m domain.Market, trader string, action domain.TradeAction, side domain.Side, in, out uint64) domain.TradeEvent {
	return domain.TradeEvent{
		ID:        e.newID(),
		MarketID:  m.ID,
		Trader:    trader,
		Action:    action,
		Side:      side,
		AmountIn:  in,
		AmountOut: out,
		ReserveA:  m.Pool.ReserveA,
		ReserveB:  m.Pool.ReserveB,
		Supply:    m.Supply,
		PoolValue: m.PoolValue,
		CreatedAt: m.UpdatedAt,
	}
}

func (e *Engine) stamp(ev domain.LifecycleEvent) domain.LifecycleEvent {
	ev.ID = e.newID()
	return ev
}
