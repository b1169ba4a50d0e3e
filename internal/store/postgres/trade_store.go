package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id::text, market_id, trader, action, side,
	amount_in::text, amount_out::text, reserve_a::text, reserve_b::text,
	supply_a::text, supply_b::text, pool_value::text, created_at`

func scanTradeRows(rows pgx.Rows) ([]domain.TradeEvent, error) {
	var trades []domain.TradeEvent
	for rows.Next() {
		var (
			t            domain.TradeEvent
			action, side string
		)
		if err := rows.Scan(
			&t.ID, &t.MarketID, &t.Trader, &action, &side,
			numCol(&t.AmountIn), numCol(&t.AmountOut), numCol(&t.ReserveA), numCol(&t.ReserveB),
			numCol(&t.Supply[0]), numCol(&t.Supply[1]), numCol(&t.PoolValue), &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		parsed, err := domain.ParseSide(side)
		if err != nil {
			return nil, err
		}
		t.Action = domain.TradeAction(action)
		t.Side = parsed
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ListByMarket returns a market's trades, newest first.
func (s *TradeStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.TradeEvent, error) {
	query, args := appendListOpts(
		`SELECT `+tradeSelectCols+` FROM trade_events WHERE market_id = $1`,
		[]any{marketID}, opts, "created_at", "DESC")
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for market %s: %w", marketID, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades for market %s: %w", marketID, err)
	}
	return trades, nil
}

// ListByTrader returns an account's trades across markets, newest first.
func (s *TradeStore) ListByTrader(ctx context.Context, trader string, opts domain.ListOpts) ([]domain.TradeEvent, error) {
	query, args := appendListOpts(
		`SELECT `+tradeSelectCols+` FROM trade_events WHERE trader = $1`,
		[]any{trader}, opts, "created_at", "DESC")
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for %s: %w", trader, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades for %s: %w", trader, err)
	}
	return trades, nil
}

// ListBefore returns every trade strictly before the cutoff, oldest first.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trade_events WHERE created_at < $1 ORDER BY created_at ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades before %s: %w", before, err)
	}
	return trades, nil
}

// DeleteBefore removes every trade strictly before the cutoff.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trade_events WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

// LifecycleStore implements domain.LifecycleStore using PostgreSQL.
type LifecycleStore struct {
	pool *pgxpool.Pool
}

// NewLifecycleStore creates a new LifecycleStore.
func NewLifecycleStore(pool *pgxpool.Pool) *LifecycleStore {
	return &LifecycleStore{pool: pool}
}

// ListByMarket returns a market's state transitions in order.
func (s *LifecycleStore) ListByMarket(ctx context.Context, marketID string) ([]domain.LifecycleEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, market_id, kind, actor, winner, created_at
		 FROM lifecycle_events WHERE market_id = $1 ORDER BY created_at ASC`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list lifecycle for %s: %w", marketID, err)
	}
	defer rows.Close()

	var events []domain.LifecycleEvent
	for rows.Next() {
		var (
			e    domain.LifecycleEvent
			kind string
		)
		if err := rows.Scan(&e.ID, &e.MarketID, &kind, &e.Actor, sideCol(&e.Winner), &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan lifecycle event: %w", err)
		}
		e.Kind = domain.LifecycleKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list lifecycle rows: %w", err)
	}
	return events, nil
}

var (
	_ domain.TradeStore     = (*TradeStore)(nil)
	_ domain.LifecycleStore = (*LifecycleStore)(nil)
)
