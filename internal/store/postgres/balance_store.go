package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

// BalanceStore reads committed ledger balances.
type BalanceStore struct {
	pool *pgxpool.Pool
}

// NewBalanceStore creates a new BalanceStore.
func NewBalanceStore(pool *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// BalanceOf returns owner's balance of asset; unknown pairs hold zero.
func (s *BalanceStore) BalanceOf(ctx context.Context, asset, owner string) (uint64, error) {
	return balanceOf(ctx, s.pool, asset, owner)
}

// Balances returns every non-zero balance owner holds, keyed by asset.
func (s *BalanceStore) Balances(ctx context.Context, owner string) (map[string]uint64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT asset, amount::text FROM balances WHERE owner = $1 AND amount > 0`, owner)
	if err != nil {
		return nil, fmt.Errorf("postgres: balances of %s: %w", owner, err)
	}
	defer rows.Close()

	out := make(map[string]uint64)
	for rows.Next() {
		var (
			asset  string
			amount uint64
		)
		if err := rows.Scan(&asset, numCol(&amount)); err != nil {
			return nil, fmt.Errorf("postgres: scan balance: %w", err)
		}
		out[asset] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: balances rows: %w", err)
	}
	return out, nil
}

var _ domain.BalanceReader = (*BalanceStore)(nil)
