package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, address, side_a, side_b, authority,
	token_a, token_b, value_asset, vault, pool_vault,
	kind, state, winner,
	reserve_a::text, reserve_b::text, pool_k::text,
	curve_shape, curve_k::text, curve_n, curve_base::text, curve_slope::text,
	supply_a::text, supply_b::text, pool_value::text,
	kickoff_at, created_at, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m                  domain.Market
		kind, state, shape string
		poolK              string
		curveN             int32
	)
	err := row.Scan(
		&m.ID, &m.Address, &m.SideNames[0], &m.SideNames[1], &m.Authority,
		&m.TokenIDs[0], &m.TokenIDs[1], &m.ValueAsset, &m.Vault, &m.PoolVault,
		&kind, &state, sideCol(&m.Winner),
		numCol(&m.Pool.ReserveA), numCol(&m.Pool.ReserveB), &poolK,
		&shape, numCol(&m.Curve.K), &curveN, numCol(&m.Curve.Base), numCol(&m.Curve.Slope),
		numCol(&m.Supply[0]), numCol(&m.Supply[1]), numCol(&m.PoolValue),
		&m.KickoffAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Kind = domain.MarketKind(kind)
	m.State = domain.MarketState(state)
	m.Curve.Shape = domain.CurveShape(shape)
	m.Curve.N = uint32(curveN)
	if m.Pool.K, err = decimal.NewFromString(poolK); err != nil {
		return domain.Market{}, fmt.Errorf("postgres: pool invariant %q: %w", poolK, err)
	}
	return m, nil
}

// GetByID retrieves a committed market by id.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, fmt.Errorf("postgres: market %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns markets matching filter ordered by kickoff, then id.
func (s *MarketStore) List(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE 1=1`
	args := []any{}

	if filter.State != "" {
		args = append(args, string(filter.State))
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.KickoffBefore != nil {
		args = append(args, *filter.KickoffBefore)
		query += fmt.Sprintf(" AND kickoff_at < $%d", len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY kickoff_at ASC NULLS LAST, id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)
