package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

// Store runs engine transactions. Market rows are locked with SELECT ... FOR
// UPDATE, so concurrent operations on one market queue behind each other.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// InTx implements domain.Store.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ptx pgx.Tx) error {
		return fn(ctx, &tx{q: ptx})
	})
}

type tx struct {
	q querier
}

func (t *tx) Markets() domain.MarketRepository { return marketRepo{t.q} }
func (t *tx) Events() domain.EventRepository   { return eventRepo{t.q} }
func (t *tx) Ledger() domain.Ledger            { return ledger{t.q} }
func (t *tx) Assets() domain.AssetRegistry     { return ledger{t.q} }

type marketRepo struct{ q querier }

func (r marketRepo) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, address, side_a, side_b, authority,
			token_a, token_b, value_asset, vault, pool_vault,
			kind, state, winner,
			reserve_a, reserve_b, pool_k,
			curve_shape, curve_k, curve_n, curve_base, curve_slope,
			supply_a, supply_b, pool_value,
			kickoff_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16,
			$17, $18, $19, $20, $21,
			$22, $23, $24,
			$25, $26, $27
		)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.Address, m.SideNames[0], m.SideNames[1], m.Authority,
		m.TokenIDs[0], m.TokenIDs[1], m.ValueAsset, m.Vault, m.PoolVault,
		string(m.Kind), string(m.State), sideText(m.Winner),
		num(m.Pool.ReserveA), num(m.Pool.ReserveB), m.Pool.K.String(),
		string(m.Curve.Shape), num(m.Curve.K), int64(m.Curve.N), num(m.Curve.Base), num(m.Curve.Slope),
		num(m.Supply[0]), num(m.Supply[1]), num(m.PoolValue),
		m.KickoffAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market %s: %w", m.ID, classify(err))
	}
	return nil
}

func (r marketRepo) Get(ctx context.Context, id string) (domain.Market, error) {
	row := r.q.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1 FOR UPDATE`, id)
	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, fmt.Errorf("postgres: market %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return m, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// Update writes the mutable market fields. Identity, tokens and vaults never
// change after creation.
func (r marketRepo) Update(ctx context.Context, m domain.Market) error {
	const query = `
		UPDATE markets SET
			state = $2, winner = $3,
			reserve_a = $4, reserve_b = $5, pool_k = $6,
			supply_a = $7, supply_b = $8, pool_value = $9,
			kickoff_at = $10, updated_at = $11
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		m.ID, string(m.State), sideText(m.Winner),
		num(m.Pool.ReserveA), num(m.Pool.ReserveB), m.Pool.K.String(),
		num(m.Supply[0]), num(m.Supply[1]), num(m.PoolValue),
		m.KickoffAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market %s: %w", m.ID, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: market %s: %w", m.ID, domain.ErrNotFound)
	}
	return nil
}

type eventRepo struct{ q querier }

func (r eventRepo) AppendTrade(ctx context.Context, e domain.TradeEvent) error {
	const query = `
		INSERT INTO trade_events (
			id, market_id, trader, action, side,
			amount_in, amount_out, reserve_a, reserve_b,
			supply_a, supply_b, pool_value, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.MarketID, e.Trader, string(e.Action), e.Side.String(),
		num(e.AmountIn), num(e.AmountOut), num(e.ReserveA), num(e.ReserveB),
		num(e.Supply[0]), num(e.Supply[1]), num(e.PoolValue), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append trade %s: %w", e.ID, classify(err))
	}
	return nil
}

func (r eventRepo) AppendLifecycle(ctx context.Context, e domain.LifecycleEvent) error {
	const query = `
		INSERT INTO lifecycle_events (id, market_id, kind, actor, winner, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.MarketID, string(e.Kind), e.Actor, sideText(e.Winner), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append lifecycle %s: %w", e.ID, classify(err))
	}
	return nil
}

// ledger moves balances with conditional UPDATEs so an overdraft never
// reaches the table.
type ledger struct{ q querier }

func (l ledger) CreateAsset(ctx context.Context, asset, mintAuthority string) error {
	_, err := l.q.Exec(ctx,
		`INSERT INTO assets (id, mint_authority) VALUES ($1, $2)`, asset, mintAuthority)
	if err != nil {
		return fmt.Errorf("postgres: create asset %s: %w", asset, classify(err))
	}
	return nil
}

func (l ledger) mintAuthority(ctx context.Context, asset string) (string, error) {
	var authority string
	err := l.q.QueryRow(ctx, `SELECT mint_authority FROM assets WHERE id = $1`, asset).Scan(&authority)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("postgres: asset %s: %w", asset, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("postgres: get asset %s: %w", asset, err)
	}
	return authority, nil
}

func (l ledger) credit(ctx context.Context, asset, owner string, amount uint64) error {
	const query = `
		INSERT INTO balances (asset, owner, amount) VALUES ($1, $2, $3)
		ON CONFLICT (asset, owner) DO UPDATE SET amount = balances.amount + EXCLUDED.amount`
	if _, err := l.q.Exec(ctx, query, asset, owner, num(amount)); err != nil {
		return fmt.Errorf("postgres: credit %s to %s: %w", asset, owner, classify(err))
	}
	return nil
}

func (l ledger) debit(ctx context.Context, asset, owner string, amount uint64) error {
	tag, err := l.q.Exec(ctx,
		`UPDATE balances SET amount = amount - $3 WHERE asset = $1 AND owner = $2 AND amount >= $3`,
		asset, owner, num(amount))
	if err != nil {
		return fmt.Errorf("postgres: debit %s from %s: %w", asset, owner, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: %s holds less than %d of %s: %w", owner, amount, asset, domain.ErrInsufficientBalance)
	}
	_, err = l.q.Exec(ctx,
		`DELETE FROM balances WHERE asset = $1 AND owner = $2 AND amount = 0`, asset, owner)
	return err
}

func (l ledger) Transfer(ctx context.Context, asset, from, to string, amount uint64) error {
	if _, err := l.mintAuthority(ctx, asset); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	if err := l.debit(ctx, asset, from, amount); err != nil {
		return err
	}
	return l.credit(ctx, asset, to, amount)
}

func (l ledger) Mint(ctx context.Context, asset, to string, amount uint64, authority string) error {
	want, err := l.mintAuthority(ctx, asset)
	if err != nil {
		return err
	}
	if authority == "" || authority != want {
		return fmt.Errorf("postgres: mint %s by %s: %w", asset, authority, domain.ErrUnauthorized)
	}
	if amount == 0 {
		return nil
	}
	if _, err := l.q.Exec(ctx,
		`UPDATE assets SET total_supply = total_supply + $2 WHERE id = $1`, asset, num(amount)); err != nil {
		return fmt.Errorf("postgres: mint %s supply: %w", asset, classify(err))
	}
	return l.credit(ctx, asset, to, amount)
}

func (l ledger) Burn(ctx context.Context, asset, from string, amount uint64, owner string) error {
	if _, err := l.mintAuthority(ctx, asset); err != nil {
		return err
	}
	if owner == "" || owner != from {
		return fmt.Errorf("postgres: burn %s from %s by %s: %w", asset, from, owner, domain.ErrUnauthorized)
	}
	if amount == 0 {
		return nil
	}
	if err := l.debit(ctx, asset, from, amount); err != nil {
		return err
	}
	if _, err := l.q.Exec(ctx,
		`UPDATE assets SET total_supply = total_supply - $2 WHERE id = $1`, asset, num(amount)); err != nil {
		return fmt.Errorf("postgres: burn %s supply: %w", asset, classify(err))
	}
	return nil
}

func (l ledger) BalanceOf(ctx context.Context, asset, owner string) (uint64, error) {
	return balanceOf(ctx, l.q, asset, owner)
}

func balanceOf(ctx context.Context, q querier, asset, owner string) (uint64, error) {
	var n uint64
	err := q.QueryRow(ctx,
		`SELECT amount::text FROM balances WHERE asset = $1 AND owner = $2`, asset, owner,
	).Scan(numCol(&n))
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: balance of %s in %s: %w", owner, asset, err)
	}
	return n, nil
}

var (
	_ domain.Store         = (*Store)(nil)
	_ domain.Ledger        = ledger{}
	_ domain.AssetRegistry = ledger{}
)
