package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	"github.com/alanyoungcy/sportsxchange/internal/fixedpoint"
	badger "github.com/dgraph-io/badger/v4"
)

// Store runs serializable read-write transactions. Badger detects
// conflicting concurrent writers at commit and rejects the later one.
type Store struct {
	db *DB
}

// NewStore creates a transaction runner.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// InTx implements domain.Store.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.db.Update(func(txn *badger.Txn) error {
		return fn(ctx, &tx{txn: txn})
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("badgerstore: concurrent update: %w", err)
	}
	return err
}

type tx struct {
	txn *badger.Txn
}

func (t *tx) Markets() domain.MarketRepository { return marketRepo{t.txn} }
func (t *tx) Events() domain.EventRepository   { return eventRepo{t.txn} }
func (t *tx) Ledger() domain.Ledger            { return ledger{t.txn} }
func (t *tx) Assets() domain.AssetRegistry     { return ledger{t.txn} }

type marketRepo struct{ txn *badger.Txn }

func (r marketRepo) Create(_ context.Context, m domain.Market) error {
	if _, err := r.txn.Get(marketKey(m.ID)); err == nil {
		return fmt.Errorf("badgerstore: market %s: %w", m.ID, domain.ErrAlreadyExists)
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return setJSON(r.txn, marketKey(m.ID), m)
}

func (r marketRepo) Get(_ context.Context, id string) (domain.Market, error) {
	var m domain.Market
	err := getJSON(r.txn, marketKey(id), &m)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return m, fmt.Errorf("badgerstore: market %s: %w", id, domain.ErrNotFound)
	}
	return m, err
}

func (r marketRepo) Update(_ context.Context, m domain.Market) error {
	if _, err := r.txn.Get(marketKey(m.ID)); errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("badgerstore: market %s: %w", m.ID, domain.ErrNotFound)
	}
	return setJSON(r.txn, marketKey(m.ID), m)
}

// tradeKeys returns the primary key of a trade followed by its market and
// trader index keys.
func tradeKeys(e domain.TradeEvent) [][]byte {
	ts := e.CreatedAt.UnixNano()
	return [][]byte{
		tsKey(tradePrefix, ts, e.ID),
		tsKey(tradeMarketPrefix(e.MarketID), ts, e.ID),
		tsKey(tradeTraderPrefix(e.Trader), ts, e.ID),
	}
}

type eventRepo struct{ txn *badger.Txn }

func (r eventRepo) AppendTrade(_ context.Context, e domain.TradeEvent) error {
	for _, key := range tradeKeys(e) {
		if err := setJSON(r.txn, key, e); err != nil {
			return err
		}
	}
	return nil
}

func (r eventRepo) AppendLifecycle(_ context.Context, e domain.LifecycleEvent) error {
	return setJSON(r.txn, tsKey(lifecyclePrefix(e.MarketID), e.CreatedAt.UnixNano(), e.ID), e)
}

// ledger keeps balances under b/<asset>/<owner> with an o/<owner>/<asset>
// index for per-owner listings.
type ledger struct{ txn *badger.Txn }

func (l ledger) CreateAsset(_ context.Context, asset, mintAuthority string) error {
	if _, err := l.txn.Get(assetKey(asset)); err == nil {
		return fmt.Errorf("badgerstore: asset %s: %w", asset, domain.ErrAlreadyExists)
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return setJSON(l.txn, assetKey(asset), domain.Asset{ID: asset, MintAuthority: mintAuthority})
}

func (l ledger) asset(asset string) (domain.Asset, error) {
	var a domain.Asset
	err := getJSON(l.txn, assetKey(asset), &a)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return a, fmt.Errorf("badgerstore: asset %s: %w", asset, domain.ErrNotFound)
	}
	return a, err
}

func (l ledger) setBalance(asset, owner string, amount uint64) error {
	if amount == 0 {
		if err := l.txn.Delete(balanceKey(asset, owner)); err != nil {
			return err
		}
		return l.txn.Delete(ownerKey(owner, asset))
	}
	v := encodeUint64(amount)
	if err := l.txn.Set(balanceKey(asset, owner), v); err != nil {
		return err
	}
	return l.txn.Set(ownerKey(owner, asset), v)
}

func (l ledger) credit(asset, owner string, amount uint64) error {
	bal, err := getUint64(l.txn, balanceKey(asset, owner))
	if err != nil {
		return err
	}
	if bal, err = fixedpoint.Add(bal, amount); err != nil {
		return fmt.Errorf("badgerstore: credit %s to %s: %w", asset, owner, err)
	}
	return l.setBalance(asset, owner, bal)
}

func (l ledger) debit(asset, owner string, amount uint64) error {
	bal, err := getUint64(l.txn, balanceKey(asset, owner))
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("badgerstore: %s holds %d of %s, needs %d: %w", owner, bal, asset, amount, domain.ErrInsufficientBalance)
	}
	return l.setBalance(asset, owner, bal-amount)
}

func (l ledger) Transfer(_ context.Context, asset, from, to string, amount uint64) error {
	if _, err := l.asset(asset); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	if err := l.debit(asset, from, amount); err != nil {
		return err
	}
	return l.credit(asset, to, amount)
}

func (l ledger) Mint(_ context.Context, asset, to string, amount uint64, authority string) error {
	a, err := l.asset(asset)
	if err != nil {
		return err
	}
	if authority == "" || authority != a.MintAuthority {
		return fmt.Errorf("badgerstore: mint %s by %s: %w", asset, authority, domain.ErrUnauthorized)
	}
	if amount == 0 {
		return nil
	}
	if a.TotalSupply, err = fixedpoint.Add(a.TotalSupply, amount); err != nil {
		return fmt.Errorf("badgerstore: mint %s supply: %w", asset, err)
	}
	if err := setJSON(l.txn, assetKey(asset), a); err != nil {
		return err
	}
	return l.credit(asset, to, amount)
}

func (l ledger) Burn(_ context.Context, asset, from string, amount uint64, owner string) error {
	a, err := l.asset(asset)
	if err != nil {
		return err
	}
	if owner == "" || owner != from {
		return fmt.Errorf("badgerstore: burn %s from %s by %s: %w", asset, from, owner, domain.ErrUnauthorized)
	}
	if amount == 0 {
		return nil
	}
	if err := l.debit(asset, from, amount); err != nil {
		return err
	}
	if a.TotalSupply, err = fixedpoint.Sub(a.TotalSupply, amount); err != nil {
		return fmt.Errorf("badgerstore: burn %s supply: %w", asset, err)
	}
	return setJSON(l.txn, assetKey(asset), a)
}

func (l ledger) BalanceOf(_ context.Context, asset, owner string) (uint64, error) {
	return getUint64(l.txn, balanceKey(asset, owner))
}

var (
	_ domain.Store         = (*Store)(nil)
	_ domain.Ledger        = ledger{}
	_ domain.AssetRegistry = ledger{}
)
