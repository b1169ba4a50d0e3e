package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	badger "github.com/dgraph-io/badger/v4"
)

// MarketStore implements domain.MarketStore.
type MarketStore struct {
	db *DB
}

// NewMarketStore creates a MarketStore.
func NewMarketStore(db *DB) *MarketStore {
	return &MarketStore{db: db}
}

// GetByID returns a committed market.
func (s *MarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	var m domain.Market
	err := s.db.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, marketKey(id), &m)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return m, fmt.Errorf("badgerstore: market %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return m, fmt.Errorf("badgerstore: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns markets matching filter ordered by kickoff, then id.
func (s *MarketStore) List(_ context.Context, filter domain.MarketFilter) ([]domain.Market, error) {
	var markets []domain.Market
	err := s.db.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, marketPrefix, false, 0, 0, func(_, val []byte) (bool, error) {
			var m domain.Market
			if err := json.Unmarshal(val, &m); err != nil {
				return false, err
			}
			if matches(m, filter) {
				markets = append(markets, m)
			}
			return true, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list markets: %w", err)
	}

	sort.SliceStable(markets, func(i, j int) bool {
		a, b := markets[i].KickoffAt, markets[j].KickoffAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return markets[i].ID < markets[j].ID
	})
	return paginate(markets, filter.Offset, filter.Limit), nil
}

// Count returns the number of markets.
func (s *MarketStore) Count(_ context.Context) (int64, error) {
	var n int64
	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(marketPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badgerstore: count markets: %w", err)
	}
	return n, nil
}

func matches(m domain.Market, f domain.MarketFilter) bool {
	if f.State != "" && m.State != f.State {
		return false
	}
	if f.Kind != "" && m.Kind != f.Kind {
		return false
	}
	if f.KickoffBefore != nil && (m.KickoffAt == nil || !m.KickoffAt.Before(*f.KickoffBefore)) {
		return false
	}
	if f.Since != nil && m.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && !m.CreatedAt.Before(*f.Until) {
		return false
	}
	return true
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ domain.MarketStore = (*MarketStore)(nil)
