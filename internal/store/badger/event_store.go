package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	badger "github.com/dgraph-io/badger/v4"
)

// TradeStore implements domain.TradeStore. Listings are newest first.
type TradeStore struct {
	db *DB
}

// NewTradeStore creates a TradeStore.
func NewTradeStore(db *DB) *TradeStore {
	return &TradeStore{db: db}
}

// ListByMarket returns trades on one market.
func (s *TradeStore) ListByMarket(_ context.Context, marketID string, opts domain.ListOpts) ([]domain.TradeEvent, error) {
	return s.list(tradeMarketPrefix(marketID), opts)
}

// ListByTrader returns trades by one account across markets.
func (s *TradeStore) ListByTrader(_ context.Context, trader string, opts domain.ListOpts) ([]domain.TradeEvent, error) {
	return s.list(tradeTraderPrefix(trader), opts)
}

// ListBefore returns every trade strictly before the cutoff, oldest first.
func (s *TradeStore) ListBefore(_ context.Context, before time.Time) ([]domain.TradeEvent, error) {
	var out []domain.TradeEvent
	err := s.db.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, tradePrefix, false, 0, 0, func(_, val []byte) (bool, error) {
			var e domain.TradeEvent
			if err := json.Unmarshal(val, &e); err != nil {
				return false, err
			}
			if !e.CreatedAt.Before(before) {
				return false, nil
			}
			out = append(out, e)
			return true, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list trades before %s: %w", before, err)
	}
	return out, nil
}

// deleteBatch bounds the trades removed per transaction.
const deleteBatch = 1000

// DeleteBefore removes every trade strictly before the cutoff together with
// its index entries, in transactions of at most deleteBatch trades.
func (s *TradeStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var total int64
	for {
		var n int
		err := s.db.db.Update(func(txn *badger.Txn) error {
			var victims []domain.TradeEvent
			err := scanPrefix(txn, tradePrefix, false, 0, 0, func(_, val []byte) (bool, error) {
				var e domain.TradeEvent
				if err := json.Unmarshal(val, &e); err != nil {
					return false, err
				}
				if !e.CreatedAt.Before(before) {
					return false, nil
				}
				victims = append(victims, e)
				return len(victims) < deleteBatch, nil
			})
			if err != nil {
				return err
			}
			for _, e := range victims {
				for _, key := range tradeKeys(e) {
					if err := txn.Delete(key); err != nil {
						return err
					}
				}
			}
			n = len(victims)
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("badgerstore: delete trades before %s: %w", before, err)
		}
		total += int64(n)
		if n < deleteBatch {
			return total, nil
		}
	}
}

func (s *TradeStore) list(prefix string, opts domain.ListOpts) ([]domain.TradeEvent, error) {
	var out []domain.TradeEvent
	err := s.db.db.View(func(txn *badger.Txn) error {
		skipped := 0
		return scanPrefix(txn, prefix, true, 0, 0, func(_, val []byte) (bool, error) {
			var e domain.TradeEvent
			if err := json.Unmarshal(val, &e); err != nil {
				return false, err
			}
			if opts.Until != nil && !e.CreatedAt.Before(*opts.Until) {
				return true, nil
			}
			if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
				return false, nil
			}
			if skipped < opts.Offset {
				skipped++
				return true, nil
			}
			out = append(out, e)
			return opts.Limit <= 0 || len(out) < opts.Limit, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list trades %s: %w", prefix, err)
	}
	return out, nil
}

// LifecycleStore implements domain.LifecycleStore.
type LifecycleStore struct {
	db *DB
}

// NewLifecycleStore creates a LifecycleStore.
func NewLifecycleStore(db *DB) *LifecycleStore {
	return &LifecycleStore{db: db}
}

// ListByMarket returns a market's state transitions in order.
func (s *LifecycleStore) ListByMarket(_ context.Context, marketID string) ([]domain.LifecycleEvent, error) {
	var out []domain.LifecycleEvent
	err := s.db.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, lifecyclePrefix(marketID), false, 0, 0, func(_, val []byte) (bool, error) {
			var e domain.LifecycleEvent
			if err := json.Unmarshal(val, &e); err != nil {
				return false, err
			}
			out = append(out, e)
			return true, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list lifecycle %s: %w", marketID, err)
	}
	return out, nil
}

var (
	_ domain.TradeStore     = (*TradeStore)(nil)
	_ domain.LifecycleStore = (*LifecycleStore)(nil)
)
