package badgerstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	badger "github.com/dgraph-io/badger/v4"
)

// BalanceStore implements domain.BalanceReader over committed state.
type BalanceStore struct {
	db *DB
}

// NewBalanceStore creates a BalanceStore.
func NewBalanceStore(db *DB) *BalanceStore {
	return &BalanceStore{db: db}
}

// BalanceOf returns owner's balance of asset.
func (s *BalanceStore) BalanceOf(_ context.Context, asset, owner string) (uint64, error) {
	var n uint64
	err := s.db.db.View(func(txn *badger.Txn) error {
		var err error
		n, err = getUint64(txn, balanceKey(asset, owner))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("badgerstore: balance %s/%s: %w", asset, owner, err)
	}
	return n, nil
}

// Balances returns every non-zero balance held by owner.
func (s *BalanceStore) Balances(_ context.Context, owner string) (map[string]uint64, error) {
	out := make(map[string]uint64)
	prefix := ownerPrefix(owner)
	err := s.db.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefix, false, 0, 0, func(key, val []byte) (bool, error) {
			if len(val) != 8 {
				return false, fmt.Errorf("corrupt balance at %s", key)
			}
			out[strings.TrimPrefix(string(key), prefix)] = binary.BigEndian.Uint64(val)
			return true, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: balances of %s: %w", owner, err)
	}
	return out, nil
}

var _ domain.BalanceReader = (*BalanceStore)(nil)
