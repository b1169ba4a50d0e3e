package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
	badger "github.com/dgraph-io/badger/v4"
)

// AuditStore implements domain.AuditStore as an append-only key range.
type AuditStore struct {
	db *DB
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// Log appends an audit entry.
func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	now := time.Now().UTC()
	entry := domain.AuditEntry{ID: now.UnixNano(), Event: event, Detail: detail, CreatedAt: now}
	err := s.db.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, tsKey(auditPrefix, entry.ID, event), entry)
	})
	if err != nil {
		return fmt.Errorf("badgerstore: audit log %q: %w", event, err)
	}
	return nil
}

// List returns audit entries, newest first.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := s.db.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, auditPrefix, true, opts.Offset, opts.Limit, func(_, val []byte) (bool, error) {
			var e domain.AuditEntry
			if err := json.Unmarshal(val, &e); err != nil {
				return false, err
			}
			out = append(out, e)
			return true, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list audit: %w", err)
	}
	return out, nil
}

var _ domain.AuditStore = (*AuditStore)(nil)
