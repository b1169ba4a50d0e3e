// Package badgerstore is an embedded, transactional implementation of the
// domain stores and ledger on top of Badger. It backs single-node
// deployments and the engine tests (in-memory mode).
package badgerstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// Options configures the database.
type Options struct {
	Path     string
	InMemory bool
	// EncryptionKey enables Badger encryption at rest; 16, 24 or 32 bytes.
	EncryptionKey []byte
}

// DB wraps the Badger handle shared by the stores in this package.
type DB struct {
	db *badger.DB
}

// Open opens (or creates) the database.
func Open(opts Options) (*DB, error) {
	if !opts.InMemory && strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("badgerstore: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		bopts = bopts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	if len(opts.EncryptionKey) > 0 {
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the database.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Key layout. Timestamps are zero-padded unix nanoseconds so byte order is
// time order.
func marketKey(id string) []byte { return []byte("m/" + id) }
func assetKey(id string) []byte  { return []byte("a/" + id) }

func balanceKey(asset, owner string) []byte { return []byte("b/" + asset + "/" + owner) }
func ownerKey(owner, asset string) []byte   { return []byte("o/" + owner + "/" + asset) }

func tsKey(prefix string, nanos int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", prefix, nanos, id))
}

const (
	tradePrefix  = "t/"
	auditPrefix  = "au/"
	marketPrefix = "m/"
)

func tradeMarketPrefix(marketID string) string { return "tm/" + marketID + "/" }
func tradeTraderPrefix(trader string) string   { return "tt/" + trader + "/" }
func lifecyclePrefix(marketID string) string   { return "l/" + marketID + "/" }
func ownerPrefix(owner string) string          { return "o/" + owner + "/" }

func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("badgerstore: marshal %s: %w", key, err)
	}
	return txn.Set(key, b)
}

func getUint64(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("badgerstore: corrupt counter at %s", key)
		}
		n = binary.BigEndian.Uint64(val)
		return nil
	})
	return n, err
}

func encodeUint64(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// scanPrefix calls fn for each value under prefix, newest first when
// reverse is set, skipping offset entries and stopping after limit (0 means
// no limit) or when fn returns false.
func scanPrefix(txn *badger.Txn, prefix string, reverse bool, offset, limit int, fn func(key, val []byte) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = reverse
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	seek := []byte(prefix)
	if reverse {
		seek = append([]byte(prefix), 0xff)
	}
	seen, taken := 0, 0
	for it.Seek(seek); it.ValidForPrefix([]byte(prefix)); it.Next() {
		if seen < offset {
			seen++
			continue
		}
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		more, err := fn(item.KeyCopy(nil), val)
		if err != nil {
			return err
		}
		taken++
		if !more || (limit > 0 && taken >= limit) {
			return nil
		}
	}
	return nil
}
