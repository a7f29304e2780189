// Package storage persists tables and catalog snapshots in BadgerDB. The
// engine layer stays purely in-memory; this is the save/restore boundary
// around it.
package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/rowmill/rowmill/rel/mempool"
	"github.com/rowmill/rowmill/rel/table"
)

// Key namespaces. Each key carries a 1-byte prefix separating record kinds.
const (
	prefixSchema  = 's'
	prefixRow     = 'r'
	prefixCatalog = 'c'
	prefixMeta    = 'm'
)

// Store is a BadgerDB-backed snapshot store.
type Store struct {
	db *badger.DB
}

// Open opens or creates a store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // keep badger quiet; the CLI owns user output
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func schemaKey(name string) []byte {
	return append([]byte{prefixSchema}, name...)
}

func rowKeyPrefix(name string) []byte {
	key := append([]byte{prefixRow}, name...)
	return append(key, 0)
}

func rowKey(name string, id uint64) []byte {
	key := rowKeyPrefix(name)
	var ord [8]byte
	binary.BigEndian.PutUint64(ord[:], id)
	return append(key, ord[:]...)
}

// SaveTable writes the table's schema and rows, replacing any prior rows
// stored under the same name, and stamps the snapshot with a fresh id.
func (s *Store) SaveTable(t *table.Table) error {
	if err := s.deleteRows(t.Name()); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(schemaKey(t.Name()), encodeSchema(t.Schema())); err != nil {
			return fmt.Errorf("failed to write schema for %q: %w", t.Name(), err)
		}
		for i := 0; i < t.Len(); i++ {
			if err := txn.Set(rowKey(t.Name(), uint64(i)), encodeRow(t.Row(i))); err != nil {
				return fmt.Errorf("failed to write row %d of %q: %w", i, t.Name(), err)
			}
		}
		snapshot := uuid.NewString()
		metaKey := append([]byte{prefixMeta}, t.Name()...)
		return txn.Set(metaKey, []byte(snapshot))
	})
}

func (s *Store) deleteRows(name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = rowKeyPrefix(name)
		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadTable reconstructs a stored table. With a non-nil pool, VARCHAR cells
// of the loaded rows go into relocatable pool storage.
func (s *Store) LoadTable(name string, pool *mempool.Pool) (*table.Table, error) {
	var t *table.Table
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(schemaKey(name))
		if err != nil {
			return fmt.Errorf("no stored table %q: %w", name, err)
		}
		err = item.Value(func(val []byte) error {
			schema, err := decodeSchema(val)
			if err != nil {
				return err
			}
			if pool != nil {
				t = table.NewPooledTable(name, schema, pool)
			} else {
				t = table.NewTable(name, schema)
			}
			return nil
		})
		if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = rowKeyPrefix(name)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				values, err := decodeRow(t.Schema(), val)
				if err != nil {
					return err
				}
				return t.Insert(values...)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SaveCatalogDelta appends a delta batch to the stored catalog history.
func (s *Store) SaveCatalogDelta(delta string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte{prefixCatalog}
		var history []byte
		item, err := txn.Get(key)
		switch {
		case err == badger.ErrKeyNotFound:
		case err != nil:
			return err
		default:
			err = item.Value(func(val []byte) error {
				history = append(history, val...)
				return nil
			})
			if err != nil {
				return err
			}
		}
		if len(history) > 0 && !bytes.HasSuffix(history, []byte("\n")) {
			history = append(history, '\n')
		}
		history = append(history, delta...)
		return txn.Set(key, history)
	})
}

// LoadCatalogHistory returns the accumulated catalog delta text, empty when
// none was stored.
func (s *Store) LoadCatalogHistory() (string, error) {
	var history string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte{prefixCatalog})
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			history = string(val)
			return nil
		})
	})
	return history, err
}
