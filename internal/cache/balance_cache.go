// Package cache persists the last successful quorum result per
// chain+address+kind. Entries can be read back with Get; the wallet's query
// paths only write to it and always query the endpoints afresh.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/0xkanth/quorum-wallet/pkg/models"
)

const entryBucket = "balance_cache"

// Store persists models.CacheEntry values in a BoltDB file.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the cache database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(entryBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func key(chain, address, kind string) []byte {
	return []byte(chain + "/" + address + "/" + kind)
}

// Put records the terminal value produced by a quorum query, overwriting
// any entry previously stored for the same chain+address+kind.
func (s *Store) Put(ctx context.Context, entry models.CacheEntry) error {
	entry.UpdatedAt = time.Now()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(entryBucket))
		if b == nil {
			return fmt.Errorf("cache: bucket not found")
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("cache: marshal entry: %w", err)
		}

		return b.Put(key(entry.Chain, entry.Address, entry.Kind), data)
	})
}

// Get retrieves the last stored entry for chain+address+kind, returning
// ErrNotFound if none exists.
func (s *Store) Get(ctx context.Context, chain, address, kind string) (*models.CacheEntry, error) {
	var entry models.CacheEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(entryBucket))
		if b == nil {
			return fmt.Errorf("cache: bucket not found")
		}

		data := b.Get(key(chain, address, kind))
		if data == nil {
			return ErrNotFound
		}

		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// ErrNotFound is returned by Get when no entry has been cached yet.
var ErrNotFound = fmt.Errorf("cache: entry not found")

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats returns the underlying BoltDB statistics.
func (s *Store) Stats() bbolt.Stats {
	return s.db.Stats()
}
