package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/tallyhq/tally/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketCache = []byte("cache")
	bucketQueue = []byte("queue")
)

// BoltStore implements Store using BoltDB. Cache entries are keyed by their
// cache key; queued operations are keyed by a monotonically increasing
// sequence number so a forward cursor walk yields enqueue order.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "tally.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", types.ErrPersistence, err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketCache, bucketQueue} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", types.ErrPersistence, err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Cache entry operations

func (s *BoltStore) PutEntry(entry *types.CacheEntry) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCache)
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(entry.Key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: put cache entry %q: %v", types.ErrPersistence, entry.Key, err)
	}
	return nil
}

func (s *BoltStore) GetEntry(key string) (*types.CacheEntry, error) {
	var entry types.CacheEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCache)
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("cache entry %q: %w", key, types.ErrNotFound)
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *BoltStore) DeleteEntry(key string) error {
	// Deleting a missing key is a no-op.
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCache)
		return b.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: delete cache entry %q: %v", types.ErrPersistence, key, err)
	}
	return nil
}

func (s *BoltStore) ListEntries() ([]*types.CacheEntry, error) {
	var entries []*types.CacheEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCache)
		return b.ForEach(func(k, v []byte) error {
			var entry types.CacheEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list cache entries: %v", types.ErrPersistence, err)
	}
	return entries, nil
}

// Queued operation operations

func (s *BoltStore) AppendOperation(op *types.QueueOperation) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueue)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(op)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
	if err != nil {
		return fmt.Errorf("%w: append operation %s: %v", types.ErrPersistence, op.ID, err)
	}
	return nil
}

func (s *BoltStore) GetOperation(id string) (*types.QueueOperation, error) {
	var found *types.QueueOperation
	err := s.db.View(func(tx *bolt.Tx) error {
		_, op, err := findOperation(tx, id)
		if err != nil {
			return err
		}
		found = op
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *BoltStore) ListOperations() ([]*types.QueueOperation, error) {
	var ops []*types.QueueOperation
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueue)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var op types.QueueOperation
			if err := json.Unmarshal(v, &op); err != nil {
				return err
			}
			ops = append(ops, &op)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list operations: %v", types.ErrPersistence, err)
	}
	return ops, nil
}

func (s *BoltStore) UpdateOperation(op *types.QueueOperation) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		key, _, err := findOperation(tx, op.ID)
		if err != nil {
			return err
		}
		data, err := json.Marshal(op)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketQueue).Put(key, data)
	})
	if err != nil {
		if isNotFound(err) {
			return err
		}
		return fmt.Errorf("%w: update operation %s: %v", types.ErrPersistence, op.ID, err)
	}
	return nil
}

func (s *BoltStore) DeleteOperation(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		key, _, err := findOperation(tx, id)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketQueue).Delete(key)
	})
	if err != nil {
		if isNotFound(err) {
			return err
		}
		return fmt.Errorf("%w: delete operation %s: %v", types.ErrPersistence, id, err)
	}
	return nil
}

// findOperation walks the queue bucket in sequence order looking for the
// operation with the given id. Pending queues are small (tens of entries), so
// a cursor scan is cheaper than maintaining a secondary index.
func findOperation(tx *bolt.Tx, id string) ([]byte, *types.QueueOperation, error) {
	b := tx.Bucket(bucketQueue)
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var op types.QueueOperation
		if err := json.Unmarshal(v, &op); err != nil {
			return nil, nil, err
		}
		if op.ID == id {
			key := make([]byte, len(k))
			copy(key, k)
			return key, &op, nil
		}
	}
	return nil, nil, fmt.Errorf("operation %s: %w", id, types.ErrNotFound)
}

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}

// seqKey encodes a bucket sequence number as a big-endian key so byte order
// matches enqueue order.
func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
