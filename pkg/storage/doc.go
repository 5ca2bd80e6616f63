/*
Package storage provides BoltDB-backed persistence for Tally's sync engine.

The storage package implements the Store interface using BoltDB (bbolt) as the
single local key-value layer shared by the cache and the pending-operation
queue. All data is serialized as JSON and stored in separate buckets.

# Architecture

	┌──────────────────── BOLTDB STORAGE ─────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐          │
	│  │            BoltStore                        │          │
	│  │  - File: <dataDir>/tally.db                 │          │
	│  │  - Transactions: ACID with fsync            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Bucket Structure               │          │
	│  │  ┌────────────────────────────┐             │          │
	│  │  │ cache  (cache key)         │             │          │
	│  │  │ queue  (big-endian seq no) │             │          │
	│  │  └────────────────────────────┘             │          │
	│  └────────────────────────────────────────────┘           │
	└──────────────────────────────────────────────────────────┘

Cache entries are keyed by their cache key and replaced whole on every write.
Queue entries are keyed by bucket.NextSequence() encoded big-endian, so a
forward cursor walk returns operations in exact enqueue order and the ordering
survives restarts.

Transaction Model:
  - Read transactions: db.View() - concurrent, consistent snapshots
  - Write transactions: db.Update() - serialized, atomic commits
  - Durability: fsync on commit ensures crash recovery

Errors from the underlying database are wrapped with types.ErrPersistence so
callers can classify them; missing keys return types.ErrNotFound, except
DeleteEntry, which treats a missing key as a no-op.
*/
package storage
