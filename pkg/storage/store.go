package storage

import (
	"github.com/tallyhq/tally/pkg/types"
)

// Store is the durable key-value persistence layer shared by the cache and
// the pending-operation queue. Implementations must survive process restarts:
// a successful write is readable by the next session.
type Store interface {
	// Cache entries
	PutEntry(entry *types.CacheEntry) error
	GetEntry(key string) (*types.CacheEntry, error)
	DeleteEntry(key string) error
	ListEntries() ([]*types.CacheEntry, error)

	// Queued operations
	AppendOperation(op *types.QueueOperation) error
	GetOperation(id string) (*types.QueueOperation, error)
	ListOperations() ([]*types.QueueOperation, error)
	UpdateOperation(op *types.QueueOperation) error
	DeleteOperation(id string) error

	// Utility
	Close() error
}
