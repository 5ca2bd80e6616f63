package cache

import (
	"errors"
	"time"

	"github.com/tallyhq/tally/pkg/storage"
	"github.com/tallyhq/tally/pkg/types"
)

// DefaultStalenessWindow is how old a cache entry may be before reads flag it
// as stale.
const DefaultStalenessWindow = 15 * time.Minute

// Result is what a cache read returns: the payload, when it was captured, and
// whether it has outlived the staleness window. Stale data is still returned;
// the flag lets callers decide whether to trust it.
type Result struct {
	Payload    []byte
	CapturedAt time.Time
	IsStale    bool
}

// Cache persists named blobs of domain data with a capture timestamp. Writes
// replace the whole payload; there are no partial merges. Durability comes
// from the underlying store.
type Cache struct {
	store  storage.Store
	window time.Duration
	now    func() time.Time
}

// New creates a cache over the given store. A non-positive window falls back
// to DefaultStalenessWindow.
func New(store storage.Store, window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultStalenessWindow
	}
	return &Cache{
		store:  store,
		window: window,
		now:    time.Now,
	}
}

// Put persists payload under key, overwriting any previous value and stamping
// the current time. Persistence failures propagate to the caller.
func (c *Cache) Put(key string, payload []byte) error {
	entry := &types.CacheEntry{
		Key:        key,
		Payload:    payload,
		CapturedAt: c.now(),
	}
	return c.store.PutEntry(entry)
}

// Get returns the most recently written payload for key along with its
// staleness, computed at read time. A missing key returns types.ErrNotFound.
func (c *Cache) Get(key string) (*Result, error) {
	entry, err := c.store.GetEntry(key)
	if err != nil {
		return nil, err
	}
	return &Result{
		Payload:    entry.Payload,
		CapturedAt: entry.CapturedAt,
		IsStale:    c.now().Sub(entry.CapturedAt) > c.window,
	}, nil
}

// Remove deletes a key. Removing a missing key is a no-op.
func (c *Cache) Remove(key string) error {
	return c.store.DeleteEntry(key)
}

// Has reports whether key is present, without touching staleness.
func (c *Cache) Has(key string) (bool, error) {
	_, err := c.store.GetEntry(key)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Keys returns every cached key. Used by the reconciler to rewrite temporary
// identifiers across all entries.
func (c *Cache) Keys() ([]string, error) {
	entries, err := c.store.ListEntries()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	return keys, nil
}
