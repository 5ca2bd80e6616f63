package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/tallyhq/tally/pkg/cache"
	"github.com/tallyhq/tally/pkg/connectivity"
	"github.com/tallyhq/tally/pkg/types"
)

// CachedResult is the read surface exposed to feature code: the cached
// document list for an entity type plus its staleness.
type CachedResult struct {
	Documents [][]byte
	IsStale   bool
}

// GetCached returns the cached documents for an entity type. Stale data is
// still returned; IsStale tells the caller it may be outdated.
func (c *Coordinator) GetCached(entityType types.EntityType) (*CachedResult, error) {
	docs, stale, err := c.cache.Documents(entityType)
	if err != nil {
		return nil, err
	}
	return &CachedResult{Documents: docs, IsStale: stale}, nil
}

// Refresh replaces the cached document list for an entity type with the
// remote store's current contents, resetting its staleness. Online only;
// offline callers keep serving the cache. Refresh while mutations are still
// queued would clobber optimistic documents, so call it after the queue
// drains.
func (c *Coordinator) Refresh(ctx context.Context, entityType types.EntityType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.monitor.IsOnline() {
		return fmt.Errorf("refresh %s: %w", entityType, types.ErrNetwork)
	}
	docs, err := c.remote.Query(ctx, entityType, nil)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", entityType, err)
	}
	return c.cache.ReplaceDocuments(entityType, docs)
}

// GetPendingOperationCount returns how many mutations are waiting to sync,
// for the user-visible pending indicator.
func (c *Coordinator) GetPendingOperationCount() (int, error) {
	return c.queue.Count()
}

// OnConnectivityChange registers a listener for connectivity transitions and
// returns its unsubscribe handle.
func (c *Coordinator) OnConnectivityChange(l connectivity.Listener) (unsubscribe func()) {
	return c.monitor.Subscribe(l)
}

// Cache exposes the cache for collaborators that need direct reads.
func (c *Coordinator) Cache() *cache.Cache {
	return c.cache
}

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}
