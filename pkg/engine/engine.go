package engine

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/tallyhq/tally/pkg/cache"
	"github.com/tallyhq/tally/pkg/config"
	"github.com/tallyhq/tally/pkg/connectivity"
	"github.com/tallyhq/tally/pkg/coordinator"
	"github.com/tallyhq/tally/pkg/events"
	"github.com/tallyhq/tally/pkg/queue"
	"github.com/tallyhq/tally/pkg/reconciler"
	"github.com/tallyhq/tally/pkg/remote"
	"github.com/tallyhq/tally/pkg/storage"
	"github.com/tallyhq/tally/pkg/types"
)

// Engine wires the sync core together: durable storage, cache, queue,
// connectivity monitor, write coordinator and reconciler.
type Engine struct {
	store       *storage.BoltStore
	cache       *cache.Cache
	queue       *queue.Queue
	monitor     *connectivity.Monitor
	broker      *events.Broker
	coordinator *coordinator.Coordinator
	reconciler  *reconciler.Reconciler
}

// New assembles an engine from config. initialReachable seeds the
// connectivity state from an external startup reachability check.
func New(cfg *config.Config, remoteStore remote.Store, initialReachable bool) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	c := cache.New(store, cfg.Sync.StalenessWindow.Std())
	q := queue.New(store)
	monitor := connectivity.NewMonitor(initialReachable)
	broker := events.NewBroker()

	// One write-path lock for both writers: UI mutations and replay passes
	// never interleave inside a cache or queue transaction.
	var writeMu sync.Mutex

	rec := reconciler.New(q, c, remoteStore, broker, cfg.Sync.RetryCeiling, cfg.Sync.ReplayTimeout.Std(), &writeMu)
	monitor.SetSyncer(rec)

	coord := coordinator.New(c, q, monitor, remoteStore, broker, &writeMu)

	return &Engine{
		store:       store,
		cache:       c,
		queue:       q,
		monitor:     monitor,
		broker:      broker,
		coordinator: coord,
		reconciler:  rec,
	}, nil
}

// Start begins event distribution and, when a source is given, consumes
// reachability events until the context is cancelled.
func (e *Engine) Start(ctx context.Context, src connectivity.Source) {
	e.broker.Start()
	if src != nil {
		go e.monitor.Watch(ctx, src)
	}
}

// Stop shuts the engine down. The queue and cache stay durable on disk.
func (e *Engine) Stop() error {
	e.broker.Stop()
	return e.store.Close()
}

// Sync triggers a proactive reconciliation pass (e.g. on app foreground).
func (e *Engine) Sync() {
	e.reconciler.Sync()
}

// ApplyMutation is the engine's write surface.
func (e *Engine) ApplyMutation(ctx context.Context, m coordinator.Mutation) (*types.MutationResult, error) {
	return e.coordinator.ApplyMutation(ctx, m)
}

// Refresh pulls an entity type's documents from the remote store into the
// cache. Fails offline.
func (e *Engine) Refresh(ctx context.Context, entityType types.EntityType) error {
	return e.coordinator.Refresh(ctx, entityType)
}

// GetCached is the engine's read surface.
func (e *Engine) GetCached(entityType types.EntityType) (*coordinator.CachedResult, error) {
	return e.coordinator.GetCached(entityType)
}

// PendingOperations lists every queued operation, dead ones included.
func (e *Engine) PendingOperations() ([]*types.QueueOperation, error) {
	return e.queue.List()
}

// PendingCount returns how many mutations are waiting to sync.
func (e *Engine) PendingCount() (int, error) {
	return e.queue.Count()
}

// CancelOperation drops a queued operation that should never replay.
func (e *Engine) CancelOperation(id string) error {
	return e.queue.Cancel(id)
}

// Monitor exposes the connectivity monitor.
func (e *Engine) Monitor() *connectivity.Monitor {
	return e.monitor
}

// Events exposes the sync event broker.
func (e *Engine) Events() *events.Broker {
	return e.broker
}
