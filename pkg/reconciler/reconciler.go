package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/tallyhq/tally/pkg/cache"
	"github.com/tallyhq/tally/pkg/events"
	"github.com/tallyhq/tally/pkg/log"
	"github.com/tallyhq/tally/pkg/metrics"
	"github.com/tallyhq/tally/pkg/queue"
	"github.com/tallyhq/tally/pkg/remote"
	"github.com/tallyhq/tally/pkg/types"
)

const (
	// DefaultRetryCeiling is how many failed replays an operation gets before
	// it is marked permanently failed.
	DefaultRetryCeiling = 5

	// DefaultReplayTimeout bounds each remote call during a drain.
	DefaultReplayTimeout = 10 * time.Second
)

// Reconciler drains the pending-operation queue against the remote store once
// connectivity returns. It implements connectivity.Syncer.
type Reconciler struct {
	queue   *queue.Queue
	cache   *cache.Cache
	remote  remote.Store
	broker  *events.Broker
	ceiling int
	timeout time.Duration
	// mu is the write-path lock shared with the coordinator. Each replay
	// holds it so a UI mutation never straddles an identifier rewrite.
	mu *sync.Mutex
	// inFlight guards against overlapping drains; reconciliation is not
	// reentrant.
	inFlight atomic.Bool
	logger   zerolog.Logger
}

// New creates a reconciler. Non-positive ceiling or timeout fall back to the
// defaults. The broker may be nil; events are then dropped. mu is the
// write-path lock shared with the coordinator; a nil mu allocates a private
// one.
func New(q *queue.Queue, c *cache.Cache, r remote.Store, broker *events.Broker, ceiling int, timeout time.Duration, mu *sync.Mutex) *Reconciler {
	if ceiling <= 0 {
		ceiling = DefaultRetryCeiling
	}
	if timeout <= 0 {
		timeout = DefaultReplayTimeout
	}
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &Reconciler{
		queue:   q,
		cache:   c,
		remote:  r,
		broker:  broker,
		ceiling: ceiling,
		timeout: timeout,
		mu:      mu,
		logger:  log.WithComponent("reconciler"),
	}
}

// Sync runs one reconciliation pass: replay every pending operation in
// enqueue order, removing the ones that succeed and bumping the retry
// bookkeeping of the ones that fail. A failure never aborts the drain; a
// poisoned operation must not block unrelated ones. If a pass is already in
// flight the call is dropped rather than queued, so overlapping reconnect
// edges cannot double-replay.
func (r *Reconciler) Sync() {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.logger.Debug().Msg("reconciliation already in flight, skipping")
		return
	}
	defer r.inFlight.Store(false)

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	ops, err := r.queue.Pending()
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to read pending queue")
		return
	}
	if len(ops) == 0 {
		return
	}

	r.publish(events.EventSyncStarted, "", map[string]string{
		"pending": strconv.Itoa(len(ops)),
	})
	r.logger.Info().Int("pending", len(ops)).Msg("reconciliation started")

	var replayed, failed int
	// Creates that fail during this pass; their follow-ups cannot replay yet.
	blocked := make(map[types.TemporaryID]bool)
	// Creates that died during this pass; their follow-ups can never replay.
	dead := make(map[types.TemporaryID]bool)

	for _, op := range ops {
		if op.TemporaryID != "" && op.Kind != types.OpCreate {
			if dead[op.TemporaryID] {
				r.bury(op, fmt.Errorf("create for %s permanently failed", op.TemporaryID))
				failed++
				continue
			}
			if blocked[op.TemporaryID] {
				// Leave untouched: the op is waiting on its create, not
				// failing in its own right.
				r.logger.Debug().Str("op_id", op.ID).Msg("skipping, create still pending")
				continue
			}
		}

		r.mu.Lock()
		// Earlier replays in this pass may have rewritten the persisted copy
		// of this operation, in its target or anywhere in its payload; the
		// snapshot predates that. Replay the settled copy, under the
		// write-path lock so a concurrent mutation cannot straddle the
		// rewrite.
		fresh, err := r.queue.Get(op.ID)
		if err != nil {
			r.mu.Unlock()
			if errors.Is(err, types.ErrNotFound) {
				// Cancelled since the snapshot was taken.
				r.logger.Debug().Str("op_id", op.ID).Msg("operation gone, skipping")
				continue
			}
			r.logger.Error().Err(err).Str("op_id", op.ID).Msg("failed to re-read operation")
			failed++
			continue
		}
		op = fresh
		err = r.replay(op)
		r.mu.Unlock()
		if err != nil {
			failed++
			if op.Kind == types.OpCreate {
				if errors.Is(err, types.ErrValidation) {
					dead[op.TemporaryID] = true
				} else {
					blocked[op.TemporaryID] = true
				}
			}
			continue
		}
		replayed++
	}

	r.publish(events.EventSyncCompleted, "", map[string]string{
		"replayed": strconv.Itoa(replayed),
		"failed":   strconv.Itoa(failed),
	})
	r.logger.Info().Int("replayed", replayed).Int("failed", failed).Msg("reconciliation finished")
}

// replay applies one operation remotely and settles its queue entry.
func (r *Reconciler) replay(op *types.QueueOperation) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.execute(ctx, op)
	if err == nil {
		if rmErr := r.queue.Remove(op.ID); rmErr != nil {
			return rmErr
		}
		metrics.ReplaysTotal.WithLabelValues("success").Inc()
		r.publish(events.EventOpReplayed, op.ID, nil)
		return nil
	}

	if errors.Is(err, types.ErrValidation) {
		// Replaying the same payload would fail the same way.
		r.bury(op, err)
		return err
	}

	updated, qErr := r.queue.RecordFailure(op.ID, err)
	if qErr != nil {
		r.logger.Error().Err(qErr).Str("op_id", op.ID).Msg("failed to record replay failure")
		return err
	}
	metrics.ReplaysTotal.WithLabelValues("failure").Inc()
	r.publish(events.EventOpFailed, op.ID, map[string]string{
		"retry_count": strconv.Itoa(updated.RetryCount),
		"error":       err.Error(),
	})
	r.logger.Warn().
		Err(err).
		Str("op_id", op.ID).
		Int("retry_count", updated.RetryCount).
		Msg("replay failed")

	if updated.RetryCount >= r.ceiling {
		r.bury(op, fmt.Errorf("retry ceiling %d exceeded: %w", r.ceiling, err))
	}
	return err
}

// execute issues the remote call for an operation and, for creates,
// reconciles the temporary identifier afterwards.
func (r *Reconciler) execute(ctx context.Context, op *types.QueueOperation) error {
	switch op.Kind {
	case types.OpCreate:
		canonical, _, err := r.remote.Create(ctx, op.EntityType, op.Payload)
		if err != nil {
			return err
		}
		// The remote write is durable; identifier rewrite failures are local
		// persistence errors and surface as such.
		if err := r.cache.RewriteID(op.TemporaryID, canonical); err != nil {
			return err
		}
		if err := r.queue.ReassignIdentifier(op.TemporaryID, canonical); err != nil {
			return err
		}
		r.logger.Debug().
			Str("temporary_id", op.TemporaryID.String()).
			Str("canonical_id", canonical.String()).
			Msg("identifier reconciled")
		return nil

	case types.OpUpdate:
		if op.TargetID == "" {
			return fmt.Errorf("update %s has no canonical target: %w", op.ID, types.ErrValidation)
		}
		return r.remote.Update(ctx, op.EntityType, op.TargetID, op.Payload)

	case types.OpDelete:
		if op.TargetID == "" {
			return fmt.Errorf("delete %s has no canonical target: %w", op.ID, types.ErrValidation)
		}
		err := r.remote.Delete(ctx, op.EntityType, op.TargetID)
		if errors.Is(err, types.ErrNotFound) {
			// Already gone remotely; the delete's goal is met.
			return nil
		}
		return err
	}
	return fmt.Errorf("invalid operation kind %q: %w", op.Kind, types.ErrValidation)
}

// bury marks an operation permanently failed and surfaces it. The operation
// stays in the queue, flagged dead, until the caller drops or resubmits it.
func (r *Reconciler) bury(op *types.QueueOperation, cause error) {
	if err := r.queue.MarkDead(op.ID, cause); err != nil {
		r.logger.Error().Err(err).Str("op_id", op.ID).Msg("failed to mark operation dead")
		return
	}
	metrics.DeadOperationsTotal.Inc()
	metrics.ReplaysTotal.WithLabelValues("dead").Inc()
	r.publish(events.EventOpDead, op.ID, map[string]string{"error": cause.Error()})
	r.logger.Error().
		Err(cause).
		Str("op_id", op.ID).
		Str("entity_type", string(op.EntityType)).
		Msg("operation permanently failed")
}

func (r *Reconciler) publish(t events.EventType, opID string, metadata map[string]string) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(&events.Event{
		ID:       opID,
		Type:     t,
		Metadata: metadata,
	})
}
