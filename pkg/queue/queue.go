package queue

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tallyhq/tally/pkg/metrics"
	"github.com/tallyhq/tally/pkg/storage"
	"github.com/tallyhq/tally/pkg/types"
)

// Queue is the durable FIFO list of mutations that could not be applied
// remotely yet. Operations keep their enqueue position for their whole
// lifetime; retries never reorder them.
type Queue struct {
	store storage.Store
}

// New creates a queue over the given store. Any operations persisted by a
// previous session are immediately visible and eligible for replay.
func New(store storage.Store) *Queue {
	return &Queue{store: store}
}

// Enqueue validates, stamps and persists an operation, returning its generated
// id. Payload and Kind are immutable from this point on.
func (q *Queue) Enqueue(op *types.QueueOperation) (string, error) {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.Status == "" {
		op.Status = types.OpStatusPending
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = time.Now()
	}
	if err := op.Validate(); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	if err := q.store.AppendOperation(op); err != nil {
		return "", err
	}
	q.observePending()
	return op.ID, nil
}

// Get returns a single operation by id.
func (q *Queue) Get(id string) (*types.QueueOperation, error) {
	return q.store.GetOperation(id)
}

// List returns every queued operation, dead ones included, in enqueue order.
func (q *Queue) List() ([]*types.QueueOperation, error) {
	return q.store.ListOperations()
}

// Pending returns the operations still eligible for replay, in enqueue order.
func (q *Queue) Pending() ([]*types.QueueOperation, error) {
	ops, err := q.store.ListOperations()
	if err != nil {
		return nil, err
	}
	pending := ops[:0]
	for _, op := range ops {
		if op.Status == types.OpStatusPending {
			pending = append(pending, op)
		}
	}
	return pending, nil
}

// Count returns the number of operations waiting to sync. Dead operations are
// excluded; they are no longer waiting.
func (q *Queue) Count() (int, error) {
	ops, err := q.Pending()
	if err != nil {
		return 0, err
	}
	return len(ops), nil
}

// Remove deletes a completed (or locally cancelled) operation.
func (q *Queue) Remove(id string) error {
	if err := q.store.DeleteOperation(id); err != nil {
		return err
	}
	q.observePending()
	return nil
}

// RecordFailure increments the operation's retry bookkeeping after a failed
// replay. Only RetryCount and LastError change; payload and kind stay as
// enqueued so the replay always matches what was optimistically applied.
func (q *Queue) RecordFailure(id string, cause error) (*types.QueueOperation, error) {
	op, err := q.store.GetOperation(id)
	if err != nil {
		return nil, err
	}
	op.RetryCount++
	op.LastError = cause.Error()
	if err := q.store.UpdateOperation(op); err != nil {
		return nil, err
	}
	return op, nil
}

// MarkDead flags an operation as permanently failed. It stays in the queue
// for inspection but is excluded from replay and from the pending count.
func (q *Queue) MarkDead(id string, cause error) error {
	op, err := q.store.GetOperation(id)
	if err != nil {
		return err
	}
	op.Status = types.OpStatusDead
	if cause != nil {
		op.LastError = cause.Error()
	}
	if err := q.store.UpdateOperation(op); err != nil {
		return err
	}
	q.observePending()
	return nil
}

// Cancel removes an operation that should never be replayed, e.g. a record
// deleted locally before it ever synced.
func (q *Queue) Cancel(id string) error {
	return q.Remove(id)
}

// ReassignIdentifier rewrites every queued reference to a temporary id with
// the canonical id the remote store assigned. Follow-up operations enqueued
// against the temporary id become addressable remotely; their position in the
// queue does not change. This is identifier reconciliation, not a payload
// edit: the documents' content is untouched beyond the id strings.
func (q *Queue) ReassignIdentifier(temp types.TemporaryID, canonical types.CanonicalID) error {
	ops, err := q.store.ListOperations()
	if err != nil {
		return err
	}

	from := []byte(`"` + temp.String() + `"`)
	to := []byte(`"` + canonical.String() + `"`)
	for _, op := range ops {
		changed := false
		if op.TemporaryID == temp {
			op.TemporaryID = ""
			op.TargetID = canonical
			changed = true
		}
		if bytes.Contains(op.Payload, from) {
			op.Payload = bytes.ReplaceAll(op.Payload, from, to)
			changed = true
		}
		if !changed {
			continue
		}
		if err := q.store.UpdateOperation(op); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) observePending() {
	if n, err := q.Count(); err == nil {
		metrics.PendingOperations.Set(float64(n))
	}
}
