package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tallyhq/tally/pkg/cache"
	"github.com/tallyhq/tally/pkg/connectivity"
	"github.com/tallyhq/tally/pkg/events"
	"github.com/tallyhq/tally/pkg/ledger"
	"github.com/tallyhq/tally/pkg/log"
	"github.com/tallyhq/tally/pkg/metrics"
	"github.com/tallyhq/tally/pkg/queue"
	"github.com/tallyhq/tally/pkg/remote"
	"github.com/tallyhq/tally/pkg/types"
)

// Mutation is a single write request from feature code. Payload is the full
// JSON document; TargetID names the document for updates and deletes and may
// be temporary if the entity was created offline and has not synced yet.
type Mutation struct {
	EntityType types.EntityType
	Kind       types.OpKind
	TargetID   string
	Payload    []byte
}

// Coordinator routes each mutation down one of two paths: directly to the
// remote store while online, or optimistically into the cache plus the
// pending queue while offline. Mutations are serialized under the write-path
// lock shared with the reconciler, so every mutation runs to completion,
// cache write and queue append included, before the next write — mutation or
// replay — observes state.
type Coordinator struct {
	mu      *sync.Mutex
	cache   *cache.Cache
	queue   *queue.Queue
	monitor *connectivity.Monitor
	remote  remote.Store
	broker  *events.Broker
	logger  zerolog.Logger
}

// New creates a coordinator. The broker may be nil; events are then dropped.
// mu is the write-path lock shared with the reconciler; a nil mu allocates a
// private one.
func New(c *cache.Cache, q *queue.Queue, m *connectivity.Monitor, r remote.Store, broker *events.Broker, mu *sync.Mutex) *Coordinator {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &Coordinator{
		mu:      mu,
		cache:   c,
		queue:   q,
		monitor: m,
		remote:  r,
		broker:  broker,
		logger:  log.WithComponent("coordinator"),
	}
}

// ApplyMutation performs the mutation and returns its (possibly temporary)
// identifier synchronously; callers never block on remote confirmation beyond
// the single direct call of the online path.
//
// The path is chosen once, at entry. If connectivity flips after the check
// the mutation stays on its chosen path: a queued operation is simply
// replayed almost immediately by the imminent reconciliation pass, and a
// failed direct call is surfaced for the caller to retry.
func (c *Coordinator) ApplyMutation(ctx context.Context, m Mutation) (*types.MutationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := validateMutation(m); err != nil {
		return nil, err
	}

	// A target created offline and not yet synced only exists under its
	// temporary id. Its mutation must queue behind the pending create, never
	// go to the remote store directly.
	online := c.monitor.IsOnline() && !types.IsTemporaryID(m.TargetID)

	if online {
		res, err := c.applyOnline(ctx, m)
		if err != nil {
			return nil, err
		}
		metrics.MutationsTotal.WithLabelValues("online", string(m.Kind)).Inc()
		return res, nil
	}

	res, err := c.applyOffline(m)
	if err != nil {
		return nil, err
	}
	metrics.MutationsTotal.WithLabelValues("offline", string(m.Kind)).Inc()
	return res, nil
}

// applyOnline executes the mutation directly against the remote store. Remote
// failures are returned to the caller unchanged; there is no silent fallback
// to the offline path.
func (c *Coordinator) applyOnline(ctx context.Context, m Mutation) (*types.MutationResult, error) {
	switch m.Kind {
	case types.OpCreate:
		id, stored, err := c.remote.Create(ctx, m.EntityType, m.Payload)
		if err != nil {
			return nil, fmt.Errorf("remote create %s: %w", m.EntityType, err)
		}
		doc, err := cache.WithDocumentID(stored, id.String())
		if err != nil {
			return nil, err
		}
		if err := c.cache.UpsertDocument(m.EntityType, doc); err != nil {
			return nil, err
		}
		if err := c.recompute(m.EntityType, types.OpCreate, doc, nil); err != nil {
			return nil, err
		}
		return &types.MutationResult{ID: id.String(), Optimistic: false}, nil

	case types.OpUpdate:
		old, err := c.cache.Document(m.EntityType, m.TargetID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		doc, err := cache.WithDocumentID(m.Payload, m.TargetID)
		if err != nil {
			return nil, err
		}
		if err := c.remote.Update(ctx, m.EntityType, types.CanonicalID(m.TargetID), m.Payload); err != nil {
			return nil, fmt.Errorf("remote update %s/%s: %w", m.EntityType, m.TargetID, err)
		}
		if err := c.cache.UpsertDocument(m.EntityType, doc); err != nil {
			return nil, err
		}
		if err := c.recompute(m.EntityType, types.OpUpdate, doc, old); err != nil {
			return nil, err
		}
		return &types.MutationResult{ID: m.TargetID, Optimistic: false}, nil

	case types.OpDelete:
		old, err := c.cache.Document(m.EntityType, m.TargetID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if err := c.remote.Delete(ctx, m.EntityType, types.CanonicalID(m.TargetID)); err != nil {
			return nil, fmt.Errorf("remote delete %s/%s: %w", m.EntityType, m.TargetID, err)
		}
		if err := c.cache.RemoveDocument(m.EntityType, m.TargetID); err != nil {
			return nil, err
		}
		if err := c.recompute(m.EntityType, types.OpDelete, old, nil); err != nil {
			return nil, err
		}
		return &types.MutationResult{ID: m.TargetID, Optimistic: false}, nil
	}
	return nil, fmt.Errorf("invalid mutation kind: %q", m.Kind)
}

// applyOffline applies the mutation optimistically to the cache and appends a
// queue operation for later replay. The derived aggregate is recomputed with
// the same pure function the online path uses, so both paths converge on the
// same value.
func (c *Coordinator) applyOffline(m Mutation) (*types.MutationResult, error) {
	op := &types.QueueOperation{
		Kind:       m.Kind,
		EntityType: m.EntityType,
		Payload:    m.Payload,
		Status:     types.OpStatusPending,
	}

	var resultID string
	switch m.Kind {
	case types.OpCreate:
		temp, err := c.mintTemporaryID()
		if err != nil {
			return nil, err
		}
		doc, err := cache.WithDocumentID(m.Payload, temp.String())
		if err != nil {
			return nil, err
		}
		if err := c.cache.UpsertDocument(m.EntityType, doc); err != nil {
			return nil, err
		}
		if err := c.recompute(m.EntityType, types.OpCreate, doc, nil); err != nil {
			return nil, err
		}
		op.TemporaryID = temp
		resultID = temp.String()

	case types.OpUpdate:
		old, err := c.cache.Document(m.EntityType, m.TargetID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		doc, err := cache.WithDocumentID(m.Payload, m.TargetID)
		if err != nil {
			return nil, err
		}
		if err := c.cache.UpsertDocument(m.EntityType, doc); err != nil {
			return nil, err
		}
		if err := c.recompute(m.EntityType, types.OpUpdate, doc, old); err != nil {
			return nil, err
		}
		setOpTarget(op, m.TargetID)
		resultID = m.TargetID

	case types.OpDelete:
		old, err := c.cache.Document(m.EntityType, m.TargetID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if err := c.cache.RemoveDocument(m.EntityType, m.TargetID); err != nil {
			return nil, err
		}
		if err := c.recompute(m.EntityType, types.OpDelete, old, nil); err != nil {
			return nil, err
		}
		// A delete of an entity whose create never synced cancels the create
		// instead of replaying both.
		if types.IsTemporaryID(m.TargetID) {
			if cancelled, err := c.cancelPendingCreate(types.TemporaryID(m.TargetID)); err != nil {
				return nil, err
			} else if cancelled {
				return &types.MutationResult{ID: m.TargetID, Optimistic: true}, nil
			}
		}
		setOpTarget(op, m.TargetID)
		resultID = m.TargetID
	}

	opID, err := c.queue.Enqueue(op)
	if err != nil {
		return nil, err
	}
	c.publishQueued(opID, m)

	c.logger.Debug().
		Str("kind", string(m.Kind)).
		Str("entity_type", string(m.EntityType)).
		Str("id", resultID).
		Msg("mutation queued")

	return &types.MutationResult{ID: resultID, Optimistic: true}, nil
}

func (c *Coordinator) publishQueued(opID string, m Mutation) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(&events.Event{
		ID:   opID,
		Type: events.EventOpQueued,
		Metadata: map[string]string{
			"kind":        string(m.Kind),
			"entity_type": string(m.EntityType),
		},
	})
}

// cancelPendingCreate removes the queued create (and any queued follow-ups)
// for an entity deleted locally before it ever synced. Reports whether a
// create was found and cancelled.
func (c *Coordinator) cancelPendingCreate(temp types.TemporaryID) (bool, error) {
	ops, err := c.queue.List()
	if err != nil {
		return false, err
	}
	found := false
	for _, op := range ops {
		if op.TemporaryID == temp {
			if err := c.queue.Cancel(op.ID); err != nil {
				return false, err
			}
			found = found || op.Kind == types.OpCreate
		}
	}
	return found, nil
}

// mintTemporaryID generates a fresh temporary identifier and verifies it
// collides with nothing live. A collision means id minting is broken, so it
// is reported as an invariant violation rather than retried.
func (c *Coordinator) mintTemporaryID() (types.TemporaryID, error) {
	temp := types.TemporaryID(types.TempIDPrefix + uuid.New().String())

	inCache, err := c.cache.HasDocumentID(temp.String())
	if err != nil {
		return "", err
	}
	inQueue := false
	ops, err := c.queue.List()
	if err != nil {
		return "", err
	}
	for _, op := range ops {
		if op.TemporaryID == temp {
			inQueue = true
			break
		}
	}

	if inCache || inQueue {
		c.logger.Error().Str("temporary_id", temp.String()).Msg("temporary id collision")
		return "", fmt.Errorf("mint %s: %w", temp, types.ErrTemporaryIDCollision)
	}
	return temp, nil
}

// recompute updates the derived balance of the owning account when a
// transaction mutation lands. doc is the transaction after the mutation, old
// the cached version before it (updates reverse old, then apply new).
func (c *Coordinator) recompute(entityType types.EntityType, kind types.OpKind, doc, old []byte) error {
	if entityType != types.EntityTransaction {
		return nil
	}

	switch kind {
	case types.OpCreate:
		txn, err := decodeTransaction(doc)
		if err != nil {
			return err
		}
		return c.adjustBalance(txn, types.OpCreate)

	case types.OpDelete:
		if doc == nil {
			return nil
		}
		txn, err := decodeTransaction(doc)
		if err != nil {
			return err
		}
		return c.adjustBalance(txn, types.OpDelete)

	case types.OpUpdate:
		if old != nil {
			oldTxn, err := decodeTransaction(old)
			if err != nil {
				return err
			}
			if err := c.adjustBalance(oldTxn, types.OpDelete); err != nil {
				return err
			}
		}
		txn, err := decodeTransaction(doc)
		if err != nil {
			return err
		}
		return c.adjustBalance(txn, types.OpCreate)
	}
	return nil
}

func (c *Coordinator) adjustBalance(txn *types.Transaction, kind types.OpKind) error {
	if txn.AccountID == "" {
		return nil
	}
	doc, err := c.cache.Document(types.EntityAccount, txn.AccountID)
	if isNotFound(err) {
		// Account not cached locally; the remote store owns its balance.
		return nil
	}
	if err != nil {
		return err
	}

	var account types.Account
	if err := json.Unmarshal(doc, &account); err != nil {
		return fmt.Errorf("decode account %s: %w", txn.AccountID, err)
	}
	account.Balance = ledger.Recompute(account.Balance, kind, txn.Amount, txn.Direction)

	updated, err := json.Marshal(&account)
	if err != nil {
		return fmt.Errorf("encode account %s: %w", txn.AccountID, err)
	}
	return c.cache.UpsertDocument(types.EntityAccount, updated)
}

func decodeTransaction(doc []byte) (*types.Transaction, error) {
	var txn types.Transaction
	if err := json.Unmarshal(doc, &txn); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return &txn, nil
}

// setOpTarget records the mutation target on a queued operation, keeping
// temporary and canonical identifiers apart so a temporary id can never be
// sent to the remote store as if it were canonical.
func setOpTarget(op *types.QueueOperation, targetID string) {
	if types.IsTemporaryID(targetID) {
		op.TemporaryID = types.TemporaryID(targetID)
	} else {
		op.TargetID = types.CanonicalID(targetID)
	}
}

func validateMutation(m Mutation) error {
	switch m.Kind {
	case types.OpCreate:
		if len(m.Payload) == 0 {
			return fmt.Errorf("create mutation missing payload")
		}
	case types.OpUpdate:
		if m.TargetID == "" {
			return fmt.Errorf("update mutation missing target id")
		}
		if len(m.Payload) == 0 {
			return fmt.Errorf("update mutation missing payload")
		}
	case types.OpDelete:
		if m.TargetID == "" {
			return fmt.Errorf("delete mutation missing target id")
		}
	default:
		return fmt.Errorf("invalid mutation kind: %q", m.Kind)
	}
	if m.EntityType == "" {
		return fmt.Errorf("mutation missing entity type")
	}
	return nil
}
