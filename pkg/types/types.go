package types

import (
	"fmt"
	"strings"
	"time"
)

// TempIDPrefix marks identifiers minted locally while offline. A canonical
// identifier assigned by the remote store never carries this prefix.
const TempIDPrefix = "tmp_"

// TemporaryID is a client-minted placeholder identifier for an entity created
// while offline. It must never be sent to the remote store as a document id.
type TemporaryID string

// CanonicalID is an identifier assigned by the remote store.
type CanonicalID string

func (id TemporaryID) String() string { return string(id) }

func (id CanonicalID) String() string { return string(id) }

// IsTemporaryID reports whether a raw identifier string is a locally minted
// temporary id.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// EntityType names a collection of records in both the cache and the remote
// store (accounts, transactions, records, members).
type EntityType string

const (
	EntityAccount     EntityType = "accounts"
	EntityTransaction EntityType = "transactions"
	EntityRecord      EntityType = "records"
	EntityMember      EntityType = "members"
)

// OpKind is the kind of mutation captured by a queued operation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// OpStatus tracks a queued operation through replay.
type OpStatus string

const (
	// OpStatusPending means the operation is waiting for replay.
	OpStatusPending OpStatus = "pending"
	// OpStatusDead means the operation exhausted its retries or was rejected
	// by the remote store and will not be replayed again.
	OpStatusDead OpStatus = "dead"
)

// QueueOperation is a single pending mutation awaiting replay against the
// remote store. Payload and Kind are immutable once enqueued; only RetryCount,
// LastError and Status change afterwards.
type QueueOperation struct {
	ID          string      `json:"id"`
	Kind        OpKind      `json:"kind"`
	EntityType  EntityType  `json:"entity_type"`
	Payload     []byte      `json:"payload"`
	TemporaryID TemporaryID `json:"temporary_id,omitempty"`
	TargetID    CanonicalID `json:"target_id,omitempty"`
	Status      OpStatus    `json:"status"`
	RetryCount  int         `json:"retry_count"`
	LastError   string      `json:"last_error,omitempty"`
	EnqueuedAt  time.Time   `json:"enqueued_at"`
}

// CacheEntry is a named blob of domain data with its capture time. Entries are
// replaced whole on every write; there are no partial merges.
type CacheEntry struct {
	Key        string    `json:"key"`
	Payload    []byte    `json:"payload"`
	CapturedAt time.Time `json:"captured_at"`
}

// ConnState is the process-wide connectivity state.
type ConnState string

const (
	ConnOnline  ConnState = "online"
	ConnOffline ConnState = "offline"
)

// Direction says whether a transaction moves value into or out of its account.
type Direction string

const (
	DirectionInflow  Direction = "inflow"
	DirectionOutflow Direction = "outflow"
)

// Transaction is a single ledger movement against an account.
type Transaction struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	Direction  Direction `json:"direction"`
	Amount     int64     `json:"amount"` // minor currency units
	Category   string    `json:"category,omitempty"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Account owns a derived balance. Balance is recomputed from transactions,
// never mutated independently.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Balance   int64     `json:"balance"` // minor currency units
	CreatedAt time.Time `json:"created_at"`
}

// MutationResult is returned synchronously from ApplyMutation on both paths.
// Optimistic is true when the mutation was queued for later replay and ID may
// still be temporary.
type MutationResult struct {
	ID         string `json:"id"`
	Optimistic bool   `json:"optimistic"`
}

// Validate performs basic shape checks on a queue operation before it is
// persisted.
func (op *QueueOperation) Validate() error {
	switch op.Kind {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("invalid operation kind: %q", op.Kind)
	}
	if op.EntityType == "" {
		return fmt.Errorf("operation missing entity type")
	}
	if op.Kind == OpCreate && op.TemporaryID == "" {
		return fmt.Errorf("create operation missing temporary id")
	}
	if op.Kind != OpCreate && op.TargetID == "" && op.TemporaryID == "" {
		return fmt.Errorf("%s operation missing target id", op.Kind)
	}
	return nil
}
