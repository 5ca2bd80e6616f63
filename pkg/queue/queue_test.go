package queue

import (
	"errors"
	"testing"

	"github.com/tallyhq/tally/pkg/storage"
	"github.com/tallyhq/tally/pkg/types"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store)
}

func createOp(temp string) *types.QueueOperation {
	return &types.QueueOperation{
		Kind:        types.OpCreate,
		EntityType:  types.EntityTransaction,
		Payload:     []byte(`{"account_id":"` + temp + `","amount":10}`),
		TemporaryID: types.TemporaryID(temp),
	}
}

func TestEnqueueStampsDefaults(t *testing.T) {
	q := newTestQueue(t)

	id, err := q.Enqueue(createOp("tmp_a"))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if id == "" {
		t.Fatal("Enqueue() returned empty id")
	}

	ops, err := q.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("List() returned %d ops, want 1", len(ops))
	}
	op := ops[0]
	if op.Status != types.OpStatusPending {
		t.Errorf("Status = %s, want pending", op.Status)
	}
	if op.EnqueuedAt.IsZero() {
		t.Error("EnqueuedAt not stamped")
	}
}

func TestEnqueueRejectsInvalidOperation(t *testing.T) {
	q := newTestQueue(t)

	_, err := q.Enqueue(&types.QueueOperation{Kind: "merge", EntityType: types.EntityRecord})
	if err == nil {
		t.Error("Enqueue(invalid kind) error = nil, want error")
	}

	_, err = q.Enqueue(&types.QueueOperation{Kind: types.OpCreate, EntityType: types.EntityRecord})
	if err == nil {
		t.Error("Enqueue(create without temporary id) error = nil, want error")
	}
}

func TestRecordFailureBumpsBookkeepingOnly(t *testing.T) {
	q := newTestQueue(t)

	id, _ := q.Enqueue(createOp("tmp_b"))

	op, err := q.RecordFailure(id, errors.New("connection reset"))
	if err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if op.RetryCount != 1 || op.LastError != "connection reset" {
		t.Errorf("bookkeeping = (%d, %q), want (1, connection reset)", op.RetryCount, op.LastError)
	}
	if string(op.Payload) != `{"account_id":"tmp_b","amount":10}` {
		t.Errorf("payload changed on failure: %s", op.Payload)
	}
	if op.Kind != types.OpCreate {
		t.Errorf("kind changed on failure: %s", op.Kind)
	}
}

func TestMarkDeadExcludesFromPending(t *testing.T) {
	q := newTestQueue(t)

	id, _ := q.Enqueue(createOp("tmp_c"))
	q.Enqueue(createOp("tmp_d"))

	if err := q.MarkDead(id, errors.New("rejected")); err != nil {
		t.Fatalf("MarkDead() error = %v", err)
	}

	pending, err := q.Pending()
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 || pending[0].TemporaryID != "tmp_d" {
		t.Errorf("Pending() = %+v, want only tmp_d", pending)
	}

	n, err := q.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}

	// Dead op stays inspectable.
	all, _ := q.List()
	if len(all) != 2 {
		t.Errorf("List() = %d ops, want 2", len(all))
	}
}

func TestReassignIdentifier(t *testing.T) {
	q := newTestQueue(t)

	// A create and a follow-up update against the same temporary id, plus an
	// unrelated op referencing the temporary id as a foreign key.
	q.Enqueue(createOp("tmp_x"))
	q.Enqueue(&types.QueueOperation{
		Kind:        types.OpUpdate,
		EntityType:  types.EntityTransaction,
		Payload:     []byte(`{"id":"tmp_x","amount":99}`),
		TemporaryID: "tmp_x",
	})
	q.Enqueue(&types.QueueOperation{
		Kind:       types.OpUpdate,
		EntityType: types.EntityRecord,
		TargetID:   "rec-1",
		Payload:    []byte(`{"id":"rec-1","transaction_id":"tmp_x"}`),
	})

	if err := q.ReassignIdentifier("tmp_x", "txn_900"); err != nil {
		t.Fatalf("ReassignIdentifier() error = %v", err)
	}

	ops, _ := q.List()
	if ops[1].TargetID != "txn_900" || ops[1].TemporaryID != "" {
		t.Errorf("follow-up target = (%s, %s), want (txn_900, empty)", ops[1].TargetID, ops[1].TemporaryID)
	}
	if string(ops[1].Payload) != `{"id":"txn_900","amount":99}` {
		t.Errorf("follow-up payload = %s", ops[1].Payload)
	}
	if string(ops[2].Payload) != `{"id":"rec-1","transaction_id":"txn_900"}` {
		t.Errorf("foreign-key payload = %s", ops[2].Payload)
	}
}

func TestCancelRemoves(t *testing.T) {
	q := newTestQueue(t)

	id, _ := q.Enqueue(createOp("tmp_e"))
	if err := q.Cancel(id); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	n, _ := q.Count()
	if n != 0 {
		t.Errorf("Count() after cancel = %d, want 0", n)
	}
}
