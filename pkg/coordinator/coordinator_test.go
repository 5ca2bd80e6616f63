package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyhq/tally/pkg/cache"
	"github.com/tallyhq/tally/pkg/connectivity"
	"github.com/tallyhq/tally/pkg/events"
	"github.com/tallyhq/tally/pkg/queue"
	"github.com/tallyhq/tally/pkg/remote"
	"github.com/tallyhq/tally/pkg/storage"
	"github.com/tallyhq/tally/pkg/types"
)

type harness struct {
	coord *Coordinator
	cache *cache.Cache
	queue *queue.Queue
	fake  *remote.Fake
}

func newHarness(t *testing.T, reachable bool) *harness {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := cache.New(store, 0)
	q := queue.New(store)
	fake := remote.NewFake()
	fake.SetReachable(reachable)
	monitor := connectivity.NewMonitor(reachable)

	return &harness{
		coord: New(c, q, monitor, fake, nil, nil),
		cache: c,
		queue: q,
		fake:  fake,
	}
}

func seedAccount(t *testing.T, h *harness, id string, balance int64) {
	t.Helper()
	doc, err := json.Marshal(&types.Account{ID: id, Name: "Checking", Balance: balance})
	require.NoError(t, err)
	require.NoError(t, h.cache.UpsertDocument(types.EntityAccount, doc))
}

func cachedBalance(t *testing.T, h *harness, id string) int64 {
	t.Helper()
	doc, err := h.cache.Document(types.EntityAccount, id)
	require.NoError(t, err)
	var acc types.Account
	require.NoError(t, json.Unmarshal(doc, &acc))
	return acc.Balance
}

func txnPayload(account string, amount int64, direction types.Direction) []byte {
	payload, _ := json.Marshal(map[string]any{
		"account_id": account,
		"amount":     amount,
		"direction":  string(direction),
	})
	return payload
}

func TestOnlineCreateWritesRemoteThenCache(t *testing.T) {
	h := newHarness(t, true)
	seedAccount(t, h, "acc-1", 100)

	res, err := h.coord.ApplyMutation(context.Background(), Mutation{
		EntityType: types.EntityTransaction,
		Kind:       types.OpCreate,
		Payload:    txnPayload("acc-1", 30, types.DirectionOutflow),
	})
	require.NoError(t, err)

	assert.False(t, res.Optimistic)
	assert.False(t, types.IsTemporaryID(res.ID), "online create must return a canonical id")

	// Remote has the document.
	_, ok := h.fake.Get(types.EntityTransaction, types.CanonicalID(res.ID))
	assert.True(t, ok)

	// Cache has the canonical result and the recomputed balance.
	_, err = h.cache.Document(types.EntityTransaction, res.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(70), cachedBalance(t, h, "acc-1"))

	// Nothing queued on the online path.
	n, _ := h.queue.Count()
	assert.Equal(t, 0, n)
}

func TestOnlineFailureSurfacesToCaller(t *testing.T) {
	h := newHarness(t, true)
	seedAccount(t, h, "acc-1", 100)
	h.fake.FailNext(fmt.Errorf("%w: 503", types.ErrNetwork))

	_, err := h.coord.ApplyMutation(context.Background(), Mutation{
		EntityType: types.EntityTransaction,
		Kind:       types.OpCreate,
		Payload:    txnPayload("acc-1", 30, types.DirectionOutflow),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNetwork))

	// No silent fallback: nothing queued, cache untouched.
	n, _ := h.queue.Count()
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(100), cachedBalance(t, h, "acc-1"))
}

func TestOfflineCreateIsOptimistic(t *testing.T) {
	h := newHarness(t, false)
	seedAccount(t, h, "acc-1", 100)

	res, err := h.coord.ApplyMutation(context.Background(), Mutation{
		EntityType: types.EntityTransaction,
		Kind:       types.OpCreate,
		Payload:    txnPayload("acc-1", 30, types.DirectionOutflow),
	})
	require.NoError(t, err)

	assert.True(t, res.Optimistic)
	assert.True(t, types.IsTemporaryID(res.ID), "offline create must mint a temporary id")

	// Immediately visible locally with the recomputed balance.
	_, err = h.cache.Document(types.EntityTransaction, res.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(70), cachedBalance(t, h, "acc-1"))

	// One queued create capturing the temporary id.
	ops, err := h.queue.Pending()
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, types.OpCreate, ops[0].Kind)
	assert.Equal(t, types.TemporaryID(res.ID), ops[0].TemporaryID)

	// Nothing reached the remote store.
	assert.Empty(t, h.fake.CreatedIDs())
}

func TestBalanceConsistencyAcrossPaths(t *testing.T) {
	sequence := []struct {
		amount    int64
		direction types.Direction
	}{
		{30, types.DirectionOutflow},
		{50, types.DirectionInflow},
		{20, types.DirectionOutflow},
	}

	run := func(t *testing.T, online bool) int64 {
		h := newHarness(t, online)
		seedAccount(t, h, "acc-1", 100)
		for _, step := range sequence {
			_, err := h.coord.ApplyMutation(context.Background(), Mutation{
				EntityType: types.EntityTransaction,
				Kind:       types.OpCreate,
				Payload:    txnPayload("acc-1", step.amount, step.direction),
			})
			require.NoError(t, err)
		}
		return cachedBalance(t, h, "acc-1")
	}

	onlineBalance := run(t, true)
	offlineBalance := run(t, false)

	assert.Equal(t, onlineBalance, offlineBalance,
		"the same mutation sequence must yield the same balance on both paths")
	assert.Equal(t, int64(100), onlineBalance)
}

func TestUpdateAdjustsBalanceByDelta(t *testing.T) {
	h := newHarness(t, false)
	seedAccount(t, h, "acc-1", 100)

	res, err := h.coord.ApplyMutation(context.Background(), Mutation{
		EntityType: types.EntityTransaction,
		Kind:       types.OpCreate,
		Payload:    txnPayload("acc-1", 30, types.DirectionOutflow),
	})
	require.NoError(t, err)
	require.Equal(t, int64(70), cachedBalance(t, h, "acc-1"))

	_, err = h.coord.ApplyMutation(context.Background(), Mutation{
		EntityType: types.EntityTransaction,
		Kind:       types.OpUpdate,
		TargetID:   res.ID,
		Payload:    txnPayload("acc-1", 50, types.DirectionOutflow),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(50), cachedBalance(t, h, "acc-1"),
		"update reverses the old amount and applies the new one")
}

func TestOfflineDeleteReversesBalance(t *testing.T) {
	h := newHarness(t, false)
	seedAccount(t, h, "acc-1", 70)
	require.NoError(t, h.cache.UpsertDocument(types.EntityTransaction,
		[]byte(`{"id":"txn_1","account_id":"acc-1","amount":30,"direction":"outflow"}`)))

	_, err := h.coord.ApplyMutation(context.Background(), Mutation{
		EntityType: types.EntityTransaction,
		Kind:       types.OpDelete,
		TargetID:   "txn_1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(100), cachedBalance(t, h, "acc-1"))
	_, err = h.cache.Document(types.EntityTransaction, "txn_1")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestTemporaryTargetStaysOffPathEvenWhenOnline(t *testing.T) {
	h := newHarness(t, false)
	seedAccount(t, h, "acc-1", 100)

	res, err := h.coord.ApplyMutation(context.Background(), Mutation{
		EntityType: types.EntityTransaction,
		Kind:       types.OpCreate,
		Payload:    txnPayload("acc-1", 30, types.DirectionOutflow),
	})
	require.NoError(t, err)

	// Connectivity returns, but the entity's create has not replayed yet. The
	// update must queue behind it, never hit the remote store directly.
	h.fake.SetReachable(true)
	hOnline := &harness{
		coord: New(h.cache, h.queue, connectivity.NewMonitor(true), h.fake, nil, nil),
		cache: h.cache, queue: h.queue, fake: h.fake,
	}

	upd, err := hOnline.coord.ApplyMutation(context.Background(), Mutation{
		EntityType: types.EntityTransaction,
		Kind:       types.OpUpdate,
		TargetID:   res.ID,
		Payload:    txnPayload("acc-1", 40, types.DirectionOutflow),
	})
	require.NoError(t, err)
	assert.True(t, upd.Optimistic)

	ops, _ := h.queue.Pending()
	require.Len(t, ops, 2)
	assert.Equal(t, types.OpCreate, ops[0].Kind)
	assert.Equal(t, types.OpUpdate, ops[1].Kind)
	assert.Empty(t, h.fake.CreatedIDs(), "temporary id must not reach the remote store")
}

func TestDeleteBeforeSyncCancelsQueuedCreate(t *testing.T) {
	h := newHarness(t, false)
	seedAccount(t, h, "acc-1", 100)

	res, err := h.coord.ApplyMutation(context.Background(), Mutation{
		EntityType: types.EntityTransaction,
		Kind:       types.OpCreate,
		Payload:    txnPayload("acc-1", 30, types.DirectionOutflow),
	})
	require.NoError(t, err)

	_, err = h.coord.ApplyMutation(context.Background(), Mutation{
		EntityType: types.EntityTransaction,
		Kind:       types.OpDelete,
		TargetID:   res.ID,
	})
	require.NoError(t, err)

	// The create is removed, not replayed-then-deleted, and the balance is
	// back where it started.
	n, _ := h.queue.Count()
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(100), cachedBalance(t, h, "acc-1"))
}

func TestRefreshReplacesCachedList(t *testing.T) {
	h := newHarness(t, true)
	seedAccount(t, h, "acc-stale", 5)

	_, _, err := h.fake.Create(context.Background(), types.EntityAccount, []byte(`{"name":"Remote","balance":42}`))
	require.NoError(t, err)

	require.NoError(t, h.coord.Refresh(context.Background(), types.EntityAccount))

	docs, stale, err := h.cache.Documents(types.EntityAccount)
	require.NoError(t, err)
	assert.False(t, stale)
	require.Len(t, docs, 1, "refresh replaces, not merges")
	assert.Contains(t, string(docs[0]), "Remote")
}

func TestRefreshFailsOffline(t *testing.T) {
	h := newHarness(t, false)

	err := h.coord.Refresh(context.Background(), types.EntityAccount)
	assert.True(t, errors.Is(err, types.ErrNetwork))
}

func TestOfflineMutationPublishesQueuedEvent(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := cache.New(store, 0)
	q := queue.New(store)
	fake := remote.NewFake()
	fake.SetReachable(false)

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	sub := broker.Subscribe()

	coord := New(c, q, connectivity.NewMonitor(false), fake, broker, nil)

	_, err = coord.ApplyMutation(context.Background(), Mutation{
		EntityType: types.EntityTransaction,
		Kind:       types.OpCreate,
		Payload:    txnPayload("acc-1", 30, types.DirectionOutflow),
	})
	require.NoError(t, err)

	select {
	case ev := <-sub:
		assert.Equal(t, events.EventOpQueued, ev.Type)
		assert.Equal(t, string(types.OpCreate), ev.Metadata["kind"])
		assert.Equal(t, string(types.EntityTransaction), ev.Metadata["entity_type"])
	case <-time.After(2 * time.Second):
		t.Fatal("no queued event published")
	}
}

func TestGetCachedReportsStaleness(t *testing.T) {
	h := newHarness(t, false)
	seedAccount(t, h, "acc-1", 100)

	res, err := h.coord.GetCached(types.EntityAccount)
	require.NoError(t, err)
	assert.Len(t, res.Documents, 1)
	assert.False(t, res.IsStale)
}

func TestValidateMutation(t *testing.T) {
	h := newHarness(t, true)

	tests := []struct {
		name string
		m    Mutation
	}{
		{"unknown kind", Mutation{EntityType: types.EntityRecord, Kind: "merge", Payload: []byte(`{}`)}},
		{"create without payload", Mutation{EntityType: types.EntityRecord, Kind: types.OpCreate}},
		{"update without target", Mutation{EntityType: types.EntityRecord, Kind: types.OpUpdate, Payload: []byte(`{}`)}},
		{"delete without target", Mutation{EntityType: types.EntityRecord, Kind: types.OpDelete}},
		{"missing entity type", Mutation{Kind: types.OpCreate, Payload: []byte(`{}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.coord.ApplyMutation(context.Background(), tt.m)
			assert.Error(t, err)
		})
	}
}
