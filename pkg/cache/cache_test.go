package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/tallyhq/tally/pkg/storage"
	"github.com/tallyhq/tally/pkg/types"
)

func newTestCache(t *testing.T, window time.Duration) *Cache {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, window)
}

func TestPutThenGetReturnsLatestWrite(t *testing.T) {
	c := newTestCache(t, time.Minute)

	if err := c.Put("transactions", []byte("v1")); err != nil {
		t.Fatalf("Put(v1) error = %v", err)
	}
	if err := c.Put("transactions", []byte("v2")); err != nil {
		t.Fatalf("Put(v2) error = %v", err)
	}

	got, err := c.Get("transactions")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Payload) != "v2" {
		t.Errorf("Get() payload = %s, want v2", got.Payload)
	}
}

func TestGetMissingKey(t *testing.T) {
	c := newTestCache(t, time.Minute)

	_, err := c.Get("nope")
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStalenessComputedAtReadTime(t *testing.T) {
	c := newTestCache(t, 10*time.Minute)

	base := time.Now()
	c.now = func() time.Time { return base }

	if err := c.Put("accounts", []byte("data")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := c.Get("accounts")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.IsStale {
		t.Error("entry stale immediately after Put, want fresh")
	}

	// Advance past the window without rewriting.
	c.now = func() time.Time { return base.Add(11 * time.Minute) }

	got, err = c.Get("accounts")
	if err != nil {
		t.Fatalf("Get() after window error = %v", err)
	}
	if !got.IsStale {
		t.Error("entry fresh after window elapsed, want stale")
	}
}

func TestRemoveMissingKeyIsNoop(t *testing.T) {
	c := newTestCache(t, time.Minute)

	if err := c.Remove("ghost"); err != nil {
		t.Errorf("Remove(missing) error = %v, want nil", err)
	}
}

func TestKeys(t *testing.T) {
	c := newTestCache(t, time.Minute)

	for _, key := range []string{"accounts", "transactions"} {
		if err := c.Put(key, []byte("x")); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
	}

	keys, err := c.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Keys() returned %d keys, want 2", len(keys))
	}
}
