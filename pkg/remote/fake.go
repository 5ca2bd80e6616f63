package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tallyhq/tally/pkg/types"
)

// Fake is an in-memory remote store used by tests and the local demo mode.
// It assigns uuid canonical ids and supports scripted failures so replay
// behavior can be exercised without a network.
type Fake struct {
	mu        sync.Mutex
	docs      map[types.EntityType]map[types.CanonicalID][]byte
	reachable bool
	nextErrs  []error
	createLog []types.CanonicalID
}

// NewFake creates a reachable fake store.
func NewFake() *Fake {
	return &Fake{
		docs:      make(map[types.EntityType]map[types.CanonicalID][]byte),
		reachable: true,
	}
}

// SetReachable toggles simulated connectivity. While unreachable every call
// fails with types.ErrNetwork.
func (f *Fake) SetReachable(reachable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reachable = reachable
}

// FailNext queues outcomes for the next calls, in order. A nil entry lets
// that call succeed, so failures can be scripted mid-sequence.
func (f *Fake) FailNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextErrs = append(f.nextErrs, errs...)
}

// CreatedIDs returns the canonical ids assigned so far, in creation order.
func (f *Fake) CreatedIDs() []types.CanonicalID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.CanonicalID, len(f.createLog))
	copy(out, f.createLog)
	return out
}

// Get returns a stored document, for test assertions.
func (f *Fake) Get(collection types.EntityType, id types.CanonicalID) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[collection][id]
	return doc, ok
}

func (f *Fake) gate() error {
	if len(f.nextErrs) > 0 {
		err := f.nextErrs[0]
		f.nextErrs = f.nextErrs[1:]
		return err
	}
	if !f.reachable {
		return fmt.Errorf("%w: remote unreachable", types.ErrNetwork)
	}
	return nil
}

func (f *Fake) Create(ctx context.Context, collection types.EntityType, payload []byte) (types.CanonicalID, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(); err != nil {
		return "", nil, err
	}

	id := types.CanonicalID(uuid.New().String())
	if f.docs[collection] == nil {
		f.docs[collection] = make(map[types.CanonicalID][]byte)
	}
	stored := make([]byte, len(payload))
	copy(stored, payload)
	f.docs[collection][id] = stored
	f.createLog = append(f.createLog, id)
	return id, stored, nil
}

func (f *Fake) Update(ctx context.Context, collection types.EntityType, id types.CanonicalID, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(); err != nil {
		return err
	}

	if _, ok := f.docs[collection][id]; !ok {
		return fmt.Errorf("document %s/%s: %w", collection, id, types.ErrNotFound)
	}
	stored := make([]byte, len(payload))
	copy(stored, payload)
	f.docs[collection][id] = stored
	return nil
}

func (f *Fake) Delete(ctx context.Context, collection types.EntityType, id types.CanonicalID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(); err != nil {
		return err
	}

	delete(f.docs[collection], id)
	return nil
}

func (f *Fake) Query(ctx context.Context, collection types.EntityType, filters map[string]string) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(); err != nil {
		return nil, err
	}

	var out [][]byte
	for _, doc := range f.docs[collection] {
		out = append(out, doc)
	}
	return out, nil
}
