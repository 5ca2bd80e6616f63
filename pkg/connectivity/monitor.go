package connectivity

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tallyhq/tally/pkg/log"
	"github.com/tallyhq/tally/pkg/metrics"
	"github.com/tallyhq/tally/pkg/types"
)

// Syncer is invoked once per Offline -> Online transition, after the state
// change is visible to readers. The reconciler implements it.
type Syncer interface {
	Sync()
}

// Listener receives connectivity transitions. Listeners run on the goroutine
// that observed the transition; keep them short.
type Listener func(types.ConnState)

// Source is an abstract reachability signal delivered by the platform.
type Source interface {
	// Events emits true when the remote store became reachable, false when it
	// became unreachable. Duplicate emissions for an unchanged state are
	// tolerated; the monitor collapses them.
	Events() <-chan bool
}

// Monitor owns the process-wide connectivity state. It is the only writer;
// everything else reads through IsOnline/State or subscribes to transitions.
type Monitor struct {
	mu        sync.RWMutex
	state     types.ConnState
	listeners map[int]Listener
	nextID    int
	syncer    Syncer
	logger    zerolog.Logger
}

// NewMonitor creates a monitor seeded with the result of an initial
// reachability check.
func NewMonitor(reachable bool) *Monitor {
	state := types.ConnOffline
	if reachable {
		state = types.ConnOnline
	}
	observeState(state)
	return &Monitor{
		state:     state,
		listeners: make(map[int]Listener),
		logger:    log.WithComponent("connectivity"),
	}
}

// SetSyncer wires the reconciliation trigger. Wired after construction so the
// monitor and the reconciler can reference each other without an import cycle.
func (m *Monitor) SetSyncer(s Syncer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncer = s
}

// IsOnline reports the current state. Best-effort by design: the state can
// change between this check and a subsequent mutation, and callers' fallback
// paths tolerate that.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == types.ConnOnline
}

// State returns the current connectivity state.
func (m *Monitor) State() types.ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe registers a listener and returns its unsubscribe handle.
func (m *Monitor) Subscribe(l Listener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = l

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// HandleReachability applies a reachability observation. A signal that does
// not change the state is dropped, so subscribers see each physical
// transition at most once. On a rising edge the syncer fires exactly once,
// strictly after the new state is visible to readers.
func (m *Monitor) HandleReachability(reachable bool) {
	next := types.ConnOffline
	if reachable {
		next = types.ConnOnline
	}

	m.mu.Lock()
	if m.state == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	syncer := m.syncer
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	m.logger.Info().Str("state", string(next)).Msg("connectivity changed")
	observeState(next)
	metrics.ConnectivityTransitionsTotal.WithLabelValues(string(next)).Inc()

	for _, l := range listeners {
		l(next)
	}

	if next == types.ConnOnline && syncer != nil {
		// Reconnect edge: drain the pending queue. Runs off this goroutine
		// because replay suspends on remote I/O.
		go syncer.Sync()
	}
}

// Watch consumes a reachability source until the context is cancelled.
func (m *Monitor) Watch(ctx context.Context, src Source) {
	for {
		select {
		case reachable, ok := <-src.Events():
			if !ok {
				return
			}
			m.HandleReachability(reachable)
		case <-ctx.Done():
			return
		}
	}
}

func observeState(state types.ConnState) {
	if state == types.ConnOnline {
		metrics.ConnectivityOnline.Set(1)
	} else {
		metrics.ConnectivityOnline.Set(0)
	}
}
