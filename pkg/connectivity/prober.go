package connectivity

import (
	"context"
	"time"
)

// DefaultProbeInterval is how often the prober re-checks reachability.
const DefaultProbeInterval = 15 * time.Second

// CheckFunc reports whether the remote store is currently reachable. A nil
// error means reachable.
type CheckFunc func(ctx context.Context) error

// Prober is a Source that derives reachability events from a periodic check.
// It emits on every tick; the monitor collapses duplicates into transitions.
type Prober struct {
	check    CheckFunc
	interval time.Duration
	ch       chan bool
}

// NewProber creates a prober. A non-positive interval falls back to
// DefaultProbeInterval.
func NewProber(check CheckFunc, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Prober{
		check:    check,
		interval: interval,
		ch:       make(chan bool, 1),
	}
}

// Events returns the reachability event channel.
func (p *Prober) Events() <-chan bool {
	return p.ch
}

// Run probes until the context is cancelled, emitting one observation per
// tick. The first probe fires immediately so startup state settles fast.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.emit(ctx)
	for {
		select {
		case <-ticker.C:
			p.emit(ctx)
		case <-ctx.Done():
			close(p.ch)
			return
		}
	}
}

func (p *Prober) emit(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	reachable := p.check(probeCtx) == nil
	select {
	case p.ch <- reachable:
	case <-ctx.Done():
	}
}
