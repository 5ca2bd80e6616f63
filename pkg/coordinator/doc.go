/*
Package coordinator implements Tally's dual-path write coordinator.

Every mutation from feature code enters through ApplyMutation, which picks a
path from the connectivity state at entry and sticks with it:

	┌──────────────────── WRITE COORDINATOR ───────────────────┐
	│                                                            │
	│   ApplyMutation(entityType, kind, payload)                │
	│                     │                                      │
	│          IsOnline() at entry (path fixed here)            │
	│            │                        │                      │
	│         Online                   Offline                   │
	│            │                        │                      │
	│   remote call, then          mint temporary id,            │
	│   cache canonical result     optimistic cache write,       │
	│            │                        │                      │
	│   ledger.Recompute           ledger.Recompute              │
	│   (same pure function)       (same pure function)          │
	│            │                        │                      │
	│       return id              enqueue QueueOperation,       │
	│                              return temporary id           │
	└────────────────────────────────────────────────────────────┘

Calls are serialized by a single mutex spanning the remote call, cache write
and queue append, so concurrent UI requests observe consistent state.

Remote failures on the online path surface to the caller; there is no silent
fallback. If connectivity flips between the entry check and the mutation, the
chosen path stands: a queued operation is replayed almost immediately by the
imminent reconciliation pass. A mutation whose target still carries a
temporary id always takes the offline path so it queues behind the create
that owns the id, and deleting an entity whose create never synced cancels
the queued create outright instead of replaying both sides.

The coordinator also carries the read surface consumed by UI code: GetCached,
GetPendingOperationCount and OnConnectivityChange.
*/
package coordinator
