/*
Package reconciler replays queued offline mutations against the remote store.

The reconciler is triggered by the connectivity monitor on every reconnect
edge and can be invoked proactively (app foreground, periodic trigger). A pass
drains the queue strictly in enqueue order:

  - success: creates get their temporary identifier rewritten to the canonical
    one across the cache and the remaining queue, then the operation is
    removed
  - network failure: retry bookkeeping is bumped and the drain continues; the
    operation keeps its position for the next pass
  - validation failure: the operation is marked dead immediately and surfaced
    through the event broker; replaying a rejected payload never helps
  - retry ceiling exceeded: same as validation, after repeated network
    failures

An operation whose target still carries a temporary id is held back while its
create is pending and buried if its create died.

Passes are not reentrant: an atomic in-flight flag drops overlapping triggers
so operations cannot be double-replayed. Each remote call is bounded by a
timeout; a hung call counts as a network failure.
*/
package reconciler
