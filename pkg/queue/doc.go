/*
Package queue implements Tally's durable pending-operation queue.

While the app is offline, every mutation is captured as a QueueOperation and
appended here. The queue is strictly FIFO: operations are persisted under
monotonically increasing sequence keys and replayed in enqueue order, so an
update never replays before the create that produced its entity.

An operation's payload and kind are immutable once enqueued; only its retry
bookkeeping (RetryCount, LastError) and status may change. Operations that
exhaust their retries or are rejected by the remote store are marked dead
rather than deleted, keeping them inspectable until the caller decides what to
do with them.

Durability is an explicit requirement: the queue lives in the BoltDB store,
so operations left over from an interrupted session replay on the next
reconciliation exactly as if the session had never ended.
*/
package queue
