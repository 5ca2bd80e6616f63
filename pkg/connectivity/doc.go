/*
Package connectivity tracks whether the remote store is reachable.

The Monitor is a two-state machine {Online, Offline} driven by an abstract
reachability signal from the platform. It is the single writer of the
process-wide connectivity state; the write coordinator reads it to pick a
mutation path, and subscribers receive each physical transition exactly once.

On an Offline -> Online edge the monitor triggers one reconciliation pass,
strictly after the state mutation is visible, so a write racing the
transition never observes stale state from the monitor itself. The IsOnline
query is best-effort: the coordinator's dual paths tolerate the state flipping
between check and mutation.
*/
package connectivity
