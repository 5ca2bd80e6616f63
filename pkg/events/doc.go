/*
Package events provides the event broker for sync lifecycle notifications.

The broker fans sync events out to subscribers over buffered channels: an
operation queued, replayed, failed, or permanently dead, and reconciliation
passes starting and completing. UI code subscribes to surface dead operations
as actionable notifications instead of letting them disappear silently.

Delivery is best-effort per subscriber: a subscriber whose buffer is full
misses the event rather than blocking the broker.
*/
package events
