/*
Package cache implements Tally's local cache store.

The cache persists named blobs of domain data (entity lists, account
snapshots) with a capture timestamp, backed by the durable storage layer so
entries survive process restarts. Every write replaces the whole payload and
restamps the capture time; reads return the payload together with an IsStale
flag computed against a fixed staleness window.

Stale entries are not evicted. They remain readable as a fallback while
offline, with the flag telling UI code the data may be outdated.
*/
package cache
