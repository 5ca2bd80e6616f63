/*
Package remote defines the remote store contract and its implementations.

The Store interface is the narrow seam between the sync engine and the
backend: create/update/delete/query keyed by collection and canonical id. Two
implementations ship here:

  - HTTPStore: a JSON/HTTP client with a per-call timeout. Transport errors,
    timeouts and 5xx responses classify as types.ErrNetwork; 4xx responses as
    types.ErrValidation. The reconciler retries the former and buries the
    latter.
  - Fake: an in-memory store for tests and the offline demo, with scripted
    failures and a reachability toggle.

Canonical ids are assigned by the store on create. The engine never sends a
temporary id as a document id.
*/
package remote
