/*
Package types defines the core data structures used throughout Tally.

This package contains the fundamental types of the offline-first sync engine:
cache entries, queued operations, connectivity states, the error taxonomy, and
the ledger domain model (accounts, transactions). All other packages depend on
it and it depends on nothing but the standard library.

# Identifier Model

Entities carry one of two identifier kinds, distinguished at the type level:

  - TemporaryID: minted by the client while offline, always prefixed "tmp_".
  - CanonicalID: assigned by the remote store on successful create.

A TemporaryID must never reach the remote store; the reconciler rewrites every
cached reference to a temporary id once the remote store returns the canonical
one.

# Error Taxonomy

Errors fall into four classes, each a sentinel usable with errors.Is:

  - ErrPersistence: local durable-store failure, fatal to the operation
  - ErrNetwork: transient remote failure, retried on the next reconciliation
  - ErrValidation: remote rejected the payload, never retried blindly
  - ErrTemporaryIDCollision: invariant violation in id minting

All types are designed to be:
  - Serializable (JSON)
  - Immutable where possible (queue payloads never change after enqueue)
  - Validated (constants for enums, Validate helpers)
*/
package types
