package types

import "errors"

// Error taxonomy for the sync engine. Persistence errors are fatal to the
// calling operation; network errors are retried on the next reconciliation;
// validation errors are never retried blindly.
var (
	// ErrNotFound indicates a missing cache entry, queued operation, or remote
	// document.
	ErrNotFound = errors.New("not found")

	// ErrNetwork classifies transient remote-store failures (unreachable host,
	// timeout, 5xx).
	ErrNetwork = errors.New("network failure")

	// ErrValidation classifies remote-store rejections of the payload itself
	// (4xx). Replaying the same payload will fail the same way.
	ErrValidation = errors.New("validation failure")

	// ErrPersistence classifies local read/write failures of the durable
	// key-value store.
	ErrPersistence = errors.New("persistence failure")

	// ErrTemporaryIDCollision indicates two live entities were minted the same
	// temporary id. This is an invariant violation, not an operational error.
	ErrTemporaryIDCollision = errors.New("temporary id collision")
)

// IsRetryable reports whether an error from the remote store should be
// retried on a later reconciliation pass.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
