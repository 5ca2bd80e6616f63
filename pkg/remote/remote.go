package remote

import (
	"context"

	"github.com/tallyhq/tally/pkg/types"
)

// Store is the remote data store consumed by the sync engine. Implementations
// must classify failures: transient transport problems wrap types.ErrNetwork,
// payload rejections wrap types.ErrValidation. The reconciler retries the
// former and buries the latter.
type Store interface {
	// Create stores a new document and returns the canonical id the remote
	// store assigned, along with the stored payload.
	Create(ctx context.Context, collection types.EntityType, payload []byte) (types.CanonicalID, []byte, error)

	// Update replaces a document by canonical id.
	Update(ctx context.Context, collection types.EntityType, id types.CanonicalID, payload []byte) error

	// Delete removes a document by canonical id.
	Delete(ctx context.Context, collection types.EntityType, id types.CanonicalID) error

	// Query lists documents in a collection matching the given filters.
	Query(ctx context.Context, collection types.EntityType, filters map[string]string) ([][]byte, error)
}
