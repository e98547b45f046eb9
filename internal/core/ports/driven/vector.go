package driven

import (
	"context"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

// VectorIndex stores chunk records and runs similarity search.
type VectorIndex interface {
	// EnsureIndex creates the index with a vector field of the given
	// dimensions when it does not exist yet.
	EnsureIndex(ctx context.Context, dimensions int) error

	// Upsert inserts or replaces records by ID.
	Upsert(ctx context.Context, records []domain.IndexRecord) error

	// Search returns records ranked by non-increasing score.
	// No match is an empty slice, not an error.
	Search(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.RetrievedChunk, error)

	// DeleteDocument removes every record belonging to a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// DeleteRecords removes records by ID. Unknown IDs are ignored.
	DeleteRecords(ctx context.Context, ids []string) error

	// Ping validates the index service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
