package driving

import (
	"context"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

// IngestService runs the ingest pipeline.
type IngestService interface {
	// IngestFile loads, chunks, embeds and indexes a single file.
	// The document is either fully indexed or not indexed at all.
	IngestFile(ctx context.Context, path string, opts domain.IngestOptions) (*domain.IngestResult, error)

	// IngestDirectory ingests every supported file under dir, continuing
	// past per-file failures.
	IngestDirectory(ctx context.Context, dir string, opts domain.IngestOptions) (*domain.DirectoryResult, error)

	// EnsureIndex creates the vector index if it does not exist.
	EnsureIndex(ctx context.Context) error
}
