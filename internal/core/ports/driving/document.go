package driving

import (
	"context"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
)

// DocumentService manages ingested documents.
type DocumentService interface {
	// List returns every document in the ingest ledger.
	List(ctx context.Context) ([]domain.LedgerEntry, error)

	// Get returns the ledger entry for one document.
	Get(ctx context.Context, documentID string) (*domain.LedgerEntry, error)

	// Remove deletes a document's index records, its blob and its ledger entry.
	Remove(ctx context.Context, documentID string) error

	// ListBlobs returns the original files held in blob storage.
	ListBlobs(ctx context.Context) ([]driven.BlobInfo, error)
}
