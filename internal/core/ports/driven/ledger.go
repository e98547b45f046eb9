package driven

import (
	"context"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

// IngestLedger keeps a local row per ingested document.
type IngestLedger interface {
	// Save inserts or replaces the entry for entry.DocumentID.
	Save(ctx context.Context, entry domain.LedgerEntry) error

	// Get returns the entry or domain.ErrNotFound.
	Get(ctx context.Context, documentID string) (*domain.LedgerEntry, error)

	// List returns all entries, most recent first.
	List(ctx context.Context) ([]domain.LedgerEntry, error)

	// Delete removes the entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, documentID string) error
}
