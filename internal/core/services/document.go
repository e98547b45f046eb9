package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
	"github.com/custodia-labs/kb-cli/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages ingested documents.
type DocumentService struct {
	ledger driven.IngestLedger
	index  driven.VectorIndex
	blobs  driven.BlobStore
}

// NewDocumentService creates a new document service.
// The index and blob store are optional; Remove skips whichever is nil.
func NewDocumentService(ledger driven.IngestLedger, index driven.VectorIndex, blobs driven.BlobStore) *DocumentService {
	return &DocumentService{
		ledger: ledger,
		index:  index,
		blobs:  blobs,
	}
}

// List returns every document in the ingest ledger.
func (s *DocumentService) List(ctx context.Context) ([]domain.LedgerEntry, error) {
	if s.ledger == nil {
		return nil, errors.New("ingest ledger not configured")
	}
	return s.ledger.List(ctx)
}

// Get returns the ledger entry for one document.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.LedgerEntry, error) {
	if s.ledger == nil {
		return nil, errors.New("ingest ledger not configured")
	}
	return s.ledger.Get(ctx, documentID)
}

// Remove deletes a document's index records, its blob and its ledger entry.
// The ledger entry goes last so a failed removal can be retried.
func (s *DocumentService) Remove(ctx context.Context, documentID string) error {
	if s.ledger == nil {
		return errors.New("ingest ledger not configured")
	}

	entry, err := s.ledger.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document %s: %w", documentID, err)
	}

	if s.index != nil {
		if err := s.index.DeleteDocument(ctx, documentID); err != nil {
			return fmt.Errorf("delete index records: %w", err)
		}
		logger.Debug("Removed index records for %s", documentID)
	}

	if s.blobs != nil && entry.BlobName != "" {
		if err := s.blobs.Delete(ctx, entry.BlobName); err != nil {
			return fmt.Errorf("delete blob: %w", err)
		}
		logger.Debug("Removed blob %s", entry.BlobName)
	}

	if err := s.ledger.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete ledger entry: %w", err)
	}

	logger.Info("Removed %s (%s)", entry.Source, documentID)
	return nil
}

// ListBlobs returns the original files held in blob storage.
func (s *DocumentService) ListBlobs(ctx context.Context) ([]driven.BlobInfo, error) {
	if s.blobs == nil {
		return nil, errors.New("blob storage not configured")
	}
	return s.blobs.List(ctx, "")
}
