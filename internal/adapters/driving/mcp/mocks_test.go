package mcp

import (
	"context"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	answer   *domain.Answer
	hits     []domain.RetrievedChunk
	err      error
	question string
	opts     driving.QueryOptions
}

func (m *mockQueryService) Ask(_ context.Context, question string, opts driving.QueryOptions) (*domain.Answer, error) {
	m.question = question
	m.opts = opts
	return m.answer, m.err
}

func (m *mockQueryService) Retrieve(
	_ context.Context,
	question string,
	opts driving.QueryOptions,
) ([]domain.RetrievedChunk, error) {
	m.question = question
	m.opts = opts
	return m.hits, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.LedgerEntry
	document  *domain.LedgerEntry
	err       error
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.LedgerEntry, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.LedgerEntry, error) {
	return m.document, m.err
}

func (m *mockDocumentService) Remove(_ context.Context, _ string) error {
	return m.err
}

func (m *mockDocumentService) ListBlobs(_ context.Context) ([]driven.BlobInfo, error) {
	return nil, m.err
}
