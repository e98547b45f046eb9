package driven

import (
	"context"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

// Normaliser extracts text from a file of one format.
type Normaliser interface {
	// Format returns the format this normaliser handles.
	Format() domain.Format

	// Normalise reads the file at path and returns its text.
	// Decode failures are reported as domain.ErrExtraction.
	Normalise(ctx context.Context, path string) (string, error)
}

// DocumentLoader turns a local path into a Document with extracted text.
type DocumentLoader interface {
	// Load stats, classifies and extracts the file at path.
	// Fails with domain.ErrFileRead, domain.ErrUnsupportedFormat
	// or domain.ErrExtraction.
	Load(ctx context.Context, path string) (*domain.Document, error)

	// Supports reports whether the path's extension has a normaliser.
	Supports(path string) bool
}
