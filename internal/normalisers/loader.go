package normalisers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kb-cli/internal/logger"
	"github.com/custodia-labs/kb-cli/internal/normalisers/docx"
	"github.com/custodia-labs/kb-cli/internal/normalisers/pdf"
	"github.com/custodia-labs/kb-cli/internal/normalisers/plaintext"
)

// Verify interface compliance.
var _ driven.DocumentLoader = (*Loader)(nil)

// Loader dispatches files to the normaliser registered for their format.
type Loader struct {
	normalisers map[domain.Format]driven.Normaliser
}

// NewLoader creates a loader with the given normalisers.
// A later normaliser replaces an earlier one for the same format.
func NewLoader(normalisers ...driven.Normaliser) *Loader {
	l := &Loader{normalisers: make(map[domain.Format]driven.Normaliser, len(normalisers))}
	for _, n := range normalisers {
		l.normalisers[n.Format()] = n
	}
	return l
}

// DefaultLoader returns a loader for PDF, Word and plain text.
func DefaultLoader() *Loader {
	return NewLoader(pdf.New(), docx.New(), plaintext.New())
}

// DocumentID returns the stable document ID for an absolute path.
func DocumentID(absPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(absPath))).String()
}

// Supports reports whether the path's extension has a normaliser.
func (l *Loader) Supports(path string) bool {
	format, ok := domain.FormatForPath(path)
	if !ok {
		return false
	}
	_, ok = l.normalisers[format]
	return ok
}

// Load stats, classifies and extracts the file at path.
func (l *Loader) Load(ctx context.Context, path string) (*domain.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFileRead, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFileRead, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrFileRead, path)
	}

	format, ok := domain.FormatForPath(abs)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, filepath.Ext(abs))
	}
	normaliser, ok := l.normalisers[format]
	if !ok {
		return nil, fmt.Errorf("%w: no normaliser for %s", domain.ErrUnsupportedFormat, format)
	}

	logger.Debug("Loading %s as %s (%d bytes)", abs, format, info.Size())

	text, err := normaliser.Normalise(ctx, abs)
	if err != nil {
		return nil, err
	}

	return &domain.Document{
		ID:         DocumentID(abs),
		Path:       abs,
		Source:     filepath.Base(abs),
		Format:     format,
		Type:       domain.DocumentType(abs),
		Size:       info.Size(),
		Text:       text,
		CreatedAt:  info.ModTime(),
		ModifiedAt: info.ModTime(),
	}, nil
}
