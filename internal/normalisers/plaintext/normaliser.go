// Package plaintext reads text, markdown, source and data files.
package plaintext

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Format returns the format this normaliser handles.
func (n *Normaliser) Format() domain.Format {
	return domain.FormatPlainText
}

// Normalise returns the file content. Content that is not valid UTF-8
// is decoded as ISO-8859-1, which accepts every byte sequence.
func (n *Normaliser) Normalise(_ context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrFileRead, err)
	}

	if utf8.Valid(content) {
		return string(content), nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		return "", fmt.Errorf("%w: decode latin-1: %w", domain.ErrExtraction, err)
	}
	return string(decoded), nil
}
