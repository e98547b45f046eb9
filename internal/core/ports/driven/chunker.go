package driven

import "github.com/custodia-labs/kb-cli/internal/core/domain"

// Chunker splits text into ordered, overlapping chunks.
// Dropping each chunk's overlap and concatenating the rest must
// reproduce the input exactly.
type Chunker interface {
	// Chunk splits text. Empty text yields an empty slice.
	Chunk(text string) []domain.Chunk
}
