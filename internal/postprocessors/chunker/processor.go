// Package chunker splits document text into overlapping chunks.
package chunker

import (
	"unicode"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.Chunker = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Processor splits text into chunks of at most chunkSize runes.
// Consecutive chunks share exactly overlap runes, so the text can be
// rebuilt with domain.Reassemble.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// FromSettings creates a processor from the RAG settings.
func FromSettings(s domain.RAGSettings) *Processor {
	return New(WithChunkSize(s.ChunkSize), WithOverlap(s.ChunkOverlap))
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the effective maximum chunk length.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the effective overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Chunk splits text into chunks. Offsets and lengths count runes.
func (p *Processor) Chunk(text string) []domain.Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	chunks := make([]domain.Chunk, 0, n/(p.chunkSize-p.overlap)+1)

	start, prevEnd := 0, 0
	for seq := 0; ; seq++ {
		end := n
		if n-start > p.chunkSize {
			end = p.boundary(runes, start)
		}

		overlap := 0
		if seq > 0 {
			overlap = prevEnd - start
		}

		chunks = append(chunks, domain.Chunk{
			Sequence: seq,
			Text:     string(runes[start:end]),
			Start:    start,
			End:      end,
			Overlap:  overlap,
		})

		if end == n {
			break
		}
		prevEnd = end
		start = end - p.overlap
	}

	return chunks
}

// boundary picks the end of the chunk starting at start. It prefers the
// last sentence break in the window, then the last whitespace, then a hard
// cut at the maximum size. The result always leaves more than overlap
// runes in the chunk so the next chunk starts further along.
func (p *Processor) boundary(runes []rune, start int) int {
	hardEnd := start + p.chunkSize
	lowest := start + max(p.overlap+1, p.chunkSize/2)

	for i := hardEnd - 1; i >= lowest; i-- {
		if isSentenceEnd(runes, i) {
			return i + 1
		}
	}
	for i := hardEnd - 1; i >= lowest; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return hardEnd
}

func isSentenceEnd(runes []rune, i int) bool {
	switch runes[i] {
	case '\n':
		return true
	case '.', '!', '?':
		return i+1 < len(runes) && unicode.IsSpace(runes[i+1])
	default:
		return false
	}
}
