package services

import (
	"strings"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

// NoContext stands in for the context section when retrieval finds nothing.
const NoContext = "(no relevant context was found)"

// BuildPrompt assembles the generation prompt from the question and the
// retrieved chunks, in retrieval order.
func BuildPrompt(system, question string, hits []domain.RetrievedChunk) domain.Prompt {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nContext:\n")
	b.WriteString(FormatContext(hits))

	return domain.Prompt{
		System: system,
		User:   b.String(),
	}
}

// FormatContext renders one "Source:" block per chunk, separated by a
// blank line.
func FormatContext(hits []domain.RetrievedChunk) string {
	if len(hits) == 0 {
		return NoContext
	}

	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = "Source: " + h.Record.Source + "\n" + h.Record.Text
	}
	return strings.Join(blocks, "\n\n")
}
