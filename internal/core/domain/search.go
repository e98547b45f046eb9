package domain

import "slices"

// Filterable metadata fields accepted by SearchOptions.Filter.
const (
	FilterSource       = "source"
	FilterDocumentType = "document_type"
)

// IsFilterable reports whether a metadata field can be used in a search filter.
func IsFilterable(field string) bool {
	return field == FilterSource || field == FilterDocumentType
}

// SearchOptions configures a similarity search.
type SearchOptions struct {
	// TopK is the maximum number of results.
	TopK int

	// Threshold drops results whose score is below it.
	Threshold float64

	// Filter restricts results to records whose metadata fields equal the
	// given values. Keys must satisfy IsFilterable.
	Filter map[string]string
}

// RetrievedChunk is a search hit.
type RetrievedChunk struct {
	// Record is the matched index record. Embedding is not populated.
	Record IndexRecord

	// Score is the similarity reported by the index, higher is closer.
	Score float64
}

// SortByScore orders hits by non-increasing score, keeping the index's
// order for ties.
func SortByScore(hits []RetrievedChunk) {
	slices.SortStableFunc(hits, func(a, b RetrievedChunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
}

// Prompt is a single-turn chat prompt.
type Prompt struct {
	System string
	User   string
}

// Answer is the output of the query pipeline.
type Answer struct {
	// Question is the question as asked.
	Question string `json:"question"`

	// Text is the generated answer.
	Text string `json:"answer"`

	// Sources lists source names in retrieval order, without duplicates.
	Sources []string `json:"sources"`

	// Context holds the chunks used to build the prompt.
	Context []RetrievedChunk `json:"-"`

	// Prompt is the prompt sent to the generation model.
	Prompt Prompt `json:"-"`
}

// UniqueSources returns the source names of hits in order, without duplicates.
func UniqueSources(hits []RetrievedChunk) []string {
	sources := make([]string, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		if seen[h.Record.Source] {
			continue
		}
		seen[h.Record.Source] = true
		sources = append(sources, h.Record.Source)
	}
	return sources
}
