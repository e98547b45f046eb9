// Package memory provides an in-process vector index using exact cosine search.
package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is an in-memory implementation of driven.VectorIndex.
type Index struct {
	mu         sync.RWMutex
	dimensions int
	records    map[string]domain.IndexRecord
}

// NewIndex creates a new in-memory vector index.
func NewIndex() *Index {
	return &Index{
		records: make(map[string]domain.IndexRecord),
	}
}

// EnsureIndex fixes the dimensionality on first call.
func (x *Index) EnsureIndex(_ context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.dimensions == 0 {
		x.dimensions = dimensions
		return nil
	}
	if x.dimensions != dimensions {
		return fmt.Errorf("%w: index has %d dimensions, requested %d", domain.ErrIndexService, x.dimensions, dimensions)
	}
	return nil
}

// Upsert stores records by ID. The batch is rejected as a whole when any
// vector has the wrong length.
func (x *Index) Upsert(_ context.Context, records []domain.IndexRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for i := range records {
		if records[i].ID == "" {
			return fmt.Errorf("%w: record %d has no id", domain.ErrIndexService, i)
		}
		if x.dimensions == 0 {
			x.dimensions = len(records[i].Embedding)
		}
		if len(records[i].Embedding) != x.dimensions {
			return fmt.Errorf("%w: record %s has %d dimensions, index has %d",
				domain.ErrIndexService, records[i].ID, len(records[i].Embedding), x.dimensions)
		}
	}

	for i := range records {
		rec := records[i]
		rec.Embedding = slices.Clone(rec.Embedding)
		x.records[rec.ID] = rec
	}
	return nil
}

// Search scans every record and returns the closest matches.
func (x *Index) Search(_ context.Context, vector []float32, opts domain.SearchOptions) ([]domain.RetrievedChunk, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.dimensions != 0 && len(vector) != x.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrIndexService, len(vector), x.dimensions)
	}

	hits := make([]domain.RetrievedChunk, 0)
	for id := range x.records {
		rec := x.records[id]
		if !matches(rec, opts.Filter) {
			continue
		}
		score := cosine(vector, rec.Embedding)
		if score < opts.Threshold {
			continue
		}
		rec.Embedding = nil
		hits = append(hits, domain.RetrievedChunk{Record: rec, Score: score})
	}

	// Map order is random, so ties break on ID before ranking.
	slices.SortFunc(hits, func(a, b domain.RetrievedChunk) int {
		if a.Record.ID < b.Record.ID {
			return -1
		}
		if a.Record.ID > b.Record.ID {
			return 1
		}
		return 0
	})
	domain.SortByScore(hits)

	if opts.TopK > 0 && len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits, nil
}

// DeleteDocument removes every record of a document.
func (x *Index) DeleteDocument(_ context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, rec := range x.records {
		if rec.DocumentID == documentID {
			delete(x.records, id)
		}
	}
	return nil
}

// DeleteRecords removes records by ID.
func (x *Index) DeleteRecords(_ context.Context, ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range ids {
		delete(x.records, id)
	}
	return nil
}

// Count returns the number of stored records.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

// Ping always succeeds.
func (x *Index) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (x *Index) Close() error {
	return nil
}

func matches(rec domain.IndexRecord, filter map[string]string) bool {
	for field, want := range filter {
		switch field {
		case domain.FilterSource:
			if rec.Source != want {
				return false
			}
		case domain.FilterDocumentType:
			if rec.DocumentType != want {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
