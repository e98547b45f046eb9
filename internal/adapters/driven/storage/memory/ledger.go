// Package memory provides in-memory implementations of driven ports for testing.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
)

// Ensure Ledger implements the interface.
var _ driven.IngestLedger = (*Ledger)(nil)

// Ledger is an in-memory implementation of driven.IngestLedger.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]domain.LedgerEntry
}

// NewLedger creates a new in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		entries: make(map[string]domain.LedgerEntry),
	}
}

// Save stores or replaces the entry for a document.
func (l *Ledger) Save(_ context.Context, entry domain.LedgerEntry) error {
	if entry.DocumentID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if entry.IngestedAt.IsZero() {
		entry.IngestedAt = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[entry.DocumentID] = entry
	return nil
}

// Get retrieves the entry for a document.
func (l *Ledger) Get(_ context.Context, documentID string) (*domain.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.entries[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// List returns all entries, most recent first.
func (l *Ledger) List(_ context.Context) ([]domain.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]domain.LedgerEntry, 0, len(l.entries))
	for _, entry := range l.entries {
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.LedgerEntry) int {
		if c := b.IngestedAt.Compare(a.IngestedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return result, nil
}

// Delete removes the entry for a document.
func (l *Ledger) Delete(_ context.Context, documentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, documentID)
	return nil
}
