package driving

import (
	"context"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

// QueryService runs the query pipeline.
type QueryService interface {
	// Ask retrieves context for the question and generates an answer.
	Ask(ctx context.Context, question string, opts QueryOptions) (*domain.Answer, error)

	// Retrieve returns the context Ask would use, without generating.
	Retrieve(ctx context.Context, question string, opts QueryOptions) ([]domain.RetrievedChunk, error)
}

// QueryOptions overrides retrieval settings for one question.
type QueryOptions struct {
	// TopK overrides the configured result count when positive.
	TopK int

	// Filter restricts results by metadata equality.
	Filter map[string]string
}
