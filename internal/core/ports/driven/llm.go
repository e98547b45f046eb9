package driven

import (
	"context"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

// GenerationService answers a single-turn prompt with a hosted chat model.
type GenerationService interface {
	// Generate returns the model's answer to the prompt.
	// A refusal by the provider's content filter is domain.ErrContentFiltered.
	Generate(ctx context.Context, prompt domain.Prompt, opts GenerateOptions) (string, error)

	// ModelName returns the model or deployment name.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation.
type GenerateOptions struct {
	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}
