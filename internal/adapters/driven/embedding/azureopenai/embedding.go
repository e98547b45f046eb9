// Package azureopenai provides an embedding service adapter for Azure OpenAI.
package azureopenai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kb-cli/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultAPIVersion = "2023-07-01-preview"
	DefaultDeployment = "text-embedding-ada-002"
	DefaultBatchSize  = 16
	DefaultTimeout    = 60 * time.Second
)

// Config holds configuration for the Azure OpenAI embedding service.
type Config struct {
	// Endpoint is the resource endpoint (required).
	Endpoint string

	// APIKey is the resource key (required).
	APIKey string

	// APIVersion is the REST API version (default: 2023-07-01-preview).
	APIVersion string

	// Deployment is the embedding deployment name (default: text-embedding-ada-002).
	Deployment string

	// Dimensions is the expected vector length. Every returned vector is
	// checked against it. Only text-embedding-3 deployments are asked to
	// shorten their output.
	Dimensions int

	// BatchSize is the number of inputs per request (default: 16).
	BatchSize int

	// RequestsPerMinute throttles requests client-side. Zero disables it.
	RequestsPerMinute int

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration
}

// EmbeddingService generates embeddings using an Azure OpenAI deployment.
type EmbeddingService struct {
	client     openai.Client
	deployment string
	dimensions int
	batchSize  int
	limiter    *rate.Limiter
}

// NewEmbeddingService creates a new Azure OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: azure openai endpoint is required", domain.ErrConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: azure openai API key is required", domain.ErrConfig)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Deployment == "" {
		cfg.Deployment = DefaultDeployment
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	// Determine dimensions
	dimensions := cfg.Dimensions
	if dimensions == 0 {
		var ok bool
		dimensions, ok = domain.EmbeddingDimensions()[cfg.Deployment]
		if !ok {
			dimensions = 1536 // Default fallback
		}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	client := openai.NewClient(
		azure.WithEndpoint(strings.TrimRight(cfg.Endpoint, "/"), cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	)

	return &EmbeddingService{
		client:     client,
		deployment: cfg.Deployment,
		dimensions: dimensions,
		batchSize:  cfg.BatchSize,
		limiter:    limiter,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", domain.ErrEmbeddingService)
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts, BatchSize per request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, 0, len(texts))
	for batch := range slices.Chunk(texts, s.batchSize) {
		vectors, err := s.embed(ctx, batch)
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, vectors...)
	}
	return embeddings, nil
}

// embed sends one request.
func (s *EmbeddingService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
		}
	}

	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(s.deployment),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}

	// Only text-embedding-3 deployments accept a dimensions override
	if strings.Contains(s.deployment, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(s.dimensions))
	}

	logger.Debug("Embedding %d inputs with %s", len(texts), s.deployment)

	resp, err := s.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			domain.ErrEmbeddingService, len(texts), len(resp.Data))
	}

	// Convert float64 to float32 and order by index
	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || int(data.Index) >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", domain.ErrEmbeddingService, data.Index)
		}
		if len(data.Embedding) != s.dimensions {
			return nil, fmt.Errorf("%w: dimension mismatch: expected %d, got %d",
				domain.ErrEmbeddingService, s.dimensions, len(data.Embedding))
		}
		embedding := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			embedding[i] = float32(v)
		}
		embeddings[data.Index] = embedding
	}

	for i, e := range embeddings {
		if e == nil {
			return nil, fmt.Errorf("%w: missing embedding for input %d", domain.ErrEmbeddingService, i)
		}
	}

	return embeddings, nil
}

// classify maps client errors to domain errors.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w: %w", domain.ErrEmbeddingService, domain.ErrRateLimited, err)
		}
		return fmt.Errorf("%w: status %d: %w", domain.ErrEmbeddingService, apiErr.StatusCode, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the deployment name.
func (s *EmbeddingService) ModelName() string {
	return s.deployment
}

// Ping validates the deployment by embedding a single word.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	_, err := s.Embed(ctx, "ping")
	return err
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
