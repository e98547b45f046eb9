package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
	"github.com/custodia-labs/kb-cli/internal/logger"
	"github.com/custodia-labs/kb-cli/internal/observability"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService answers questions from the vector index.
type QueryService struct {
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
	generator driven.GenerationService
	prompts   driven.PromptStore
	rag       domain.RAGSettings
}

// NewQueryService creates a new query service.
// The prompt store is optional; without it the built-in system prompt is used.
// The generator may be nil for retrieval-only use.
func NewQueryService(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	generator driven.GenerationService,
	prompts driven.PromptStore,
	rag domain.RAGSettings,
) *QueryService {
	if rag.TopK <= 0 {
		rag.TopK = domain.DefaultAppSettings().RAG.TopK
	}
	return &QueryService{
		embedder:  embedder,
		index:     index,
		generator: generator,
		prompts:   prompts,
		rag:       rag,
	}
}

// Ask retrieves context for the question and generates an answer.
func (s *QueryService) Ask(ctx context.Context, question string, opts driving.QueryOptions) (answer *domain.Answer, err error) {
	if s.generator == nil {
		return nil, errors.New("generation service not configured")
	}

	ctx, span := observability.StartPipelineSpan(ctx, "query")
	defer observability.End(span, &err)

	logger.Section("Query")

	hits, err := s.retrieve(ctx, question, opts)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(s.systemPrompt(), strings.TrimSpace(question), hits)

	text, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	logger.Info("Answered from %d chunks", len(hits))

	return &domain.Answer{
		Question: question,
		Text:     text,
		Sources:  domain.UniqueSources(hits),
		Context:  hits,
		Prompt:   prompt,
	}, nil
}

// Retrieve returns the context Ask would use, without generating.
func (s *QueryService) Retrieve(
	ctx context.Context,
	question string,
	opts driving.QueryOptions,
) (hits []domain.RetrievedChunk, err error) {
	ctx, span := observability.StartPipelineSpan(ctx, "retrieve")
	defer observability.End(span, &err)

	return s.retrieve(ctx, question, opts)
}

// ValidateFilter rejects filter keys the index cannot match on.
func ValidateFilter(filter map[string]string) error {
	for key := range filter {
		if !domain.IsFilterable(key) {
			return fmt.Errorf("%w: cannot filter on %q (use %s or %s)",
				domain.ErrInvalidInput, key, domain.FilterSource, domain.FilterDocumentType)
		}
	}
	return nil
}

func (s *QueryService) retrieve(
	ctx context.Context,
	question string,
	opts driving.QueryOptions,
) ([]domain.RetrievedChunk, error) {
	if s.embedder == nil {
		return nil, errors.New("embedding service not configured")
	}
	if s.index == nil {
		return nil, errors.New("vector index not configured")
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	if err := ValidateFilter(opts.Filter); err != nil {
		return nil, err
	}

	vector, err := s.embedQuestion(ctx, question)
	if err != nil {
		return nil, err
	}

	topK := s.rag.TopK
	if opts.TopK > 0 {
		topK = opts.TopK
	}
	return s.search(ctx, vector, domain.SearchOptions{
		TopK:      topK,
		Threshold: s.rag.SimilarityThreshold,
		Filter:    opts.Filter,
	})
}

func (s *QueryService) embedQuestion(ctx context.Context, question string) (vector []float32, err error) {
	ctx, span := observability.StartStageSpan(ctx, "embed")
	defer observability.End(span, &err)

	vector, err = s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	if dims := s.rag.Dimensions; dims > 0 && len(vector) != dims {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, want %d",
			domain.ErrEmbeddingService, len(vector), dims)
	}
	return vector, nil
}

func (s *QueryService) search(
	ctx context.Context,
	vector []float32,
	opts domain.SearchOptions,
) (hits []domain.RetrievedChunk, err error) {
	ctx, span := observability.StartStageSpan(ctx, "search", attribute.Int("kb.top_k", opts.TopK))
	defer observability.End(span, &err)

	hits, err = s.index.Search(ctx, vector, opts)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []domain.RetrievedChunk{}
	}
	domain.SortByScore(hits)

	span.SetAttributes(attribute.Int("kb.hits", len(hits)))
	logger.Debug("Retrieved %d chunks (top-k %d, threshold %.2f)", len(hits), opts.TopK, opts.Threshold)
	return hits, nil
}

func (s *QueryService) generate(ctx context.Context, prompt domain.Prompt) (text string, err error) {
	ctx, span := observability.StartStageSpan(ctx, "generate")
	defer observability.End(span, &err)

	text, err = s.generator.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   s.rag.MaxTokens,
		Temperature: s.rag.Temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *QueryService) systemPrompt() string {
	if s.prompts == nil {
		return domain.DefaultSystemPrompt
	}
	system, err := s.prompts.Load(driven.PromptAnswerSystem)
	if err != nil {
		logger.Warn("Using built-in system prompt: %v", err)
		return domain.DefaultSystemPrompt
	}
	if strings.TrimSpace(system) == "" {
		return domain.DefaultSystemPrompt
	}
	return system
}
