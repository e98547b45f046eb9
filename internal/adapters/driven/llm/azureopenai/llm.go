// Package azureopenai provides a generation service adapter for Azure OpenAI chat deployments.
package azureopenai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kb-cli/internal/logger"
)

// Ensure LLMService implements the interface.
var _ driven.GenerationService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultAPIVersion = "2023-07-01-preview"
	DefaultDeployment = "gpt-35-turbo"
	DefaultTimeout    = 60 * time.Second
)

// finishReasonContentFilter is reported when the provider's filter truncates output.
const finishReasonContentFilter = "content_filter"

// LLMConfig holds configuration for the Azure OpenAI generation service.
type LLMConfig struct {
	// Endpoint is the resource endpoint (required).
	Endpoint string

	// APIKey is the resource key (required).
	APIKey string

	// APIVersion is the REST API version (default: 2023-07-01-preview).
	APIVersion string

	// Deployment is the chat deployment name (default: gpt-35-turbo).
	Deployment string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration
}

// LLMService answers prompts using an Azure OpenAI chat deployment.
type LLMService struct {
	client     openai.Client
	deployment string
}

// NewLLMService creates a new Azure OpenAI generation service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
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
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := openai.NewClient(
		azure.WithEndpoint(strings.TrimRight(cfg.Endpoint, "/"), cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	)

	return &LLMService{
		client:     client,
		deployment: cfg.Deployment,
	}, nil
}

// Generate sends the prompt as a system and a user message and returns
// the first choice.
func (s *LLMService) Generate(ctx context.Context, prompt domain.Prompt, opts driven.GenerateOptions) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.User))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(s.deployment),
		Messages:    messages,
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	logger.Debug("Generating with %s (max_tokens=%d, temperature=%.2f)", s.deployment, opts.MaxTokens, opts.Temperature)

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response choices returned", domain.ErrGenerationService)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == finishReasonContentFilter {
		return "", fmt.Errorf("%w: response withheld by the content filter", domain.ErrContentFiltered)
	}

	logger.Debug("Generation finished: %s, %d completion tokens", choice.FinishReason, resp.Usage.CompletionTokens)

	return choice.Message.Content, nil
}

// classify maps client errors to domain errors.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == finishReasonContentFilter:
			return fmt.Errorf("%w: %w", domain.ErrContentFiltered, err)
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w: %w", domain.ErrGenerationService, domain.ErrRateLimited, err)
		default:
			return fmt.Errorf("%w: status %d: %w", domain.ErrGenerationService, apiErr.StatusCode, err)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrGenerationService, err)
}

// ModelName returns the deployment name.
func (s *LLMService) ModelName() string {
	return s.deployment
}

// Ping validates the deployment with a one-token completion.
func (s *LLMService) Ping(ctx context.Context) error {
	_, err := s.Generate(ctx, domain.Prompt{User: "ping"}, driven.GenerateOptions{MaxTokens: 1})
	if errors.Is(err, domain.ErrContentFiltered) {
		return nil
	}
	return err
}

// Close releases resources.
func (s *LLMService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
