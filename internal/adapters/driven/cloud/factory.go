// Package cloud provides factory functions for creating the external
// service adapters from application settings.
package cloud

import (
	"fmt"

	"github.com/custodia-labs/kb-cli/internal/adapters/driven/blob/azureblob"
	embedazure "github.com/custodia-labs/kb-cli/internal/adapters/driven/embedding/azureopenai"
	"github.com/custodia-labs/kb-cli/internal/adapters/driven/index/azuresearch"
	memoryindex "github.com/custodia-labs/kb-cli/internal/adapters/driven/index/memory"
	qdrantindex "github.com/custodia-labs/kb-cli/internal/adapters/driven/index/qdrant"
	llmazure "github.com/custodia-labs/kb-cli/internal/adapters/driven/llm/azureopenai"
	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
)

// wizardHint is appended to configuration errors.
const wizardHint = "Run 'kb settings wizard' to fix"

// Services holds the adapters built from settings. A service that could
// not be built is nil and its error is kept so that only commands needing
// it fail.
type Services struct {
	Embedding    driven.EmbeddingService
	EmbeddingErr error

	Generation    driven.GenerationService
	GenerationErr error

	Index    driven.VectorIndex
	IndexErr error

	// Blob is nil without an error when storage is not configured.
	Blob    driven.BlobStore
	BlobErr error
}

// NewServices builds every adapter from settings.
func NewServices(settings *domain.AppSettings) *Services {
	s := &Services{}
	s.Embedding, s.EmbeddingErr = CreateEmbeddingService(settings)
	s.Generation, s.GenerationErr = CreateGenerationService(settings)
	s.Index, s.IndexErr = CreateVectorIndex(settings)
	s.Blob, s.BlobErr = CreateBlobStore(settings)
	return s
}

// Close releases all resources held by the services.
func (s *Services) Close() {
	if s.Embedding != nil {
		s.Embedding.Close()
	}
	if s.Generation != nil {
		s.Generation.Close()
	}
	if s.Index != nil {
		s.Index.Close()
	}
}

// CreateEmbeddingService creates the Azure OpenAI embedding service.
func CreateEmbeddingService(settings *domain.AppSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.OpenAI.IsConfigured() {
		return nil, fmt.Errorf("%w: azure openai endpoint and key are not set. %s", domain.ErrConfig, wizardHint)
	}

	svc, err := embedazure.NewEmbeddingService(embedazure.Config{
		Endpoint:          settings.OpenAI.Endpoint,
		APIKey:            settings.OpenAI.APIKey,
		APIVersion:        settings.OpenAI.APIVersion,
		Deployment:        settings.OpenAI.EmbeddingDeployment,
		Dimensions:        settings.RAG.Dimensions,
		BatchSize:         settings.RAG.EmbeddingBatchSize,
		RequestsPerMinute: settings.OpenAI.RequestsPerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("%w. %s", err, wizardHint)
	}
	return svc, nil
}

// CreateGenerationService creates the Azure OpenAI chat service.
func CreateGenerationService(settings *domain.AppSettings) (driven.GenerationService, error) {
	if settings == nil || !settings.OpenAI.IsConfigured() {
		return nil, fmt.Errorf("%w: azure openai endpoint and key are not set. %s", domain.ErrConfig, wizardHint)
	}

	svc, err := llmazure.NewLLMService(llmazure.LLMConfig{
		Endpoint:   settings.OpenAI.Endpoint,
		APIKey:     settings.OpenAI.APIKey,
		APIVersion: settings.OpenAI.APIVersion,
		Deployment: settings.OpenAI.ChatDeployment,
	})
	if err != nil {
		return nil, fmt.Errorf("%w. %s", err, wizardHint)
	}
	return svc, nil
}

// CreateVectorIndex creates the index adapter for the configured provider.
func CreateVectorIndex(settings *domain.AppSettings) (driven.VectorIndex, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: no settings", domain.ErrConfig)
	}
	if !settings.Index.IsConfigured() {
		return nil, fmt.Errorf("%w: %s index is not configured. %s",
			domain.ErrConfig, settings.Index.Provider.Description(), wizardHint)
	}

	switch settings.Index.Provider {
	case domain.IndexProviderAzure:
		idx, err := azuresearch.NewIndex(azuresearch.Config{
			Endpoint:   settings.Index.Endpoint,
			APIKey:     settings.Index.APIKey,
			IndexName:  settings.Index.Name,
			APIVersion: settings.Index.APIVersion,
			BatchSize:  settings.RAG.UpsertBatchSize,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil

	case domain.IndexProviderQdrant:
		idx, err := qdrantindex.NewIndex(qdrantindex.Config{
			Host:       settings.Index.QdrantHost,
			Port:       settings.Index.QdrantPort,
			APIKey:     settings.Index.QdrantAPIKey,
			UseTLS:     settings.Index.QdrantTLS,
			Collection: settings.Index.Name,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil

	case domain.IndexProviderMemory:
		return memoryindex.NewIndex(), nil

	default:
		return nil, fmt.Errorf("%w: unsupported index provider: %s", domain.ErrConfig, settings.Index.Provider)
	}
}

// CreateBlobStore creates the blob store. It returns nil without an error
// when storage is not configured, since uploading originals is optional.
func CreateBlobStore(settings *domain.AppSettings) (driven.BlobStore, error) {
	if settings == nil || !settings.Storage.IsConfigured() {
		return nil, nil
	}
	store, err := azureblob.NewStore(azureblob.Config{
		ConnectionString: settings.Storage.ConnectionString,
		Container:        settings.Storage.Container,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
