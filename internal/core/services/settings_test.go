package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kb-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

type stubChecker struct {
	checks []domain.ServiceCheck
	seen   *domain.AppSettings
}

func (c *stubChecker) Check(_ context.Context, settings *domain.AppSettings) []domain.ServiceCheck {
	c.seen = settings
	return c.checks
}

func configuredStore() *memory.ConfigStore {
	return memory.NewConfigStore(map[string]any{
		"openai.endpoint": "https://example.openai.azure.com/",
		"openai.api_key":  "openai-key",
		"index.endpoint":  "https://example.search.windows.net",
		"index.api_key":   "search-key",
	})
}

func TestNewSettingsService(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	require.NotNil(t, service)
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAppSettings(), *settings)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := configuredStore()
	_ = store.Set("index.provider", "qdrant")
	_ = store.Set("index.qdrant_host", "qdrant.local")
	_ = store.Set("rag.top_k", 8)
	_ = store.Set("rag.similarity_threshold", 0.5)
	_ = store.Set("index.qdrant_tls", true)

	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, "https://example.openai.azure.com", settings.OpenAI.Endpoint)
	assert.Equal(t, domain.IndexProviderQdrant, settings.Index.Provider)
	assert.Equal(t, "qdrant.local", settings.Index.QdrantHost)
	assert.Equal(t, 6334, settings.Index.QdrantPort)
	assert.True(t, settings.Index.QdrantTLS)
	assert.Equal(t, 8, settings.RAG.TopK)
	assert.InDelta(t, 0.5, settings.RAG.SimilarityThreshold, 1e-9)
	assert.Equal(t, 1000, settings.RAG.ChunkSize)
}

func TestSettingsService_Get_ZeroThresholdIsKept(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{"rag.similarity_threshold": 0.0})
	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Zero(t, settings.RAG.SimilarityThreshold)
}

func TestSettingsService_Get_InvalidProviderReturnsDefault(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{"index.provider": "elastic"})
	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.IndexProviderAzure, settings.Index.Provider)
}

func TestSettingsService_Set(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	require.NoError(t, service.Set("rag.chunk_size", "512"))
	require.NoError(t, service.Set("rag.temperature", "0.3"))
	require.NoError(t, service.Set("index.qdrant_tls", "true"))
	require.NoError(t, service.Set("index.provider", "Memory"))
	require.NoError(t, service.Set("openai.endpoint", " https://x.openai.azure.com "))

	assert.Equal(t, 512, store.GetInt("rag.chunk_size"))
	assert.InDelta(t, 0.3, store.GetFloat("rag.temperature"), 1e-9)
	assert.True(t, store.GetBool("index.qdrant_tls"))
	assert.Equal(t, "memory", store.GetString("index.provider"))
	assert.Equal(t, "https://x.openai.azure.com", store.GetString("openai.endpoint"))
}

func TestSettingsService_Set_Errors(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "rag.unknown", "1"},
		{"bad int", "rag.top_k", "five"},
		{"bad float", "rag.temperature", "warm"},
		{"bad bool", "index.qdrant_tls", "maybe"},
		{"bad provider", "index.provider", "elastic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.Set(tt.key, tt.value)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSettingsService_Keys(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	keys := service.Keys()

	assert.Len(t, keys, len(settingKeys))
	assert.Equal(t, "storage.connection_string", keys[0])
	assert.Contains(t, keys, "rag.top_k")
	assert.Contains(t, keys, "telemetry.otlp_endpoint")
}

func TestSettingsService_ValidateForQuery(t *testing.T) {
	service := NewSettingsService(configuredStore(), nil)
	settings, err := service.Get()
	require.NoError(t, err)

	assert.NoError(t, service.ValidateForQuery(settings))
}

func TestSettingsService_ValidateForQuery_MissingCredentials(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)
	settings, err := service.Get()
	require.NoError(t, err)

	err = service.ValidateForQuery(settings)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
	assert.Contains(t, err.Error(), "openai.endpoint is required")
	assert.Contains(t, err.Error(), "openai.api_key is required")
	assert.Contains(t, err.Error(), "index.endpoint is required")
	assert.Contains(t, err.Error(), "index.api_key is required")
}

func TestSettingsService_ValidateForQuery_ProviderRules(t *testing.T) {
	service := NewSettingsService(configuredStore(), nil)
	settings, err := service.Get()
	require.NoError(t, err)

	settings.Index.Provider = domain.IndexProviderQdrant
	settings.Index.QdrantHost = ""
	err = service.ValidateForQuery(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.qdrant_host is required")

	settings.Index.Provider = domain.IndexProviderMemory
	settings.Index.Endpoint = ""
	assert.NoError(t, service.ValidateForQuery(settings))
}

func TestSettingsService_ValidateForQuery_Ranges(t *testing.T) {
	service := NewSettingsService(configuredStore(), nil)
	settings, err := service.Get()
	require.NoError(t, err)

	settings.OpenAI.Endpoint = "not a url"
	settings.RAG.SimilarityThreshold = 1.5
	settings.RAG.TopK = 0

	err = service.ValidateForQuery(settings)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai.endpoint must be a URL")
	assert.Contains(t, err.Error(), "rag.similarity_threshold")
	assert.Contains(t, err.Error(), "rag.top_k")
}

func TestSettingsService_ValidateForIngest_StorageOptional(t *testing.T) {
	service := NewSettingsService(configuredStore(), nil)
	settings, err := service.Get()
	require.NoError(t, err)

	assert.NoError(t, service.ValidateForIngest(settings))

	settings.Storage.ConnectionString = "UseDevelopmentStorage=true"
	settings.Storage.Container = ""
	err = service.ValidateForIngest(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.container is required")
}

func TestSettingsService_Check(t *testing.T) {
	checker := &stubChecker{checks: []domain.ServiceCheck{
		{Service: "embedding", Target: "ada"},
		{Service: "index", Target: "knowledge-index", Err: errors.New("down")},
	}}
	service := NewSettingsService(configuredStore(), checker)

	checks, err := service.Check(context.Background())

	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.True(t, checks[0].Healthy())
	assert.False(t, checks[1].Healthy())
	require.NotNil(t, checker.seen)
	assert.Equal(t, "openai-key", checker.seen.OpenAI.APIKey)
}

func TestSettingsService_Check_NoChecker(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	checks, err := service.Check(context.Background())

	require.NoError(t, err)
	assert.Empty(t, checks)
}

func TestSettingsService_GetDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	assert.Equal(t, domain.DefaultAppSettings(), service.GetDefaults())
}
