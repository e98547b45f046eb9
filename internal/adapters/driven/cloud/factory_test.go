package cloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kb-cli/internal/adapters/driven/index/azuresearch"
	memoryindex "github.com/custodia-labs/kb-cli/internal/adapters/driven/index/memory"
	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

func configuredSettings() *domain.AppSettings {
	settings := domain.DefaultAppSettings()
	settings.OpenAI.Endpoint = "https://kb.openai.azure.com"
	settings.OpenAI.APIKey = "openai-key"
	settings.Index.Endpoint = "https://kb.search.windows.net"
	settings.Index.APIKey = "search-key"
	return &settings
}

func TestServices_CloseWithNilServices(t *testing.T) {
	services := &Services{}
	// Should not panic
	services.Close()
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.AppSettings
		wantErr  bool
	}{
		{"nil settings", nil, true},
		{"missing endpoint", &domain.AppSettings{OpenAI: domain.OpenAISettings{APIKey: "k"}}, true},
		{"configured", configuredSettings(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrConfig)
				assert.Contains(t, err.Error(), "kb settings wizard")
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "text-embedding-ada-002", svc.ModelName())
			assert.Equal(t, 1536, svc.Dimensions())
		})
	}
}

func TestCreateGenerationService(t *testing.T) {
	_, err := CreateGenerationService(&domain.AppSettings{})
	assert.ErrorIs(t, err, domain.ErrConfig)

	settings := configuredSettings()
	settings.OpenAI.ChatDeployment = "gpt-4o"
	svc, err := CreateGenerationService(settings)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", svc.ModelName())
}

func TestCreateVectorIndex(t *testing.T) {
	t.Run("azure", func(t *testing.T) {
		idx, err := CreateVectorIndex(configuredSettings())
		require.NoError(t, err)
		require.IsType(t, &azuresearch.Index{}, idx)
		assert.Equal(t, "knowledge-index", idx.(*azuresearch.Index).Name())
	})

	t.Run("azure without endpoint", func(t *testing.T) {
		settings := configuredSettings()
		settings.Index.Endpoint = ""
		idx, err := CreateVectorIndex(settings)
		assert.ErrorIs(t, err, domain.ErrConfig)
		assert.Nil(t, idx)
	})

	t.Run("memory", func(t *testing.T) {
		settings := configuredSettings()
		settings.Index.Provider = domain.IndexProviderMemory
		idx, err := CreateVectorIndex(settings)
		require.NoError(t, err)
		assert.IsType(t, &memoryindex.Index{}, idx)
	})

	t.Run("unknown provider", func(t *testing.T) {
		settings := configuredSettings()
		settings.Index.Provider = "elastic"
		idx, err := CreateVectorIndex(settings)
		assert.ErrorIs(t, err, domain.ErrConfig)
		assert.Nil(t, idx)
	})
}

func TestCreateBlobStore(t *testing.T) {
	store, err := CreateBlobStore(configuredSettings())
	require.NoError(t, err)
	assert.Nil(t, store, "unconfigured storage is optional")

	settings := configuredSettings()
	settings.Storage.ConnectionString = "garbage"
	store, err = CreateBlobStore(settings)
	assert.ErrorIs(t, err, domain.ErrConfig)
	assert.Nil(t, store)
}

func TestNewServices_KeepsErrorsPerService(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Index.Provider = domain.IndexProviderMemory

	services := NewServices(&settings)
	defer services.Close()

	assert.Nil(t, services.Embedding)
	assert.ErrorIs(t, services.EmbeddingErr, domain.ErrConfig)
	assert.Nil(t, services.Generation)
	assert.ErrorIs(t, services.GenerationErr, domain.ErrConfig)
	assert.NotNil(t, services.Index)
	assert.NoError(t, services.IndexErr)
	assert.Nil(t, services.Blob)
	assert.NoError(t, services.BlobErr)
}
