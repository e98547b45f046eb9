package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kb-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/services"
)

// fakeChecker returns a fixed set of service checks.
type fakeChecker struct {
	checks []domain.ServiceCheck
}

func (f *fakeChecker) Check(context.Context, *domain.AppSettings) []domain.ServiceCheck {
	return f.checks
}

// newTestSettings returns a settings service over an in-memory store.
func newTestSettings(t *testing.T, checker *fakeChecker, seed map[string]any) (*services.SettingsService, *memory.ConfigStore) {
	t.Helper()
	store := memory.NewConfigStore(seed)
	if checker == nil {
		return services.NewSettingsService(store, nil), store
	}
	return services.NewSettingsService(store, checker), store
}

func TestSettingsShow_Defaults(t *testing.T) {
	svc, _ := newTestSettings(t, nil, nil)
	setupTestServices(t, Services{Settings: svc})

	out, err := execute(t, "settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "[Azure OpenAI]")
	assert.Contains(t, out, "Endpoint: (not set)")
	assert.Contains(t, out, "Provider: Azure AI Search")
	assert.Contains(t, out, "Chunk Size: 1000")
	assert.Contains(t, out, "Chunk Overlap: 200")
	assert.Contains(t, out, "Warning:")
	assert.Contains(t, out, "openai.endpoint is required")
	assert.Contains(t, out, "Settings file: :memory:")
}

func TestSettingsShow_MasksSecrets(t *testing.T) {
	svc, _ := newTestSettings(t, nil, map[string]any{
		"openai.endpoint": "https://res.openai.azure.com",
		"openai.api_key":  "sk-1234567890abcdef",
		"index.provider":  "memory",
	})
	setupTestServices(t, Services{Settings: svc})

	out, err := execute(t, "settings")

	require.NoError(t, err)
	assert.Contains(t, out, "API Key: sk-1...cdef")
	assert.NotContains(t, out, "sk-1234567890abcdef")
	assert.Contains(t, out, "In-memory")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsSet(t *testing.T) {
	svc, store := newTestSettings(t, nil, nil)
	setupTestServices(t, Services{Settings: svc})

	out, err := execute(t, "settings", "set", "rag.top_k", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "Set rag.top_k = 8")
	assert.Equal(t, 8, store.GetInt("rag.top_k"))

	out, err = execute(t, "settings", "set", "index.api_key", "admin-key-0123456789")
	require.NoError(t, err)
	assert.Contains(t, out, "Set index.api_key = admi...6789")
}

func TestSettingsSet_Invalid(t *testing.T) {
	svc, _ := newTestSettings(t, nil, nil)
	setupTestServices(t, Services{Settings: svc})

	_, err := execute(t, "settings", "set", "rag.top_k", "many")
	assert.Error(t, err)

	_, err = execute(t, "settings", "set", "no.such_key", "1")
	assert.Error(t, err)
}

func TestSettingsKeys(t *testing.T) {
	svc, _ := newTestSettings(t, nil, nil)
	setupTestServices(t, Services{Settings: svc})

	out, err := execute(t, "settings", "keys")

	require.NoError(t, err)
	assert.Contains(t, out, "openai.endpoint\n")
	assert.Contains(t, out, "rag.chunk_overlap\n")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), len(svc.Keys()))
}

func TestSettingsCheck(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		checker := &fakeChecker{checks: []domain.ServiceCheck{
			{Service: "embedding", Target: "text-embedding-ada-002"},
			{Service: "blob storage", Skipped: true},
		}}
		svc, _ := newTestSettings(t, checker, nil)
		setupTestServices(t, Services{Settings: svc})

		out, err := execute(t, "settings", "check")

		require.NoError(t, err)
		assert.Contains(t, out, "embedding (text-embedding-ada-002)")
		assert.Contains(t, out, "blob storage: skipped")
		assert.Contains(t, out, "All configured services are reachable.")
	})

	t.Run("failure", func(t *testing.T) {
		checker := &fakeChecker{checks: []domain.ServiceCheck{
			{Service: "vector index", Target: "knowledge-index", Err: errors.New("401 unauthorized")},
		}}
		svc, _ := newTestSettings(t, checker, nil)
		setupTestServices(t, Services{Settings: svc})

		out, err := execute(t, "settings", "check")

		assert.EqualError(t, err, "1 service check(s) failed")
		assert.Contains(t, out, "401 unauthorized")
	})
}

func TestSettingsWizard(t *testing.T) {
	svc, store := newTestSettings(t, nil, nil)
	setupTestServices(t, Services{Settings: svc})

	answers := []string{
		"https://res.openai.azure.com", // endpoint
		"sk-wizard-0123456789",         // api key
		"",                             // chat deployment
		"text-embedding-3-large",       // embedding deployment
		"2",                            // qdrant
		"",                             // index name
		"",                             // qdrant host
		"",                             // qdrant port
		"",                             // qdrant api key
		"",                             // storage connection string
		"",                             // container
		"800",                          // chunk size
		"",                             // chunk overlap
		"",                             // top k
	}
	rootCmd.SetIn(strings.NewReader(strings.Join(answers, "\n") + "\n"))

	out, err := execute(t, "settings", "wizard")

	require.NoError(t, err)
	assert.Contains(t, out, "Embedding dimensions set to 3072")
	assert.Contains(t, out, "All settings are valid and saved.")
	assert.Contains(t, out, "kb settings check")

	assert.Equal(t, "https://res.openai.azure.com", store.GetString("openai.endpoint"))
	assert.Equal(t, "sk-wizard-0123456789", store.GetString("openai.api_key"))
	assert.Equal(t, "text-embedding-3-large", store.GetString("openai.embedding_deployment"))
	assert.Equal(t, 3072, store.GetInt("rag.dimensions"))
	assert.Equal(t, "qdrant", store.GetString("index.provider"))
	assert.Equal(t, "localhost", store.GetString("index.qdrant_host"))
	assert.Equal(t, 800, store.GetInt("rag.chunk_size"))

	_, stored := store.Get("openai.chat_deployment")
	assert.False(t, stored, "unchanged answers are not saved")
}

func TestSettingsCmd_NotConfigured(t *testing.T) {
	setupTestServices(t, Services{})

	_, err := execute(t, "settings", "show")
	assert.EqualError(t, err, "settings service not configured")
}

func TestIsSecretKey(t *testing.T) {
	assert.True(t, isSecretKey("openai.api_key"))
	assert.True(t, isSecretKey("index.qdrant_api_key"))
	assert.True(t, isSecretKey("storage.connection_string"))
	assert.False(t, isSecretKey("rag.top_k"))
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}
