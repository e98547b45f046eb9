package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyStorageConnection   = "storage.connection_string"
	keyStorageContainer    = "storage.container"
	keyOpenAIEndpoint      = "openai.endpoint"
	keyOpenAIAPIKey        = "openai.api_key"
	keyOpenAIAPIVersion    = "openai.api_version"
	keyOpenAIChat          = "openai.chat_deployment"
	keyOpenAIEmbedding     = "openai.embedding_deployment"
	keyOpenAIRPM           = "openai.requests_per_minute"
	keyIndexProvider       = "index.provider"
	keyIndexName           = "index.name"
	keyIndexEndpoint       = "index.endpoint"
	keyIndexAPIKey         = "index.api_key"
	keyIndexAPIVersion     = "index.api_version"
	keyQdrantHost          = "index.qdrant_host"
	keyQdrantPort          = "index.qdrant_port"
	keyQdrantAPIKey        = "index.qdrant_api_key"
	keyQdrantTLS           = "index.qdrant_tls"
	keyChunkSize           = "rag.chunk_size"
	keyChunkOverlap        = "rag.chunk_overlap"
	keyDimensions          = "rag.dimensions"
	keyTopK                = "rag.top_k"
	keySimilarityThreshold = "rag.similarity_threshold"
	keyEmbeddingBatchSize  = "rag.embedding_batch_size"
	keyUpsertBatchSize     = "rag.upsert_batch_size"
	keyTemperature         = "rag.temperature"
	keyMaxTokens           = "rag.max_tokens"
	keyTelemetryEndpoint   = "telemetry.otlp_endpoint"
	keyTelemetrySampleRate = "telemetry.sample_rate"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindProvider
)

// settingKey describes one persisted setting. Field is the validator
// namespace of the struct field it fills, used to name validation failures.
type settingKey struct {
	key   string
	kind  valueKind
	field string
}

var settingKeys = []settingKey{
	{keyStorageConnection, kindString, "StorageSettings.ConnectionString"},
	{keyStorageContainer, kindString, "StorageSettings.Container"},
	{keyOpenAIEndpoint, kindString, "OpenAISettings.Endpoint"},
	{keyOpenAIAPIKey, kindString, "OpenAISettings.APIKey"},
	{keyOpenAIAPIVersion, kindString, "OpenAISettings.APIVersion"},
	{keyOpenAIChat, kindString, "OpenAISettings.ChatDeployment"},
	{keyOpenAIEmbedding, kindString, "OpenAISettings.EmbeddingDeployment"},
	{keyOpenAIRPM, kindInt, "OpenAISettings.RequestsPerMinute"},
	{keyIndexProvider, kindProvider, "IndexSettings.Provider"},
	{keyIndexName, kindString, "IndexSettings.Name"},
	{keyIndexEndpoint, kindString, "IndexSettings.Endpoint"},
	{keyIndexAPIKey, kindString, "IndexSettings.APIKey"},
	{keyIndexAPIVersion, kindString, "IndexSettings.APIVersion"},
	{keyQdrantHost, kindString, "IndexSettings.QdrantHost"},
	{keyQdrantPort, kindInt, "IndexSettings.QdrantPort"},
	{keyQdrantAPIKey, kindString, "IndexSettings.QdrantAPIKey"},
	{keyQdrantTLS, kindBool, "IndexSettings.QdrantTLS"},
	{keyChunkSize, kindInt, "RAGSettings.ChunkSize"},
	{keyChunkOverlap, kindInt, "RAGSettings.ChunkOverlap"},
	{keyDimensions, kindInt, "RAGSettings.Dimensions"},
	{keyTopK, kindInt, "RAGSettings.TopK"},
	{keySimilarityThreshold, kindFloat, "RAGSettings.SimilarityThreshold"},
	{keyEmbeddingBatchSize, kindInt, "RAGSettings.EmbeddingBatchSize"},
	{keyUpsertBatchSize, kindInt, "RAGSettings.UpsertBatchSize"},
	{keyTemperature, kindFloat, "RAGSettings.Temperature"},
	{keyMaxTokens, kindInt, "RAGSettings.MaxTokens"},
	{keyTelemetryEndpoint, kindString, "TelemetrySettings.OTLPEndpoint"},
	{keyTelemetrySampleRate, kindFloat, "TelemetrySettings.SampleRate"},
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	checker     driven.ServiceChecker
	validate    *validator.Validate
}

// NewSettingsService creates a new settings service.
// The checker is optional; without it Check reports nothing.
func NewSettingsService(configStore driven.ConfigStore, checker driven.ServiceChecker) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		checker:     checker,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Storage: domain.StorageSettings{
			ConnectionString: s.configStore.GetString(keyStorageConnection),
			Container:        s.getString(keyStorageContainer, defaults.Storage.Container),
		},
		OpenAI: domain.OpenAISettings{
			Endpoint:            strings.TrimRight(s.configStore.GetString(keyOpenAIEndpoint), "/"),
			APIKey:              s.configStore.GetString(keyOpenAIAPIKey),
			APIVersion:          s.getString(keyOpenAIAPIVersion, defaults.OpenAI.APIVersion),
			ChatDeployment:      s.getString(keyOpenAIChat, defaults.OpenAI.ChatDeployment),
			EmbeddingDeployment: s.getString(keyOpenAIEmbedding, defaults.OpenAI.EmbeddingDeployment),
			RequestsPerMinute:   s.configStore.GetInt(keyOpenAIRPM),
		},
		Index: domain.IndexSettings{
			Provider:     s.getProvider(defaults.Index.Provider),
			Name:         s.getString(keyIndexName, defaults.Index.Name),
			Endpoint:     strings.TrimRight(s.configStore.GetString(keyIndexEndpoint), "/"),
			APIKey:       s.configStore.GetString(keyIndexAPIKey),
			APIVersion:   s.getString(keyIndexAPIVersion, defaults.Index.APIVersion),
			QdrantHost:   s.configStore.GetString(keyQdrantHost),
			QdrantPort:   s.getInt(keyQdrantPort, defaults.Index.QdrantPort),
			QdrantAPIKey: s.configStore.GetString(keyQdrantAPIKey),
			QdrantTLS:    s.getBool(keyQdrantTLS, defaults.Index.QdrantTLS),
		},
		RAG: domain.RAGSettings{
			ChunkSize:           s.getInt(keyChunkSize, defaults.RAG.ChunkSize),
			ChunkOverlap:        s.getInt(keyChunkOverlap, defaults.RAG.ChunkOverlap),
			Dimensions:          s.getInt(keyDimensions, defaults.RAG.Dimensions),
			TopK:                s.getInt(keyTopK, defaults.RAG.TopK),
			SimilarityThreshold: s.getFloat(keySimilarityThreshold, defaults.RAG.SimilarityThreshold),
			EmbeddingBatchSize:  s.getInt(keyEmbeddingBatchSize, defaults.RAG.EmbeddingBatchSize),
			UpsertBatchSize:     s.getInt(keyUpsertBatchSize, defaults.RAG.UpsertBatchSize),
			Temperature:         s.getFloat(keyTemperature, defaults.RAG.Temperature),
			MaxTokens:           s.getInt(keyMaxTokens, defaults.RAG.MaxTokens),
		},
		Telemetry: domain.TelemetrySettings{
			OTLPEndpoint: s.configStore.GetString(keyTelemetryEndpoint),
			SampleRate:   s.getFloat(keyTelemetrySampleRate, defaults.Telemetry.SampleRate),
		},
	}

	return settings, nil
}

// Set parses value according to the key's type and persists it.
func (s *SettingsService) Set(key, value string) error {
	idx := slices.IndexFunc(settingKeys, func(k settingKey) bool { return k.key == key })
	if idx < 0 {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	parsed, err := parseValue(settingKeys[idx].kind, strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return s.configStore.Save()
}

// Keys returns every recognised setting key in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingKeys))
	for i, k := range settingKeys {
		keys[i] = k.key
	}
	return keys
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateForIngest checks the model, index and chunking settings.
// Blob storage is validated only when a connection string is present.
func (s *SettingsService) ValidateForIngest(settings *domain.AppSettings) error {
	sections := []any{settings.OpenAI, settings.Index, settings.RAG}
	if settings.Storage.IsConfigured() {
		sections = append(sections, settings.Storage)
	}
	return s.validateSections(sections...)
}

// ValidateForQuery checks the model, index and retrieval settings.
func (s *SettingsService) ValidateForQuery(settings *domain.AppSettings) error {
	return s.validateSections(settings.OpenAI, settings.Index, settings.RAG)
}

// Check pings every configured external service.
func (s *SettingsService) Check(ctx context.Context) ([]domain.ServiceCheck, error) {
	if s.checker == nil {
		return nil, nil
	}
	settings, err := s.Get()
	if err != nil {
		return nil, err
	}
	return s.checker.Check(ctx, settings), nil
}

// Path returns the settings file path.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

func (s *SettingsService) validateSections(sections ...any) error {
	var problems []string
	for _, section := range sections {
		err := s.validate.Struct(section)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %w", domain.ErrConfig, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	name := fe.Namespace()
	for _, k := range settingKeys {
		if k.field == name {
			name = k.key
			break
		}
	}

	switch fe.Tag() {
	case "required", "required_if":
		return name + " is required"
	case "url":
		return name + " must be a URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s fails %s=%s", name, fe.Tag(), fe.Param())
	}
}

func parseValue(kind valueKind, value string) (any, error) {
	switch kind {
	case kindInt:
		return strconv.Atoi(value)
	case kindFloat:
		return strconv.ParseFloat(value, 64)
	case kindBool:
		return strconv.ParseBool(value)
	case kindProvider:
		provider := domain.IndexProvider(strings.ToLower(value))
		if !provider.IsValid() {
			return nil, fmt.Errorf("unknown index provider %q", value)
		}
		return provider.String(), nil
	default:
		return value, nil
	}
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(defaultVal domain.IndexProvider) domain.IndexProvider {
	val := s.configStore.GetString(keyIndexProvider)
	if val == "" {
		return defaultVal
	}
	provider := domain.IndexProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
