package domain

const unknownDescription = "Unknown"

// IndexProvider identifies the vector index backend.
type IndexProvider string

// Available index providers.
const (
	// IndexProviderAzure is Azure AI Search.
	IndexProviderAzure IndexProvider = "azure"

	// IndexProviderQdrant is a Qdrant server reached over gRPC.
	IndexProviderQdrant IndexProvider = "qdrant"

	// IndexProviderMemory keeps records in process memory for a single run.
	IndexProviderMemory IndexProvider = "memory"
)

// IsValid returns true if the index provider is recognised.
func (p IndexProvider) IsValid() bool {
	switch p {
	case IndexProviderAzure, IndexProviderQdrant, IndexProviderMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p IndexProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p IndexProvider) Description() string {
	switch p {
	case IndexProviderAzure:
		return "Azure AI Search"
	case IndexProviderQdrant:
		return "Qdrant"
	case IndexProviderMemory:
		return "In-memory (not persisted)"
	default:
		return unknownDescription
	}
}

// AllIndexProviders returns all available index providers.
func AllIndexProviders() []IndexProvider {
	return []IndexProvider{
		IndexProviderAzure,
		IndexProviderQdrant,
		IndexProviderMemory,
	}
}

// StorageSettings holds blob storage configuration.
type StorageSettings struct {
	// ConnectionString is the storage account connection string.
	ConnectionString string `validate:"required"`

	// Container is the blob container for original documents.
	Container string `validate:"required"`
}

// IsConfigured returns true if blob storage can be used.
func (s StorageSettings) IsConfigured() bool {
	return s.ConnectionString != ""
}

// OpenAISettings holds Azure OpenAI configuration shared by the
// embedding and generation clients.
type OpenAISettings struct {
	// Endpoint is the resource endpoint, e.g. https://name.openai.azure.com.
	Endpoint string `validate:"required,url"`

	// APIKey is the resource key.
	APIKey string `validate:"required"`

	// APIVersion is the REST API version.
	APIVersion string `validate:"required"`

	// ChatDeployment is the deployment name of the chat model.
	ChatDeployment string `validate:"required"`

	// EmbeddingDeployment is the deployment name of the embedding model.
	EmbeddingDeployment string `validate:"required"`

	// RequestsPerMinute caps embedding requests client-side. Zero disables it.
	RequestsPerMinute int `validate:"gte=0"`
}

// IsConfigured returns true if the hosted models can be reached.
func (o OpenAISettings) IsConfigured() bool {
	return o.Endpoint != "" && o.APIKey != ""
}

// IndexSettings holds vector index configuration.
type IndexSettings struct {
	// Provider selects the index backend.
	Provider IndexProvider `validate:"required,oneof=azure qdrant memory"`

	// Name is the index (or collection) name.
	Name string `validate:"required"`

	// Endpoint is the Azure AI Search service endpoint.
	Endpoint string `validate:"required_if=Provider azure,omitempty,url"`

	// APIKey is the Azure AI Search admin key.
	APIKey string `validate:"required_if=Provider azure"`

	// APIVersion is the Azure AI Search REST API version.
	APIVersion string `validate:"required_if=Provider azure"`

	// QdrantHost is the Qdrant gRPC host.
	QdrantHost string `validate:"required_if=Provider qdrant"`

	// QdrantPort is the Qdrant gRPC port.
	QdrantPort int `validate:"required_if=Provider qdrant,omitempty,gt=0,lt=65536"`

	// QdrantAPIKey is an optional Qdrant API key.
	QdrantAPIKey string

	// QdrantTLS enables TLS for the Qdrant connection.
	QdrantTLS bool
}

// IsConfigured returns true if the index provider has what it needs.
func (i IndexSettings) IsConfigured() bool {
	switch i.Provider {
	case IndexProviderAzure:
		return i.Endpoint != "" && i.APIKey != ""
	case IndexProviderQdrant:
		return i.QdrantHost != ""
	case IndexProviderMemory:
		return true
	default:
		return false
	}
}

// RAGSettings holds the chunking, retrieval and generation tunables.
type RAGSettings struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `validate:"gt=0"`

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	ChunkOverlap int `validate:"gte=0"`

	// Dimensions is the embedding vector length.
	Dimensions int `validate:"gt=0"`

	// TopK is the number of chunks retrieved per question.
	TopK int `validate:"gt=0"`

	// SimilarityThreshold drops retrieved chunks scoring below it.
	SimilarityThreshold float64 `validate:"gte=0,lte=1"`

	// EmbeddingBatchSize is the number of inputs per embedding request.
	EmbeddingBatchSize int `validate:"gt=0,lte=2048"`

	// UpsertBatchSize is the number of records per index upload.
	UpsertBatchSize int `validate:"gt=0,lte=1000"`

	// Temperature is the generation sampling temperature.
	Temperature float64 `validate:"gte=0,lte=2"`

	// MaxTokens caps the generated answer length.
	MaxTokens int `validate:"gt=0"`
}

// TelemetrySettings holds tracing configuration.
type TelemetrySettings struct {
	// OTLPEndpoint is the OTLP gRPC collector address. Empty disables tracing.
	OTLPEndpoint string

	// SampleRate is the fraction of traces kept.
	SampleRate float64 `validate:"gte=0,lte=1"`
}

// AppSettings holds all application settings.
type AppSettings struct {
	Storage   StorageSettings
	OpenAI    OpenAISettings
	Index     IndexSettings
	RAG       RAGSettings
	Telemetry TelemetrySettings
}

// DefaultSystemPrompt instructs the model to answer from context only.
// Users can override it through the prompt store.
const DefaultSystemPrompt = `You are a helpful assistant that answers questions based on the provided context.
Only use information from the context to answer the question.
If you don't know the answer, say "I don't have enough information to answer this question."
Keep your answers concise and to the point.`

// DefaultAppSettings returns settings with sensible defaults.
// Endpoints and credentials are left empty and must come from the
// settings file or the environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Storage: StorageSettings{
			Container: "documents",
		},
		OpenAI: OpenAISettings{
			APIVersion:          "2023-07-01-preview",
			ChatDeployment:      "gpt-35-turbo",
			EmbeddingDeployment: "text-embedding-ada-002",
		},
		Index: IndexSettings{
			Provider:   IndexProviderAzure,
			Name:       "knowledge-index",
			APIVersion: "2023-11-01",
			QdrantPort: 6334,
		},
		RAG: RAGSettings{
			ChunkSize:           1000,
			ChunkOverlap:        200,
			Dimensions:          1536,
			TopK:                5,
			SimilarityThreshold: 0.7,
			EmbeddingBatchSize:  16,
			UpsertBatchSize:     100,
			Temperature:         0,
			MaxTokens:           500,
		},
		Telemetry: TelemetrySettings{
			SampleRate: 1.0,
		},
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
