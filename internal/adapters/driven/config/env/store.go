// Package env layers environment variables over another ConfigStore.
package env

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ConfigStore = (*Store)(nil)

// Prefix is prepended to generated variable names, e.g. KB_RAG_TOP_K.
const Prefix = "KB_"

// knownVariables maps setting keys to the conventional Azure variable names.
var knownVariables = map[string]string{
	"storage.connection_string":   "AZURE_STORAGE_CONNECTION_STRING",
	"storage.container":           "BLOB_CONTAINER_NAME",
	"index.endpoint":              "AZURE_SEARCH_ENDPOINT",
	"index.api_key":               "AZURE_SEARCH_KEY",
	"index.name":                  "AZURE_SEARCH_INDEX_NAME",
	"index.qdrant_host":           "QDRANT_HOST",
	"index.qdrant_port":           "QDRANT_PORT",
	"index.qdrant_api_key":        "QDRANT_API_KEY",
	"openai.endpoint":             "AZURE_OPENAI_ENDPOINT",
	"openai.api_key":              "AZURE_OPENAI_KEY",
	"openai.api_version":          "AZURE_OPENAI_API_VERSION",
	"openai.chat_deployment":      "AZURE_OPENAI_DEPLOYMENT",
	"openai.embedding_deployment": "AZURE_OPENAI_EMBEDDING_DEPLOYMENT",
	"telemetry.otlp_endpoint":     "OTEL_EXPORTER_OTLP_ENDPOINT",
}

// LookupFunc resolves an environment variable.
type LookupFunc func(name string) (string, bool)

// Store reads each key from the environment first and falls back to the
// wrapped store. Writes go to the wrapped store only.
type Store struct {
	base   driven.ConfigStore
	lookup LookupFunc
}

// Option configures the store.
type Option func(*Store)

// WithLookup replaces os.LookupEnv, mainly for tests.
func WithLookup(fn LookupFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.lookup = fn
		}
	}
}

// New wraps base with an environment overlay.
func New(base driven.ConfigStore, opts ...Option) *Store {
	s := &Store{base: base, lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadDotEnv loads variables from the given files into the process
// environment without overriding variables that are already set.
// Missing files are skipped. With no arguments it loads ./.env.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// VariableName returns the environment variable consulted for a key.
func VariableName(key string) string {
	if name, ok := knownVariables[key]; ok {
		return name
	}
	return Prefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// FromEnvironment reports whether key is currently overridden by the environment.
func (s *Store) FromEnvironment(key string) bool {
	v, ok := s.lookup(VariableName(key))
	return ok && v != ""
}

// Get retrieves a value, preferring a non-empty environment variable.
func (s *Store) Get(key string) (any, bool) {
	if v, ok := s.lookup(VariableName(key)); ok && v != "" {
		return v, true
	}
	return s.base.Get(key)
}

// GetString retrieves a string value.
func (s *Store) GetString(key string) string {
	if v, ok := s.lookup(VariableName(key)); ok && v != "" {
		return v
	}
	return s.base.GetString(key)
}

// GetInt retrieves an integer value. Unparseable variables read as 0.
func (s *Store) GetInt(key string) int {
	if v, ok := s.lookup(VariableName(key)); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	}
	return s.base.GetInt(key)
}

// GetFloat retrieves a floating point value. Unparseable variables read as 0.
func (s *Store) GetFloat(key string) float64 {
	if v, ok := s.lookup(VariableName(key)); ok && v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return s.base.GetFloat(key)
}

// GetBool retrieves a boolean value. Unparseable variables read as false.
func (s *Store) GetBool(key string) bool {
	if v, ok := s.lookup(VariableName(key)); ok && v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false
		}
		return b
	}
	return s.base.GetBool(key)
}

// Set stores a value in the wrapped store.
func (s *Store) Set(key string, value any) error {
	return s.base.Set(key, value)
}

// Save persists the wrapped store.
func (s *Store) Save() error {
	return s.base.Save()
}

// Load reloads the wrapped store.
func (s *Store) Load() error {
	return s.base.Load()
}

// Path returns the wrapped store's file path.
func (s *Store) Path() string {
	return s.base.Path()
}
