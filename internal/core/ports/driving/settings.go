package driving

import (
	"context"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current settings with defaults and environment overrides applied.
	Get() (*domain.AppSettings, error)

	// Set persists a single setting by dotted key, e.g. "rag.top_k".
	Set(key, value string) error

	// Keys returns every recognised setting key in display order.
	Keys() []string

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ValidateForIngest checks everything the ingest pipeline needs.
	ValidateForIngest(settings *domain.AppSettings) error

	// ValidateForQuery checks everything the query pipeline needs.
	ValidateForQuery(settings *domain.AppSettings) error

	// Check pings every configured external service.
	Check(ctx context.Context) ([]domain.ServiceCheck, error)

	// Path returns the settings file path.
	Path() string
}
