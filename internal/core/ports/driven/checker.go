package driven

import (
	"context"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

// ServiceChecker validates connectivity to the configured external services.
type ServiceChecker interface {
	// Check builds a client for every configured service from settings and
	// pings it. Services that are not configured are reported as skipped.
	Check(ctx context.Context, settings *domain.AppSettings) []domain.ServiceCheck
}
