package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
)

// Ensure Checker implements the interface.
var _ driven.ServiceChecker = (*Checker)(nil)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 10 * time.Second

// Service names reported by Check.
const (
	ServiceEmbedding  = "embedding"
	ServiceGeneration = "generation"
	ServiceIndex      = "index"
	ServiceStorage    = "storage"
)

// pinger is satisfied by every adapter.
type pinger interface {
	Ping(ctx context.Context) error
}

// Checker pings the services built from settings.
type Checker struct {
	timeout time.Duration
}

// NewChecker creates a new service checker.
func NewChecker() *Checker {
	return &Checker{timeout: pingTimeout}
}

// Check builds and pings each service in turn.
func (c *Checker) Check(ctx context.Context, settings *domain.AppSettings) []domain.ServiceCheck {
	services := NewServices(settings)
	defer services.Close()

	if settings == nil {
		settings = &domain.AppSettings{}
	}

	checks := []domain.ServiceCheck{
		c.ping(ctx, ServiceEmbedding, settings.OpenAI.EmbeddingDeployment, services.Embedding, services.EmbeddingErr),
		c.ping(ctx, ServiceGeneration, settings.OpenAI.ChatDeployment, services.Generation, services.GenerationErr),
		c.ping(ctx, ServiceIndex, fmt.Sprintf("%s (%s)", settings.Index.Name, settings.Index.Provider),
			services.Index, services.IndexErr),
	}

	storage := domain.ServiceCheck{Service: ServiceStorage, Target: settings.Storage.Container}
	switch {
	case services.BlobErr != nil:
		storage.Err = services.BlobErr
	case services.Blob == nil:
		storage.Skipped = true
	default:
		storage = c.ping(ctx, ServiceStorage, settings.Storage.Container, services.Blob, nil)
	}
	return append(checks, storage)
}

func (c *Checker) ping(ctx context.Context, service, target string, p pinger, initErr error) domain.ServiceCheck {
	check := domain.ServiceCheck{Service: service, Target: target}
	if initErr != nil {
		check.Err = initErr
		return check
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		check.Err = fmt.Errorf("service unreachable: %w", err)
	}
	return check
}
