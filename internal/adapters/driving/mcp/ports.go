package mcp

import (
	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query answers questions and retrieves context.
	Query driving.QueryService

	// Document lists ingested documents.
	Document driving.DocumentService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	// Document is optional; without it the document tool and resources report nothing
	return nil
}
