// Package services implements the driving port interfaces.
// Services hold the ingest and query pipelines and orchestrate
// calls to driven ports (adapters).
//
// Services are pure Go with no CGO or external dependencies.
package services
