// Command kb is a retrieval-augmented knowledge base CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/custodia-labs/kb-cli/internal/adapters/driven/cloud"
	"github.com/custodia-labs/kb-cli/internal/adapters/driven/config/env"
	"github.com/custodia-labs/kb-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kb-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/kb-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kb-cli/internal/core/services"
	"github.com/custodia-labs/kb-cli/internal/logger"
	"github.com/custodia-labs/kb-cli/internal/normalisers"
	"github.com/custodia-labs/kb-cli/internal/observability"
	"github.com/custodia-labs/kb-cli/internal/postprocessors/chunker"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := env.LoadDotEnv(); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}

	home, err := homeDir()
	if err != nil {
		return err
	}

	fileStore, err := file.NewConfigStore(home)
	if err != nil {
		return fmt.Errorf("opening settings: %w", err)
	}
	settingsService := services.NewSettingsService(env.New(fileStore), cloud.NewChecker())

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}

	tracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    "kb",
		ServiceVersion: version,
		OTLPEndpoint:   settings.Telemetry.OTLPEndpoint,
		SampleRate:     settings.Telemetry.SampleRate,
	})
	if err != nil {
		logger.Warn("Tracing disabled: %v", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Flushing traces: %v", err)
			}
		}()
	}

	var ledger driven.IngestLedger
	store, err := sqlite.NewStore(filepath.Join(home, "data"))
	if err != nil {
		logger.Warn("Ingest ledger unavailable: %v", err)
	} else {
		defer store.Close() //nolint:errcheck // best-effort close on exit
		ledger = store
	}

	var prompts driven.PromptStore
	if p, err := file.NewPromptStore(filepath.Join(home, "prompts")); err != nil {
		logger.Warn("Prompt overrides unavailable: %v", err)
	} else {
		prompts = p
	}

	adapters := cloud.NewServices(settings)
	defer adapters.Close()

	loader := normalisers.DefaultLoader()

	var ingest *services.IngestService
	ingestErr := firstError(
		validateWithHint(settingsService.ValidateForIngest(settings)),
		adapters.EmbeddingErr,
		adapters.IndexErr,
	)
	if ingestErr == nil {
		// A broken blob store only blocks ingests that upload.
		ingest = services.NewIngestService(
			loader,
			chunker.FromSettings(settings.RAG),
			adapters.Embedding,
			adapters.Index,
			adapters.Blob,
			ledger,
			settings.RAG,
		).WithBlobError(adapters.BlobErr)
	}

	var query *services.QueryService
	queryErr := firstError(
		validateWithHint(settingsService.ValidateForQuery(settings)),
		adapters.EmbeddingErr,
		adapters.IndexErr,
		adapters.GenerationErr,
	)
	if queryErr == nil {
		query = services.NewQueryService(
			adapters.Embedding,
			adapters.Index,
			adapters.Generation,
			prompts,
			settings.RAG,
		)
	}

	wired := cli.Services{
		IngestErr:     ingestErr,
		QueryErr:      queryErr,
		Document:      services.NewDocumentService(ledger, adapters.Index, adapters.Blob),
		Settings:      settingsService,
		SupportedFile: loader.Supports,
	}
	// Assign only non-nil services so the CLI never sees a typed nil.
	if ingest != nil {
		wired.Ingest = ingest
	}
	if query != nil {
		wired.Query = query
	}

	cli.SetServices(wired)
	cli.SetVersion(version)
	return cli.Execute(ctx)
}

// homeDir returns KB_HOME, or ~/.kb when it is unset.
func homeDir() (string, error) {
	if dir := os.Getenv("KB_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".kb"), nil
}

func validateWithHint(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w. Run 'kb settings wizard' to fix", err)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
