// Package cli provides the kb command line interface built on cobra.
// It is a driving adapter: commands call the core services through the
// driving ports and never touch the external service adapters directly.
package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
	"github.com/custodia-labs/kb-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services wired by main. A nil service with a non-nil error means the
// service could not be built; the error is returned by the commands that
// need it.
var (
	ingestService   driving.IngestService
	ingestErr       error
	queryService    driving.QueryService
	queryErr        error
	documentService driving.DocumentService
	settingsService driving.SettingsService

	// supportedFile reports whether the loader can read a path. Used by
	// watch mode to ignore unrelated files.
	supportedFile func(path string) bool
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "kb",
	Short: "Ask questions about your documents",
	Long: `kb is a retrieval-augmented knowledge base.

Ingest PDF, Word, Markdown and text files into a vector index, then ask
questions in natural language. Answers are generated from the most
relevant passages and cite the files they came from.

Get started:
  kb settings wizard
  kb ingest --dir ~/notes
  kb query "What did we decide about the release date?"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "trace pipeline stages to stderr")
}

// Services holds the core services the commands drive.
type Services struct {
	Ingest    driving.IngestService
	IngestErr error
	Query     driving.QueryService
	QueryErr  error
	Document  driving.DocumentService
	Settings  driving.SettingsService

	// SupportedFile filters watch mode events. Nil accepts every file.
	SupportedFile func(path string) bool
}

// SetServices injects the services used by all commands.
func SetServices(s Services) {
	ingestService = s.Ingest
	ingestErr = s.IngestErr
	queryService = s.Query
	queryErr = s.QueryErr
	documentService = s.Document
	settingsService = s.Settings
	supportedFile = s.SupportedFile
}

// SetVersion sets the version printed by `kb version`.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command with ctx. Command output goes to stdout.
func Execute(ctx context.Context) error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}

func requireIngest() (driving.IngestService, error) {
	if ingestService != nil {
		return ingestService, nil
	}
	if ingestErr != nil {
		return nil, ingestErr
	}
	return nil, errors.New("ingest service not configured")
}

func requireQuery() (driving.QueryService, error) {
	if queryService != nil {
		return queryService, nil
	}
	if queryErr != nil {
		return nil, queryErr
	}
	return nil, errors.New("query service not configured")
}

func requireDocuments() (driving.DocumentService, error) {
	if documentService == nil {
		return nil, errors.New("document service not configured")
	}
	return documentService, nil
}

func requireSettings() (driving.SettingsService, error) {
	if settingsService == nil {
		return nil, errors.New("settings service not configured")
	}
	return settingsService, nil
}
