package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kb-cli/internal/adapters/driving/watch"
	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
)

var (
	ingestFile       string
	ingestDir        string
	ingestSkipUpload bool
	ingestWatch      bool
	ingestJSON       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest documents into the knowledge base",
	Long: `Load a document, split it into overlapping chunks, embed every chunk and
store the chunks in the vector index. The original file is uploaded to
blob storage when storage is configured.

Supported formats: ` + strings.Join(domain.SupportedExtensions(), ", ") + `

Re-ingesting a file replaces its previous chunks. A document is either
fully indexed or not indexed at all.

Examples:
  kb ingest --file notes/meeting.md
  kb ingest --dir ~/documents
  kb ingest --dir ~/documents --watch`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "path to a document to ingest")
	ingestCmd.Flags().StringVarP(&ingestDir, "dir", "d", "", "path to a directory of documents to ingest")
	ingestCmd.Flags().BoolVar(&ingestSkipUpload, "skip-upload", false, "do not upload originals to blob storage")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching --dir and re-ingest changed files")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if (ingestFile == "") == (ingestDir == "") {
		return errors.New("exactly one of --file or --dir is required")
	}
	if ingestWatch && ingestDir == "" {
		return errors.New("--watch requires --dir")
	}

	svc, err := requireIngest()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	opts := domain.IngestOptions{SkipUpload: ingestSkipUpload}

	if ingestFile != "" {
		result, err := svc.IngestFile(ctx, ingestFile, opts)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", ingestFile, err)
		}
		if ingestJSON {
			return printJSON(cmd, result)
		}
		printIngestResult(cmd, result)
		return nil
	}

	result, err := svc.IngestDirectory(ctx, ingestDir, opts)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", ingestDir, err)
	}
	if ingestJSON {
		if err := printJSON(cmd, result); err != nil {
			return err
		}
	} else {
		printDirectoryResult(cmd, ingestDir, result)
	}

	if ingestWatch {
		return watchDirectory(cmd, svc, opts)
	}

	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d documents failed to ingest", len(result.Failed), result.Total())
	}
	return nil
}

func watchDirectory(cmd *cobra.Command, svc driving.IngestService, opts domain.IngestOptions) error {
	w := watch.New(svc, supportedFile, watch.WithIngestOptions(opts))
	events, err := w.Watch(cmd.Context(), ingestDir)
	if err != nil {
		return err
	}

	if !ingestJSON {
		cmd.Println()
		cmd.Println(mutedStyle.Render(fmt.Sprintf("Watching %s for changes (Ctrl-C to stop)", ingestDir)))
	}

	for ev := range events {
		switch {
		case ingestJSON && ev.Err != nil:
			_ = printJSON(cmd, domain.FileFailure{Path: ev.Path, Error: ev.Err.Error()}) //nolint:errcheck // marshalling a plain struct
		case ingestJSON:
			_ = printJSON(cmd, ev.Result) //nolint:errcheck // marshalling a plain struct
		case ev.Err != nil:
			cmd.Printf("%s %s: %v\n", failureStyle.Render("✗"), ev.Path, ev.Err)
		default:
			printIngestResult(cmd, ev.Result)
		}
	}
	return nil
}

func printIngestResult(cmd *cobra.Command, r *domain.IngestResult) {
	cmd.Printf("%s %s\n", successStyle.Render("Ingested"), r.Source)
	cmd.Printf("  Document:   %s\n", r.DocumentID)
	cmd.Printf("  Chunks:     %d\n", r.Chunks)
	cmd.Printf("  Characters: %d\n", r.Characters)
	if r.BlobURL != "" {
		cmd.Printf("  Blob:       %s\n", r.BlobURL)
	}
}

func printDirectoryResult(cmd *cobra.Command, dir string, r *domain.DirectoryResult) {
	if r.Total() == 0 {
		cmd.Println(warningStyle.Render(fmt.Sprintf("No supported documents found in %s", dir)))
		return
	}

	for i := range r.Succeeded {
		cmd.Printf("  %s %s (%d chunks)\n", successStyle.Render("✓"), r.Succeeded[i].Path, r.Succeeded[i].Chunks)
	}
	for _, f := range r.Failed {
		cmd.Printf("  %s %s: %s\n", failureStyle.Render("✗"), f.Path, f.Error)
	}
	cmd.Println()

	summary := fmt.Sprintf("Ingested %d of %d documents from %s", len(r.Succeeded), r.Total(), dir)
	if len(r.Failed) > 0 {
		cmd.Println(warningStyle.Render(summary))
		return
	}
	cmd.Println(successStyle.Render(summary))
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
