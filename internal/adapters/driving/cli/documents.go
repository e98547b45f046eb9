package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
)

var documentsJSON bool

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Manage ingested documents",
	Long: `List and remove the documents recorded in the local ingest ledger.

Removing a document deletes its chunks from the vector index, its
original from blob storage and its ledger entry.`,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsShowCmd = &cobra.Command{
	Use:   "show [document-id]",
	Short: "Show one ingested document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsShow,
}

var documentsRemoveCmd = &cobra.Command{
	Use:     "remove [document-id]",
	Aliases: []string{"rm"},
	Short:   "Remove a document from the knowledge base",
	Args:    cobra.ExactArgs(1),
	RunE:    runDocumentsRemove,
}

var documentsBlobsCmd = &cobra.Command{
	Use:   "blobs",
	Short: "List original files held in blob storage",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsBlobs,
}

func init() {
	documentsCmd.PersistentFlags().BoolVar(&documentsJSON, "json", false, "output as JSON")
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsShowCmd)
	documentsCmd.AddCommand(documentsRemoveCmd)
	documentsCmd.AddCommand(documentsBlobsCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	svc, err := requireDocuments()
	if err != nil {
		return err
	}

	entries, err := svc.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if documentsJSON {
		if entries == nil {
			entries = []domain.LedgerEntry{}
		}
		return printJSON(cmd, entries)
	}

	if len(entries) == 0 {
		cmd.Println("No documents ingested yet.")
		cmd.Println("Run 'kb ingest --file <path>' to add one.")
		return nil
	}

	cmd.Printf("Documents (%d):\n\n", len(entries))
	for i := range entries {
		e := &entries[i]
		mark := successStyle.Render("✓")
		if e.Status == domain.IngestStatusFailed {
			mark = failureStyle.Render("✗")
		}
		cmd.Printf("  %s %s  %s\n", mark, e.Source, mutedStyle.Render(e.DocumentID))
		cmd.Printf("      %d chunks, %s, %s\n", e.Chunks, e.Type, e.IngestedAt.Local().Format("2006-01-02 15:04"))
		if e.Error != "" {
			cmd.Printf("      %s\n", failureStyle.Render(e.Error))
		}
	}
	return nil
}

func runDocumentsShow(cmd *cobra.Command, args []string) error {
	svc, err := requireDocuments()
	if err != nil {
		return err
	}

	entry, err := svc.Get(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("document not found: %s", args[0])
		}
		return fmt.Errorf("failed to get document: %w", err)
	}

	if documentsJSON {
		return printJSON(cmd, entry)
	}

	cmd.Printf("Document:  %s\n", entry.DocumentID)
	cmd.Printf("Source:    %s\n", entry.Source)
	cmd.Printf("Path:      %s\n", entry.Path)
	cmd.Printf("Type:      %s\n", entry.Type)
	cmd.Printf("Chunks:    %d\n", entry.Chunks)
	cmd.Printf("Status:    %s\n", entry.Status)
	if entry.BlobURL != "" {
		cmd.Printf("Blob:      %s\n", entry.BlobURL)
	}
	if entry.Error != "" {
		cmd.Printf("Error:     %s\n", entry.Error)
	}
	cmd.Printf("Ingested:  %s\n", entry.IngestedAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

func runDocumentsRemove(cmd *cobra.Command, args []string) error {
	svc, err := requireDocuments()
	if err != nil {
		return err
	}

	if err := svc.Remove(cmd.Context(), args[0]); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("document not found: %s", args[0])
		}
		return fmt.Errorf("failed to remove document: %w", err)
	}

	cmd.Printf("Removed document %s\n", args[0])
	return nil
}

func runDocumentsBlobs(cmd *cobra.Command, _ []string) error {
	svc, err := requireDocuments()
	if err != nil {
		return err
	}

	blobs, err := svc.ListBlobs(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list blobs: %w", err)
	}

	if documentsJSON {
		type blobOutput struct {
			Name        string `json:"name"`
			Size        int64  `json:"size"`
			ContentType string `json:"content_type,omitempty"`
		}
		out := make([]blobOutput, len(blobs))
		for i, b := range blobs {
			out[i] = blobOutput{Name: b.Name, Size: b.Size, ContentType: b.ContentType}
		}
		return printJSON(cmd, out)
	}

	if len(blobs) == 0 {
		cmd.Println("No blobs stored.")
		return nil
	}

	cmd.Printf("Blobs (%d):\n\n", len(blobs))
	for _, b := range blobs {
		cmd.Printf("  %s  %s\n", b.Name, mutedStyle.Render(formatSize(b.Size)))
	}
	return nil
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
