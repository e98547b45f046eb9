package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vector index",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the vector index if it does not exist",
	Long: `Create the vector index with the configured name and embedding
dimensions. Ingest creates the index on first use, so this is only needed
to prepare an index ahead of time. Running it against an existing index
does nothing.`,
	Args: cobra.NoArgs,
	RunE: runIndexCreate,
}

func init() {
	indexCmd.AddCommand(indexCreateCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexCreate(cmd *cobra.Command, _ []string) error {
	svc, err := requireIngest()
	if err != nil {
		return err
	}

	if err := svc.EnsureIndex(cmd.Context()); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	cmd.Println(successStyle.Render("Index is ready."))
	return nil
}
