package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kb-cli/internal/adapters/driving/tui"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
)

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive ask screen",
	Long: `Launch the interactive terminal user interface for kb.

Type a question and press Enter. The answer and its sources replace the
previous one. Same as 'kb query --interactive'.

Controls:
  Enter      - Ask
  Tab        - Show or hide the retrieved chunks
  PgUp/PgDn  - Scroll the answer
  Ctrl+L     - Clear the input
  Esc        - Quit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := requireQuery()
		if err != nil {
			return err
		}
		return runInteractive(cmd, svc, driving.QueryOptions{})
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runInteractive(cmd *cobra.Command, svc driving.QueryService, opts driving.QueryOptions) error {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	app, err := tui.NewApp(&tui.Ports{Query: svc}, opts)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	if err := app.WithContext(cmd.Context()).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
