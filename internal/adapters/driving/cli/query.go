package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
)

var (
	queryInteractive bool
	queryNoSources   bool
	queryFilters     []string
	queryTopK        int
	queryJSON        bool
)

var queryCmd = &cobra.Command{
	Use:     "query [question]",
	Aliases: []string{"ask"},
	Short:   "Ask a question about your documents",
	Long: `Embed the question, retrieve the most similar chunks from the vector
index and generate an answer grounded in them.

Filters restrict retrieval by metadata. Supported keys are "source" (the
file name) and "document_type" (the extension without its dot, e.g. pdf).
Both key=value and "key eq value" forms are accepted.

Examples:
  kb query "When is the release?"
  kb ask "Summarise the onboarding guide" --filter source=onboarding.pdf
  kb query -i`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().BoolVarP(&queryInteractive, "interactive", "i", false, "open the interactive ask screen")
	queryCmd.Flags().BoolVar(&queryNoSources, "no-sources", false, "do not list the source documents")
	queryCmd.Flags().StringArrayVarP(&queryFilters, "filter", "f", nil, "metadata filter, e.g. document_type=pdf (repeatable)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default from settings)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(queryCmd)
}

// queryOutput is the --json shape of an answer.
type queryOutput struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources,omitempty"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryTopK < 0 {
		return fmt.Errorf("%w: --top-k must not be negative", domain.ErrInvalidInput)
	}
	filter, err := parseFilters(queryFilters)
	if err != nil {
		return err
	}
	opts := driving.QueryOptions{TopK: queryTopK, Filter: filter}

	svc, err := requireQuery()
	if err != nil {
		return err
	}

	if queryInteractive {
		return runInteractive(cmd, svc, opts)
	}
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return errors.New("provide a question or use --interactive")
	}

	answer, err := svc.Ask(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		out := queryOutput{Question: answer.Question, Answer: answer.Text}
		if !queryNoSources {
			out.Sources = answer.Sources
		}
		return printJSON(cmd, out)
	}

	printAnswer(cmd, answer, !queryNoSources)
	return nil
}

func printAnswer(cmd *cobra.Command, answer *domain.Answer, showSources bool) {
	cmd.Println(headingStyle.Render("Question: ") + answer.Question)
	cmd.Println()
	cmd.Println(headingStyle.Render("Answer:"))
	cmd.Println(answer.Text)

	if !showSources {
		return
	}
	cmd.Println()
	if len(answer.Sources) == 0 {
		cmd.Println(mutedStyle.Render("No source documents matched."))
		return
	}
	cmd.Println(headingStyle.Render("Sources:"))
	for _, src := range answer.Sources {
		cmd.Printf("  - %s\n", sourceStyle.Render(src))
	}
}

// parseFilters turns repeated --filter values into a filter map. Each
// value is "key=value" or "key eq value"; quotes around the value are
// dropped.
func parseFilters(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	filter := make(map[string]string, len(values))
	for _, raw := range values {
		key, value, ok := strings.Cut(raw, "=")
		if !ok {
			key, value, ok = strings.Cut(raw, " eq ")
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `'"`)
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("%w: filter %q must look like key=value", domain.ErrInvalidInput, raw)
		}
		if !domain.IsFilterable(key) {
			return nil, fmt.Errorf("%w: cannot filter on %q (use %s or %s)",
				domain.ErrInvalidInput, key, domain.FilterSource, domain.FilterDocumentType)
		}
		filter[key] = value
	}
	return filter, nil
}
