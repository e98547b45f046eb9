package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
)

const notSet = "(not set)"

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the Azure OpenAI deployments, the vector index, blob
storage and the chunking and retrieval tunables.

Settings are read from the settings file, then overridden by KB_* and
AZURE_* environment variables (a .env file in the working directory is
loaded first). Use subcommands to change a single value or run the
interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set a single setting by its dotted key, for example:

  kb settings set rag.top_k 8
  kb settings set index.provider qdrant

Run 'kb settings keys' to list every key.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure all settings step by step.`,
	Args:  cobra.NoArgs,
	RunE:  runSettingsWizard,
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check connectivity to every configured service",
	Long: `Ping the embedding deployment, the chat deployment, the vector index
and blob storage with the current settings. Services that are not
configured are reported as skipped.`,
	Args: cobra.NoArgs,
	RunE: runSettingsCheck,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsCheckCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	svc, err := requireSettings()
	if err != nil {
		return err
	}

	settings, err := svc.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Azure OpenAI]")
	cmd.Printf("  Endpoint: %s\n", orNotSet(settings.OpenAI.Endpoint))
	cmd.Printf("  API Key: %s\n", maskSecret(settings.OpenAI.APIKey))
	cmd.Printf("  API Version: %s\n", settings.OpenAI.APIVersion)
	cmd.Printf("  Chat Deployment: %s\n", settings.OpenAI.ChatDeployment)
	cmd.Printf("  Embedding Deployment: %s\n", settings.OpenAI.EmbeddingDeployment)
	if settings.OpenAI.RequestsPerMinute > 0 {
		cmd.Printf("  Requests Per Minute: %d\n", settings.OpenAI.RequestsPerMinute)
	}
	cmd.Printf("  Status: %s\n", configuredStatus(settings.OpenAI.IsConfigured()))
	cmd.Println()

	cmd.Println("[Vector Index]")
	cmd.Printf("  Provider: %s\n", settings.Index.Provider.Description())
	cmd.Printf("  Name: %s\n", settings.Index.Name)
	switch settings.Index.Provider {
	case domain.IndexProviderAzure:
		cmd.Printf("  Endpoint: %s\n", orNotSet(settings.Index.Endpoint))
		cmd.Printf("  API Key: %s\n", maskSecret(settings.Index.APIKey))
		cmd.Printf("  API Version: %s\n", settings.Index.APIVersion)
	case domain.IndexProviderQdrant:
		cmd.Printf("  Host: %s:%d\n", orNotSet(settings.Index.QdrantHost), settings.Index.QdrantPort)
		if settings.Index.QdrantAPIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Index.QdrantAPIKey))
		}
		cmd.Printf("  TLS: %t\n", settings.Index.QdrantTLS)
	case domain.IndexProviderMemory:
		cmd.Println("  Records are kept for the lifetime of the process only.")
	}
	cmd.Printf("  Status: %s\n", configuredStatus(settings.Index.IsConfigured()))
	cmd.Println()

	cmd.Println("[Blob Storage]")
	cmd.Printf("  Connection String: %s\n", maskSecret(settings.Storage.ConnectionString))
	cmd.Printf("  Container: %s\n", settings.Storage.Container)
	storage := "configured"
	if !settings.Storage.IsConfigured() {
		storage = "not configured (originals are not uploaded)"
	}
	cmd.Printf("  Status: %s\n", storage)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Chunk Size: %d\n", settings.RAG.ChunkSize)
	cmd.Printf("  Chunk Overlap: %d\n", settings.RAG.ChunkOverlap)
	cmd.Printf("  Dimensions: %d\n", settings.RAG.Dimensions)
	cmd.Printf("  Top K: %d\n", settings.RAG.TopK)
	cmd.Printf("  Similarity Threshold: %g\n", settings.RAG.SimilarityThreshold)
	cmd.Printf("  Temperature: %g\n", settings.RAG.Temperature)
	cmd.Printf("  Max Tokens: %d\n", settings.RAG.MaxTokens)
	cmd.Println()

	if settings.Telemetry.OTLPEndpoint != "" {
		cmd.Println("[Telemetry]")
		cmd.Printf("  OTLP Endpoint: %s\n", settings.Telemetry.OTLPEndpoint)
		cmd.Printf("  Sample Rate: %g\n", settings.Telemetry.SampleRate)
		cmd.Println()
	}

	if err := svc.ValidateForIngest(settings); err != nil {
		cmd.Println(warningStyle.Render(fmt.Sprintf("Warning: %v", err)))
		cmd.Println("Run 'kb settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}
	if path := svc.Path(); path != "" {
		cmd.Printf("Settings file: %s\n", path)
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	svc, err := requireSettings()
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	if err := svc.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	shown := value
	if isSecretKey(key) {
		shown = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, shown)
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	svc, err := requireSettings()
	if err != nil {
		return err
	}
	for _, key := range svc.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runSettingsCheck(cmd *cobra.Command, _ []string) error {
	svc, err := requireSettings()
	if err != nil {
		return err
	}

	checks, err := svc.Check(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to check services: %w", err)
	}

	failed := 0
	for _, c := range checks {
		switch {
		case c.Skipped:
			cmd.Printf("  %s %s: skipped (not configured)\n", mutedStyle.Render("-"), c.Service)
		case c.Healthy():
			cmd.Printf("  %s %s (%s)\n", successStyle.Render("✓"), c.Service, c.Target)
		default:
			failed++
			cmd.Printf("  %s %s (%s): %v\n", failureStyle.Render("✗"), c.Service, c.Target, c.Err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d service check(s) failed", failed)
	}
	cmd.Println()
	cmd.Println(successStyle.Render("All configured services are reachable."))
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	svc, err := requireSettings()
	if err != nil {
		return err
	}

	current, err := svc.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("kb Settings Wizard")
	cmd.Println("==================")
	cmd.Println("Press Enter to keep the value shown in brackets.")
	cmd.Println()

	w := &wizard{cmd: cmd, svc: svc, reader: bufio.NewReader(cmd.InOrStdin())}

	// Step 1: Azure OpenAI
	cmd.Println("Step 1: Azure OpenAI")
	cmd.Println("--------------------")
	w.ask("openai.endpoint", "Endpoint", current.OpenAI.Endpoint)
	w.askSecret("openai.api_key", "API key", current.OpenAI.APIKey)
	w.ask("openai.chat_deployment", "Chat deployment", current.OpenAI.ChatDeployment)
	embedding := w.ask("openai.embedding_deployment", "Embedding deployment", current.OpenAI.EmbeddingDeployment)
	if dims, ok := domain.EmbeddingDimensions()[embedding]; ok && dims != current.RAG.Dimensions {
		w.set("rag.dimensions", strconv.Itoa(dims))
		cmd.Printf("Embedding dimensions set to %d for %s\n", dims, embedding)
	}
	cmd.Println()

	// Step 2: Vector index
	cmd.Println("Step 2: Vector Index")
	cmd.Println("--------------------")
	providers := domain.AllIndexProviders()
	defaultChoice := 1
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
		if p == current.Index.Provider {
			defaultChoice = i + 1
		}
	}
	cmd.Printf("\nEnter choice [%d]: ", defaultChoice)
	provider := providers[parseChoice(w.readLine(), len(providers), defaultChoice)-1]
	w.set("index.provider", provider.String())
	w.ask("index.name", "Index name", current.Index.Name)
	switch provider {
	case domain.IndexProviderAzure:
		w.ask("index.endpoint", "Search endpoint", current.Index.Endpoint)
		w.askSecret("index.api_key", "Search admin key", current.Index.APIKey)
	case domain.IndexProviderQdrant:
		w.askOr("index.qdrant_host", "Qdrant host", current.Index.QdrantHost, "localhost")
		w.ask("index.qdrant_port", "Qdrant port", strconv.Itoa(current.Index.QdrantPort))
		w.askSecret("index.qdrant_api_key", "Qdrant API key (optional)", current.Index.QdrantAPIKey)
	case domain.IndexProviderMemory:
		cmd.Println("The in-memory index is empty each time kb starts.")
	}
	cmd.Println()

	// Step 3: Blob storage
	cmd.Println("Step 3: Blob Storage (optional)")
	cmd.Println("-------------------------------")
	w.askSecret("storage.connection_string", "Connection string", current.Storage.ConnectionString)
	w.ask("storage.container", "Container", current.Storage.Container)
	cmd.Println()

	// Step 4: Retrieval
	cmd.Println("Step 4: Chunking and Retrieval")
	cmd.Println("------------------------------")
	w.ask("rag.chunk_size", "Chunk size", strconv.Itoa(current.RAG.ChunkSize))
	w.ask("rag.chunk_overlap", "Chunk overlap", strconv.Itoa(current.RAG.ChunkOverlap))
	w.ask("rag.top_k", "Top K", strconv.Itoa(current.RAG.TopK))
	cmd.Println()

	if w.err != nil {
		return fmt.Errorf("failed to save settings: %w", w.err)
	}

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	updated, err := svc.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if err := svc.ValidateForIngest(updated); err != nil {
		cmd.Println(warningStyle.Render(fmt.Sprintf("Warning: %v", err)))
	} else {
		cmd.Println("All settings are valid and saved.")
	}
	cmd.Println("Run 'kb settings check' to test connectivity.")

	return nil
}

// wizard prompts for values and saves each answer that differs from the
// current one. The first save failure stops further saves.
type wizard struct {
	cmd    *cobra.Command
	svc    driving.SettingsService
	reader *bufio.Reader
	err    error
}

func (w *wizard) ask(key, label, current string) string {
	w.cmd.Printf("%s [%s]: ", label, current)
	value := w.readLine()
	if value == "" || value == current {
		return current
	}
	w.set(key, value)
	return value
}

// askOr is ask with a suggested value that is saved when nothing is
// stored yet and the answer is empty.
func (w *wizard) askOr(key, label, current, suggested string) string {
	if current != "" {
		return w.ask(key, label, current)
	}
	value := w.ask(key, label, suggested)
	if value == suggested {
		w.set(key, suggested)
	}
	return value
}

func (w *wizard) askSecret(key, label, current string) {
	w.cmd.Printf("%s [%s]: ", label, maskSecret(current))
	value := readSecret(w.cmd.InOrStdin(), w.reader)
	w.cmd.Println()
	if value == "" || value == current {
		return
	}
	w.set(key, value)
}

func (w *wizard) set(key, value string) {
	if w.err != nil {
		return
	}
	if err := w.svc.Set(key, value); err != nil {
		w.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (w *wizard) readLine() string {
	return readLine(w.reader)
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readSecret reads a value without echo when in is a terminal, and falls
// back to a plain line read otherwise.
func readSecret(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func maskSecret(value string) string {
	if value == "" {
		return notSet
	}
	return maskAPIKey(value)
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "connection_string")
}

func orNotSet(value string) string {
	return orDefault(value, notSet)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
