package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kb-cli/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can ask
questions of the knowledge base.

The server exposes the ask, retrieve and list_documents tools and the
kb://documents resources.

By default, the server communicates over stdio using JSON-RPC. Use --port
to start an HTTP server instead, which is useful with MCP Inspector.

Examples:
  # Stdio mode (default, for desktop assistants)
  kb mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  kb mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "kb": {
        "command": "/path/to/kb",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	svc, err := requireQuery()
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Query:    svc,
		Document: documentService,
	})
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
