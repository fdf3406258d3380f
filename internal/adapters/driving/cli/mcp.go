package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can upload
screenshots and inspect projects and upload history.

By default, the server communicates over stdio using JSON-RPC. Use --port
to serve streamable HTTP instead, for the MCP Inspector or remote access.

Sign in with 'viewshot login' first; the server uses the stored session.

Examples:
  # Stdio mode (default)
  viewshot mcp serve

  # HTTP mode
  viewshot mcp serve --port 8080

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "viewshot": {
        "command": "/path/to/viewshot",
        "args": ["mcp", "serve"]
      }
    }
  }`,
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

	ports := &mcp.Ports{
		Auth:             authService,
		Uploads:          uploadService,
		Projects:         projectService,
		DefaultProjectID: clientConfig.DefaultProjectID,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stopScheduler := startScheduler(ctx)
	defer stopScheduler()

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		// stdout is reserved for the stdio transport.
		cmd.PrintErrf("MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
