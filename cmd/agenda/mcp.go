package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperengineering/agenda"
	agendamcp "github.com/hyperengineering/agenda/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for coding agent integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio.

This lets agents bookmark sessions, take notes and check schedules for
conflicts through agenda tools.

Example client configuration:

  {
    "mcpServers": {
      "agenda": {
        "command": "agenda",
        "args": ["mcp"],
        "env": {
          "AGENDA_OWNER": "alice@example.com",
          "AGENDA_SERVER_URL": "https://agenda.example.com",
          "AGENDA_API_KEY": "..."
        }
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// The server is long-lived, so keep uploading in the background.
	cfg.AutoSync = !cfg.IsOffline()

	client, err := agenda.New(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return agendamcp.NewServer(client).Run()
}
