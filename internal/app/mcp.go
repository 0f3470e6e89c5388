package app

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pluginwatch/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the dashboard queries as MCP tools over stdio",
	Long: `Start a Model Context Protocol stdio server over the local event store.
The server exposes these tools:

  get_summary            Headline KPIs, top tools and actions, events per day
  get_tool_usage         Per-tool events, clicks, sessions and users
  get_sessions           Most recent sessions
  get_recent_events      Latest events with resolved action metadata
  get_feature_analytics  Palette, favorites, import/export and PDF settings
  get_action_catalog     Every action key seen with its classification
  classify_action        Label, category and signal for an action key

Register it with an MCP client, for example:
  {"mcpServers":{"pluginwatch":{"command":"pluginwatch","args":["mcp"]}}}`,
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
	svc, err := openService(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	srv := mcp.NewServer(svc.Service, appVersion)
	return srv.Run(cmd.Context(), os.Stdin, os.Stdout)
}
