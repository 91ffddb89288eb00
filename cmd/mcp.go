package cmd

import (
	"context"

	"github.com/huangsam/callstat/internal/iostore"
	"github.com/huangsam/callstat/internal/mcp"
	"github.com/huangsam/callstat/schema"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the callstat MCP server",
	Long:  `Launch an MCP server that allows AI agents to read batch statistics and period summaries via standard tools.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// Logs go to stderr, so stdio stays clean for the protocol.
		return sharedSetup(rootCtx, cmd, args)
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		status := func(ctx context.Context) (schema.StoreStatus, error) {
			return iostore.CollectStatus(ctx, cfg, iostore.Manager)
		}
		return mcp.StartMCPServer(rootCtx, cfg, iostore.Manager, status)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
