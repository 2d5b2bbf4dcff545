package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/playbookhq/engine/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run an MCP server exposing tag inference and reflection as tools",
		Long: `mcp-server serves the playbook_infer_tags and playbook_reflect tools
over stdio via the Model Context Protocol, so a host assistant that speaks
MCP can drive reflection directly instead of shelling out to playbookctl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			a, err := buildApp(context.Background(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := mcp.NewServer(&mcp.Config{
				Name:    "playbookctl",
				Version: version,
			}, a.client, a.handlers)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
}
