package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/rabbitsim/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve rabbitsim tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools: rabbitsim_simulate, rabbitsim_batches, rabbitsim_batch, rabbitsim_export.
Tool calls are rate limited and recorded in <root>/.rabbitsim/audit.jsonl.
Logs go to stderr and the configured log file; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := settings.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger, closer := newLogger(cmd, settings)
			defer closer.Close()

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "rabbitsim",
				Version:  version,
				Root:     root,
				Settings: settings,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			return server.Run(cmd.Context())
		},
	}
}
