package main

import (
	"fmt"

	"github.com/nvandessel/electsim/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve electsim tools over MCP on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
electsim_run, electsim_network and electsim_runs tools.

Tool calls use the loaded configuration as defaults. Runs are stored in the
run database when storage is enabled, otherwise in memory for the session.
Every tool call is recorded in ~/.electsim/audit.jsonl (or logging.dir).

Example client configuration:
  {"command": "electsim", "args": ["mcp-server"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			runStore, err := openRunStore(cfg, false)
			if err != nil {
				return err
			}

			// stdout carries the protocol, so logs go to stderr.
			logger, decisions := newLoggers(cmd, cfg)
			defer decisions.Close()

			server, err := mcp.NewServer(&mcp.Config{
				Name:      "electsim",
				Version:   version,
				Store:     runStore,
				Defaults:  cfg,
				AuditDir:  cfg.LogDir(),
				Logger:    logger,
				Decisions: decisions,
			})
			if err != nil {
				if runStore != nil {
					runStore.Close()
				}
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return server.Run(cmd.Context())
		},
	}
}
