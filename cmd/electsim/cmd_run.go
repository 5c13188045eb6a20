package main

import (
	"github.com/nvandessel/electsim/internal/report"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation and print the results",
		Long: `Build a network from the configured parameters, seed previous votes and
hold the configured number of elections.

Flags override ~/.electsim/config.yaml and ELECTSIM_* environment variables.

Examples:
  electsim run                                  # Defaults: 1000 agents, two parties
  electsim run --roster nl2023 --rounds 5       # Dutch 2023 parties
  electsim run --system two-round --parties A,B,C --seed 7
  electsim run --save --name baseline           # Store the run in ~/.electsim/runs.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			save, _ := cmd.Flags().GetBool("save")

			env, err := newSimEnv(cmd, save)
			if err != nil {
				return err
			}
			defer env.Close()

			stop, err := startProfile(cmd)
			if err != nil {
				return err
			}
			defer stop()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			res, err := env.runner.Run(ctx, env.scenario)
			if err != nil {
				return err
			}

			rep := report.NewRunReport(res)
			if jsonOut {
				return report.WriteJSON(cmd.OutOrStdout(), rep)
			}
			return report.WriteRun(cmd.OutOrStdout(), rep)
		},
	}

	addScenarioFlags(cmd)
	addProfileFlags(cmd)
	cmd.Flags().Bool("save", false, "Store the run even if storage is disabled")

	return cmd
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Repeat a simulation over consecutive seeds and aggregate",
		Long: `Run the same scenario with seeds seed, seed+1, ... and report how often
each party won the final election and its mean vote share.

Examples:
  electsim batch --runs 50
  electsim batch --runs 20 --roster nl2025 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			save, _ := cmd.Flags().GetBool("save")
			runs, _ := cmd.Flags().GetInt("runs")

			env, err := newSimEnv(cmd, save)
			if err != nil {
				return err
			}
			defer env.Close()

			stop, err := startProfile(cmd)
			if err != nil {
				return err
			}
			defer stop()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			batch, err := env.runner.Batch(ctx, env.scenario, runs)
			if err != nil {
				return err
			}

			rep := report.NewBatchReport(batch)
			if jsonOut {
				return report.WriteJSON(cmd.OutOrStdout(), rep)
			}
			return report.WriteBatch(cmd.OutOrStdout(), rep)
		},
	}

	addScenarioFlags(cmd)
	addProfileFlags(cmd)
	cmd.Flags().Int("runs", 10, "Number of runs")
	cmd.Flags().Bool("save", false, "Store every run even if storage is disabled")

	return cmd
}
