package main

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/nvandessel/electsim/internal/network"
	"github.com/nvandessel/electsim/internal/report"
	"github.com/nvandessel/electsim/internal/roster"
	"github.com/nvandessel/electsim/internal/simulation"
	"github.com/nvandessel/electsim/internal/visualization"
	"github.com/spf13/cobra"
)

func newNetworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Build a network and print its small-world statistics",
		Long: `Build the Watts-Strogatz network for the configured parameters without
holding an election, and report degree, clustering and mean path length.

Examples:
  electsim network --agents 2000 --mean-degree 10 --beta 0.1
  electsim network --beta 0 --sources 0          # Exact paths on the ring lattice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			sources, _ := cmd.Flags().GetInt("sources")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			seed := cfg.Election.Seed
			net, err := network.NewWattsStrogatz(rand.New(rand.NewPCG(seed, seed)), cfg.Network)
			if err != nil {
				return err
			}
			stats := net.Stats(sources)

			if jsonOut {
				return report.WriteJSON(cmd.OutOrStdout(), map[string]any{
					"config": cfg.Network,
					"seed":   seed,
					"stats":  stats,
				})
			}
			report.WriteStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	addNetworkFlags(cmd)
	cmd.Flags().Int("sources", simulation.DefaultStatsSources, "Nodes to measure shortest paths from (0 = all)")

	return cmd
}

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Run a simulation and render the network colored by vote",
		Long: `Run the configured scenario and render the final network, each agent
filled with the color of the party it last voted for.

Supported formats:
  dot   Graphviz DOT (pipe to "neato -Tsvg" for an image)
  json  Nodes and edges arrays

Examples:
  electsim graph --agents 200 --mean-degree 6 | neato -Tsvg > net.svg
  electsim graph --roster nl2023 --format json -o net.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			format, err := visualization.ParseFormat(formatName)
			if err != nil {
				return err
			}

			env, err := newSimEnv(cmd, false)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			res, err := env.runner.Run(ctx, env.scenario)
			if err != nil {
				return err
			}

			var colors map[string]string
			if env.scenario.Roster != "" {
				if r, err := roster.Lookup(env.scenario.Roster); err == nil {
					colors = r.Colors()
				}
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			switch format {
			case visualization.FormatJSON:
				err = report.WriteJSON(w, visualization.RenderJSON(res.Network, res.Registry, colors))
			default:
				_, err = fmt.Fprint(w, visualization.RenderDOT(res.Network, res.Registry, colors))
			}
			if err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			}
			return nil
		},
	}

	addScenarioFlags(cmd)
	cmd.Flags().StringP("format", "f", "dot", "Output format: dot or json")
	cmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	return cmd
}
