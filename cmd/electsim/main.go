package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "electsim",
		Short: "Election simulation on small-world social networks",
		Long: `electsim simulates repeated elections among agents connected by a
Watts-Strogatz friendship network.

Each agent votes by weighing ideological distance to every party, its own
previous vote, what its friends voted, and party attractiveness. Elections
run under first-past-the-post or two-round rules.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Extra config file applied over ~/.electsim/config.yaml")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: error, warn, info, debug or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newBatchCmd(),
		newNetworkCmd(),
		newGraphCmd(),
		newRunsCmd(),
		newRostersCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}
