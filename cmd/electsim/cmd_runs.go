package main

import (
	"encoding/json"
	"fmt"

	"github.com/nvandessel/electsim/internal/report"
	"github.com/nvandessel/electsim/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage stored runs",
		Long: `List, show and delete runs stored in the run database
(~/.electsim/runs.db, or storage.path).

Examples:
  electsim runs list
  electsim runs list --name baseline --limit 5
  electsim runs show <id>
  electsim runs delete <id>`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
	)

	return cmd
}

// withRunStore opens the run database for the duration of fn.
func withRunStore(cmd *cobra.Command, fn func(store.RunStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := openRunStore(cfg, true)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")
			name, _ := cmd.Flags().GetString("name")

			return withRunStore(cmd, func(s store.RunStore) error {
				runs, err := s.ListRuns(cmd.Context(), store.ListOptions{Limit: limit, Name: name})
				if err != nil {
					return fmt.Errorf("listing runs: %w", err)
				}
				if jsonOut {
					if runs == nil {
						runs = []store.RunSummary{}
					}
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"runs":  runs,
						"count": len(runs),
					})
				}
				return report.WriteRunList(cmd.OutOrStdout(), runs)
			})
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 = all)")
	cmd.Flags().String("name", "", "Only list runs with this label")

	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withRunStore(cmd, func(s store.RunStore) error {
				run, err := s.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rep := report.FromRun(run)
				if jsonOut {
					return report.WriteJSON(cmd.OutOrStdout(), rep)
				}
				return report.WriteRun(cmd.OutOrStdout(), rep)
			})
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withRunStore(cmd, func(s store.RunStore) error {
				if err := s.DeleteRun(cmd.Context(), args[0]); err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
						"status": "deleted",
						"id":     args[0],
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
				return nil
			})
		},
	}
}
