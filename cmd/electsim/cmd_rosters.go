package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/nvandessel/electsim/internal/report"
	"github.com/nvandessel/electsim/internal/roster"
	"github.com/spf13/cobra"
)

func newRostersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rosters [name]",
		Short: "List built-in party rosters",
		Long: `List the built-in party rosters, or show the parties of one roster with
their left-right position and real election result.

Examples:
  electsim rosters
  electsim rosters nl2023`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				var rosters []*roster.Roster
				for _, name := range roster.Names() {
					r, err := roster.Lookup(name)
					if err != nil {
						return err
					}
					rosters = append(rosters, r)
				}
				if jsonOut {
					return json.NewEncoder(out).Encode(rosters)
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tPARTIES\tVOTES\tTITLE")
				for _, r := range rosters {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.Name, len(r.Parties), humanize.Comma(r.TotalVotes()), r.Title)
				}
				return tw.Flush()
			}

			r, err := roster.Lookup(args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(out).Encode(r)
			}

			fmt.Fprintf(out, "%s (%s)\nSource: %s\n\n", r.Title, r.Name, r.Source)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "PARTY\tLEFT-RIGHT\tVOTES\tSHARE\t")
			shares := r.ReferenceShares()
			for i, p := range r.Parties {
				fmt.Fprintf(tw, "%s\t%.1f\t%s\t%s%%\t\n", p.Name, p.LeftRight, humanize.Comma(p.Votes),
					report.PercentOf(shares[i]).StringFixed(report.ShareDecimals))
			}
			return tw.Flush()
		},
	}
}
