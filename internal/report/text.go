package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nvandessel/electsim/internal/network"
	"github.com/nvandessel/electsim/internal/store"
	"github.com/shopspring/decimal"
)

// WriteRun prints a run report as aligned text.
func WriteRun(w io.Writer, rep RunReport) error {
	title := "Run " + rep.ID
	if rep.Name != "" {
		title += " (" + rep.Name + ")"
	}
	fmt.Fprintln(w, title)
	fmt.Fprintf(w, "  System: %s  Seed: %d  Agents: %s  K: %d  Beta: %.2f  Dimensions: %d\n",
		rep.System, rep.Seed, humanize.Comma(int64(rep.Network.Nodes)),
		rep.Network.MeanDegree, rep.Network.Beta, rep.Network.Dimensions)
	if len(rep.Elections) == 0 {
		fmt.Fprintln(w, "  No elections held.")
		return nil
	}
	fmt.Fprintf(w, "  Winner: %s", rep.Winner)
	if rep.RunnerUp != "" {
		fmt.Fprintf(w, "  Runner-up: %s", rep.RunnerUp)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	hasRunoff, hasReference := false, false
	for _, row := range rep.Parties {
		hasRunoff = hasRunoff || row.RunoffVotes != nil
		hasReference = hasReference || row.Reference != nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"PARTY", "VOTES", "SHARE"}
	if hasRunoff {
		header = append(header, "RUNOFF")
	}
	if hasReference {
		header = append(header, "ACTUAL", "DELTA")
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, row := range rep.Parties {
		cells := []string{row.Party, humanize.Comma(int64(row.Votes)), pct(row.Share)}
		if hasRunoff {
			runoff := "-"
			if row.RunoffVotes != nil {
				runoff = humanize.Comma(int64(*row.RunoffVotes))
			}
			cells = append(cells, runoff)
		}
		if hasReference {
			cells = append(cells, optPct(row.Reference), signedPct(row.Delta))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(rep.Elections) > 1 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Elections:")
		for _, e := range rep.Elections {
			fmt.Fprintf(w, "  %3d  %-20s %s\n", e.Round, e.Winner, pct(e.WinnerShare))
		}
	}

	if rep.Stats != nil {
		fmt.Fprintln(w)
		WriteStats(w, *rep.Stats)
	}
	if rep.Duration > 0 {
		fmt.Fprintf(w, "\nCompleted in %s\n", rep.Duration.Round(time.Millisecond))
	}
	return nil
}

// WriteStats prints network statistics.
func WriteStats(w io.Writer, s network.Stats) {
	fmt.Fprintln(w, "Network:")
	fmt.Fprintf(w, "  Nodes: %s  Edges: %s\n", humanize.Comma(int64(s.Nodes)), humanize.Comma(int64(s.Edges)))
	fmt.Fprintf(w, "  Degree: min %d, max %d, mean %.2f (sd %.2f)\n", s.MinDegree, s.MaxDegree, s.MeanDegree, s.DegreeStdDev)
	fmt.Fprintf(w, "  Clustering: %.4f\n", s.Clustering)
	connected := "connected"
	if !s.Connected {
		connected = "disconnected"
	}
	fmt.Fprintf(w, "  Mean path length: %.3f (%d sources, %s)\n", s.MeanPathLength, s.PathSources, connected)
}

// WriteBatch prints a batch report as aligned text.
func WriteBatch(w io.Writer, rep BatchReport) error {
	fmt.Fprintf(w, "Batch of %s runs, seeds %d..%d, %s, %s agents\n\n",
		humanize.Comma(int64(rep.Runs)), rep.FirstSeed, rep.LastSeed, rep.System, humanize.Comma(int64(rep.Agents)))

	hasReference := false
	for _, row := range rep.Rows {
		hasReference = hasReference || row.Reference != nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := "PARTY\tWINS\tWIN RATE\tMEAN SHARE\tSD\t"
	if hasReference {
		header += "ACTUAL\t"
	}
	fmt.Fprintln(tw, header)
	for _, row := range rep.Rows {
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t", row.Party, humanize.Comma(int64(row.Wins)),
			pct(row.WinRate), pct(row.MeanShare), pct(row.StdDev))
		if hasReference {
			line += optPct(row.Reference) + "\t"
		}
		fmt.Fprintln(tw, line)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if rep.Duration > 0 {
		fmt.Fprintf(w, "\nCompleted in %s\n", rep.Duration.Round(time.Millisecond))
	}
	return nil
}

// WriteRunList prints stored run summaries, newest first.
func WriteRunList(w io.Writer, runs []store.RunSummary) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSEED\tSYSTEM\tAGENTS\tROUNDS\tWINNER\tCREATED")
	for _, r := range runs {
		name := r.Name
		if name == "" {
			name = "-"
		}
		winner := r.WinnerName
		if winner == "" {
			winner = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, name, r.Seed, r.System, humanize.Comma(int64(r.Agents)), r.Rounds, winner, humanize.Time(r.CreatedAt))
	}
	return tw.Flush()
}

func pct(d decimal.Decimal) string {
	return d.StringFixed(ShareDecimals) + "%"
}

func optPct(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return pct(*d)
}

func signedPct(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	if d.IsPositive() {
		return "+" + pct(*d)
	}
	return pct(*d)
}
