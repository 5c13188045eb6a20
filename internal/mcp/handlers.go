package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/electsim/internal/network"
	"github.com/nvandessel/electsim/internal/party"
	"github.com/nvandessel/electsim/internal/report"
	"github.com/nvandessel/electsim/internal/roster"
	"github.com/nvandessel/electsim/internal/simulation"
	"github.com/nvandessel/electsim/internal/store"
	"github.com/nvandessel/electsim/internal/visualization"
)

// DefaultListLimit caps electsim_runs listings when no limit is given.
const DefaultListLimit = 20

// MaxBatchRuns caps the number of runs a single electsim_run call may request.
const MaxBatchRuns = 1000

const (
	rostersURI = "electsim://rosters"
	runsPrefix = "electsim://runs/"
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "electsim_run",
		Description: "Simulate repeated elections on a small-world friendship network and report the results",
	}, s.handleRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "electsim_network",
		Description: "Build a Watts-Strogatz network without voting and report its small-world statistics",
	}, s.handleNetwork)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "electsim_runs",
		Description: "List, show or delete stored simulation runs",
	}, s.handleRuns)
}

// registerResources registers the roster catalog and stored run reports.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         rostersURI,
		Name:        "electsim-rosters",
		Description: "Built-in party rosters with positions and real election results.",
		MIMEType:    "text/markdown",
	}, s.handleRostersResource)

	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: runsPrefix + "{id}",
		Name:        "electsim-run",
		Description: "Text report of a stored run.",
		MIMEType:    "text/plain",
	}, s.handleRunResource)
}

// handleRun implements the electsim_run tool.
func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (_ *sdk.CallToolResult, _ RunOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("electsim_run", start, retErr, sanitizeToolParams(map[string]any{
			"name":        args.Name,
			"seed":        args.Seed,
			"agents":      args.Agents,
			"mean_degree": args.MeanDegree,
			"beta":        args.Beta,
			"dimensions":  args.Dimensions,
			"system":      args.System,
			"rounds":      args.Rounds,
			"roster":      args.Roster,
			"parties":     args.Parties,
			"new_voters":  args.NewVoters,
			"runs":        args.Runs,
		}))
	}()

	if args.Runs < 0 || args.Runs > MaxBatchRuns {
		return nil, RunOutput{}, fmt.Errorf("runs must be between 0 and %d (0 and 1 both mean a single run), got %d", MaxBatchRuns, args.Runs)
	}

	sc, err := s.scenario(args)
	if err != nil {
		return nil, RunOutput{}, err
	}

	if args.Runs > 1 {
		batch, err := s.runner.Batch(ctx, sc, args.Runs)
		if err != nil {
			return nil, RunOutput{}, fmt.Errorf("batch failed: %w", err)
		}
		return nil, batchOutput(report.NewBatchReport(batch), batch.RunIDs), nil
	}

	res, err := s.runner.Run(ctx, sc)
	if err != nil {
		return nil, RunOutput{}, fmt.Errorf("run failed: %w", err)
	}
	return nil, runOutput(report.NewRunReport(res)), nil
}

// scenario overlays tool arguments on the server defaults.
func (s *Server) scenario(args RunInput) (simulation.Scenario, error) {
	sc, err := simulation.FromConfig(s.defaults)
	if err != nil {
		return simulation.Scenario{}, err
	}

	if args.Seed != nil {
		sc.Seed = *args.Seed
	}
	if args.Agents != nil {
		sc.Network.Nodes = *args.Agents
	}
	if args.MeanDegree != nil {
		sc.Network.MeanDegree = *args.MeanDegree
	}
	if args.Beta != nil {
		sc.Network.Beta = *args.Beta
	}
	if args.Dimensions != nil {
		sc.Network.Dimensions = *args.Dimensions
	}
	if args.System != "" {
		system, err := network.ParseVotingSystem(args.System)
		if err != nil {
			return simulation.Scenario{}, err
		}
		sc.System = system
	}
	if args.Rounds != nil {
		sc.Rounds = *args.Rounds
	}
	if args.NewVoters != nil {
		sc.NewVoters = *args.NewVoters
	}

	switch {
	case args.Roster != "" && len(args.Parties) > 0:
		return simulation.Scenario{}, errors.New("roster and parties are mutually exclusive")
	case args.Roster != "":
		sc.Roster, sc.Parties, sc.PartyNames, sc.PartyCount = strings.ToLower(args.Roster), nil, nil, 0
		sc.Name = sc.Roster
	case len(args.Parties) > 0:
		sc.Roster, sc.Parties, sc.PartyNames, sc.PartyCount = "", nil, args.Parties, 0
		sc.Name = ""
	}
	if args.Name != "" {
		sc.Name = args.Name
	}

	return sc, nil
}

func runOutput(rep report.RunReport) RunOutput {
	out := RunOutput{
		ID:       rep.ID,
		Name:     rep.Name,
		Seed:     rep.Seed,
		System:   rep.System,
		Agents:   rep.Network.Nodes,
		Winner:   rep.Winner,
		RunnerUp: rep.RunnerUp,
		Stats:    rep.Stats,
	}
	for _, row := range rep.Parties {
		share := PartyShare{
			Party:       row.Party,
			Votes:       row.Votes,
			Share:       row.Share.StringFixed(report.ShareDecimals),
			RunoffVotes: row.RunoffVotes,
		}
		if row.Reference != nil {
			share.Reference = row.Reference.StringFixed(report.ShareDecimals)
		}
		out.Parties = append(out.Parties, share)
	}
	for _, e := range rep.Elections {
		out.Elections = append(out.Elections, ElectionSummary{
			Round:       e.Round,
			Winner:      e.Winner,
			WinnerShare: e.WinnerShare.StringFixed(report.ShareDecimals),
		})
	}

	switch {
	case len(rep.Elections) == 0:
		out.Message = fmt.Sprintf("Run %s held no elections", rep.ID)
	case len(out.Parties) > 0:
		out.Message = fmt.Sprintf("%s won round %d with %s%% of %d votes",
			rep.Winner, len(rep.Elections), out.Parties[0].Share, rep.Network.Nodes)
		if out.Parties[0].Party != rep.Winner {
			out.Message = fmt.Sprintf("%s won the round %d runoff", rep.Winner, len(rep.Elections))
		}
	default:
		out.Message = fmt.Sprintf("%s won round %d", rep.Winner, len(rep.Elections))
	}
	return out
}

func batchOutput(rep report.BatchReport, runIDs []string) RunOutput {
	summary := &BatchSummary{
		Runs:     rep.Runs,
		LastSeed: rep.LastSeed,
		Parties:  make([]BatchShare, 0, len(rep.Rows)),
		RunIDs:   runIDs,
	}
	best := -1
	for i, row := range rep.Rows {
		share := BatchShare{
			Party:     row.Party,
			Wins:      row.Wins,
			WinRate:   row.WinRate.StringFixed(report.ShareDecimals),
			MeanShare: row.MeanShare.StringFixed(report.ShareDecimals),
			StdDev:    row.StdDev.StringFixed(report.ShareDecimals),
		}
		if row.Reference != nil {
			share.Reference = row.Reference.StringFixed(report.ShareDecimals)
		}
		summary.Parties = append(summary.Parties, share)
		if best < 0 || row.Wins > rep.Rows[best].Wins {
			best = i
		}
	}

	out := RunOutput{
		Name:   rep.Name,
		Seed:   rep.FirstSeed,
		System: rep.System,
		Agents: rep.Agents,
		Batch:  summary,
	}
	out.Message = fmt.Sprintf("Batch of %d runs (seeds %d..%d)", rep.Runs, rep.FirstSeed, rep.LastSeed)
	if best >= 0 {
		out.Winner = rep.Rows[best].Party
		out.Message += fmt.Sprintf(": %s won %d", out.Winner, rep.Rows[best].Wins)
	}
	return out
}

// handleNetwork implements the electsim_network tool.
func (s *Server) handleNetwork(ctx context.Context, req *sdk.CallToolRequest, args NetworkInput) (_ *sdk.CallToolResult, _ NetworkOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("electsim_network", start, retErr, sanitizeToolParams(map[string]any{
			"seed":        args.Seed,
			"agents":      args.Agents,
			"mean_degree": args.MeanDegree,
			"beta":        args.Beta,
			"dimensions":  args.Dimensions,
			"sources":     args.Sources,
			"format":      args.Format,
		}))
	}()

	cfg := s.defaults.Network
	if args.Agents != nil {
		cfg.Nodes = *args.Agents
	}
	if args.MeanDegree != nil {
		cfg.MeanDegree = *args.MeanDegree
	}
	if args.Beta != nil {
		cfg.Beta = *args.Beta
	}
	if args.Dimensions != nil {
		cfg.Dimensions = *args.Dimensions
	}
	seed := s.defaults.Election.Seed
	if args.Seed != nil {
		seed = *args.Seed
	}
	sources := simulation.DefaultStatsSources
	if args.Sources != nil {
		sources = *args.Sources
	}

	var format visualization.Format
	if args.Format != "" {
		f, err := visualization.ParseFormat(args.Format)
		if err != nil {
			return nil, NetworkOutput{}, err
		}
		format = f
	}

	net, err := network.NewWattsStrogatz(rand.New(rand.NewPCG(seed, seed)), cfg)
	if err != nil {
		return nil, NetworkOutput{}, fmt.Errorf("building network: %w", err)
	}
	out := NetworkOutput{Config: cfg, Stats: net.Stats(sources)}

	if format != "" {
		// Nobody has voted yet, so every agent renders without a party.
		none, err := party.NewRegistry(0, nil, nil)
		if err != nil {
			return nil, NetworkOutput{}, err
		}
		switch format {
		case visualization.FormatDOT:
			out.DOT = visualization.RenderDOT(net, none, nil)
		case visualization.FormatJSON:
			graph := visualization.RenderJSON(net, none, nil)
			out.Graph = &graph
		}
	}
	return nil, out, nil
}

// handleRuns implements the electsim_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("electsim_runs", start, retErr, sanitizeToolParams(map[string]any{
			"id":     args.ID,
			"name":   args.Name,
			"limit":  args.Limit,
			"delete": args.Delete,
		}))
	}()

	if args.Delete {
		if args.ID == "" {
			return nil, RunsOutput{}, errors.New("id is required to delete a run")
		}
		if err := s.store.DeleteRun(ctx, args.ID); err != nil {
			return nil, RunsOutput{}, err
		}
		return nil, RunsOutput{Message: fmt.Sprintf("Deleted run %s", args.ID)}, nil
	}

	if args.ID != "" {
		run, err := s.store.GetRun(ctx, args.ID)
		if err != nil {
			return nil, RunsOutput{}, err
		}
		detail := runOutput(report.FromRun(run))
		return nil, RunsOutput{Run: &detail, Count: 1, Message: detail.Message}, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	summaries, err := s.store.ListRuns(ctx, store.ListOptions{Limit: limit, Name: args.Name})
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("listing runs: %w", err)
	}

	out := RunsOutput{Count: len(summaries)}
	for _, r := range summaries {
		out.Runs = append(out.Runs, RunListItem{
			ID:        r.ID,
			Name:      r.Name,
			Seed:      r.Seed,
			System:    r.System,
			Agents:    r.Agents,
			Rounds:    r.Rounds,
			Winner:    r.WinnerName,
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	if len(summaries) == 0 {
		out.Message = "No runs stored. Run a simulation with electsim_run first."
	} else {
		out.Message = fmt.Sprintf("%d stored runs", len(summaries))
	}
	return nil, out, nil
}

// handleRostersResource lists the built-in rosters as markdown.
func (s *Server) handleRostersResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	var sb strings.Builder
	sb.WriteString("# Party Rosters\n")
	for _, name := range roster.Names() {
		r, err := roster.Lookup(name)
		if err != nil {
			return nil, err
		}
		sb.WriteString(fmt.Sprintf("\n## %s\n\n%s (%s)\n\n", r.Name, r.Title, r.Source))
		sb.WriteString("| Party | Left-right | Actual share |\n| --- | --- | --- |\n")
		shares := r.ReferenceShares()
		for i, p := range r.Parties {
			sb.WriteString(fmt.Sprintf("| %s | %.1f | %s%% |\n",
				p.Name, p.LeftRight, report.PercentOf(shares[i]).StringFixed(report.ShareDecimals)))
		}
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      rostersURI,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

// handleRunResource renders a stored run as a text report.
// URI format: electsim://runs/{id}
func (s *Server) handleRunResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, runsPrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, runsPrefix)
	if id == "" {
		return nil, errors.New("run ID is required")
	}

	run, err := s.store.GetRun(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, sdk.ResourceNotFoundError(uri)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := report.WriteRun(&buf, report.FromRun(run)); err != nil {
		return nil, err
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "text/plain",
				Text:     buf.String(),
			},
		},
	}, nil
}
