package mcp

import (
	"github.com/nvandessel/electsim/internal/network"
	"github.com/nvandessel/electsim/internal/visualization"
)

// RunInput defines the input for the electsim_run tool. Unset fields fall
// back to the server's configured defaults.
type RunInput struct {
	Name       string   `json:"name,omitempty" jsonschema:"Label stored with the run"`
	Seed       *uint64  `json:"seed,omitempty" jsonschema:"Random seed; equal seeds give identical runs"`
	Agents     *int     `json:"agents,omitempty" jsonschema:"Number of agents in the network"`
	MeanDegree *int     `json:"mean_degree,omitempty" jsonschema:"Even mean degree K of the Watts-Strogatz network"`
	Beta       *float64 `json:"beta,omitempty" jsonschema:"Rewiring probability between 0 and 1"`
	Dimensions *int     `json:"dimensions,omitempty" jsonschema:"Dimensions of the ideological space"`
	System     string   `json:"system,omitempty" jsonschema:"Voting system: fptp or two-round"`
	Rounds     *int     `json:"rounds,omitempty" jsonschema:"Number of consecutive elections"`
	Roster     string   `json:"roster,omitempty" jsonschema:"Built-in party roster, e.g. nl2023 or nl2025"`
	Parties    []string `json:"parties,omitempty" jsonschema:"Party names placed at random positions"`
	NewVoters  *float64 `json:"new_voters,omitempty" jsonschema:"Fraction of agents without a previous vote"`
	Runs       int      `json:"runs,omitempty" jsonschema:"Number of runs over consecutive seeds, at most 1000; 0 or 1 runs once and more runs a batch"`
}

// RunOutput defines the output for the electsim_run tool. Batch is set
// instead of the single-run fields when more than one run was requested.
type RunOutput struct {
	ID        string            `json:"id,omitempty" jsonschema:"Run identifier, usable with electsim_runs"`
	Name      string            `json:"name,omitempty" jsonschema:"Run label"`
	Seed      uint64            `json:"seed" jsonschema:"Seed of the run, or the first seed of a batch"`
	System    string            `json:"system" jsonschema:"Voting system used"`
	Agents    int               `json:"agents" jsonschema:"Number of agents"`
	Winner    string            `json:"winner,omitempty" jsonschema:"Winner of the final election"`
	RunnerUp  string            `json:"runner_up,omitempty" jsonschema:"Runner-up of the final election"`
	Parties   []PartyShare      `json:"parties,omitempty" jsonschema:"Final election results, most votes first"`
	Elections []ElectionSummary `json:"elections,omitempty" jsonschema:"Winner of every election in order"`
	Stats     *network.Stats    `json:"stats,omitempty" jsonschema:"Network statistics"`
	Batch     *BatchSummary     `json:"batch,omitempty" jsonschema:"Aggregated batch results"`
	Message   string            `json:"message" jsonschema:"Human-readable summary"`
}

// PartyShare is one party's result in the final election.
type PartyShare struct {
	Party       string `json:"party"`
	Votes       int    `json:"votes"`
	Share       string `json:"share" jsonschema:"Percentage of the first-round vote"`
	RunoffVotes *int   `json:"runoff_votes,omitempty" jsonschema:"Votes in the two-round runoff"`
	Reference   string `json:"reference,omitempty" jsonschema:"Actual percentage from the roster's real election"`
}

// ElectionSummary describes one election of a run.
type ElectionSummary struct {
	Round       int    `json:"round"`
	Winner      string `json:"winner"`
	WinnerShare string `json:"winner_share"`
}

// BatchSummary aggregates a batch of runs.
type BatchSummary struct {
	Runs     int          `json:"runs"`
	LastSeed uint64       `json:"last_seed"`
	Parties  []BatchShare `json:"parties" jsonschema:"Per-party results ordered by mean share"`
	RunIDs   []string     `json:"run_ids,omitempty" jsonschema:"Identifiers of the stored runs"`
}

// BatchShare is one party's aggregate over a batch.
type BatchShare struct {
	Party     string `json:"party"`
	Wins      int    `json:"wins"`
	WinRate   string `json:"win_rate"`
	MeanShare string `json:"mean_share"`
	StdDev    string `json:"stddev"`
	Reference string `json:"reference,omitempty"`
}

// NetworkInput defines the input for the electsim_network tool.
type NetworkInput struct {
	Seed       *uint64  `json:"seed,omitempty" jsonschema:"Random seed for network construction"`
	Agents     *int     `json:"agents,omitempty" jsonschema:"Number of agents in the network"`
	MeanDegree *int     `json:"mean_degree,omitempty" jsonschema:"Even mean degree K"`
	Beta       *float64 `json:"beta,omitempty" jsonschema:"Rewiring probability between 0 and 1"`
	Dimensions *int     `json:"dimensions,omitempty" jsonschema:"Dimensions of the ideological space"`
	Sources    *int     `json:"sources,omitempty" jsonschema:"Nodes to measure shortest paths from; 0 measures from every node"`
	Format     string   `json:"format,omitempty" jsonschema:"Also render the graph: dot or json"`
}

// NetworkOutput defines the output for the electsim_network tool.
type NetworkOutput struct {
	Config network.Config       `json:"config" jsonschema:"Construction parameters"`
	Stats  network.Stats        `json:"stats" jsonschema:"Degree, clustering and path length statistics"`
	DOT    string               `json:"dot,omitempty" jsonschema:"Graphviz DOT rendering"`
	Graph  *visualization.Graph `json:"graph,omitempty" jsonschema:"Nodes and edges"`
}

// RunsInput defines the input for the electsim_runs tool.
type RunsInput struct {
	ID     string `json:"id,omitempty" jsonschema:"Show this run instead of listing"`
	Name   string `json:"name,omitempty" jsonschema:"Only list runs with this label"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum runs to list (default 20)"`
	Delete bool   `json:"delete,omitempty" jsonschema:"Delete the run given by id"`
}

// RunsOutput defines the output for the electsim_runs tool.
type RunsOutput struct {
	Runs    []RunListItem `json:"runs,omitempty" jsonschema:"Stored runs, newest first"`
	Run     *RunOutput    `json:"run,omitempty" jsonschema:"Details of the requested run"`
	Count   int           `json:"count" jsonschema:"Number of runs returned"`
	Message string        `json:"message" jsonschema:"Human-readable summary"`
}

// RunListItem is a stored run in a listing.
type RunListItem struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Seed      uint64 `json:"seed"`
	System    string `json:"system"`
	Agents    int    `json:"agents"`
	Rounds    int    `json:"rounds"`
	Winner    string `json:"winner,omitempty"`
	CreatedAt string `json:"created_at"`
}
