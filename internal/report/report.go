// Package report renders run and batch results as text or JSON.
//
// Vote shares are exact decimal percentages rounded to two places, so rows
// printed from the same tally always agree with each other.
package report

import (
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/nvandessel/electsim/internal/network"
	"github.com/nvandessel/electsim/internal/roster"
	"github.com/nvandessel/electsim/internal/simulation"
	"github.com/nvandessel/electsim/internal/store"
	"github.com/shopspring/decimal"
)

// ShareDecimals is the number of decimal places shown for percentages.
const ShareDecimals = 2

var hundred = decimal.NewFromInt(100)

// Percent returns part/total as a percentage rounded to ShareDecimals.
// A zero total gives zero.
func Percent(part, total int64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(total)).Round(ShareDecimals)
}

// PercentOf converts a fraction in [0, 1] into a rounded percentage.
func PercentOf(fraction float64) decimal.Decimal {
	return decimal.NewFromFloat(fraction).Mul(hundred).Round(ShareDecimals)
}

// PartyRow is one party's line in a run report.
type PartyRow struct {
	ID          int              `json:"id"`
	Party       string           `json:"party"`
	Votes       int              `json:"votes"`
	Share       decimal.Decimal  `json:"share"`
	RunoffVotes *int             `json:"runoff_votes,omitempty"`
	Reference   *decimal.Decimal `json:"reference,omitempty"`
	Delta       *decimal.Decimal `json:"delta,omitempty"`
}

// ElectionLine summarizes one election of a run.
type ElectionLine struct {
	Round       int             `json:"round"`
	Winner      string          `json:"winner"`
	WinnerShare decimal.Decimal `json:"winner_share"`
	RunnerUp    string          `json:"runner_up,omitempty"`
}

// RunReport is the printable view of a single run.
type RunReport struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	Seed      uint64         `json:"seed"`
	System    string         `json:"system"`
	Network   network.Config `json:"network"`
	Winner    string         `json:"winner"`
	RunnerUp  string         `json:"runner_up,omitempty"`
	Parties   []PartyRow     `json:"parties"`
	Elections []ElectionLine `json:"elections"`
	Stats     *network.Stats `json:"stats,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Duration  time.Duration  `json:"duration"`
}

// NewRunReport builds a report from a fresh run.
func NewRunReport(res *simulation.RunResult) RunReport {
	stats := res.Stats
	return build(runInput{
		id:        res.ID,
		name:      res.Scenario.Name,
		seed:      res.Scenario.Seed,
		system:    string(res.Scenario.System),
		network:   res.Scenario.Network,
		parties:   res.Parties,
		results:   res.Results,
		reference: res.Reference,
		stats:     &stats,
		createdAt: res.CreatedAt,
		duration:  res.Duration,
	})
}

// FromRun builds a report from a stored run. Reference shares are included
// when the run's scenario used a built-in roster.
func FromRun(run *store.Run) RunReport {
	var reference []float64
	var sc simulation.Scenario
	if len(run.Scenario) > 0 && json.Unmarshal(run.Scenario, &sc) == nil && sc.Roster != "" {
		if r, err := roster.Lookup(sc.Roster); err == nil && len(r.Parties) == len(run.Parties) {
			reference = r.ReferenceShares()
		}
	}
	return build(runInput{
		id:        run.ID,
		name:      run.Name,
		seed:      run.Seed,
		system:    run.System,
		network:   run.Network,
		parties:   run.Parties,
		results:   run.Results,
		reference: reference,
		createdAt: run.CreatedAt,
		duration:  run.Duration,
	})
}

type runInput struct {
	id        string
	name      string
	seed      uint64
	system    string
	network   network.Config
	parties   []string
	results   []network.ElectionResult
	reference []float64
	stats     *network.Stats
	createdAt time.Time
	duration  time.Duration
}

func build(in runInput) RunReport {
	rep := RunReport{
		ID:        in.id,
		Name:      in.name,
		Seed:      in.seed,
		System:    in.system,
		Network:   in.network,
		Stats:     in.stats,
		CreatedAt: in.createdAt,
		Duration:  in.duration,
	}
	name := func(id int) string {
		if id < 0 || id >= len(in.parties) {
			return ""
		}
		return in.parties[id]
	}

	for i, result := range in.results {
		line := ElectionLine{
			Round:    i + 1,
			Winner:   name(result.Winner),
			RunnerUp: name(result.RunnerUp),
		}
		final := result.Final()
		line.WinnerShare = Percent(int64(final[result.Winner]), int64(final.Total()))
		rep.Elections = append(rep.Elections, line)
	}
	if len(in.results) == 0 {
		return rep
	}

	last := in.results[len(in.results)-1]
	rep.Winner = name(last.Winner)
	rep.RunnerUp = name(last.RunnerUp)

	if len(last.Tallies) == 0 {
		return rep
	}
	first := last.Tallies[0]
	total := int64(first.Total())
	for id, partyName := range in.parties {
		row := PartyRow{
			ID:    id,
			Party: partyName,
			Votes: first[id],
			Share: Percent(int64(first[id]), total),
		}
		if len(last.Tallies) > 1 {
			if votes, ok := last.Tallies[1][id]; ok {
				row.RunoffVotes = &votes
			}
		}
		if id < len(in.reference) {
			ref := PercentOf(in.reference[id])
			delta := row.Share.Sub(ref)
			row.Reference = &ref
			row.Delta = &delta
		}
		rep.Parties = append(rep.Parties, row)
	}
	sortRows(rep.Parties)
	return rep
}

// sortRows orders rows by votes, most first, then by party ID.
func sortRows(rows []PartyRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Votes != rows[j].Votes {
			return rows[i].Votes > rows[j].Votes
		}
		return rows[i].ID < rows[j].ID
	})
}

// BatchRow is one party's line in a batch report.
type BatchRow struct {
	Party     string           `json:"party"`
	Wins      int              `json:"wins"`
	WinRate   decimal.Decimal  `json:"win_rate"`
	MeanShare decimal.Decimal  `json:"mean_share"`
	StdDev    decimal.Decimal  `json:"stddev"`
	Reference *decimal.Decimal `json:"reference,omitempty"`
}

// BatchReport is the printable view of a batch.
type BatchReport struct {
	Name      string        `json:"name,omitempty"`
	Runs      int           `json:"runs"`
	FirstSeed uint64        `json:"first_seed"`
	LastSeed  uint64        `json:"last_seed"`
	System    string        `json:"system"`
	Agents    int           `json:"agents"`
	Rows      []BatchRow    `json:"parties"`
	Duration  time.Duration `json:"duration"`
}

// NewBatchReport builds a report from a batch, ordered by mean share.
func NewBatchReport(b *simulation.BatchResult) BatchReport {
	rep := BatchReport{
		Name:      b.Scenario.Name,
		Runs:      b.Runs,
		FirstSeed: b.Scenario.Seed,
		LastSeed:  b.Scenario.Seed + uint64(b.Runs) - 1,
		System:    string(b.Scenario.System),
		Agents:    b.Scenario.Network.Nodes,
		Duration:  b.Duration,
	}
	for i, name := range b.Parties {
		row := BatchRow{
			Party:     name,
			Wins:      b.Wins[i],
			WinRate:   Percent(int64(b.Wins[i]), int64(b.Runs)),
			MeanShare: PercentOf(b.MeanShare[i]),
			StdDev:    PercentOf(b.StdDevShare[i]),
		}
		if i < len(b.Reference) {
			ref := PercentOf(b.Reference[i])
			row.Reference = &ref
		}
		rep.Rows = append(rep.Rows, row)
	}
	sort.SliceStable(rep.Rows, func(i, j int) bool {
		return rep.Rows[i].MeanShare.GreaterThan(rep.Rows[j].MeanShare)
	})
	return rep
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
