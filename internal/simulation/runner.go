package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/electsim/internal/logging"
	"github.com/nvandessel/electsim/internal/network"
	"github.com/nvandessel/electsim/internal/party"
	"github.com/nvandessel/electsim/internal/probability"
	"github.com/nvandessel/electsim/internal/store"
	"gonum.org/v1/gonum/stat"
)

// DefaultStatsSources is the number of shortest-path sources sampled for
// network statistics after a run.
const DefaultStatsSources = 32

// Runner executes scenarios and optionally persists the results.
type Runner struct {
	store        store.RunStore
	logger       *slog.Logger
	decisions    *logging.DecisionLogger
	statsSources int
	now          func() time.Time
}

// NewRunner creates a runner. A nil store disables persistence.
func NewRunner(s store.RunStore) *Runner {
	return &Runner{
		store:        s,
		logger:       logging.Discard(),
		statsSources: DefaultStatsSources,
		now:          time.Now,
	}
}

// SetLogger sets the operational logger and the decision trace logger.
func (r *Runner) SetLogger(logger *slog.Logger, decisions *logging.DecisionLogger) {
	if logger == nil {
		logger = logging.Discard()
	}
	r.logger = logger
	r.decisions = decisions
}

// SetStatsSources sets how many nodes shortest paths are measured from.
// Zero or less measures from every node.
func (r *Runner) SetStatsSources(n int) {
	r.statsSources = n
}

// RunResult is the outcome of one scenario run.
type RunResult struct {
	ID        string                   `json:"id"`
	Scenario  Scenario                 `json:"scenario"`
	Parties   []string                 `json:"parties"`
	Results   []network.ElectionResult `json:"results"`
	Stats     network.Stats            `json:"stats"`
	Reference []float64                `json:"reference,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	Duration  time.Duration            `json:"duration"`

	// Network and Registry hold the final state for rendering.
	Network  *network.Network `json:"-"`
	Registry *party.Registry  `json:"-"`
}

// Final returns the last election's result.
func (r *RunResult) Final() network.ElectionResult {
	if len(r.Results) == 0 {
		return network.ElectionResult{Winner: -1, RunnerUp: -1}
	}
	return r.Results[len(r.Results)-1]
}

// WinnerName returns the name of the last election's winner.
func (r *RunResult) WinnerName() string {
	w := r.Final().Winner
	if w < 0 || w >= len(r.Parties) {
		return ""
	}
	return r.Parties[w]
}

// Run executes the scenario: it builds the network and parties, seeds
// previous votes, then holds every election in order, applying the events
// scheduled for each round first. The run is saved when the runner has a store.
func (r *Runner) Run(ctx context.Context, sc Scenario) (*RunResult, error) {
	res, err := r.execute(ctx, sc)
	if err != nil {
		return nil, err
	}
	res.Stats = res.Network.Stats(r.statsSources)

	if err := r.save(ctx, res); err != nil {
		return nil, err
	}

	r.logger.Info("run complete",
		"run_id", res.ID,
		"winner", res.WinnerName(),
		"rounds", len(res.Results),
		"duration", res.Duration)
	return res, nil
}

func (r *Runner) execute(ctx context.Context, sc Scenario) (*RunResult, error) {
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	start := r.now()

	rng := rand.New(rand.NewPCG(sc.Seed, sc.Seed))
	net, err := network.NewWattsStrogatz(rng, sc.Network)
	if err != nil {
		return nil, fmt.Errorf("building network: %w", err)
	}
	reg, ros, err := sc.Registry(rng)
	if err != nil {
		return nil, fmt.Errorf("building parties: %w", err)
	}

	id := uuid.NewString()
	decisions := r.decisions.With(map[string]any{"run_id": id})
	net.SetLogger(r.logger.With("run_id", id), decisions)

	decisions.Log(map[string]any{
		"event":   "run_start",
		"seed":    sc.Seed,
		"agents":  sc.Network.Nodes,
		"parties": reg.Names(),
		"system":  string(sc.System),
		"rounds":  sc.Rounds,
	})

	if err := net.SeedPreviousVotes(rng, reg, probability.NewProbability(sc.NewVoters)); err != nil {
		return nil, fmt.Errorf("seeding previous votes: %w", err)
	}

	res := &RunResult{
		ID:        id,
		Scenario:  sc,
		Parties:   reg.Names(),
		CreatedAt: start,
		Network:   net,
		Registry:  reg,
	}
	if ros != nil {
		res.Reference = ros.ReferenceShares()
	}

	for round := 1; round <= sc.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run %s interrupted before round %d: %w", id, round, err)
		}
		if err := applyEvents(reg, sc.Events, round, decisions); err != nil {
			return nil, err
		}

		result, err := net.HoldElection(rng, reg, sc.System)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", round, err)
		}
		res.Results = append(res.Results, result)

		r.logger.Debug("election complete",
			"run_id", id,
			"round", round,
			"winner", reg.Name(result.Winner),
			"votes", result.Final().Total())
	}

	res.Duration = r.now().Sub(start)
	decisions.Log(map[string]any{
		"event":       "run_complete",
		"winner":      res.WinnerName(),
		"duration_ms": res.Duration.Milliseconds(),
	})
	return res, nil
}

// applyEvents sets the attractiveness changes scheduled for round.
func applyEvents(reg *party.Registry, events []Event, round int, decisions *logging.DecisionLogger) error {
	for _, e := range events {
		if e.Round != round {
			continue
		}
		id, err := reg.Lookup(e.Party)
		if err != nil {
			return fmt.Errorf("event for round %d: %w", round, err)
		}
		if err := reg.SetAttractiveness(id, e.Attractiveness); err != nil {
			return fmt.Errorf("event for round %d: %w", round, err)
		}
		decisions.Log(map[string]any{
			"event":          "attractiveness",
			"round":          round,
			"party":          e.Party,
			"attractiveness": e.Attractiveness,
		})
	}
	return nil
}

func (r *Runner) save(ctx context.Context, res *RunResult) error {
	if r.store == nil {
		return nil
	}
	scenario, err := json.Marshal(res.Scenario)
	if err != nil {
		return fmt.Errorf("encoding scenario: %w", err)
	}
	run := &store.Run{
		ID:        res.ID,
		Name:      res.Scenario.Name,
		Seed:      res.Scenario.Seed,
		System:    string(res.Scenario.System),
		Network:   res.Scenario.Network,
		Parties:   res.Parties,
		Scenario:  scenario,
		CreatedAt: res.CreatedAt,
		Duration:  res.Duration,
		Results:   res.Results,
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("saving run %s: %w", res.ID, err)
	}
	return nil
}

// BatchResult aggregates repeated runs of one scenario over consecutive seeds.
type BatchResult struct {
	Scenario Scenario `json:"scenario"`
	Runs     int      `json:"runs"`
	Parties  []string `json:"parties"`
	RunIDs   []string `json:"run_ids"`

	// Wins counts final-election wins per party.
	Wins []int `json:"wins"`

	// MeanShare and StdDevShare describe each party's first-round vote share
	// in the final election.
	MeanShare   []float64 `json:"mean_share"`
	StdDevShare []float64 `json:"stddev_share"`

	Reference []float64     `json:"reference,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Batch runs the scenario runs times with seeds Seed, Seed+1, ... and
// aggregates the final elections. Runs are saved when the runner has a store.
func (r *Runner) Batch(ctx context.Context, sc Scenario, runs int) (*BatchResult, error) {
	if runs < 1 {
		return nil, fmt.Errorf("%w: batch needs at least 1 run, got %d", network.ErrParameter, runs)
	}
	start := r.now()

	batch := &BatchResult{Scenario: sc, Runs: runs}
	var shares [][]float64

	for i := 0; i < runs; i++ {
		res, err := r.execute(ctx, sc.WithSeed(sc.Seed+uint64(i)))
		if err != nil {
			return nil, fmt.Errorf("batch run %d: %w", i+1, err)
		}
		if err := r.save(ctx, res); err != nil {
			return nil, err
		}

		if i == 0 {
			batch.Parties = res.Parties
			batch.Reference = res.Reference
			batch.Wins = make([]int, len(res.Parties))
			shares = make([][]float64, len(res.Parties))
			for p := range shares {
				shares[p] = make([]float64, runs)
			}
		}
		batch.RunIDs = append(batch.RunIDs, res.ID)

		final := res.Final()
		if final.Winner >= 0 && final.Winner < len(batch.Wins) {
			batch.Wins[final.Winner]++
		}
		for p, share := range Shares(final.Tallies[0], len(batch.Parties)) {
			shares[p][i] = share
		}
		r.logger.Debug("batch run complete", "run", i+1, "of", runs, "winner", res.WinnerName())
	}

	batch.MeanShare = make([]float64, len(shares))
	batch.StdDevShare = make([]float64, len(shares))
	for p, s := range shares {
		if runs == 1 {
			batch.MeanShare[p] = s[0]
			continue
		}
		batch.MeanShare[p], batch.StdDevShare[p] = stat.MeanStdDev(s, nil)
	}
	batch.Duration = r.now().Sub(start)

	r.logger.Info("batch complete", "runs", runs, "duration", batch.Duration)
	return batch, nil
}
