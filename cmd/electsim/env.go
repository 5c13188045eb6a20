package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"

	"github.com/nvandessel/electsim/internal/config"
	"github.com/nvandessel/electsim/internal/logging"
	"github.com/nvandessel/electsim/internal/simulation"
	"github.com/nvandessel/electsim/internal/store"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

// flagKey maps a command-line flag to the configuration key it overrides.
type flagKey struct {
	flag string
	key  string
}

var networkFlagKeys = []flagKey{
	{"seed", "election.seed"},
	{"agents", "network.nodes"},
	{"mean-degree", "network.mean_degree"},
	{"beta", "network.beta"},
	{"dimensions", "network.dimensions"},
}

var electionFlagKeys = []flagKey{
	{"system", "election.system"},
	{"rounds", "election.rounds"},
	{"new-voters", "election.new_voters"},
	{"roster", "parties.roster"},
	{"parties", "parties.names"},
	{"party-count", "parties.count"},
}

func addNetworkFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Uint64("seed", 0, "Random seed (default from config)")
	f.Int("agents", 0, "Number of agents")
	f.Int("mean-degree", 0, "Even mean degree K of the network")
	f.Float64("beta", 0, "Rewiring probability between 0 and 1")
	f.Int("dimensions", 0, "Dimensions of the ideological space")
}

func addScenarioFlags(cmd *cobra.Command) {
	addNetworkFlags(cmd)
	f := cmd.Flags()
	f.String("system", "", "Voting system: fptp or two-round")
	f.Int("rounds", 0, "Number of consecutive elections")
	f.Float64("new-voters", 0, "Fraction of agents without a previous vote")
	f.String("roster", "", "Built-in party roster (see 'electsim rosters')")
	f.String("parties", "", "Comma-separated party names placed at random positions")
	f.Int("party-count", 0, "Number of anonymous parties placed at random positions")
	f.String("name", "", "Label stored with the run")
	cmd.MarkFlagsMutuallyExclusive("roster", "parties", "party-count")
}

func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().String("profile", "", "Write a cpu or mem profile")
	cmd.Flags().String("profile-dir", ".", "Directory for profile output")
}

// loadConfig loads the configuration and applies any flags the command set.
func loadConfig(cmd *cobra.Command) (*config.SimConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	for _, group := range [][]flagKey{networkFlagKeys, electionFlagKeys} {
		for _, fk := range group {
			fl := cmd.Flags().Lookup(fk.flag)
			if fl == nil || !fl.Changed {
				continue
			}
			if err := cfg.Set(fk.key, fl.Value.String()); err != nil {
				return nil, fmt.Errorf("--%s: %w", fk.flag, err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLoggers(cmd *cobra.Command, cfg *config.SimConfig) (*slog.Logger, *logging.DecisionLogger) {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
		logging.NewDecisionLogger(cfg.LogDir(), cfg.Logging.Level)
}

// openRunStore opens the run database. Unless force is set it returns nil
// when storage is disabled in the configuration.
func openRunStore(cfg *config.SimConfig, force bool) (store.RunStore, error) {
	if !cfg.Storage.Enabled && !force {
		return nil, nil
	}
	s, err := store.NewSQLiteRunStore(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening run database: %w", err)
	}
	return s, nil
}

// simEnv is everything a simulation command needs.
type simEnv struct {
	cfg       *config.SimConfig
	scenario  simulation.Scenario
	runner    *simulation.Runner
	store     store.RunStore
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// newSimEnv loads configuration, builds the scenario and wires the runner.
// Runs are persisted when storage is enabled or persist is set.
func newSimEnv(cmd *cobra.Command, persist bool) (*simEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	sc, err := simulation.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if name, _ := cmd.Flags().GetString("name"); name != "" {
		sc.Name = name
	}

	runStore, err := openRunStore(cfg, persist)
	if err != nil {
		return nil, err
	}

	logger, decisions := newLoggers(cmd, cfg)
	runner := simulation.NewRunner(runStore)
	runner.SetLogger(logger, decisions)

	return &simEnv{
		cfg:       cfg,
		scenario:  sc,
		runner:    runner,
		store:     runStore,
		logger:    logger,
		decisions: decisions,
	}, nil
}

func (e *simEnv) Close() error {
	e.decisions.Close()
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// startProfile starts the profile selected by --profile. The returned stop
// function must be called to flush it.
func startProfile(cmd *cobra.Command) (func(), error) {
	kind, _ := cmd.Flags().GetString("profile")
	dir, _ := cmd.Flags().GetString("profile-dir")

	var mode func(*profile.Profile)
	switch kind {
	case "":
		return func() {}, nil
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	default:
		return nil, fmt.Errorf("unknown profile %q (valid: cpu, mem)", kind)
	}

	p := profile.Start(mode, profile.ProfilePath(dir), profile.Quiet, profile.NoShutdownHook)
	return p.Stop, nil
}

// signalContext returns a context cancelled on a shutdown signal.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}
