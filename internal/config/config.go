// Package config provides unified configuration loading for electsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/electsim/internal/constants"
	"github.com/nvandessel/electsim/internal/logging"
	"github.com/nvandessel/electsim/internal/network"
	"github.com/nvandessel/electsim/internal/roster"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the user config file inside ~/.electsim.
const FileName = "config.yaml"

// DefaultPartyNames are used when no parties are configured.
var DefaultPartyNames = []string{"Left", "Right"}

// SimConfig contains all electsim configuration settings.
type SimConfig struct {
	// Network holds the Watts–Strogatz construction parameters.
	Network network.Config `json:"network" yaml:"network"`

	// Parties selects the party roster.
	Parties PartiesConfig `json:"parties" yaml:"parties"`

	// Election controls how elections are run.
	Election ElectionConfig `json:"election" yaml:"election"`

	// Events change party attractiveness before given rounds.
	Events []EventConfig `json:"events,omitempty" yaml:"events,omitempty"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Storage configures persistence of run results.
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// PartiesConfig selects parties in exactly one of four ways: a built-in
// roster, an explicit list, names at random positions, or a count of
// anonymous parties at random positions.
type PartiesConfig struct {
	Roster string        `json:"roster,omitempty" yaml:"roster,omitempty"`
	List   []PartyConfig `json:"list,omitempty" yaml:"list,omitempty"`
	Names  []string      `json:"names,omitempty" yaml:"names,omitempty"`
	Count  int           `json:"count,omitempty" yaml:"count,omitempty"`
}

// PartyConfig is one explicitly configured party.
type PartyConfig struct {
	Name     string    `json:"name" yaml:"name"`
	Position []float64 `json:"position" yaml:"position"`

	// Attractiveness overrides the default of 1.0 when set.
	Attractiveness *float64 `json:"attractiveness,omitempty" yaml:"attractiveness,omitempty"`
}

// ElectionConfig controls a simulation run.
type ElectionConfig struct {
	// Seed makes runs reproducible; equal seeds give identical runs.
	Seed uint64 `json:"seed" yaml:"seed"`

	// System is "fptp" or "two-round".
	System string `json:"system" yaml:"system"`

	// Rounds is the number of consecutive elections.
	Rounds int `json:"rounds" yaml:"rounds"`

	// NewVoters is the fraction of agents without a prior vote.
	NewVoters float64 `json:"new_voters" yaml:"new_voters"`
}

// EventConfig sets a party's attractiveness before the given round (1-based).
type EventConfig struct {
	Round          int     `json:"round" yaml:"round"`
	Party          string  `json:"party" yaml:"party"`
	Attractiveness float64 `json:"attractiveness" yaml:"attractiveness"`
}

// LoggingConfig configures electsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables round traces in <dir>/decisions.jsonl.
	Level string `json:"level" yaml:"level"`

	// Dir is where decision traces are written. Defaults to ~/.electsim.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// StorageConfig configures the SQLite run store.
type StorageConfig struct {
	// Enabled turns on persistence of every run.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the database file. Supports ${VAR} syntax for env vars.
	// Defaults to ~/.electsim/runs.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a SimConfig with sensible defaults.
func Default() *SimConfig {
	return &SimConfig{
		Network: network.DefaultConfig(),
		Parties: PartiesConfig{
			Names: append([]string(nil), DefaultPartyNames...),
		},
		Election: ElectionConfig{
			Seed:      constants.DefaultSeed,
			System:    string(network.FPTP),
			Rounds:    constants.DefaultRounds,
			NewVoters: constants.DefaultNewVoters,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Path returns the user config file location, ~/.electsim/config.yaml.
func Path() string {
	return filepath.Join(logging.DefaultDir(), FileName)
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.electsim/config.yaml -> extra (if non-empty) -> environment variables
func Load(extra string) (*SimConfig, error) {
	config := Default()

	if _, statErr := os.Stat(Path()); statErr == nil {
		if err := mergeFile(config, Path()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if extra != "" {
		if err := mergeFile(config, extra); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults.
func LoadFromFile(path string) (*SimConfig, error) {
	config := Default()
	if err := mergeFile(config, path); err != nil {
		return nil, err
	}
	return config, nil
}

// mergeFile decodes a YAML file over config. A parties section in the file
// replaces the configured parties as a whole, so selecting a roster does not
// collide with the default party names.
func mergeFile(config *SimConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var partiesOnly struct {
		Parties *PartiesConfig `yaml:"parties"`
	}
	if err := yaml.Unmarshal(data, &partiesOnly); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if partiesOnly.Parties != nil {
		config.Parties = *partiesOnly.Parties
	}

	config.Storage.Path = expandEnvVars(config.Storage.Path)
	config.Logging.Dir = expandEnvVars(config.Logging.Dir)

	return nil
}

// Save writes the configuration to ~/.electsim/config.yaml.
func (c *SimConfig) Save() error {
	return c.SaveToFile(Path())
}

// SaveToFile writes the configuration as YAML, creating parent directories.
func (c *SimConfig) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// LogDir returns the decision trace directory, defaulting to ~/.electsim.
func (c *SimConfig) LogDir() string {
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	return logging.DefaultDir()
}

// DBPath returns the run database path, defaulting to ~/.electsim/runs.db.
func (c *SimConfig) DBPath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(logging.DefaultDir(), "runs.db")
}

// Validate checks that the configuration is valid.
func (c *SimConfig) Validate() error {
	if err := c.Network.Validate(); err != nil {
		return fmt.Errorf("network: %w", err)
	}

	if _, err := network.ParseVotingSystem(c.Election.System); err != nil {
		return fmt.Errorf("election.system: %w", err)
	}
	if c.Election.Rounds < 1 {
		return fmt.Errorf("election.rounds must be at least 1, got %d", c.Election.Rounds)
	}
	if math.IsNaN(c.Election.NewVoters) || c.Election.NewVoters < 0 || c.Election.NewVoters > 1 {
		return fmt.Errorf("election.new_voters must be between 0 and 1, got %v", c.Election.NewVoters)
	}

	if err := c.validateParties(); err != nil {
		return err
	}

	for i, e := range c.Events {
		if e.Round < 1 || e.Round > c.Election.Rounds {
			return fmt.Errorf("events[%d]: round %d outside 1..%d", i, e.Round, c.Election.Rounds)
		}
		if e.Party == "" {
			return fmt.Errorf("events[%d]: party is required", i)
		}
	}

	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: error, warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

func (c *SimConfig) validateParties() error {
	p := c.Parties
	modes := 0
	for _, set := range []bool{p.Roster != "", len(p.List) > 0, len(p.Names) > 0, p.Count > 0} {
		if set {
			modes++
		}
	}
	if modes == 0 {
		return fmt.Errorf("parties: one of roster, list, names or count is required")
	}
	if modes > 1 {
		return fmt.Errorf("parties: roster, list, names and count are mutually exclusive")
	}

	if p.Roster != "" {
		if _, err := roster.Lookup(p.Roster); err != nil {
			return fmt.Errorf("parties.roster: %w", err)
		}
		if c.Network.Dimensions != 1 {
			return fmt.Errorf("parties.roster: built-in rosters are one-dimensional, network has %d dimensions", c.Network.Dimensions)
		}
	}
	for i, party := range p.List {
		if party.Name == "" {
			return fmt.Errorf("parties.list[%d]: name is required", i)
		}
		if len(party.Position) != c.Network.Dimensions {
			return fmt.Errorf("parties.list[%d] %q: position has %d dimensions, network has %d",
				i, party.Name, len(party.Position), c.Network.Dimensions)
		}
	}
	if p.Count < 0 {
		return fmt.Errorf("parties.count must be positive, got %d", p.Count)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *SimConfig) {
	if v := os.Getenv("ELECTSIM_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Election.Seed = n
		}
	}
	if v := os.Getenv("ELECTSIM_AGENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Network.Nodes = n
		}
	}
	if v := os.Getenv("ELECTSIM_MEAN_DEGREE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Network.MeanDegree = n
		}
	}
	if v := os.Getenv("ELECTSIM_BETA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Network.Beta = f
		}
	}
	if v := os.Getenv("ELECTSIM_SYSTEM"); v != "" {
		config.Election.System = v
	}
	if v := os.Getenv("ELECTSIM_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Election.Rounds = n
		}
	}
	if v := os.Getenv("ELECTSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("ELECTSIM_DB_PATH"); v != "" {
		config.Storage.Path = v
		config.Storage.Enabled = true
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
