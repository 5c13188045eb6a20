// Package network builds the friendship graph agents live on and runs
// elections over it.
//
// Agents are stored in a single slice owned by the Network and refer to each
// other by index. The topology is a Watts–Strogatz small world: a ring
// lattice whose right-hand edges are rewired at random with probability beta.
package network

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/electsim/internal/agent"
	"github.com/nvandessel/electsim/internal/constants"
	"github.com/nvandessel/electsim/internal/logging"
	"github.com/nvandessel/electsim/internal/probability"
)

// ErrParameter is returned for invalid network construction or election
// parameters.
var ErrParameter = errors.New("invalid network parameter")

// Config holds the Watts–Strogatz construction parameters.
type Config struct {
	// Nodes is the number of agents (N).
	Nodes int `yaml:"nodes" json:"nodes"`

	// MeanDegree is the even number of friends per agent in the lattice (K).
	MeanDegree int `yaml:"mean_degree" json:"mean_degree"`

	// Beta is the rewiring probability in [0, 1].
	Beta float64 `yaml:"beta" json:"beta"`

	// Dimensions is the dimensionality of agent and party positions.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
}

// DefaultConfig returns the reference network: 1000 agents, mean degree 24,
// beta 0.7, one ideological dimension.
func DefaultConfig() Config {
	return Config{
		Nodes:      constants.DefaultAgents,
		MeanDegree: constants.DefaultMeanDegree,
		Beta:       constants.DefaultBeta,
		Dimensions: constants.DefaultDimensions,
	}
}

// Validate checks that K is even, beta is in [0, 1], N >= K >= ln N >= 1 and
// there is at least one dimension.
func (c Config) Validate() error {
	if c.MeanDegree%2 != 0 {
		return fmt.Errorf("%w: mean degree must be even, got %d", ErrParameter, c.MeanDegree)
	}
	if math.IsNaN(c.Beta) || c.Beta < 0 || c.Beta > 1 {
		return fmt.Errorf("%w: beta must be in [0,1], got %v", ErrParameter, c.Beta)
	}
	if c.Nodes < 1 {
		return fmt.Errorf("%w: node count must be positive, got %d", ErrParameter, c.Nodes)
	}
	lnN := math.Log(float64(c.Nodes))
	if c.Nodes < c.MeanDegree || float64(c.MeanDegree) < lnN || lnN < 1 {
		return fmt.Errorf("%w: N >= K >= ln N >= 1 must hold, got %d >= %d >= %.3f >= 1",
			ErrParameter, c.Nodes, c.MeanDegree, lnN)
	}
	if c.Dimensions < 1 {
		return fmt.Errorf("%w: dimensions must be at least 1, got %d", ErrParameter, c.Dimensions)
	}
	return nil
}

// Edge is an undirected friendship between two agents, with A < B.
type Edge struct {
	A int `json:"source"`
	B int `json:"target"`
}

// Network owns the agent population and the election state.
type Network struct {
	agents []*agent.Agent
	dims   int
	state  State
	rounds int

	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// NewWattsStrogatz builds a small-world network. Construction draws, in
// order, the rewiring decisions for every node and then each agent's
// position and traits, all from rng. Nothing is built if cfg is invalid.
func NewWattsStrogatz(rng *rand.Rand, cfg Config) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	adj := ringLattice(cfg.Nodes, cfg.MeanDegree)
	if cfg.MeanDegree != cfg.Nodes {
		rewire(rng, adj, cfg.MeanDegree/2, cfg.Beta)
	}

	positions := agent.NewTraitSampler(rng)
	agents := make([]*agent.Agent, cfg.Nodes)
	for n := range agents {
		friends := make([]agent.Friendship, 0, len(adj[n]))
		for m := range adj[n] {
			friends = append(friends, agent.Friendship{Agent: m, Strength: constants.DefaultFriendshipStrength})
		}
		values := make([]float64, cfg.Dimensions)
		for d := range values {
			values[d] = positions.Rand()
		}
		agents[n] = agent.New(rng, friends, probability.NewPreferences(values))
	}

	return &Network{
		agents: agents,
		dims:   cfg.Dimensions,
		state:  StateUninitialized,
		logger: logging.Discard(),
	}, nil
}

// ringLattice connects every node to its k/2 nearest neighbors on each side.
func ringLattice(n, k int) []map[int]struct{} {
	adj := make([]map[int]struct{}, n)
	for i := range adj {
		adj[i] = make(map[int]struct{}, k)
	}
	for i := 0; i < n; i++ {
		for offset := 1; offset <= k/2; offset++ {
			j := (i + offset) % n
			if j == i {
				continue
			}
			adj[i][j] = struct{}{}
			adj[j][i] = struct{}{}
		}
	}
	return adj
}

// rewire replaces each node's right-hand lattice edges with probability beta.
// Both endpoints are updated so the friendship stays two-way.
func rewire(rng *rand.Rand, adj []map[int]struct{}, half int, beta float64) {
	n := len(adj)
	for i := 0; i < n; i++ {
		for offset := 1; offset <= half; offset++ {
			if rng.Float64() >= beta {
				continue
			}
			old := (i + offset) % n
			if _, ok := adj[i][old]; !ok {
				continue
			}
			if len(adj[i]) >= n-1 {
				continue
			}

			target := rng.IntN(n)
			for target == i || contains(adj[i], target) {
				target = rng.IntN(n)
			}

			delete(adj[i], old)
			delete(adj[old], i)
			adj[i][target] = struct{}{}
			adj[target][i] = struct{}{}
		}
	}
}

func contains(set map[int]struct{}, v int) bool {
	_, ok := set[v]
	return ok
}

// SetLogger sets the structured logger and decision logger for observability.
// A nil logger discards output.
func (n *Network) SetLogger(logger *slog.Logger, decisions *logging.DecisionLogger) {
	if logger == nil {
		logger = logging.Discard()
	}
	n.logger = logger
	n.decisions = decisions
}

// Agents returns the agent arena. Index i is agent i.
func (n *Network) Agents() []*agent.Agent {
	return n.agents
}

// Agent returns agent i, or nil when i is out of range.
func (n *Network) Agent(i int) *agent.Agent {
	if i < 0 || i >= len(n.agents) {
		return nil
	}
	return n.agents[i]
}

// Len returns the number of agents.
func (n *Network) Len() int {
	return len(n.agents)
}

// Dimensions returns the dimensionality of agent positions.
func (n *Network) Dimensions() int {
	return n.dims
}

// State reports where the network is in its election cycle.
func (n *Network) State() State {
	return n.state
}

// Rounds returns the number of elections held so far.
func (n *Network) Rounds() int {
	return n.rounds
}

// Edges returns every friendship once, sorted by (A, B).
func (n *Network) Edges() []Edge {
	var edges []Edge
	for i, a := range n.agents {
		for _, j := range a.Friends() {
			if i < j {
				edges = append(edges, Edge{A: i, B: j})
			}
		}
	}
	return edges
}
