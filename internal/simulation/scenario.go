package simulation

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/electsim/internal/config"
	"github.com/nvandessel/electsim/internal/network"
	"github.com/nvandessel/electsim/internal/party"
	"github.com/nvandessel/electsim/internal/probability"
	"github.com/nvandessel/electsim/internal/roster"
)

// Scenario defines a complete simulation experiment. Exactly one of Roster,
// Parties, PartyNames and PartyCount selects the parties.
type Scenario struct {
	Name    string         `json:"name,omitempty"`
	Seed    uint64         `json:"seed"`
	Network network.Config `json:"network"`

	Roster     string      `json:"roster,omitempty"`
	Parties    []PartySpec `json:"parties,omitempty"`
	PartyNames []string    `json:"party_names,omitempty"`
	PartyCount int         `json:"party_count,omitempty"`

	NewVoters float64              `json:"new_voters"`
	System    network.VotingSystem `json:"system"`
	Rounds    int                  `json:"rounds"`
	Events    []Event              `json:"events,omitempty"`
}

// PartySpec defines a party at a fixed position.
type PartySpec struct {
	Name     string    `json:"name"`
	Position []float64 `json:"position"`

	// Attractiveness overrides the default when non-nil.
	Attractiveness *float64 `json:"attractiveness,omitempty"`
}

// Event sets a party's attractiveness before the given 1-based round.
type Event struct {
	Round          int     `json:"round"`
	Party          string  `json:"party"`
	Attractiveness float64 `json:"attractiveness"`
}

// FromConfig builds a scenario from loaded configuration.
func FromConfig(cfg *config.SimConfig) (Scenario, error) {
	system, err := network.ParseVotingSystem(cfg.Election.System)
	if err != nil {
		return Scenario{}, err
	}

	sc := Scenario{
		Seed:       cfg.Election.Seed,
		Network:    cfg.Network,
		Roster:     cfg.Parties.Roster,
		PartyNames: append([]string(nil), cfg.Parties.Names...),
		PartyCount: cfg.Parties.Count,
		NewVoters:  cfg.Election.NewVoters,
		System:     system,
		Rounds:     cfg.Election.Rounds,
	}
	for _, p := range cfg.Parties.List {
		sc.Parties = append(sc.Parties, PartySpec{
			Name:           p.Name,
			Position:       append([]float64(nil), p.Position...),
			Attractiveness: p.Attractiveness,
		})
	}
	for _, e := range cfg.Events {
		sc.Events = append(sc.Events, Event(e))
	}
	if sc.Roster != "" {
		sc.Name = sc.Roster
	}
	return sc, nil
}

// WithSeed returns a copy of the scenario using seed.
func (s Scenario) WithSeed(seed uint64) Scenario {
	s.Seed = seed
	return s
}

// Validate checks the scenario before anything is built.
func (s Scenario) Validate() error {
	if err := s.Network.Validate(); err != nil {
		return err
	}
	if !s.System.Valid() {
		return fmt.Errorf("%w: unknown voting system %q", network.ErrParameter, s.System)
	}
	if s.Rounds < 1 {
		return fmt.Errorf("%w: rounds must be at least 1, got %d", network.ErrParameter, s.Rounds)
	}
	if math.IsNaN(s.NewVoters) || s.NewVoters < 0 || s.NewVoters > 1 {
		return fmt.Errorf("%w: new voter fraction %v outside [0, 1]", network.ErrParameter, s.NewVoters)
	}

	modes := 0
	for _, set := range []bool{s.Roster != "", len(s.Parties) > 0, len(s.PartyNames) > 0, s.PartyCount > 0} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return fmt.Errorf("%w: exactly one of roster, parties, party names or party count is required", network.ErrParameter)
	}
	if s.PartyCount < 0 {
		return fmt.Errorf("%w: party count %d is negative", network.ErrParameter, s.PartyCount)
	}
	if s.Roster != "" {
		if _, err := roster.Lookup(s.Roster); err != nil {
			return err
		}
		if s.Network.Dimensions != 1 {
			return fmt.Errorf("%w: roster %s is one-dimensional, network has %d dimensions",
				probability.ErrDimensionMismatch, s.Roster, s.Network.Dimensions)
		}
	}
	for _, p := range s.Parties {
		if len(p.Position) != s.Network.Dimensions {
			return fmt.Errorf("party %q: %w: position has %d dimensions, network has %d",
				p.Name, probability.ErrDimensionMismatch, len(p.Position), s.Network.Dimensions)
		}
	}

	for i, e := range s.Events {
		if e.Round < 1 || e.Round > s.Rounds {
			return fmt.Errorf("%w: event %d round %d outside 1..%d", network.ErrParameter, i, e.Round, s.Rounds)
		}
		if e.Party == "" {
			return fmt.Errorf("%w: event %d names no party", network.ErrParameter, i)
		}
	}
	return nil
}

// Registry builds the scenario's parties. Random positions are drawn from rng.
// The roster is returned when the scenario uses one.
func (s Scenario) Registry(rng *rand.Rand) (*party.Registry, *roster.Roster, error) {
	switch {
	case s.Roster != "":
		r, err := roster.Lookup(s.Roster)
		if err != nil {
			return nil, nil, err
		}
		reg, err := r.Registry()
		if err != nil {
			return nil, nil, err
		}
		return reg, r, nil

	case len(s.Parties) > 0:
		names := make([]string, len(s.Parties))
		positions := make([]probability.Preferences, len(s.Parties))
		for i, p := range s.Parties {
			names[i] = p.Name
			positions[i] = probability.NewPreferences(p.Position)
		}
		reg, err := party.NewRegistry(len(s.Parties), names, positions)
		if err != nil {
			return nil, nil, err
		}
		for i, p := range s.Parties {
			if p.Attractiveness == nil {
				continue
			}
			if err := reg.SetAttractiveness(i, *p.Attractiveness); err != nil {
				return nil, nil, err
			}
		}
		return reg, nil, nil

	case len(s.PartyNames) > 0:
		reg, err := party.GenerateNamed(rng, s.PartyNames, s.Network.Dimensions)
		return reg, nil, err

	default:
		reg, err := party.GenerateRandom(rng, s.PartyCount, s.Network.Dimensions)
		return reg, nil, err
	}
}
