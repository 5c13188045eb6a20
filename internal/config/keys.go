package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/electsim/internal/network"
	"github.com/nvandessel/electsim/internal/roster"
)

// Keys lists the dot-notation keys accepted by Get and Set, in display order.
var Keys = []string{
	"network.nodes",
	"network.mean_degree",
	"network.beta",
	"network.dimensions",
	"parties.roster",
	"parties.names",
	"parties.count",
	"election.seed",
	"election.system",
	"election.rounds",
	"election.new_voters",
	"logging.level",
	"logging.dir",
	"storage.enabled",
	"storage.path",
}

// Get retrieves a configuration value by dot-notation key.
func (c *SimConfig) Get(key string) (any, bool) {
	switch key {
	case "network.nodes":
		return c.Network.Nodes, true
	case "network.mean_degree":
		return c.Network.MeanDegree, true
	case "network.beta":
		return c.Network.Beta, true
	case "network.dimensions":
		return c.Network.Dimensions, true
	case "parties.roster":
		return c.Parties.Roster, true
	case "parties.names":
		return strings.Join(c.Parties.Names, ","), true
	case "parties.count":
		return c.Parties.Count, true
	case "election.seed":
		return c.Election.Seed, true
	case "election.system":
		return c.Election.System, true
	case "election.rounds":
		return c.Election.Rounds, true
	case "election.new_voters":
		return c.Election.NewVoters, true
	case "logging.level":
		return c.Logging.Level, true
	case "logging.dir":
		return c.Logging.Dir, true
	case "storage.enabled":
		return c.Storage.Enabled, true
	case "storage.path":
		return c.Storage.Path, true
	default:
		return nil, false
	}
}

// Set sets a configuration value by dot-notation key. Setting one of the
// party selectors clears the others.
func (c *SimConfig) Set(key, value string) error {
	switch key {
	case "network.nodes":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.Network.Nodes = n
	case "network.mean_degree":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.Network.MeanDegree = n
	case "network.beta":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("invalid beta: %s (must be a number between 0 and 1)", value)
		}
		c.Network.Beta = f
	case "network.dimensions":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.Network.Dimensions = n
	case "parties.roster":
		if _, err := roster.Lookup(value); err != nil {
			return err
		}
		c.Parties = PartiesConfig{Roster: strings.ToLower(value)}
	case "parties.names":
		var names []string
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return fmt.Errorf("invalid names: %q (comma-separated list required)", value)
		}
		c.Parties = PartiesConfig{Names: names}
	case "parties.count":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		if n < 1 {
			return fmt.Errorf("parties.count must be positive, got %d", n)
		}
		c.Parties = PartiesConfig{Count: n}
	case "election.seed":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed: %s (must be a non-negative integer)", value)
		}
		c.Election.Seed = n
	case "election.system":
		system, err := network.ParseVotingSystem(value)
		if err != nil {
			return err
		}
		c.Election.System = string(system)
	case "election.rounds":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.Election.Rounds = n
	case "election.new_voters":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("invalid new_voters: %s (must be a number between 0 and 1)", value)
		}
		c.Election.NewVoters = f
	case "logging.level":
		c.Logging.Level = value
	case "logging.dir":
		c.Logging.Dir = value
	case "storage.enabled":
		c.Storage.Enabled = value == "true" || value == "1"
	case "storage.path":
		c.Storage.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s (must be an integer)", key, value)
	}
	return n, nil
}
