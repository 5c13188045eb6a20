package network

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/nvandessel/electsim/internal/agent"
	"github.com/nvandessel/electsim/internal/constants"
	"github.com/nvandessel/electsim/internal/party"
	"github.com/nvandessel/electsim/internal/probability"
)

var (
	// ErrInvariantViolation is returned when an agent's vote falls outside
	// the candidate set of the round it was cast in. It indicates a defect in
	// the voting logic and must not be ignored.
	ErrInvariantViolation = errors.New("election invariant violated")

	// ErrAlreadyVoted is returned when previous votes are seeded after the
	// network has already held an election.
	ErrAlreadyVoted = errors.New("network has already voted")
)

// VotingSystem selects the election procedure for one election.
type VotingSystem string

const (
	// FPTP is a single plurality round.
	FPTP VotingSystem = "fptp"

	// TwoRound is a plurality round followed by a runoff between the top two.
	TwoRound VotingSystem = "two-round"
)

// Valid returns true if the voting system is a recognized value.
func (v VotingSystem) Valid() bool {
	switch v {
	case FPTP, TwoRound:
		return true
	}
	return false
}

// String returns the string representation of the voting system.
func (v VotingSystem) String() string {
	return string(v)
}

// ParseVotingSystem maps a user-supplied name to a VotingSystem.
// Matching is case-insensitive and accepts a few common aliases.
func ParseVotingSystem(s string) (VotingSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fptp", "first-past-the-post", "plurality":
		return FPTP, nil
	case "two-round", "tworound", "two_round", "runoff":
		return TwoRound, nil
	}
	return "", fmt.Errorf("%w: unknown voting system %q (valid: fptp, two-round)", ErrParameter, s)
}

// State is the network's position in the election cycle.
type State int

const (
	// StateUninitialized means no agent has a vote history.
	StateUninitialized State = iota
	// StateSeeded means some agents were given a prior vote.
	StateSeeded
	// StateRoundInProgress means agents are casting votes.
	StateRoundInProgress
	// StateRoundCommitted means the last round's votes are now history.
	StateRoundCommitted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSeeded:
		return "seeded"
	case StateRoundInProgress:
		return "round-in-progress"
	case StateRoundCommitted:
		return "round-committed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Tally maps party id to vote count for one round.
type Tally map[int]int

// Total returns the number of votes cast.
func (t Tally) Total() int {
	total := 0
	for _, v := range t {
		total += v
	}
	return total
}

// ElectionResult is the outcome of one election. FPTP results carry a single
// tally and RunnerUp = -1. TwoRound results carry both tallies, the second
// with exactly two entries, and the round-one runner-up.
type ElectionResult struct {
	System   VotingSystem `json:"system"`
	Winner   int          `json:"winner"`
	RunnerUp int          `json:"runner_up"`
	Tallies  []Tally      `json:"tallies"`
}

// Final returns the tally of the deciding round.
func (r ElectionResult) Final() Tally {
	if len(r.Tallies) == 0 {
		return nil
	}
	return r.Tallies[len(r.Tallies)-1]
}

// SeedPreviousVotes gives each agent, with probability 1-newVoters, a prior
// vote drawn from its distance scores over all parties. The remaining agents
// stay new voters. Seeding is only allowed before the first election.
func (n *Network) SeedPreviousVotes(rng *rand.Rand, parties *party.Registry, newVoters probability.Probability) error {
	if n.state != StateUninitialized && n.state != StateSeeded {
		return fmt.Errorf("seed previous votes: %w (state %s)", ErrAlreadyVoted, n.state)
	}
	if err := n.checkParties(parties, FPTP); err != nil {
		return err
	}

	order := parties.OrderedIDs()
	seeded := 0
	for i, a := range n.agents {
		if rng.Float64() <= newVoters.Value() {
			continue
		}
		scores, err := a.DistanceScores(parties, order)
		if err != nil {
			return fmt.Errorf("seed agent %d: %w", i, err)
		}
		a.SeedLastVote(order[scores.ChooseRandom(rng)])
		seeded++
	}

	n.state = StateSeeded
	n.logger.Debug("seeded previous votes", "agents", len(n.agents), "seeded", seeded, "new_voters", newVoters.Value())
	return nil
}

// HoldElection runs one election with the given system. Round one reads
// friends' last votes and is committed into history afterwards. A runoff
// round reads friends' round-one votes and is not committed, so the next
// election's peer signal is the round-one choice.
func (n *Network) HoldElection(rng *rand.Rand, parties *party.Registry, system VotingSystem) (ElectionResult, error) {
	if !system.Valid() {
		return ElectionResult{}, fmt.Errorf("%w: unknown voting system %q", ErrParameter, system)
	}
	if err := n.checkParties(parties, system); err != nil {
		return ElectionResult{}, err
	}

	order := parties.OrderedIDs()
	n.state = StateRoundInProgress
	first, err := n.runRound(rng, parties, order, n.snapshot((*agent.Agent).LastVote), system, 1)
	if err != nil {
		return ElectionResult{}, err
	}
	roundOne := n.snapshot((*agent.Agent).CurrentVote)
	n.commit()
	n.rounds++

	result := ElectionResult{
		System:   system,
		RunnerUp: constants.NoVote,
		Tallies:  []Tally{tally(order, first)},
	}
	if system == FPTP {
		result.Winner = order[Winner(first)]
		return result, nil
	}

	w, r := TopTwo(first)
	runoff := []int{order[w], order[r]}
	second, err := n.runRound(rng, parties, runoff, roundOne, system, 2)
	if err != nil {
		return ElectionResult{}, err
	}
	result.Winner = runoff[Winner(second)]
	result.RunnerUp = runoff[1]
	result.Tallies = append(result.Tallies, tally(runoff, second))
	return result, nil
}

// checkParties validates a registry against the network before any agent
// votes.
func (n *Network) checkParties(parties *party.Registry, system VotingSystem) error {
	if parties == nil || parties.Len() == 0 {
		return fmt.Errorf("%w: election needs at least one party", ErrParameter)
	}
	if system == TwoRound && parties.Len() < 2 {
		return fmt.Errorf("%w: two-round election needs at least two parties, got %d", ErrParameter, parties.Len())
	}
	if parties.Dimensions() != n.dims {
		return fmt.Errorf("parties: %w: %d != %d", probability.ErrDimensionMismatch, parties.Dimensions(), n.dims)
	}
	return nil
}

// runRound has every agent vote over order, with neighbor support computed
// from signal, and returns vote counts indexed like order. signal is taken
// before the round starts so no agent sees a vote cast in the same round.
func (n *Network) runRound(rng *rand.Rand, parties *party.Registry, order, signal []int, system VotingSystem, stage int) ([]int, error) {
	index := make(map[int]int, len(order))
	for i, id := range order {
		index[id] = i
	}

	counts := make([]int, len(order))
	for i, a := range n.agents {
		support, err := neighborSupport(a, signal, index)
		if err != nil {
			return nil, fmt.Errorf("agent %d neighbor support: %w", i, err)
		}
		vote, err := a.Vote(rng, parties, order, support)
		if err != nil {
			return nil, fmt.Errorf("agent %d vote: %w", i, err)
		}
		if err := n.tallyVote(counts, index, order, i, vote, stage); err != nil {
			return nil, err
		}
	}

	n.logger.Debug("round complete", "system", system, "stage", stage, "election", n.rounds+1, "candidates", order, "votes", counts)
	n.decisions.Log(map[string]any{
		"event":    "round",
		"election": n.rounds + 1,
		"system":   string(system),
		"stage":    stage,
		"order":    order,
		"tally":    counts,
		"leader":   order[Winner(counts)],
	})
	return counts, nil
}

// tallyVote adds agent i's vote to counts, which are indexed like order.
// A vote for a party outside order is logged and returned as
// ErrInvariantViolation.
func (n *Network) tallyVote(counts []int, index map[int]int, order []int, i, vote, stage int) error {
	pos, ok := index[vote]
	if !ok {
		n.logger.Error("vote outside candidate set", "agent", i, "vote", vote, "candidates", order, "stage", stage)
		return fmt.Errorf("%w: agent %d voted for party %d outside candidates %v",
			ErrInvariantViolation, i, vote, order)
	}
	counts[pos]++
	return nil
}

// neighborSupport is the fraction of the agent's voting friends that chose
// each candidate in signal. Friends without a vote, or with a vote for a
// party outside the candidates, are left out. With no counted friend the
// support is all zeros.
func neighborSupport(a *agent.Agent, signal []int, index map[int]int) (probability.Preferences, error) {
	counts := make([]int, len(index))
	total := 0
	for _, f := range a.Friends() {
		vote := signal[f]
		if vote == constants.NoVote {
			continue
		}
		if pos, ok := index[vote]; ok {
			counts[pos]++
			total++
		}
	}
	if total == 0 {
		return probability.Zero(len(index)), nil
	}
	return probability.NormalizeCounts(counts)
}

// snapshot copies one vote field of every agent, NoVote where absent.
func (n *Network) snapshot(field func(*agent.Agent) (int, bool)) []int {
	votes := make([]int, len(n.agents))
	for i, a := range n.agents {
		if v, ok := field(a); ok {
			votes[i] = v
		} else {
			votes[i] = constants.NoVote
		}
	}
	return votes
}

func (n *Network) commit() {
	for _, a := range n.agents {
		a.CommitVote()
	}
	n.state = StateRoundCommitted
}

func tally(order, counts []int) Tally {
	t := make(Tally, len(order))
	for i, id := range order {
		t[id] = counts[i]
	}
	return t
}

// Winner returns the index of the highest count. Ties go to the later index.
// It returns -1 for an empty slice.
func Winner(counts []int) int {
	if len(counts) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(counts); i++ {
		if counts[i] >= counts[best] {
			best = i
		}
	}
	return best
}

// TopTwo returns the indices of the highest and second-highest counts, with
// ties going to the later index. counts must have at least two entries.
func TopTwo(counts []int) (winner, runnerUp int) {
	if counts[0] > counts[1] {
		winner, runnerUp = 0, 1
	} else {
		winner, runnerUp = 1, 0
	}
	for i := 2; i < len(counts); i++ {
		if counts[i] >= counts[winner] {
			runnerUp = winner
			winner = i
		} else if counts[i] >= counts[runnerUp] {
			runnerUp = i
		}
	}
	return winner, runnerUp
}
