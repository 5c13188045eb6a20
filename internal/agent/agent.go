// Package agent implements the simulated voter: an ideological position, a
// fixed set of friends, loyalty and susceptibility traits, and a vote history.
//
// An agent scores every candidate party twice per round, once by ideological
// distance and once by peer pressure plus party attractiveness, multiplies the
// two and either draws a new vote from the product or repeats its previous
// vote, depending on its loyalty.
package agent

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/nvandessel/electsim/internal/constants"
	"github.com/nvandessel/electsim/internal/party"
	"github.com/nvandessel/electsim/internal/probability"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNoCandidates is returned by Vote when order is empty.
var ErrNoCandidates = errors.New("no candidate parties")

// Relationship describes one side of a two-way friendship.
type Relationship struct {
	// Strength is carried for extensibility; voting weighs every friend equally.
	Strength probability.Probability
}

// Friendship is a construction-time friend entry.
type Friendship struct {
	Agent    int
	Strength float64
}

// Agent is a simulated voter. Agents are identified by their index in the
// owning network.
type Agent struct {
	position       probability.Preferences
	friends        map[int]Relationship
	friendIDs      []int
	loyalty        probability.Probability
	susceptibility probability.Probability

	lastVote    int
	hasLast     bool
	currentVote int
	hasCurrent  bool
}

// NewTraitSampler returns the Normal(0.5, 0.13) distribution used for agent
// traits and positions, drawing from rng.
func NewTraitSampler(rng *rand.Rand) distuv.Normal {
	return distuv.Normal{Mu: constants.TraitMean, Sigma: constants.TraitStdDev, Src: rng}
}

// New creates an agent with loyalty and susceptibility sampled from the
// trait distribution and clamped into [0, 1].
func New(rng *rand.Rand, friends []Friendship, position probability.Preferences) *Agent {
	traits := NewTraitSampler(rng)
	loyalty := probability.NewProbability(traits.Rand())
	susceptibility := probability.NewProbability(traits.Rand())
	return NewWithTraits(friends, position, loyalty, susceptibility)
}

// NewWithTraits creates an agent with explicit traits.
func NewWithTraits(friends []Friendship, position probability.Preferences, loyalty, susceptibility probability.Probability) *Agent {
	a := &Agent{
		position:       position,
		friends:        make(map[int]Relationship, len(friends)),
		loyalty:        loyalty,
		susceptibility: susceptibility,
	}
	for _, f := range friends {
		a.friends[f.Agent] = Relationship{Strength: probability.NewProbability(f.Strength)}
	}
	a.friendIDs = make([]int, 0, len(a.friends))
	for id := range a.friends {
		a.friendIDs = append(a.friendIDs, id)
	}
	sort.Ints(a.friendIDs)
	return a
}

// Position returns the agent's ideological position.
func (a *Agent) Position() probability.Preferences {
	return a.position
}

// Friends returns the indices of the agent's friends in ascending order.
func (a *Agent) Friends() []int {
	return a.friendIDs
}

// Relationship returns the relationship with friend, if any.
func (a *Agent) Relationship(friend int) (Relationship, bool) {
	r, ok := a.friends[friend]
	return r, ok
}

// Loyalty is the probability the agent repeats its previous vote.
func (a *Agent) Loyalty() probability.Probability {
	return a.loyalty
}

// Susceptibility scales the peer-pressure signal.
func (a *Agent) Susceptibility() probability.Probability {
	return a.susceptibility
}

// LastVote returns the party voted for in the most recently committed round.
func (a *Agent) LastVote() (int, bool) {
	return a.lastVote, a.hasLast
}

// CurrentVote returns the party chosen in the round being computed (or the
// last uncommitted round).
func (a *Agent) CurrentVote() (int, bool) {
	return a.currentVote, a.hasCurrent
}

// SeedLastVote sets an initial vote history. Only the network's seeding pass
// calls this, before the first round.
func (a *Agent) SeedLastVote(partyID int) {
	a.lastVote, a.hasLast = partyID, true
}

// CommitVote copies the current vote into the last vote, clearing the last
// vote when the agent has no current vote. Only the network's round commit
// calls this.
func (a *Agent) CommitVote() {
	a.lastVote, a.hasLast = a.currentVote, a.hasCurrent
}

// DistanceScores scores each party in order by exp(DistanceMultiplier *
// distance) and normalizes the result.
func (a *Agent) DistanceScores(parties *party.Registry, order []int) (probability.Preferences, error) {
	exponents := make([]float64, len(order))
	for i, id := range order {
		p, err := parties.Get(id)
		if err != nil {
			return probability.Preferences{}, err
		}
		d, err := a.position.Distance(p.Position)
		if err != nil {
			return probability.Preferences{}, fmt.Errorf("distance to party %q: %w", p.Name, err)
		}
		exponents[i] = constants.DistanceMultiplier * d
	}
	return softmax(exponents)
}

// SocialScores scores each party in order by exp(PeerPressure *
// susceptibility * support[i] + ExternalEvents * attractiveness) and
// normalizes the result. support must be indexed like order.
func (a *Agent) SocialScores(parties *party.Registry, order []int, support probability.Preferences) (probability.Preferences, error) {
	if support.Len() != len(order) {
		return probability.Preferences{}, fmt.Errorf("neighbor support: %w: %d != %d",
			probability.ErrDimensionMismatch, support.Len(), len(order))
	}

	exponents := make([]float64, len(order))
	for i, id := range order {
		p, err := parties.Get(id)
		if err != nil {
			return probability.Preferences{}, err
		}
		exponents[i] = constants.PeerPressure*a.susceptibility.Value()*support.At(i).Value() +
			constants.ExternalEvents*p.Attractiveness
	}
	return softmax(exponents)
}

// Preferences returns the combined selection weights over order: the
// element-wise product of distance and social scores, not renormalized.
func (a *Agent) Preferences(parties *party.Registry, order []int, support probability.Preferences) (probability.Preferences, error) {
	social, err := a.SocialScores(parties, order, support)
	if err != nil {
		return probability.Preferences{}, err
	}
	distance, err := a.DistanceScores(parties, order)
	if err != nil {
		return probability.Preferences{}, err
	}
	return distance.Mul(social)
}

// Vote picks a party from order. With probability 1-loyalty, or whenever the
// previous vote is missing or not among the candidates, a new vote is drawn
// from the combined preferences; otherwise the previous vote is repeated.
// The choice is recorded as the current vote and returned.
func (a *Agent) Vote(rng *rand.Rand, parties *party.Registry, order []int, support probability.Preferences) (int, error) {
	if len(order) == 0 {
		return 0, ErrNoCandidates
	}
	combined, err := a.Preferences(parties, order, support)
	if err != nil {
		return 0, err
	}

	vote := a.lastVote
	if rng.Float64() > a.loyalty.Value() || !a.hasLast || !slices.Contains(order, a.lastVote) {
		vote = order[combined.ChooseRandom(rng)]
	}

	a.currentVote, a.hasCurrent = vote, true
	return vote, nil
}

// softmax exponentiates and normalizes. The largest exponent is subtracted
// first so large attractiveness values cannot overflow to +Inf.
func softmax(exponents []float64) (probability.Preferences, error) {
	if len(exponents) == 0 {
		return probability.Preferences{}, nil
	}
	maxExp := math.Inf(-1)
	for _, e := range exponents {
		maxExp = math.Max(maxExp, e)
	}
	scores := make([]float64, len(exponents))
	for i, e := range exponents {
		scores[i] = math.Exp(e - maxExp)
	}
	return probability.Normalize(scores)
}
