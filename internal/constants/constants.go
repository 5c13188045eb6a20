// Package constants provides named constants used throughout the electsim codebase.
// This centralizes the voting model's tuning parameters in one place.
package constants

// Agent decision model constants
const (
	// DistanceMultiplier scales ideological distance before exponentiation.
	// The steep negative value makes the distance score close to (but not
	// exactly) nearest-party selection.
	DistanceMultiplier = -10.0

	// PeerPressure is the weight of neighbor support in the social score,
	// further scaled by each agent's susceptibility.
	PeerPressure = 0.3

	// ExternalEvents is the weight of party attractiveness in the social score.
	ExternalEvents = 0.5
)

// Trait distribution constants. Loyalty, susceptibility and every dimension of
// an agent's ideological position are drawn from Normal(TraitMean, TraitStdDev)
// and clamped into [0, 1].
const (
	TraitMean   = 0.5
	TraitStdDev = 0.13
)

// Party defaults
const (
	// DefaultAttractiveness is the exogenous appeal every party starts with.
	DefaultAttractiveness = 1.0
)

// Relationship defaults
const (
	// DefaultFriendshipStrength is assigned to every edge of a generated network.
	// Strength is carried for extensibility; the voting model weighs all
	// friends equally.
	DefaultFriendshipStrength = 1.0
)

// Simulation defaults: the reference experiment of 1000 agents.
const (
	DefaultAgents     = 1000
	DefaultMeanDegree = 24
	DefaultBeta       = 0.7
	DefaultDimensions = 1
	DefaultRounds     = 1
	DefaultNewVoters  = 0.2
	DefaultSeed       = 1
)

// NoVote marks an absent vote in snapshots and serialized results.
const NoVote = -1
