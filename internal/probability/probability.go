// Package probability provides the bounded scalar and preference vector types
// underlying every stochastic decision in the simulation.
package probability

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
)

var (
	// ErrDimensionMismatch is returned when two preference vectors of
	// different length are compared.
	ErrDimensionMismatch = errors.New("preference dimension mismatch")

	// ErrDegenerateNormalization is returned when sum-normalization is asked
	// to normalize values that sum to zero.
	ErrDegenerateNormalization = errors.New("values cannot sum to 0")
)

// Probability is a float64 constrained to [0, 1].
type Probability struct {
	value float64
}

// NewProbability clamps value into [0, 1]. NaN and negative values become 0,
// values above 1 (including +Inf) become 1.
func NewProbability(value float64) Probability {
	if math.IsNaN(value) || value < 0 {
		return Probability{value: 0}
	}
	if value > 1 {
		return Probability{value: 1}
	}
	return Probability{value: value}
}

// Value returns the underlying float.
func (p Probability) Value() float64 {
	return p.value
}

// Difference returns |p - other|.
func (p Probability) Difference(other Probability) Probability {
	return Probability{value: math.Abs(p.value - other.value)}
}

// Powi raises p to the integer power n.
func (p Probability) Powi(n int) Probability {
	return NewProbability(math.Pow(p.value, float64(n)))
}

// String implements fmt.Stringer.
func (p Probability) String() string {
	return strconv.FormatFloat(p.value, 'g', -1, 64)
}

// Preferences is an ordered, fixed-length vector of probabilities. It doubles
// as a position in ideological space and as a discrete distribution over
// choices (parties, neighbor-support buckets).
type Preferences struct {
	values []Probability
}

// NewPreferences clamps each value independently.
func NewPreferences(values []float64) Preferences {
	ps := make([]Probability, len(values))
	for i, v := range values {
		ps[i] = NewProbability(v)
	}
	return Preferences{values: ps}
}

// Normalize builds a Preferences that sums to 1. Negative, NaN and infinite
// inputs are floored to 0 first. An empty input yields an empty vector; an
// input that sums to 0 yields ErrDegenerateNormalization.
func Normalize(values []float64) (Preferences, error) {
	if len(values) == 0 {
		return Preferences{}, nil
	}

	floored := make([]float64, len(values))
	total := 0.0
	for i, v := range values {
		if v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			v = 0
		}
		floored[i] = v
		total += v
	}
	if total == 0 {
		return Preferences{}, ErrDegenerateNormalization
	}

	ps := make([]Probability, len(floored))
	for i, v := range floored {
		ps[i] = NewProbability(v / total)
	}
	return Preferences{values: ps}, nil
}

// NormalizeCounts normalizes integer counts, e.g. a vote histogram.
func NormalizeCounts(counts []int) (Preferences, error) {
	values := make([]float64, len(counts))
	for i, c := range counts {
		values[i] = float64(c)
	}
	return Normalize(values)
}

// Zero returns an all-zero vector of length n.
func Zero(n int) Preferences {
	return Preferences{values: make([]Probability, n)}
}

// Len returns the dimensionality of the vector.
func (p Preferences) Len() int {
	return len(p.values)
}

// At returns the probability at index i.
func (p Preferences) At(i int) Probability {
	return p.values[i]
}

// Values returns a copy of the underlying floats.
func (p Preferences) Values() []float64 {
	out := make([]float64, len(p.values))
	for i, v := range p.values {
		out[i] = v.value
	}
	return out
}

// Total returns the sum of all elements.
func (p Preferences) Total() float64 {
	total := 0.0
	for _, v := range p.values {
		total += v.value
	}
	return total
}

// IsZero reports whether every element is 0 (or the vector is empty).
func (p Preferences) IsZero() bool {
	for _, v := range p.values {
		if v.value != 0 {
			return false
		}
	}
	return true
}

// Distance returns the Euclidean distance between p and other.
func (p Preferences) Distance(other Preferences) (float64, error) {
	if len(p.values) != len(other.values) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(p.values), len(other.values))
	}

	sum := 0.0
	for i := range p.values {
		sum += p.values[i].Difference(other.values[i]).Powi(2).Value()
	}
	return math.Sqrt(sum), nil
}

// Mul returns the element-wise product of p and other. The result is not
// renormalized.
func (p Preferences) Mul(other Preferences) (Preferences, error) {
	if len(p.values) != len(other.values) {
		return Preferences{}, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(p.values), len(other.values))
	}

	out := make([]Probability, len(p.values))
	for i := range p.values {
		out[i] = Probability{value: p.values[i].value * other.values[i].value}
	}
	return Preferences{values: out}, nil
}

// Choose treats the vector as selection weights and returns the first index
// whose cumulative sum meets or exceeds draw. When rounding keeps every
// partial sum below draw, the last index is returned. An empty vector
// returns -1.
//
// For [0.1, 0.3, 0.6]: draw 0.1 -> 0, draw 0.4 -> 1, draw 1.0 -> 2.
func (p Preferences) Choose(draw float64) int {
	if len(p.values) == 0 {
		return -1
	}

	cumulative := 0.0
	for i, v := range p.values {
		cumulative += v.value
		if draw <= cumulative {
			return i
		}
	}
	return len(p.values) - 1
}

// ChooseRandom draws uniformly from [0, Total()] using rng and calls Choose.
func (p Preferences) ChooseRandom(rng *rand.Rand) int {
	return p.Choose(rng.Float64() * p.Total())
}

// String implements fmt.Stringer.
func (p Preferences) String() string {
	return fmt.Sprint(p.Values())
}
