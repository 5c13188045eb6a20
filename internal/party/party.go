// Package party provides the party registry: identities, ideological
// positions and mutable attractiveness of everything agents can vote for.
package party

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"

	"github.com/nvandessel/electsim/internal/constants"
	"github.com/nvandessel/electsim/internal/probability"
)

var (
	// ErrArityMismatch is returned when names, positions and the party count disagree.
	ErrArityMismatch = errors.New("party arity mismatch")

	// ErrNotFound is returned for an unknown party id.
	ErrNotFound = errors.New("party not found")
)

// Party is a candidate agents can vote for.
type Party struct {
	ID             int
	Name           string
	Position       probability.Preferences
	Attractiveness float64 // exogenous appeal, unconstrained
}

// Registry maps party ids to parties. Ids are assigned sequentially at
// creation and are never reused or removed.
type Registry struct {
	parties map[int]*Party
	order   []int
	dims    int
}

// NewRegistry creates numParties parties with ids 0..numParties-1. names and
// positions must both have length numParties, and every position must have
// the same dimensionality.
func NewRegistry(numParties int, names []string, positions []probability.Preferences) (*Registry, error) {
	if numParties < 0 || len(names) != numParties || len(positions) != numParties {
		return nil, fmt.Errorf("%w: %d parties, %d names, %d positions",
			ErrArityMismatch, numParties, len(names), len(positions))
	}

	r := &Registry{
		parties: make(map[int]*Party, numParties),
		order:   make([]int, 0, numParties),
	}
	for i := 0; i < numParties; i++ {
		if i == 0 {
			r.dims = positions[0].Len()
		} else if positions[i].Len() != r.dims {
			return nil, fmt.Errorf("party %q: %w: %d != %d",
				names[i], probability.ErrDimensionMismatch, positions[i].Len(), r.dims)
		}
		r.parties[i] = &Party{
			ID:             i,
			Name:           names[i],
			Position:       positions[i],
			Attractiveness: constants.DefaultAttractiveness,
		}
		r.order = append(r.order, i)
	}
	sort.Ints(r.order)

	return r, nil
}

// GenerateRandom creates n parties named "0".."n-1" at uniformly random
// positions in a dims-dimensional space.
func GenerateRandom(rng *rand.Rand, n, dims int) (*Registry, error) {
	names := make([]string, n)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	return GenerateNamed(rng, names, dims)
}

// GenerateNamed creates one party per name at uniformly random positions.
func GenerateNamed(rng *rand.Rand, names []string, dims int) (*Registry, error) {
	positions := make([]probability.Preferences, len(names))
	for i := range positions {
		values := make([]float64, dims)
		for d := range values {
			values[d] = rng.Float64()
		}
		positions[i] = probability.NewPreferences(values)
	}
	return NewRegistry(len(names), names, positions)
}

// Get returns the party with the given id.
func (r *Registry) Get(id int) (*Party, error) {
	p, ok := r.parties[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return p, nil
}

// OrderedIDs returns all party ids in ascending order. This is the canonical
// party order used to index vote tallies.
func (r *Registry) OrderedIDs() []int {
	out := make([]int, len(r.order))
	copy(out, r.order)
	return out
}

// SetAttractiveness changes a party's attractiveness. The change affects
// only rounds held after the call.
func (r *Registry) SetAttractiveness(id int, value float64) error {
	p, err := r.Get(id)
	if err != nil {
		return err
	}
	p.Attractiveness = value
	return nil
}

// Lookup returns the id of the party with the given name.
func (r *Registry) Lookup(name string) (int, error) {
	for _, id := range r.order {
		if r.parties[id].Name == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Name returns the party's display name, or its id when unknown.
func (r *Registry) Name(id int) string {
	if p, ok := r.parties[id]; ok {
		return p.Name
	}
	return strconv.Itoa(id)
}

// Names returns party names in party order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	for i, id := range r.order {
		out[i] = r.parties[id].Name
	}
	return out
}

// Len returns the number of parties.
func (r *Registry) Len() int {
	return len(r.order)
}

// Dimensions returns the dimensionality shared by all party positions.
func (r *Registry) Dimensions() int {
	return r.dims
}
