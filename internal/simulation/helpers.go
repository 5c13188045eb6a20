package simulation

import (
	"github.com/nvandessel/electsim/internal/network"
)

// Shares converts a tally into vote shares indexed by party ID for n parties.
// Parties missing from the tally get 0. An empty tally gives all zeros.
func Shares(tally network.Tally, n int) []float64 {
	shares := make([]float64, n)
	total := tally.Total()
	if total == 0 {
		return shares
	}
	for id, votes := range tally {
		if id >= 0 && id < n {
			shares[id] = float64(votes) / float64(total)
		}
	}
	return shares
}

// OneDimensional returns party specs on a line, pairing names[i] with positions[i].
func OneDimensional(names []string, positions ...float64) []PartySpec {
	specs := make([]PartySpec, 0, len(names))
	for i, name := range names {
		if i >= len(positions) {
			break
		}
		specs = append(specs, PartySpec{Name: name, Position: []float64{positions[i]}})
	}
	return specs
}

// Float returns a pointer to v, for optional attractiveness overrides.
func Float(v float64) *float64 {
	return &v
}
