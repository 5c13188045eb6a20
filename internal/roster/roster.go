// Package roster holds built-in party rosters: real elections with party
// positions on a single left-right axis and the official vote counts to
// compare simulated outcomes against.
package roster

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nvandessel/electsim/internal/party"
	"github.com/nvandessel/electsim/internal/probability"
)

// ErrUnknown is returned when no built-in roster has the requested name.
var ErrUnknown = errors.New("unknown roster")

// Party is one entry of a roster.
type Party struct {
	Name string `json:"name"`

	// Color is the party's display color as "#rrggbb".
	Color string `json:"color"`

	// LeftRight is the KiesKompas left-right score on a 0-10 scale.
	LeftRight float64 `json:"left_right"`

	// Votes is the official vote count.
	Votes int64 `json:"votes"`
}

// Roster is a named set of parties from one real election.
type Roster struct {
	Name    string  `json:"name"`
	Title   string  `json:"title"`
	Source  string  `json:"source"`
	Parties []Party `json:"parties"`
}

// Scale is the upper bound of the left-right axis used by LeftRight.
const Scale = 10.0

var builtin = map[string]*Roster{
	"nl2023": {
		Name:   "nl2023",
		Title:  "Tweede Kamer 2023",
		Source: "https://nl.wikipedia.org/wiki/Tweede_Kamerverkiezingen_2023; positions: tweedekamer2023.kieskompas.nl",
		Parties: []Party{
			{"GL PvdA", "#96541a", 2.25, 1_643_073},
			{"SP", "#ff0000", 1.15, 328_225},
			{"PvdD", "#153921", 0.25, 235_148},
			{"Volt", "#582c83", 4.3, 178_802},
			{"DENK", "#00b4af", 1.6, 246_765},
			{"CU", "#009be0", 3.4, 212_532},
			{"NSC", "#f0c400", 4.55, 1_343_287},
			{"VVD", "#f47621", 7.5, 1_589_519},
			{"D66", "#00af3f", 4.75, 656_292},
			{"50Plus", "#933487", 3.85, 51_043},
			{"FvD", "#84171a", 8.2, 232_963},
			{"JA21", "#df201a", 8.85, 71_345},
			{"PVV", "#003f6b", 5.45, 2_450_878},
			{"BBB", "#95c11f", 5.45, 485_551},
			{"SGP", "#e14400", 6.35, 217_270},
			{"CDA", "#007b5f", 6.15, 345_822},
		},
	},
	"nl2025": {
		Name:   "nl2025",
		Title:  "Tweede Kamer 2025",
		Source: "https://nl.wikipedia.org/wiki/Tweede_Kamerverkiezingen_2025; positions: tweedekamer2025.kieskompas.nl",
		Parties: []Party{
			{"GL PvdA", "#96541a", 1.9, 1_352_163},
			{"SP", "#ff0000", 0.95, 199_585},
			{"PvdD", "#153921", 0.2, 219_371},
			{"Volt", "#582c83", 2.3, 116_468},
			{"DENK", "#00b4af", 2.3, 250_368},
			{"CU", "#009be0", 3.65, 201_361},
			{"NSC", "#f0c400", 4.6, 39_408},
			{"VVD", "#f47621", 8.45, 1_505_829},
			{"D66", "#00af3f", 3.65, 1_790_634},
			{"50Plus", "#933487", 5.2, 151_053},
			{"FvD", "#84171a", 9.4, 480_393},
			{"JA21", "#df201a", 9.05, 628_517},
			{"PVV", "#003f6b", 6.9, 1_760_966},
			{"BBB", "#95c11f", 8.25, 279_916},
			{"SGP", "#e14400", 6.35, 238_093},
			{"CDA", "#007b5f", 5.6, 1_246_874},
		},
	},
}

// Lookup returns the built-in roster with the given name (case-insensitive).
// The returned roster is a copy and may be modified freely.
func Lookup(name string) (*Roster, error) {
	r, ok := builtin[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknown, name, strings.Join(Names(), ", "))
	}
	cp := *r
	cp.Parties = append([]Party(nil), r.Parties...)
	return &cp, nil
}

// Names returns the names of all built-in rosters, sorted.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry builds a one-dimensional party registry from the roster. Party
// ids follow roster order and positions are LeftRight scaled into [0, 1].
func (r *Roster) Registry() (*party.Registry, error) {
	names := make([]string, len(r.Parties))
	positions := make([]probability.Preferences, len(r.Parties))
	for i, p := range r.Parties {
		names[i] = p.Name
		positions[i] = probability.NewPreferences([]float64{p.LeftRight / Scale})
	}
	return party.NewRegistry(len(r.Parties), names, positions)
}

// TotalVotes returns the number of votes cast for roster parties.
func (r *Roster) TotalVotes() int64 {
	var total int64
	for _, p := range r.Parties {
		total += p.Votes
	}
	return total
}

// ReferenceShares returns each party's share of the official vote, in
// roster order.
func (r *Roster) ReferenceShares() []float64 {
	shares := make([]float64, len(r.Parties))
	total := r.TotalVotes()
	if total == 0 {
		return shares
	}
	for i, p := range r.Parties {
		shares[i] = float64(p.Votes) / float64(total)
	}
	return shares
}

// Colors returns party display colors keyed by party name.
func (r *Roster) Colors() map[string]string {
	colors := make(map[string]string, len(r.Parties))
	for _, p := range r.Parties {
		colors[p.Name] = p.Color
	}
	return colors
}
