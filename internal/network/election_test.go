package network

import (
	"bytes"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/nvandessel/electsim/internal/agent"
	"github.com/nvandessel/electsim/internal/party"
	"github.com/nvandessel/electsim/internal/probability"
)

func newParties(t *testing.T, positions ...float64) *party.Registry {
	t.Helper()
	names := make([]string, len(positions))
	prefs := make([]probability.Preferences, len(positions))
	for i, p := range positions {
		names[i] = string(rune('A' + i))
		prefs[i] = probability.NewPreferences([]float64{p})
	}
	r, err := party.NewRegistry(len(positions), names, prefs)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func newNetwork(t *testing.T, seed uint64, cfg Config) *Network {
	t.Helper()
	net, err := NewWattsStrogatz(newRNG(seed), cfg)
	if err != nil {
		t.Fatalf("NewWattsStrogatz: %v", err)
	}
	return net
}

// pinPositions rebuilds every agent at the given one-dimensional position,
// keeping friendships and traits.
func pinPositions(net *Network, pos float64) {
	for i, a := range net.agents {
		friends := make([]agent.Friendship, 0, len(a.Friends()))
		for _, f := range a.Friends() {
			friends = append(friends, agent.Friendship{Agent: f, Strength: 1})
		}
		net.agents[i] = agent.NewWithTraits(friends, probability.NewPreferences([]float64{pos}),
			a.Loyalty(), a.Susceptibility())
	}
}

func TestParseVotingSystem(t *testing.T) {
	tests := []struct {
		input   string
		want    VotingSystem
		wantErr bool
	}{
		{"fptp", FPTP, false},
		{"FPTP", FPTP, false},
		{"plurality", FPTP, false},
		{"two-round", TwoRound, false},
		{" Runoff ", TwoRound, false},
		{"borda", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseVotingSystem(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrParameter) {
					t.Errorf("error = %v, want ErrParameter", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseVotingSystem(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
			}
			if !got.Valid() {
				t.Errorf("%q not Valid()", got)
			}
		})
	}

	if VotingSystem("borda").Valid() {
		t.Error("unknown system reported valid")
	}
}

func TestWinner_TiesGoToLaterParty(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   int
	}{
		{"empty", nil, -1},
		{"single", []int{3}, 0},
		{"clear", []int{1, 9, 2}, 1},
		{"two-way tie", []int{3, 3}, 1},
		{"tie at the top", []int{4, 9, 9}, 2},
		{"tie not at the end", []int{9, 9, 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Winner(tt.counts); got != tt.want {
				t.Errorf("Winner(%v) = %d, want %d", tt.counts, got, tt.want)
			}
		})
	}
}

func TestTopTwo(t *testing.T) {
	tests := []struct {
		name       string
		counts     []int
		wantWinner int
		wantRunner int
	}{
		{"first ahead", []int{5, 2}, 0, 1},
		{"tied pair", []int{5, 5}, 1, 0},
		{"later tie takes the lead", []int{7, 2, 7}, 2, 0},
		{"tie for first", []int{1, 4, 4, 2}, 2, 1},
		{"tie for second", []int{9, 1, 3, 3}, 0, 3},
		{"leader at end", []int{1, 2, 3, 4, 5}, 4, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, r := TopTwo(tt.counts)
			if w != tt.wantWinner || r != tt.wantRunner {
				t.Errorf("TopTwo(%v) = (%d, %d), want (%d, %d)", tt.counts, w, r, tt.wantWinner, tt.wantRunner)
			}
		})
	}
}

func TestNeighborSupport(t *testing.T) {
	a := agent.NewWithTraits(
		[]agent.Friendship{{Agent: 1, Strength: 1}, {Agent: 2, Strength: 1}, {Agent: 3, Strength: 1}, {Agent: 4, Strength: 1}},
		probability.NewPreferences([]float64{0.5}), probability.NewProbability(0.5), probability.NewProbability(0.5))

	t.Run("excludes voteless and non-candidate friends", func(t *testing.T) {
		// Friend 2 has no vote; friend 4 voted for party 9, not a candidate.
		signal := []int{0, 7, -1, 5, 9}
		support, err := neighborSupport(a, signal, map[int]int{5: 0, 7: 1})
		if err != nil {
			t.Fatalf("neighborSupport: %v", err)
		}
		if support.At(0).Value() != 0.5 || support.At(1).Value() != 0.5 {
			t.Errorf("support = %v, want [0.5 0.5]", support)
		}
	})

	t.Run("no voting friends gives zero support", func(t *testing.T) {
		signal := []int{0, -1, -1, -1, -1}
		support, err := neighborSupport(a, signal, map[int]int{5: 0, 7: 1})
		if err != nil {
			t.Fatalf("neighborSupport: %v", err)
		}
		if support.Len() != 2 || !support.IsZero() {
			t.Errorf("support = %v, want two zeros", support)
		}
	})
}

func TestSeedPreviousVotes(t *testing.T) {
	parties := newParties(t, 0.2, 0.8)

	t.Run("all new voters", func(t *testing.T) {
		net := newNetwork(t, 11, Config{Nodes: 50, MeanDegree: 4, Beta: 0.1, Dimensions: 1})
		if err := net.SeedPreviousVotes(newRNG(1), parties, probability.NewProbability(1)); err != nil {
			t.Fatalf("SeedPreviousVotes: %v", err)
		}
		for i, a := range net.Agents() {
			if _, ok := a.LastVote(); ok {
				t.Fatalf("agent %d seeded although every agent is a new voter", i)
			}
		}
		if net.State() != StateSeeded {
			t.Errorf("State = %s, want seeded", net.State())
		}
	})

	t.Run("no new voters", func(t *testing.T) {
		net := newNetwork(t, 12, Config{Nodes: 50, MeanDegree: 4, Beta: 0.1, Dimensions: 1})
		if err := net.SeedPreviousVotes(newRNG(2), parties, probability.NewProbability(0)); err != nil {
			t.Fatalf("SeedPreviousVotes: %v", err)
		}
		for i, a := range net.Agents() {
			v, ok := a.LastVote()
			if !ok || (v != 0 && v != 1) {
				t.Fatalf("agent %d last vote = %d, %v; want a seeded party", i, v, ok)
			}
		}
	})

	t.Run("rejected after an election", func(t *testing.T) {
		net := newNetwork(t, 13, Config{Nodes: 50, MeanDegree: 4, Beta: 0.1, Dimensions: 1})
		rng := newRNG(3)
		if _, err := net.HoldElection(rng, parties, FPTP); err != nil {
			t.Fatalf("HoldElection: %v", err)
		}
		err := net.SeedPreviousVotes(rng, parties, probability.NewProbability(0.2))
		if !errors.Is(err, ErrAlreadyVoted) {
			t.Errorf("error = %v, want ErrAlreadyVoted", err)
		}
	})
}

func TestHoldElection_ParameterErrors(t *testing.T) {
	net := newNetwork(t, 14, Config{Nodes: 30, MeanDegree: 4, Beta: 0.1, Dimensions: 1})
	empty, err := party.NewRegistry(0, nil, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	two := newParties(t, 0.2, 0.8)
	flat, err := party.NewRegistry(2, []string{"a", "b"}, []probability.Preferences{
		probability.NewPreferences([]float64{0.1, 0.1}),
		probability.NewPreferences([]float64{0.9, 0.9}),
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	tests := []struct {
		name    string
		parties *party.Registry
		system  VotingSystem
		want    error
	}{
		{"no parties", empty, FPTP, ErrParameter},
		{"runoff with one party", newParties(t, 0.5), TwoRound, ErrParameter},
		{"unknown system", two, VotingSystem("borda"), ErrParameter},
		{"dimension mismatch", flat, FPTP, probability.ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := net.HoldElection(newRNG(1), tt.parties, tt.system)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	for i, a := range net.Agents() {
		if _, ok := a.CurrentVote(); ok {
			t.Fatalf("agent %d voted although every election was rejected", i)
		}
	}
	if net.State() != StateUninitialized {
		t.Errorf("State = %s, want uninitialized", net.State())
	}
}

func TestHoldElection_SingleParty(t *testing.T) {
	net := newNetwork(t, 15, Config{Nodes: 30, MeanDegree: 4, Beta: 0.1, Dimensions: 1})
	res, err := net.HoldElection(newRNG(1), newParties(t, 0.5), FPTP)
	if err != nil {
		t.Fatalf("HoldElection: %v", err)
	}
	if res.Winner != 0 || res.Final()[0] != 30 {
		t.Errorf("result = %+v, want party 0 with all 30 votes", res)
	}
}

func TestHoldElection_CloseCandidateDominates(t *testing.T) {
	const nodes = 300
	net := newNetwork(t, 16, Config{Nodes: nodes, MeanDegree: 8, Beta: 0.3, Dimensions: 1})
	pinPositions(net, 0.1)
	parties := newParties(t, 0.1, 0.9)
	rng := newRNG(16)

	if err := net.SeedPreviousVotes(rng, parties, probability.NewProbability(0.2)); err != nil {
		t.Fatalf("SeedPreviousVotes: %v", err)
	}
	for round := 0; round < 5; round++ {
		res, err := net.HoldElection(rng, parties, FPTP)
		if err != nil {
			t.Fatalf("round %d: HoldElection: %v", round, err)
		}
		if res.Winner != 0 {
			t.Errorf("round %d: winner = %d, want 0", round, res.Winner)
		}
		if share := float64(res.Final()[0]) / nodes; share < 0.9 {
			t.Errorf("round %d: close party share = %.3f, want > 0.9", round, share)
		}
		if res.RunnerUp != -1 || len(res.Tallies) != 1 {
			t.Errorf("round %d: FPTP result shape = %+v", round, res)
		}
	}
	if net.Rounds() != 5 || net.State() != StateRoundCommitted {
		t.Errorf("Rounds, State = %d, %s; want 5, round-committed", net.Rounds(), net.State())
	}
}

func TestHoldElection_TwoRound(t *testing.T) {
	const nodes = 400
	net := newNetwork(t, 17, Config{Nodes: nodes, MeanDegree: 8, Beta: 0.5, Dimensions: 1})
	parties := newParties(t, 0.05, 0.35, 0.5, 0.65, 0.98)
	rng := newRNG(17)
	if err := net.SeedPreviousVotes(rng, parties, probability.NewProbability(0.2)); err != nil {
		t.Fatalf("SeedPreviousVotes: %v", err)
	}

	for round := 0; round < 3; round++ {
		res, err := net.HoldElection(rng, parties, TwoRound)
		if err != nil {
			t.Fatalf("round %d: HoldElection: %v", round, err)
		}
		if len(res.Tallies) != 2 {
			t.Fatalf("round %d: %d tallies, want 2", round, len(res.Tallies))
		}
		first, second := res.Tallies[0], res.Tallies[1]

		order := parties.OrderedIDs()
		counts := make([]int, len(order))
		for i, id := range order {
			counts[i] = first[id]
		}
		w, r := TopTwo(counts)
		wantPair := []int{order[w], order[r]}
		slices.Sort(wantPair)
		if got := slices.Sorted(maps.Keys(second)); !slices.Equal(got, wantPair) {
			t.Errorf("round %d: runoff candidates = %v, want %v", round, got, wantPair)
		}
		if first.Total() != nodes || second.Total() != nodes {
			t.Errorf("round %d: totals = %d, %d; want %d each", round, first.Total(), second.Total(), nodes)
		}
		if res.RunnerUp != order[r] {
			t.Errorf("round %d: runner-up = %d, want %d", round, res.RunnerUp, order[r])
		}
		if _, ok := second[res.Winner]; !ok {
			t.Errorf("round %d: winner %d not in runoff", round, res.Winner)
		}

		// The runoff is not committed: history holds round-one choices.
		history := Tally{}
		for _, a := range net.Agents() {
			v, ok := a.LastVote()
			if !ok {
				t.Fatal("agent has no last vote after an election")
			}
			history[v]++
		}
		for id, c := range first {
			if history[id] != c {
				t.Errorf("round %d: last votes for %d = %d, want round-one tally %d", round, id, history[id], c)
			}
		}
	}
}

func TestHoldElection_Deterministic(t *testing.T) {
	cfg := Config{Nodes: 120, MeanDegree: 6, Beta: 0.4, Dimensions: 1}
	run := func() []ElectionResult {
		net := newNetwork(t, 18, cfg)
		parties := newParties(t, 0.2, 0.5, 0.8)
		rng := newRNG(99)
		if err := net.SeedPreviousVotes(rng, parties, probability.NewProbability(0.3)); err != nil {
			t.Fatalf("SeedPreviousVotes: %v", err)
		}
		var out []ElectionResult
		for i := 0; i < 3; i++ {
			res, err := net.HoldElection(rng, parties, TwoRound)
			if err != nil {
				t.Fatalf("HoldElection: %v", err)
			}
			out = append(out, res)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i].Winner != b[i].Winner || a[i].RunnerUp != b[i].RunnerUp {
			t.Fatalf("election %d differs between equal seeds", i)
		}
		for r := range a[i].Tallies {
			if !maps.Equal(a[i].Tallies[r], b[i].Tallies[r]) {
				t.Fatalf("election %d round %d tallies differ: %v vs %v", i, r+1, a[i].Tallies[r], b[i].Tallies[r])
			}
		}
	}
}

func TestHoldElection_AttractivenessShiftsVotes(t *testing.T) {
	cfg := Config{Nodes: 400, MeanDegree: 8, Beta: 0.5, Dimensions: 1}
	vote := func(attractiveness float64) int {
		net := newNetwork(t, 19, cfg)
		pinPositions(net, 0.5)
		parties := newParties(t, 0.4, 0.6)
		if err := parties.SetAttractiveness(1, attractiveness); err != nil {
			t.Fatalf("SetAttractiveness: %v", err)
		}
		res, err := net.HoldElection(newRNG(19), parties, FPTP)
		if err != nil {
			t.Fatalf("HoldElection: %v", err)
		}
		return res.Final()[1]
	}

	if plain, boosted := vote(1), vote(5); boosted <= plain {
		t.Errorf("votes for boosted party = %d, want more than %d", boosted, plain)
	}
}

func TestHoldElection_Logging(t *testing.T) {
	var buf bytes.Buffer
	net := newNetwork(t, 20, Config{Nodes: 30, MeanDegree: 4, Beta: 0.1, Dimensions: 1})
	net.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), nil)

	if _, err := net.HoldElection(newRNG(1), newParties(t, 0.3, 0.7), TwoRound); err != nil {
		t.Fatalf("HoldElection: %v", err)
	}
	if got := strings.Count(buf.String(), "round complete"); got != 2 {
		t.Errorf("logged %d round summaries, want 2:\n%s", got, buf.String())
	}
}

func TestTallyVote_OutsideCandidates(t *testing.T) {
	var buf bytes.Buffer
	net := newNetwork(t, 21, Config{Nodes: 20, MeanDegree: 4, Beta: 0.1, Dimensions: 1})
	net.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError})), nil)

	order := []int{0, 2}
	index := map[int]int{0: 0, 2: 1}
	counts := make([]int, len(order))

	if err := net.tallyVote(counts, index, order, 3, 2, 2); err != nil {
		t.Fatalf("tallyVote for a candidate: %v", err)
	}
	err := net.tallyVote(counts, index, order, 4, 1, 2)
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("tallyVote error = %v, want ErrInvariantViolation", err)
	}
	if !slices.Equal(counts, []int{0, 1}) {
		t.Errorf("counts = %v, want [0 1]", counts)
	}
	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "vote outside candidate set") {
		t.Errorf("invariant violation not logged at error level:\n%s", out)
	}
}

func TestStateString(t *testing.T) {
	if StateRoundInProgress.String() != "round-in-progress" {
		t.Errorf("String() = %q", StateRoundInProgress.String())
	}
	if State(42).String() != "State(42)" {
		t.Errorf("String() = %q", State(42).String())
	}
}
