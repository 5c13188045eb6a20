package simulation

import (
	"testing"
)

// AssertTalliesComplete checks that every agent voted in every stage of every
// election and that two-round runoffs only count the two finalists.
func AssertTalliesComplete(t *testing.T, result *RunResult) {
	t.Helper()
	agents := result.Scenario.Network.Nodes
	for i, election := range result.Results {
		for stage, tally := range election.Tallies {
			if got := tally.Total(); got != agents {
				t.Errorf("election %d stage %d: %d votes, want %d", i+1, stage+1, got, agents)
			}
			if stage == 1 && len(tally) != 2 {
				t.Errorf("election %d runoff has %d candidates, want 2", i+1, len(tally))
			}
		}
	}
}

// AssertWinner checks the final election's winner by name.
func AssertWinner(t *testing.T, result *RunResult, want string) {
	t.Helper()
	if got := result.WinnerName(); got != want {
		t.Errorf("winner = %q, want %q (final tally %v)", got, want, result.Final().Final())
	}
}

// AssertShareAtLeast checks that a party's final first-round share is at least min.
func AssertShareAtLeast(t *testing.T, result *RunResult, partyName string, min float64) {
	t.Helper()
	id, err := result.Registry.Lookup(partyName)
	if err != nil {
		t.Fatalf("unknown party %q: %v", partyName, err)
	}
	shares := Shares(result.Final().Tallies[0], len(result.Parties))
	if shares[id] < min {
		t.Errorf("%s share = %.3f, want >= %.3f", partyName, shares[id], min)
	}
}

// AssertBatchConsistent checks a batch result's internal bookkeeping: one
// winner per run, one run ID per run and shares summing to 1.
func AssertBatchConsistent(t *testing.T, batch *BatchResult) {
	t.Helper()
	wins := 0
	for _, w := range batch.Wins {
		wins += w
	}
	if wins != batch.Runs {
		t.Errorf("wins sum to %d, want %d", wins, batch.Runs)
	}
	if len(batch.RunIDs) != batch.Runs {
		t.Errorf("%d run IDs, want %d", len(batch.RunIDs), batch.Runs)
	}
	total := 0.0
	for _, s := range batch.MeanShare {
		total += s
	}
	if total < 0.999 || total > 1.001 {
		t.Errorf("mean shares sum to %v, want 1", total)
	}
}
