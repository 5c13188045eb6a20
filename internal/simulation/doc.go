// Package simulation runs election experiments end to end.
//
// A Scenario describes one experiment: the Watts–Strogatz network, the
// parties (a built-in roster, an explicit list, named parties at random
// positions or a count of anonymous parties), the voting system, the number
// of consecutive elections and attractiveness events applied between them.
// The Runner turns a scenario into a RunResult using a single generator
// seeded from the scenario, so equal scenarios give identical runs.
//
// Every run gets a UUID that tags its decision trace lines and identifies it
// in the run store when one is configured.
//
// Usage:
//
//	r := simulation.NewRunner(store.NewMemoryRunStore())
//	result, err := r.Run(ctx, simulation.Scenario{
//	    Seed:    1,
//	    Network: network.DefaultConfig(),
//	    Roster:  "nl2023",
//	    System:  network.FPTP,
//	    Rounds:  4,
//	    Events:  []simulation.Event{{Round: 3, Party: "PVV", Attractiveness: 1.5}},
//	})
package simulation
