// Package store persists simulation runs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nvandessel/electsim/internal/network"
)

// ErrNotFound is returned when a run ID is unknown to the store.
var ErrNotFound = errors.New("run not found")

// Run is a completed simulation run with the result of every election.
type Run struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Seed     uint64          `json:"seed"`
	System   string          `json:"system"`
	Network  network.Config  `json:"network"`
	Parties  []string        `json:"parties"`
	Scenario json.RawMessage `json:"scenario,omitempty"`

	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration"`

	Results []network.ElectionResult `json:"results"`
}

// Winner returns the final election's winner, or -1 when the run has no results.
func (r *Run) Winner() int {
	if len(r.Results) == 0 {
		return -1
	}
	return r.Results[len(r.Results)-1].Winner
}

// PartyName returns the name of party id, or "" when out of range.
func (r *Run) PartyName(id int) string {
	if id < 0 || id >= len(r.Parties) {
		return ""
	}
	return r.Parties[id]
}

// Summary condenses the run for listings.
func (r *Run) Summary() RunSummary {
	winner := r.Winner()
	return RunSummary{
		ID:         r.ID,
		Name:       r.Name,
		Seed:       r.Seed,
		System:     r.System,
		Agents:     r.Network.Nodes,
		Rounds:     len(r.Results),
		Winner:     winner,
		WinnerName: r.PartyName(winner),
		CreatedAt:  r.CreatedAt,
	}
}

// RunSummary is the listing view of a run.
type RunSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Seed       uint64    `json:"seed"`
	System     string    `json:"system"`
	Agents     int       `json:"agents"`
	Rounds     int       `json:"rounds"`
	Winner     int       `json:"winner"`
	WinnerName string    `json:"winner_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListOptions filters ListRuns. A zero Limit lists every run.
type ListOptions struct {
	Limit int
	Name  string
}

// RunStore defines the interface for run persistence.
type RunStore interface {
	// SaveRun stores a run, replacing any run with the same ID.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun returns the run with the given ID, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns run summaries, newest first.
	ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, error)

	// DeleteRun removes a run and its elections, or returns ErrNotFound.
	DeleteRun(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}
