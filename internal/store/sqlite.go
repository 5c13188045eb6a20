package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nvandessel/electsim/internal/network"
	_ "modernc.org/sqlite" // SQLite driver
)

// timeLayout is fixed-width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRunStore implements RunStore on a SQLite database.
type SQLiteRunStore struct {
	db   *sqlx.DB
	path string
}

type runRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Seed       int64          `db:"seed"`
	System     string         `db:"system"`
	Agents     int            `db:"agents"`
	MeanDegree int            `db:"mean_degree"`
	Beta       float64        `db:"beta"`
	Dimensions int            `db:"dimensions"`
	Rounds     int            `db:"rounds"`
	Parties    string         `db:"parties"`
	Scenario   sql.NullString `db:"scenario"`
	CreatedAt  string         `db:"created_at"`
	DurationMS int64          `db:"duration_ms"`
}

type roundRow struct {
	Round    int    `db:"round"`
	System   string `db:"system"`
	Winner   int    `db:"winner"`
	RunnerUp int    `db:"runner_up"`
}

type tallyRow struct {
	Round int `db:"round"`
	Stage int `db:"stage"`
	Party int `db:"party"`
	Votes int `db:"votes"`
}

type summaryRow struct {
	ID          string        `db:"id"`
	Name        string        `db:"name"`
	Seed        int64         `db:"seed"`
	System      string        `db:"system"`
	Agents      int           `db:"agents"`
	Rounds      int           `db:"rounds"`
	Parties     string        `db:"parties"`
	CreatedAt   string        `db:"created_at"`
	FinalWinner sql.NullInt64 `db:"final_winner"`
}

// NewSQLiteRunStore opens (creating if needed) the run database at path.
func NewSQLiteRunStore(path string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string {
	return s.path
}

// SaveRun writes the run and all its elections in one transaction.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	parties, err := json.Marshal(run.Parties)
	if err != nil {
		return fmt.Errorf("marshaling parties: %w", err)
	}
	var scenario sql.NullString
	if len(run.Scenario) > 0 {
		scenario = sql.NullString{String: string(run.Scenario), Valid: true}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return fmt.Errorf("replacing run %s: %w", run.ID, err)
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs (id, name, seed, system, agents, mean_degree, beta, dimensions,
			rounds, parties, scenario, created_at, duration_ms)
		VALUES (:id, :name, :seed, :system, :agents, :mean_degree, :beta, :dimensions,
			:rounds, :parties, :scenario, :created_at, :duration_ms)`,
		runRow{
			ID:         run.ID,
			Name:       run.Name,
			Seed:       int64(run.Seed),
			System:     run.System,
			Agents:     run.Network.Nodes,
			MeanDegree: run.Network.MeanDegree,
			Beta:       run.Network.Beta,
			Dimensions: run.Network.Dimensions,
			Rounds:     len(run.Results),
			Parties:    string(parties),
			Scenario:   scenario,
			CreatedAt:  run.CreatedAt.UTC().Format(timeLayout),
			DurationMS: run.Duration.Milliseconds(),
		})
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	roundStmt, err := tx.PreparexContext(ctx,
		`INSERT INTO rounds (run_id, round, system, winner, runner_up) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing rounds insert: %w", err)
	}
	defer roundStmt.Close()

	tallyStmt, err := tx.PreparexContext(ctx,
		`INSERT INTO tallies (run_id, round, stage, party, votes) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing tallies insert: %w", err)
	}
	defer tallyStmt.Close()

	for i, result := range run.Results {
		round := i + 1
		if _, err := roundStmt.ExecContext(ctx, run.ID, round, string(result.System), result.Winner, result.RunnerUp); err != nil {
			return fmt.Errorf("inserting round %d: %w", round, err)
		}
		for stage, tally := range result.Tallies {
			for party, votes := range tally {
				if _, err := tallyStmt.ExecContext(ctx, run.ID, round, stage+1, party, votes); err != nil {
					return fmt.Errorf("inserting tally for round %d stage %d: %w", round, stage+1, err)
				}
			}
		}
	}

	return tx.Commit()
}

// GetRun loads a run with all its elections.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var row runRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}

	run := &Run{
		ID:     row.ID,
		Name:   row.Name,
		Seed:   uint64(row.Seed),
		System: row.System,
		Network: network.Config{
			Nodes:      row.Agents,
			MeanDegree: row.MeanDegree,
			Beta:       row.Beta,
			Dimensions: row.Dimensions,
		},
		Duration: time.Duration(row.DurationMS) * time.Millisecond,
	}
	if err := json.Unmarshal([]byte(row.Parties), &run.Parties); err != nil {
		return nil, fmt.Errorf("decoding parties of run %s: %w", id, err)
	}
	if row.Scenario.Valid {
		run.Scenario = json.RawMessage(row.Scenario.String)
	}
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("decoding created_at of run %s: %w", id, err)
	}
	run.CreatedAt = created

	var rounds []roundRow
	if err := s.db.SelectContext(ctx, &rounds,
		`SELECT round, system, winner, runner_up FROM rounds WHERE run_id = ? ORDER BY round`, id); err != nil {
		return nil, fmt.Errorf("loading rounds of run %s: %w", id, err)
	}
	var tallies []tallyRow
	if err := s.db.SelectContext(ctx, &tallies,
		`SELECT round, stage, party, votes FROM tallies WHERE run_id = ? ORDER BY round, stage, party`, id); err != nil {
		return nil, fmt.Errorf("loading tallies of run %s: %w", id, err)
	}

	run.Results = make([]network.ElectionResult, len(rounds))
	byRound := make(map[int]int, len(rounds))
	for i, r := range rounds {
		run.Results[i] = network.ElectionResult{
			System:   network.VotingSystem(r.System),
			Winner:   r.Winner,
			RunnerUp: r.RunnerUp,
		}
		byRound[r.Round] = i
	}
	for _, t := range tallies {
		i, ok := byRound[t.Round]
		if !ok {
			continue
		}
		result := &run.Results[i]
		for len(result.Tallies) < t.Stage {
			result.Tallies = append(result.Tallies, network.Tally{})
		}
		result.Tallies[t.Stage-1][t.Party] = t.Votes
	}

	return run, nil
}

// ListRuns returns run summaries, newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, error) {
	query := `
		SELECT r.id, r.name, r.seed, r.system, r.agents, r.rounds, r.parties, r.created_at,
			(SELECT winner FROM rounds WHERE run_id = r.id ORDER BY round DESC LIMIT 1) AS final_winner
		FROM runs r`
	var args []any
	if opts.Name != "" {
		query += ` WHERE r.name = ?`
		args = append(args, opts.Name)
	}
	query += ` ORDER BY r.created_at DESC, r.id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	var rows []summaryRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	summaries := make([]RunSummary, 0, len(rows))
	for _, row := range rows {
		created, err := time.Parse(timeLayout, row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("decoding created_at of run %s: %w", row.ID, err)
		}
		summary := RunSummary{
			ID:        row.ID,
			Name:      row.Name,
			Seed:      uint64(row.Seed),
			System:    row.System,
			Agents:    row.Agents,
			Rounds:    row.Rounds,
			Winner:    -1,
			CreatedAt: created,
		}
		if row.FinalWinner.Valid {
			summary.Winner = int(row.FinalWinner.Int64)
			var parties []string
			if err := json.Unmarshal([]byte(row.Parties), &parties); err == nil && summary.Winner >= 0 && summary.Winner < len(parties) {
				summary.WinnerName = parties[summary.Winner]
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// DeleteRun removes a run; its rounds and tallies cascade.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}
