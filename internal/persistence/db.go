// Package persistence provides SQLite-based storage for run records,
// per-day snapshots, and benchmark results.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/housesim/internal/engine"
	"github.com/talgya/housesim/internal/metrics"
)

// DB wraps a SQLite connection for simulation result storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		houses INTEGER NOT NULL,
		days INTEGER NOT NULL,
		policy TEXT NOT NULL,
		noise REAL NOT NULL,
		config_json TEXT NOT NULL,
		best_objective REAL NOT NULL,
		final_m1 REAL NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		policy TEXT NOT NULL,
		noise REAL NOT NULL,
		m1 REAL NOT NULL,
		objective REAL NOT NULL,
		best_objective REAL NOT NULL,
		temperature REAL NOT NULL,
		acceptance_rate REAL NOT NULL,
		churn INTEGER NOT NULL,
		PRIMARY KEY (run_id, day)
	);

	CREATE TABLE IF NOT EXISTS bench_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bench_id TEXT NOT NULL,
		agents INTEGER NOT NULL,
		policy TEXT NOT NULL,
		runs INTEGER NOT NULL,
		mean_ms REAL NOT NULL,
		stddev_ms REAL NOT NULL,
		mean_m1 REAL NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id);
	CREATE INDEX IF NOT EXISTS idx_bench_id ON bench_results(bench_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun stores a completed run: the run record plus every day snapshot,
// in one transaction. Re-saving a run id replaces its snapshots.
func (db *DB) SaveRun(res *engine.Result) error {
	cfgJSON, err := json.Marshal(res.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO runs
		(run_id, seed, agents, houses, days, policy, noise,
		 config_json, best_objective, final_m1, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.Config.RunID, res.Config.Seed, res.Config.Agents, res.Config.Houses,
		res.Config.Days, res.Config.Policy.String(), res.Config.NoiseLevel,
		string(cfgJSON), res.BestObjective, res.FinalM1,
		res.Elapsed.Milliseconds(), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", res.Config.RunID, err)
	}

	if _, err := tx.Exec("DELETE FROM snapshots WHERE run_id = ?", res.Config.RunID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO snapshots
		(run_id, day, agents, policy, noise, m1, objective,
		 best_objective, temperature, acceptance_rate, churn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range res.Snapshots {
		_, err := stmt.Exec(
			s.RunID, s.Day, s.Agents, s.Policy, s.NoiseLevel,
			s.M1, s.Objective, s.BestObjective,
			s.Temperature, s.AcceptanceRate, s.Churn,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot day %d: %w", s.Day, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Debug("run saved", "run_id", res.Config.RunID, "snapshots", len(res.Snapshots))
	return nil
}

// LoadSnapshots returns the full day-ordered snapshot series of a run.
func (db *DB) LoadSnapshots(runID string) ([]metrics.Snapshot, error) {
	var snaps []metrics.Snapshot
	err := db.conn.Select(&snaps,
		`SELECT run_id, day, agents, policy, noise, m1, objective,
		        best_objective, temperature, acceptance_rate, churn
		 FROM snapshots WHERE run_id = ? ORDER BY day`, runID)
	if err != nil {
		return nil, fmt.Errorf("load snapshots for %s: %w", runID, err)
	}
	return snaps, nil
}

// RunRecord is a stored run summary.
type RunRecord struct {
	RunID         string  `db:"run_id"`
	Seed          int64   `db:"seed"`
	Agents        int     `db:"agents"`
	Houses        int     `db:"houses"`
	Days          int     `db:"days"`
	Policy        string  `db:"policy"`
	Noise         float64 `db:"noise"`
	ConfigJSON    string  `db:"config_json"`
	BestObjective float64 `db:"best_objective"`
	FinalM1       float64 `db:"final_m1"`
	ElapsedMS     int64   `db:"elapsed_ms"`
	CreatedAt     string  `db:"created_at"`
}

// LoadRun returns one stored run summary.
func (db *DB) LoadRun(runID string) (*RunRecord, error) {
	var rec RunRecord
	err := db.conn.Get(&rec, "SELECT * FROM runs WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return &rec, nil
}

// ListRuns returns the most recent run summaries, newest first.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	var recs []RunRecord
	err := db.conn.Select(&recs,
		"SELECT * FROM runs ORDER BY created_at DESC LIMIT ?", limit)
	return recs, err
}

// BenchRow is one stored benchmark aggregate.
type BenchRow struct {
	BenchID  string  `db:"bench_id"`
	Agents   int     `db:"agents"`
	Policy   string  `db:"policy"`
	Runs     int     `db:"runs"`
	MeanMS   float64 `db:"mean_ms"`
	StddevMS float64 `db:"stddev_ms"`
	MeanM1   float64 `db:"mean_m1"`
}

// SaveBench stores a batch of benchmark aggregates under a common bench id.
func (db *DB) SaveBench(rows []BenchRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range rows {
		_, err := tx.Exec(`INSERT INTO bench_results
			(bench_id, agents, policy, runs, mean_ms, stddev_ms, mean_m1, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.BenchID, r.Agents, r.Policy, r.Runs, r.MeanMS, r.StddevMS, r.MeanM1, now,
		)
		if err != nil {
			return fmt.Errorf("insert bench row (agents %d, policy %s): %w", r.Agents, r.Policy, err)
		}
	}

	return tx.Commit()
}

// LoadBench returns all aggregates recorded under a bench id, ordered by
// agent count then policy.
func (db *DB) LoadBench(benchID string) ([]BenchRow, error) {
	var rows []BenchRow
	err := db.conn.Select(&rows,
		`SELECT bench_id, agents, policy, runs, mean_ms, stddev_ms, mean_m1
		 FROM bench_results WHERE bench_id = ? ORDER BY agents, policy`, benchID)
	return rows, err
}
