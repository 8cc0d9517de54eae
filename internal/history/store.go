// Package history persists finished build reports in SQLite so operators can
// inspect run trends without digging through report files.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/dochub/internal/report"
)

// Store records finished runs. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Entry is one recorded run summary.
type Entry struct {
	RunID     string
	Revision  string
	Start     time.Time
	Duration  time.Duration
	Succeeded int
	Failed    int
	Skipped   int
	HubStatus report.HubStatus
	Aborted   bool
}

// Open opens (and initializes) the history database.
// Use ":memory:" for an in-memory database, or a file path for persistence.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		revision TEXT,
		started_at INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		hub_status TEXT NOT NULL,
		aborted INTEGER NOT NULL,
		report BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records a finalized report.
func (s *Store) Append(ctx context.Context, r *report.BuildReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	failed := r.Counts[report.OutcomeFailedRecoverable] + r.Counts[report.OutcomeFailedFatal]
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, revision, started_at, duration_ns, succeeded, failed, skipped, hub_status, aborted, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Revision, r.Start.Unix(), int64(r.Duration),
		r.Counts[report.OutcomeSucceeded], failed, r.Counts[report.OutcomeSkipped],
		string(r.HubStatus), boolToInt(r.Aborted), blob,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Recent lists the most recent runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, revision, started_at, duration_ns, succeeded, failed, skipped, hub_status, aborted
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started int64
		var durationNS int64
		var aborted int
		var hub string
		if err := rows.Scan(&e.RunID, &e.Revision, &started, &durationNS, &e.Succeeded, &e.Failed, &e.Skipped, &hub, &aborted); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.Start = time.Unix(started, 0)
		e.Duration = time.Duration(durationNS)
		e.HubStatus = report.HubStatus(hub)
		e.Aborted = aborted != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Report loads the full persisted report for a run.
func (s *Store) Report(ctx context.Context, runID string) (*report.BuildReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT report FROM runs WHERE run_id = ?", runID).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	var r report.BuildReport
	if err := json.Unmarshal(blob, &r); err != nil {
		return nil, fmt.Errorf("parse stored report: %w", err)
	}
	return &r, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
