// Package history records completed runs in a SQLite database so operators
// can review what past runs did ticket by ticket.
package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/armada/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// RunSummary is one row of `armada history`.
type RunSummary struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time
	Waves       int
	Total       int
	Completed   int
	Failed      int
	Blocked     int
	Skipped     int
	Conflicts   int
	Validation  models.ValidationOutcome
}

// TicketRecord is one ticket's stored terminal state.
type TicketRecord struct {
	Ticket int
	Wave   int
	Status models.TicketStatus
	Branch string
	Error  string
}

// Store manages the run-history SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the history database at dbPath.
// ":memory:" is supported for tests.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// busy_timeout first so later statements wait on locks instead of
	// failing immediately.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure history database: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records one completed run and all its ticket results.
func (s *Store) SaveRun(run *models.RunResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer tx.Rollback()

	counts := run.Counts()
	_, err = tx.Exec(
		`INSERT INTO runs (run_id, started_at, completed_at, waves, total, completed, failed, blocked, skipped, conflicts, validation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt, run.CompletedAt, len(run.Waves),
		counts.Total, counts.Completed, counts.Failed, counts.Blocked, counts.Skipped,
		len(run.Conflicts), string(run.Validation),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO ticket_results (run_id, ticket, wave, status, branch, error)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ticket insert: %w", err)
	}
	defer stmt.Close()

	for _, wave := range run.Waves {
		for _, ticket := range wave.Tickets {
			res, ok := run.Results[ticket]
			if !ok {
				continue
			}
			if _, err := stmt.Exec(run.RunID, ticket, wave.Number, string(res.Status), res.BranchName, res.ErrorMessage); err != nil {
				return fmt.Errorf("insert ticket #%d: %w", ticket, err)
			}
		}
	}

	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT run_id, started_at, completed_at, waves, total, completed, failed, blocked, skipped, conflicts, validation
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var validation string
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.CompletedAt, &r.Waves, &r.Total,
			&r.Completed, &r.Failed, &r.Blocked, &r.Skipped, &r.Conflicts, &validation); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Validation = models.ValidationOutcome(validation)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// TicketResults returns the stored ticket results of one run, in wave then
// ticket order.
func (s *Store) TicketResults(runID string) ([]TicketRecord, error) {
	rows, err := s.db.Query(
		`SELECT ticket, wave, status, branch, error
		 FROM ticket_results WHERE run_id = ? ORDER BY wave, ticket`, runID)
	if err != nil {
		return nil, fmt.Errorf("query ticket results: %w", err)
	}
	defer rows.Close()

	var records []TicketRecord
	for rows.Next() {
		var rec TicketRecord
		var status string
		if err := rows.Scan(&rec.Ticket, &rec.Wave, &status, &rec.Branch, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan ticket result: %w", err)
		}
		rec.Status = models.TicketStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}
