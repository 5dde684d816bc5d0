package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Run statuses stored in the runs table.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run represents a row in the runs table.
type Run struct {
	RunID      string `json:"run_id"`
	UserID     string `json:"user_id,omitempty"`
	Problem    string `json:"problem"`
	Status     string `json:"status"`
	TestStatus string `json:"test_status,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// RunStep represents a row in the run_steps table.
type RunStep struct {
	ID         int    `json:"id"`
	RunID      string `json:"run_id"`
	Stage      string `json:"stage"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// InsertRun records a new run in the running state.
func (d *DB) InsertRun(runID, userID, problem string) error {
	_, err := d.conn.Exec(
		`INSERT INTO runs (run_id, user_id, problem, status) VALUES (?, ?, ?, ?)`,
		runID, userID, problem, RunStatusRunning,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("run %s already exists", runID)
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun marks a run completed or failed and stamps finished_at.
// testStatus holds the final test-run status when one was produced.
func (d *DB) FinishRun(runID, status, testStatus, errMsg string) error {
	res, err := d.conn.Exec(
		`UPDATE runs SET status = ?, test_status = ?, error = ?, finished_at = datetime('now')
		 WHERE run_id = ?`,
		status, testStatus, errMsg, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// RecordStep appends one stage transition to a run's step log.
func (d *DB) RecordStep(runID, stage string, startedAt, finishedAt time.Time, durationMS int64, errMsg string) error {
	_, err := d.conn.Exec(
		`INSERT INTO run_steps (run_id, stage, started_at, finished_at, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stage,
		startedAt.UTC().Format(time.RFC3339Nano),
		finishedAt.UTC().Format(time.RFC3339Nano),
		durationMS, errMsg,
	)
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return nil
}

// GetRun returns one run by id, or nil if it does not exist.
func (d *DB) GetRun(runID string) (*Run, error) {
	row := d.conn.QueryRow(
		`SELECT run_id, user_id, problem, status, test_status, error, created_at, finished_at
		 FROM runs WHERE run_id = ?`,
		runID,
	)
	var r Run
	var testStatus, errMsg, finishedAt sql.NullString
	err := row.Scan(&r.RunID, &r.UserID, &r.Problem, &r.Status, &testStatus, &errMsg, &r.CreatedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if testStatus.Valid {
		r.TestStatus = testStatus.String
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	if finishedAt.Valid {
		r.FinishedAt = finishedAt.String
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first.
func (d *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.Query(
		`SELECT run_id, user_id, problem, status, test_status, error, created_at, finished_at
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return scanRuns(rows)
}

// ListUserRuns returns the most recent runs for one user, newest first.
func (d *DB) ListUserRuns(userID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.Query(
		`SELECT run_id, user_id, problem, status, test_status, error, created_at, finished_at
		 FROM runs WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list user runs: %w", err)
	}
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var testStatus, errMsg, finishedAt sql.NullString
		if err := rows.Scan(&r.RunID, &r.UserID, &r.Problem, &r.Status, &testStatus, &errMsg, &r.CreatedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if testStatus.Valid {
			r.TestStatus = testStatus.String
		}
		if errMsg.Valid {
			r.Error = errMsg.String
		}
		if finishedAt.Valid {
			r.FinishedAt = finishedAt.String
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListSteps returns a run's stage transitions in execution order.
func (d *DB) ListSteps(runID string) ([]RunStep, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, stage, started_at, finished_at, duration_ms, error
		 FROM run_steps WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []RunStep
	for rows.Next() {
		var s RunStep
		var errMsg sql.NullString
		if err := rows.Scan(&s.ID, &s.RunID, &s.Stage, &s.StartedAt, &s.FinishedAt, &s.DurationMS, &errMsg); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if errMsg.Valid {
			s.Error = errMsg.String
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// CountRuns returns the total number of recorded runs.
func (d *DB) CountRuns() (int, error) {
	var n int
	if err := d.conn.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}
