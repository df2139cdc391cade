// Package store persists run history and task checkpoints in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"go-etl-pipeline/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	targets TEXT,
	status TEXT,
	executed INTEGER DEFAULT 0,
	skipped INTEGER DEFAULT 0,
	failed INTEGER DEFAULT 0,
	pending INTEGER DEFAULT 0,
	created_at DATETIME,
	updated_at DATETIME,
	ended_at DATETIME
);
CREATE TABLE IF NOT EXISTS task_runs (
	run_id TEXT,
	domain TEXT,
	stage TEXT,
	state TEXT,
	artifact TEXT,
	row_count INTEGER,
	error_message TEXT,
	started_at DATETIME,
	ended_at DATETIME,
	duration_ms INTEGER,
	PRIMARY KEY (run_id, domain, stage)
);
CREATE TABLE IF NOT EXISTS job_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	task TEXT,
	error_message TEXT,
	created_at DATETIME
);
CREATE TABLE IF NOT EXISTS checkpoints (
	domain TEXT,
	stage TEXT,
	artifact TEXT,
	row_count INTEGER,
	run_id TEXT,
	completed_at DATETIME,
	PRIMARY KEY (domain, stage)
);
CREATE TABLE IF NOT EXISTS profiles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	domain TEXT,
	stage TEXT,
	report TEXT,
	created_at DATETIME
);
`

// DB is the pipeline state database.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open state db %s", path)
	}
	// one writer at a time; sqlite serializes anyway
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "failed to create state tables")
	}
	return &DB{sql: conn}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.sql.Close()
}

// SaveRun stores a run in the running state. Saving an existing run id marks
// it running again.
func (db *DB) SaveRun(ctx context.Context, runID string, targets []model.TaskKey) error {
	targetsJSON, err := json.Marshal(targets)
	if err != nil {
		return eris.Wrap(err, "failed to encode targets")
	}
	now := time.Now().UTC()
	_, err = db.sql.ExecContext(ctx,
		`INSERT INTO runs (id, targets, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		runID, string(targetsJSON), "running", now, now)
	return eris.Wrapf(err, "failed to save run %s", runID)
}

// UpdateRunStatus sets the status of a run.
func (db *DB) UpdateRunStatus(ctx context.Context, runID, status string) error {
	now := time.Now().UTC()
	_, err := db.sql.ExecContext(ctx, `UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return eris.Wrapf(err, "failed to update run %s", runID)
}

// FinishRun stores the final status and counters of a run.
func (db *DB) FinishRun(ctx context.Context, summary *model.RunSummary) error {
	now := time.Now().UTC()
	endedAt := now
	if summary.EndTime != nil {
		endedAt = summary.EndTime.UTC()
	}
	_, err := db.sql.ExecContext(ctx,
		`UPDATE runs SET status = ?, executed = ?, skipped = ?, failed = ?, pending = ?, updated_at = ?, ended_at = ? WHERE id = ?`,
		summary.Status, summary.Executed, summary.Skipped, summary.Failed, summary.Pending, now, endedAt, summary.RunID)
	return eris.Wrapf(err, "failed to finish run %s", summary.RunID)
}

// SaveTaskResult inserts or replaces the result of a task within a run.
func (db *DB) SaveTaskResult(ctx context.Context, runID string, res model.TaskResult) error {
	var endedAt interface{}
	if res.EndedAt != nil {
		endedAt = res.EndedAt.UTC()
	}
	_, err := db.sql.ExecContext(ctx, `
		INSERT INTO task_runs (run_id, domain, stage, state, artifact, row_count, error_message, started_at, ended_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, domain, stage) DO UPDATE SET
			state = excluded.state,
			artifact = excluded.artifact,
			row_count = excluded.row_count,
			error_message = excluded.error_message,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			duration_ms = excluded.duration_ms`,
		runID, string(res.Key.Domain), string(res.Key.Stage), string(res.State), res.Artifact, res.Rows,
		res.Error, res.StartedAt.UTC(), endedAt, res.Duration.Milliseconds())
	return eris.Wrapf(err, "failed to save task %s of run %s", res.Key, runID)
}

// SaveJobError records an error for a run. task may be empty for run-level errors.
func (db *DB) SaveJobError(ctx context.Context, runID, task string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := db.sql.ExecContext(ctx,
		`INSERT INTO job_errors (run_id, task, error_message, created_at) VALUES (?, ?, ?, ?)`,
		runID, task, err.Error(), now)
	return eris.Wrapf(e, "failed to save error of run %s", runID)
}

// ListRuns returns all runs, newest first, without task details.
func (db *DB) ListRuns(ctx context.Context) ([]model.RunSummary, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT id, targets, status, executed, skipped, failed, pending, created_at, ended_at
		FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	runs := []model.RunSummary{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "failed to iterate runs")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*model.RunSummary, error) {
	var (
		run         model.RunSummary
		targetsJSON string
		endedAt     sql.NullTime
	)
	if err := s.Scan(&run.RunID, &targetsJSON, &run.Status, &run.Executed, &run.Skipped,
		&run.Failed, &run.Pending, &run.StartTime, &endedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(targetsJSON), &run.Targets); err != nil {
		return nil, eris.Wrapf(err, "failed to decode targets of run %s", run.RunID)
	}
	if endedAt.Valid {
		t := endedAt.Time
		run.EndTime = &t
	}
	return &run, nil
}

// GetRun fetches a run together with its task results.
func (db *DB) GetRun(ctx context.Context, runID string) (*model.RunSummary, error) {
	row := db.sql.QueryRowContext(ctx, `
		SELECT id, targets, status, executed, skipped, failed, pending, created_at, ended_at
		FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get run %s", runID)
	}

	run.Tasks, err = db.GetRunTasks(ctx, runID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetRunTasks returns the task results of a run in execution order.
func (db *DB) GetRunTasks(ctx context.Context, runID string) ([]model.TaskResult, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT domain, stage, state, artifact, row_count, error_message, started_at, ended_at, duration_ms
		FROM task_runs WHERE run_id = ? ORDER BY started_at, rowid`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get tasks of run %s", runID)
	}
	defer rows.Close()

	tasks := []model.TaskResult{}
	for rows.Next() {
		var (
			res              model.TaskResult
			domain, stage    string
			state            string
			artifact, errMsg sql.NullString
			endedAt          sql.NullTime
			durationMs       int64
		)
		if err := rows.Scan(&domain, &stage, &state, &artifact, &res.Rows, &errMsg,
			&res.StartedAt, &endedAt, &durationMs); err != nil {
			return nil, eris.Wrap(err, "failed to scan task")
		}
		res.Key = model.TaskKey{Domain: model.Domain(domain), Stage: model.Stage(stage)}
		res.State = model.TaskState(state)
		res.Artifact = artifact.String
		res.Error = errMsg.String
		if endedAt.Valid {
			t := endedAt.Time
			res.EndedAt = &t
		}
		res.Duration = time.Duration(durationMs) * time.Millisecond
		tasks = append(tasks, res)
	}
	return tasks, eris.Wrap(rows.Err(), "failed to iterate tasks")
}

// GetRunErrors returns the errors recorded for a run, oldest first.
func (db *DB) GetRunErrors(ctx context.Context, runID string) ([]model.RunError, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT id, run_id, task, error_message, created_at
		FROM job_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get errors of run %s", runID)
	}
	defer rows.Close()

	out := []model.RunError{}
	for rows.Next() {
		var (
			e    model.RunError
			task sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RunID, &task, &e.Message, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "failed to scan error")
		}
		e.Task = task.String
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "failed to iterate errors")
}

// SaveProfile stores a profiling report.
func (db *DB) SaveProfile(ctx context.Context, report *model.ProfileReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "failed to encode profile")
	}
	_, err = db.sql.ExecContext(ctx,
		`INSERT INTO profiles (run_id, domain, stage, report, created_at) VALUES (?, ?, ?, ?, ?)`,
		report.RunID, string(report.Domain), string(report.Stage), string(reportJSON), report.CreatedAt.UTC())
	return eris.Wrapf(err, "failed to save profile of %s/%s", report.Domain, report.Stage)
}

// GetProfiles returns the reports stored for a domain, newest first.
func (db *DB) GetProfiles(ctx context.Context, domain model.Domain) ([]model.ProfileReport, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT report FROM profiles WHERE domain = ? ORDER BY id DESC`, string(domain))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get profiles of %s", domain)
	}
	defer rows.Close()

	out := []model.ProfileReport{}
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, eris.Wrap(err, "failed to scan profile")
		}
		var report model.ProfileReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			return nil, eris.Wrap(err, "failed to decode profile")
		}
		out = append(out, report)
	}
	return out, eris.Wrap(rows.Err(), "failed to iterate profiles")
}
