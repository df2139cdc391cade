package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"go-etl-pipeline/internal/model"
)

// CheckpointStore records task completion in the checkpoints table.
type CheckpointStore struct {
	db *DB
}

// Checkpoints returns the checkpoint store backed by db.
func (db *DB) Checkpoints() *CheckpointStore {
	return &CheckpointStore{db: db}
}

// IsDone reports whether a completion record exists for key.
func (s *CheckpointStore) IsDone(ctx context.Context, key model.TaskKey) (bool, error) {
	var n int
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkpoints WHERE domain = ? AND stage = ?`,
		string(key.Domain), string(key.Stage)).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "failed to check checkpoint %s", key)
	}
	return n > 0, nil
}

// MarkDone writes (or replaces) the completion record of key.
func (s *CheckpointStore) MarkDone(ctx context.Context, key model.TaskKey, cp model.Checkpoint) error {
	completedAt := cp.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	_, err := s.db.sql.ExecContext(ctx, `
		INSERT INTO checkpoints (domain, stage, artifact, row_count, run_id, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain, stage) DO UPDATE SET
			artifact = excluded.artifact,
			row_count = excluded.row_count,
			run_id = excluded.run_id,
			completed_at = excluded.completed_at`,
		string(key.Domain), string(key.Stage), cp.Artifact, cp.Rows, cp.RunID, completedAt.UTC())
	return eris.Wrapf(err, "failed to mark %s done", key)
}

// Clear removes the completion record of key so the task runs again.
func (s *CheckpointStore) Clear(ctx context.Context, key model.TaskKey) error {
	_, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE domain = ? AND stage = ?`,
		string(key.Domain), string(key.Stage))
	return eris.Wrapf(err, "failed to clear checkpoint %s", key)
}

// Get returns the completion record of key.
func (s *CheckpointStore) Get(ctx context.Context, key model.TaskKey) (*model.Checkpoint, error) {
	var (
		cp       model.Checkpoint
		artifact sql.NullString
		runID    sql.NullString
	)
	err := s.db.sql.QueryRowContext(ctx, `
		SELECT artifact, row_count, run_id, completed_at FROM checkpoints
		WHERE domain = ? AND stage = ?`, string(key.Domain), string(key.Stage)).
		Scan(&artifact, &cp.Rows, &runID, &cp.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "checkpoint %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get checkpoint %s", key)
	}
	cp.Key = key
	cp.Artifact = artifact.String
	cp.RunID = runID.String
	return &cp, nil
}

// List returns every completion record ordered by domain and stage.
func (s *CheckpointStore) List(ctx context.Context) ([]model.Checkpoint, error) {
	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT domain, stage, artifact, row_count, run_id, completed_at
		FROM checkpoints ORDER BY domain, stage`)
	if err != nil {
		return nil, eris.Wrap(err, "failed to list checkpoints")
	}
	defer rows.Close()

	out := []model.Checkpoint{}
	for rows.Next() {
		var (
			cp              model.Checkpoint
			domain, stage   string
			artifact, runID sql.NullString
		)
		if err := rows.Scan(&domain, &stage, &artifact, &cp.Rows, &runID, &cp.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "failed to scan checkpoint")
		}
		cp.Key = model.TaskKey{Domain: model.Domain(domain), Stage: model.Stage(stage)}
		cp.Artifact = artifact.String
		cp.RunID = runID.String
		out = append(out, cp)
	}
	return out, eris.Wrap(rows.Err(), "failed to iterate checkpoints")
}
