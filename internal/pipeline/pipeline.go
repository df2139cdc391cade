// Package pipeline builds and runs the extract, transform and load task graph
// of every domain.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"go-etl-pipeline/internal/dataset"
	"go-etl-pipeline/internal/model"
)

// ErrEmptyOutput is returned when an action succeeds without a dataset.
var ErrEmptyOutput = eris.New("task produced no dataset")

// Orchestrator runs requested tasks and their dependencies, skipping tasks
// that completed in an earlier run.
type Orchestrator struct {
	Graph       *Graph
	Artifacts   *ArtifactStore
	Checkpoints Checkpointer
	Recorder    Recorder
	// Profiler, when set, profiles each transform output before its load runs.
	Profiler *Profiler
	// Warehouse, when set, is closed at the end of every run.
	Warehouse io.Closer
	Logger    *zap.Logger
}

type runState struct {
	runID   string
	tracker *RunTracker
	errs    []error
}

// Run resolves every target depth-first, one task at a time. Each task is
// visited at most once per run. A failed task leaves its dependents pending
// while other targets proceed. The returned error joins all task failures.
func (o *Orchestrator) Run(ctx context.Context, runID string, targets []model.TaskKey) (*model.RunSummary, error) {
	if o.Graph == nil || o.Artifacts == nil || o.Checkpoints == nil {
		return nil, eris.New("orchestrator is missing its graph, artifacts or checkpoints")
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}

	rs := &runState{
		runID:   runID,
		tracker: NewRunTracker(ctx, runID, targets, o.Recorder, o.Logger),
	}
	for _, target := range targets {
		o.resolve(ctx, rs, target)
	}

	if o.Warehouse != nil {
		if err := o.Warehouse.Close(); err != nil {
			o.Logger.Warn("failed to close warehouse", zap.Error(err))
		}
	}

	summary := rs.tracker.Finish(ctx)
	if len(rs.errs) > 0 {
		return summary, errors.Join(rs.errs...)
	}
	return summary, nil
}

func (o *Orchestrator) fail(ctx context.Context, rs *runState, key model.TaskKey, err error) model.TaskState {
	rs.tracker.Fail(ctx, key, err)
	rs.errs = append(rs.errs, fmt.Errorf("%s: %w", key, err))
	return model.TaskFailed
}

// resolve brings key to a terminal state if its dependencies allow it and
// returns the state it ends the run in.
func (o *Orchestrator) resolve(ctx context.Context, rs *runState, key model.TaskKey) model.TaskState {
	if st, ok := rs.tracker.State(key); ok {
		return st
	}

	task, ok := o.Graph.Task(key)
	if !ok {
		return o.fail(ctx, rs, key, eris.Errorf("no task registered for %s", key))
	}

	done, err := o.isComplete(ctx, key)
	if err != nil {
		return o.fail(ctx, rs, key, err)
	}
	if done {
		rs.tracker.Skip(ctx, key, o.Artifacts.Path(key))
		return model.TaskSkipped
	}

	var in *dataset.Dataset
	if up, ok := key.Upstream(); ok {
		if st := o.resolve(ctx, rs, up); !st.Completed() {
			rs.tracker.Block(ctx, key, up)
			return model.TaskPending
		}
		rs.tracker.Start(ctx, key)
		if in, err = o.Artifacts.Read(up); err != nil {
			return o.fail(ctx, rs, key, err)
		}
	} else {
		rs.tracker.Start(ctx, key)
	}

	if err := ctx.Err(); err != nil {
		return o.fail(ctx, rs, key, eris.Wrap(err, "run cancelled"))
	}

	if key.Stage == model.StageLoad && o.Profiler != nil {
		o.profile(ctx, rs.runID, model.TaskKey{Domain: key.Domain, Stage: model.StageTransform}, in)
	}

	out, err := runAction(ctx, task.Action, in)
	if err != nil {
		return o.fail(ctx, rs, key, err)
	}
	if out == nil {
		return o.fail(ctx, rs, key, ErrEmptyOutput)
	}

	if err := o.Artifacts.Write(key, out); err != nil {
		return o.fail(ctx, rs, key, err)
	}
	path := o.Artifacts.Path(key)
	if err := o.Checkpoints.MarkDone(ctx, key, model.Checkpoint{
		Key:         key,
		Artifact:    path,
		Rows:        out.Len(),
		RunID:       rs.runID,
		CompletedAt: time.Now(),
	}); err != nil {
		return o.fail(ctx, rs, key, err)
	}

	rs.tracker.Done(ctx, key, path, out.Len())
	return model.TaskDone
}

// isComplete reports whether key finished in an earlier run. A checkpoint
// whose artifact is gone does not count.
func (o *Orchestrator) isComplete(ctx context.Context, key model.TaskKey) (bool, error) {
	done, err := o.Checkpoints.IsDone(ctx, key)
	if err != nil || !done {
		return false, err
	}
	exists, err := o.Artifacts.Exists(key)
	if err != nil {
		return false, err
	}
	if !exists {
		o.Logger.Warn("checkpoint has no artifact, task will run again",
			zap.String("domain", string(key.Domain)), zap.String("stage", string(key.Stage)))
	}
	return exists, nil
}

// runAction calls action, turning a panic into an error.
func runAction(ctx context.Context, action Action, in *dataset.Dataset) (out *dataset.Dataset, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return action(ctx, in)
}

func (o *Orchestrator) profile(ctx context.Context, runID string, key model.TaskKey, ds *dataset.Dataset) {
	defer func() {
		if r := recover(); r != nil {
			o.Logger.Error("profiler panicked", zap.Any("panic", r))
		}
	}()

	report := o.Profiler.Profile(runID, key, ds)
	o.Logger.Info("dataset profile",
		zap.String("domain", string(key.Domain)),
		zap.String("stage", string(key.Stage)),
		zap.Int("rows", report.Rows),
		zap.Int("columns", report.Columns),
		zap.Int("duplicate_rows", report.DuplicateRows))
	for _, cp := range report.ColumnProfiles {
		o.Logger.Debug("column profile",
			zap.String("domain", string(key.Domain)),
			zap.String("column", cp.Name),
			zap.String("kind", cp.Kind),
			zap.Int("missing", cp.Missing),
			zap.Float64("missing_percent", cp.MissingPercent),
			zap.Int("distinct", cp.Distinct))
	}
	if err := o.Recorder.SaveProfile(recordContext(ctx), report); err != nil {
		o.Logger.Warn("failed to record profile", zap.Error(err))
	}
}

// Reset clears the checkpoint of key so the next run executes it again.
// Dependent tasks that already completed keep their checkpoints.
func (o *Orchestrator) Reset(ctx context.Context, key model.TaskKey) error {
	if _, ok := o.Graph.Task(key); !ok {
		return eris.Errorf("no task registered for %s", key)
	}
	return o.Checkpoints.Clear(ctx, key)
}
