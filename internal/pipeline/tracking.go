package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"go-etl-pipeline/internal/model"
)

// Recorder persists run history.
type Recorder interface {
	SaveRun(ctx context.Context, runID string, targets []model.TaskKey) error
	FinishRun(ctx context.Context, summary *model.RunSummary) error
	SaveTaskResult(ctx context.Context, runID string, res model.TaskResult) error
	SaveJobError(ctx context.Context, runID, task string, err error) error
	SaveProfile(ctx context.Context, report *model.ProfileReport) error
}

type nopRecorder struct{}

func (nopRecorder) SaveRun(context.Context, string, []model.TaskKey) error { return nil }
func (nopRecorder) FinishRun(context.Context, *model.RunSummary) error { return nil }
func (nopRecorder) SaveTaskResult(context.Context, string, model.TaskResult) error { return nil }
func (nopRecorder) SaveJobError(context.Context, string, string, error) error { return nil }
func (nopRecorder) SaveProfile(context.Context, *model.ProfileReport) error { return nil }

// RunTracker keeps the task results of one run, logs every transition and
// mirrors it to the Recorder. Recorder failures are logged, never returned.
// History writes outlive cancellation of the run context.
type RunTracker struct {
	mu       sync.RWMutex
	summary  *model.RunSummary
	index    map[model.TaskKey]int
	recorder Recorder
	logger   *zap.Logger
}

// NewRunTracker starts tracking a run.
func NewRunTracker(ctx context.Context, runID string, targets []model.TaskKey, recorder Recorder, logger *zap.Logger) *RunTracker {
	t := &RunTracker{
		summary: &model.RunSummary{
			RunID:     runID,
			Targets:   targets,
			Status:    "running",
			StartTime: time.Now(),
			Tasks:     []model.TaskResult{},
		},
		index:    make(map[model.TaskKey]int),
		recorder: recorder,
		logger:   logger.With(zap.String("run_id", runID)),
	}
	if err := recorder.SaveRun(recordContext(ctx), runID, targets); err != nil {
		t.logger.Warn("failed to record run", zap.Error(err))
	}
	t.logger.Info("run started", zap.Int("targets", len(targets)))
	return t
}

// recordContext keeps the values of ctx but not its deadline or cancellation,
// so a cancelled or timed out run still gets its final state recorded.
func recordContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func taskFields(key model.TaskKey) []zap.Field {
	return []zap.Field{zap.String("domain", string(key.Domain)), zap.String("stage", string(key.Stage))}
}

// update applies fn to the result of key, creating it if needed, and persists it.
func (t *RunTracker) update(ctx context.Context, key model.TaskKey, fn func(r *model.TaskResult)) model.TaskResult {
	t.mu.Lock()
	i, ok := t.index[key]
	if !ok {
		i = len(t.summary.Tasks)
		t.index[key] = i
		t.summary.Tasks = append(t.summary.Tasks, model.TaskResult{Key: key, State: model.TaskPending, StartedAt: time.Now()})
	}
	fn(&t.summary.Tasks[i])
	res := t.summary.Tasks[i]
	t.mu.Unlock()

	if err := t.recorder.SaveTaskResult(recordContext(ctx), t.summary.RunID, res); err != nil {
		t.logger.Warn("failed to record task", append(taskFields(key), zap.Error(err))...)
	}
	return res
}

func (t *RunTracker) end(r *model.TaskResult, state model.TaskState) {
	now := time.Now()
	r.State = state
	r.EndedAt = &now
	r.Duration = now.Sub(r.StartedAt)
}

// Start marks key running.
func (t *RunTracker) Start(ctx context.Context, key model.TaskKey) {
	t.update(ctx, key, func(r *model.TaskResult) {
		r.State = model.TaskRunning
		r.StartedAt = time.Now()
	})
	t.logger.Info("task started", taskFields(key)...)
}

// Skip marks key skipped because it already completed in an earlier run.
func (t *RunTracker) Skip(ctx context.Context, key model.TaskKey, artifact string) {
	t.update(ctx, key, func(r *model.TaskResult) {
		r.Artifact = artifact
		t.end(r, model.TaskSkipped)
	})
	t.logger.Info("task already complete, skipping", taskFields(key)...)
}

// Done marks key completed with its artifact.
func (t *RunTracker) Done(ctx context.Context, key model.TaskKey, artifact string, rows int) {
	res := t.update(ctx, key, func(r *model.TaskResult) {
		r.Artifact = artifact
		r.Rows = rows
		t.end(r, model.TaskDone)
	})
	t.logger.Info("task completed", append(taskFields(key),
		zap.Int("rows", rows),
		zap.String("artifact", artifact),
		zap.Duration("duration", res.Duration))...)
}

// Fail marks key failed.
func (t *RunTracker) Fail(ctx context.Context, key model.TaskKey, err error) {
	t.update(ctx, key, func(r *model.TaskResult) {
		r.Error = err.Error()
		t.end(r, model.TaskFailed)
	})
	t.logger.Error("task failed", append(taskFields(key), zap.Error(err))...)
	if rerr := t.recorder.SaveJobError(recordContext(ctx), t.summary.RunID, key.String(), err); rerr != nil {
		t.logger.Warn("failed to record task error", zap.Error(rerr))
	}
}

// Block leaves key pending because its dependency did not complete.
func (t *RunTracker) Block(ctx context.Context, key, dependency model.TaskKey) {
	t.update(ctx, key, func(r *model.TaskResult) {
		r.State = model.TaskPending
		r.Error = "dependency " + dependency.String() + " did not complete"
	})
	t.logger.Warn("task blocked", append(taskFields(key), zap.String("dependency", dependency.String()))...)
}

// State returns the tracked state of key.
func (t *RunTracker) State(key model.TaskKey) (model.TaskState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[key]
	if !ok {
		return "", false
	}
	return t.summary.Tasks[i].State, true
}

// Finish closes the run, computes the counters and persists the summary.
func (t *RunTracker) Finish(ctx context.Context) *model.RunSummary {
	t.mu.Lock()
	now := time.Now()
	s := t.summary
	s.EndTime = &now
	s.Executed, s.Skipped, s.Failed, s.Pending = 0, 0, 0, 0
	for _, r := range s.Tasks {
		switch r.State {
		case model.TaskDone:
			s.Executed++
		case model.TaskSkipped:
			s.Skipped++
		case model.TaskFailed:
			s.Executed++
			s.Failed++
		default:
			s.Pending++
		}
	}
	s.Status = "completed"
	if s.Failed > 0 {
		s.Status = "failed"
	}
	out := t.snapshot()
	t.mu.Unlock()

	if err := t.recorder.FinishRun(recordContext(ctx), out); err != nil {
		t.logger.Warn("failed to record run result", zap.Error(err))
	}
	t.logger.Info("run finished",
		zap.String("status", out.Status),
		zap.Int("executed", out.Executed),
		zap.Int("skipped", out.Skipped),
		zap.Int("failed", out.Failed),
		zap.Int("pending", out.Pending),
		zap.Duration("duration", now.Sub(out.StartTime)))
	return out
}

// Summary returns a copy of the current run state.
func (t *RunTracker) Summary() *model.RunSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot()
}

func (t *RunTracker) snapshot() *model.RunSummary {
	s := *t.summary
	s.Tasks = append([]model.TaskResult(nil), t.summary.Tasks...)
	s.Targets = append([]model.TaskKey(nil), t.summary.Targets...)
	return &s
}
