package model

import "time"

// TaskState is the lifecycle state of a task within a run.
type TaskState string

const (
	TaskPending TaskState = "pending"
	TaskRunning TaskState = "running"
	TaskSkipped TaskState = "skipped"
	TaskDone    TaskState = "done"
	TaskFailed  TaskState = "failed"
)

// Terminal reports whether no further transition can happen in this run.
func (s TaskState) Terminal() bool {
	return s == TaskSkipped || s == TaskDone || s == TaskFailed
}

// Completed reports whether the task's artifact is available to dependents.
func (s TaskState) Completed() bool {
	return s == TaskSkipped || s == TaskDone
}

// TaskResult records what happened to one task in a run.
type TaskResult struct {
	Key       TaskKey       `json:"key"`
	State     TaskState     `json:"state"`
	Artifact  string        `json:"artifact,omitempty"`
	Rows      int           `json:"rows"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// RunSummary is the outcome of one pipeline invocation.
type RunSummary struct {
	RunID     string       `json:"run_id"`
	Targets   []TaskKey    `json:"targets"`
	Status    string       `json:"status"` // "running", "completed", "failed"
	StartTime time.Time    `json:"start_time"`
	EndTime   *time.Time   `json:"end_time,omitempty"`
	Tasks     []TaskResult `json:"tasks"`
	Executed  int          `json:"executed"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Pending   int          `json:"pending"`
}

// Checkpoint is the completion record of a task, kept apart from its artifact.
type Checkpoint struct {
	Key         TaskKey   `json:"key"`
	Artifact    string    `json:"artifact"`
	Rows        int       `json:"rows"`
	RunID       string    `json:"run_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// RunError is a failure recorded against a run.
type RunError struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Task      string    `json:"task,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
