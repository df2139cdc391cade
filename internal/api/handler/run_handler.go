package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-etl-pipeline/internal/model"
	"go-etl-pipeline/internal/store"
	"go-etl-pipeline/pkg/utils"
)

const apiPrefix = "/api/v1"

// RunStore reads and writes run history.
type RunStore interface {
	SaveRun(ctx context.Context, runID string, targets []model.TaskKey) error
	UpdateRunStatus(ctx context.Context, runID, status string) error
	SaveJobError(ctx context.Context, runID, task string, err error) error
	ListRuns(ctx context.Context) ([]model.RunSummary, error)
	GetRun(ctx context.Context, runID string) (*model.RunSummary, error)
	GetRunTasks(ctx context.Context, runID string) ([]model.TaskResult, error)
	GetRunErrors(ctx context.Context, runID string) ([]model.RunError, error)
	GetProfiles(ctx context.Context, domain model.Domain) ([]model.ProfileReport, error)
}

// CheckpointLister lists completed tasks.
type CheckpointLister interface {
	List(ctx context.Context) ([]model.Checkpoint, error)
}

// Runner executes and resets pipeline tasks.
type Runner interface {
	Run(ctx context.Context, runID string, targets []model.TaskKey) (*model.RunSummary, error)
	Reset(ctx context.Context, key model.TaskKey) error
}

// ArtifactLocator maps a task to its artifact file.
type ArtifactLocator interface {
	Path(key model.TaskKey) string
	Size(key model.TaskKey) (int64, error)
}

// CreateRunRequest is the body of POST /runs. Empty targets run every
// domain through load.
type CreateRunRequest struct {
	Targets []model.TaskKey `json:"targets"`
	Timeout string          `json:"timeout,omitempty" example:"30m"`
}

// CreateRunResponse acknowledges a started run.
type CreateRunResponse struct {
	Message   string          `json:"message"`
	RunID     string          `json:"run_id"`
	Status    string          `json:"status"`
	Targets   []model.TaskKey `json:"targets"`
	CreatedAt time.Time       `json:"created_at"`
}

// RunHandler serves the pipeline API. At most one run is in flight.
type RunHandler struct {
	Store       RunStore
	Checkpoints CheckpointLister
	Runner      Runner
	Artifacts   ArtifactLocator
	// Timeout bounds a run when the request does not set one.
	Timeout time.Duration
	Logger  *zap.Logger

	mu     sync.Mutex
	active string
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *RunHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// pathParams returns the segments of path after prefix.
func pathParams(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, apiPrefix+prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseTaskKey(domain, stage string) (model.TaskKey, error) {
	d, err := model.ParseDomain(domain)
	if err != nil {
		return model.TaskKey{}, err
	}
	s, err := model.ParseStage(stage)
	if err != nil {
		return model.TaskKey{}, err
	}
	return model.TaskKey{Domain: d, Stage: s}, nil
}

// CreateRun starts a pipeline run
// @Summary Start a run
// @Description Start a run for the given targets in the background. Completed tasks are skipped.
// @Tags runs
// @Accept json
// @Produce json
// @Param run body CreateRunRequest false "Run targets and timeout"
// @Success 202 {object} CreateRunResponse
// @Failure 400 {string} string "Invalid request payload"
// @Failure 409 {string} string "A run is already in progress"
// @Failure 500 {string} string "Internal server error"
// @Router /runs [post]
func (h *RunHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	targets := make([]model.TaskKey, 0, len(req.Targets))
	for _, t := range req.Targets {
		key, err := parseTaskKey(string(t.Domain), string(t.Stage))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		targets = append(targets, key)
	}
	if len(targets) == 0 {
		targets = model.LoadTargets()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active != "" {
		http.Error(w, "Run "+h.active+" is already in progress", http.StatusConflict)
		return
	}

	runID := uuid.New().String()
	if err := h.Store.SaveRun(r.Context(), runID, targets); err != nil {
		h.logger().Error("failed to save run", zap.String("run_id", runID), zap.Error(err))
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout := utils.ParseDuration(req.Timeout, h.Timeout); timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	h.active, h.cancel, h.done = runID, cancel, make(chan struct{})
	go h.execute(ctx, cancel, runID, targets, h.done)

	writeJSON(w, http.StatusAccepted, CreateRunResponse{
		Message:   "Run started",
		RunID:     runID,
		Status:    "running",
		Targets:   targets,
		CreatedAt: time.Now().UTC(),
	})
}

func (h *RunHandler) execute(ctx context.Context, cancel context.CancelFunc, runID string, targets []model.TaskKey, done chan struct{}) {
	defer close(done)
	defer cancel()
	defer func() {
		h.mu.Lock()
		h.active, h.cancel = "", nil
		h.mu.Unlock()
	}()

	log := h.logger().With(zap.String("run_id", runID))
	summary, err := h.Runner.Run(ctx, runID, targets)
	if err == nil {
		log.Info("run completed", zap.Int("executed", summary.Executed), zap.Int("skipped", summary.Skipped))
		return
	}
	log.Error("run failed", zap.Error(err))
	// task failures are recorded by the run itself
	if summary == nil {
		if serr := h.Store.SaveJobError(context.Background(), runID, "", err); serr != nil {
			log.Warn("failed to record run error", zap.Error(serr))
		}
		if serr := h.Store.UpdateRunStatus(context.Background(), runID, "failed"); serr != nil {
			log.Warn("failed to update run status", zap.String("status", "failed"), zap.Error(serr))
		}
	}
}

// Wait blocks until the in-flight run, if any, returns.
func (h *RunHandler) Wait() {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Shutdown cancels the in-flight run and waits for it to return.
func (h *RunHandler) Shutdown() {
	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Unlock()
	h.Wait()
}

// ListRuns returns the run history
// @Summary List runs
// @Description List every run, newest first
// @Tags runs
// @Produce json
// @Success 200 {array} model.RunSummary
// @Failure 500 {string} string "Internal server error"
// @Router /runs [get]
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context())
	if err != nil {
		h.logger().Error("failed to list runs", zap.Error(err))
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *RunHandler) runID(w http.ResponseWriter, r *http.Request) (string, bool) {
	params := pathParams(r.URL.Path, "/runs")
	if len(params) == 0 || params[0] == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return "", false
	}
	return params[0], true
}

// GetRun returns one run with its task results
// @Summary Get run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.RunSummary
// @Failure 404 {string} string "Run not found"
// @Router /runs/{id} [get]
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}
	run, err := h.Store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger().Error("failed to fetch run", zap.String("run_id", id), zap.Error(err))
		http.Error(w, "Failed to fetch run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunTasks returns the task results of a run
// @Summary Get run tasks
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.TaskResult
// @Failure 500 {string} string "Internal server error"
// @Router /runs/{id}/tasks [get]
func (h *RunHandler) GetRunTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}
	tasks, err := h.Store.GetRunTasks(r.Context(), id)
	if err != nil {
		h.logger().Error("failed to fetch run tasks", zap.String("run_id", id), zap.Error(err))
		http.Error(w, "Failed to fetch tasks", http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []model.TaskResult{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetRunErrors returns the errors recorded for a run
// @Summary Get run errors
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.RunError
// @Failure 500 {string} string "Internal server error"
// @Router /runs/{id}/errors [get]
func (h *RunHandler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}
	errs, err := h.Store.GetRunErrors(r.Context(), id)
	if err != nil {
		h.logger().Error("failed to fetch run errors", zap.String("run_id", id), zap.Error(err))
		http.Error(w, "Failed to fetch errors", http.StatusInternalServerError)
		return
	}
	if errs == nil {
		errs = []model.RunError{}
	}
	writeJSON(w, http.StatusOK, errs)
}

// CancelRun cancels the in-flight run
// @Summary Cancel run
// @Description Cancel the run if it is still in progress. Tasks not yet finished stay pending.
// @Tags runs
// @Param id path string true "Run ID"
// @Success 202 {string} string "Cancellation requested"
// @Failure 404 {string} string "Run is not in progress"
// @Router /runs/{id}/cancel [post]
func (h *RunHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active != id || h.cancel == nil {
		http.Error(w, "Run is not in progress", http.StatusNotFound)
		return
	}
	h.cancel()
	h.logger().Info("run cancellation requested", zap.String("run_id", id))
	w.WriteHeader(http.StatusAccepted)
}

// ListCheckpoints returns the completed tasks
// @Summary List checkpoints
// @Tags checkpoints
// @Produce json
// @Success 200 {array} model.Checkpoint
// @Failure 500 {string} string "Internal server error"
// @Router /checkpoints [get]
func (h *RunHandler) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	cps, err := h.Checkpoints.List(r.Context())
	if err != nil {
		h.logger().Error("failed to list checkpoints", zap.Error(err))
		http.Error(w, "Failed to fetch checkpoints", http.StatusInternalServerError)
		return
	}
	if cps == nil {
		cps = []model.Checkpoint{}
	}
	writeJSON(w, http.StatusOK, cps)
}

func (h *RunHandler) taskKey(w http.ResponseWriter, r *http.Request, prefix string) (model.TaskKey, bool) {
	params := pathParams(r.URL.Path, prefix)
	if len(params) != 2 {
		http.Error(w, "Domain and stage are required", http.StatusBadRequest)
		return model.TaskKey{}, false
	}
	key, err := parseTaskKey(params[0], params[1])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return model.TaskKey{}, false
	}
	return key, true
}

// ResetCheckpoint clears the checkpoint of a task
// @Summary Reset task
// @Description Clear a task's checkpoint so the next run executes it again. Dependents keep theirs.
// @Tags checkpoints
// @Param domain path string true "Domain" Enums(sales, marketing, scraping)
// @Param stage path string true "Stage" Enums(extract, transform, load)
// @Success 204
// @Failure 400 {string} string "Invalid task"
// @Failure 409 {string} string "A run is in progress"
// @Router /checkpoints/{domain}/{stage} [delete]
func (h *RunHandler) ResetCheckpoint(w http.ResponseWriter, r *http.Request) {
	key, ok := h.taskKey(w, r, "/checkpoints")
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active != "" {
		http.Error(w, "Run "+h.active+" is in progress", http.StatusConflict)
		return
	}
	if err := h.Runner.Reset(r.Context(), key); err != nil {
		h.logger().Error("failed to reset checkpoint", zap.Stringer("task", key), zap.Error(err))
		http.Error(w, "Failed to reset checkpoint", http.StatusInternalServerError)
		return
	}
	h.logger().Info("checkpoint reset", zap.Stringer("task", key))
	w.WriteHeader(http.StatusNoContent)
}

// GetProfiles returns the dataset profiles of a domain
// @Summary Get profiles
// @Tags profiles
// @Produce json
// @Param domain path string true "Domain" Enums(sales, marketing, scraping)
// @Success 200 {array} model.ProfileReport
// @Failure 400 {string} string "Invalid domain"
// @Router /profiles/{domain} [get]
func (h *RunHandler) GetProfiles(w http.ResponseWriter, r *http.Request) {
	params := pathParams(r.URL.Path, "/profiles")
	if len(params) != 1 {
		http.Error(w, "Domain is required", http.StatusBadRequest)
		return
	}
	domain, err := model.ParseDomain(params[0])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reports, err := h.Store.GetProfiles(r.Context(), domain)
	if err != nil {
		h.logger().Error("failed to fetch profiles", zap.String("domain", string(domain)), zap.Error(err))
		http.Error(w, "Failed to fetch profiles", http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []model.ProfileReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// DownloadArtifact serves the artifact file of a task
// @Summary Download artifact
// @Tags artifacts
// @Produce text/csv
// @Param domain path string true "Domain" Enums(sales, marketing, scraping)
// @Param stage path string true "Stage" Enums(extract, transform, load)
// @Success 200 {file} file
// @Failure 404 {string} string "Artifact not found"
// @Router /artifacts/{domain}/{stage} [get]
func (h *RunHandler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	key, ok := h.taskKey(w, r, "/artifacts")
	if !ok {
		return
	}
	path := h.Artifacts.Path(key)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "Artifact not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger().Error("failed to open artifact", zap.String("path", path), zap.Error(err))
		http.Error(w, "Failed to read artifact", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	if size, err := h.Artifacts.Size(key); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(path)+"\"")
	if _, err := io.Copy(w, f); err != nil {
		h.logger().Warn("failed to send artifact", zap.String("path", path), zap.Error(err))
	}
}
