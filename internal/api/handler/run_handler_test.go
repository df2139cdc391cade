package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-etl-pipeline/internal/model"
	"go-etl-pipeline/internal/store"
)

type fakeStore struct {
	mu       sync.Mutex
	saved    map[string][]model.TaskKey
	statuses map[string]string
	errors   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string][]model.TaskKey), statuses: make(map[string]string)}
}

func (s *fakeStore) SaveRun(_ context.Context, runID string, targets []model.TaskKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[runID] = targets
	return nil
}

func (s *fakeStore) UpdateRunStatus(_ context.Context, runID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[runID] = status
	return nil
}

func (s *fakeStore) SaveJobError(_ context.Context, runID, _ string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, runID+": "+err.Error())
	return nil
}

func (s *fakeStore) ListRuns(context.Context) ([]model.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var runs []model.RunSummary
	for id, targets := range s.saved {
		runs = append(runs, model.RunSummary{RunID: id, Targets: targets})
	}
	return runs, nil
}

func (s *fakeStore) GetRun(_ context.Context, runID string) (*model.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	targets, ok := s.saved[runID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &model.RunSummary{RunID: runID, Targets: targets, Status: "running"}, nil
}

func (s *fakeStore) GetRunTasks(context.Context, string) ([]model.TaskResult, error) {
	return nil, nil
}

func (s *fakeStore) GetRunErrors(_ context.Context, runID string) ([]model.RunError, error) {
	return []model.RunError{{RunID: runID, Task: "sales/extract", Message: "boom"}}, nil
}

func (s *fakeStore) GetProfiles(_ context.Context, domain model.Domain) ([]model.ProfileReport, error) {
	return []model.ProfileReport{{Domain: domain, Stage: model.StageTransform, Rows: 3}}, nil
}

type fakeRunner struct {
	release chan struct{}
	err     error
	mu      sync.Mutex
	runs    [][]model.TaskKey
	resets  []model.TaskKey
}

func (r *fakeRunner) Run(ctx context.Context, runID string, targets []model.TaskKey) (*model.RunSummary, error) {
	r.mu.Lock()
	r.runs = append(r.runs, targets)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return &model.RunSummary{RunID: runID, Status: "failed"}, ctx.Err()
		}
	}
	return &model.RunSummary{RunID: runID, Status: "completed"}, nil
}

func (r *fakeRunner) Reset(_ context.Context, key model.TaskKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, key)
	return nil
}

type fakeCheckpoints []model.Checkpoint

func (c fakeCheckpoints) List(context.Context) ([]model.Checkpoint, error) { return c, nil }

type dirArtifacts string

func (d dirArtifacts) Path(key model.TaskKey) string {
	return filepath.Join(string(d), string(key.Stage), string(key.Stage)+"_"+string(key.Domain)+"_data.csv")
}

func (d dirArtifacts) Size(key model.TaskKey) (int64, error) {
	info, err := os.Stat(d.Path(key))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func newTestHandler(t *testing.T, runner *fakeRunner) (*RunHandler, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	return &RunHandler{
		Store:       st,
		Checkpoints: fakeCheckpoints{{Key: model.TaskKey{Domain: model.DomainSales, Stage: model.StageExtract}, Rows: 4}},
		Runner:      runner,
		Artifacts:   dirArtifacts(t.TempDir()),
	}, st
}

func serve(handler func(http.ResponseWriter, *http.Request), method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestCreateRunDefaultsToLoadTargets(t *testing.T) {
	runner := &fakeRunner{}
	h, st := newTestHandler(t, runner)

	rec := serve(h.CreateRun, http.MethodPost, "/api/v1/runs", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateRunResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, model.LoadTargets(), resp.Targets)

	h.Wait()
	assert.Equal(t, model.LoadTargets(), st.saved[resp.RunID])
	require.Len(t, runner.runs, 1)
}

func TestCreateRunValidatesTargets(t *testing.T) {
	h, _ := newTestHandler(t, &fakeRunner{})

	rec := serve(h.CreateRun, http.MethodPost, "/api/v1/runs", `{"targets":[{"domain":"weather","stage":"load"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h.CreateRun, http.MethodPost, "/api/v1/runs", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h.CreateRun, http.MethodPost, "/api/v1/runs", `{"targets":[{"domain":"Marketing","stage":"transform"}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp CreateRunResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []model.TaskKey{{Domain: model.DomainMarketing, Stage: model.StageTransform}}, resp.Targets)
	h.Wait()
}

func TestOneRunInFlight(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	h, _ := newTestHandler(t, runner)

	first := serve(h.CreateRun, http.MethodPost, "/api/v1/runs", "")
	require.Equal(t, http.StatusAccepted, first.Code)
	var resp CreateRunResponse
	require.NoError(t, json.NewDecoder(first.Body).Decode(&resp))

	second := serve(h.CreateRun, http.MethodPost, "/api/v1/runs", "")
	assert.Equal(t, http.StatusConflict, second.Code)

	reset := serve(h.ResetCheckpoint, http.MethodDelete, "/api/v1/checkpoints/sales/load", "")
	assert.Equal(t, http.StatusConflict, reset.Code)

	close(runner.release)
	h.Wait()

	third := serve(h.CreateRun, http.MethodPost, "/api/v1/runs", "")
	assert.Equal(t, http.StatusAccepted, third.Code)
	h.Wait()
}

func TestCancelRun(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	h, _ := newTestHandler(t, runner)

	rec := serve(h.CreateRun, http.MethodPost, "/api/v1/runs", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp CreateRunResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	other := serve(h.CancelRun, http.MethodPost, "/api/v1/runs/other/cancel", "")
	assert.Equal(t, http.StatusNotFound, other.Code)

	cancelRec := serve(h.CancelRun, http.MethodPost, "/api/v1/runs/"+resp.RunID+"/cancel", "")
	assert.Equal(t, http.StatusAccepted, cancelRec.Code)
	h.Wait()

	// a run that returns a summary records its own task errors
	assert.Empty(t, h.Store.(*fakeStore).errors)
}

func TestRunThatCannotStartIsMarkedFailed(t *testing.T) {
	h, st := newTestHandler(t, &fakeRunner{err: errors.New("orchestrator is missing its graph")})

	rec := serve(h.CreateRun, http.MethodPost, "/api/v1/runs", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp CreateRunResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	h.Wait()

	assert.Equal(t, "failed", st.statuses[resp.RunID])
	require.Len(t, st.errors, 1)
	assert.Contains(t, st.errors[0], "missing its graph")
}

func TestGetRun(t *testing.T) {
	h, st := newTestHandler(t, &fakeRunner{})
	st.saved["run-1"] = model.LoadTargets()

	rec := serve(h.GetRun, http.MethodGet, "/api/v1/runs/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run model.RunSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	assert.Equal(t, "run-1", run.RunID)

	rec = serve(h.GetRun, http.MethodGet, "/api/v1/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h.GetRunErrors, http.MethodGet, "/api/v1/runs/run-1/errors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var errs []model.RunError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "run-1", errs[0].RunID)

	rec = serve(h.GetRunTasks, http.MethodGet, "/api/v1/runs/run-1/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCheckpointEndpoints(t *testing.T) {
	runner := &fakeRunner{}
	h, _ := newTestHandler(t, runner)

	rec := serve(h.ListCheckpoints, http.MethodGet, "/api/v1/checkpoints", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cps []model.Checkpoint
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cps))
	require.Len(t, cps, 1)
	assert.Equal(t, 4, cps[0].Rows)

	rec = serve(h.ResetCheckpoint, http.MethodDelete, "/api/v1/checkpoints/scraping/transform", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []model.TaskKey{{Domain: model.DomainScraping, Stage: model.StageTransform}}, runner.resets)

	rec = serve(h.ResetCheckpoint, http.MethodDelete, "/api/v1/checkpoints/scraping/publish", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProfiles(t *testing.T) {
	h, _ := newTestHandler(t, &fakeRunner{})

	rec := serve(h.GetProfiles, http.MethodGet, "/api/v1/profiles/marketing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var reports []model.ProfileReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reports))
	require.Len(t, reports, 1)
	assert.Equal(t, model.DomainMarketing, reports[0].Domain)

	rec = serve(h.GetProfiles, http.MethodGet, "/api/v1/profiles/weather", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadArtifact(t *testing.T) {
	h, _ := newTestHandler(t, &fakeRunner{})
	key := model.TaskKey{Domain: model.DomainSales, Stage: model.StageLoad}

	rec := serve(h.DownloadArtifact, http.MethodGet, "/api/v1/artifacts/sales/load", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	path := h.Artifacts.Path(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("id::int,name\n0,tv\n"), 0o644))

	rec = serve(h.DownloadArtifact, http.MethodGet, "/api/v1/artifacts/sales/load", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "18", rec.Header().Get("Content-Length"))
	assert.Equal(t, "id::int,name\n0,tv\n", rec.Body.String())
}
