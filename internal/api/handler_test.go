package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfdash-backend/config"
	"perfdash-backend/internal/analysis"
	"perfdash-backend/internal/assistant"
	"perfdash-backend/internal/dashboard"
	"perfdash-backend/internal/db"
	"perfdash-backend/internal/importer"
	"perfdash-backend/internal/jobs"
	"perfdash-backend/internal/logger"
	"perfdash-backend/internal/metrics"
	"perfdash-backend/internal/model"
	"perfdash-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, delay time.Duration) (*gin.Engine, store.Store) {
	t.Helper()

	gormDB, err := db.Open(db.MemoryDSN(uuid.NewString()), 1, false)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	require.NoError(t, db.Seed(context.Background(), gormDB))
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000

	m := metrics.New()
	log := logger.Nop()
	runner := jobs.NewRunner(log, time.Minute, m)
	t.Cleanup(func() {
		_ = runner.Shutdown(context.Background())
		sqlDB.Close()
	})

	s := store.NewGormStore(gormDB)
	h := NewHandler(Deps{
		Store:     s,
		Analyses:  analysis.NewService(s, runner, delay, nil, nil, log),
		Assistant: assistant.New(runner, delay, log),
		Imports:   importer.NewManager(cfg.Import, delay, runner, nil, m, log),
		Dashboard: dashboard.NewService(dashboard.DefaultDataset(), time.Now()),
		Runner:    runner,
		Log:       log,
	})
	return NewRouter(h, cfg.Server, m), s
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestMachines_CRUD(t *testing.T) {
	r, _ := newTestRouter(t, time.Millisecond)

	before := decode[[]model.Machine](t, doJSON(t, r, http.MethodGet, "/api/machines", nil))
	require.Len(t, before, 3)

	w := doJSON(t, r, http.MethodPost, "/api/machines", gin.H{"name": "Press X", "standardCycle": 20, "status": "active"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[model.Machine](t, w)
	assert.Equal(t, "/api/machines/"+created.ID, w.Header().Get("Location"))
	assert.Equal(t, 20, created.StandardCycle)
	assert.Equal(t, time.Now().Format(model.DateLayout), created.CreatedOn)

	after := decode[[]model.Machine](t, doJSON(t, r, http.MethodGet, "/api/machines", nil))
	require.Len(t, after, 4)
	assert.Equal(t, created.ID, after[3].ID)

	w = doJSON(t, r, http.MethodPut, "/api/machines/"+created.ID, gin.H{"name": "Press X", "standardCycle": 25, "status": "maintenance"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.MachineMaintenance, decode[model.Machine](t, w).Status)

	w = doJSON(t, r, http.MethodPut, "/api/machines/missing", gin.H{"name": "Ghost", "standardCycle": 5})
	assert.Equal(t, http.StatusNotFound, w.Code)

	for i := 0; i < 2; i++ {
		w = doJSON(t, r, http.MethodDelete, "/api/machines/"+created.ID, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
	assert.Len(t, decode[[]model.Machine](t, doJSON(t, r, http.MethodGet, "/api/machines", nil)), 3)

	w = doJSON(t, r, http.MethodGet, "/api/machines/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMachines_Validation(t *testing.T) {
	r, _ := newTestRouter(t, time.Millisecond)

	tests := []struct {
		name string
		body any
	}{
		{"missing name", gin.H{"standardCycle": 10}},
		{"zero cycle", gin.H{"name": "Lathe", "standardCycle": 0}},
		{"bad status", gin.H{"name": "Lathe", "standardCycle": 10, "status": "broken"}},
		{"not json", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/machines", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

type taskEnvelope struct {
	Analysis model.Analysis `json:"analysis"`
	Task     jobs.Info      `json:"task"`
}

func TestAnalyses_RegenerateAndPoll(t *testing.T) {
	r, _ := newTestRouter(t, 20*time.Millisecond)

	list := decode[[]model.Analysis](t, doJSON(t, r, http.MethodGet, "/api/analyses", nil))
	require.NotEmpty(t, list)
	id := list[0].ID

	w := doJSON(t, r, http.MethodPost, "/api/analyses/"+id+"/regenerate", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	env := decode[taskEnvelope](t, w)
	assert.Equal(t, model.AnalysisRegenerating, env.Analysis.Status)
	assert.Equal(t, jobs.StatePending, env.Task.State)
	assert.Equal(t, "/api/tasks/"+env.Task.ID, w.Header().Get("Location"))

	w = doJSON(t, r, http.MethodPost, "/api/analyses/"+id+"/regenerate", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/tasks/"+env.Task.ID+"?wait=2s", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, jobs.StateSucceeded, decode[jobs.Info](t, w).State)

	got := decode[model.Analysis](t, doJSON(t, r, http.MethodGet, "/api/analyses/"+id, nil))
	assert.Equal(t, model.AnalysisCompleted, got.Status)
	assert.GreaterOrEqual(t, got.Score, analysis.MinScore)
	assert.LessOrEqual(t, got.Score, analysis.MaxScore)
}

func TestAnalyses_CancelRegeneration(t *testing.T) {
	r, _ := newTestRouter(t, time.Hour)
	list := decode[[]model.Analysis](t, doJSON(t, r, http.MethodGet, "/api/analyses", nil))
	id := list[0].ID

	w := doJSON(t, r, http.MethodDelete, "/api/analyses/"+id+"/regenerate", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "nothing to cancel")

	w = doJSON(t, r, http.MethodPost, "/api/analyses/"+id+"/regenerate", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	taskID := decode[taskEnvelope](t, w).Task.ID

	w = doJSON(t, r, http.MethodDelete, "/api/analyses/"+id+"/regenerate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	restored := decode[model.Analysis](t, w)
	assert.Equal(t, model.AnalysisCompleted, restored.Status)
	assert.Equal(t, list[0].Score, restored.Score)

	info := decode[jobs.Info](t, doJSON(t, r, http.MethodGet, "/api/tasks/"+taskID, nil))
	assert.Equal(t, jobs.StateCancelled, info.State)
}

func TestTasks_Errors(t *testing.T) {
	r, _ := newTestRouter(t, time.Millisecond)

	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/api/tasks/unknown", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodPost, "/api/analyses/unknown/regenerate", nil).Code)

	w := doJSON(t, r, http.MethodPost, "/api/assistant/analyses", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decode[taskEnvelope](t, w).Task.ID
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/api/tasks/"+id+"?wait=soon", nil).Code)
}

func TestAssistant(t *testing.T) {
	r, _ := newTestRouter(t, 10*time.Millisecond)

	w := doJSON(t, r, http.MethodPost, "/api/assistant/analyses", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decode[taskEnvelope](t, w).Task.ID

	var info struct {
		State  jobs.State        `json:"state"`
		Result assistant.Insight `json:"result"`
	}
	w = doJSON(t, r, http.MethodGet, "/api/tasks/"+id+"?wait=2s", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, jobs.StateSucceeded, info.State)
	assert.Equal(t, 87, info.Result.Score)
	assert.Len(t, info.Result.Insights, 3)
}

func TestDashboardViews(t *testing.T) {
	r, _ := newTestRouter(t, time.Millisecond)

	w := doJSON(t, r, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[dashboard.Summary](t, w)
	assert.Equal(t, 5, sum.TotalMachines)
	assert.Equal(t, 91.2, sum.AverageEfficiency)

	assert.Len(t, decode[[]dashboard.MonthStats](t, doJSON(t, r, http.MethodGet, "/api/monthly", nil)), 6)

	w = doJSON(t, r, http.MethodGet, "/api/monthly/Jun/machines/press-b2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 259, decode[dashboard.MachineReport](t, w).TotalCycles)

	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/api/monthly/Dec", nil).Code)
}

func uploadCSV(t *testing.T, r http.Handler, sessionID, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/sessions/"+sessionID+"/file", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestImportWizard(t *testing.T) {
	r, _ := newTestRouter(t, 10*time.Millisecond)

	w := doJSON(t, r, http.MethodPost, "/api/import/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	session := decode[importer.Snapshot](t, w)
	assert.Equal(t, importer.StateEmpty, session.State)

	w = uploadCSV(t, r, session.ID, "report.txt", "a,b\n1,2\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, importer.StateEmpty, decode[importer.Snapshot](t, doJSON(t, r, http.MethodGet, "/api/import/sessions/"+session.ID, nil)).State)

	csv := "Machine Name,Cycle Time,Efficiency,Timestamp,Notes\n" +
		"Machine A1,45,94.5,2024-06-15 10:30,Excellent\n" +
		"Press B2,abc,87.2,2024-06-15 11:00,Normal\n"
	w = uploadCSV(t, r, session.ID, "report.csv", csv)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, importer.StateLoaded, decode[importer.Snapshot](t, w).State)

	mapping := map[string]string{
		"machine_name": "Machine Name",
		"cycle_time":   "Cycle Time",
	}
	for field, column := range mapping {
		w = doJSON(t, r, http.MethodPut, "/api/import/sessions/"+session.ID+"/mapping", gin.H{"systemField": field, "csvColumn": column})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/import/sessions/"+session.ID+"/import", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, importer.StateMapped, decode[importer.Snapshot](t, doJSON(t, r, http.MethodGet, "/api/import/sessions/"+session.ID, nil)).State)

	w = doJSON(t, r, http.MethodPut, "/api/import/sessions/"+session.ID+"/mapping", gin.H{"systemField": "recorded_at", "csvColumn": "Timestamp"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/import/sessions/"+session.ID+"/import", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var started struct {
		Session importer.Snapshot `json:"session"`
		Task    jobs.Info         `json:"task"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.Equal(t, importer.StateImporting, started.Session.State)

	w = doJSON(t, r, http.MethodGet, "/api/tasks/"+started.Task.ID+"?wait=2s", nil)
	require.Equal(t, jobs.StateSucceeded, decode[jobs.Info](t, w).State)

	final := decode[importer.Snapshot](t, doJSON(t, r, http.MethodGet, "/api/import/sessions/"+session.ID, nil))
	assert.Equal(t, importer.StateResulted, final.State)
	require.NotNil(t, final.Result)
	assert.Equal(t, 2, final.Result.Total)
	assert.Equal(t, 1, final.Result.Success)
	assert.Equal(t, 1, final.Result.Errors)

	w = doJSON(t, r, http.MethodPost, "/api/import/sessions/"+session.ID+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, importer.StateEmpty, decode[importer.Snapshot](t, w).State)

	assert.Equal(t, http.StatusNoContent, doJSON(t, r, http.MethodDelete, "/api/import/sessions/"+session.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/api/import/sessions/"+session.ID, nil).Code)
}

func TestImportUpload_SizeLimit(t *testing.T) {
	runner := jobs.NewRunner(logger.Nop(), time.Minute, nil)
	t.Cleanup(func() { _ = runner.Shutdown(context.Background()) })
	cfg := config.Default().Import
	cfg.MaxFileBytes = 1 << 10
	imports := importer.NewManager(cfg, time.Millisecond, runner, nil, nil, logger.Nop())

	r := gin.New()
	r.POST("/api/import/sessions/:id/file", NewHandler(Deps{Imports: imports}).UploadImportFile)

	header := "Machine Name,Cycle Time,Efficiency,Timestamp,Notes\n"
	row := "Machine A1,45,94.5,2024-06-15 10:30,ok\n"

	tests := []struct {
		name string
		size int
		want int
	}{
		{"within limit", 10, http.StatusOK},
		{"over file limit", 40, http.StatusRequestEntityTooLarge},
		{"over body limit", 3000, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := imports.Create()
			w := uploadCSV(t, r, session.ID, "data.csv", header+strings.Repeat(row, tt.size))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestImportTemplate(t *testing.T) {
	r, _ := newTestRouter(t, time.Millisecond)

	w := doJSON(t, r, http.MethodGet, "/api/import/template", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="import_template.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "Machine Name,Cycle Time,Efficiency,Timestamp,Notes\n"))

	fields := decode[[]map[string]any](t, doJSON(t, r, http.MethodGet, "/api/import/fields", nil))
	assert.Len(t, fields, 5)
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, time.Millisecond)

	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	doJSON(t, r, http.MethodGet, "/api/machines", nil)
	w = doJSON(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "perfdash_http_requests_total")
}
