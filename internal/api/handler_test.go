// internal/api/handler_test.go
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"usability-workers/internal/analysis/imagepreprocessor"
	"usability-workers/internal/analysis/modelinvoker"
	"usability-workers/internal/analysis/orchestrator"
	"usability-workers/internal/analysis/report"
	"usability-workers/internal/common/logger"
	"usability-workers/pkg/registry"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Doubles
// ==========================

type fakeAnalyzer struct {
	mu           sync.Mutex
	busy         bool
	defaultModel string
	state        orchestrator.State
	started      []orchestrator.AnalysisInput
}

func (f *fakeAnalyzer) Start(_ context.Context, in orchestrator.AnalysisInput) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return false
	}
	f.started = append(f.started, in)
	f.state = orchestrator.State{Phase: orchestrator.PhaseRunning, RunID: "run-1", ModelID: in.ModelID}
	return true
}

func (f *fakeAnalyzer) State() orchestrator.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeAnalyzer) DefaultModelID() string {
	return f.defaultModel
}

type fakeReports struct {
	records []report.Record
	err     error
	limit   int
}

func (f *fakeReports) Get(_ context.Context, id string) (*report.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.records {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, report.ErrNotFound
}

func (f *fakeReports) ListRecent(_ context.Context, limit int) ([]report.Record, error) {
	f.limit = limit
	return f.records, f.err
}

// ==========================
// Test Helper Functions
// ==========================

func setupRouter(t *testing.T, analyzer Analyzer, reports ReportReader, checks map[string]ReadinessCheck) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewTestLogger(t)
	return NewRouter(NewHandlers(analyzer, reports, registry.Default(), checks, log), log)
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ==========================
// Analysis Endpoint Tests
// ==========================

func TestStartAnalysis_Accepted(t *testing.T) {
	analyzer := &fakeAnalyzer{state: orchestrator.State{Phase: orchestrator.PhaseIdle}}
	router := setupRouter(t, analyzer, nil, nil)

	image := []byte{0x89, 'P', 'N', 'G'}
	w := doJSON(router, http.MethodPost, "/api/v1/analysis", map[string]interface{}{
		"appOverview": "Fitness app",
		"userTask":    "log workout",
		"imageBase64": base64.StdEncoding.EncodeToString(image),
		"modelId":     registry.GPT4TurboVision,
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp StartAnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Started)
	assert.Equal(t, orchestrator.PhaseRunning, resp.State.Phase)

	require.Len(t, analyzer.started, 1)
	assert.Equal(t, image, analyzer.started[0].Image)
	assert.Equal(t, "Fitness app", analyzer.started[0].AppOverview)
}

func TestStartAnalysis_ConflictLeavesStateUnchanged(t *testing.T) {
	running := orchestrator.State{Phase: orchestrator.PhaseRunning, RunID: "in-flight"}
	analyzer := &fakeAnalyzer{busy: true, state: running}
	router := setupRouter(t, analyzer, nil, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/analysis", map[string]interface{}{
		"appOverview": "A",
		"userTask":    "B",
	})

	require.Equal(t, http.StatusConflict, w.Code)
	var resp StartAnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Started)
	assert.Equal(t, "in-flight", resp.State.RunID)
	assert.Empty(t, analyzer.started)
}

func TestStartAnalysis_BadRequests(t *testing.T) {
	tests := []struct {
		name         string
		defaultModel string
		body         interface{}
		wantErr      string
	}{
		{name: "invalid json", body: "{not json", wantErr: "invalid request body"},
		{name: "missing task", body: map[string]interface{}{"appOverview": "A"}, wantErr: "invalid request body"},
		{name: "bad base64", body: map[string]interface{}{"appOverview": "A", "userTask": "B", "imageBase64": "%%%"}, wantErr: "not valid base64"},
		{name: "unknown model", body: map[string]interface{}{"appOverview": "A", "userTask": "B", "modelId": "llama"}, wantErr: "unknown model"},
		{
			name: "image with text-only model",
			body: map[string]interface{}{
				"appOverview": "A", "userTask": "B",
				"imageBase64": base64.StdEncoding.EncodeToString([]byte("img")),
				"modelId":     registry.GPT35Turbo,
			},
			wantErr: "does not accept screenshots",
		},
		{
			name:         "image with text-only default model",
			defaultModel: registry.GPT35Turbo,
			body: map[string]interface{}{
				"appOverview": "A", "userTask": "B",
				"imageBase64": base64.StdEncoding.EncodeToString([]byte("img")),
			},
			wantErr: "does not accept screenshots",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &fakeAnalyzer{defaultModel: tt.defaultModel}
			router := setupRouter(t, analyzer, nil, nil)

			w := doJSON(router, http.MethodPost, "/api/v1/analysis", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tt.wantErr)
			assert.Equal(t, "INVALID_INPUT", resp.Code)
			assert.Empty(t, analyzer.started)
		})
	}
}

func TestStartAnalysis_ImageOnVisionDefaultModel(t *testing.T) {
	analyzer := &fakeAnalyzer{defaultModel: registry.GPT4TurboVision}
	router := setupRouter(t, analyzer, nil, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/analysis", map[string]interface{}{
		"appOverview": "A",
		"userTask":    "B",
		"imageBase64": base64.StdEncoding.EncodeToString([]byte("img")),
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, analyzer.started, 1)
	assert.Empty(t, analyzer.started[0].ModelID, "the orchestrator resolves the default itself")
}

func TestGetAnalysis(t *testing.T) {
	analyzer := &fakeAnalyzer{state: orchestrator.State{Phase: orchestrator.PhaseSucceeded, Result: "1. Issue"}}
	router := setupRouter(t, analyzer, nil, nil)

	w := doJSON(router, http.MethodGet, "/api/v1/analysis", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"phase":"succeeded","result":"1. Issue"}`, w.Body.String())
}

// ==========================
// End-to-End With Mocked Backends
// ==========================

func TestStartAnalysis_WithMockedOrchestrator(t *testing.T) {
	log := logger.NewNoOpLogger()
	orch := orchestrator.New(orchestrator.Dependencies{
		Preprocessor: imagepreprocessor.NewMockedPreprocessor(log),
		Invoker: modelinvoker.NewMockedInvoker(log, modelinvoker.WithMockDelay(10*time.Millisecond)),
	}, orchestrator.Options{DefaultModelID: registry.GPT4TurboVision}, log)
	router := setupRouter(t, orch, nil, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/analysis", map[string]interface{}{"appOverview": "A", "userTask": "B"})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/analysis", map[string]interface{}{"appOverview": "A", "userTask": "B"})
	assert.Equal(t, http.StatusConflict, w.Code)

	require.Eventually(t, func() bool {
		return orch.State().Phase == orchestrator.PhaseSucceeded
	}, 2*time.Second, 5*time.Millisecond)

	w = doJSON(router, http.MethodGet, "/api/v1/analysis", nil)
	var state orchestrator.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, modelinvoker.MockedUsabilityIssues, state.Result)
}

// ==========================
// Report & Catalog Tests
// ==========================

func TestListReports(t *testing.T) {
	reports := &fakeReports{records: []report.Record{{ID: "a", Status: "succeeded"}, {ID: "b", Status: "failed"}}}
	router := setupRouter(t, &fakeAnalyzer{}, reports, nil)

	w := doJSON(router, http.MethodGet, "/api/v1/reports?limit=5", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, reports.limit)
	var body struct {
		Reports []report.Record `json:"reports"`
		Count   int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "b", body.Reports[1].ID)
}

func TestListReports_Errors(t *testing.T) {
	router := setupRouter(t, &fakeAnalyzer{}, nil, nil)
	assert.Equal(t, http.StatusNotFound, doJSON(router, http.MethodGet, "/api/v1/reports", nil).Code)

	router = setupRouter(t, &fakeAnalyzer{}, &fakeReports{}, nil)
	assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodGet, "/api/v1/reports?limit=abc", nil).Code)

	router = setupRouter(t, &fakeAnalyzer{}, &fakeReports{err: errors.New("db down")}, nil)
	assert.Equal(t, http.StatusInternalServerError, doJSON(router, http.MethodGet, "/api/v1/reports", nil).Code)
}

func TestGetReport(t *testing.T) {
	reports := &fakeReports{records: []report.Record{{ID: "a", Status: "succeeded", Result: "1. Issue"}}}
	router := setupRouter(t, &fakeAnalyzer{}, reports, nil)

	w := doJSON(router, http.MethodGet, "/api/v1/reports/a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec report.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "1. Issue", rec.Result)

	w = doJSON(router, http.MethodGet, "/api/v1/reports/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListModels(t *testing.T) {
	router := setupRouter(t, &fakeAnalyzer{}, nil, nil)

	w := doJSON(router, http.MethodGet, "/api/v1/models", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var reg registry.ModelRegistry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	assert.Equal(t, registry.GPT4TurboVision, reg.Default)
	assert.Len(t, reg.Models, 3)
}

// ==========================
// Health Tests
// ==========================

func TestHealthAndReady(t *testing.T) {
	router := setupRouter(t, &fakeAnalyzer{}, nil, map[string]ReadinessCheck{
		"redis": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, doJSON(router, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(router, http.MethodGet, "/ready", nil).Code)

	router = setupRouter(t, &fakeAnalyzer{}, nil, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})
	w := doJSON(router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupRouter(t, &fakeAnalyzer{}, nil, nil)
	w := doJSON(router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "usability_analysis_runs_dropped_total")
}
