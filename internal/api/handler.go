// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"usability-workers/internal/analysis/imagepreprocessor"
	"usability-workers/internal/analysis/orchestrator"
	"usability-workers/internal/analysis/report"
	apperrors "usability-workers/internal/common/errors"
	"usability-workers/internal/common/logger"
	"usability-workers/pkg/registry"

	"github.com/gin-gonic/gin"
)

// Analyzer is the orchestrator surface exposed over HTTP.
type Analyzer interface {
	Start(ctx context.Context, in orchestrator.AnalysisInput) bool
	State() orchestrator.State
	DefaultModelID() string
}

// ReportReader serves the report history endpoints.
type ReportReader interface {
	Get(ctx context.Context, id string) (*report.Record, error)
	ListRecent(ctx context.Context, limit int) ([]report.Record, error)
}

// ReadinessCheck reports whether a backing service is reachable.
type ReadinessCheck func(ctx context.Context) error

// StartAnalysisRequest is the body of POST /api/v1/analysis.
type StartAnalysisRequest struct {
	AppOverview string  `json:"appOverview" binding:"required"`
	UserTask    string  `json:"userTask" binding:"required"`
	SourceCode  *string `json:"sourceCode"`
	ImageBase64 string  `json:"imageBase64"`
	ModelID     string  `json:"modelId"`
}

type StartAnalysisResponse struct {
	Started bool               `json:"started"`
	State   orchestrator.State `json:"state"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handlers contains all HTTP handlers
type Handlers struct {
	analyzer Analyzer
	reports  ReportReader
	models   *registry.ModelRegistry
	checks   map[string]ReadinessCheck
	logger   logger.Logger
}

// NewHandlers creates the handlers. reports may be nil when history is disabled.
func NewHandlers(analyzer Analyzer, reports ReportReader, models *registry.ModelRegistry, checks map[string]ReadinessCheck, log logger.Logger) *Handlers {
	if models == nil {
		models = registry.Default()
	}
	return &Handlers{
		analyzer: analyzer,
		reports:  reports,
		models:   models,
		checks:   checks,
		logger:   log.With(map[string]interface{}{"component": "api"}),
	}
}

// StartAnalysis starts a run, or answers 409 with the unchanged state when one is in flight.
func (h *Handlers) StartAnalysis(c *gin.Context) {
	var req StartAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	input, err := h.toInput(req)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	if !h.analyzer.Start(c.Request.Context(), input) {
		c.JSON(http.StatusConflict, StartAnalysisResponse{Started: false, State: h.analyzer.State()})
		return
	}
	c.JSON(http.StatusAccepted, StartAnalysisResponse{Started: true, State: h.analyzer.State()})
}

func (h *Handlers) toInput(req StartAnalysisRequest) (orchestrator.AnalysisInput, error) {
	in := orchestrator.AnalysisInput{
		AppOverview: req.AppOverview,
		UserTask:    req.UserTask,
		SourceCode:  req.SourceCode,
		ModelID:     req.ModelID,
	}

	if req.ImageBase64 != "" {
		image, err := imagepreprocessor.DecodeBase64(req.ImageBase64)
		if err != nil {
			return in, err
		}
		in.Image = image
	}

	// An omitted model runs on the analyzer default, which must accept the image too.
	modelID := req.ModelID
	if modelID == "" {
		modelID = h.analyzer.DefaultModelID()
	}
	model, ok := h.models.Get(modelID)
	if !ok && req.ModelID != "" {
		return in, fmt.Errorf("unknown model %q", req.ModelID)
	}
	if ok && in.HasImage() && !model.SupportsVision {
		return in, fmt.Errorf("model %q does not accept screenshots", modelID)
	}
	return in, nil
}

func (h *Handlers) GetAnalysis(c *gin.Context) {
	c.JSON(http.StatusOK, h.analyzer.State())
}

func (h *Handlers) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, h.models)
}

func (h *Handlers) ListReports(c *gin.Context) {
	if h.reports == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "report history is disabled", Code: "REPORTS_DISABLED"})
		return
	}

	limit := report.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.reports.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, "failed to list reports", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": records, "count": len(records)})
}

func (h *Handlers) GetReport(c *gin.Context) {
	if h.reports == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "report history is disabled", Code: "REPORTS_DISABLED"})
		return
	}

	rec, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, report.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "report not found", Code: "NOT_FOUND"})
		return
	}
	if err != nil {
		h.internalError(c, "failed to load report", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "usability-analyzer",
	})
}

// Ready runs every readiness check and answers 503 if any fails.
func (h *Handlers) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			ready = false
			continue
		}
		results[name] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": results})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: string(apperrors.ErrCodeInvalidInput)})
}

func (h *Handlers) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, map[string]interface{}{"error": err.Error(), "path": c.FullPath()})
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msg, Code: string(apperrors.ErrCodeInternal)})
}
