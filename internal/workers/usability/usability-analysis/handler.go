// internal/workers/usability/usability-analysis/handler.go
package usabilityanalysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"usability-workers/internal/analysis/imagepreprocessor"
	"usability-workers/internal/analysis/orchestrator"
	apperrors "usability-workers/internal/common/errors"
	"usability-workers/internal/common/logger"
	"usability-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "usability-analysis"
)

// Runner executes one analysis synchronously.
type Runner interface {
	Run(ctx context.Context, in orchestrator.AnalysisInput) (orchestrator.State, error)
}

// RunnerFactory returns a fresh Runner per job so concurrent jobs never
// contend for one orchestrator's single-flight guard.
type RunnerFactory func() Runner

type Handler struct {
	config       *Config
	newRunner    RunnerFactory
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, newRunner RunnerFactory, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		newRunner:    newRunner,
		errorHandler: apperrors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := ParseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// ParseInput validates job variables against the input schema and decodes them.
func ParseInput(variables string) (*Input, error) {
	result, err := inputSchema.Validate([]byte(variables))
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidInputError(result.Error())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	in := orchestrator.AnalysisInput{
		AppOverview: input.AppOverview,
		UserTask:    input.UserTask,
		SourceCode:  input.SourceCode,
		ModelID:     input.ModelID,
	}
	if input.ImageBase64 != "" {
		image, err := imagepreprocessor.DecodeBase64(input.ImageBase64)
		if err != nil {
			return nil, apperrors.NewInvalidInputError(err.Error())
		}
		in.Image = image
	}

	state, err := h.newRunner().Run(ctx, in)
	if err != nil {
		return nil, err
	}

	h.logger.Info("usability analysis completed", map[string]interface{}{
		"runId":      state.RunID,
		"model":      state.ModelID,
		"tokenCount": state.TokenCount,
	})

	return &Output{
		UsabilityIssues: state.Result,
		TokenCount:      state.TokenCount,
		RunID:           state.RunID,
		ModelID:         state.ModelID,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		h.fail(ctx, client, job, err)
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.CodeOf(err))).Inc()
	// The job context may already be expired; the broker still needs the report.
	h.errorHandler.HandleJobError(context.WithoutCancel(ctx), client, job, err)
}

// Execute method for direct usage
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
