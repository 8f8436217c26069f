// internal/analysis/orchestrator/state.go
package orchestrator

import (
	"time"

	"usability-workers/internal/analysis/imagepreprocessor"
	"usability-workers/internal/analysis/promptbuilder"
)

// Phase is the orchestrator's position in its state machine.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// State is a snapshot of the orchestrator. Result is set only when
// Succeeded; Error and ErrorCode only when Failed.
type State struct {
	Phase      Phase         `json:"phase"`
	Result     string        `json:"result,omitempty"`
	TokenCount int           `json:"tokenCount,omitempty"`
	Error      string        `json:"error,omitempty"`
	ErrorCode  string        `json:"errorCode,omitempty"`
	RunID      string        `json:"runId,omitempty"`
	ModelID    string        `json:"modelId,omitempty"`
	Input      *InputSummary `json:"input,omitempty"`
	StartedAt  *time.Time    `json:"startedAt,omitempty"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
}

// InputSummary describes the run's input without carrying the image or source.
type InputSummary struct {
	AppOverview   string `json:"appOverview"`
	UserTask      string `json:"userTask"`
	HasImage      bool   `json:"hasImage"`
	HasSourceCode bool   `json:"hasSourceCode"`
}

// Settled reports whether the state is a terminal outcome of a run.
func (s State) Settled() bool {
	return s.Phase == PhaseSucceeded || s.Phase == PhaseFailed
}

// AnalysisInput is the immutable snapshot handed to one run.
type AnalysisInput struct {
	AppOverview string
	UserTask    string
	SourceCode  *string
	Image       []byte
	ModelID     string
}

func (in AnalysisInput) HasImage() bool {
	return len(in.Image) > 0
}

func (in AnalysisInput) Summary() *InputSummary {
	return &InputSummary{
		AppOverview:   in.AppOverview,
		UserTask:      in.UserTask,
		HasImage:      in.HasImage(),
		HasSourceCode: promptbuilder.HasSourceCode(in.SourceCode),
	}
}

// Options are fixed at construction.
type Options struct {
	TargetSize     imagepreprocessor.Size
	DefaultModelID string
}
