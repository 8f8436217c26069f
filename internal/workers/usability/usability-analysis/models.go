// internal/workers/usability/usability-analysis/models.go
package usabilityanalysis

import (
	"usability-workers/internal/common/validation"
)

type Input struct {
	AppOverview string  `json:"appOverview"`
	UserTask    string  `json:"userTask"`
	SourceCode  *string `json:"sourceCode,omitempty"`
	ImageBase64 string  `json:"imageBase64,omitempty"`
	ModelID     string  `json:"modelId,omitempty"`
}

type Output struct {
	UsabilityIssues string `json:"usabilityIssues"`
	TokenCount      int    `json:"tokenCount"`
	RunID           string `json:"runId"`
	ModelID         string `json:"modelId"`
}

// Process variables outside these keys are ignored.
var inputSchema = validation.MustCompile("usability-analysis-input", `{
	"type": "object",
	"required": ["appOverview", "userTask"],
	"properties": {
		"appOverview": {"type": "string", "minLength": 1},
		"userTask":    {"type": "string", "minLength": 1},
		"sourceCode":  {"type": ["string", "null"]},
		"imageBase64": {"type": "string"},
		"modelId":     {"type": "string"}
	}
}`)
